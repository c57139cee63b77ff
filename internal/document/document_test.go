package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lfind/internal/extractor"
	"github.com/dshills/lfind/internal/storage"
)

func record(path string, typ storage.FileType) *storage.FileRecord {
	return &storage.FileRecord{
		ID:           1,
		Name:         filepath.Base(path),
		AbsolutePath: path,
		Type:         typ,
	}
}

func TestTitleText(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"quarterly_report-2024.pdf", "quarterly report 2024 pdf quarterly_report-2024.pdf"},
		{"README", "README README"},
		{"...", "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleText(tt.name))
		})
	}
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	b := NewBuilder(extractor.NewDefaultRegistry(nil), 100, nil)

	notes := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(notes, []byte("budget meeting"), 0o644))
	blank := filepath.Join(dir, "blank.txt")
	require.NoError(t, os.WriteFile(blank, []byte("   \n"), 0o644))
	binary := filepath.Join(dir, "image.raw")
	require.NoError(t, os.WriteFile(binary, []byte{0, 1, 2, 3}, 0o644))

	t.Run("content", func(t *testing.T) {
		doc, err := b.Build(ctx, record(notes, storage.TypeFile))
		require.NoError(t, err)
		assert.Equal(t, storage.EmbeddingContent, doc.Type)
		assert.Equal(t, "notes.md\nbudget meeting", doc.Text)
	})

	t.Run("blank content falls back to title", func(t *testing.T) {
		doc, err := b.Build(ctx, record(blank, storage.TypeFile))
		require.NoError(t, err)
		assert.Equal(t, storage.EmbeddingTitle, doc.Type)
		assert.Equal(t, "blank txt blank.txt", doc.Text)
	})

	t.Run("no extractor", func(t *testing.T) {
		doc, err := b.Build(ctx, record(binary, storage.TypeFile))
		require.NoError(t, err)
		assert.Equal(t, storage.EmbeddingTitle, doc.Type)
	})

	t.Run("extraction failure falls back to title", func(t *testing.T) {
		doc, err := b.Build(ctx, record(filepath.Join(dir, "vanished.txt"), storage.TypeFile))
		require.NoError(t, err)
		assert.Equal(t, storage.EmbeddingTitle, doc.Type)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := b.Build(ctx, record(dir, storage.TypeDirectory))
		assert.ErrorIs(t, err, ErrNotEmbeddable)
	})

	t.Run("deterministic", func(t *testing.T) {
		first, err := b.Build(ctx, record(notes, storage.TypeFile))
		require.NoError(t, err)
		second, err := b.Build(ctx, record(notes, storage.TypeFile))
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestBuild_NilRegistry(t *testing.T) {
	b := NewBuilder(nil, 0, nil)
	doc, err := b.Build(context.Background(), record("/x/a_b.txt", storage.TypeFile))
	require.NoError(t, err)
	assert.Equal(t, Document{Text: "a b txt a_b.txt", Type: storage.EmbeddingTitle}, doc)
}
