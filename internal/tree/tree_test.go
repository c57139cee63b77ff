package tree

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lfind/internal/storage"
)

func file(path string) *storage.FileRecord {
	return &storage.FileRecord{Name: filepath.Base(path), AbsolutePath: path, Type: storage.TypeFile}
}

func dir(path string) *storage.FileRecord {
	return &storage.FileRecord{Name: filepath.Base(path), AbsolutePath: path, Type: storage.TypeDirectory}
}

func TestBuild(t *testing.T) {
	records := []*storage.FileRecord{
		file("/data/b.txt"),
		file("/data/docs/readme.md"),
		file("/data/a.py"),
		dir("/data/empty"),
		file("/elsewhere/x.txt"),
		file("/data2/y.txt"),
	}

	root := Build(records, "/data/")
	assert.Equal(t, "data", root.Name)
	assert.Equal(t, "/data", root.Path)
	require.Len(t, root.Children, 4)

	names := []string{}
	for _, c := range root.Children {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"docs", "empty", "a.py", "b.txt"}, names)

	docs := root.Children[0]
	assert.Equal(t, storage.TypeDirectory, docs.Type)
	assert.Equal(t, "/data/docs", docs.Path)
	require.Len(t, docs.Children, 1)
	assert.Equal(t, "/data/docs/readme.md", docs.Children[0].Path)
}

func TestBuild_DirectoryRecordAfterFile(t *testing.T) {
	records := []*storage.FileRecord{
		file("/data/docs/readme.md"),
		dir("/data/docs"),
	}
	root := Build(records, "/data")
	require.Len(t, root.Children, 1)
	assert.Equal(t, storage.TypeDirectory, root.Children[0].Type)
	assert.Len(t, root.Children[0].Children, 1)
}

func TestBuild_WideDirectories(t *testing.T) {
	const width = 5000
	var records []*storage.FileRecord
	for i := width - 1; i >= 0; i-- {
		records = append(records, file(fmt.Sprintf("/data/flat/f%05d.txt", i)))
		records = append(records, file(fmt.Sprintf("/data/nested/d%05d/g.txt", i)))
	}
	// Repeats land on the existing nodes
	records = append(records, file("/data/flat/f00042.txt"), dir("/data/nested/d00042"))

	root := Build(records, "/data")
	require.Len(t, root.Children, 2)

	tests := []struct {
		name   string
		node   *Node
		prefix string
	}{
		{"flat", root.Children[0], "f"},
		{"nested", root.Children[1], "d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.node.Name)
			require.Len(t, tt.node.Children, width)
			for i, c := range tt.node.Children {
				require.Contains(t, c.Name, fmt.Sprintf("%s%05d", tt.prefix, i))
			}
		})
	}
	for _, d := range root.Children[1].Children {
		require.Len(t, d.Children, 1, d.Name)
	}
}

func BenchmarkBuild_WideDirectory(b *testing.B) {
	records := make([]*storage.FileRecord, 0, 20000)
	for i := 0; i < cap(records); i++ {
		records = append(records, file(fmt.Sprintf("/data/flat/f%05d.txt", i)))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Build(records, "/data")
	}
}

func TestRender(t *testing.T) {
	records := []*storage.FileRecord{
		file("/data/a.py"),
		file("/data/b.txt"),
		file("/data/docs/readme.md"),
		dir("/data/empty"),
	}
	root := Build(records, "/data")

	tests := []struct {
		name      string
		opts      Options
		wantLines []string
		wantPaths []string
	}{
		{
			name: "defaults",
			opts: Options{},
			wantLines: []string{
				"<Dir: data>",
				"<Dir: docs>", "readme.md", "</Dir>",
				"a.py", "b.txt",
				"</Dir>",
			},
			wantPaths: []string{"/data/docs/readme.md", "/data/a.py", "/data/b.txt"},
		},
		{
			name: "include empty dirs",
			opts: Options{IncludeEmptyDirs: true},
			wantLines: []string{
				"<Dir: data>",
				"<Dir: docs>", "readme.md", "</Dir>",
				"<Dir: empty>", "</Dir>",
				"a.py", "b.txt",
				"</Dir>",
			},
			wantPaths: []string{"/data/docs/readme.md", "/data/a.py", "/data/b.txt"},
		},
		{
			name:      "extension filter prunes directories",
			opts:      Options{Extensions: []string{"PY"}},
			wantLines: []string{"<Dir: data>", "a.py", "</Dir>"},
			wantPaths: []string{"/data/a.py"},
		},
		{
			name: "max entries",
			opts: Options{MaxEntries: 2},
			wantLines: []string{
				"<Dir: data>",
				"<Dir: docs>", "readme.md", "</Dir>",
				"a.py",
				"</Dir>",
			},
			wantPaths: []string{"/data/docs/readme.md", "/data/a.py"},
		},
		{
			name:      "nothing matches",
			opts:      Options{Extensions: []string{".pdf"}},
			wantLines: []string{},
			wantPaths: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, paths := Render(root, tt.opts)
			assert.Equal(t, tt.wantLines, lines)
			assert.Equal(t, tt.wantPaths, paths)
		})
	}
}

func TestRender_Nil(t *testing.T) {
	lines, paths := Render(nil, Options{})
	assert.Empty(t, lines)
	assert.Empty(t, paths)
}
