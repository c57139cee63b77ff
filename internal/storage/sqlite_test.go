package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lfind/internal/apperrors"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fileObs(path string, size int64, mod time.Time) Observation {
	return Observation{
		Name:         filepath.Base(path),
		AbsolutePath: path,
		Type:         TypeFile,
		Size:         size,
		ModifiedAt:   mod,
		CreatedAt:    mod,
	}
}

// syncPaths runs a full pass over the given observations
func syncPaths(t *testing.T, s *SQLiteStorage, observations ...Observation) (Pass, int) {
	t.Helper()
	ctx := context.Background()

	pass, err := s.ResetSeenFlags(ctx)
	require.NoError(t, err)
	for _, o := range observations {
		_, err := s.Touch(ctx, pass, o)
		require.NoError(t, err)
	}
	deleted, err := s.Sweep(ctx, pass)
	require.NoError(t, err)
	return pass, deleted
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	assert.NotNil(t, storage.db)

	stats, err := storage.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Files)
	assert.Nil(t, stats.LastSync)
}

func TestNewSQLiteStorage_File(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "index.db")
	storage, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	require.NoError(t, storage.Close())

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)

	// Reopening applies no migration twice
	storage, err = NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	assert.NoError(t, storage.Close())
}

func TestMarkAndSweep(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	a := fileObs("/data/a.py", 10, baseTime)
	b := fileObs("/data/b.txt", 20, baseTime)
	c := fileObs("/data/c.py", 30, baseTime)

	_, deleted := syncPaths(t, s, a, b, c)
	assert.Equal(t, 0, deleted)

	// b disappears from the filesystem
	pass, deleted := syncPaths(t, s, a, c)
	assert.Equal(t, 1, deleted)

	records, err := s.Query(ctx, Criteria{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.True(t, r.Seen(pass), "%s should be seen in the last pass", r.AbsolutePath)
	}

	_, err = s.GetByPath(ctx, "/data/b.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResetSeenFlags_Idempotent(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	syncPaths(t, s, fileObs("/data/a.py", 10, baseTime))

	first, err := s.ResetSeenFlags(ctx)
	require.NoError(t, err)
	second, err := s.ResetSeenFlags(ctx)
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	rec, err := s.GetByPath(ctx, "/data/a.py")
	require.NoError(t, err)
	assert.False(t, rec.Seen(first))
	assert.False(t, rec.Seen(second))
}

func TestSweep_StalePass(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	syncPaths(t, s, fileObs("/data/a.py", 10, baseTime))

	stale, err := s.ResetSeenFlags(ctx)
	require.NoError(t, err)
	current, err := s.ResetSeenFlags(ctx)
	require.NoError(t, err)

	_, err = s.Touch(ctx, current, fileObs("/data/a.py", 10, baseTime))
	require.NoError(t, err)

	// A touch from the stale pass must not count for the current one
	_, err = s.Touch(ctx, stale, fileObs("/data/z.py", 1, baseTime))
	require.NoError(t, err)

	_, err = s.Sweep(ctx, stale)
	require.Error(t, err)
	assert.True(t, apperrors.IsContract(err))
	assert.ErrorIs(t, err, ErrStalePass)

	// Nothing was deleted by the rejected sweep
	_, err = s.GetByPath(ctx, "/data/a.py")
	require.NoError(t, err)

	deleted, err := s.Sweep(ctx, current)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted, "z.py was only seen by the stale pass")

	// A finished pass cannot be swept twice
	_, err = s.Sweep(ctx, current)
	assert.ErrorIs(t, err, ErrStalePass)
}

func TestSweep_WithoutPass(t *testing.T) {
	s := setupTestDB(t)
	_, err := s.Sweep(context.Background(), Pass{ID: 1})
	assert.True(t, apperrors.IsContract(err))
}

func TestTouch_Idempotent(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	pass, err := s.ResetSeenFlags(ctx)
	require.NoError(t, err)

	obs := fileObs("/data/a.py", 10, baseTime)
	outcome, err := s.Touch(ctx, pass, obs)
	require.NoError(t, err)
	assert.Equal(t, TouchChanged, outcome)

	before, err := s.GetByPath(ctx, obs.AbsolutePath)
	require.NoError(t, err)

	outcome, err = s.Touch(ctx, pass, obs)
	require.NoError(t, err)
	assert.Equal(t, TouchUnchanged, outcome)

	after, err := s.GetByPath(ctx, obs.AbsolutePath)
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.Size, after.Size)
	assert.True(t, before.ModifiedAt.Equal(after.ModifiedAt))
	assert.True(t, after.Seen(pass))
}

func TestTouch_ChangeDetection(t *testing.T) {
	tests := []struct {
		name    string
		next    Observation
		outcome TouchOutcome
	}{
		{"same", fileObs("/data/a.py", 10, baseTime), TouchUnchanged},
		{"sub-second mtime drift", fileObs("/data/a.py", 10, baseTime.Add(400*time.Millisecond)), TouchUnchanged},
		{"other timezone", fileObs("/data/a.py", 10, baseTime.In(time.FixedZone("X", 3600))), TouchUnchanged},
		{"size changed", fileObs("/data/a.py", 11, baseTime), TouchChanged},
		{"mtime changed", fileObs("/data/a.py", 10, baseTime.Add(2*time.Second)), TouchChanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestDB(t)
			ctx := context.Background()

			pass, err := s.ResetSeenFlags(ctx)
			require.NoError(t, err)
			_, err = s.Touch(ctx, pass, fileObs("/data/a.py", 10, baseTime))
			require.NoError(t, err)

			rec, err := s.GetByPath(ctx, "/data/a.py")
			require.NoError(t, err)
			require.NoError(t, s.SetEmbedding(ctx, rec.ID, 7, EmbeddingContent))

			outcome, err := s.Touch(ctx, pass, tt.next)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, outcome)

			rec, err = s.GetByPath(ctx, "/data/a.py")
			require.NoError(t, err)
			if tt.outcome == TouchChanged {
				assert.Nil(t, rec.EmbeddingID, "changed records must be re-embedded")
				assert.Empty(t, rec.EmbeddingType)
				assert.Equal(t, tt.next.Size, rec.Size)
			} else {
				require.NotNil(t, rec.EmbeddingID)
				assert.Equal(t, int64(7), *rec.EmbeddingID)
			}
		})
	}
}

func TestTouch_InvalidObservation(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	pass, err := s.ResetSeenFlags(ctx)
	require.NoError(t, err)

	_, err = s.Touch(ctx, pass, fileObs("relative/a.py", 1, baseTime))
	assert.True(t, apperrors.IsContract(err))

	obs := fileObs("/data/a.py", 1, baseTime)
	obs.Type = "socket"
	_, err = s.Touch(ctx, pass, obs)
	assert.True(t, apperrors.IsContract(err))

	_, err = s.Touch(ctx, Pass{}, fileObs("/data/a.py", 1, baseTime))
	assert.True(t, apperrors.IsContract(err))
}

func TestTouchPath(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "Notes.MD")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	pass, err := s.ResetSeenFlags(ctx)
	require.NoError(t, err)

	outcome, err := s.TouchPath(ctx, pass, path)
	require.NoError(t, err)
	assert.Equal(t, TouchChanged, outcome)

	rec, err := s.GetByPath(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "Notes.MD", rec.Name)
	assert.Equal(t, ".md", rec.Extension)
	assert.Equal(t, int64(5), rec.Size)
	assert.Equal(t, TypeFile, rec.Type)

	outcome, err = s.TouchPath(ctx, pass, dir)
	require.NoError(t, err)
	assert.Equal(t, TouchChanged, outcome)
	dirRec, err := s.GetByPath(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, TypeDirectory, dirRec.Type)
	assert.Empty(t, dirRec.Extension)
}

func TestTouchPath_Vanished(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	s.stat = func(string) (os.FileInfo, error) { return nil, os.ErrPermission }

	pass, err := s.ResetSeenFlags(ctx)
	require.NoError(t, err)

	outcome, err := s.TouchPath(ctx, pass, "/data/gone.txt")
	require.NoError(t, err)
	assert.Equal(t, TouchSkipped, outcome)

	records, err := s.Query(ctx, Criteria{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestQuery_StructuralFilter(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	small, large := int64(5), int64(100)
	syncPaths(t, s,
		fileObs("/data/a.py", 10, baseTime),
		fileObs("/data/b.TXT", 20, baseTime.Add(time.Hour)),
		fileObs("/data/sub/c.py", 30, baseTime.Add(2*time.Hour)),
		fileObs("/database/d.py", 40, baseTime),
		fileObs("/data/README", 1, baseTime),
		Observation{Name: "sub", AbsolutePath: "/data/sub", Type: TypeDirectory, ModifiedAt: baseTime},
	)

	after := baseTime.Add(30 * time.Minute)
	before := baseTime.Add(90 * time.Minute)

	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{"all", Criteria{}, []string{"/data/a.py", "/data/b.TXT", "/data/sub/c.py", "/database/d.py", "/data/README", "/data/sub"}},
		{"directory scope excludes sibling prefix", Criteria{Directory: "/data"}, []string{"/data/a.py", "/data/b.TXT", "/data/sub/c.py", "/data/README", "/data/sub"}},
		{"trailing separator", Criteria{Directory: "/data/sub/"}, []string{"/data/sub/c.py"}},
		{"extension set", Criteria{Extensions: []string{"py"}}, []string{"/data/a.py", "/data/sub/c.py", "/database/d.py"}},
		{"extension case and dot", Criteria{Extensions: []string{".txt", "PY"}, Directory: "/data"}, []string{"/data/a.py", "/data/b.TXT", "/data/sub/c.py"}},
		{"type directory", Criteria{Type: TypeDirectory}, []string{"/data/sub"}},
		{"size bounds inclusive", Criteria{MinSize: &small, MaxSize: &large, Extensions: []string{"py"}, Directory: "/data"}, []string{"/data/a.py", "/data/sub/c.py"}},
		{"modified window", Criteria{ModifiedAfter: &after, ModifiedBefore: &before}, []string{"/data/b.TXT"}},
		{"limit", Criteria{Extensions: []string{"py"}, Limit: 2}, []string{"/data/a.py", "/data/sub/c.py"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := s.Query(ctx, tt.criteria)
			require.NoError(t, err)

			got := make([]string, len(records))
			for i, r := range records {
				got[i] = r.AbsolutePath
			}
			assert.Equal(t, tt.want, got)

			for i := 1; i < len(records); i++ {
				assert.Less(t, records[i-1].ID, records[i].ID, "results are ordered by id")
			}
		})
	}
}

func TestQuery_Malformed(t *testing.T) {
	s := setupTestDB(t)
	neg, one, two := int64(-1), int64(1), int64(2)
	later := baseTime.Add(time.Hour)

	tests := []struct {
		name     string
		criteria Criteria
	}{
		{"relative directory", Criteria{Directory: "data"}},
		{"negative size", Criteria{MinSize: &neg}},
		{"min above max", Criteria{MinSize: &two, MaxSize: &one}},
		{"after above before", Criteria{ModifiedAfter: &later, ModifiedBefore: &baseTime}},
		{"unknown type", Criteria{Type: "link"}},
		{"unknown embedding type", Criteria{EmbeddingType: "summary"}},
		{"negative limit", Criteria{Limit: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Query(context.Background(), tt.criteria)
			require.Error(t, err)
			assert.True(t, apperrors.IsContract(err))
		})
	}
}

func TestEmbeddingReferences(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	syncPaths(t, s,
		fileObs("/data/a.py", 10, baseTime),
		fileObs("/data/b.txt", 20, baseTime),
		fileObs("/data/c.bin", 30, baseTime),
	)

	a, err := s.GetByPath(ctx, "/data/a.py")
	require.NoError(t, err)
	b, err := s.GetByPath(ctx, "/data/b.txt")
	require.NoError(t, err)

	require.NoError(t, s.SetEmbedding(ctx, a.ID, 100, EmbeddingContent))
	require.NoError(t, s.SetEmbedding(ctx, b.ID, 101, EmbeddingTitle))
	// Last write wins
	require.NoError(t, s.SetEmbedding(ctx, b.ID, 102, EmbeddingTitle))

	t.Run("unknown type", func(t *testing.T) {
		err := s.SetEmbedding(ctx, a.ID, 1, "summary")
		assert.True(t, apperrors.IsContract(err))
	})

	t.Run("missing id", func(t *testing.T) {
		err := s.SetEmbedding(ctx, 9999, 1, EmbeddingTitle)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("resolve handles", func(t *testing.T) {
		records, err := s.GetByVectorHandles(ctx, []int64{102, 100, 101, 555}, "")
		require.NoError(t, err)
		require.Len(t, records, 2, "orphaned handle 101 and unknown 555 are dropped")
		assert.Equal(t, a.ID, records[0].ID)
		assert.Equal(t, b.ID, records[1].ID)

		records, err = s.GetByVectorHandles(ctx, []int64{100, 102}, EmbeddingTitle)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, b.ID, records[0].ID)
	})

	t.Run("mappings", func(t *testing.T) {
		mappings, err := s.EmbeddingMappings(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[int64]int64{100: a.ID, 102: b.ID}, mappings)
	})

	t.Run("list by type", func(t *testing.T) {
		records, err := s.ListByEmbeddingType(ctx, EmbeddingContent)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "/data/a.py", records[0].AbsolutePath)
	})

	t.Run("pending", func(t *testing.T) {
		records, err := s.PendingEmbeddings(ctx, 0)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "/data/c.bin", records[0].AbsolutePath)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Files)
		assert.Equal(t, 2, stats.Embedded)
		assert.Equal(t, 1, stats.TitleEmbeddings)
		assert.Equal(t, 1, stats.ContentEmbeddings)
		require.NotNil(t, stats.LastSync)
	})
}

func TestGetByVectorHandles_ManyHandles(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	pass, err := s.ResetSeenFlags(ctx)
	require.NoError(t, err)

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	const n = 1200
	handles := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("/data/f%04d.txt", i)
		_, err := tx.Touch(ctx, pass, fileObs(path, int64(i), baseTime))
		require.NoError(t, err)
		rec, err := tx.GetByPath(ctx, path)
		require.NoError(t, err)
		require.NoError(t, tx.SetEmbedding(ctx, rec.ID, int64(i), EmbeddingTitle))
		handles = append(handles, int64(i))
	}
	require.NoError(t, tx.Commit())

	records, err := s.GetByVectorHandles(ctx, handles, EmbeddingTitle)
	require.NoError(t, err)
	assert.Len(t, records, n)
}

func TestClearEmbeddings(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	syncPaths(t, s,
		fileObs("/data/a.txt", 1, baseTime),
		fileObs("/data/b.txt", 2, baseTime),
		fileObs("/data/c.txt", 3, baseTime),
	)
	ids := map[string]int64{}
	for _, name := range []string{"a", "b", "c"} {
		rec, err := s.GetByPath(ctx, "/data/"+name+".txt")
		require.NoError(t, err)
		ids[name] = rec.ID
	}
	// a and b share a handle, as left behind by a lost index save
	require.NoError(t, s.SetEmbedding(ctx, ids["a"], 0, EmbeddingContent))
	require.NoError(t, s.SetEmbedding(ctx, ids["b"], 0, EmbeddingContent))
	require.NoError(t, s.SetEmbedding(ctx, ids["c"], 1, EmbeddingTitle))

	n, err := s.ClearEmbeddings(ctx, []int64{0, 42})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending, err := s.PendingEmbeddings(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "/data/a.txt", pending[0].AbsolutePath)
	assert.Equal(t, "/data/b.txt", pending[1].AbsolutePath)
	assert.Empty(t, pending[0].EmbeddingType)

	mappings, err := s.EmbeddingMappings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{1: ids["c"]}, mappings)

	n, err = s.ClearEmbeddings(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTx_Rollback(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	pass, err := s.ResetSeenFlags(ctx)
	require.NoError(t, err)

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.Touch(ctx, pass, fileObs("/data/a.py", 1, baseTime))
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	_, err = s.GetByPath(ctx, "/data/a.py")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExtensionOf(t *testing.T) {
	tests := map[string]string{
		"a.PY":           ".py",
		"archive.tar.gz": ".gz",
		".bashrc":        "",
		"Makefile":       "",
	}
	for name, want := range tests {
		assert.Equal(t, want, ExtensionOf(name), name)
	}
	assert.Equal(t, ".md", NormalizeExtension("MD"))
	assert.Equal(t, "", NormalizeExtension("  "))
}
