package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/lfind/internal/apperrors"
)

// Validate reports malformed criteria as a contract error
func (c Criteria) Validate() error {
	const op = "storage.Query"

	if c.Directory != "" && !filepath.IsAbs(c.Directory) {
		return apperrors.Contract(op, "directory %q is not absolute", c.Directory)
	}
	if c.Type != "" && !c.Type.Valid() {
		return apperrors.Contract(op, "unknown file type %q", c.Type)
	}
	if c.EmbeddingType != "" && !c.EmbeddingType.Valid() {
		return apperrors.Contract(op, "unknown embedding type %q", c.EmbeddingType)
	}
	if c.MinSize != nil && *c.MinSize < 0 {
		return apperrors.Contract(op, "min size must be >= 0, got %d", *c.MinSize)
	}
	if c.MaxSize != nil && *c.MaxSize < 0 {
		return apperrors.Contract(op, "max size must be >= 0, got %d", *c.MaxSize)
	}
	if c.MinSize != nil && c.MaxSize != nil && *c.MinSize > *c.MaxSize {
		return apperrors.Contract(op, "min size %d exceeds max size %d", *c.MinSize, *c.MaxSize)
	}
	if c.ModifiedAfter != nil && c.ModifiedBefore != nil && c.ModifiedAfter.After(*c.ModifiedBefore) {
		return apperrors.Contract(op, "modified_after is later than modified_before")
	}
	if c.Limit < 0 {
		return apperrors.Contract(op, "limit must be >= 0, got %d", c.Limit)
	}
	return nil
}

// NormalizedExtensions returns the distinct normalized extensions of c
func (c Criteria) NormalizedExtensions() []string {
	seen := make(map[string]bool, len(c.Extensions))
	exts := make([]string, 0, len(c.Extensions))
	for _, e := range c.Extensions {
		n := NormalizeExtension(e)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		exts = append(exts, n)
	}
	return exts
}

// directoryPrefix returns dir with exactly one trailing separator, so
// "/a/b" never matches "/a/bc/file".
func directoryPrefix(dir string) string {
	dir = filepath.Clean(dir)
	if strings.HasSuffix(dir, string(os.PathSeparator)) {
		return dir
	}
	return dir + string(os.PathSeparator)
}

// buildCriteriaQuery translates criteria into a SELECT over files
func buildCriteriaQuery(c Criteria) (string, []any, error) {
	if err := c.Validate(); err != nil {
		return "", nil, err
	}

	var (
		where []string
		args  []any
	)

	if c.Directory != "" {
		prefix := directoryPrefix(c.Directory)
		// substr avoids LIKE wildcard escaping for paths containing % or _
		where = append(where, "substr(absolute_path, 1, length(?)) = ?")
		args = append(args, prefix, prefix)
	}

	if exts := c.NormalizedExtensions(); len(exts) > 0 {
		where = append(where, "extension IN ("+placeholders(len(exts))+")")
		for _, e := range exts {
			args = append(args, e)
		}
	}

	if c.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(c.Type))
	}
	if c.MinSize != nil {
		where = append(where, "size >= ?")
		args = append(args, *c.MinSize)
	}
	if c.MaxSize != nil {
		where = append(where, "size <= ?")
		args = append(args, *c.MaxSize)
	}
	if c.ModifiedAfter != nil {
		where = append(where, "modified_at >= ?")
		args = append(args, c.ModifiedAfter.UnixNano())
	}
	if c.ModifiedBefore != nil {
		where = append(where, "modified_at <= ?")
		args = append(args, c.ModifiedBefore.UnixNano())
	}
	if c.EmbeddingType != "" {
		where = append(where, "embedding_type = ?")
		args = append(args, string(c.EmbeddingType))
	}

	query := "SELECT " + fileColumns + " FROM files"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if c.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, c.Limit)
	}
	return query, args, nil
}
