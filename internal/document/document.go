// Package document decides what text represents a catalog record in the
// vector index.
//
// A file whose content can be extracted is embedded by content, prefixed
// with its name. Anything else is embedded by a title built from its name.
// The indexer and the scoped search strategy share one Builder so that a
// vector recomputed at query time matches the one stored at index time.
package document

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/dshills/lfind/internal/extractor"
	"github.com/dshills/lfind/internal/storage"
)

// ErrNotEmbeddable is returned for records that never get an embedding
var ErrNotEmbeddable = errors.New("record is not embeddable")

// Document is the text to embed for one record
type Document struct {
	Text string
	Type storage.EmbeddingType
}

// Builder builds embedding text from records
type Builder struct {
	registry *extractor.Registry
	maxChars int
	logger   *slog.Logger
}

// NewBuilder creates a builder. A nil registry embeds every file by title.
func NewBuilder(registry *extractor.Registry, maxChars int, logger *slog.Logger) *Builder {
	if maxChars <= 0 {
		maxChars = extractor.DefaultMaxChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{registry: registry, maxChars: maxChars, logger: logger}
}

// Build returns the content document when the file's text can be
// extracted, otherwise the title document
func (b *Builder) Build(ctx context.Context, rec *storage.FileRecord) (Document, error) {
	if rec.Type == storage.TypeDirectory {
		return Document{}, ErrNotEmbeddable
	}
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	if b.registry != nil {
		if ex, ok := b.registry.Resolve(rec.AbsolutePath); ok {
			doc, err := ex.Extract(ctx, rec.AbsolutePath, b.maxChars)
			switch {
			case err != nil && ctx.Err() != nil:
				return Document{}, ctx.Err()
			case err != nil:
				b.logger.Debug("extraction failed, embedding by title",
					slog.String("path", rec.AbsolutePath),
					slog.String("extractor", ex.Name()),
					slog.String("error", err.Error()))
			case strings.TrimSpace(doc.Text) != "":
				return Document{
					Text: rec.Name + "\n" + doc.Text,
					Type: storage.EmbeddingContent,
				}, nil
			}
		}
	}

	return Document{Text: TitleText(rec.Name), Type: storage.EmbeddingTitle}, nil
}

var titleReplacer = strings.NewReplacer("_", " ", "-", " ", ".", " ")

// TitleText expands a file name into words, keeping the original name so
// exact-name queries still match
func TitleText(name string) string {
	words := strings.Join(strings.Fields(titleReplacer.Replace(name)), " ")
	if words == "" {
		return name
	}
	return words + " " + name
}
