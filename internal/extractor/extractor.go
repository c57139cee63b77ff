package extractor

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DefaultMaxChars bounds the text taken from a single file
const DefaultMaxChars = 10000

// Document is the text extracted from one file
type Document struct {
	Path      string
	Text      string
	Truncated bool
}

// Extractor turns a file of some format into plain text
type Extractor interface {
	Name() string
	CanExtract(path string) bool
	Extract(ctx context.Context, path string, maxChars int) (*Document, error)
}

// Override records an extension claim displaced by a later registration
type Override struct {
	Extension string
	Previous  string
	Current   string
}

// Registry maps file extensions to extractors. Extensions are stored
// lower-cased with a leading dot.
type Registry struct {
	mu     sync.RWMutex
	byExt  map[string]Extractor
	order  []Extractor // registration order, used for probing
	logger *slog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byExt:  make(map[string]Extractor),
		logger: logger,
	}
}

// NewDefaultRegistry returns a registry holding the text and PDF extractors
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(NewTextExtractor(), TextExtensions...)
	r.Register(NewPDFExtractor(DefaultPDFPages), ".pdf")
	return r
}

// Register claims extensions for ex. A later registration for the same
// extension wins; every displaced claim is logged and returned.
func (r *Registry) Register(ex Extractor, extensions ...string) []Override {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.remember(ex)

	var overrides []Override
	for _, ext := range extensions {
		ext = normalizeExtension(ext)
		if ext == "" {
			continue
		}
		if prev, ok := r.byExt[ext]; ok && prev != ex {
			o := Override{Extension: ext, Previous: prev.Name(), Current: ex.Name()}
			overrides = append(overrides, o)
			r.logger.Warn("extension already handled, overriding",
				slog.String("extension", ext),
				slog.String("previous", o.Previous),
				slog.String("current", o.Current))
		}
		r.byExt[ext] = ex
	}
	return overrides
}

// RegisterProbe adds an extractor that claims no extension and is only
// consulted through CanExtract
func (r *Registry) RegisterProbe(ex Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remember(ex)
}

func (r *Registry) remember(ex Extractor) {
	for _, known := range r.order {
		if known == ex {
			return
		}
	}
	r.order = append(r.order, ex)
}

// Resolve finds the extractor for path: by extension first, then by asking
// each registered extractor in registration order
func (r *Registry) Resolve(path string) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ex, ok := r.byExt[normalizeExtension(filepath.Ext(path))]; ok {
		return ex, true
	}
	for _, ex := range r.order {
		if ex.CanExtract(path) {
			return ex, true
		}
	}
	return nil, false
}

// Extensions lists the claimed extensions, sorted
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Names lists registered extractors in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	for i, ex := range r.order {
		names[i] = ex.Name()
	}
	return names
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
