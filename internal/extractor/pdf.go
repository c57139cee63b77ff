package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultPDFPages is how many leading pages are read from a PDF
const DefaultPDFPages = 5

// PDFExtractor reads the plain text of the first pages of a PDF
type PDFExtractor struct {
	maxPages int
}

func NewPDFExtractor(maxPages int) *PDFExtractor {
	if maxPages <= 0 {
		maxPages = DefaultPDFPages
	}
	return &PDFExtractor{maxPages: maxPages}
}

func (e *PDFExtractor) Name() string { return "pdf" }

func (e *PDFExtractor) CanExtract(path string) bool {
	return normalizeExtension(filepath.Ext(path)) == ".pdf"
}

func (e *PDFExtractor) Extract(ctx context.Context, path string, maxChars int) (*Document, error) {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	total := r.NumPage()
	pages := total
	if pages > e.maxPages {
		pages = e.maxPages
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d of %s: %w", i, path, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	text, truncated := truncateRunes(strings.TrimSpace(sb.String()), maxChars)
	return &Document{Path: path, Text: text, Truncated: truncated || pages < total}, nil
}
