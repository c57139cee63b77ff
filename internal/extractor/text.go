package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// TextExtensions are the extensions claimed by the text extractor
var TextExtensions = []string{
	".txt", ".md", ".rst", ".csv", ".json", ".yaml", ".yml", ".toml", ".ini", ".log",
	".py", ".go", ".js", ".ts", ".java", ".c", ".h", ".cpp", ".rs", ".rb", ".sh",
	".html", ".css", ".xml", ".sql",
}

const sniffBytes = 512

// TextExtractor reads plain text files. Input that is not valid UTF-8 is
// decoded as ISO-8859-1.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Name() string { return "text" }

// CanExtract sniffs the head of the file for UTF-8 text without NUL bytes
func (e *TextExtractor) CanExtract(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false
	}
	head := buf[:n]
	if len(head) == 0 || bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	return utf8.Valid(trimPartialRune(head, n == sniffBytes))
}

func (e *TextExtractor) Extract(ctx context.Context, path string, maxChars int) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	// A UTF-8 character is at most 4 bytes
	limit := int64(maxChars) * utf8.UTFMax
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	hitLimit := int64(len(data)) > limit
	if hitLimit {
		data = data[:limit]
	}

	var text string
	if trimmed := trimPartialRune(data, hitLimit); utf8.Valid(trimmed) {
		text = string(trimmed)
	} else {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		text = string(decoded)
	}

	text, truncated := truncateRunes(text, maxChars)
	return &Document{Path: path, Text: text, Truncated: truncated || hitLimit}, nil
}

// trimPartialRune drops an incomplete rune at the end of a buffer that was
// cut at an arbitrary byte
func trimPartialRune(b []byte, cut bool) []byte {
	if !cut {
		return b
	}
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			break
		}
	}
	return b
}

func truncateRunes(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}
