package pipeline

import (
	"path/filepath"

	"github.com/dshills/lfind/internal/storage"
)

// Merge takes semantic results in rank order, appends LLM results not already
// present (by id) in LLM order, and truncates to topK. topK <= 0 keeps
// everything.
func Merge(semantic, llm []*storage.FileRecord, topK int) []*storage.FileRecord {
	seen := make(map[int64]struct{}, len(semantic)+len(llm))
	merged := make([]*storage.FileRecord, 0, len(semantic)+len(llm))

	for _, list := range [][]*storage.FileRecord{semantic, llm} {
		for _, rec := range list {
			if _, dup := seen[rec.ID]; dup {
				continue
			}
			seen[rec.ID] = struct{}{}
			merged = append(merged, rec)
		}
	}

	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

// Labels returns the name shown to the language model for each candidate:
// the base name when no other candidate shares it, otherwise the path
// relative to directory, or the absolute path when there is no directory.
func Labels(candidates []*storage.FileRecord, directory string) []string {
	counts := make(map[string]int, len(candidates))
	for _, rec := range candidates {
		counts[rec.Name]++
	}

	labels := make([]string, len(candidates))
	for i, rec := range candidates {
		switch {
		case counts[rec.Name] == 1:
			labels[i] = rec.Name
		case directory != "":
			if rel, err := filepath.Rel(directory, rec.AbsolutePath); err == nil {
				labels[i] = rel
				continue
			}
			labels[i] = rec.AbsolutePath
		default:
			labels[i] = rec.AbsolutePath
		}
	}
	return labels
}

// MatchNames resolves the model's answer lines back to candidates. A line
// matches a label first, then an absolute path, then a base name (lowest id
// wins). Each record is returned at most once, in answer order; unknown
// lines are dropped.
func MatchNames(lines []string, candidates []*storage.FileRecord, labels []string) []*storage.FileRecord {
	byLabel := make(map[string]*storage.FileRecord, len(candidates))
	byPath := make(map[string]*storage.FileRecord, len(candidates))
	byName := make(map[string]*storage.FileRecord, len(candidates))

	for i, rec := range candidates {
		if i < len(labels) {
			byLabel[labels[i]] = rec
		}
		byPath[rec.AbsolutePath] = rec
		if prev, ok := byName[rec.Name]; !ok || rec.ID < prev.ID {
			byName[rec.Name] = rec
		}
	}

	seen := make(map[int64]struct{})
	var matched []*storage.FileRecord
	for _, line := range lines {
		rec, ok := byLabel[line]
		if !ok {
			rec, ok = byPath[line]
		}
		if !ok {
			rec, ok = byName[line]
		}
		if !ok {
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		matched = append(matched, rec)
	}
	return matched
}
