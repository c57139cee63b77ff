// Package extractor pulls plain text out of files so they can be embedded by
// content rather than by name.
//
// A Registry maps extensions to Extractors. Registration is last-wins: a
// later Register call for an extension replaces the earlier claim and the
// replacement is logged. Files whose extension is unclaimed are offered to
// every registered extractor in turn through CanExtract.
//
//	reg := extractor.NewDefaultRegistry(logger)
//	if ex, ok := reg.Resolve(path); ok {
//	    doc, err := ex.Extract(ctx, path, extractor.DefaultMaxChars)
//	}
package extractor
