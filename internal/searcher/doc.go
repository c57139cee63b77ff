// Package searcher ranks a candidate set of catalog records by vector
// similarity to a query.
//
// Two strategies implement Strategy:
//
//   - Scoped (fewer candidates than the threshold): fetch each candidate's
//     stored vector, or re-embed it, build a throwaway exact index over
//     exactly those vectors and rank the whole set. The ranking is exact over
//     the candidates.
//   - PostFilter (threshold or more candidates, or no candidate set): ask
//     the persistent index for k × oversample neighbours, resolve them to
//     records and keep those in the candidate set. Latency does not depend
//     on the candidate count, but fewer than k results may come back.
//
// # Basic Usage
//
//	s, err := searcher.New(store, emb, index, builder, searcher.Options{}, logger)
//	if err != nil {
//	    return err
//	}
//
//	results, err := s.Search(ctx, "tax documents", candidates, 10)
//	for _, r := range results {
//	    fmt.Printf("%.3f %s\n", r.Score, r.Record.AbsolutePath)
//	}
//
// # Ordering
//
// Both strategies order results by descending score, ties broken by
// ascending record id.
//
// # Errors
//
// A failed query embedding is a collaborator error (apperrors.KindCollaborator);
// a catalog failure is a store error. Candidates whose own embedding cannot
// be produced are skipped.
package searcher
