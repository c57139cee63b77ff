// Package vectorindex stores embedding vectors under opaque int64 handles and
// ranks them against a query vector.
//
// Two implementations share the Index interface:
//
//   - Flat: exact brute force over cosine, l2 or inner product. Used for the
//     throwaway indexes built over a search's candidate set, and as a small
//     persistent index.
//   - HNSW: an approximate graph index (github.com/coder/hnsw) over cosine or
//     l2. The default persistent index.
//
// Scores are always "higher is better": cosine similarity, the raw inner
// product, or 1/(1+distance) for l2. Results are ordered by descending score
// with ties broken by ascending handle.
//
// Neither index deletes vectors. A handle whose record was re-embedded or
// removed simply stops resolving in the catalog.
package vectorindex
