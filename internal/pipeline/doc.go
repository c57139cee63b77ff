// Package pipeline answers file-finding queries in stages.
//
//	Structural filter -> Semantic search? -> LLM filter? -> Merge
//
// The structural filter queries the catalog with the request's criteria. An
// empty candidate set ends the search. The semantic stage ranks the
// candidates by vector similarity; the LLM stage shows the model the
// candidates' names and maps its answer back to records. Both optional
// stages see the same structural candidates, never each other's output.
//
// Merge keeps semantic results in rank order and appends LLM-only results in
// the model's order, truncated to TopK. With neither stage enabled the
// structural candidates themselves are returned, truncated.
//
// Failure policy: catalog and contract errors abort the invocation; a failing
// embedding or language model degrades only its stage to an empty result,
// which is logged and recorded in history.
//
// Every stage appends a HistoryEntry, followed by one "multi" entry for the
// merged result.
package pipeline
