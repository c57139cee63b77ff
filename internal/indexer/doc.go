// Package indexer runs synchronization passes that keep the file catalog in
// step with a directory tree.
//
// # Basic Usage
//
//	idx := indexer.New(store, indexer.Options{
//	    Embedder:   emb,
//	    Index:      index,
//	    Builder:    document.NewBuilder(extractor.NewDefaultRegistry(logger), 0, logger),
//	    VectorPath: "/var/lib/lfind/vectors.hnsw",
//	    LockPath:   indexer.LockPathFor("/var/lib/lfind/catalog.db"),
//	})
//
//	stats, err := idx.Sync(ctx, "/home/me/documents", &indexer.Config{
//	    IgnorePatterns: []string{".*", "node_modules"},
//	})
//
// # Sync Pass
//
// One pass executes these stages in order:
//
//  1. Lock: an in-process IndexLock and a cross-process file lock. A busy
//     lock fails with ErrSyncInProgress rather than waiting.
//  2. Reset: the store opens a new pass; every record becomes unseen.
//  3. Walk: filepath.WalkDir over the root. Base names matching an ignore
//     pattern are skipped, and ignored directories are pruned. Each path is
//     touched, in transactions of Config.BatchSize.
//  4. Sweep: records not touched in this pass are deleted. The sweep runs only
//     when the walk and every touch succeeded, so an aborted pass never
//     deletes live records.
//  5. Embed: files without an embedding (new or changed since the last pass)
//     get one. Documents are built by a bounded errgroup, embedded in batches,
//     added to the vector index and recorded in the store. The index is saved
//     once at the end.
//
// # Error Handling
//
// Store failures and invalid configuration abort the pass. Paths that cannot
// be read and embedding failures are counted in Statistics and logged, and
// the affected files stay pending for the next pass.
package indexer
