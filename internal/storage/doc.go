// Package storage provides the SQLite-backed metadata catalog of indexed
// filesystem entries.
//
// The catalog manages:
//   - One FileRecord per absolute path (file or directory)
//   - Synchronization passes used for mark-and-sweep
//   - References from records into the vector index
//
// # Database Schema
//
// Tables:
//   - files: path, type, extension, size, timestamps (unix nanoseconds),
//     embedding handle and type, and the pass that last saw the path
//   - sync_passes: one row per synchronization pass
//   - schema_version: applied migrations
//
// # Synchronization
//
// A pass opens with ResetSeenFlags, touches every observed path and ends with
// Sweep, which deletes whatever the pass did not touch:
//
//	pass, err := db.ResetSeenFlags(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, path := range paths {
//	    if _, err := db.TouchPath(ctx, pass, path); err != nil {
//	        return err
//	    }
//	}
//	deleted, err := db.Sweep(ctx, pass)
//
// Opening a newer pass abandons older ones. Sweeping an abandoned pass is
// rejected, so a slow writer can never delete records a newer pass has seen.
//
// # Transactions
//
// Touches are batched per transaction:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tx.Rollback() }()
//
//	for _, path := range batch {
//	    _, _ = tx.TouchPath(ctx, pass, path)
//	}
//	return tx.Commit()
//
// # Queries
//
//	records, err := db.Query(ctx, storage.Criteria{
//	    Directory:  "/home/me/notes",
//	    Extensions: []string{"md", ".TXT"},
//	    Type:       storage.TypeFile,
//	})
//
// # Build Tags
//
// Pure Go build (default) uses modernc.org/sqlite:
//
//	CGO_ENABLED=0 go build ./...
//
// CGO build (cgo_sqlite tag) uses github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./...
package storage
