//go:build !cgo_sqlite

package storage

// Default build: pure Go SQLite, no C compiler required.
//
//   CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver registered by the import above
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
