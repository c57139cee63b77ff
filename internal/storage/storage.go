package storage

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// Catalog defines the file catalog operations shared by Storage and Tx
type Catalog interface {
	// Synchronization (mark-and-sweep)
	ResetSeenFlags(ctx context.Context) (Pass, error)
	Touch(ctx context.Context, pass Pass, obs Observation) (TouchOutcome, error)
	TouchPath(ctx context.Context, pass Pass, path string) (TouchOutcome, error)
	Sweep(ctx context.Context, pass Pass) (int, error)

	// Lookups
	Query(ctx context.Context, criteria Criteria) ([]*FileRecord, error)
	GetByID(ctx context.Context, id int64) (*FileRecord, error)
	GetByPath(ctx context.Context, absolutePath string) (*FileRecord, error)
	GetByVectorHandles(ctx context.Context, handles []int64, embeddingType EmbeddingType) ([]*FileRecord, error)

	// Embedding references
	SetEmbedding(ctx context.Context, id, handle int64, embeddingType EmbeddingType) error
	ClearEmbeddings(ctx context.Context, handles []int64) (int, error)
	EmbeddingMappings(ctx context.Context) (map[int64]int64, error)
	ListByEmbeddingType(ctx context.Context, embeddingType EmbeddingType) ([]*FileRecord, error)
	PendingEmbeddings(ctx context.Context, limit int) ([]*FileRecord, error)

	// Status
	Stats(ctx context.Context) (*Stats, error)
}

// Storage is the durable metadata catalog
type Storage interface {
	Catalog

	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Catalog
	Commit() error
	Rollback() error
}

// FileType is the kind of filesystem entry a record describes
type FileType string

const (
	TypeFile      FileType = "file"
	TypeDirectory FileType = "directory"
)

// Valid reports whether t is a known type
func (t FileType) Valid() bool {
	return t == TypeFile || t == TypeDirectory
}

// EmbeddingType names what text an embedding was generated from
type EmbeddingType string

const (
	EmbeddingTitle   EmbeddingType = "title"
	EmbeddingContent EmbeddingType = "content"
)

// Valid reports whether t belongs to the embedding vocabulary
func (t EmbeddingType) Valid() bool {
	return t == EmbeddingTitle || t == EmbeddingContent
}

// FileRecord is one catalog entry per indexed filesystem path
type FileRecord struct {
	ID            int64
	Name          string
	AbsolutePath  string
	Type          FileType
	Extension     string // lower-cased with leading dot; empty when none
	Size          int64
	CreatedAt     time.Time
	ModifiedAt    time.Time
	LastIndexedAt time.Time
	EmbeddingID   *int64 // Nullable, handle into the vector index
	EmbeddingType EmbeddingType
	SeenPass      int64 // Pass epoch that last observed this path
}

// Seen reports whether the record was observed during pass
func (r *FileRecord) Seen(pass Pass) bool {
	return r.SeenPass == pass.ID
}

// HasEmbedding reports whether the record carries a vector handle
func (r *FileRecord) HasEmbedding() bool {
	return r.EmbeddingID != nil
}

// Observation holds freshly observed filesystem attributes for one path
type Observation struct {
	Name         string
	AbsolutePath string
	Type         FileType
	Size         int64
	ModifiedAt   time.Time
	CreatedAt    time.Time
}

// Pass identifies one synchronization pass. Records touched during the pass
// carry its ID; everything else is swept.
type Pass struct {
	ID        int64
	StartedAt time.Time
}

// TouchOutcome reports what Touch did with an observation
type TouchOutcome int

const (
	TouchUnchanged TouchOutcome = iota
	TouchChanged
	TouchSkipped
)

func (o TouchOutcome) String() string {
	switch o {
	case TouchChanged:
		return "changed"
	case TouchUnchanged:
		return "unchanged"
	case TouchSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Criteria selects records. All set predicates are AND-ed; zero values are
// ignored.
type Criteria struct {
	Directory      string   // absolute directory; matches paths under it
	Extensions     []string // any of, case-insensitive, dot optional
	Type           FileType
	MinSize        *int64 // inclusive
	MaxSize        *int64 // inclusive
	ModifiedAfter  *time.Time
	ModifiedBefore *time.Time
	EmbeddingType  EmbeddingType
	Limit          int
}

// Stats summarizes the catalog
type Stats struct {
	Files             int
	Directories       int
	Embedded          int
	TitleEmbeddings   int
	ContentEmbeddings int
	LastSync          *SyncInfo
}

// SyncInfo describes the most recent completed pass
type SyncInfo struct {
	PassID     int64
	StartedAt  time.Time
	FinishedAt time.Time
	Deleted    int
}

// NormalizeExtension lower-cases ext and adds a leading dot
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// ExtensionOf returns the normalized extension of name, or "" for none
func ExtensionOf(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		// ".bashrc" has no extension, it is a dotfile name
		return ""
	}
	return NormalizeExtension(ext)
}

// sameModTime compares modification times at whole-second precision in UTC,
// since sub-second digits do not survive every serialization path.
func sameModTime(a, b time.Time) bool {
	return a.UTC().Truncate(time.Second).Equal(b.UTC().Truncate(time.Second))
}
