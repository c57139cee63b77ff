package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dshills/lfind/internal/apperrors"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrStalePass is returned when sweeping a pass that is no longer the
	// most recent open pass
	ErrStalePass = errors.New("stale sync pass")
)

// maxInClause bounds the number of bound parameters per IN (...) list
const maxInClause = 500

const fileColumns = `id, name, absolute_path, type, extension, size, created_at, modified_at,
	last_indexed_at, embedding_id, embedding_type, seen_pass`

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db   *sql.DB
	stat func(string) (os.FileInfo, error)
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// One writer; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (creating if needed) the catalog at dbPath
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, apperrors.Store("storage.Open", fmt.Errorf("failed to create database directory: %w", err))
		}
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, apperrors.Store("storage.Open", fmt.Errorf("failed to open database: %w", err))
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, apperrors.Store("storage.Open", fmt.Errorf("failed to apply migrations: %w", err))
	}

	return &SQLiteStorage{db: db, stat: os.Stat}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Store("storage.BeginTx", err)
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// withTx runs fn in a transaction, committing on success
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return apperrors.Store("storage.Commit", err)
	}
	return nil
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Pass operations

func (s *SQLiteStorage) resetSeenFlagsWithQuerier(ctx context.Context, q querier) (Pass, error) {
	now := time.Now()
	result, err := q.ExecContext(ctx, `INSERT INTO sync_passes (started_at) VALUES (?)`, now.UnixNano())
	if err != nil {
		return Pass{}, fmt.Errorf("failed to open sync pass: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Pass{}, err
	}

	// Older passes that never swept can no longer do so.
	_, err = q.ExecContext(ctx,
		`UPDATE sync_passes SET abandoned = 1 WHERE id < ? AND finished_at IS NULL`, id)
	if err != nil {
		return Pass{}, fmt.Errorf("failed to abandon older passes: %w", err)
	}

	return Pass{ID: id, StartedAt: now}, nil
}

// ResetSeenFlags opens a new pass. Every record is unseen in the new pass.
func (s *SQLiteStorage) ResetSeenFlags(ctx context.Context) (Pass, error) {
	var pass Pass
	err := s.withTx(ctx, func(q querier) error {
		var err error
		pass, err = s.resetSeenFlagsWithQuerier(ctx, q)
		return err
	})
	if err != nil {
		return Pass{}, storeErr("storage.ResetSeenFlags", err)
	}
	return pass, nil
}

func (s *SQLiteStorage) sweepWithQuerier(ctx context.Context, q querier, pass Pass) (int, error) {
	var latestID int64
	var finishedAt sql.NullInt64
	var abandoned int
	err := q.QueryRowContext(ctx,
		`SELECT id, finished_at, abandoned FROM sync_passes ORDER BY id DESC LIMIT 1`,
	).Scan(&latestID, &finishedAt, &abandoned)
	if err == sql.ErrNoRows {
		return 0, apperrors.ContractWrap("storage.Sweep", ErrStalePass)
	}
	if err != nil {
		return 0, apperrors.Store("storage.Sweep", fmt.Errorf("failed to read sync pass: %w", err))
	}
	if latestID != pass.ID || finishedAt.Valid || abandoned != 0 {
		return 0, apperrors.ContractWrap("storage.Sweep",
			fmt.Errorf("pass %d (latest open is %d): %w", pass.ID, latestID, ErrStalePass))
	}

	result, err := q.ExecContext(ctx,
		`DELETE FROM files WHERE seen_pass IS NULL OR seen_pass <> ?`, pass.ID)
	if err != nil {
		return 0, apperrors.Store("storage.Sweep", fmt.Errorf("failed to delete unseen files: %w", err))
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Store("storage.Sweep", err)
	}

	_, err = q.ExecContext(ctx,
		`UPDATE sync_passes SET finished_at = ?, deleted = ? WHERE id = ?`,
		time.Now().UnixNano(), deleted, pass.ID)
	if err != nil {
		return 0, apperrors.Store("storage.Sweep", fmt.Errorf("failed to close sync pass: %w", err))
	}

	return int(deleted), nil
}

// Sweep deletes every record not seen in pass and closes the pass
func (s *SQLiteStorage) Sweep(ctx context.Context, pass Pass) (int, error) {
	var deleted int
	err := s.withTx(ctx, func(q querier) error {
		var err error
		deleted, err = s.sweepWithQuerier(ctx, q, pass)
		return err
	})
	if err != nil {
		return 0, storeErr("storage.Sweep", err)
	}
	return deleted, nil
}

// Touch operations

func (s *SQLiteStorage) touchWithQuerier(ctx context.Context, q querier, pass Pass, obs Observation) (TouchOutcome, error) {
	if pass.ID <= 0 {
		return TouchSkipped, apperrors.Contract("storage.Touch", "touch requires an open pass")
	}
	if !filepath.IsAbs(obs.AbsolutePath) {
		return TouchSkipped, apperrors.Contract("storage.Touch", "path %q is not absolute", obs.AbsolutePath)
	}
	if !obs.Type.Valid() {
		return TouchSkipped, apperrors.Contract("storage.Touch", "unknown file type %q", obs.Type)
	}

	name := obs.Name
	if name == "" {
		name = filepath.Base(obs.AbsolutePath)
	}
	ext := ""
	if obs.Type == TypeFile {
		ext = ExtensionOf(name)
	}
	createdAt := obs.CreatedAt
	if createdAt.IsZero() {
		createdAt = obs.ModifiedAt
	}
	now := time.Now().UnixNano()

	var (
		id         int64
		size       int64
		fileType   string
		modifiedAt int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, size, type, modified_at FROM files WHERE absolute_path = ?`,
		obs.AbsolutePath,
	).Scan(&id, &size, &fileType, &modifiedAt)

	if err == sql.ErrNoRows {
		_, err = q.ExecContext(ctx, `
			INSERT INTO files (name, absolute_path, type, extension, size, created_at, modified_at,
			                   last_indexed_at, seen_pass)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, name, obs.AbsolutePath, string(obs.Type), ext, obs.Size,
			createdAt.UnixNano(), obs.ModifiedAt.UnixNano(), now, pass.ID)
		if err != nil {
			return TouchSkipped, apperrors.Store("storage.Touch", fmt.Errorf("failed to insert file: %w", err))
		}
		return TouchChanged, nil
	}
	if err != nil {
		return TouchSkipped, apperrors.Store("storage.Touch", fmt.Errorf("failed to read file: %w", err))
	}

	changed := size != obs.Size ||
		FileType(fileType) != obs.Type ||
		!sameModTime(time.Unix(0, modifiedAt), obs.ModifiedAt)

	if !changed {
		_, err = q.ExecContext(ctx, `UPDATE files SET seen_pass = ? WHERE id = ?`, pass.ID, id)
		if err != nil {
			return TouchSkipped, apperrors.Store("storage.Touch", fmt.Errorf("failed to mark file seen: %w", err))
		}
		return TouchUnchanged, nil
	}

	_, err = q.ExecContext(ctx, `
		UPDATE files
		SET name = ?, type = ?, extension = ?, size = ?, created_at = ?, modified_at = ?,
		    last_indexed_at = ?, embedding_id = NULL, embedding_type = NULL, seen_pass = ?
		WHERE id = ?
	`, name, string(obs.Type), ext, obs.Size, createdAt.UnixNano(), obs.ModifiedAt.UnixNano(),
		now, pass.ID, id)
	if err != nil {
		return TouchSkipped, apperrors.Store("storage.Touch", fmt.Errorf("failed to update file: %w", err))
	}
	return TouchChanged, nil
}

func (s *SQLiteStorage) Touch(ctx context.Context, pass Pass, obs Observation) (TouchOutcome, error) {
	return s.touchWithQuerier(ctx, s.querier(), pass, obs)
}

// observe stats path. A false result means the path vanished or is unreadable.
func (s *SQLiteStorage) observe(path string) (Observation, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Observation{}, false
	}
	info, err := s.stat(abs)
	if err != nil {
		return Observation{}, false
	}

	obs := Observation{
		Name:         info.Name(),
		AbsolutePath: abs,
		Type:         TypeFile,
		Size:         info.Size(),
		ModifiedAt:   info.ModTime(),
		CreatedAt:    info.ModTime(),
	}
	if info.IsDir() {
		obs.Type = TypeDirectory
		obs.Size = 0
	}
	return obs, true
}

func (s *SQLiteStorage) touchPathWithQuerier(ctx context.Context, q querier, pass Pass, path string) (TouchOutcome, error) {
	obs, ok := s.observe(path)
	if !ok {
		return TouchSkipped, nil
	}
	return s.touchWithQuerier(ctx, q, pass, obs)
}

// TouchPath stats path and touches it. Paths that cannot be stat'd are
// reported as TouchSkipped without error.
func (s *SQLiteStorage) TouchPath(ctx context.Context, pass Pass, path string) (TouchOutcome, error) {
	return s.touchPathWithQuerier(ctx, s.querier(), pass, path)
}

// Lookup operations

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*FileRecord, error) {
	var (
		rec           FileRecord
		fileType      string
		createdAt     int64
		modifiedAt    int64
		lastIndexedAt int64
		embeddingID   sql.NullInt64
		embeddingType sql.NullString
		seenPass      sql.NullInt64
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.AbsolutePath, &fileType, &rec.Extension, &rec.Size,
		&createdAt, &modifiedAt, &lastIndexedAt, &embeddingID, &embeddingType, &seenPass)
	if err != nil {
		return nil, err
	}

	rec.Type = FileType(fileType)
	rec.CreatedAt = time.Unix(0, createdAt)
	rec.ModifiedAt = time.Unix(0, modifiedAt)
	rec.LastIndexedAt = time.Unix(0, lastIndexedAt)
	if embeddingID.Valid {
		handle := embeddingID.Int64
		rec.EmbeddingID = &handle
		rec.EmbeddingType = EmbeddingType(embeddingType.String)
	}
	if seenPass.Valid {
		rec.SeenPass = seenPass.Int64
	}
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]*FileRecord, error) {
	defer func() { _ = rows.Close() }()

	records := make([]*FileRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStorage) queryWithQuerier(ctx context.Context, q querier, criteria Criteria) ([]*FileRecord, error) {
	query, args, err := buildCriteriaQuery(criteria)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Store("storage.Query", fmt.Errorf("failed to query files: %w", err))
	}
	records, err := collectRecords(rows)
	if err != nil {
		return nil, apperrors.Store("storage.Query", err)
	}
	return records, nil
}

// Query returns the records matching every set predicate of criteria, ordered by id
func (s *SQLiteStorage) Query(ctx context.Context, criteria Criteria) ([]*FileRecord, error) {
	return s.queryWithQuerier(ctx, s.querier(), criteria)
}

func (s *SQLiteStorage) getByIDWithQuerier(ctx context.Context, q querier, id int64) (*FileRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Store("storage.GetByID", err)
	}
	return rec, nil
}

func (s *SQLiteStorage) GetByID(ctx context.Context, id int64) (*FileRecord, error) {
	return s.getByIDWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) getByPathWithQuerier(ctx context.Context, q querier, absolutePath string) (*FileRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE absolute_path = ?`, absolutePath)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Store("storage.GetByPath", err)
	}
	return rec, nil
}

func (s *SQLiteStorage) GetByPath(ctx context.Context, absolutePath string) (*FileRecord, error) {
	return s.getByPathWithQuerier(ctx, s.querier(), absolutePath)
}

func (s *SQLiteStorage) getByVectorHandlesWithQuerier(ctx context.Context, q querier, handles []int64, embeddingType EmbeddingType) ([]*FileRecord, error) {
	if embeddingType != "" && !embeddingType.Valid() {
		return nil, apperrors.Contract("storage.GetByVectorHandles", "unknown embedding type %q", embeddingType)
	}

	records := make([]*FileRecord, 0, len(handles))
	for start := 0; start < len(handles); start += maxInClause {
		end := start + maxInClause
		if end > len(handles) {
			end = len(handles)
		}
		chunk := handles[start:end]

		args := make([]any, 0, len(chunk)+1)
		for _, h := range chunk {
			args = append(args, h)
		}
		query := `SELECT ` + fileColumns + ` FROM files WHERE embedding_id IN (` + placeholders(len(chunk)) + `)`
		if embeddingType != "" {
			query += ` AND embedding_type = ?`
			args = append(args, string(embeddingType))
		}

		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, apperrors.Store("storage.GetByVectorHandles", fmt.Errorf("failed to resolve handles: %w", err))
		}
		batch, err := collectRecords(rows)
		if err != nil {
			return nil, apperrors.Store("storage.GetByVectorHandles", err)
		}
		records = append(records, batch...)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// GetByVectorHandles resolves vector-index handles to records. Handles that
// no longer belong to a record are dropped.
func (s *SQLiteStorage) GetByVectorHandles(ctx context.Context, handles []int64, embeddingType EmbeddingType) ([]*FileRecord, error) {
	return s.getByVectorHandlesWithQuerier(ctx, s.querier(), handles, embeddingType)
}

// Embedding operations

func (s *SQLiteStorage) setEmbeddingWithQuerier(ctx context.Context, q querier, id, handle int64, embeddingType EmbeddingType) error {
	if !embeddingType.Valid() {
		return apperrors.Contract("storage.SetEmbedding", "unknown embedding type %q", embeddingType)
	}

	result, err := q.ExecContext(ctx,
		`UPDATE files SET embedding_id = ?, embedding_type = ? WHERE id = ?`,
		handle, string(embeddingType), id)
	if err != nil {
		return apperrors.Store("storage.SetEmbedding", fmt.Errorf("failed to set embedding: %w", err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Store("storage.SetEmbedding", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) SetEmbedding(ctx context.Context, id, handle int64, embeddingType EmbeddingType) error {
	return s.setEmbeddingWithQuerier(ctx, s.querier(), id, handle, embeddingType)
}

func (s *SQLiteStorage) clearEmbeddingsWithQuerier(ctx context.Context, q querier, handles []int64) (int, error) {
	cleared := 0
	for start := 0; start < len(handles); start += maxInClause {
		chunk := handles[start:min(start+maxInClause, len(handles))]
		args := make([]any, len(chunk))
		for i, h := range chunk {
			args[i] = h
		}
		result, err := q.ExecContext(ctx,
			`UPDATE files SET embedding_id = NULL, embedding_type = NULL WHERE embedding_id IN (`+placeholders(len(chunk))+`)`,
			args...)
		if err != nil {
			return cleared, apperrors.Store("storage.ClearEmbeddings", fmt.Errorf("failed to clear embeddings: %w", err))
		}
		n, err := result.RowsAffected()
		if err != nil {
			return cleared, apperrors.Store("storage.ClearEmbeddings", err)
		}
		cleared += int(n)
	}
	return cleared, nil
}

// ClearEmbeddings drops every reference to the given vector handles. The
// affected records become pending again.
func (s *SQLiteStorage) ClearEmbeddings(ctx context.Context, handles []int64) (int, error) {
	return s.clearEmbeddingsWithQuerier(ctx, s.querier(), handles)
}

func (s *SQLiteStorage) embeddingMappingsWithQuerier(ctx context.Context, q querier) (map[int64]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT embedding_id, id FROM files WHERE embedding_id IS NOT NULL`)
	if err != nil {
		return nil, apperrors.Store("storage.EmbeddingMappings", err)
	}
	defer func() { _ = rows.Close() }()

	mappings := make(map[int64]int64)
	for rows.Next() {
		var handle, id int64
		if err := rows.Scan(&handle, &id); err != nil {
			return nil, apperrors.Store("storage.EmbeddingMappings", err)
		}
		mappings[handle] = id
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Store("storage.EmbeddingMappings", err)
	}
	return mappings, nil
}

// EmbeddingMappings returns vector handle -> record id for every embedded record
func (s *SQLiteStorage) EmbeddingMappings(ctx context.Context) (map[int64]int64, error) {
	return s.embeddingMappingsWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) listByEmbeddingTypeWithQuerier(ctx context.Context, q querier, embeddingType EmbeddingType) ([]*FileRecord, error) {
	if !embeddingType.Valid() {
		return nil, apperrors.Contract("storage.ListByEmbeddingType", "unknown embedding type %q", embeddingType)
	}
	rows, err := q.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE embedding_type = ? ORDER BY id`, string(embeddingType))
	if err != nil {
		return nil, apperrors.Store("storage.ListByEmbeddingType", err)
	}
	records, err := collectRecords(rows)
	if err != nil {
		return nil, apperrors.Store("storage.ListByEmbeddingType", err)
	}
	return records, nil
}

func (s *SQLiteStorage) ListByEmbeddingType(ctx context.Context, embeddingType EmbeddingType) ([]*FileRecord, error) {
	return s.listByEmbeddingTypeWithQuerier(ctx, s.querier(), embeddingType)
}

func (s *SQLiteStorage) pendingEmbeddingsWithQuerier(ctx context.Context, q querier, limit int) ([]*FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE type = ? AND embedding_id IS NULL ORDER BY id`
	args := []any{string(TypeFile)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Store("storage.PendingEmbeddings", err)
	}
	records, err := collectRecords(rows)
	if err != nil {
		return nil, apperrors.Store("storage.PendingEmbeddings", err)
	}
	return records, nil
}

// PendingEmbeddings lists files without an embedding, oldest id first. A
// non-positive limit returns all of them.
func (s *SQLiteStorage) PendingEmbeddings(ctx context.Context, limit int) ([]*FileRecord, error) {
	return s.pendingEmbeddingsWithQuerier(ctx, s.querier(), limit)
}

// Status

func (s *SQLiteStorage) statsWithQuerier(ctx context.Context, q querier) (*Stats, error) {
	var stats Stats
	err := q.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'file' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'directory' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN embedding_id IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN embedding_type = 'title' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN embedding_type = 'content' THEN 1 ELSE 0 END), 0)
		FROM files
	`).Scan(&stats.Files, &stats.Directories, &stats.Embedded, &stats.TitleEmbeddings, &stats.ContentEmbeddings)
	if err != nil {
		return nil, apperrors.Store("storage.Stats", fmt.Errorf("failed to count files: %w", err))
	}

	var info SyncInfo
	var startedAt, finishedAt int64
	err = q.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, deleted FROM sync_passes
		WHERE finished_at IS NOT NULL
		ORDER BY id DESC LIMIT 1
	`).Scan(&info.PassID, &startedAt, &finishedAt, &info.Deleted)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, apperrors.Store("storage.Stats", fmt.Errorf("failed to read last sync: %w", err))
	default:
		info.StartedAt = time.Unix(0, startedAt)
		info.FinishedAt = time.Unix(0, finishedAt)
		stats.LastSync = &info
	}

	return &stats, nil
}

func (s *SQLiteStorage) Stats(ctx context.Context) (*Stats, error) {
	return s.statsWithQuerier(ctx, s.querier())
}

// storeErr classifies err as a store failure unless it already carries a kind
func storeErr(op string, err error) error {
	if apperrors.KindOf(err) != apperrors.KindUnknown {
		return err
	}
	return apperrors.Store(op, err)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// Transaction delegation

func (t *sqliteTx) ResetSeenFlags(ctx context.Context) (Pass, error) {
	pass, err := t.storage.resetSeenFlagsWithQuerier(ctx, t.tx)
	if err != nil {
		return Pass{}, storeErr("storage.ResetSeenFlags", err)
	}
	return pass, nil
}

func (t *sqliteTx) Touch(ctx context.Context, pass Pass, obs Observation) (TouchOutcome, error) {
	return t.storage.touchWithQuerier(ctx, t.tx, pass, obs)
}

func (t *sqliteTx) TouchPath(ctx context.Context, pass Pass, path string) (TouchOutcome, error) {
	return t.storage.touchPathWithQuerier(ctx, t.tx, pass, path)
}

func (t *sqliteTx) Sweep(ctx context.Context, pass Pass) (int, error) {
	return t.storage.sweepWithQuerier(ctx, t.tx, pass)
}

func (t *sqliteTx) Query(ctx context.Context, criteria Criteria) ([]*FileRecord, error) {
	return t.storage.queryWithQuerier(ctx, t.tx, criteria)
}

func (t *sqliteTx) GetByID(ctx context.Context, id int64) (*FileRecord, error) {
	return t.storage.getByIDWithQuerier(ctx, t.tx, id)
}

func (t *sqliteTx) GetByPath(ctx context.Context, absolutePath string) (*FileRecord, error) {
	return t.storage.getByPathWithQuerier(ctx, t.tx, absolutePath)
}

func (t *sqliteTx) GetByVectorHandles(ctx context.Context, handles []int64, embeddingType EmbeddingType) ([]*FileRecord, error) {
	return t.storage.getByVectorHandlesWithQuerier(ctx, t.tx, handles, embeddingType)
}

func (t *sqliteTx) SetEmbedding(ctx context.Context, id, handle int64, embeddingType EmbeddingType) error {
	return t.storage.setEmbeddingWithQuerier(ctx, t.tx, id, handle, embeddingType)
}

func (t *sqliteTx) ClearEmbeddings(ctx context.Context, handles []int64) (int, error) {
	return t.storage.clearEmbeddingsWithQuerier(ctx, t.tx, handles)
}

func (t *sqliteTx) EmbeddingMappings(ctx context.Context) (map[int64]int64, error) {
	return t.storage.embeddingMappingsWithQuerier(ctx, t.tx)
}

func (t *sqliteTx) ListByEmbeddingType(ctx context.Context, embeddingType EmbeddingType) ([]*FileRecord, error) {
	return t.storage.listByEmbeddingTypeWithQuerier(ctx, t.tx, embeddingType)
}

func (t *sqliteTx) PendingEmbeddings(ctx context.Context, limit int) ([]*FileRecord, error) {
	return t.storage.pendingEmbeddingsWithQuerier(ctx, t.tx, limit)
}

func (t *sqliteTx) Stats(ctx context.Context) (*Stats, error) {
	return t.storage.statsWithQuerier(ctx, t.tx)
}
