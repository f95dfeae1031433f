package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore is the relational source of truth for manuals, chunks, and
// page images. It also hosts the chunks_fts table used by FTSIndex.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (or creates) the manual database at path and applies
// the schema. An empty path opens an in-memory database for testing.
func OpenSQLite(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" || path == ":memory:" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, amerrors.PersistenceError("failed to open database", err)
	}

	// Single connection: writers are serialized and an in-memory database
	// stays on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite, so pragmas are
	// applied as statements.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, amerrors.New(amerrors.ErrCodeSchema, "failed to set pragma", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, amerrors.New(amerrors.ErrCodeSchema, "failed to initialize schema", err)
	}

	slog.Debug("sqlite_store_opened", slog.String("path", dsn))
	return &SQLiteStore{db: db, path: path}, nil
}

// DB exposes the underlying handle for indexes that live in the same file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Path returns the database path, empty for in-memory stores.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertManual inserts a manual or refreshes the attributes of the
// existing one with the same file name, returning its id. The single
// ON CONFLICT statement makes concurrent calls for one file name safe.
func (s *SQLiteStore) UpsertManual(ctx context.Context, in ManualInput) (int64, error) {
	if strings.TrimSpace(in.FileName) == "" {
		return 0, amerrors.ValidationError("manual file name is required", nil)
	}
	models := in.Models
	if models == nil {
		models = []string{}
	}
	modelJSON, err := json.Marshal(models)
	if err != nil {
		return 0, fmt.Errorf("failed to encode model list: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO manuals (file_name, model_list, language, title, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(file_name) DO UPDATE SET
			model_list  = excluded.model_list,
			language    = excluded.language,
			title       = excluded.title,
			created_at  = excluded.created_at,
			ingested_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		RETURNING id`,
		in.FileName, string(modelJSON), in.Language, in.Title, in.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, amerrors.PersistenceError("failed to upsert manual", err).
			WithDetail("file_name", in.FileName)
	}
	return id, nil
}

// ManualByFileName returns the manual with the given file name, or nil.
func (s *SQLiteStore) ManualByFileName(ctx context.Context, fileName string) (*Manual, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, file_name, model_list, language, title, created_at, ingested_at
		FROM manuals WHERE file_name = ?`, fileName)
	m, err := scanManual(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, amerrors.PersistenceError("failed to load manual", err)
	}
	return m, nil
}

// ListManuals returns all manuals ordered by id.
func (s *SQLiteStore) ListManuals(ctx context.Context) ([]*Manual, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_name, model_list, language, title, created_at, ingested_at
		FROM manuals ORDER BY id`)
	if err != nil {
		return nil, amerrors.PersistenceError("failed to list manuals", err)
	}
	defer rows.Close()

	var manuals []*Manual
	for rows.Next() {
		m, err := scanManual(rows)
		if err != nil {
			return nil, amerrors.PersistenceError("failed to scan manual", err)
		}
		manuals = append(manuals, m)
	}
	return manuals, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanManual(r rowScanner) (*Manual, error) {
	var (
		m          Manual
		modelJSON  string
		ingestedAt string
	)
	if err := r.Scan(&m.ID, &m.FileName, &modelJSON, &m.Language, &m.Title, &m.CreatedAt, &ingestedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(modelJSON), &m.Models); err != nil {
		return nil, fmt.Errorf("decode model list for %s: %w", m.FileName, err)
	}
	if t, err := time.Parse(time.RFC3339, ingestedAt); err == nil {
		m.IngestedAt = t
	}
	return &m, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertChunk persists one chunk and returns its id. Content that is
// empty after trimming is rejected. Chunks are not deduplicated.
func (s *SQLiteStore) InsertChunk(ctx context.Context, in ChunkInput) (int64, error) {
	return insertChunk(ctx, s.db, in)
}

func insertChunk(ctx context.Context, db execer, in ChunkInput) (int64, error) {
	if strings.TrimSpace(in.Content) == "" {
		return 0, amerrors.New(amerrors.ErrCodeEmptyContent, "chunk content is empty", nil).
			WithDetail("page", fmt.Sprint(in.Page))
	}
	meta := in.Meta
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("failed to encode chunk meta: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO chunks (manual_id, section_id, page, content, meta)
		VALUES (?, ?, ?, ?, ?)`,
		in.ManualID, nullString(in.SectionID), nullPage(in.Page), in.Content, string(metaJSON))
	if err != nil {
		return 0, amerrors.PersistenceError("failed to insert chunk", err).
			WithDetail("manual_id", fmt.Sprint(in.ManualID))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, amerrors.PersistenceError("failed to read chunk id", err)
	}
	return id, nil
}

// InsertChunks persists chunks in one transaction and returns their ids
// in input order. If any chunk is rejected, none is stored.
func (s *SQLiteStore) InsertChunks(ctx context.Context, chunks []ChunkInput) ([]int64, error) {
	_, ids, err := s.writeChunks(ctx, nil, chunks)
	return ids, err
}

// PageSpan is an inclusive range of 1-based page numbers.
type PageSpan struct {
	From int
	To   int
}

// ReplacePageChunks deletes the manual's chunks whose page lies in span
// and inserts chunks, in one transaction. Chunks on other pages are kept.
// It returns the deleted ids so callers can drop them from search
// indexes once the transaction has committed. On error nothing changes.
func (s *SQLiteStore) ReplacePageChunks(ctx context.Context, manualID int64, span PageSpan, chunks []ChunkInput) ([]int64, error) {
	if span.From <= 0 || span.To < span.From {
		return nil, amerrors.New(amerrors.ErrCodeInvalidRange,
			fmt.Sprintf("invalid page span %d-%d", span.From, span.To), nil)
	}
	removed, _, err := s.writeChunks(ctx, &replaceScope{manualID: manualID, span: span}, chunks)
	return removed, err
}

type replaceScope struct {
	manualID int64
	span     PageSpan
}

func (s *SQLiteStore) writeChunks(ctx context.Context, scope *replaceScope, chunks []ChunkInput) (removed, inserted []int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, amerrors.PersistenceError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if scope != nil {
		removed, err = deletePageChunks(ctx, tx, scope.manualID, scope.span)
		if err != nil {
			return nil, nil, err
		}
	}

	inserted = make([]int64, 0, len(chunks))
	for _, in := range chunks {
		id, err := insertChunk(ctx, tx, in)
		if err != nil {
			return nil, nil, err
		}
		inserted = append(inserted, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, amerrors.PersistenceError("failed to commit chunks", err)
	}
	return removed, inserted, nil
}

func deletePageChunks(ctx context.Context, tx *sql.Tx, manualID int64, span PageSpan) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM chunks
		WHERE manual_id = ? AND page BETWEEN ? AND ?
		ORDER BY id`, manualID, span.From, span.To)
	if err != nil {
		return nil, amerrors.PersistenceError("failed to list manual chunks", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, amerrors.PersistenceError("failed to scan chunk id", err)
		}
		ids = append(ids, id)
	}
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return nil, amerrors.PersistenceError("failed to list manual chunks", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chunks WHERE manual_id = ? AND page BETWEEN ? AND ?`,
		manualID, span.From, span.To); err != nil {
		return nil, amerrors.PersistenceError("failed to delete manual chunks", err)
	}
	return ids, nil
}

// UpsertPageImage records the rendered image path for a manual page.
func (s *SQLiteStore) UpsertPageImage(ctx context.Context, manualID int64, page int, path string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO page_images (manual_id, page, path) VALUES (?, ?, ?)
		ON CONFLICT(manual_id, page) DO UPDATE SET path = excluded.path`,
		manualID, page, path)
	if err != nil {
		return amerrors.PersistenceError("failed to record page image", err)
	}
	return nil
}

// Hydrate loads a chunk's content together with its page image.
// It returns (nil, nil) when the chunk id no longer exists.
func (s *SQLiteStore) Hydrate(ctx context.Context, chunkID int64) (*ContextRow, error) {
	var (
		row     = ContextRow{ChunkID: chunkID}
		page    sql.NullInt64
		imgPath sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT c.content, c.manual_id, c.page, p.path
		FROM chunks c
		LEFT JOIN page_images p
		  ON c.manual_id = p.manual_id AND c.page = p.page
		WHERE c.id = ?`, chunkID,
	).Scan(&row.Content, &row.ManualID, &page, &imgPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, amerrors.PersistenceError("failed to hydrate chunk", err).
			WithDetail("chunk_id", fmt.Sprint(chunkID))
	}
	if page.Valid {
		row.Page = int(page.Int64)
	}
	row.PageImage = imgPath.String
	return &row, nil
}

// ChunksByManual returns a manual's chunks in page order.
func (s *SQLiteStore) ChunksByManual(ctx context.Context, manualID int64) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, manual_id, section_id, page, content, meta
		FROM chunks WHERE manual_id = ? ORDER BY page, id`, manualID)
	if err != nil {
		return nil, amerrors.PersistenceError("failed to list chunks", err)
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		var (
			c        Chunk
			section  sql.NullString
			page     sql.NullInt64
			metaJSON string
		)
		if err := rows.Scan(&c.ID, &c.ManualID, &section, &page, &c.Content, &metaJSON); err != nil {
			return nil, amerrors.PersistenceError("failed to scan chunk", err)
		}
		c.SectionID = section.String
		if page.Valid {
			c.Page = int(page.Int64)
		}
		if err := json.Unmarshal([]byte(metaJSON), &c.Meta); err != nil {
			return nil, fmt.Errorf("decode meta for chunk %d: %w", c.ID, err)
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// ChunkIDs returns the ids of every chunk with content.
func (s *SQLiteStore) ChunkIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM chunks WHERE length(trim(content)) > 0 ORDER BY id`)
	if err != nil {
		return nil, amerrors.PersistenceError("failed to list chunk ids", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, amerrors.PersistenceError("failed to scan chunk id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UnindexedChunks returns chunks with content whose id is not in
// indexed, ordered by id.
func (s *SQLiteStore) UnindexedChunks(ctx context.Context, indexed map[int64]struct{}) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content FROM chunks WHERE length(trim(content)) > 0 ORDER BY id`)
	if err != nil {
		return nil, amerrors.PersistenceError("failed to scan chunks for sync", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Content); err != nil {
			return nil, amerrors.PersistenceError("failed to scan chunk", err)
		}
		if _, ok := indexed[d.ID]; ok {
			continue
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Stats returns row counts.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM manuals),
			(SELECT COUNT(*) FROM chunks),
			(SELECT COUNT(*) FROM page_images)`,
	).Scan(&st.Manuals, &st.Chunks, &st.PageImages)
	if err != nil {
		return Stats{}, amerrors.PersistenceError("failed to read stats", err)
	}
	return st, nil
}

// SchemaObjects lists the tables and views in the database.
func (s *SQLiteStore) SchemaObjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type IN ('table', 'view')
		ORDER BY name`)
	if err != nil {
		return nil, amerrors.PersistenceError("failed to list schema objects", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullPage(page int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(page), Valid: page > 0}
}
