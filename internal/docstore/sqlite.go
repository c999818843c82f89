package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunk_records (
	id            TEXT PRIMARY KEY,
	content       TEXT NOT NULL,
	embedding     TEXT NOT NULL,
	metadata      TEXT NOT NULL,
	user_id       TEXT NOT NULL,
	created_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunk_records_user
	ON chunk_records (user_id, created_at_ms);
`

// chunkRow is the database row shape for a chunk record.
type chunkRow struct {
	ID          string `db:"id"`
	Content     string `db:"content"`
	Embedding   string `db:"embedding"`
	Metadata    string `db:"metadata"`
	UserID      string `db:"user_id"`
	CreatedAtMS int64  `db:"created_at_ms"`
}

// SQLiteStore persists chunk records in SQLite. Embeddings and metadata are
// stored as JSON; the user/timestamp columns exist for the scans the core
// performs.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if needed) the SQLite database at path.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: database path required", ErrStorage)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", ErrStorage, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating schema: %v", ErrStorage, err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Put writes all records in one transaction, splitting oversized batches
// into sub-batches within it. Any failure rolls the whole call back.
func (s *SQLiteStore) Put(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return fmt.Errorf("%w: records cannot be empty", ErrEmptyRecords)
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	for start := 0; start < len(records); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := insertBatch(ctx, tx, records[start:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing batch: %v", ErrStorage, err)
	}

	s.logger.Debug("stored chunk records",
		zap.Int("count", len(records)),
		zap.String("user_id", records[0].Metadata.UserID),
	)
	return nil
}

func insertBatch(ctx context.Context, tx *sqlx.Tx, records []Record) error {
	const insert = `
		INSERT INTO chunk_records (id, content, embedding, metadata, user_id, created_at_ms)
		VALUES (:id, :content, :embedding, :metadata, :user_id, :created_at_ms)`

	rows := make([]chunkRow, 0, len(records))
	for _, r := range records {
		row, err := toRow(r)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	if _, err := tx.NamedExecContext(ctx, insert, rows); err != nil {
		return fmt.Errorf("%w: inserting records: %v", ErrStorage, err)
	}
	return nil
}

// ScanByUser returns every record owned by userID.
func (s *SQLiteStore) ScanByUser(ctx context.Context, userID string) ([]Record, error) {
	const query = `
		SELECT id, content, embedding, metadata, user_id, created_at_ms
		FROM chunk_records WHERE user_id = ?
		ORDER BY created_at_ms`

	var rows []chunkRow
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("%w: scanning records: %v", ErrStorage, err)
	}
	return fromRows(rows)
}

// ScanByUserSince returns userID's records created at or after since.
func (s *SQLiteStore) ScanByUserSince(ctx context.Context, userID string, since time.Time) ([]Record, error) {
	const query = `
		SELECT id, content, embedding, metadata, user_id, created_at_ms
		FROM chunk_records WHERE user_id = ? AND created_at_ms >= ?
		ORDER BY created_at_ms`

	var rows []chunkRow
	if err := s.db.SelectContext(ctx, &rows, query, userID, since.UnixMilli()); err != nil {
		return nil, fmt.Errorf("%w: scanning records: %v", ErrStorage, err)
	}
	return fromRows(rows)
}

// UpdateMetadata applies patch to the stored metadata of one record.
// Content and embedding columns are never touched.
func (s *SQLiteStore) UpdateMetadata(ctx context.Context, recordID string, patch MetadataPatch) error {
	const query = `SELECT metadata FROM chunk_records WHERE id = ?`

	var raw string
	if err := s.db.GetContext(ctx, &raw, query, recordID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, recordID)
		}
		return fmt.Errorf("%w: reading metadata: %v", ErrStorage, err)
	}

	var md Metadata
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return fmt.Errorf("%w: decoding metadata: %v", ErrStorage, err)
	}

	patch.Apply(&md)

	updated, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("%w: encoding metadata: %v", ErrStorage, err)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE chunk_records SET metadata = ? WHERE id = ?`, string(updated), recordID)
	if err != nil {
		return fmt.Errorf("%w: updating metadata: %v", ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, recordID)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func toRow(r Record) (chunkRow, error) {
	embedding, err := json.Marshal(r.Embedding)
	if err != nil {
		return chunkRow{}, fmt.Errorf("%w: encoding embedding: %v", ErrStorage, err)
	}
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return chunkRow{}, fmt.Errorf("%w: encoding metadata: %v", ErrStorage, err)
	}
	return chunkRow{
		ID:          r.ID,
		Content:     r.Content,
		Embedding:   string(embedding),
		Metadata:    string(metadata),
		UserID:      r.Metadata.UserID,
		CreatedAtMS: r.Metadata.Timestamp.UnixMilli(),
	}, nil
}

func fromRows(rows []chunkRow) ([]Record, error) {
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		var embedding []float32
		if err := json.Unmarshal([]byte(row.Embedding), &embedding); err != nil {
			return nil, fmt.Errorf("%w: decoding embedding for %s: %v", ErrStorage, row.ID, err)
		}
		var md Metadata
		if err := json.Unmarshal([]byte(row.Metadata), &md); err != nil {
			return nil, fmt.Errorf("%w: decoding metadata for %s: %v", ErrStorage, row.ID, err)
		}
		records = append(records, Record{
			ID:        row.ID,
			Content:   row.Content,
			Embedding: embedding,
			Metadata:  md,
		})
	}
	return records, nil
}
