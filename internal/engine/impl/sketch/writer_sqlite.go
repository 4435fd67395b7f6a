package sketch

import (
	"LogFlowSketcher/internal/model"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT NOT NULL,
	task_name  TEXT NOT NULL,
	taken_at   INTEGER NOT NULL,
	capacity   INTEGER NOT NULL,
	size       INTEGER NOT NULL,
	minimum    INTEGER NOT NULL,
	observed   INTEGER NOT NULL,
	evictions  INTEGER NOT NULL,
	PRIMARY KEY (id, task_name)
);

CREATE TABLE IF NOT EXISTS snapshot_records (
	snapshot_id TEXT NOT NULL,
	task_name   TEXT NOT NULL,
	rank        INTEGER NOT NULL,
	item        TEXT NOT NULL,
	count       INTEGER NOT NULL,
	error       INTEGER NOT NULL,
	PRIMARY KEY (snapshot_id, task_name, rank),
	FOREIGN KEY (snapshot_id, task_name) REFERENCES snapshots(id, task_name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_snapshots_task_time ON snapshots(task_name, taken_at);
`

// SQLiteWriter persists snapshots to a local SQLite database. A snapshot round
// shares one ID across tasks, so rows are keyed by (id, task_name). It also serves
// the exported records back as history.
type SQLiteWriter struct {
	db       *sql.DB
	interval time.Duration
	topK     int
}

var _ model.Querier = (*SQLiteWriter)(nil)

// NewSQLiteWriter opens (creating if needed) the database at path.
func NewSQLiteWriter(path string, interval time.Duration, topK int) (*SQLiteWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	log.Info().Str("path", path).Msg("sqlite snapshot store ready")

	return &SQLiteWriter{db: db, interval: interval, topK: topK}, nil
}

func (w *SQLiteWriter) GetInterval() time.Duration {
	return w.interval
}

func (w *SQLiteWriter) TopK() int {
	return w.topK
}

func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}

// Write stores the snapshot and its records in a single transaction.
func (w *SQLiteWriter) Write(ctx context.Context, snapshot *model.Snapshot) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, task_name, taken_at, capacity, size, minimum, observed, evictions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshot.ID, snapshot.TaskName, snapshot.Timestamp.UnixMilli(),
		snapshot.Capacity, snapshot.Size, int64(snapshot.Minimum), int64(snapshot.Observed), int64(snapshot.Evictions))
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_records (snapshot_id, task_name, rank, item, count, error) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range snapshot.Records {
		if _, err := stmt.ExecContext(ctx, snapshot.ID, snapshot.TaskName, i, r.Item, int64(r.Count), int64(r.Error)); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// QueryHeavyHitters returns the records of the snapshots of taskName taken at
// or before end, newest snapshot first and in rank order within a snapshot.
func (w *SQLiteWriter) QueryHeavyHitters(ctx context.Context, taskName string, end time.Time, limit int) ([]model.HistoryRecord, error) {
	if end.IsZero() {
		end = time.Now()
	}

	rows, err := w.db.QueryContext(ctx, `
		SELECT s.taken_at, r.item, r.count, r.error
		FROM snapshot_records r
		JOIN snapshots s ON s.id = r.snapshot_id AND s.task_name = r.task_name
		WHERE s.task_name = ? AND s.taken_at <= ?
		ORDER BY s.taken_at DESC, r.rank ASC
		LIMIT ?`, taskName, end.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var results []model.HistoryRecord
	for rows.Next() {
		var (
			takenAt            int64
			item               string
			count, errEstimate int64
		)
		if err := rows.Scan(&takenAt, &item, &count, &errEstimate); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		results = append(results, model.HistoryRecord{
			Timestamp: time.UnixMilli(takenAt).UTC(),
			Record:    model.Record{Item: item, Count: uint64(count), Error: uint64(errEstimate)},
		})
	}
	return results, rows.Err()
}
