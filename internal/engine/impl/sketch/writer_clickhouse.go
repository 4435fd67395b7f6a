package sketch

import (
	"LogFlowSketcher/internal/config"
	"LogFlowSketcher/internal/model"
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/rs/zerolog/log"
)

const createHeavyHittersTableStatement = `
CREATE TABLE IF NOT EXISTS heavy_hitters (
    SnapshotID  String,
    Timestamp   DateTime,
    TaskName    String,
    Item        String,
    Count       UInt64,
    Error       UInt64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (TaskName, Timestamp);
`

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
type ClickHouseWriter struct {
	conn     driver.Conn
	interval time.Duration
	topK     int
}

// NewClickHouseWriter creates a new ClickHouse writer for counter snapshots.
func NewClickHouseWriter(cfg config.ClickHouseConfig, interval time.Duration, topK int) (model.Writer, error) {
	conn, err := Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createHeavyHittersTableStatement); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create heavy_hitters table: %w", err)
	}
	log.Info().Str("host", cfg.Host).Msg("connected to ClickHouse, heavy_hitters table ready")

	return &ClickHouseWriter{conn: conn, interval: interval, topK: topK}, nil
}

// Connect opens and pings a ClickHouse connection.
func Connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

func (w *ClickHouseWriter) GetInterval() time.Duration {
	return w.interval
}

func (w *ClickHouseWriter) TopK() int {
	return w.topK
}

func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}

func (w *ClickHouseWriter) Write(ctx context.Context, snapshot *model.Snapshot) error {
	if len(snapshot.Records) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO heavy_hitters")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, r := range snapshot.Records {
		if err := batch.Append(snapshot.ID, snapshot.Timestamp, snapshot.TaskName, r.Item, r.Count, r.Error); err != nil {
			return fmt.Errorf("failed to append record to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Debug().Str("task", snapshot.TaskName).Int("records", len(snapshot.Records)).Msg("wrote snapshot to ClickHouse")
	return nil
}
