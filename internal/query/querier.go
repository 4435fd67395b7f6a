package query

import (
	"LogFlowSketcher/internal/config"
	"LogFlowSketcher/internal/engine/impl/sketch"
	"LogFlowSketcher/internal/model"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseQuerier reads exported heavy hitters back from ClickHouse.
type ClickHouseQuerier struct {
	conn driver.Conn
}

var _ model.Querier = (*ClickHouseQuerier)(nil)

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (*ClickHouseQuerier, error) {
	conn, err := sketch.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &ClickHouseQuerier{conn: conn}, nil
}

// FindClickHouse returns the settings of the first enabled ClickHouse writer,
// or nil if there is none.
func FindClickHouse(cfg *config.Config) *config.ClickHouseConfig {
	for _, writerDef := range cfg.Aggregator.Writers {
		if writerDef.Enabled && writerDef.Type == "clickhouse" {
			return &writerDef.ClickHouse
		}
	}
	return nil
}

// QueryHeavyHitters returns the records exported for taskName, newest first.
func (q *ClickHouseQuerier) QueryHeavyHitters(ctx context.Context, taskName string, end time.Time, limit int) ([]model.HistoryRecord, error) {
	query, args := buildHistoryQuery(taskName, end, limit)

	rows, err := q.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var results []model.HistoryRecord
	for rows.Next() {
		var r model.HistoryRecord
		if err := rows.Scan(&r.Timestamp, &r.Item, &r.Count, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan heavy hitter: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Close releases the connection.
func (q *ClickHouseQuerier) Close() error {
	return q.conn.Close()
}

func buildHistoryQuery(taskName string, end time.Time, limit int) (string, []any) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT Timestamp, Item, Count, Error
		FROM heavy_hitters
	`)

	whereClauses := []string{"TaskName = ?"}
	args := []any{taskName}

	if !end.IsZero() {
		whereClauses = append(whereClauses, "Timestamp <= ?")
		args = append(args, end)
	}

	queryBuilder.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	queryBuilder.WriteString(" ORDER BY Timestamp DESC, Count DESC")

	if limit > 0 {
		queryBuilder.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	return queryBuilder.String(), args
}
