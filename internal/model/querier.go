package model

import (
	"context"
	"time"
)

// HistoryRecord is a record exported by a past snapshot.
type HistoryRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Record
}

// Querier reads exported snapshots back from a store.
type Querier interface {
	QueryHeavyHitters(ctx context.Context, taskName string, end time.Time, limit int) ([]HistoryRecord, error)
}
