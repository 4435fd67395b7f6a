package model

import (
	"context"
	"time"
)

// Writer defines a generic interface for exporting counter snapshots.
type Writer interface {
	// Write persists a single snapshot.
	Write(ctx context.Context, snapshot *Snapshot) error

	// GetInterval returns the configured snapshot interval for this writer.
	GetInterval() time.Duration

	// TopK returns how many records of each counter this writer exports.
	TopK() int

	Close() error
}
