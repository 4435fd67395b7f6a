package model

import (
	"LogFlowSketcher/internal/config"
	"LogFlowSketcher/internal/engine/impl/sketch/statistic"
)

// Task defines a single, self-contained counting task.
// This is the interface for the "execution layer".
type Task interface {
	ProcessEntry(entry *LogEntry)
	TopK(k int) []Record
	Estimate(item string) (Record, bool)
	Metrics() statistic.Metrics
	Snapshot(k int) *Snapshot
	Reset()
	Name() string
	AlerterMsg(rules []config.AlerterRule) string
}
