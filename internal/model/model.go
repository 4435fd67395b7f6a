package model

import (
	"time"
)

// LogEntry is a single log record received from an ingestion transport.
// Raw holds the record as a JSON object.
type LogEntry struct {
	Raw        []byte
	Source     string // "http" or "nats"
	ReceivedAt time.Time
}

// Record is one tracked item of a counter with its estimated count.
// Error is the maximum overestimation of Count.
type Record struct {
	Item  string `json:"item"`
	Count uint64 `json:"count"`
	Error uint64 `json:"error"`
}

// Snapshot is the state of a single counter task at a point in time.
type Snapshot struct {
	ID        string    `json:"id"`
	TaskName  string    `json:"task_name"`
	Timestamp time.Time `json:"timestamp"`
	Capacity  int       `json:"capacity"`
	Size      int       `json:"size"`
	Minimum   uint64    `json:"minimum"`
	Observed  uint64    `json:"observed"`
	Evictions uint64    `json:"evictions"`
	Records   []Record  `json:"records"`
}
