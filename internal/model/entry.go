package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// ErrInvalidEntry is returned for payloads that are not usable log entries.
var ErrInvalidEntry = errors.New("invalid log entry")

// NewLogEntry checks that raw is a JSON object carrying every required field
// and wraps it into a LogEntry.
func NewLogEntry(raw []byte, source string, required []string) (*LogEntry, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidEntry)
	}
	if !gjson.ParseBytes(raw).IsObject() {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidEntry)
	}
	for _, field := range required {
		if !gjson.GetBytes(raw, field).Exists() {
			return nil, fmt.Errorf("%w: missing field '%s'", ErrInvalidEntry, field)
		}
	}
	return &LogEntry{Raw: raw, Source: source, ReceivedAt: time.Now()}, nil
}
