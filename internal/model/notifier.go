package model

import "context"

// Notifier delivers alert summaries to operators.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}
