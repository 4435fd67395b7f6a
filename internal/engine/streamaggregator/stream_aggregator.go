package streamaggregator

import (
	"LogFlowSketcher/internal/config"
	"LogFlowSketcher/internal/model"
	"LogFlowSketcher/internal/probe"
	"LogFlowSketcher/internal/prom"
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Submitter accepts log entries for counting.
type Submitter interface {
	Submit(ctx context.Context, entry *model.LogEntry) error
}

// StreamAggregator consumes log entries from NATS and submits them to the manager.
type StreamAggregator struct {
	nc             *nats.Conn
	sub            *nats.Subscription
	submitter      Submitter
	codec          probe.Codec
	requiredFields []string
	natsURL        string
	natsSubject    string
}

// NewStreamAggregator creates a new real-time stream aggregator.
func NewStreamAggregator(cfg *config.Config, submitter Submitter) (*StreamAggregator, error) {
	codec, err := probe.NewCodec(cfg.Ingest.Encoding)
	if err != nil {
		return nil, err
	}
	return &StreamAggregator{
		submitter:      submitter,
		codec:          codec,
		requiredFields: cfg.Ingest.RequiredFields,
		natsURL:        cfg.Ingest.NATSURL,
		natsSubject:    cfg.Ingest.Subject,
	}, nil
}

// Start connects to NATS and begins processing messages.
func (sa *StreamAggregator) Start() error {
	log.Info().Str("url", sa.natsURL).Msg("stream aggregator starting")
	nc, err := nats.Connect(sa.natsURL)
	if err != nil {
		return fmt.Errorf("stream aggregator failed to connect to NATS: %w", err)
	}
	sa.nc = nc

	sa.sub, err = sa.nc.Subscribe(sa.natsSubject, func(msg *nats.Msg) {
		sa.handleMsg(context.Background(), msg.Data)
	})
	if err != nil {
		sa.nc.Close()
		return fmt.Errorf("stream aggregator failed to subscribe: %w", err)
	}
	log.Info().Str("subject", sa.natsSubject).Str("encoding", sa.codec.Name()).Msg("stream aggregator subscribed")
	return nil
}

// Stop unsubscribes and closes the NATS connection. The manager is stopped
// by its owner.
func (sa *StreamAggregator) Stop() {
	if sa.sub != nil {
		sa.sub.Unsubscribe()
	}
	if sa.nc != nil {
		sa.nc.Close()
	}
	log.Info().Msg("stream aggregator stopped")
}

// handleMsg decodes the message and passes it to the manager.
func (sa *StreamAggregator) handleMsg(ctx context.Context, data []byte) {
	prom.EntriesReceived.WithLabelValues("nats").Inc()

	raw, err := sa.codec.Decode(data)
	if err != nil {
		prom.EntriesRejected.WithLabelValues("nats", "decode").Inc()
		log.Warn().Err(err).Msg("dropping undecodable message")
		return
	}

	entry, err := model.NewLogEntry(raw, "nats", sa.requiredFields)
	if err != nil {
		prom.EntriesRejected.WithLabelValues("nats", "invalid").Inc()
		log.Debug().Err(err).Msg("dropping invalid entry")
		return
	}

	if err := sa.submitter.Submit(ctx, entry); err != nil {
		reason := "submit"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		prom.EntriesRejected.WithLabelValues("nats", reason).Inc()
		log.Warn().Err(err).Msg("failed to submit entry")
	}
}
