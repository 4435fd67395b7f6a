package probe

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// IngestedAtField is stamped on entries that do not carry it yet.
const IngestedAtField = "ingested_at"

// Publisher is responsible for publishing log entries to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
	codec   Codec
	now     func() time.Time
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(natsURL, subject string, codec Codec) (*Publisher, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, err
	}
	log.Info().Str("url", natsURL).Str("encoding", codec.Name()).Msg("connected to NATS server")
	return &Publisher{nc: nc, subject: subject, codec: codec, now: time.Now}, nil
}

// Publish stamps, encodes and publishes a single JSON log entry.
func (p *Publisher) Publish(entry []byte) error {
	data, err := p.prepare(entry)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

func (p *Publisher) prepare(entry []byte) ([]byte, error) {
	if !gjson.GetBytes(entry, IngestedAtField).Exists() {
		stamped, err := sjson.SetBytes(entry, IngestedAtField, p.now().UTC().Format(time.RFC3339Nano))
		if err != nil {
			return nil, fmt.Errorf("failed to stamp entry: %w", err)
		}
		entry = stamped
	}
	return p.codec.Encode(entry)
}

// Flush waits until the server has processed every published message.
func (p *Publisher) Flush() error {
	return p.nc.Flush()
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Info().Msg("NATS connection drained and closed")
	}
}
