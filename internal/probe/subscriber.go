package probe

import (
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// EntryHandler is a function that processes a received JSON log entry.
type EntryHandler func(entry []byte)

// Subscriber is responsible for subscribing to a NATS subject and decoding messages.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	codec   Codec
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(natsURL, subject string, codec Codec) (*Subscriber, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, err
	}
	log.Info().Str("url", natsURL).Msg("connected to NATS server")
	return &Subscriber{nc: nc, subject: subject, codec: codec}, nil
}

// Start subscribes to the subject and passes each decoded entry to handler.
func (s *Subscriber) Start(handler EntryHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		entry, err := s.codec.Decode(msg.Data)
		if err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping undecodable message")
			return
		}
		handler(entry)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	log.Info().Str("subject", s.subject).Msg("subscribed, waiting for messages")
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		log.Info().Msg("NATS connection closed")
	}
}
