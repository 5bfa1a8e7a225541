package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// Subscriber consumes the owner bot's publications from NATS JetStream
// and feeds them into the ledger via msgChan. Two surfaces exist:
// per-asset price updates and epoch advances for the synthetic price.
type Subscriber struct {
	js        jetstream.JetStream
	msgChan   chan<- RawMessage
	consumers []jetstream.ConsumeContext
	log       zerolog.Logger
}

// RawMessage is an unparsed feed message with its ack handles. Ack after
// the ledger applied it; Nak to have JetStream redeliver.
type RawMessage struct {
	Subject  string
	Data     []byte
	Received time.Time
	AckFunc  func()
	NakFunc  func()
}

// SubjectConfig maps one NATS subject to a durable consumer.
type SubjectConfig struct {
	Subject      string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects covers the two feed surfaces.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "heist.prices.>", ConsumerName: "heist-prices", StreamName: "HEIST_PRICES"},
		{Subject: "heist.epochs.>", ConsumerName: "heist-epochs", StreamName: "HEIST_EPOCHS"},
	}
}

func NewSubscriber(js jetstream.JetStream, msgChan chan<- RawMessage, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		js:      js,
		msgChan: msgChan,
		log:     log,
	}
}

// Subscribe creates durable JetStream consumers with explicit ack for
// all configured subjects.
func (s *Subscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := s.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawMessage{
				Subject:  msg.Subject(),
				Data:     msg.Data(),
				Received: time.Now(),
				AckFunc:  func() { msg.Ack() },
				NakFunc:  func() { msg.Nak() },
			}

			select {
			case s.msgChan <- raw:
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		s.consumers = append(s.consumers, consumerContext)
		s.log.Info().
			Str("subject", cfg.Subject).
			Str("consumer", cfg.ConsumerName).
			Msg("subscribed")
	}

	return nil
}

// EnsureStreams provisions the feed streams if they don't exist.
func EnsureStreams(ctx context.Context, js jetstream.JetStream, log zerolog.Logger) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      "HEIST_PRICES",
			Subjects:  []string{"heist.prices.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "HEIST_EPOCHS",
			Subjects:  []string{"heist.epochs.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Info().Str("stream", cfg.Name).Msg("ensured stream")
	}

	return nil
}

// Stop gracefully stops all consumers.
func (s *Subscriber) Stop() {
	for _, cc := range s.consumers {
		cc.Stop()
	}
	s.log.Info().Msg("feed subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream
// context. Reconnects forever with a two second wait.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
