package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"spendmillion/internal/events"
)

// NATSConsumerConfig holds configuration for the NATS consumer.
type NATSConsumerConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConsumerConfig returns default NATS consumer configuration.
func DefaultNATSConsumerConfig() NATSConsumerConfig {
	return NATSConsumerConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "spend.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// EventConsumer consumes session events from NATS and pushes leaderboard
// updates to WebSocket clients.
type EventConsumer struct {
	connectionManager *ConnectionManager
	query             QueryApp
	nc                *nats.Conn
	config            NATSConsumerConfig
}

// NewEventConsumer connects to NATS and returns a consumer.
func NewEventConsumer(cm *ConnectionManager, queryApp QueryApp, config NATSConsumerConfig) (*EventConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &EventConsumer{
		connectionManager: cm,
		query:             queryApp,
		nc:                nc,
		config:            config,
	}, nil
}

// Start begins consuming events until ctx is cancelled.
func (ec *EventConsumer) Start(ctx context.Context) error {
	subject := ec.config.SubjectPrefix + ".>"
	log.Info().Str("subject", subject).Msg("starting event consumer")

	messageCh := make(chan *nats.Msg, 100)
	sub, err := ec.nc.ChanSubscribe(subject, messageCh)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event consumer shutting down")
			return nil
		case msg := <-messageCh:
			if err := ec.processMessage(msg); err != nil {
				log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to process message")
			}
		}
	}
}

// processMessage handles a single bus message. Only SessionFinished changes
// the standings; everything else is ignored.
func (ec *EventConsumer) processMessage(msg *nats.Msg) error {
	var event events.Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return fmt.Errorf("unmarshal event envelope: %w", err)
	}

	log.Debug().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Str("session_id", event.SessionID).
		Msg("processing bus event")

	if event.Type != events.TypeSessionFinished {
		return nil
	}

	wsEvent, err := standingsEvent(ec.query)
	if err != nil {
		return err
	}
	ec.connectionManager.Broadcast(wsEvent)
	return nil
}

// Stop closes the NATS connection.
func (ec *EventConsumer) Stop() error {
	if ec.nc != nil {
		ec.nc.Close()
	}
	return nil
}
