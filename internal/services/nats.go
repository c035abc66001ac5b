package services

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const (
	StreamName = "file-events"

	SubjectFileUploaded    = "files.uploaded"
	SubjectFileDeleted     = "files.deleted"
	SubjectUserDeleted     = "users.deleted"
	SubjectLinkIssued      = "links.issued"
	SubjectLinkRedeemed    = "links.redeemed"
	SubjectLinkDeactivated = "links.deactivated"
)

// EventBus publishes and consumes events over NATS JetStream.
type EventBus struct {
	nc  *nats.Conn
	js  nats.JetStreamContext
	log zerolog.Logger
}

// ConnectNATS connects, opens JetStream and makes sure the stream exists.
func ConnectNATS(url string) (*EventBus, error) {
	log := logger.With("nats")

	opts := []nats.Option{
		nats.Name("link-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info().Msg("connection closed")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	bus := &EventBus{nc: nc, js: js, log: log}
	if err := bus.ensureStream(); err != nil {
		log.Warn().Err(err).Msg("failed to ensure stream")
	}

	log.Info().Msg("connected and JetStream initialized")
	return bus, nil
}

func (b *EventBus) ensureStream() error {
	if _, err := b.js.StreamInfo(StreamName); err == nil {
		return nil
	}
	_, err := b.js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{"files.*", "users.*", "links.*"},
		Storage:  nats.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	})
	return err
}

// Publish sends a JSON event through JetStream with a message id for dedup.
func (b *EventBus) Publish(subject string, payload any) error {
	if b == nil || b.js == nil {
		return errors.New("jetstream not initialized")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := b.js.Publish(subject, data, nats.MsgId(uuid.New().String())); err != nil {
		b.log.Error().Err(err).Str("subject", subject).Msg("publish failed")
		return err
	}
	return nil
}

// Subscribe creates a durable manual-ack consumer. The handler acks or naks.
func (b *EventBus) Subscribe(subject, durableName string, handler nats.MsgHandler) (*nats.Subscription, error) {
	if b == nil || b.js == nil {
		return nil, errors.New("jetstream not initialized")
	}
	sub, err := b.js.Subscribe(subject, handler, nats.Durable(durableName), nats.ManualAck())
	if err != nil {
		return nil, err
	}
	b.log.Info().Str("subject", subject).Str("durable", durableName).Msg("subscribed")
	return sub, nil
}

func (b *EventBus) Close() {
	if b != nil && b.nc != nil && !b.nc.IsClosed() {
		_ = b.nc.Drain()
	}
}
