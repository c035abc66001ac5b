package nats

import (
	"errors"
	"testing"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/api/handlers"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBus struct {
	durables map[string]string
	failOn   string
}

func (b *recordingBus) Subscribe(subject, durable string, _ nats.MsgHandler) (*nats.Subscription, error) {
	if subject == b.failOn {
		return nil, errors.New("stream missing")
	}
	b.durables[subject] = durable
	return &nats.Subscription{Subject: subject}, nil
}

func TestSubscribeAllRegistersEveryRoute(t *testing.T) {
	bus := &recordingBus{durables: map[string]string{}}
	client := NewClient(bus, "link-service")

	subs, err := client.SubscribeAll(Routes(handlers.New(handlers.Deps{})))
	require.NoError(t, err)

	assert.Len(t, subs, 2)
	assert.Equal(t, map[string]string{
		"users.deleted":  "link-service-users-deleted",
		"files.uploaded": "link-service-files-uploaded",
	}, bus.durables)
}

func TestSubscribeAllStopsOnError(t *testing.T) {
	bus := &recordingBus{durables: map[string]string{}, failOn: "users.deleted"}
	_, err := NewClient(bus, "link-service").SubscribeAll(Routes(handlers.New(handlers.Deps{})))
	assert.Error(t, err)
}

func TestDurableName(t *testing.T) {
	c := NewClient(nil, "svc")
	assert.Equal(t, "svc-links-all", c.DurableName("links.*"))
}
