package nats

import (
	"strings"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/logger"
	"github.com/nats-io/nats.go"
)

// Subscriber is implemented by services.EventBus.
type Subscriber interface {
	Subscribe(subject, durableName string, handler nats.MsgHandler) (*nats.Subscription, error)
}

type Client struct {
	bus     Subscriber
	service string
}

func NewClient(bus Subscriber, service string) *Client {
	return &Client{bus: bus, service: service}
}

// DurableName derives a stable consumer name, e.g. "link-service-users-deleted".
func (c *Client) DurableName(subject string) string {
	return c.service + "-" + strings.NewReplacer(".", "-", "*", "all", ">", "rest").Replace(subject)
}

// SubscribeAll loads all routes once during startup.
func (c *Client) SubscribeAll(routes map[string]nats.MsgHandler) ([]*nats.Subscription, error) {
	log := logger.With("nats")
	subs := make([]*nats.Subscription, 0, len(routes))
	for subject, handler := range routes {
		sub, err := c.bus.Subscribe(subject, c.DurableName(subject), handler)
		if err != nil {
			return subs, err
		}
		subs = append(subs, sub)
		log.Info().Str("subject", subject).Msg("route registered")
	}
	return subs, nil
}
