package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"scanner/internal/model"
)

// RoutingKeyPrefix prefixes every presence event routing key
const RoutingKeyPrefix = "presence."

// EventPublisher forwards stored presence events to a topic exchange
type EventPublisher struct {
	client   Client
	exchange string
}

// NewEventPublisher declares exchange as a durable topic exchange and returns
// a publisher bound to it
func NewEventPublisher(client Client, exchange string) (*EventPublisher, error) {
	if err := client.DeclareExchange(exchange, amqp.ExchangeTopic); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &EventPublisher{client: client, exchange: exchange}, nil
}

// RoutingKey returns the key an event of kind is published under, for
// example presence.player_join
func RoutingKey(kind model.EventKind) string {
	return RoutingKeyPrefix + strings.ToLower(string(kind))
}

func (p *EventPublisher) PublishEvent(ctx context.Context, event model.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	headers := amqp.Table{
		"event_type": string(event.Kind),
		"player_id":  event.PlayerID.String(),
	}
	return p.client.Publish(ctx, p.exchange, RoutingKey(event.Kind), body, headers)
}
