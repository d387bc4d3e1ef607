package events

import (
	"context"
	"delivery-dispatch-service/internal/ports"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "dispatch_topic"
	// LedgerQueue receives completed-route earnings for the payout system.
	LedgerQueue = "payout_ledger"
)

// RabbitPublisher sends dispatch events to a topic exchange keyed by
// "<event type>.<slot>".
type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string

	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

func NewRabbitPublisher(conn *amqp.Connection, exchange string) (*RabbitPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	q, err := ch.QueueDeclare(
		LedgerQueue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", LedgerQueue, err)
	}

	err = ch.QueueBind(
		q.Name,
		string(ports.EventRouteCompleted)+".*",
		exchange,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("bind queue %s: %w", LedgerQueue, err)
	}

	return &RabbitPublisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
	}, nil
}

func (r *RabbitPublisher) Publish(ctx context.Context, e ports.Event) error {
	msg, err := encodeEvent(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.channel.PublishWithContext(
		ctx,
		r.exchange,
		e.RoutingKey(),
		false,
		false,
		msg,
	); err != nil {
		return fmt.Errorf("publish %s: %w", e.RoutingKey(), err)
	}
	return nil
}

func (r *RabbitPublisher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channel.Close()
}

func encodeEvent(e ports.Event) (amqp.Publishing, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode event %s: %w", e.Type, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.OccurredAt,
		Type:         string(e.Type),
		MessageId:    e.RouteID + ":" + string(e.Type) + ":" + e.OccurredAt.UTC().Format(time.RFC3339Nano),
		Body:         body,
	}, nil
}
