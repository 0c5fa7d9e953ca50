package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// NotificationQueueName is the durable queue clinical events are
// published to when a broker is configured.
const NotificationQueueName = "clinical_notification_queue"

// AMQPDispatcher publishes events to RabbitMQ for an external
// notification service to consume.
type AMQPDispatcher struct {
	ch  *amqp.Channel
	log *zap.Logger
}

// NewAMQPDispatcher opens a channel and declares the durable queue.
func NewAMQPDispatcher(conn *amqp.Connection, log *zap.Logger) (*AMQPDispatcher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		NotificationQueueName, // name
		true,                  // durable
		false,                 // autoDelete
		false,                 // exclusive
		false,                 // noWait
		nil,                   // args
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	return &AMQPDispatcher{ch: ch, log: log}, nil
}

func (d *AMQPDispatcher) Enqueue(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.ID, err)
	}

	err = d.ch.PublishWithContext(ctx,
		"",                    // default exchange
		NotificationQueueName, // routing key
		false,                 // mandatory
		false,                 // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}

	d.log.Debug("published notification event",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type))
	return nil
}

// Close releases the channel.
func (d *AMQPDispatcher) Close() error {
	return d.ch.Close()
}
