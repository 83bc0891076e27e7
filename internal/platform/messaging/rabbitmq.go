package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fieldops/contexts/field-marketing/activation-service/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Rabbit publishes envelopes to a durable topic exchange, routed by topic,
// and consumes them through one durable queue per consumer group.
type Rabbit struct {
	conn     *amqp.Connection
	exchange string
	logger   *slog.Logger

	mu      sync.Mutex
	channel *amqp.Channel
}

func NewRabbit(url string, exchange string, logger *slog.Logger) (*Rabbit, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Rabbit{conn: conn, exchange: exchange, logger: logger, channel: ch}, nil
}

func (r *Rabbit) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	publishing, err := toPublishing(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	r.mu.Lock()
	err = r.channel.PublishWithContext(ctx, r.exchange, topic, false, false, publishing)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	r.logger.Debug("event published",
		"event", "rabbitmq_publish",
		"module", moduleName,
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
	)
	return nil
}

// Subscribe binds consumerGroup's queue to topic and handles deliveries on a
// dedicated channel until ctx ends. Failed deliveries are dead-lettered, not
// requeued, so a poison message cannot loop.
func (r *Rabbit) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	queue, err := ch.QueueDeclare(consumerGroup, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare queue %s: %w", consumerGroup, err)
	}
	if err := ch.QueueBind(queue.Name, topic, r.exchange, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("bind queue %s to %s: %w", queue.Name, topic, err)
	}
	deliveries, err := ch.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume queue %s: %w", queue.Name, err)
	}

	go func() {
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					return
				}
				r.handle(ctx, topic, consumerGroup, delivery, handler)
			}
		}
	}()
	return nil
}

func (r *Rabbit) handle(
	ctx context.Context,
	topic string,
	consumerGroup string,
	delivery amqp.Delivery,
	handler func(context.Context, ports.EventEnvelope) error,
) {
	event, err := fromDelivery(delivery)
	if err == nil {
		err = handler(ctx, event)
	}
	if err != nil {
		r.logger.Error("consumer handler failed",
			"event", "rabbitmq_consume_failed",
			"module", moduleName,
			"layer", "platform",
			"topic", topic,
			"consumer_group", consumerGroup,
			"message_id", delivery.MessageId,
			"error", err.Error(),
		)
		_ = delivery.Nack(false, false)
		return
	}
	_ = delivery.Ack(false)
}

func (r *Rabbit) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func toPublishing(event ports.EventEnvelope) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event %s: %w", event.EventID, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Type:         event.EventType,
		Timestamp:    event.OccurredAt,
		Headers: amqp.Table{
			"partition_key": event.PartitionKey,
			"trace_id":      event.TraceID,
		},
		Body: body,
	}, nil
}

func fromDelivery(delivery amqp.Delivery) (ports.EventEnvelope, error) {
	var event ports.EventEnvelope
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		return ports.EventEnvelope{}, fmt.Errorf("decode delivery %s: %w", delivery.MessageId, err)
	}
	if event.EventID == "" {
		event.EventID = delivery.MessageId
	}
	if event.EventType == "" {
		event.EventType = delivery.Type
	}
	return event, nil
}
