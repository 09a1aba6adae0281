package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"voteledger/internal/shared/events"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultExchange    = "voteledger.events"
	dialAttempts       = 5
	defaultDialBackoff = 5 * time.Second
)

// AMQP publishes ledger events to a RabbitMQ topic exchange, using the topic
// as routing key and the event type as message type. Each consumer group gets
// its own durable queue per topic.
type AMQP struct {
	conn     *amqp.Connection
	exchange string
	logger   *slog.Logger

	mu      sync.Mutex
	channel *amqp.Channel
}

// DialAMQP connects with a bounded number of retries and declares the
// exchange.
func DialAMQP(ctx context.Context, url string, logger *slog.Logger) (*AMQP, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		conn *amqp.Connection
		err  error
	)
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		if conn, err = amqp.Dial(url); err == nil {
			break
		}
		logger.Warn("rabbitmq dial failed",
			"event", "amqp_dial_retry",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"attempt", attempt,
			"error", err.Error(),
		)
		if attempt == dialAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(defaultDialBackoff):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("could not connect to rabbitmq after %d attempts: %w", dialAttempts, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := channel.ExchangeDeclare(defaultExchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", defaultExchange, err)
	}
	logger.Info("rabbitmq connected",
		"event", "amqp_connected",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"exchange", defaultExchange,
	)
	return &AMQP{
		conn:     conn,
		exchange: defaultExchange,
		logger:   logger,
		channel:  channel,
	}, nil
}

func (a *AMQP) Publish(ctx context.Context, topic string, event events.Envelope) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	err = a.channel.PublishWithContext(ctx, a.exchange, topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Type:         event.EventType,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
	if err != nil {
		a.logger.Error("rabbitmq publish failed",
			"event", "amqp_publish_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

// Subscribe binds a durable queue named after the consumer group and topic.
// Deliveries are acked after handler succeeds and requeued otherwise.
func (a *AMQP) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, events.Envelope) error,
) error {
	channel, err := a.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq consumer channel: %w", err)
	}
	queue, err := channel.QueueDeclare(consumerGroup+"."+topic, true, false, false, false, nil)
	if err != nil {
		_ = channel.Close()
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := channel.QueueBind(queue.Name, topic, a.exchange, false, nil); err != nil {
		_ = channel.Close()
		return fmt.Errorf("bind queue %s: %w", queue.Name, err)
	}
	deliveries, err := channel.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		_ = channel.Close()
		return fmt.Errorf("consume queue %s: %w", queue.Name, err)
	}

	go func() {
		defer channel.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					return
				}
				a.handleDelivery(ctx, topic, consumerGroup, delivery, handler)
			}
		}
	}()
	return nil
}

func (a *AMQP) handleDelivery(
	ctx context.Context,
	topic string,
	consumerGroup string,
	delivery amqp.Delivery,
	handler func(context.Context, events.Envelope) error,
) {
	var event events.Envelope
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		a.logger.Error("rabbitmq delivery decode failed",
			"event", "amqp_decode_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"error", err.Error(),
		)
		_ = delivery.Nack(false, false)
		return
	}
	if err := handler(ctx, event); err != nil {
		a.logger.Error("consumer handler failed",
			"event", "amqp_consume_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"consumer_group", consumerGroup,
			"event_id", event.EventID,
			"error", err.Error(),
		)
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
}

func (a *AMQP) Close() error {
	if a == nil || a.conn == nil {
		return nil
	}
	return a.conn.Close()
}
