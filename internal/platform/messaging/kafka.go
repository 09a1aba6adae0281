package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"voteledger/internal/shared/events"
)

const (
	subscriberBuffer    = 128
	handlerAttempts     = 3
	handlerRetryBackoff = 50 * time.Millisecond
)

// Kafka is the in-process event bus used by the outbox relay and the
// scoreboard projector. Broker addresses are accepted for configuration
// parity; delivery stays inside the process. Each subscriber receives events
// in publish order, so events sharing a partition key are never reordered.
type Kafka struct {
	mu          sync.RWMutex
	subscribers map[string][]chan events.Envelope
	logger      *slog.Logger
}

func NewKafka(_ []string, logger *slog.Logger) (*Kafka, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kafka{
		subscribers: make(map[string][]chan events.Envelope),
		logger:      logger,
	}, nil
}

// Publish hands event to every subscriber of topic. A full subscriber buffer
// blocks the publisher until there is room or ctx ends.
func (k *Kafka) Publish(ctx context.Context, topic string, event events.Envelope) error {
	k.mu.RLock()
	subs := append([]chan events.Envelope(nil), k.subscribers[topic]...)
	k.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- event:
		}
	}

	k.logger.Debug("event published",
		"event", "kafka_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"partition_key", event.PartitionKey,
		"subscribers", len(subs),
	)
	return nil
}

// Subscribe delivers events on topic to handler from one goroutine until ctx
// is cancelled. A failing handler is retried before the event is given up.
func (k *Kafka) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, events.Envelope) error,
) error {
	ch := make(chan events.Envelope, subscriberBuffer)

	k.mu.Lock()
	k.subscribers[topic] = append(k.subscribers[topic], ch)
	k.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				k.removeSubscriber(topic, ch)
				return
			case event := <-ch:
				k.deliver(ctx, topic, consumerGroup, event, handler)
			}
		}
	}()
	return nil
}

func (k *Kafka) deliver(
	ctx context.Context,
	topic string,
	consumerGroup string,
	event events.Envelope,
	handler func(context.Context, events.Envelope) error,
) {
	var err error
	for attempt := 1; attempt <= handlerAttempts; attempt++ {
		if err = handler(ctx, event); err == nil {
			return
		}
		if attempt == handlerAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * handlerRetryBackoff):
		}
	}
	k.logger.Error("consumer handler failed",
		"event", "kafka_consume_failed",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"consumer_group", consumerGroup,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"attempts", handlerAttempts,
		"error", err.Error(),
	)
}

func (k *Kafka) removeSubscriber(topic string, target chan events.Envelope) {
	k.mu.Lock()
	defer k.mu.Unlock()

	items := k.subscribers[topic]
	if len(items) == 0 {
		return
	}
	filtered := make([]chan events.Envelope, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	k.subscribers[topic] = filtered
}
