package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "voteledger/contexts/community-voting/voting-ledger/application"
	"voteledger/contexts/community-voting/voting-ledger/ports"
)

// OutboxRelay publishes persisted outbox records to the event bus. All rows go
// to one topic so consumers see ledger events in commit order.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	Topic     string
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce publishes a bounded batch of pending outbox rows and marks each row
// published only after the broker accepted it. It stops on the first failure
// so the next cycle retries the remaining rows in order.
func (r OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("ledger outbox list failed",
			"event", "ledger_outbox_list_failed",
			"module", "community-voting/voting-ledger",
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}
	if len(pending) == 0 {
		logger.Debug("ledger outbox relay found no pending rows",
			"event", "ledger_outbox_relay_noop",
			"module", "community-voting/voting-ledger",
			"layer", "worker",
			"batch_size", limit,
		)
		return 0, nil
	}

	published := 0
	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("ledger outbox decode failed",
				"event", "ledger_outbox_decode_failed",
				"module", "community-voting/voting-ledger",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return published, err
		}
		if event.EventType == "" {
			event.EventType = row.EventType
		}
		if err := r.Publisher.Publish(ctx, r.topic(), event); err != nil {
			logger.Error("ledger outbox publish failed",
				"event", "ledger_outbox_publish_failed",
				"module", "community-voting/voting-ledger",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_id", event.EventID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			return published, err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, r.now()); err != nil {
			logger.Error("ledger outbox mark published failed",
				"event", "ledger_outbox_mark_published_failed",
				"module", "community-voting/voting-ledger",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return published, err
		}
		published++
	}

	logger.Info("ledger outbox relay cycle completed",
		"event", "ledger_outbox_relay_completed",
		"module", "community-voting/voting-ledger",
		"layer", "worker",
		"published_count", published,
	)
	return published, nil
}

func (r OutboxRelay) topic() string {
	if r.Topic == "" {
		return ports.TopicLedgerEvents
	}
	return r.Topic
}

func (r OutboxRelay) now() time.Time {
	if r.Clock != nil {
		return r.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
