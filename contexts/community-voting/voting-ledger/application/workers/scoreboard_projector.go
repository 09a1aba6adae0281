package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "voteledger/contexts/community-voting/voting-ledger/application"
	"voteledger/contexts/community-voting/voting-ledger/ports"
)

const defaultScoreboardConsumerGroup = "voting-ledger-scoreboard-cg"

// ScoreboardProjector keeps the scoreboard projection in step with ledger
// events. Each event is applied at most once per dedup window.
type ScoreboardProjector struct {
	Subscriber    ports.EventSubscriber
	Scores        ports.Scoreboard
	Dedup         ports.EventDedupStore
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Logger        *slog.Logger
}

type entityEventPayload struct {
	Name string `json:"name"`
}

// Start subscribes to the ledger topic, which delivers events in commit order.
func (p ScoreboardProjector) Start(ctx context.Context) error {
	group := p.ConsumerGroup
	if group == "" {
		group = defaultScoreboardConsumerGroup
	}
	return p.Subscriber.Subscribe(ctx, ports.TopicLedgerEvents, group, p.Handle)
}

// Handle applies one ledger event to the projection. The dedup reservation is
// released when the update fails, so a redelivered event is applied again.
func (p ScoreboardProjector) Handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(p.Logger)
	if strings.TrimSpace(event.EventID) == "" {
		logger.Warn("scoreboard event missing id",
			"event", "ledger_scoreboard_event_invalid",
			"module", "community-voting/voting-ledger",
			"layer", "worker",
			"event_type", event.EventType,
		)
		return nil
	}

	var payload entityEventPayload
	switch event.EventType {
	case ports.EventLedgerInitialized:
	case ports.EventEntityRegistered, ports.EventEntityVoted, ports.EventEntityRemoved:
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", event.EventType, err)
		}
	default:
		return nil
	}

	if p.Dedup != nil {
		duplicate, err := p.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), p.now().Add(p.dedupTTL()))
		if err != nil {
			return err
		}
		if duplicate {
			logger.Debug("scoreboard event already applied",
				"event", "ledger_scoreboard_event_duplicate",
				"module", "community-voting/voting-ledger",
				"layer", "worker",
				"event_id", event.EventID,
			)
			return nil
		}
	}

	if err := p.apply(ctx, event.EventType, payload.Name); err != nil {
		logger.Error("scoreboard projection update failed",
			"event", "ledger_scoreboard_update_failed",
			"module", "community-voting/voting-ledger",
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"name", payload.Name,
			"error", err.Error(),
		)
		if p.Dedup != nil {
			if releaseErr := p.Dedup.ReleaseEvent(ctx, event.EventID); releaseErr != nil {
				return errors.Join(err, fmt.Errorf("release event %s: %w", event.EventID, releaseErr))
			}
		}
		return err
	}
	return nil
}

func (p ScoreboardProjector) apply(ctx context.Context, eventType string, name string) error {
	switch eventType {
	case ports.EventLedgerInitialized:
		return p.Scores.ResetScores(ctx)
	case ports.EventEntityRegistered:
		return p.Scores.RegisterScore(ctx, name)
	case ports.EventEntityVoted:
		return p.Scores.IncrementScore(ctx, name)
	case ports.EventEntityRemoved:
		return p.Scores.DeleteScore(ctx, name)
	}
	return nil
}

func (p ScoreboardProjector) now() time.Time {
	if p.Clock != nil {
		return p.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (p ScoreboardProjector) dedupTTL() time.Duration {
	if p.DedupTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return p.DedupTTL
}
