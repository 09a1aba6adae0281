package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"voteledger/contexts/community-voting/voting-ledger/adapters/memory"
	"voteledger/contexts/community-voting/voting-ledger/domain/entities"
	"voteledger/contexts/community-voting/voting-ledger/ports"
)

type recordingPublisher struct {
	failAfter int
	topics    []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ ports.EventEnvelope) error {
	if p.failAfter >= 0 && len(p.topics) >= p.failAfter {
		return errors.New("broker unavailable")
	}
	p.topics = append(p.topics, topic)
	return nil
}

func seedOutbox(t *testing.T, store *memory.Store, names ...string) {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range names {
		event := ports.EventEnvelope{
			EventID:      "evt-" + name,
			EventType:    ports.EventEntityRegistered,
			OccurredAt:   base.Add(time.Duration(i) * time.Second),
			PartitionKey: name,
			Data:         json.RawMessage(`{"name":"` + name + `"}`),
		}
		if _, err := store.CreateEntity(context.Background(), entities.Entity{Name: name, Creator: "alice"}, event); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
}

func TestOutboxRelayPublishesInOrder(t *testing.T) {
	store := memory.NewStore(nil)
	seedOutbox(t, store, "Lion", "Tiger", "Bear")
	publisher := &recordingPublisher{failAfter: -1}

	published, err := OutboxRelay{Outbox: store, Publisher: publisher, BatchSize: 2}.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if published != 2 {
		t.Fatalf("expected batch of 2, got %d", published)
	}
	published, err = OutboxRelay{Outbox: store, Publisher: publisher, BatchSize: 2}.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if published != 1 {
		t.Fatalf("expected remaining 1, got %d", published)
	}
	if len(publisher.topics) != 3 {
		t.Fatalf("expected 3 publishes, got %d", len(publisher.topics))
	}
	for _, topic := range publisher.topics {
		if topic != ports.TopicLedgerEvents {
			t.Fatalf("expected every event on %s, got %s", ports.TopicLedgerEvents, topic)
		}
	}
}

func TestOutboxRelayStopsOnPublishFailure(t *testing.T) {
	store := memory.NewStore(nil)
	seedOutbox(t, store, "Lion", "Tiger")
	publisher := &recordingPublisher{failAfter: 1}

	published, err := OutboxRelay{Outbox: store, Publisher: publisher}.RunOnce(context.Background())
	if err == nil {
		t.Fatalf("expected publish failure")
	}
	if published != 1 {
		t.Fatalf("expected 1 published before failure, got %d", published)
	}
	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].OutboxID != "evt-Tiger" {
		t.Fatalf("expected Tiger left pending, got %+v", pending)
	}
}

func TestScoreboardProjectorSkipsDuplicates(t *testing.T) {
	store := memory.NewStore(nil)
	projector := ScoreboardProjector{Scores: store, Dedup: store}
	ctx := context.Background()

	registered := ports.EventEnvelope{
		EventID:   "evt-1",
		EventType: ports.EventEntityRegistered,
		Data:      json.RawMessage(`{"name":"Lion"}`),
	}
	voted := ports.EventEnvelope{
		EventID:   "evt-2",
		EventType: ports.EventEntityVoted,
		Data:      json.RawMessage(`{"name":"Lion"}`),
	}
	for _, event := range []ports.EventEnvelope{registered, voted, voted} {
		if err := projector.Handle(ctx, event); err != nil {
			t.Fatalf("handle %s: %v", event.EventID, err)
		}
	}

	top, err := store.TopScores(ctx, 10)
	if err != nil {
		t.Fatalf("top scores: %v", err)
	}
	if len(top) != 1 || top[0].Votes != 1 {
		t.Fatalf("expected Lion with 1 vote, got %+v", top)
	}

	if err := projector.Handle(ctx, ports.EventEnvelope{
		EventID:   "evt-3",
		EventType: ports.EventLedgerInitialized,
		Data:      json.RawMessage(`{"admin":"alice"}`),
	}); err != nil {
		t.Fatalf("handle init: %v", err)
	}
	top, err = store.TopScores(ctx, 10)
	if err != nil {
		t.Fatalf("top scores: %v", err)
	}
	if len(top) != 0 {
		t.Fatalf("expected reset scoreboard, got %+v", top)
	}
}

func TestScoreboardProjectorRejectsBadPayload(t *testing.T) {
	store := memory.NewStore(nil)
	projector := ScoreboardProjector{Scores: store}
	err := projector.Handle(context.Background(), ports.EventEnvelope{
		EventID:   "evt-bad",
		EventType: ports.EventEntityVoted,
		Data:      json.RawMessage(`not-json`),
	})
	if err == nil {
		t.Fatalf("expected decode error")
	}
}

type flakyScoreboard struct {
	*memory.Store
	failures int
}

func (f *flakyScoreboard) IncrementScore(ctx context.Context, name string) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("redis down")
	}
	return f.Store.IncrementScore(ctx, name)
}

func entityEvent(id string, eventType string, name string) ports.EventEnvelope {
	return ports.EventEnvelope{
		EventID:   id,
		EventType: eventType,
		Data:      json.RawMessage(`{"name":"` + name + `"}`),
	}
}

func TestScoreboardProjectorAppliesRedeliveryAfterFailure(t *testing.T) {
	store := memory.NewStore(nil)
	scores := &flakyScoreboard{Store: store, failures: 1}
	projector := ScoreboardProjector{Scores: scores, Dedup: store}
	ctx := context.Background()

	if err := projector.Handle(ctx, entityEvent("evt-1", ports.EventEntityRegistered, "Lion")); err != nil {
		t.Fatalf("handle register: %v", err)
	}
	voted := entityEvent("evt-2", ports.EventEntityVoted, "Lion")
	if err := projector.Handle(ctx, voted); err == nil {
		t.Fatalf("expected first delivery to fail")
	}
	if err := projector.Handle(ctx, voted); err != nil {
		t.Fatalf("handle redelivery: %v", err)
	}
	if err := projector.Handle(ctx, voted); err != nil {
		t.Fatalf("handle duplicate: %v", err)
	}

	top, err := store.TopScores(ctx, 10)
	if err != nil {
		t.Fatalf("top scores: %v", err)
	}
	if len(top) != 1 || top[0].Name != "Lion" || top[0].Votes != 1 {
		t.Fatalf("expected Lion with 1 vote, got %+v", top)
	}
}

func TestScoreboardProjectorIgnoresVoteForRemovedEntity(t *testing.T) {
	store := memory.NewStore(nil)
	projector := ScoreboardProjector{Scores: store, Dedup: store}
	ctx := context.Background()

	for _, event := range []ports.EventEnvelope{
		entityEvent("evt-1", ports.EventEntityRegistered, "Lion"),
		entityEvent("evt-3", ports.EventEntityRemoved, "Lion"),
		entityEvent("evt-2", ports.EventEntityVoted, "Lion"),
	} {
		if err := projector.Handle(ctx, event); err != nil {
			t.Fatalf("handle %s: %v", event.EventID, err)
		}
	}

	top, err := store.TopScores(ctx, 10)
	if err != nil {
		t.Fatalf("top scores: %v", err)
	}
	if len(top) != 0 {
		t.Fatalf("expected removed entity to stay off the scoreboard, got %+v", top)
	}
}

type topicRecorder struct {
	topics []string
}

func (r *topicRecorder) Subscribe(
	_ context.Context,
	topic string,
	_ string,
	_ func(context.Context, ports.EventEnvelope) error,
) error {
	r.topics = append(r.topics, topic)
	return nil
}

func TestScoreboardProjectorSubscribesToOrderedTopic(t *testing.T) {
	recorder := &topicRecorder{}
	projector := ScoreboardProjector{Subscriber: recorder, Scores: memory.NewStore(nil)}
	if err := projector.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(recorder.topics) != 1 || recorder.topics[0] != ports.TopicLedgerEvents {
		t.Fatalf("expected a single subscription to %s, got %v", ports.TopicLedgerEvents, recorder.topics)
	}
}
