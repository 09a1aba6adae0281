package ports

import (
	"context"
	"time"

	"voteledger/contexts/community-voting/voting-ledger/domain/entities"
	"voteledger/internal/shared/events"
)

// LedgerRepository owns the ledger slots (Admin, TotalEntities, Entities,
// EntityVotes, UserVotes). Every mutating method must commit its slot writes
// and the supplied outbox event atomically, or reject without writing.
type LedgerRepository interface {
	GetMeta(ctx context.Context) (entities.LedgerMeta, error)
	// InitializeLedger fails with ErrAlreadyInitialized when an admin is stored.
	InitializeLedger(ctx context.Context, meta entities.LedgerMeta, event EventEnvelope) error
	// CreateEntity assigns the registration sequence and fails with
	// ErrAlreadyExists on an exact name match.
	CreateEntity(ctx context.Context, entity entities.Entity, event EventEnvelope) (entities.Entity, error)
	// RecordVote fails with ErrNotFound before ErrAlreadyVoted.
	RecordVote(ctx context.Context, record entities.VoteRecord, event EventEnvelope) (entities.Entity, error)
	// DeleteEntity removes the entity and its counter but keeps vote records.
	DeleteEntity(ctx context.Context, name string, event EventEnvelope) (entities.Entity, error)
	GetEntity(ctx context.Context, name string) (entities.Entity, error)
	// ListEntities returns entities in registration order.
	ListEntities(ctx context.Context) ([]entities.Entity, error)
	// ListUserVotes returns vote records in the order they were cast.
	ListUserVotes(ctx context.Context, voter string) ([]entities.VoteRecord, error)
	HasVoted(ctx context.Context, voter string, name string) (bool, error)
}

// Authenticator is the identity provider. RequireAuth must fail when the
// current request is not authenticated as identity.
type Authenticator interface {
	RequireAuth(ctx context.Context, identity string) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// OutboxMessage is a row ready to relay from the ledger outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventDedupStore provides idempotent processing guarantees for consumed events.
// A reservation that could not be applied must be released so a redelivery
// is processed again.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
	ReleaseEvent(ctx context.Context, eventID string) error
}

type EventEnvelope = events.Envelope

// TopicLedgerEvents carries every ledger event in commit order. Consumers
// dispatch on EventType.
const TopicLedgerEvents = "voting-ledger.events"

// Ledger event types.
const (
	EventLedgerInitialized = "ledger.initialized"
	EventEntityRegistered  = "entity.registered"
	EventEntityVoted       = "entity.voted"
	EventEntityRemoved     = "entity.removed"
)

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

type ScoreEntry struct {
	Name  string
	Votes uint64
}

// Scoreboard is the event-fed tally projection. It is eventually consistent
// with the ledger and never consulted for invariants. IncrementScore ignores
// names that are not registered on the scoreboard.
type Scoreboard interface {
	ResetScores(ctx context.Context) error
	RegisterScore(ctx context.Context, name string) error
	IncrementScore(ctx context.Context, name string) error
	DeleteScore(ctx context.Context, name string) error
	TopScores(ctx context.Context, limit int) ([]ScoreEntry, error)
}
