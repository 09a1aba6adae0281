package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"voteledger/contexts/community-voting/voting-ledger/domain/entities"
	domainerrors "voteledger/contexts/community-voting/voting-ledger/domain/errors"
	"voteledger/contexts/community-voting/voting-ledger/ports"
	"voteledger/internal/shared/outbox"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message  ports.OutboxMessage
	position uint64
	status   string
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

// Store keeps every ledger slot in process memory. One mutex hold covers each
// mutation, so slot writes and the outbox row become visible together.
type Store struct {
	mu sync.RWMutex

	meta         entities.LedgerMeta
	entityRows   map[string]entities.Entity
	entityVotes  map[string]uint64
	userVotes    map[string][]entities.VoteRecord
	nextSequence uint64

	outbox     map[string]outboxRecord
	outboxSeq  uint64
	eventDedup map[string]dedupRecord
	scores     map[string]uint64
}

// NewStore seeds registered entities in the given order. Seeded vote counts
// become the initial counters and count toward total entities.
func NewStore(seed []entities.Entity) *Store {
	s := &Store{
		entityRows:  make(map[string]entities.Entity, len(seed)),
		entityVotes: make(map[string]uint64, len(seed)),
		userVotes:   make(map[string][]entities.VoteRecord),
		outbox:      make(map[string]outboxRecord),
		eventDedup:  make(map[string]dedupRecord),
		scores:      make(map[string]uint64),
	}
	for _, entity := range seed {
		if _, exists := s.entityRows[entity.Name]; exists {
			continue
		}
		s.nextSequence++
		entity.Sequence = s.nextSequence
		s.entityVotes[entity.Name] = entity.VoteCount
		s.scores[entity.Name] = entity.VoteCount
		entity.VoteCount = 0
		s.entityRows[entity.Name] = entity
		s.meta.TotalEntities++
	}
	return s
}

func (s *Store) GetMeta(_ context.Context) (entities.LedgerMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta, nil
}

func (s *Store) InitializeLedger(_ context.Context, meta entities.LedgerMeta, event ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.meta.Initialized() {
		return domainerrors.ErrAlreadyInitialized
	}
	if err := s.checkOutboxLocked(event); err != nil {
		return err
	}
	s.meta = entities.LedgerMeta{
		Admin:         strings.TrimSpace(meta.Admin),
		TotalEntities: 0,
		InitializedAt: meta.InitializedAt.UTC(),
	}
	s.entityRows = make(map[string]entities.Entity)
	s.entityVotes = make(map[string]uint64)
	s.appendOutboxLocked(event)
	return nil
}

func (s *Store) CreateEntity(
	_ context.Context,
	entity entities.Entity,
	event ports.EventEnvelope,
) (entities.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entityRows[entity.Name]; exists {
		return entities.Entity{}, domainerrors.ErrAlreadyExists
	}
	if err := s.checkOutboxLocked(event); err != nil {
		return entities.Entity{}, err
	}
	s.nextSequence++
	row := entities.Entity{
		Name:         entity.Name,
		Creator:      strings.TrimSpace(entity.Creator),
		Sequence:     s.nextSequence,
		RegisteredAt: entity.RegisteredAt.UTC(),
	}
	s.entityRows[row.Name] = row
	s.entityVotes[row.Name] = 0
	s.meta.TotalEntities++
	s.appendOutboxLocked(event)
	return row, nil
}

func (s *Store) RecordVote(
	_ context.Context,
	record entities.VoteRecord,
	event ports.EventEnvelope,
) (entities.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.entityRows[record.EntityName]
	if !exists {
		return entities.Entity{}, domainerrors.ErrNotFound
	}
	voter := strings.TrimSpace(record.Voter)
	if hasVote(s.userVotes[voter], record.EntityName) {
		return entities.Entity{}, domainerrors.ErrAlreadyVoted
	}
	if err := s.checkOutboxLocked(event); err != nil {
		return entities.Entity{}, err
	}
	s.entityVotes[row.Name]++
	s.userVotes[voter] = append(s.userVotes[voter], entities.VoteRecord{
		Voter:      voter,
		EntityName: record.EntityName,
		VotedAt:    record.VotedAt.UTC(),
	})
	s.appendOutboxLocked(event)
	return s.withCountLocked(row), nil
}

func (s *Store) DeleteEntity(_ context.Context, name string, event ports.EventEnvelope) (entities.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.entityRows[name]
	if !exists {
		return entities.Entity{}, domainerrors.ErrNotFound
	}
	if err := s.checkOutboxLocked(event); err != nil {
		return entities.Entity{}, err
	}
	removed := s.withCountLocked(row)
	delete(s.entityRows, name)
	delete(s.entityVotes, name)
	if s.meta.TotalEntities > 0 {
		s.meta.TotalEntities--
	}
	s.appendOutboxLocked(event)
	return removed, nil
}

func (s *Store) GetEntity(_ context.Context, name string) (entities.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, exists := s.entityRows[name]
	if !exists {
		return entities.Entity{}, domainerrors.ErrNotFound
	}
	return s.withCountLocked(row), nil
}

func (s *Store) ListEntities(_ context.Context) ([]entities.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Entity, 0, len(s.entityRows))
	for _, row := range s.entityRows {
		items = append(items, s.withCountLocked(row))
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Sequence < items[j].Sequence
	})
	return items, nil
}

func (s *Store) ListUserVotes(_ context.Context, voter string) ([]entities.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.VoteRecord{}, s.userVotes[strings.TrimSpace(voter)]...), nil
}

func (s *Store) HasVoted(_ context.Context, voter string, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return hasVote(s.userVotes[strings.TrimSpace(voter)], name), nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.status != outbox.StatusPending {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].message.CreatedAt.Equal(rows[j].message.CreatedAt) {
			return rows[i].position < rows[j].position
		}
		return rows[i].message.CreatedAt.Before(rows[j].message.CreatedAt)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.status = outbox.StatusPublished
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) ReserveEvent(
	_ context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(eventID)
	existing, ok := s.eventDedup[key]
	if ok {
		if !existing.expiresAt.IsZero() && time.Now().UTC().After(existing.expiresAt.UTC()) {
			delete(s.eventDedup, key)
		} else {
			if existing.payloadHash != strings.TrimSpace(payloadHash) {
				return false, domainerrors.ErrConflict
			}
			return true, nil
		}
	}

	s.eventDedup[key] = dedupRecord{
		payloadHash: strings.TrimSpace(payloadHash),
		expiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

func (s *Store) ReleaseEvent(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.eventDedup, strings.TrimSpace(eventID))
	return nil
}

func (s *Store) ResetScores(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = make(map[string]uint64)
	return nil
}

func (s *Store) RegisterScore(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scores[name]; !ok {
		s.scores[name] = 0
	}
	return nil
}

func (s *Store) IncrementScore(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scores[name]; ok {
		s.scores[name]++
	}
	return nil
}

func (s *Store) DeleteScore(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scores, name)
	return nil
}

func (s *Store) TopScores(_ context.Context, limit int) ([]ports.ScoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]ports.ScoreEntry, 0, len(s.scores))
	for name, votes := range s.scores {
		items = append(items, ports.ScoreEntry{Name: name, Votes: votes})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Votes == items[j].Votes {
			return items[i].Name < items[j].Name
		}
		return items[i].Votes > items[j].Votes
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) withCountLocked(row entities.Entity) entities.Entity {
	row.VoteCount = s.entityVotes[row.Name]
	return row
}

// checkOutboxLocked rejects an event id reused with a different payload
// before any slot is written.
func (s *Store) checkOutboxLocked(event ports.EventEnvelope) error {
	outboxID := strings.TrimSpace(event.EventID)
	if outboxID == "" {
		return nil
	}
	existing, ok := s.outbox[outboxID]
	if !ok {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if !bytes.Equal(existing.message.Payload, payload) {
		return domainerrors.ErrConflict
	}
	return nil
}

func (s *Store) appendOutboxLocked(event ports.EventEnvelope) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	outboxID := strings.TrimSpace(event.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if _, ok := s.outbox[outboxID]; ok {
		return
	}
	createdAt := event.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outboxSeq++
	s.outbox[outboxID] = outboxRecord{
		position: s.outboxSeq,
		status:   outbox.StatusPending,
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(event.EventType),
			PartitionKey: strings.TrimSpace(event.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
}

func hasVote(records []entities.VoteRecord, name string) bool {
	for _, record := range records {
		if record.EntityName == name {
			return true
		}
	}
	return false
}

var _ ports.LedgerRepository = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.EventDedupStore = (*Store)(nil)
var _ ports.Scoreboard = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
