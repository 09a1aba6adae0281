package queries

import (
	"context"
	"strings"

	"voteledger/contexts/community-voting/voting-ledger/domain/entities"
	domainerrors "voteledger/contexts/community-voting/voting-ledger/domain/errors"
	"voteledger/contexts/community-voting/voting-ledger/ports"
)

// LedgerQueries serves the read-only ledger operations. Everything is
// computed from the persisted slots; nothing here caches.
type LedgerQueries struct {
	Ledger ports.LedgerRepository
}

// ListEntities returns all entities ranked by vote count, ties in
// registration order.
func (q LedgerQueries) ListEntities(ctx context.Context) ([]entities.Entity, error) {
	items, err := q.Ledger.ListEntities(ctx)
	if err != nil {
		return nil, err
	}
	return entities.Rank(items), nil
}

func (q LedgerQueries) GetVotes(ctx context.Context, name string) (uint64, error) {
	entity, err := q.Ledger.GetEntity(ctx, name)
	if err != nil {
		return 0, err
	}
	return entity.VoteCount, nil
}

// UserVotes returns every name the voter ever voted for, removed entities
// included, in the order the votes were cast.
func (q LedgerQueries) UserVotes(ctx context.Context, voter string) ([]string, error) {
	records, err := q.Ledger.ListUserVotes(ctx, strings.TrimSpace(voter))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(records))
	for _, record := range records {
		names = append(names, record.EntityName)
	}
	return names, nil
}

func (q LedgerQueries) HasVoted(ctx context.Context, voter string, name string) (bool, error) {
	return q.Ledger.HasVoted(ctx, strings.TrimSpace(voter), name)
}

func (q LedgerQueries) TotalEntities(ctx context.Context) (uint64, error) {
	meta, err := q.Ledger.GetMeta(ctx)
	if err != nil {
		return 0, err
	}
	return meta.TotalEntities, nil
}

func (q LedgerQueries) TotalVotes(ctx context.Context) (uint64, error) {
	items, err := q.Ledger.ListEntities(ctx)
	if err != nil {
		return 0, err
	}
	return entities.SumVotes(items), nil
}

// Winner is the first ranked entity. The bool is false when nothing is registered.
func (q LedgerQueries) Winner(ctx context.Context) (entities.Entity, bool, error) {
	ranked, err := q.ListEntities(ctx)
	if err != nil {
		return entities.Entity{}, false, err
	}
	if len(ranked) == 0 {
		return entities.Entity{}, false, nil
	}
	return ranked[0], true, nil
}

func (q LedgerQueries) Admin(ctx context.Context) (string, bool, error) {
	meta, err := q.Ledger.GetMeta(ctx)
	if err != nil {
		return "", false, err
	}
	return meta.Admin, meta.Initialized(), nil
}

// Stats aggregates total_animals, total_votes and highest_votes.
func (q LedgerQueries) Stats(ctx context.Context) (entities.Stats, error) {
	total, err := q.TotalEntities(ctx)
	if err != nil {
		return entities.Stats{}, err
	}
	ranked, err := q.ListEntities(ctx)
	if err != nil {
		return entities.Stats{}, err
	}
	stats := entities.Stats{
		TotalAnimals: total,
		TotalVotes:   entities.SumVotes(ranked),
	}
	if len(ranked) > 0 {
		stats.HighestVotes = ranked[0].VoteCount
	}
	return stats, nil
}

// ScoreboardQueries reads the event-fed projection.
type ScoreboardQueries struct {
	Scores ports.Scoreboard
}

func (q ScoreboardQueries) Top(ctx context.Context, limit int) ([]ports.ScoreEntry, error) {
	if q.Scores == nil {
		return nil, domainerrors.ErrScoreboardUnavailable
	}
	if limit <= 0 {
		limit = 10
	}
	return q.Scores.TopScores(ctx, limit)
}
