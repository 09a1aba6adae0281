package redisadapter

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"voteledger/contexts/community-voting/voting-ledger/ports"

	"github.com/go-redis/redis/v8"
)

const defaultScoreboardKey = "voteledger:scoreboard"

// Scoreboard keeps the projected tally in a Redis sorted set, one member per
// registered name.
type Scoreboard struct {
	client redis.Cmdable
	key    string
	logger *slog.Logger
}

func NewScoreboard(client redis.Cmdable, key string, logger *slog.Logger) *Scoreboard {
	if strings.TrimSpace(key) == "" {
		key = defaultScoreboardKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scoreboard{
		client: client,
		key:    key,
		logger: logger,
	}
}

// Connect dials Redis and verifies the connection with a ping.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: strings.TrimSpace(addr)})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (s *Scoreboard) ResetScores(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return s.logError("ledger_scoreboard_reset_failed", err)
	}
	return nil
}

func (s *Scoreboard) RegisterScore(ctx context.Context, name string) error {
	if err := s.client.ZAddNX(ctx, s.key, &redis.Z{Score: 0, Member: name}).Err(); err != nil {
		return s.logError("ledger_scoreboard_register_failed", err, "name", name)
	}
	return nil
}

// IncrementScore only touches existing members; ZADD XX INCR replies nil for
// a name that was never registered or was already removed.
func (s *Scoreboard) IncrementScore(ctx context.Context, name string) error {
	err := s.client.ZIncrXX(ctx, s.key, &redis.Z{Score: 1, Member: name}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return s.logError("ledger_scoreboard_increment_failed", err, "name", name)
	}
	return nil
}

func (s *Scoreboard) DeleteScore(ctx context.Context, name string) error {
	if err := s.client.ZRem(ctx, s.key, name).Err(); err != nil {
		return s.logError("ledger_scoreboard_delete_failed", err, "name", name)
	}
	return nil
}

// TopScores orders by votes descending, then name ascending. Redis orders
// equal scores in reverse lexical order under ZREVRANGE, so the set is read
// whole and sorted here.
func (s *Scoreboard) TopScores(ctx context.Context, limit int) ([]ports.ScoreEntry, error) {
	members, err := s.client.ZRevRangeWithScores(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, s.logError("ledger_scoreboard_top_failed", err, "limit", limit)
	}
	items := make([]ports.ScoreEntry, 0, len(members))
	for _, member := range members {
		name, ok := member.Member.(string)
		if !ok {
			continue
		}
		votes := uint64(0)
		if member.Score > 0 {
			votes = uint64(member.Score)
		}
		items = append(items, ports.ScoreEntry{Name: name, Votes: votes})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Votes != items[j].Votes {
			return items[i].Votes > items[j].Votes
		}
		return items[i].Name < items[j].Name
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Scoreboard) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "community-voting/voting-ledger",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	s.logger.Error("ledger scoreboard operation failed", fields...)
	return err
}

var _ ports.Scoreboard = (*Scoreboard)(nil)
