package redisadapter

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestScoreboardAgainstRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Connect(ctx, addr)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	defer client.Close()

	key := fmt.Sprintf("voteledger:test:%d", time.Now().UnixNano())
	board := NewScoreboard(client, key, nil)
	defer func() { _ = board.ResetScores(context.Background()) }()

	for _, name := range []string{"Lion", "Tiger", "Bear"} {
		if err := board.RegisterScore(ctx, name); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if err := board.IncrementScore(ctx, "Tiger"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := board.RegisterScore(ctx, "Tiger"); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if err := board.DeleteScore(ctx, "Lion"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := board.IncrementScore(ctx, "Lion"); err != nil {
		t.Fatalf("increment removed: %v", err)
	}

	top, err := board.TopScores(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].Name != "Tiger" || top[0].Votes != 1 {
		t.Fatalf("expected Tiger with 1 vote first, got %+v", top[0])
	}
	if top[1].Name != "Bear" || top[1].Votes != 0 {
		t.Fatalf("expected Bear second, got %+v", top[1])
	}
}
