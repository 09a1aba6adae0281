package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"voteledger/contexts/community-voting/voting-ledger/adapters/identity"
	"voteledger/contexts/community-voting/voting-ledger/application/commands"
	"voteledger/internal/platform/config"
)

func testConfig(driver string) config.Config {
	return config.Config{
		ServiceName:               "voteledger",
		HTTPPort:                  "0",
		DatabaseDriver:            driver,
		DatabaseAutoMigrate:       true,
		KafkaBrokers:              []string{"localhost:9092"},
		OutboxPollInterval:        10 * time.Millisecond,
		OutboxBatchSize:           10,
		EnableScoreboardProjector: true,
	}
}

func TestBuildLedgerMemoryEnsuresAdminOnce(t *testing.T) {
	ctx := context.Background()
	ledger, err := BuildLedger(ctx, testConfig(config.DriverMemory), nil)
	if err != nil {
		t.Fatalf("build ledger: %v", err)
	}
	defer ledger.Close()

	if err := ledger.EnsureAdmin(ctx, "alice"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if err := ledger.EnsureAdmin(ctx, "bob"); err != nil {
		t.Fatalf("ensure admin again: %v", err)
	}
	admin, initialized, err := ledger.Module.Handler.Queries.Admin(ctx)
	if err != nil {
		t.Fatalf("admin: %v", err)
	}
	if !initialized || admin != "alice" {
		t.Fatalf("expected alice to stay admin, got %q initialized=%v", admin, initialized)
	}
}

func TestBuildLedgerSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.DriverSQLite)
	cfg.SQLitePath = filepath.Join(t.TempDir(), "ledger.db")

	first, err := BuildLedger(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("build ledger: %v", err)
	}
	if _, err := first.Module.Handler.Ledger.Register(identity.WithPrincipal(ctx, "alice"), commands.RegisterCommand{
		Caller: "alice",
		Name:   "Lion",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := BuildLedger(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	defer second.Close()
	votes, err := second.Module.Handler.Queries.GetVotes(ctx, "Lion")
	if err != nil {
		t.Fatalf("get votes after reopen: %v", err)
	}
	if votes != 0 {
		t.Fatalf("expected 0 votes, got %d", votes)
	}
	if second.Scoreboard != nil {
		t.Fatalf("expected no scoreboard without redis")
	}
}

func TestEmbeddedWorkerProjectsScoreboard(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig(config.DriverMemory)
	ledger, err := BuildLedger(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("build ledger: %v", err)
	}
	worker, err := newWorkerApp(ctx, cfg, ledger, nil)
	if err != nil {
		t.Fatalf("worker: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	principal := identity.WithPrincipal(ctx, "alice")
	if _, err := ledger.Module.Handler.Ledger.Register(principal, commands.RegisterCommand{Caller: "alice", Name: "Lion"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := ledger.Module.Handler.Ledger.Vote(principal, commands.VoteCommand{Caller: "alice", Name: "Lion"}); err != nil {
		t.Fatalf("vote: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		top, err := ledger.Scoreboard.TopScores(ctx, 10)
		if err != nil {
			t.Fatalf("top scores: %v", err)
		}
		if len(top) == 1 && top[0].Name == "Lion" && top[0].Votes == 1 {
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("worker run: %v", err)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("scoreboard never caught up")
}

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":      ":8080",
		"9090":  ":9090",
		":7070": ":7070",
	}
	for input, want := range cases {
		if got := normalizeAddr(input); got != want {
			t.Fatalf("normalizeAddr(%q) = %q, want %q", input, got, want)
		}
	}
}
