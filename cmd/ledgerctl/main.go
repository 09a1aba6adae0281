package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	votingledger "voteledger/contexts/community-voting/voting-ledger"
	"voteledger/internal/app/bootstrap"
	"voteledger/internal/app/cli"
	"voteledger/internal/platform/config"
)

// ledgerctl runs one ledger operation per invocation. The memory driver
// would lose state between invocations, so it falls back to SQLite.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	open := func(ctx context.Context) (votingledger.Module, func() error, error) {
		cfg, err := config.Load()
		if err != nil {
			return votingledger.Module{}, nil, err
		}
		if cfg.DatabaseDriver == config.DriverMemory {
			cfg.DatabaseDriver = config.DriverSQLite
		}
		ledger, err := bootstrap.BuildLedger(ctx, cfg, logger)
		if err != nil {
			return votingledger.Module{}, nil, err
		}
		return ledger.Module, ledger.Close, nil
	}

	err := cli.NewRootCommand(open).ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
	}
	stop()
	os.Exit(cli.ExitCode(err))
}
