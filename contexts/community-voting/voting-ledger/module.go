package votingledger

import (
	"log/slog"

	httpadapter "voteledger/contexts/community-voting/voting-ledger/adapters/http"
	"voteledger/contexts/community-voting/voting-ledger/adapters/identity"
	"voteledger/contexts/community-voting/voting-ledger/adapters/memory"
	"voteledger/contexts/community-voting/voting-ledger/application/commands"
	"voteledger/contexts/community-voting/voting-ledger/application/queries"
	"voteledger/contexts/community-voting/voting-ledger/domain/entities"
	"voteledger/contexts/community-voting/voting-ledger/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Ledger     ports.LedgerRepository
	Auth       ports.Authenticator
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Scoreboard ports.Scoreboard
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	ledgerUseCase := commands.LedgerUseCase{
		Ledger: deps.Ledger,
		Auth:   deps.Auth,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Ledger:     ledgerUseCase,
			Queries:    queries.LedgerQueries{Ledger: deps.Ledger},
			Scoreboard: queries.ScoreboardQueries{Scores: deps.Scoreboard},
			Logger:     deps.Logger,
		},
	}
}

// NewInMemoryModule wires the ledger against a single in-memory store that
// also serves as outbox, dedup store and scoreboard. Callers authenticate by
// attaching a principal with identity.WithPrincipal.
func NewInMemoryModule(seed []entities.Entity, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Ledger:     store,
		Auth:       identity.ContextAuthenticator{},
		Clock:      store,
		IDGen:      store,
		Scoreboard: store,
		Logger:     logger,
	})
	module.Store = store
	return module
}
