package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "voteledger/contexts/community-voting/voting-ledger/application"
	"voteledger/contexts/community-voting/voting-ledger/domain/entities"
	domainerrors "voteledger/contexts/community-voting/voting-ledger/domain/errors"
	"voteledger/contexts/community-voting/voting-ledger/ports"
)

// InitializeCommand sets the ledger admin. Admin must be the authenticated caller.
type InitializeCommand struct {
	Admin string
}

// RegisterCommand adds a new entity created by Caller.
type RegisterCommand struct {
	Caller string
	Name   string
}

// VoteCommand records Caller's single vote for Name.
type VoteCommand struct {
	Caller string
	Name   string
}

// RemoveCommand deletes an entity. Only the stored admin may remove.
type RemoveCommand struct {
	Caller string
	Name   string
}

// LedgerUseCase orchestrates the mutating ledger operations. Authentication
// always runs before any state is read, and each operation hands the
// repository one atomic unit (slot writes plus outbox event).
type LedgerUseCase struct {
	Ledger ports.LedgerRepository
	Auth   ports.Authenticator
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// Initialize stores admin and resets the entity set and total count. A ledger
// is initialized at most once; later calls fail with ErrAlreadyInitialized.
func (uc LedgerUseCase) Initialize(ctx context.Context, cmd InitializeCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	admin := strings.TrimSpace(cmd.Admin)
	logger.Info("ledger initialize processing started",
		"event", "ledger_initialize_started",
		"module", "community-voting/voting-ledger",
		"layer", "application",
		"admin", admin,
	)
	if err := uc.requireAuth(ctx, admin); err != nil {
		logger.Warn("ledger initialize authentication failed",
			"event", "ledger_initialize_unauthenticated",
			"module", "community-voting/voting-ledger",
			"layer", "application",
			"admin", admin,
		)
		return err
	}

	now := uc.now()
	event, err := uc.newEvent(ctx, ports.EventLedgerInitialized, "admin", admin, now, map[string]any{
		"admin": admin,
	})
	if err != nil {
		return err
	}
	if err := uc.Ledger.InitializeLedger(ctx, entities.LedgerMeta{
		Admin:         admin,
		TotalEntities: 0,
		InitializedAt: now,
	}, event); err != nil {
		logger.Warn("ledger initialize rejected",
			"event", "ledger_initialize_rejected",
			"module", "community-voting/voting-ledger",
			"layer", "application",
			"admin", admin,
			"error", err.Error(),
		)
		return err
	}

	logger.Info("ledger initialized",
		"event", "ledger_initialized",
		"module", "community-voting/voting-ledger",
		"layer", "application",
		"admin", admin,
	)
	return nil
}

// Register validates the name and creates the entity with a zero counter.
func (uc LedgerUseCase) Register(ctx context.Context, cmd RegisterCommand) (entities.Entity, error) {
	logger := application.ResolveLogger(uc.Logger)
	caller := strings.TrimSpace(cmd.Caller)
	logger.Info("entity register processing started",
		"event", "ledger_register_started",
		"module", "community-voting/voting-ledger",
		"layer", "application",
		"caller", caller,
		"name", cmd.Name,
	)
	if err := uc.requireAuth(ctx, caller); err != nil {
		logger.Warn("entity register authentication failed",
			"event", "ledger_register_unauthenticated",
			"module", "community-voting/voting-ledger",
			"layer", "application",
			"caller", caller,
		)
		return entities.Entity{}, err
	}
	if err := entities.ValidateName(cmd.Name); err != nil {
		logger.Warn("entity register validation failed",
			"event", "ledger_register_validation_failed",
			"module", "community-voting/voting-ledger",
			"layer", "application",
			"caller", caller,
			"name_length", len([]rune(cmd.Name)),
			"error", err.Error(),
		)
		return entities.Entity{}, err
	}

	now := uc.now()
	event, err := uc.newEvent(ctx, ports.EventEntityRegistered, "name", cmd.Name, now, map[string]any{
		"name":    cmd.Name,
		"creator": caller,
	})
	if err != nil {
		return entities.Entity{}, err
	}
	created, err := uc.Ledger.CreateEntity(ctx, entities.Entity{
		Name:         cmd.Name,
		VoteCount:    0,
		Creator:      caller,
		RegisteredAt: now,
	}, event)
	if err != nil {
		logger.Warn("entity register rejected",
			"event", "ledger_register_rejected",
			"module", "community-voting/voting-ledger",
			"layer", "application",
			"caller", caller,
			"name", cmd.Name,
			"error", err.Error(),
		)
		return entities.Entity{}, err
	}

	logger.Info("entity registered",
		"event", "ledger_entity_registered",
		"module", "community-voting/voting-ledger",
		"layer", "application",
		"caller", caller,
		"name", created.Name,
		"sequence", created.Sequence,
	)
	return created, nil
}

// Vote records the caller's vote. The repository enforces NotFound before
// AlreadyVoted and increments the counter together with the vote record.
func (uc LedgerUseCase) Vote(ctx context.Context, cmd VoteCommand) (entities.Entity, error) {
	logger := application.ResolveLogger(uc.Logger)
	caller := strings.TrimSpace(cmd.Caller)
	logger.Info("entity vote processing started",
		"event", "ledger_vote_started",
		"module", "community-voting/voting-ledger",
		"layer", "application",
		"caller", caller,
		"name", cmd.Name,
	)
	if err := uc.requireAuth(ctx, caller); err != nil {
		logger.Warn("entity vote authentication failed",
			"event", "ledger_vote_unauthenticated",
			"module", "community-voting/voting-ledger",
			"layer", "application",
			"caller", caller,
		)
		return entities.Entity{}, err
	}

	now := uc.now()
	event, err := uc.newEvent(ctx, ports.EventEntityVoted, "name", cmd.Name, now, map[string]any{
		"name":  cmd.Name,
		"voter": caller,
	})
	if err != nil {
		return entities.Entity{}, err
	}
	updated, err := uc.Ledger.RecordVote(ctx, entities.VoteRecord{
		Voter:      caller,
		EntityName: cmd.Name,
		VotedAt:    now,
	}, event)
	if err != nil {
		logger.Warn("entity vote rejected",
			"event", "ledger_vote_rejected",
			"module", "community-voting/voting-ledger",
			"layer", "application",
			"caller", caller,
			"name", cmd.Name,
			"error", err.Error(),
		)
		return entities.Entity{}, err
	}

	logger.Info("vote recorded",
		"event", "ledger_vote_recorded",
		"module", "community-voting/voting-ledger",
		"layer", "application",
		"caller", caller,
		"name", updated.Name,
		"vote_count", updated.VoteCount,
	)
	return updated, nil
}

// Remove deletes an entity on behalf of the admin. Vote records that mention
// the entity stay in place, so voters can never vote for the name again.
func (uc LedgerUseCase) Remove(ctx context.Context, cmd RemoveCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	caller := strings.TrimSpace(cmd.Caller)
	logger.Info("entity remove processing started",
		"event", "ledger_remove_started",
		"module", "community-voting/voting-ledger",
		"layer", "application",
		"caller", caller,
		"name", cmd.Name,
	)
	if err := uc.requireAuth(ctx, caller); err != nil {
		logger.Warn("entity remove authentication failed",
			"event", "ledger_remove_unauthenticated",
			"module", "community-voting/voting-ledger",
			"layer", "application",
			"caller", caller,
		)
		return err
	}

	meta, err := uc.Ledger.GetMeta(ctx)
	if err != nil {
		return err
	}
	// Admin is immutable once set, so checking it outside the delete unit is safe.
	if !meta.Initialized() || meta.Admin != caller {
		logger.Warn("entity remove unauthorized",
			"event", "ledger_remove_unauthorized",
			"module", "community-voting/voting-ledger",
			"layer", "application",
			"caller", caller,
			"name", cmd.Name,
		)
		return domainerrors.ErrUnauthorized
	}

	now := uc.now()
	event, err := uc.newEvent(ctx, ports.EventEntityRemoved, "name", cmd.Name, now, map[string]any{
		"name":       cmd.Name,
		"removed_by": caller,
	})
	if err != nil {
		return err
	}
	removed, err := uc.Ledger.DeleteEntity(ctx, cmd.Name, event)
	if err != nil {
		logger.Warn("entity remove rejected",
			"event", "ledger_remove_rejected",
			"module", "community-voting/voting-ledger",
			"layer", "application",
			"caller", caller,
			"name", cmd.Name,
			"error", err.Error(),
		)
		return err
	}

	logger.Info("entity removed",
		"event", "ledger_entity_removed",
		"module", "community-voting/voting-ledger",
		"layer", "application",
		"caller", caller,
		"name", removed.Name,
		"vote_count", removed.VoteCount,
	)
	return nil
}

func (uc LedgerUseCase) requireAuth(ctx context.Context, identity string) error {
	if identity == "" || uc.Auth == nil {
		return domainerrors.ErrUnauthenticated
	}
	return uc.Auth.RequireAuth(ctx, identity)
}

func (uc LedgerUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc LedgerUseCase) newEvent(
	ctx context.Context,
	eventType string,
	partitionKeyPath string,
	partitionKey string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return newLedgerEnvelope(eventID, eventType, partitionKeyPath, partitionKey, occurredAt, data)
}
