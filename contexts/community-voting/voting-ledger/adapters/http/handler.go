package httpadapter

import (
	"context"
	"log/slog"

	"voteledger/contexts/community-voting/voting-ledger/application/commands"
	"voteledger/contexts/community-voting/voting-ledger/application/queries"
	"voteledger/contexts/community-voting/voting-ledger/domain/entities"
	domainerrors "voteledger/contexts/community-voting/voting-ledger/domain/errors"
	httptransport "voteledger/contexts/community-voting/voting-ledger/transport/http"
)

type Handler struct {
	Ledger     commands.LedgerUseCase
	Queries    queries.LedgerQueries
	Scoreboard queries.ScoreboardQueries
	Logger     *slog.Logger
}

func (h Handler) InitializeHandler(ctx context.Context, callerID string) (httptransport.InitializeResponse, error) {
	if err := h.Ledger.Initialize(ctx, commands.InitializeCommand{Admin: callerID}); err != nil {
		return httptransport.InitializeResponse{}, err
	}
	return httptransport.InitializeResponse{Admin: callerID}, nil
}

func (h Handler) RegisterEntityHandler(
	ctx context.Context,
	callerID string,
	req httptransport.RegisterEntityRequest,
) (httptransport.EntityResponse, error) {
	created, err := h.Ledger.Register(ctx, commands.RegisterCommand{
		Caller: callerID,
		Name:   req.Name,
	})
	if err != nil {
		return httptransport.EntityResponse{}, err
	}
	return httptransport.EntityResponse{
		Name:      created.Name,
		VoteCount: created.VoteCount,
		Creator:   created.Creator,
	}, nil
}

func (h Handler) VoteHandler(ctx context.Context, callerID string, name string) (httptransport.VoteResponse, error) {
	updated, err := h.Ledger.Vote(ctx, commands.VoteCommand{
		Caller: callerID,
		Name:   name,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return httptransport.VoteResponse{
		Name:      updated.Name,
		Voter:     callerID,
		VoteCount: updated.VoteCount,
	}, nil
}

func (h Handler) RemoveEntityHandler(ctx context.Context, callerID string, name string) (httptransport.RemoveResponse, error) {
	if err := h.Ledger.Remove(ctx, commands.RemoveCommand{
		Caller: callerID,
		Name:   name,
	}); err != nil {
		return httptransport.RemoveResponse{}, err
	}
	return httptransport.RemoveResponse{Name: name, Removed: true}, nil
}

func (h Handler) ListEntitiesHandler(ctx context.Context) (httptransport.EntityListResponse, error) {
	ranked, err := h.Queries.ListEntities(ctx)
	if err != nil {
		return httptransport.EntityListResponse{}, err
	}
	return httptransport.EntityListResponse{Items: mapRanked(ranked)}, nil
}

func (h Handler) EntityVotesHandler(ctx context.Context, name string) (httptransport.EntityVotesResponse, error) {
	votes, err := h.Queries.GetVotes(ctx, name)
	if err != nil {
		return httptransport.EntityVotesResponse{}, err
	}
	return httptransport.EntityVotesResponse{Name: name, Votes: votes}, nil
}

func (h Handler) UserVotesHandler(ctx context.Context, userID string) (httptransport.UserVotesResponse, error) {
	names, err := h.Queries.UserVotes(ctx, userID)
	if err != nil {
		return httptransport.UserVotesResponse{}, err
	}
	return httptransport.UserVotesResponse{UserID: userID, Names: names}, nil
}

func (h Handler) HasVotedHandler(ctx context.Context, userID string, name string) (httptransport.HasVotedResponse, error) {
	voted, err := h.Queries.HasVoted(ctx, userID, name)
	if err != nil {
		return httptransport.HasVotedResponse{}, err
	}
	return httptransport.HasVotedResponse{UserID: userID, Name: name, Voted: voted}, nil
}

func (h Handler) TotalsHandler(ctx context.Context) (httptransport.TotalsResponse, error) {
	animals, err := h.Queries.TotalEntities(ctx)
	if err != nil {
		return httptransport.TotalsResponse{}, err
	}
	votes, err := h.Queries.TotalVotes(ctx)
	if err != nil {
		return httptransport.TotalsResponse{}, err
	}
	return httptransport.TotalsResponse{TotalAnimals: animals, TotalVotes: votes}, nil
}

func (h Handler) StatsHandler(ctx context.Context) (httptransport.StatsResponse, error) {
	stats, err := h.Queries.Stats(ctx)
	if err != nil {
		return httptransport.StatsResponse{}, err
	}
	return httptransport.StatsResponse{
		TotalAnimals: stats.TotalAnimals,
		TotalVotes:   stats.TotalVotes,
		HighestVotes: stats.HighestVotes,
	}, nil
}

// WinnerHandler returns ErrNotFound when no entity is registered.
func (h Handler) WinnerHandler(ctx context.Context) (httptransport.EntityResponse, error) {
	winner, ok, err := h.Queries.Winner(ctx)
	if err != nil {
		return httptransport.EntityResponse{}, err
	}
	if !ok {
		return httptransport.EntityResponse{}, domainerrors.ErrNotFound
	}
	return httptransport.EntityResponse{
		Name:      winner.Name,
		VoteCount: winner.VoteCount,
		Creator:   winner.Creator,
		Rank:      1,
	}, nil
}

func (h Handler) AdminHandler(ctx context.Context) (httptransport.AdminResponse, error) {
	admin, initialized, err := h.Queries.Admin(ctx)
	if err != nil {
		return httptransport.AdminResponse{}, err
	}
	return httptransport.AdminResponse{Admin: admin, Initialized: initialized}, nil
}

func (h Handler) ScoreboardHandler(ctx context.Context, limit int) (httptransport.ScoreboardResponse, error) {
	scores, err := h.Scoreboard.Top(ctx, limit)
	if err != nil {
		return httptransport.ScoreboardResponse{}, err
	}
	items := make([]httptransport.ScoreboardItem, 0, len(scores))
	for _, score := range scores {
		items = append(items, httptransport.ScoreboardItem{Name: score.Name, Votes: score.Votes})
	}
	return httptransport.ScoreboardResponse{Items: items}, nil
}

func mapRanked(ranked []entities.Entity) []httptransport.EntityResponse {
	items := make([]httptransport.EntityResponse, 0, len(ranked))
	for i, entity := range ranked {
		items = append(items, httptransport.EntityResponse{
			Name:      entity.Name,
			VoteCount: entity.VoteCount,
			Creator:   entity.Creator,
			Rank:      i + 1,
		})
	}
	return items
}
