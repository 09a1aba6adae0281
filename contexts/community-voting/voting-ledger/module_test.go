package votingledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"voteledger/contexts/community-voting/voting-ledger/adapters/identity"
	"voteledger/contexts/community-voting/voting-ledger/application/commands"
	"voteledger/contexts/community-voting/voting-ledger/application/workers"
	"voteledger/contexts/community-voting/voting-ledger/domain/entities"
	domainerrors "voteledger/contexts/community-voting/voting-ledger/domain/errors"
	"voteledger/contexts/community-voting/voting-ledger/ports"
	httptransport "voteledger/contexts/community-voting/voting-ledger/transport/http"
)

func as(user string) context.Context {
	return identity.WithPrincipal(context.Background(), user)
}

func mustRegister(t *testing.T, module Module, user string, name string) {
	t.Helper()
	if _, err := module.Handler.RegisterEntityHandler(as(user), user, httptransport.RegisterEntityRequest{Name: name}); err != nil {
		t.Fatalf("register %s as %s: %v", name, user, err)
	}
}

func mustVote(t *testing.T, module Module, user string, name string) {
	t.Helper()
	if _, err := module.Handler.VoteHandler(as(user), user, name); err != nil {
		t.Fatalf("vote %s as %s: %v", name, user, err)
	}
}

func rankedNames(t *testing.T, module Module) string {
	t.Helper()
	list, err := module.Handler.ListEntitiesHandler(context.Background())
	if err != nil {
		t.Fatalf("list entities: %v", err)
	}
	names := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		names = append(names, item.Name)
	}
	return strings.Join(names, ",")
}

func TestLedgerInitializeRegisterVote(t *testing.T) {
	module := NewInMemoryModule(nil, nil)
	ctx := context.Background()

	if _, err := module.Handler.InitializeHandler(as("alice"), "alice"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	mustRegister(t, module, "alice", "Lion")
	mustVote(t, module, "bob", "Lion")

	votes, err := module.Handler.EntityVotesHandler(ctx, "Lion")
	if err != nil {
		t.Fatalf("votes: %v", err)
	}
	if votes.Votes != 1 {
		t.Fatalf("expected 1 vote, got %d", votes.Votes)
	}
	voted, err := module.Handler.HasVotedHandler(ctx, "bob", "Lion")
	if err != nil {
		t.Fatalf("has voted: %v", err)
	}
	if !voted.Voted {
		t.Fatalf("expected bob to have voted")
	}
	stats, err := module.Handler.StatsHandler(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAnimals != 1 || stats.TotalVotes != 1 || stats.HighestVotes != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	admin, err := module.Handler.AdminHandler(ctx)
	if err != nil {
		t.Fatalf("admin: %v", err)
	}
	if admin.Admin != "alice" || !admin.Initialized {
		t.Fatalf("unexpected admin: %+v", admin)
	}
}

func TestLedgerRejectsSecondVote(t *testing.T) {
	module := NewInMemoryModule(nil, nil)
	mustRegister(t, module, "alice", "Lion")
	mustVote(t, module, "bob", "Lion")

	_, err := module.Handler.VoteHandler(as("bob"), "bob", "Lion")
	if !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected already voted, got %v", err)
	}
	votes, err := module.Handler.EntityVotesHandler(context.Background(), "Lion")
	if err != nil {
		t.Fatalf("votes: %v", err)
	}
	if votes.Votes != 1 {
		t.Fatalf("expected count to stay at 1, got %d", votes.Votes)
	}
}

func TestLedgerRankingAndWinner(t *testing.T) {
	module := NewInMemoryModule(nil, nil)
	for _, name := range []string{"Lion", "Tiger", "Bear", "Wolf"} {
		mustRegister(t, module, "alice", name)
	}
	mustVote(t, module, "u1", "Tiger")
	mustVote(t, module, "u2", "Tiger")
	mustVote(t, module, "u3", "Tiger")
	mustVote(t, module, "u1", "Wolf")
	mustVote(t, module, "u2", "Wolf")
	mustVote(t, module, "u1", "Lion")

	if got := rankedNames(t, module); got != "Tiger,Wolf,Lion,Bear" {
		t.Fatalf("unexpected ranking %s", got)
	}
	winner, err := module.Handler.WinnerHandler(context.Background())
	if err != nil {
		t.Fatalf("winner: %v", err)
	}
	if winner.Name != "Tiger" || winner.VoteCount != 3 {
		t.Fatalf("unexpected winner: %+v", winner)
	}
	totals, err := module.Handler.TotalsHandler(context.Background())
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.TotalAnimals != 4 || totals.TotalVotes != 6 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestLedgerTiesKeepRegistrationOrder(t *testing.T) {
	module := NewInMemoryModule(nil, nil)
	for _, name := range []string{"Owl", "Cat", "Ant"} {
		mustRegister(t, module, "alice", name)
	}
	mustVote(t, module, "u1", "Ant")
	mustVote(t, module, "u1", "Cat")

	if got := rankedNames(t, module); got != "Cat,Ant,Owl" {
		t.Fatalf("unexpected tie order %s", got)
	}
}

func TestLedgerWinnerOnEmptyLedger(t *testing.T) {
	module := NewInMemoryModule(nil, nil)
	if _, err := module.Handler.WinnerHandler(context.Background()); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	stats, err := module.Handler.StatsHandler(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAnimals != 0 || stats.TotalVotes != 0 || stats.HighestVotes != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}

func TestLedgerRemoveRequiresAdmin(t *testing.T) {
	module := NewInMemoryModule(nil, nil)
	mustRegister(t, module, "alice", "Lion")

	if _, err := module.Handler.RemoveEntityHandler(as("alice"), "alice", "Lion"); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized before initialize, got %v", err)
	}

	if _, err := module.Handler.InitializeHandler(as("alice"), "alice"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	mustRegister(t, module, "bob", "Lion")
	mustVote(t, module, "carol", "Lion")

	if _, err := module.Handler.RemoveEntityHandler(as("bob"), "bob", "Lion"); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for non-admin, got %v", err)
	}
	if _, err := module.Handler.RemoveEntityHandler(as("alice"), "alice", "Bear"); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	removed, err := module.Handler.RemoveEntityHandler(as("alice"), "alice", "Lion")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !removed.Removed {
		t.Fatalf("expected removed response")
	}

	if _, err := module.Handler.EntityVotesHandler(context.Background(), "Lion"); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found after remove, got %v", err)
	}
	history, err := module.Handler.UserVotesHandler(context.Background(), "carol")
	if err != nil {
		t.Fatalf("user votes: %v", err)
	}
	if len(history.Names) != 1 || history.Names[0] != "Lion" {
		t.Fatalf("expected carol's history to keep Lion, got %v", history.Names)
	}

	mustRegister(t, module, "bob", "Lion")
	if _, err := module.Handler.VoteHandler(as("carol"), "carol", "Lion"); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected stale vote record to block carol, got %v", err)
	}
	mustVote(t, module, "dave", "Lion")
}

func TestLedgerValidatesNames(t *testing.T) {
	module := NewInMemoryModule(nil, nil)
	cases := []struct {
		name string
		want error
	}{
		{name: "", want: domainerrors.ErrNameEmpty},
		{name: strings.Repeat("a", 31), want: domainerrors.ErrNameTooLong},
		{name: strings.Repeat("a", 30), want: nil},
		{name: " ", want: nil},
	}
	for _, tc := range cases {
		_, err := module.Handler.RegisterEntityHandler(as("alice"), "alice", httptransport.RegisterEntityRequest{Name: tc.name})
		if !errors.Is(err, tc.want) {
			t.Fatalf("register %q: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	mustRegister(t, module, "alice", "Lion")
	if _, err := module.Handler.RegisterEntityHandler(as("bob"), "bob", httptransport.RegisterEntityRequest{Name: "Lion"}); !errors.Is(err, domainerrors.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
}

func TestLedgerRequiresAuthentication(t *testing.T) {
	module := NewInMemoryModule(nil, nil)
	ctx := context.Background()

	if _, err := module.Handler.RegisterEntityHandler(ctx, "alice", httptransport.RegisterEntityRequest{Name: "Lion"}); !errors.Is(err, domainerrors.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated register, got %v", err)
	}
	if _, err := module.Handler.InitializeHandler(as("bob"), "alice"); !errors.Is(err, domainerrors.ErrUnauthenticated) {
		t.Fatalf("expected principal mismatch to fail, got %v", err)
	}
	if _, err := module.Handler.VoteHandler(as(""), "", "Lion"); !errors.Is(err, domainerrors.ErrUnauthenticated) {
		t.Fatalf("expected empty identity to fail, got %v", err)
	}
	// Authentication runs before existence checks.
	if _, err := module.Handler.VoteHandler(ctx, "bob", "Missing"); !errors.Is(err, domainerrors.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated before not found, got %v", err)
	}

	uc := commands.LedgerUseCase{Ledger: module.Store, IDGen: module.Store}
	if err := uc.Initialize(as("alice"), commands.InitializeCommand{Admin: "alice"}); !errors.Is(err, domainerrors.ErrUnauthenticated) {
		t.Fatalf("expected nil authenticator to reject, got %v", err)
	}
}

func TestLedgerInitializeIsOneShot(t *testing.T) {
	module := NewInMemoryModule(nil, nil)
	mustRegister(t, module, "alice", "Lion")
	mustVote(t, module, "bob", "Lion")

	if _, err := module.Handler.InitializeHandler(as("alice"), "alice"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if got := rankedNames(t, module); got != "" {
		t.Fatalf("expected initialize to clear entities, got %s", got)
	}
	if _, err := module.Handler.InitializeHandler(as("bob"), "bob"); !errors.Is(err, domainerrors.ErrAlreadyInitialized) {
		t.Fatalf("expected already initialized, got %v", err)
	}
	admin, err := module.Handler.AdminHandler(context.Background())
	if err != nil {
		t.Fatalf("admin: %v", err)
	}
	if admin.Admin != "alice" {
		t.Fatalf("expected admin to stay alice, got %s", admin.Admin)
	}
}

func TestLedgerConcurrentVotesCountEachVoterOnce(t *testing.T) {
	module := NewInMemoryModule(nil, nil)
	mustRegister(t, module, "alice", "Lion")

	voters := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8"}
	var wg sync.WaitGroup
	for _, voter := range voters {
		for attempt := 0; attempt < 3; attempt++ {
			wg.Add(1)
			go func(user string) {
				defer wg.Done()
				_, _ = module.Handler.VoteHandler(as(user), user, "Lion")
			}(voter)
		}
	}
	wg.Wait()

	votes, err := module.Handler.EntityVotesHandler(context.Background(), "Lion")
	if err != nil {
		t.Fatalf("votes: %v", err)
	}
	if votes.Votes != uint64(len(voters)) {
		t.Fatalf("expected %d votes, got %d", len(voters), votes.Votes)
	}
}

type directBus struct {
	handlers map[string][]func(context.Context, ports.EventEnvelope) error
}

func (b *directBus) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	for _, handler := range b.handlers[topic] {
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (b *directBus) Subscribe(
	_ context.Context,
	topic string,
	_ string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	if b.handlers == nil {
		b.handlers = make(map[string][]func(context.Context, ports.EventEnvelope) error)
	}
	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

func TestLedgerScoreboardFollowsOutbox(t *testing.T) {
	module := NewInMemoryModule([]entities.Entity{{Name: "Seeded", Creator: "ops"}}, nil)
	bus := &directBus{}
	projector := workers.ScoreboardProjector{
		Subscriber: bus,
		Scores:     module.Store,
		Dedup:      module.Store,
	}
	if err := projector.Start(context.Background()); err != nil {
		t.Fatalf("start projector: %v", err)
	}
	relay := workers.OutboxRelay{Outbox: module.Store, Publisher: bus}

	if _, err := module.Handler.InitializeHandler(as("alice"), "alice"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	mustRegister(t, module, "alice", "Lion")
	mustRegister(t, module, "alice", "Tiger")
	mustVote(t, module, "bob", "Tiger")
	mustVote(t, module, "carol", "Tiger")
	mustVote(t, module, "bob", "Lion")
	if _, err := module.Handler.RemoveEntityHandler(as("alice"), "alice", "Lion"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	published, err := relay.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("relay: %v", err)
	}
	if published != 7 {
		t.Fatalf("expected 7 published events, got %d", published)
	}
	if again, err := relay.RunOnce(context.Background()); err != nil || again != 0 {
		t.Fatalf("expected empty second cycle, got %d, %v", again, err)
	}

	board, err := module.Handler.ScoreboardHandler(context.Background(), 10)
	if err != nil {
		t.Fatalf("scoreboard: %v", err)
	}
	if len(board.Items) != 1 || board.Items[0].Name != "Tiger" || board.Items[0].Votes != 2 {
		t.Fatalf("unexpected scoreboard: %+v", board.Items)
	}
}

func TestLedgerTrimsCallerIdentityButNotNames(t *testing.T) {
	module := NewInMemoryModule(nil, nil)
	mustRegister(t, module, "alice", "Lion")
	mustVote(t, module, "bob", "Lion")

	if _, err := module.Handler.VoteHandler(as(" bob "), " bob ", "Lion"); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected padded identity to be the same voter, got %v", err)
	}
	if _, err := module.Handler.VoteHandler(as("bob"), "bob", " Lion"); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected padded name to be a different entity, got %v", err)
	}
	history, err := module.Handler.UserVotesHandler(context.Background(), "bob")
	if err != nil {
		t.Fatalf("user votes: %v", err)
	}
	if len(history.Names) != 1 || history.Names[0] != "Lion" {
		t.Fatalf("expected single Lion vote, got %v", history.Names)
	}
}
