package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	votingledger "voteledger/contexts/community-voting/voting-ledger"
	"voteledger/contexts/community-voting/voting-ledger/adapters/identity"
	domainerrors "voteledger/contexts/community-voting/voting-ledger/domain/errors"
	ledgerhttp "voteledger/contexts/community-voting/voting-ledger/transport/http"

	"github.com/spf13/cobra"
)

// LedgerOpener returns a wired ledger module and a func releasing it.
type LedgerOpener func(ctx context.Context) (votingledger.Module, func() error, error)

type options struct {
	principal string
}

// NewRootCommand builds the ledgerctl command tree. Every subcommand opens
// the ledger through open and prints its result as JSON.
func NewRootCommand(open LedgerOpener) *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the community voting ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.principal, "as", "", "Identity to act as for mutating commands")

	rootCmd.AddCommand(
		mutatingCommand(open, opts, "init", "Initialize the ledger with the caller as admin", cobra.NoArgs,
			func(ctx context.Context, module votingledger.Module, caller string, _ []string) (any, error) {
				return module.Handler.InitializeHandler(ctx, caller)
			}),
		mutatingCommand(open, opts, "register <name>", "Register a new entity", cobra.ExactArgs(1),
			func(ctx context.Context, module votingledger.Module, caller string, args []string) (any, error) {
				return module.Handler.RegisterEntityHandler(ctx, caller, ledgerhttp.RegisterEntityRequest{Name: args[0]})
			}),
		mutatingCommand(open, opts, "vote <name>", "Vote for an entity", cobra.ExactArgs(1),
			func(ctx context.Context, module votingledger.Module, caller string, args []string) (any, error) {
				return module.Handler.VoteHandler(ctx, caller, args[0])
			}),
		mutatingCommand(open, opts, "remove <name>", "Remove an entity (admin only)", cobra.ExactArgs(1),
			func(ctx context.Context, module votingledger.Module, caller string, args []string) (any, error) {
				return module.Handler.RemoveEntityHandler(ctx, caller, args[0])
			}),
		queryCommand(open, "list", "List entities ranked by votes", cobra.NoArgs,
			func(ctx context.Context, module votingledger.Module, _ []string) (any, error) {
				return module.Handler.ListEntitiesHandler(ctx)
			}),
		queryCommand(open, "votes <name>", "Show the vote count of an entity", cobra.ExactArgs(1),
			func(ctx context.Context, module votingledger.Module, args []string) (any, error) {
				return module.Handler.EntityVotesHandler(ctx, args[0])
			}),
		queryCommand(open, "history <user>", "List the names a user voted for", cobra.ExactArgs(1),
			func(ctx context.Context, module votingledger.Module, args []string) (any, error) {
				return module.Handler.UserVotesHandler(ctx, args[0])
			}),
		queryCommand(open, "has-voted <user> <name>", "Check whether a user voted for a name", cobra.ExactArgs(2),
			func(ctx context.Context, module votingledger.Module, args []string) (any, error) {
				return module.Handler.HasVotedHandler(ctx, args[0], args[1])
			}),
		queryCommand(open, "stats", "Show ledger statistics", cobra.NoArgs,
			func(ctx context.Context, module votingledger.Module, _ []string) (any, error) {
				return module.Handler.StatsHandler(ctx)
			}),
		queryCommand(open, "winner", "Show the entity with the most votes", cobra.NoArgs,
			func(ctx context.Context, module votingledger.Module, _ []string) (any, error) {
				return module.Handler.WinnerHandler(ctx)
			}),
		queryCommand(open, "admin", "Show the ledger admin", cobra.NoArgs,
			func(ctx context.Context, module votingledger.Module, _ []string) (any, error) {
				return module.Handler.AdminHandler(ctx)
			}),
	)
	return rootCmd
}

func mutatingCommand(
	open LedgerOpener,
	opts *options,
	use string,
	short string,
	args cobra.PositionalArgs,
	run func(ctx context.Context, module votingledger.Module, caller string, args []string) (any, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, positional []string) error {
			caller := strings.TrimSpace(opts.principal)
			if caller == "" {
				return fmt.Errorf("--as is required: %w", domainerrors.ErrUnauthenticated)
			}
			ctx := identity.WithPrincipal(cmd.Context(), caller)
			return withLedger(ctx, open, cmd.OutOrStdout(), func(module votingledger.Module) (any, error) {
				return run(ctx, module, caller, positional)
			})
		},
	}
}

func queryCommand(
	open LedgerOpener,
	use string,
	short string,
	args cobra.PositionalArgs,
	run func(ctx context.Context, module votingledger.Module, args []string) (any, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, positional []string) error {
			ctx := cmd.Context()
			return withLedger(ctx, open, cmd.OutOrStdout(), func(module votingledger.Module) (any, error) {
				return run(ctx, module, positional)
			})
		},
	}
}

func withLedger(
	ctx context.Context,
	open LedgerOpener,
	out io.Writer,
	run func(module votingledger.Module) (any, error),
) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	module, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeFn(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	result, err := run(module)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// ExitCode maps ledger errors to process exit codes. Unknown errors exit 1.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, domainerrors.ErrAlreadyExists):
		return 3
	case errors.Is(err, domainerrors.ErrNotFound):
		return 4
	case errors.Is(err, domainerrors.ErrAlreadyVoted):
		return 5
	case errors.Is(err, domainerrors.ErrNameEmpty):
		return 6
	case errors.Is(err, domainerrors.ErrNameTooLong):
		return 7
	case errors.Is(err, domainerrors.ErrUnauthorized):
		return 8
	case errors.Is(err, domainerrors.ErrUnauthenticated):
		return 9
	case errors.Is(err, domainerrors.ErrAlreadyInitialized):
		return 10
	default:
		return 1
	}
}
