package identity

import (
	"context"
	"errors"
	"testing"

	domainerrors "voteledger/contexts/community-voting/voting-ledger/domain/errors"
)

func TestContextAuthenticatorMatchesPrincipal(t *testing.T) {
	auth := ContextAuthenticator{}
	ctx := WithPrincipal(context.Background(), " user-1 ")

	if err := auth.RequireAuth(ctx, "user-1"); err != nil {
		t.Fatalf("expected principal to authenticate, got %v", err)
	}
	if err := auth.RequireAuth(ctx, "user-2"); !errors.Is(err, domainerrors.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for other identity, got %v", err)
	}
}

func TestContextAuthenticatorRejectsMissingPrincipal(t *testing.T) {
	if err := (ContextAuthenticator{}).RequireAuth(context.Background(), "user-1"); !errors.Is(err, domainerrors.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated without principal, got %v", err)
	}
	if _, ok := PrincipalFrom(WithPrincipal(context.Background(), "  ")); ok {
		t.Fatalf("blank principal must not be reported")
	}
}
