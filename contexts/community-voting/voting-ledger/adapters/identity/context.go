package identity

import (
	"context"
	"strings"

	domainerrors "voteledger/contexts/community-voting/voting-ledger/domain/errors"
	"voteledger/contexts/community-voting/voting-ledger/ports"
)

type principalKey struct{}

// WithPrincipal records the identity a transport has already authenticated.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey{}, strings.TrimSpace(principal))
}

func PrincipalFrom(ctx context.Context) (string, bool) {
	principal, ok := ctx.Value(principalKey{}).(string)
	if !ok || principal == "" {
		return "", false
	}
	return principal, true
}

// ContextAuthenticator accepts an identity only when it matches the
// principal carried by the context.
type ContextAuthenticator struct{}

func (ContextAuthenticator) RequireAuth(ctx context.Context, identity string) error {
	principal, ok := PrincipalFrom(ctx)
	if !ok || principal != strings.TrimSpace(identity) {
		return domainerrors.ErrUnauthenticated
	}
	return nil
}

var _ ports.Authenticator = ContextAuthenticator{}
