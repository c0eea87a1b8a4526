// Package keyauth resolves the caller identity behind an MCP API key and
// makes it available on the request context. Verifying the key itself is the
// resolver's concern; the bridge only consumes the resolved identity.
package keyauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	HeaderAuthorization = "Authorization"
	BearerPrefix        = "Bearer "
)

var ErrUnauthorized = errors.New("api key authentication failed")

// Identity names the project, user, and key one call is billed to. It rides
// the job message so workers act on behalf of the right caller.
type Identity struct {
	ProjectID string
	UserID    string
	KeyID     string
}

// Resolver maps a bearer token to a caller identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

type RejectFunc func(http.ResponseWriter, *http.Request, error)

type contextKey struct{}

// Middleware extracts the bearer token, resolves it, and stores the
// identity on the request context. Requests without a resolvable token are
// rejected before reaching the protocol front end.
func Middleware(resolver Resolver, reject RejectFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := strings.TrimSpace(r.Header.Get(HeaderAuthorization))
			if !strings.HasPrefix(provided, BearerPrefix) {
				reject(w, r, fmt.Errorf("%w: missing bearer token", ErrUnauthorized))
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(provided, BearerPrefix))
			identity, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				reject(w, r, fmt.Errorf("%w: %v", ErrUnauthorized, err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

func FromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(Identity)
	return identity, ok
}

// StaticResolver resolves a fixed token set. Suited to local runs and tests;
// production resolvers look keys up in the key service.
type StaticResolver struct {
	identities map[string]Identity
}

func NewStaticResolver(identities map[string]Identity) *StaticResolver {
	copied := make(map[string]Identity, len(identities))
	for token, identity := range identities {
		copied[token] = identity
	}
	return &StaticResolver{identities: copied}
}

func (r *StaticResolver) Resolve(_ context.Context, token string) (Identity, error) {
	identity, ok := r.identities[token]
	if !ok {
		return Identity{}, errors.New("unknown api key")
	}
	return identity, nil
}
