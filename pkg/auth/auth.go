// Package auth guards the game generation endpoints. Authenticators vote
// on each request: a voter grants with an identity, denies with an error,
// or abstains when the credentials are not its kind. The chain stops at
// the first grant or denial; when every voter abstains the chain either
// admits an anonymous caller or denies, depending on configuration.
//
// The package ships as HTTP middleware so the generation pipeline never
// sees credentials. The middleware also scopes storage access by placing
// the caller's tenant in the request context.
package auth

import (
	"context"
	"errors"
	"net/http"
)

// Verdict is one authenticator's vote on a request.
type Verdict int

const (
	// Granted means the credentials checked out and Identity is set.
	Granted Verdict = iota

	// Denied means credentials of this voter's kind were present but
	// invalid. The chain stops and the request is rejected.
	Denied

	// Abstained means the request carries no credentials this voter
	// understands. The chain moves on.
	Abstained
)

// Result is the outcome of a vote. Identity is set only for Granted,
// Err only for Denied.
type Result struct {
	Verdict  Verdict
	Identity *Identity
	Err      error
}

// Grant builds a Granted result for the given identity.
func Grant(id *Identity) Result {
	return Result{Verdict: Granted, Identity: id}
}

// Deny builds a Denied result carrying the rejection reason.
func Deny(err error) Result {
	return Result{Verdict: Denied, Err: err}
}

// Abstain builds an Abstained result.
func Abstain() Result {
	return Result{Verdict: Abstained}
}

// Identity is an authenticated caller.
type Identity struct {
	// Subject uniquely names the caller. Never empty for a granted result.
	Subject string

	// Tenant scopes conversation storage. Empty means the shared default
	// tenant.
	Tenant string

	// Tier selects the caller's rate limit bucket. Empty falls back to
	// the default limit.
	Tier string

	// Scopes lists granted authorization scopes.
	Scopes []string
}

// Anonymous is the identity admitted by a chain that allows anonymous
// callers.
func Anonymous() *Identity {
	return &Identity{Subject: "anonymous"}
}

// Authenticator inspects request credentials and casts a vote.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// Chain runs authenticators in order until one grants or denies.
type Chain struct {
	voters         []Authenticator
	allowAnonymous bool
}

// NewChain builds a chain over the given voters. When allowAnonymous is
// set, a request every voter abstains on is admitted as Anonymous;
// otherwise it is denied with ErrUnauthenticated.
func NewChain(allowAnonymous bool, voters ...Authenticator) *Chain {
	return &Chain{voters: voters, allowAnonymous: allowAnonymous}
}

// Authenticate evaluates the chain for one request.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, v := range c.voters {
		if res := v.Authenticate(ctx, r); res.Verdict != Abstained {
			return res
		}
	}
	if c.allowAnonymous {
		return Grant(Anonymous())
	}
	return Deny(ErrUnauthenticated)
}

type identityKey struct{}

// WithIdentity places the caller's identity in the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the caller's identity, or nil when the request was
// not authenticated.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
