// Package apikey authenticates bearer tokens against a static key list.
// Keys are SHA-256 hashed at construction and compared in constant time,
// so the plaintext never sits in process memory longer than it must.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rhuss/spielwerk/pkg/auth"
)

// Key pairs one plaintext API key with the identity it grants.
type Key struct {
	Value    string
	Identity auth.Identity
}

// Authenticator matches bearer tokens against the configured keys.
type Authenticator struct {
	entries []entry
}

type entry struct {
	hash     [sha256.Size]byte
	identity auth.Identity
}

// New hashes the given keys and returns an authenticator over them.
func New(keys []Key) *Authenticator {
	a := &Authenticator{entries: make([]entry, 0, len(keys))}
	for _, k := range keys {
		a.entries = append(a.entries, entry{
			hash:     sha256.Sum256([]byte(k.Value)),
			identity: k.Identity,
		})
	}
	return a
}

// Authenticate abstains when the request carries no bearer token, denies
// when the token matches no key, and grants the matching identity
// otherwise. Every configured hash is compared on every call so timing
// does not reveal which key was close.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	token, ok := bearerToken(r)
	if !ok {
		return auth.Abstain()
	}
	if token == "" {
		return auth.Deny(auth.ErrUnauthenticated)
	}

	hash := sha256.Sum256([]byte(token))
	match := -1
	for i := range a.entries {
		if subtle.ConstantTimeCompare(hash[:], a.entries[i].hash[:]) == 1 {
			match = i
		}
	}
	if match < 0 {
		return auth.Deny(auth.ErrUnauthenticated)
	}

	id := a.entries[match].identity
	return auth.Grant(&id)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", false
	}
	return token, true
}
