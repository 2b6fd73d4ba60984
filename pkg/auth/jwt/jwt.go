// Package jwt authenticates RSA-signed bearer tokens against a JWKS
// endpoint. Issuer and audience checks are optional; subject, tenant,
// tier, and scopes come from configurable claims.
package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/spielwerk/pkg/auth"
)

// Config holds the token validation settings.
type Config struct {
	// JWKSURL is the key set endpoint used to verify signatures.
	JWKSURL string

	// Issuer, when set, must match the token's iss claim.
	Issuer string

	// Audience, when set, must match the token's aud claim.
	Audience string

	// SubjectClaim names the claim that becomes Identity.Subject.
	// Default "sub".
	SubjectClaim string

	// TenantClaim names the claim that becomes Identity.Tenant.
	// Default "tenant_id".
	TenantClaim string

	// TierClaim names the claim that becomes Identity.Tier.
	// Default "tier".
	TierClaim string

	// ScopesClaim names the claim that becomes Identity.Scopes. The
	// value may be a space-separated string or a JSON array.
	// Default "scope".
	ScopesClaim string

	// KeyTTL bounds how long fetched keys are reused. Default 1 hour.
	KeyTTL time.Duration

	// HTTPClient fetches the JWKS document. Default http.DefaultClient.
	HTTPClient *http.Client
}

func (c *Config) applyDefaults() {
	if c.SubjectClaim == "" {
		c.SubjectClaim = "sub"
	}
	if c.TenantClaim == "" {
		c.TenantClaim = "tenant_id"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
	if c.KeyTTL == 0 {
		c.KeyTTL = time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Authenticator validates bearer JWTs.
type Authenticator struct {
	cfg  Config
	keys *keySet
}

// New builds a JWT authenticator for the given configuration.
func New(cfg Config) *Authenticator {
	cfg.applyDefaults()
	return &Authenticator{
		cfg: cfg,
		keys: &keySet{
			url:    cfg.JWKSURL,
			ttl:    cfg.KeyTTL,
			client: cfg.HTTPClient,
			byKid:  make(map[string]*rsa.PublicKey),
		},
	}
}

// Authenticate abstains when the request carries no bearer token, denies
// on any validation failure, and grants the identity from the token's
// claims otherwise.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.Result {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if header == "" || !ok {
		return auth.Abstain()
	}
	if raw == "" {
		return auth.Deny(fmt.Errorf("empty bearer token"))
	}

	token, err := jwtlib.Parse(raw, a.resolveKey(ctx), a.parserOptions()...)
	if err != nil {
		slog.Debug("token rejected", "error", err)
		return auth.Deny(fmt.Errorf("invalid token: %w", err))
	}
	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return auth.Deny(fmt.Errorf("invalid token claims"))
	}

	subject := stringClaim(claims, a.cfg.SubjectClaim)
	if subject == "" {
		return auth.Deny(fmt.Errorf("token missing %q claim", a.cfg.SubjectClaim))
	}

	return auth.Grant(&auth.Identity{
		Subject: subject,
		Tenant:  stringClaim(claims, a.cfg.TenantClaim),
		Tier:    stringClaim(claims, a.cfg.TierClaim),
		Scopes:  scopesClaim(claims, a.cfg.ScopesClaim),
	})
}

// resolveKey returns the key lookup callback for the parser. Only RSA
// signatures are accepted and the key is selected by the kid header.
func (a *Authenticator) resolveKey(ctx context.Context) jwtlib.Keyfunc {
	return func(token *jwtlib.Token) (any, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}
		key, err := a.keys.lookup(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("resolving key %q: %w", kid, err)
		}
		return key, nil
	}
}

func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.cfg.Audience))
	}
	return opts
}

func stringClaim(claims jwtlib.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}

// scopesClaim reads a scope claim in either of its common encodings:
// a space-separated string or an array of strings.
func scopesClaim(claims jwtlib.MapClaims, name string) []string {
	switch v := claims[name].(type) {
	case string:
		if fields := strings.Fields(v); len(fields) > 0 {
			return fields
		}
	case []any:
		var scopes []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	}
	return nil
}

// keySet caches the RSA public keys of one JWKS endpoint. Refreshes are
// serialized; a lookup for an unknown kid forces one refresh before
// failing.
type keySet struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu        sync.RWMutex
	byKid     map[string]*rsa.PublicKey
	refreshed time.Time
}

func (k *keySet) lookup(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	k.mu.RLock()
	key, fresh := k.byKid[kid], time.Since(k.refreshed) < k.ttl
	k.mu.RUnlock()
	if key != nil && fresh {
		return key, nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	// Another goroutine may have refreshed while we waited for the lock.
	if key := k.byKid[kid]; key != nil && time.Since(k.refreshed) < k.ttl {
		return key, nil
	}
	if err := k.refresh(ctx); err != nil {
		return nil, err
	}
	key, ok := k.byKid[kid]
	if !ok {
		return nil, fmt.Errorf("key %q not in key set", kid)
	}
	return key, nil
}

// refresh replaces the cached keys with the endpoint's current set.
// Caller holds the write lock.
func (k *keySet) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return fmt.Errorf("building key set request: %w", err)
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching key set: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("key set endpoint returned status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decoding key set: %w", err)
	}

	byKid := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, key := range doc.Keys {
		if key.Kty != "RSA" || (key.Use != "" && key.Use != "sig") {
			continue
		}
		pub, err := key.rsaPublicKey()
		if err != nil {
			slog.Warn("skipping key set entry", "kid", key.Kid, "error", err)
			continue
		}
		byKid[key.Kid] = pub
	}

	k.byKid = byKid
	k.refreshed = time.Now()
	slog.Debug("key set refreshed", "keys", len(byKid), "url", k.url)
	return nil
}

// jwk is one entry of a JWKS document, reduced to the RSA fields.
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (j jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(j.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(j.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() > int64(^uint32(0)) {
		return nil, fmt.Errorf("exponent out of range")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}
