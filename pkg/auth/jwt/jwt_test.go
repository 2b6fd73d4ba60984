package jwt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/spielwerk/pkg/auth"
)

const testKid = "test-key-1"

var testKey = mustGenerateKey()

func mustGenerateKey() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
}

// jwksServer serves the public half of testKey as a JWKS document and
// counts fetches.
func jwksServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		pub := testKey.Public().(*rsa.PublicKey)
		doc := map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": testKid,
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		}
		json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)
	return srv, &fetches
}

func mintToken(t *testing.T, kid string, claims jwtlib.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(testKey)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func bearerRequest(t *testing.T, token string) *http.Request {
	t.Helper()
	r, err := http.NewRequest(http.MethodPost, "/api/games/generate", nil)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestValidTokenGrantsIdentity(t *testing.T) {
	srv, _ := jwksServer(t)
	a := New(Config{JWKSURL: srv.URL, Issuer: "https://issuer.test"})

	token := mintToken(t, testKid, jwtlib.MapClaims{
		"iss":       "https://issuer.test",
		"sub":       "alice",
		"tenant_id": "org-1",
		"tier":      "premium",
		"scope":     "games:generate games:iterate",
	})

	res := a.Authenticate(context.Background(), bearerRequest(t, token))
	if res.Verdict != auth.Granted {
		t.Fatalf("verdict = %d, err = %v, want Granted", res.Verdict, res.Err)
	}
	id := res.Identity
	if id.Subject != "alice" || id.Tenant != "org-1" || id.Tier != "premium" {
		t.Errorf("identity = %+v", id)
	}
	if len(id.Scopes) != 2 || id.Scopes[0] != "games:generate" {
		t.Errorf("scopes = %v", id.Scopes)
	}
}

func TestScopesFromArrayClaim(t *testing.T) {
	srv, _ := jwksServer(t)
	a := New(Config{JWKSURL: srv.URL})

	token := mintToken(t, testKid, jwtlib.MapClaims{
		"sub":   "alice",
		"scope": []string{"games:generate", "admin"},
	})

	res := a.Authenticate(context.Background(), bearerRequest(t, token))
	if res.Verdict != auth.Granted {
		t.Fatalf("verdict = %d, err = %v", res.Verdict, res.Err)
	}
	if len(res.Identity.Scopes) != 2 || res.Identity.Scopes[1] != "admin" {
		t.Errorf("scopes = %v", res.Identity.Scopes)
	}
}

func TestCustomClaimNames(t *testing.T) {
	srv, _ := jwksServer(t)
	a := New(Config{
		JWKSURL:      srv.URL,
		SubjectClaim: "preferred_username",
		TenantClaim:  "org",
	})

	token := mintToken(t, testKid, jwtlib.MapClaims{
		"preferred_username": "alice",
		"org":                "org-2",
	})

	res := a.Authenticate(context.Background(), bearerRequest(t, token))
	if res.Verdict != auth.Granted {
		t.Fatalf("verdict = %d, err = %v", res.Verdict, res.Err)
	}
	if res.Identity.Subject != "alice" || res.Identity.Tenant != "org-2" {
		t.Errorf("identity = %+v", res.Identity)
	}
}

func TestMissingHeaderAbstains(t *testing.T) {
	srv, _ := jwksServer(t)
	a := New(Config{JWKSURL: srv.URL})

	if res := a.Authenticate(context.Background(), bearerRequest(t, "")); res.Verdict != auth.Abstained {
		t.Errorf("verdict = %d, want Abstained", res.Verdict)
	}
}

func TestNonBearerSchemeAbstains(t *testing.T) {
	srv, _ := jwksServer(t)
	a := New(Config{JWKSURL: srv.URL})

	r := bearerRequest(t, "")
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if res := a.Authenticate(context.Background(), r); res.Verdict != auth.Abstained {
		t.Errorf("verdict = %d, want Abstained", res.Verdict)
	}
}

func TestExpiredTokenDenies(t *testing.T) {
	srv, _ := jwksServer(t)
	a := New(Config{JWKSURL: srv.URL})

	token := mintToken(t, testKid, jwtlib.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if res := a.Authenticate(context.Background(), bearerRequest(t, token)); res.Verdict != auth.Denied {
		t.Errorf("verdict = %d, want Denied", res.Verdict)
	}
}

func TestWrongIssuerDenies(t *testing.T) {
	srv, _ := jwksServer(t)
	a := New(Config{JWKSURL: srv.URL, Issuer: "https://issuer.test"})

	token := mintToken(t, testKid, jwtlib.MapClaims{
		"iss": "https://rogue.test",
		"sub": "alice",
	})

	if res := a.Authenticate(context.Background(), bearerRequest(t, token)); res.Verdict != auth.Denied {
		t.Errorf("verdict = %d, want Denied", res.Verdict)
	}
}

func TestWrongAudienceDenies(t *testing.T) {
	srv, _ := jwksServer(t)
	a := New(Config{JWKSURL: srv.URL, Audience: "spielwerk"})

	token := mintToken(t, testKid, jwtlib.MapClaims{
		"sub": "alice",
		"aud": "some-other-service",
	})

	if res := a.Authenticate(context.Background(), bearerRequest(t, token)); res.Verdict != auth.Denied {
		t.Errorf("verdict = %d, want Denied", res.Verdict)
	}
}

func TestUnknownKidDenies(t *testing.T) {
	srv, _ := jwksServer(t)
	a := New(Config{JWKSURL: srv.URL})

	token := mintToken(t, "other-key", jwtlib.MapClaims{"sub": "alice"})

	if res := a.Authenticate(context.Background(), bearerRequest(t, token)); res.Verdict != auth.Denied {
		t.Errorf("verdict = %d, want Denied", res.Verdict)
	}
}

func TestMissingSubjectClaimDenies(t *testing.T) {
	srv, _ := jwksServer(t)
	a := New(Config{JWKSURL: srv.URL})

	token := mintToken(t, testKid, jwtlib.MapClaims{"tenant_id": "org-1"})

	if res := a.Authenticate(context.Background(), bearerRequest(t, token)); res.Verdict != auth.Denied {
		t.Errorf("verdict = %d, want Denied", res.Verdict)
	}
}

func TestHMACTokenDenies(t *testing.T) {
	srv, _ := jwksServer(t)
	a := New(Config{JWKSURL: srv.URL})

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = testKid
	signed, err := token.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatal(err)
	}

	if res := a.Authenticate(context.Background(), bearerRequest(t, signed)); res.Verdict != auth.Denied {
		t.Errorf("verdict = %d, want Denied", res.Verdict)
	}
}

func TestKeySetIsCachedAcrossRequests(t *testing.T) {
	srv, fetches := jwksServer(t)
	a := New(Config{JWKSURL: srv.URL})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		token := mintToken(t, testKid, jwtlib.MapClaims{"sub": "alice"})
		if res := a.Authenticate(ctx, bearerRequest(t, token)); res.Verdict != auth.Granted {
			t.Fatalf("request %d: verdict = %d, err = %v", i+1, res.Verdict, res.Err)
		}
	}

	if n := fetches.Load(); n != 1 {
		t.Errorf("key set fetches = %d, want 1", n)
	}
}

func TestUnreachableKeySetDenies(t *testing.T) {
	a := New(Config{JWKSURL: "http://127.0.0.1:1/jwks"})

	token := mintToken(t, testKid, jwtlib.MapClaims{"sub": "alice"})

	if res := a.Authenticate(context.Background(), bearerRequest(t, token)); res.Verdict != auth.Denied {
		t.Errorf("verdict = %d, want Denied", res.Verdict)
	}
}
