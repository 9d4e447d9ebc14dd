package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var testAuth = AuthConfig{HMACSecret: "test-secret", Issuer: "habits", Audience: "api"}

func callerEcho(t *testing.T, wantCaller bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := CallerFromContext(r.Context())
		if ok != wantCaller {
			t.Errorf("caller present = %v, want %v", ok, wantCaller)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticatorAcceptsIssuedToken(t *testing.T) {
	caller := [20]byte{19: 0x42}
	token, err := IssueToken(testAuth, caller, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	auth := NewAuthenticator(testAuth, nil)
	handler := auth.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := CallerFromContext(r.Context())
		if !ok || got != caller {
			t.Errorf("unexpected caller %x", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/entries", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestAuthenticatorRejections(t *testing.T) {
	auth := NewAuthenticator(testAuth, nil)
	handler := auth.Require(callerEcho(t, true))

	sign := func(claims jwt.MapClaims, secret string) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return token
	}
	valid := "0x0000000000000000000000000000000000000042"
	cases := map[string]string{
		"missing":      "",
		"wrong secret": sign(jwt.MapClaims{"sub": valid, "iss": "habits", "aud": "api"}, "other"),
		"bad issuer":   sign(jwt.MapClaims{"sub": valid, "iss": "evil", "aud": "api"}, "test-secret"),
		"bad audience": sign(jwt.MapClaims{"sub": valid, "iss": "habits", "aud": "web"}, "test-secret"),
		"bad subject":  sign(jwt.MapClaims{"sub": "alice", "iss": "habits", "aud": "api"}, "test-secret"),
		"expired": sign(jwt.MapClaims{
			"sub": valid, "iss": "habits", "aud": "api",
			"exp": time.Now().Add(-time.Hour).Unix(),
		}, "test-secret"),
	}
	for name, token := range cases {
		req := httptest.NewRequest(http.MethodGet, "/v1/entries", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, res.Code)
		}
	}
}

func TestAuthenticatorOptional(t *testing.T) {
	auth := NewAuthenticator(testAuth, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/contests/0", nil)
	res := httptest.NewRecorder()
	auth.Optional(callerEcho(t, false)).ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("anonymous request must pass, got %d", res.Code)
	}

	req.Header.Set("Authorization", "Bearer not-a-token")
	res = httptest.NewRecorder()
	auth.Optional(callerEcho(t, false)).ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token must be rejected, got %d", res.Code)
	}
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	if _, err := IssueToken(AuthConfig{}, [20]byte{}, time.Minute); err == nil {
		t.Fatalf("expected error without secret")
	}
}

func TestExtractBearer(t *testing.T) {
	if got := extractBearer("bearer abc"); got != "abc" {
		t.Fatalf("extractBearer = %q", got)
	}
	if got := extractBearer("Basic abc"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
