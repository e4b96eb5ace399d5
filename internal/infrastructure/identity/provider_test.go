package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gurnameh-99/fact-den/internal/config"
	"github.com/gurnameh-99/fact-den/internal/domain"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, subject string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(ttl).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func newTestProvider(t *testing.T, token string, onChange func(domain.Principal)) (*Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			json.NewEncoder(w).Encode(map[string]string{"token": token})
		case "/logout":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	return NewProvider(config.IdentityConfig{
		ProviderURL: srv.URL,
		JWTSecret:   testSecret,
		SessionTTL:  config.Duration(time.Minute),
	}, nil, onChange), srv
}

func TestLoginInstallsSession(t *testing.T) {
	t.Parallel()

	var changes []domain.Principal
	token := signToken(t, "alice", time.Minute)
	p, _ := newTestProvider(t, token, func(pr domain.Principal) { changes = append(changes, pr) })

	if pr, ok := p.Current(); ok || pr != domain.Anonymous {
		t.Fatalf("fresh provider = (%q, %v)", pr, ok)
	}

	principal, err := p.Login(context.Background())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if principal != "alice" {
		t.Fatalf("principal = %q", principal)
	}
	if pr, ok := p.Current(); !ok || pr != "alice" {
		t.Fatalf("current after login = (%q, %v)", pr, ok)
	}
	if p.Token() != token {
		t.Fatalf("token not exposed for outbound calls")
	}
	if len(changes) != 1 || changes[0] != "alice" {
		t.Fatalf("onChange calls = %v", changes)
	}
}

func TestLogoutDropsSession(t *testing.T) {
	t.Parallel()

	var changes []domain.Principal
	p, _ := newTestProvider(t, signToken(t, "alice", time.Minute), func(pr domain.Principal) { changes = append(changes, pr) })

	if _, err := p.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := p.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if pr, ok := p.Current(); ok || pr != domain.Anonymous {
		t.Fatalf("current after logout = (%q, %v)", pr, ok)
	}
	if p.Token() != "" {
		t.Fatalf("token survived logout")
	}
	if len(changes) != 2 || changes[1] != domain.Anonymous {
		t.Fatalf("onChange calls = %v", changes)
	}
}

func TestLoginRejectsForgedToken(t *testing.T) {
	t.Parallel()

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "mallory",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	raw, err := forged.SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	p, _ := newTestProvider(t, raw, nil)
	if _, err := p.Login(context.Background()); err == nil {
		t.Fatalf("forged token accepted")
	}
	if pr, ok := p.Current(); ok || pr != domain.Anonymous {
		t.Fatalf("session installed from forged token: (%q, %v)", pr, ok)
	}
}

func TestExpiredSessionReadsAsAnonymous(t *testing.T) {
	t.Parallel()

	// Token already past its exp claim.
	p, _ := newTestProvider(t, signToken(t, "alice", -time.Minute), nil)
	if _, err := p.Login(context.Background()); err == nil {
		t.Fatalf("expired token accepted at login")
	}
}

func TestLoginMissingSubject(t *testing.T) {
	t.Parallel()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	p, _ := newTestProvider(t, raw, nil)
	if _, err := p.Login(context.Background()); err == nil {
		t.Fatalf("subject-less token accepted")
	}
}
