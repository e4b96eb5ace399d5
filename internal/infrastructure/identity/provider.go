package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gurnameh-99/fact-den/internal/config"
	"github.com/gurnameh-99/fact-den/internal/domain"
	"github.com/gurnameh-99/fact-den/internal/ports"
)

// Provider wraps the remote identity service. A session is an opaque
// bearer token whose subject claim is the caller principal; the token is
// held in memory only and dropped on logout.
type Provider struct {
	providerURL string
	secret      []byte
	sessionTTL  time.Duration
	logger      *slog.Logger
	http        *http.Client

	// onChange is invoked outside the lock after every auth transition.
	onChange func(domain.Principal)

	mu        sync.RWMutex
	principal domain.Principal
	token     string
	expiresAt time.Time
}

var _ ports.Identity = (*Provider)(nil)

// NewProvider builds an unauthenticated provider. onChange may be nil.
func NewProvider(cfg config.IdentityConfig, logger *slog.Logger, onChange func(domain.Principal)) *Provider {
	ttl := cfg.SessionTTL.Std()
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Provider{
		providerURL: cfg.ProviderURL,
		secret:      []byte(cfg.JWTSecret),
		sessionTTL:  ttl,
		logger:      logger,
		onChange:    onChange,
		http:        &http.Client{Timeout: 10 * time.Second},
	}
}

// Current returns the caller principal without touching the network.
// An expired session reads as unauthenticated.
func (p *Provider) Current() (domain.Principal, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.principal.IsAnonymous() || time.Now().After(p.expiresAt) {
		return domain.Anonymous, false
	}
	return p.principal, true
}

// Token returns the raw bearer credential for outbound ledger calls.
func (p *Provider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if time.Now().After(p.expiresAt) {
		return ""
	}
	return p.token
}

// Login performs the remote handshake and installs the session.
func (p *Provider) Login(ctx context.Context) (domain.Principal, error) {
	body := strings.NewReader(fmt.Sprintf(`{"ttlSeconds":%d}`, int(p.sessionTTL.Seconds())))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.providerURL+"/login", body)
	if err != nil {
		return domain.Anonymous, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return domain.Anonymous, fmt.Errorf("identity login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Anonymous, fmt.Errorf("identity login: %s", resp.Status)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.Anonymous, fmt.Errorf("decode login response: %w", err)
	}

	principal, expiresAt, err := p.parseToken(payload.Token)
	if err != nil {
		return domain.Anonymous, err
	}

	p.mu.Lock()
	p.principal = principal
	p.token = payload.Token
	p.expiresAt = expiresAt
	p.mu.Unlock()

	p.log().Info("authenticated", "principal", string(principal))
	p.notify(principal)
	return principal, nil
}

// Logout invalidates the session locally and best-effort remotely.
func (p *Provider) Logout(ctx context.Context) error {
	p.mu.Lock()
	token := p.token
	p.principal = domain.Anonymous
	p.token = ""
	p.expiresAt = time.Time{}
	p.mu.Unlock()

	if token != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.providerURL+"/logout", nil)
		if err == nil {
			req.Header.Set("Authorization", "Bearer "+token)
			if resp, doErr := p.http.Do(req); doErr == nil {
				resp.Body.Close()
			} else {
				p.log().Warn("remote logout failed", "error", doErr)
			}
		}
	}

	p.notify(domain.Anonymous)
	return nil
}

func (p *Provider) parseToken(raw string) (domain.Principal, time.Time, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return domain.Anonymous, time.Time{}, fmt.Errorf("parse identity token: %w", err)
	}
	if !token.Valid {
		return domain.Anonymous, time.Time{}, fmt.Errorf("identity token invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Anonymous, time.Time{}, fmt.Errorf("unexpected identity claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Anonymous, time.Time{}, fmt.Errorf("identity token missing subject")
	}

	expiresAt := time.Now().Add(p.sessionTTL)
	if exp, expErr := claims.GetExpirationTime(); expErr == nil && exp != nil {
		expiresAt = exp.Time
	}

	return domain.Principal(sub), expiresAt, nil
}

func (p *Provider) notify(principal domain.Principal) {
	if p.onChange != nil {
		p.onChange(principal)
	}
}

func (p *Provider) log() *slog.Logger {
	if p.logger == nil {
		return slog.Default()
	}
	return p.logger
}
