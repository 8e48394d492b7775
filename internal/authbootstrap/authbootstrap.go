// Package authbootstrap implements the auth.firebase_token handshake:
// JWKS-backed ID-token verification followed by ephemeral-store session
// creation.
package authbootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/kabsikabs/pinnokio/internal/store"
)

// AuthSessionTTL is the ephemeral-store session lifetime.
const AuthSessionTTL = 3600 * time.Second

// Config configures JWKS-backed Firebase token verification.
type Config struct {
	JWKSURL  string
	Issuer   string
	Audience string
}

// TokenVerifier validates a Firebase ID token and extracts its uid/email.
type TokenVerifier struct {
	cache    *jwk.Cache
	jwksURL  string
	issuer   string
	audience string
}

// NewTokenVerifier constructs a verifier that auto-fetches and refreshes
// the provider's JWKS.
func NewTokenVerifier(ctx context.Context, cfg Config) (*TokenVerifier, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("register jwks url: %w", err)
	}
	if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("initial jwks fetch: %w", err)
	}
	return &TokenVerifier{cache: cache, jwksURL: cfg.JWKSURL, issuer: cfg.Issuer, audience: cfg.Audience}, nil
}

// Claims is the subset of a Firebase ID token's claims the bootstrap path
// needs.
type Claims struct {
	UID   string
	Email string
}

func (v *TokenVerifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("get jwks: %w", err)
	}

	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims := &Claims{UID: token.Subject()}
	if email, ok := token.Get("email"); ok {
		if s, ok := email.(string); ok {
			claims.Email = s
		}
	}
	return claims, nil
}

// Request is the decoded auth.firebase_token WS message.
type Request struct {
	Token     string `json:"token"`
	UID       string `json:"uid"`
	Email     string `json:"email"`
	SessionID string `json:"sessionId"`
}

// Result is what the WS ingress replies with: either
// auth.session_confirmed or auth.login_error.
type Result struct {
	Confirmed bool
	Error     string
}

// Bootstrap verifies the token and, on success, creates the ephemeral
// auth-session record with a 3600s TTL.
type Bootstrap struct {
	verifier  *TokenVerifier
	ephemeral store.EphemeralStore
}

func New(verifier *TokenVerifier, ephemeral store.EphemeralStore) *Bootstrap {
	return &Bootstrap{verifier: verifier, ephemeral: ephemeral}
}

func (b *Bootstrap) Handle(ctx context.Context, req Request) Result {
	claims, err := b.verifier.Verify(ctx, req.Token)
	if err != nil {
		return Result{Confirmed: false, Error: err.Error()}
	}
	if claims.UID != req.UID {
		return Result{Confirmed: false, Error: "token subject does not match claimed uid"}
	}

	err = b.ephemeral.CreateAuthSession(ctx, &store.AuthSession{
		UserID:    req.UID,
		SessionID: req.SessionID,
		Token:     req.Token,
		CreatedAt: time.Now(),
	}, AuthSessionTTL)
	if err != nil {
		return Result{Confirmed: false, Error: fmt.Sprintf("failed to create session: %v", err)}
	}

	return Result{Confirmed: true}
}
