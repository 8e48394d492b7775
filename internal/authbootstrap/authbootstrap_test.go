package authbootstrap

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabsikabs/pinnokio/internal/store"
)

const (
	testIssuer   = "https://securetoken.example.com/pinnokio"
	testAudience = "pinnokio"
)

type tokenFixture struct {
	signKey  jwk.Key
	verifier *TokenVerifier
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "test-key"))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))

	pub, err := jwk.FromRaw(&raw.PublicKey)
	require.NoError(t, err)
	require.NoError(t, pub.Set(jwk.KeyIDKey, "test-key"))
	require.NoError(t, pub.Set(jwk.AlgorithmKey, jwa.RS256))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	jwks, err := json.Marshal(set)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwks)
	}))
	t.Cleanup(srv.Close)

	verifier, err := NewTokenVerifier(context.Background(), Config{
		JWKSURL: srv.URL, Issuer: testIssuer, Audience: testAudience,
	})
	require.NoError(t, err)

	return &tokenFixture{signKey: key, verifier: verifier}
}

func (f *tokenFixture) signedToken(t *testing.T, uid string, expiresIn time.Duration) string {
	t.Helper()
	tok, err := jwt.NewBuilder().
		Issuer(testIssuer).
		Audience([]string{testAudience}).
		Subject(uid).
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(expiresIn)).
		Claim("email", uid+"@example.com").
		Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, f.signKey))
	require.NoError(t, err)
	return string(signed)
}

func TestVerifyExtractsClaims(t *testing.T) {
	f := newTokenFixture(t)

	claims, err := f.verifier.Verify(context.Background(), f.signedToken(t, "u1", time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UID)
	assert.Equal(t, "u1@example.com", claims.Email)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	f := newTokenFixture(t)

	_, err := f.verifier.Verify(context.Background(), f.signedToken(t, "u1", -time.Minute))
	require.Error(t, err)
}

func TestHandleConfirmsAndCreatesEphemeralSession(t *testing.T) {
	f := newTokenFixture(t)
	ephemeral := store.NewInMemoryEphemeralStore()
	b := New(f.verifier, ephemeral)

	res := b.Handle(context.Background(), Request{
		Token: f.signedToken(t, "u1", time.Hour), UID: "u1", SessionID: "s1",
	})
	require.True(t, res.Confirmed, res.Error)

	_, ok := ephemeral.GetAuthSession(context.Background(), "u1", "s1")
	assert.True(t, ok)
}

func TestHandleRejectsUIDMismatch(t *testing.T) {
	f := newTokenFixture(t)
	b := New(f.verifier, store.NewInMemoryEphemeralStore())

	res := b.Handle(context.Background(), Request{
		Token: f.signedToken(t, "u1", time.Hour), UID: "someone-else", SessionID: "s1",
	})
	assert.False(t, res.Confirmed)
	assert.Contains(t, res.Error, "does not match")
}
