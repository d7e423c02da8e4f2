package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aroosi/aroosi-api/internal/model"
)

const testSecret = "test-secret-that-is-long-enough-1234567890"

func testUser() *model.User {
	return &model.User{ID: "01HUSER", Email: "a@example.com", Role: model.RoleUser, Plan: model.PlanPremium}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer(testSecret, "aroosi", 15*time.Minute)
	token, exp, err := issuer.Issue(testUser())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 5*time.Second)

	ac, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "01HUSER", ac.UserID)
	assert.Equal(t, model.RoleUser, ac.Role)
	assert.Equal(t, model.PlanPremium, ac.Plan)
	assert.NotEmpty(t, ac.TokenID)
}

func TestTokenIssuer_ExpiredPlanIssuesFree(t *testing.T) {
	t.Parallel()

	past := time.Now().Add(-time.Hour)
	u := testUser()
	u.PlanExpiresAt = &past

	issuer := NewTokenIssuer(testSecret, "aroosi", time.Minute)
	token, _, err := issuer.Issue(u)
	require.NoError(t, err)

	ac, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, ac.Plan)
}

func TestTokenIssuer_Expired(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer(testSecret, "aroosi", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := issuer.Issue(testUser())
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer(testSecret, "aroosi", time.Minute)
	good, _, err := issuer.Issue(testUser())
	require.NoError(t, err)

	otherKey, _, err := NewTokenIssuer("another-secret-that-is-long-enough-12345", "aroosi", time.Minute).Issue(testUser())
	require.NoError(t, err)

	otherIssuer, _, err := NewTokenIssuer(testSecret, "someone-else", time.Minute).Issue(testUser())
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x", "iss": "aroosi"})
	noneToken, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-jwt",
		"tampered":     good[:len(good)-2] + "xx",
		"wrong key":    otherKey,
		"wrong issuer": otherIssuer,
		"alg none":     noneToken,
		"empty":        "",
		"truncated":    strings.Split(good, ".")[0],
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Parse(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	t.Parallel()

	tok, err := GenerateRefreshToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(tok.Plaintext, "art_"+tok.Prefix+"_"))
	assert.Len(t, tok.Prefix, RefreshPrefixLen)
	assert.Equal(t, HashRefreshToken(tok.Plaintext), tok.Hash)

	prefix, err := ParseRefreshToken(tok.Plaintext)
	require.NoError(t, err)
	assert.Equal(t, tok.Prefix, prefix)
}

func TestGenerateRefreshToken_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := GenerateRefreshToken()
		require.NoError(t, err)
		require.False(t, seen[tok.Plaintext], "duplicate token at iteration %d", i)
		seen[tok.Plaintext] = true
	}
}

func TestParseRefreshToken_Invalid(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "art_", "art_abc_def", "pk_live_abcdef01_" + strings.Repeat("a", 64), "art_ABCDEF01_" + strings.Repeat("a", 64)} {
		_, err := ParseRefreshToken(s)
		assert.ErrorIs(t, err, ErrInvalidRefreshFormat, "input %q", s)
	}
}

func TestContext(t *testing.T) {
	t.Parallel()

	ctx := ContextWithAuth(context.Background(), &model.AuthContext{UserID: "u1"})
	assert.Equal(t, "u1", UserIDFromContext(ctx))
	assert.Empty(t, UserIDFromContext(context.Background()))
	assert.Nil(t, AuthFromContext(context.Background()))
}
