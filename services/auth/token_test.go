package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"

	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestTokens(t *testing.T, now time.Time) *Tokens {
	t.Helper()
	tokens, err := newTokens([]byte(testSecret), "lanovena", time.Hour)
	require.NoError(t, err)
	tokens.now = func() time.Time { return now }
	return tokens
}

func TestTokenRoundTrip(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tokens := newTestTokens(t, now)

	raw, issued, err := tokens.Issue(Identity{SubjectID: "u1", Email: "a@b.cl", Role: RoleCoach, TenantID: "t1"})
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Hour), issued.ExpiresAt)

	id, err := tokens.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, issued, *id)
	require.False(t, id.Impersonated)
}

func TestTokenExpiredIsRejected(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tokens := newTestTokens(t, now)

	raw, _, err := tokens.Issue(Identity{SubjectID: "u1", Role: RoleSuperAdmin})
	require.NoError(t, err)

	tokens.now = func() time.Time { return now.Add(time.Hour + time.Second) }
	_, err = tokens.Verify(raw)
	require.ErrorIs(t, err, errutil.ErrInvalidCredential)
}

func TestTokenTamperedIsRejected(t *testing.T) {
	tokens := newTestTokens(t, time.Now())

	raw, _, err := tokens.Issue(Identity{SubjectID: "u1", Role: RoleGuardian})
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	_, err = tokens.Verify(parts[0] + "." + parts[1] + "." + string(sig))
	require.ErrorIs(t, err, errutil.ErrInvalidCredential)

	other, err := newTokens([]byte(strings.Repeat("x", 32)), "lanovena", time.Hour)
	require.NoError(t, err)
	_, err = other.Verify(raw)
	require.ErrorIs(t, err, errutil.ErrInvalidCredential)

	_, err = tokens.Verify("not-a-token")
	require.ErrorIs(t, err, errutil.ErrInvalidCredential)
}

func TestTokenWithoutExpiryIsRejected(t *testing.T) {
	tokens := newTestTokens(t, time.Now())

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: []byte(testSecret)}, nil)
	require.NoError(t, err)
	raw, err := jwt.Signed(signer).Claims(jwt.Claims{Subject: "u1", Issuer: "lanovena"}).
		Claims(customClaims{Role: RoleSuperAdmin}).Serialize()
	require.NoError(t, err)

	_, err = tokens.Verify(raw)
	require.ErrorIs(t, err, errutil.ErrInvalidCredential)
}

func TestNewTokensRejectsShortSecret(t *testing.T) {
	_, err := newTokens([]byte("short"), "lanovena", time.Hour)
	require.ErrorIs(t, err, errutil.ErrConfiguration)
}
