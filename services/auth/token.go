package auth

import (
	"fmt"
	"time"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/errutil"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

const minSecretLen = 32

// Identity is what a verified token asserts about its bearer.
type Identity struct {
	SubjectID    string    `json:"sub"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	TenantID     string    `json:"tenantId,omitempty"`
	Impersonated bool      `json:"impersonated"`
	IssuedAt     time.Time `json:"issuedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type customClaims struct {
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	TenantID     string `json:"tenantId,omitempty"`
	Impersonated bool   `json:"impersonated"`
}

// Tokens issues and verifies HS256 identity tokens.
type Tokens struct {
	key    []byte
	signer jose.Signer
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(cfg *config.Config) (*Tokens, error) {
	return newTokens([]byte(cfg.Auth.TokenSecret), cfg.Auth.Issuer, cfg.Auth.TokenTTL)
}

func newTokens(secret []byte, issuer string, ttl time.Duration) (*Tokens, error) {
	if len(secret) < minSecretLen {
		return nil, errutil.Configuration(fmt.Sprintf("token secret must be at least %d bytes", minSecretLen), nil)
	}
	if ttl <= 0 {
		return nil, errutil.Configuration("token ttl must be positive", nil)
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, errutil.Configuration("build token signer", err)
	}

	return &Tokens{key: secret, signer: signer, issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for id. IssuedAt and ExpiresAt on the returned
// identity are set from the clock and truncated to whole seconds.
func (t *Tokens) Issue(id Identity) (string, Identity, error) {
	now := t.now().UTC().Truncate(time.Second)
	id.IssuedAt = now
	id.ExpiresAt = now.Add(t.ttl)

	std := jwt.Claims{
		Subject:  id.SubjectID,
		Issuer:   t.issuer,
		IssuedAt: jwt.NewNumericDate(id.IssuedAt),
		Expiry:   jwt.NewNumericDate(id.ExpiresAt),
	}
	custom := customClaims{
		Email:        id.Email,
		Role:         id.Role,
		TenantID:     id.TenantID,
		Impersonated: id.Impersonated,
	}

	raw, err := jwt.Signed(t.signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", Identity{}, errutil.Internal("sign token", err)
	}
	return raw, id, nil
}

// Verify checks signature, issuer and expiry. Any failure is an
// InvalidCredential; nothing from an unverified token is returned.
func (t *Tokens) Verify(raw string) (*Identity, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, errutil.InvalidCredential("malformed token", err)
	}

	var (
		std    jwt.Claims
		custom customClaims
	)
	if err := tok.Claims(t.key, &std, &custom); err != nil {
		return nil, errutil.InvalidCredential("token signature mismatch", err)
	}

	if std.Expiry == nil {
		return nil, errutil.InvalidCredential("token has no expiry", nil)
	}
	if err := std.ValidateWithLeeway(jwt.Expected{Issuer: t.issuer, Time: t.now()}, 0); err != nil {
		return nil, errutil.InvalidCredential("token rejected", err)
	}
	if std.Subject == "" {
		return nil, errutil.InvalidCredential("token has no subject", nil)
	}

	id := &Identity{
		SubjectID:    std.Subject,
		Email:        custom.Email,
		Role:         custom.Role,
		TenantID:     custom.TenantID,
		Impersonated: custom.Impersonated,
		ExpiresAt:    std.Expiry.Time().UTC(),
	}
	if std.IssuedAt != nil {
		id.IssuedAt = std.IssuedAt.Time().UTC()
	}
	return id, nil
}
