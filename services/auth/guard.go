package auth

import (
	"context"
	"strings"

	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/pkg/logger"
	"github.com/juancristobaldev/lanovena-api/pkg/metrics"

	"go.uber.org/zap"
)

type identityKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// Guard authorizes requests from their bearer credential alone. It never
// reads storage.
type Guard struct {
	tokens    *Tokens
	hierarchy *Hierarchy
}

func NewGuard(tokens *Tokens, hierarchy *Hierarchy) *Guard {
	return &Guard{tokens: tokens, hierarchy: hierarchy}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

// Authorize verifies the header's token and, when required is non-empty,
// checks the bearer's role against it.
func (g *Guard) Authorize(ctx context.Context, header string, required []Role) (*Identity, error) {
	raw, ok := BearerToken(header)
	if !ok {
		metrics.AuthorizationDecisions.WithLabelValues("missing_credential").Inc()
		return nil, errutil.MissingCredential("bearer token required")
	}
	return g.AuthorizeToken(ctx, raw, required)
}

func (g *Guard) AuthorizeToken(ctx context.Context, raw string, required []Role) (*Identity, error) {
	id, err := g.tokens.Verify(raw)
	if err != nil {
		metrics.AuthorizationDecisions.WithLabelValues("invalid_credential").Inc()
		logger.FromContext(ctx).Debug("token rejected", zap.Error(err))
		return nil, err
	}

	if len(required) > 0 && !g.hierarchy.Allows(id.Role, required) {
		metrics.AuthorizationDecisions.WithLabelValues("insufficient_role").Inc()
		names := make([]string, len(required))
		for i, r := range required {
			names[i] = string(r)
		}
		return nil, errutil.InsufficientRole("role not authorized for this operation",
			errutil.WithDetails(
				errutil.Detail{Field: "role", Message: string(id.Role)},
				errutil.Detail{Field: "required_roles", Message: strings.Join(names, ",")},
			))
	}

	metrics.AuthorizationDecisions.WithLabelValues("allowed").Inc()
	return id, nil
}
