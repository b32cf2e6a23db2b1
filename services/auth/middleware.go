package auth

import (
	"context"

	"github.com/juancristobaldev/lanovena-api/pkg/errutil"

	"github.com/gin-gonic/gin"
	grpcauth "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"google.golang.org/grpc"
)

const ginIdentityKey = "auth.identity"

// Require guards a gin route with the roles registered for op. On success
// the identity is stored on both the gin context and the request context.
func (g *Guard) Require(op string) gin.HandlerFunc {
	required := RequiredRoles(op)
	return func(c *gin.Context) {
		id, err := g.Authorize(c.Request.Context(), c.GetHeader("Authorization"), required)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(ginIdentityKey, id)
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// CurrentIdentity returns the identity stored by Require.
func CurrentIdentity(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(ginIdentityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*Identity)
	return id, ok
}

// GRPCAuthFunc is the AccessGuard for gRPC. Required roles are looked up by
// the full method name.
func (g *Guard) GRPCAuthFunc(ctx context.Context) (context.Context, error) {
	raw, err := grpcauth.AuthFromMD(ctx, "bearer")
	if err != nil {
		return nil, errutil.ToGRPCError(errutil.MissingCredential("bearer token required"))
	}

	method, _ := grpc.Method(ctx)
	id, err := g.AuthorizeToken(ctx, raw, RequiredRoles(method))
	if err != nil {
		return nil, errutil.ToGRPCError(err)
	}
	return WithIdentity(ctx, id), nil
}
