package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/services/testutil"
)

func newTestService(t *testing.T) (*Service, *Tokens) {
	t.Helper()
	tokens := newTestTokens(t, time.Now())
	svc := NewService(ServiceParams{
		DB:     testutil.NewTestDB(t, Models()...),
		Tokens: tokens,
		Node:   testutil.NewNode(t),
	})
	svc.cost = bcrypt.MinCost
	return svc, tokens
}

func TestRegisterAndLogin(t *testing.T) {
	svc, tokens := newTestService(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterRequest{Email: " Director@Escuela.cl ", Password: "supersecret", FullName: "Ana"})
	require.NoError(t, err)
	require.Equal(t, RoleDirector, res.Identity.Role)
	require.Equal(t, "director@escuela.cl", res.User.Email)

	id, err := tokens.Verify(res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, res.User.ID, id.SubjectID)

	_, err = svc.Register(ctx, RegisterRequest{Email: "director@escuela.cl", Password: "anothersecret", FullName: "B"})
	var base errutil.BaseError
	require.ErrorAs(t, err, &base)
	require.Equal(t, errutil.StatusConflict, base.Code)

	login, err := svc.Login(ctx, LoginRequest{Email: "DIRECTOR@escuela.cl", Password: "supersecret"})
	require.NoError(t, err)
	require.Equal(t, res.User.ID, login.Identity.SubjectID)

	_, err = svc.Login(ctx, LoginRequest{Email: "director@escuela.cl", Password: "wrong-password"})
	require.ErrorIs(t, err, errutil.ErrInvalidCredential)

	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@escuela.cl", Password: "supersecret"})
	require.ErrorIs(t, err, errutil.ErrInvalidCredential)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), RegisterRequest{Email: "nope", Password: "supersecret"})
	require.Error(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{Email: "a@b.cl", Password: "short"})
	require.Error(t, err)
}

func TestImpersonate(t *testing.T) {
	svc, tokens := newTestService(t)
	ctx := context.Background()

	target, err := svc.Register(ctx, RegisterRequest{Email: "coach@escuela.cl", Password: "supersecret", FullName: "C"})
	require.NoError(t, err)

	root := &Identity{SubjectID: "root", Role: RoleSuperAdmin}
	_, err = svc.AssignTenant(ctx, root, target.User.ID, "t9")
	require.NoError(t, err)
	res, err := svc.Impersonate(ctx, root, target.User.ID)
	require.NoError(t, err)

	id, err := tokens.Verify(res.AccessToken)
	require.NoError(t, err)
	require.True(t, id.Impersonated)
	require.Equal(t, target.User.ID, id.SubjectID)
	require.Equal(t, "t9", id.TenantID)

	_, err = svc.Impersonate(ctx, &Identity{SubjectID: "d", Role: RoleDirector}, target.User.ID)
	require.ErrorIs(t, err, errutil.ErrInsufficientRole)

	_, err = svc.Impersonate(ctx, root, "missing")
	require.ErrorIs(t, err, errutil.ErrNotFound)
}

func TestRegisterStartsUnbound(t *testing.T) {
	svc, tokens := newTestService(t)

	res, err := svc.Register(context.Background(), RegisterRequest{Email: "d@escuela.cl", Password: "supersecret", FullName: "D"})
	require.NoError(t, err)
	require.Empty(t, res.User.TenantID)

	id, err := tokens.Verify(res.AccessToken)
	require.NoError(t, err)
	require.Empty(t, id.TenantID)
}

func TestAssignTenant(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	root := &Identity{SubjectID: "root", Role: RoleSuperAdmin}

	res, err := svc.Register(ctx, RegisterRequest{Email: "d@escuela.cl", Password: "supersecret", FullName: "D"})
	require.NoError(t, err)

	_, err = svc.AssignTenant(ctx, &Identity{SubjectID: "x", Role: RoleDirector}, res.User.ID, "t1")
	require.ErrorIs(t, err, errutil.ErrInsufficientRole)

	u, err := svc.AssignTenant(ctx, root, res.User.ID, "t1")
	require.NoError(t, err)
	require.Equal(t, "t1", u.TenantID)

	login, err := svc.Login(ctx, LoginRequest{Email: "d@escuela.cl", Password: "supersecret"})
	require.NoError(t, err)
	require.Equal(t, "t1", login.Identity.TenantID)

	_, err = svc.AssignTenant(ctx, root, res.User.ID, "t2")
	var base errutil.BaseError
	require.ErrorAs(t, err, &base)
	require.Equal(t, errutil.StatusConflict, base.Code)

	_, err = svc.AssignTenant(ctx, root, "missing", "t1")
	require.ErrorIs(t, err, errutil.ErrNotFound)
}

func TestMe(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Me(context.Background())
	require.ErrorIs(t, err, errutil.ErrMissingCredential)

	want := &Identity{SubjectID: "u1", Role: RoleGuardian}
	got, err := svc.Me(WithIdentity(context.Background(), want))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestRequiredRolesDefaultsToTopRole(t *testing.T) {
	require.Nil(t, RequiredRoles(OpMe))
	require.Equal(t, []Role{RoleSuperAdmin}, RequiredRoles("/some.Service/Unknown"))
	require.Equal(t, []Role{RoleDirector}, RequiredRoles(OpTenantUsage))
}
