package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestHierarchyAllowedSets(t *testing.T) {
	h, err := NewHierarchy(&config.Config{})
	require.NoError(t, err)

	require.Equal(t, []Role{RoleCoach, RoleDirector, RoleGuardian, RoleSuperAdmin}, h.AllowedSet(RoleSuperAdmin))
	require.Equal(t, []Role{RoleCoach, RoleDirector, RoleGuardian}, h.AllowedSet(RoleDirector))
	require.Equal(t, []Role{RoleCoach, RoleGuardian}, h.AllowedSet(RoleCoach))
	require.Equal(t, []Role{RoleGuardian}, h.AllowedSet(RoleGuardian))
}

func TestHierarchyAllowsIsIntersection(t *testing.T) {
	h, err := NewHierarchyFromPolicy(DefaultHierarchyPolicy)
	require.NoError(t, err)

	sets := [][]Role{
		nil,
		{RoleSuperAdmin},
		{RoleDirector},
		{RoleCoach, RoleSuperAdmin},
		{RoleGuardian},
	}
	for _, actor := range Roles {
		allowed := map[Role]bool{}
		for _, r := range h.AllowedSet(actor) {
			allowed[r] = true
		}
		require.True(t, allowed[actor], "allowed-set of %s must contain itself", actor)

		for _, required := range sets {
			want := false
			for _, r := range required {
				want = want || allowed[r]
			}
			require.Equal(t, want, h.Allows(actor, required), "%s vs %v", actor, required)
		}
	}
}

func TestHierarchyUnknownRoleIsDenied(t *testing.T) {
	h, err := NewHierarchyFromPolicy(DefaultHierarchyPolicy)
	require.NoError(t, err)

	require.False(t, h.Allows(Role("JANITOR"), []Role{RoleGuardian}))
	require.False(t, h.Allows(Role("JANITOR"), []Role{Role("JANITOR")}))
	require.Empty(t, h.AllowedSet(Role("JANITOR")))
}

func TestHierarchyRejectsBrokenPolicy(t *testing.T) {
	// COACH no longer sits above GUARDIAN
	_, err := NewHierarchyFromPolicy("g, SUPERADMIN, DIRECTOR\ng, DIRECTOR, COACH")
	require.ErrorIs(t, err, errutil.ErrConfiguration)

	_, err = NewHierarchyFromPolicy(DefaultHierarchyPolicy + "\ng, GUARDIAN, JANITOR")
	require.ErrorIs(t, err, errutil.ErrConfiguration)
}
