package auth

import (
	"fmt"
	"sort"
	"strings"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/errutil"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"go.uber.org/zap"
)

const hierarchyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// DefaultHierarchyPolicy lets each role act as the role directly below it.
var DefaultHierarchyPolicy = strings.Join([]string{
	"g, SUPERADMIN, DIRECTOR",
	"g, DIRECTOR, COACH",
	"g, COACH, GUARDIAN",
}, "\n")

// Hierarchy answers whether a role may act as any of a set of required
// roles. It is built once and never mutated.
type Hierarchy struct {
	allowed map[Role]map[Role]struct{}
}

// NewHierarchy loads the role graph from the casbin model and policy files
// named in ACCESS_CONTROL, or from the built-in policy when they are unset.
func NewHierarchy(cfg *config.Config) (*Hierarchy, error) {
	var (
		enforcer *casbin.Enforcer
		err      error
	)

	ac := cfg.AccessControl
	if ac.Model != "" && ac.Policy != "" {
		enforcer, err = casbin.NewEnforcer(ac.Model, ac.Policy)
	} else {
		enforcer, err = newEnforcerFromString(DefaultHierarchyPolicy)
	}
	if err != nil {
		return nil, errutil.Configuration("load role hierarchy", err)
	}

	h, err := hierarchyFromEnforcer(enforcer)
	if err != nil {
		return nil, err
	}

	zap.L().Info("role hierarchy loaded", zap.Any("allowed", h.describe()))
	return h, nil
}

// NewHierarchyFromPolicy builds a hierarchy from casbin grouping lines.
func NewHierarchyFromPolicy(policy string) (*Hierarchy, error) {
	enforcer, err := newEnforcerFromString(policy)
	if err != nil {
		return nil, errutil.Configuration("load role hierarchy", err)
	}
	return hierarchyFromEnforcer(enforcer)
}

func newEnforcerFromString(policy string) (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(hierarchyModel)
	if err != nil {
		return nil, err
	}
	return casbin.NewEnforcer(m, stringadapter.NewAdapter(policy))
}

func hierarchyFromEnforcer(e *casbin.Enforcer) (*Hierarchy, error) {
	allowed := make(map[Role]map[Role]struct{}, len(Roles))

	for _, role := range Roles {
		inherited, err := e.GetImplicitRolesForUser(string(role))
		if err != nil {
			return nil, errutil.Configuration(fmt.Sprintf("resolve roles for %s", role), err)
		}

		set := map[Role]struct{}{role: {}}
		for _, name := range inherited {
			r := Role(name)
			if !r.Valid() {
				return nil, errutil.Configuration(fmt.Sprintf("role %s inherits unknown role %q", role, name), nil)
			}
			set[r] = struct{}{}
		}
		allowed[role] = set
	}

	// Every role must strictly contain the allowed-set of the role below it.
	for i := 0; i+1 < len(Roles); i++ {
		upper, lower := allowed[Roles[i]], allowed[Roles[i+1]]
		if len(upper) <= len(lower) {
			return nil, errutil.Configuration(fmt.Sprintf("role %s does not supersede %s", Roles[i], Roles[i+1]), nil)
		}
		for r := range lower {
			if _, ok := upper[r]; !ok {
				return nil, errutil.Configuration(fmt.Sprintf("role %s cannot act as %s", Roles[i], r), nil)
			}
		}
	}

	return &Hierarchy{allowed: allowed}, nil
}

// Allows reports whether actor's allowed-set intersects required. Unknown
// roles have an empty allowed-set.
func (h *Hierarchy) Allows(actor Role, required []Role) bool {
	set, ok := h.allowed[actor]
	if !ok {
		return false
	}
	for _, r := range required {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}

// AllowedSet returns a sorted copy of the roles actor may act as.
func (h *Hierarchy) AllowedSet(actor Role) []Role {
	set := h.allowed[actor]
	out := make([]Role, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (h *Hierarchy) describe() map[string][]Role {
	out := make(map[string][]Role, len(h.allowed))
	for r := range h.allowed {
		out[string(r)] = h.AllowedSet(r)
	}
	return out
}
