package quota

import (
	"fmt"

	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/services/tenant"
)

type PlanLimit struct {
	MaxPlayers    int64 `json:"maxPlayers"`
	MaxCategories int64 `json:"maxCategories"`
	MaxCoaches    int64 `json:"maxCoaches"`
}

func (l PlanLimit) For(kind tenant.ResourceKind) (int64, bool) {
	switch kind {
	case tenant.ResourcePlayer:
		return l.MaxPlayers, true
	case tenant.ResourceCategory:
		return l.MaxCategories, true
	case tenant.ResourceCoach:
		return l.MaxCoaches, true
	default:
		return 0, false
	}
}

// Limits is read-only after NewLimits returns.
type Limits struct {
	table map[tenant.PlanType]PlanLimit
}

var DefaultPlanLimits = map[tenant.PlanType]PlanLimit{
	tenant.PlanSemillero:       {MaxPlayers: 80, MaxCategories: 5, MaxCoaches: 5},
	tenant.PlanProfesional:     {MaxPlayers: 250, MaxCategories: 15, MaxCoaches: 20},
	tenant.PlanAltoRendimiento: {MaxPlayers: 1000, MaxCategories: 50, MaxCoaches: 100},
}

// NewLimits copies table and checks that every plan has an entry and that no
// tier is stricter than the one below it.
func NewLimits(table map[tenant.PlanType]PlanLimit) (*Limits, error) {
	copied := make(map[tenant.PlanType]PlanLimit, len(table))
	for _, plan := range tenant.Plans {
		l, ok := table[plan]
		if !ok {
			return nil, errutil.Configuration(fmt.Sprintf("plan %s has no limits", plan), nil)
		}
		copied[plan] = l
	}

	for i := 1; i < len(tenant.Plans); i++ {
		lower, higher := tenant.Plans[i-1], tenant.Plans[i]
		for _, kind := range tenant.ResourceKinds {
			lo, _ := copied[lower].For(kind)
			hi, _ := copied[higher].For(kind)
			if hi < lo {
				return nil, errutil.Configuration(
					fmt.Sprintf("plan %s allows fewer %s than %s (%d < %d)", higher, kind, lower, hi, lo), nil)
			}
		}
	}

	return &Limits{table: copied}, nil
}

// Lookup fails with a configuration error for plans missing from the table.
func (l *Limits) Lookup(plan tenant.PlanType) (PlanLimit, error) {
	pl, ok := l.table[plan]
	if !ok {
		return PlanLimit{}, errutil.Configuration(fmt.Sprintf("no limits configured for plan %q", plan), nil,
			errutil.WithDetails(errutil.Detail{Field: "plan", Message: string(plan)}))
	}
	return pl, nil
}
