package auth

// Operation names used by the transport layers. A nil entry means any
// authenticated caller.
const (
	OpMe             = "auth.me"
	OpImpersonate    = "auth.impersonate"
	OpTenantUsage    = "tenant.usage"
	OpTenantFeature  = "tenant.feature"
	OpQuotaCheck     = "tenant.quota.check"
	OpRegisterCard   = "billing.card.register"
	OpSubscribe      = "billing.subscribe"
	OpFinanceSummary = "finance.summary"
	OpFeesGenerate   = "finance.fees.generate"
	OpFeeCheckout    = "finance.fees.checkout"
	OpFeePay         = "finance.fees.pay"
	OpFeeWaive       = "finance.fees.waive"
	OpAdminTenants   = "admin.tenants"
	OpAdminSweeps    = "admin.sweeps"
)

var requiredRoles = map[string][]Role{
	OpMe:             nil,
	OpImpersonate:    {RoleSuperAdmin},
	OpTenantUsage:    {RoleDirector},
	OpTenantFeature:  {RoleCoach},
	OpQuotaCheck:     {RoleDirector},
	OpRegisterCard:   {RoleDirector},
	OpSubscribe:      {RoleDirector},
	OpFinanceSummary: {RoleDirector},
	OpFeesGenerate:   {RoleDirector},
	OpFeeCheckout:    {RoleGuardian},
	OpFeePay:         {RoleDirector},
	OpFeeWaive:       {RoleDirector},
	OpAdminTenants:   {RoleSuperAdmin},
	OpAdminSweeps:    {RoleSuperAdmin},
}

// RequiredRoles returns the roles for op. Unknown operations require the top
// role so a missing entry never opens an endpoint.
func RequiredRoles(op string) []Role {
	roles, ok := requiredRoles[op]
	if !ok {
		return []Role{TopRole()}
	}
	return roles
}
