package auth

type Role string

const (
	RoleSuperAdmin Role = "SUPERADMIN"
	RoleDirector   Role = "DIRECTOR"
	RoleCoach      Role = "COACH"
	RoleGuardian   Role = "GUARDIAN"
)

// Roles is ordered from the highest role down.
var Roles = []Role{RoleSuperAdmin, RoleDirector, RoleCoach, RoleGuardian}

// TopRole is the only role allowed to impersonate.
func TopRole() Role {
	return Roles[0]
}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}
