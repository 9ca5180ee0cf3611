package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleOwner      = "owner"
	RoleAgent      = "agent"
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// IsKnownRole reports whether role is one the platform issues tokens for.
func IsKnownRole(role string) bool {
	switch role {
	case RoleOwner, RoleAgent, RoleSuperAdmin:
		return true
	default:
		return false
	}
}
