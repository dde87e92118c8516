package domain

type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// Principal is the authenticated caller supplied by the auth collaborator.
type Principal struct {
	ID   string
	Role Role
}

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleCustomer, RoleProvider, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// OwnsProvider reports whether the principal may act for the given provider.
func (p Principal) OwnsProvider(providerID string) bool {
	return p.IsAdmin() || (p.Role == RoleProvider && p.ID == providerID)
}
