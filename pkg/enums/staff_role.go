package enums

import "fmt"

// Role is carried in access tokens.
type Role string

const (
	RoleBuyer       Role = "buyer"
	RoleShopManager Role = "shop_manager"
	RoleAdmin       Role = "admin"
)

var validRoles = []Role{
	RoleBuyer,
	RoleShopManager,
	RoleAdmin,
}

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role may manage orders.
func (r Role) IsStaff() bool {
	return r == RoleShopManager || r == RoleAdmin
}

func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
