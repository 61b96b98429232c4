package rbac

import "github.com/vlady-pos/vlady-pos/internal/shared"

// Role represents a high-level permission grouping.
type Role struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// builtinRoles maps every role a user row may carry onto its grants.
var builtinRoles = map[string]Role{
	shared.RoleAdmin: {
		Name:        shared.RoleAdmin,
		Description: "Store administrator",
		Permissions: shared.AllScopes(),
	},
	shared.RoleSeller: {
		Name:        shared.RoleSeller,
		Description: "Counter seller",
		Permissions: []string{
			shared.PermInventoryView,
			shared.PermSalesView,
			shared.PermSalesCreate,
		},
	},
}
