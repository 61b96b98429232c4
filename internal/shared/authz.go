package shared

// POS permissions declared for RBAC.
const (
	PermInventoryView = "inventory.view"
	PermInventoryEdit = "inventory.edit"

	PermSalesView   = "sales.view"
	PermSalesCreate = "sales.create"

	PermReportsView = "reports.view"
)

// Roles known to the POS.
const (
	RoleAdmin  = "admin"
	RoleSeller = "vendedor"
)

// AllScopes lists every permission exposed by the API.
func AllScopes() []string {
	return []string{
		PermInventoryView,
		PermInventoryEdit,
		PermSalesView,
		PermSalesCreate,
		PermReportsView,
	}
}
