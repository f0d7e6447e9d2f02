package catalog

// Role name constants. These are the canonical names for the deploy-time
// role table; the database seed uses the same names.
const (
	RoleOwner         = "owner"
	RoleAdmin         = "admin"
	RoleOfficeManager = "office_manager"
	RoleAccountant    = "accountant"
	RoleTechnician    = "technician"
	RolePartsManager  = "parts_manager"
	RoleCustomer      = "customer"
)

// DefaultRoles is the built-in role table. Deployments that manage the
// table in the database seed it from here; either way the mapping is
// loaded once at startup and treated as immutable shared state.
func DefaultRoles() []Role {
	return []Role{
		{
			Name: RoleOwner,
			Rank: 7,
			Permissions: PermissionSet{
				CanViewUsers:        true,
				CanManageUsers:      true,
				CanAssignRoles:      true,
				CanViewInventory:    true,
				CanManageInventory:  true,
				CanViewWorkOrders:   true,
				CanManageWorkOrders: true,
				CanViewReports:      true,
				CanManageSettings:   true,
			},
		},
		{
			Name: RoleAdmin,
			Rank: 6,
			Permissions: PermissionSet{
				CanViewUsers:        true,
				CanManageUsers:      true,
				CanAssignRoles:      true,
				CanViewInventory:    true,
				CanManageInventory:  true,
				CanViewWorkOrders:   true,
				CanManageWorkOrders: true,
				CanViewReports:      true,
			},
		},
		{
			Name: RoleOfficeManager,
			Rank: 5,
			Permissions: PermissionSet{
				CanViewUsers:        true,
				CanViewInventory:    true,
				CanViewWorkOrders:   true,
				CanManageWorkOrders: true,
				CanViewReports:      true,
			},
		},
		{
			Name: RoleAccountant,
			Rank: 4,
			Permissions: PermissionSet{
				CanViewUsers:      true,
				CanViewInventory:  true,
				CanViewWorkOrders: true,
				CanViewReports:    true,
			},
		},
		{
			Name: RoleTechnician,
			Rank: 3,
			Permissions: PermissionSet{
				CanViewInventory:    true,
				CanViewWorkOrders:   true,
				CanManageWorkOrders: true,
			},
		},
		{
			Name: RolePartsManager,
			Rank: 3,
			Permissions: PermissionSet{
				CanViewInventory:   true,
				CanManageInventory: true,
				CanViewWorkOrders:  true,
			},
		},
		{
			Name: RoleCustomer,
			Rank: 1,
			Permissions: PermissionSet{
				CanViewWorkOrders: true,
			},
		},
	}
}

// Default builds the catalog from the built-in role table with the
// customer tier as the no-roles default.
func Default() (*Catalog, error) {
	return New(DefaultRoles(), RoleCustomer)
}
