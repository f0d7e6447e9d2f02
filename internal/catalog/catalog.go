// Copyright 2026 The FieldOps Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// Domain errors
var (
	ErrUnknownRole   = errors.New("role not present in permission catalog")
	ErrEmptyCatalog  = errors.New("permission catalog has no roles")
	ErrDuplicateRole = errors.New("duplicate role name in permission catalog")
	ErrInvalidRole   = errors.New("invalid role definition")
)

// Capability names, used wherever a permission is referenced by string
// (HTTP surface, audit detail, configuration).
const (
	CapViewUsers        = "view_users"
	CapManageUsers      = "manage_users"
	CapAssignRoles      = "assign_roles"
	CapViewInventory    = "view_inventory"
	CapManageInventory  = "manage_inventory"
	CapViewWorkOrders   = "view_work_orders"
	CapManageWorkOrders = "manage_work_orders"
	CapViewReports      = "view_reports"
	CapManageSettings   = "manage_settings"
)

// PermissionSet is the fixed capability record attached to a role.
// It is a value type: copies are cheap and callers can never mutate
// catalog state through a returned set.
type PermissionSet struct {
	CanViewUsers        bool `json:"can_view_users"`
	CanManageUsers      bool `json:"can_manage_users"`
	CanAssignRoles      bool `json:"can_assign_roles"`
	CanViewInventory    bool `json:"can_view_inventory"`
	CanManageInventory  bool `json:"can_manage_inventory"`
	CanViewWorkOrders   bool `json:"can_view_work_orders"`
	CanManageWorkOrders bool `json:"can_manage_work_orders"`
	CanViewReports      bool `json:"can_view_reports"`
	CanManageSettings   bool `json:"can_manage_settings"`
}

// Has reports whether the named capability is granted. Unknown names are
// false, never a panic: a typo in a capability check must deny, not crash.
func (p PermissionSet) Has(capability string) bool {
	switch capability {
	case CapViewUsers:
		return p.CanViewUsers
	case CapManageUsers:
		return p.CanManageUsers
	case CapAssignRoles:
		return p.CanAssignRoles
	case CapViewInventory:
		return p.CanViewInventory
	case CapManageInventory:
		return p.CanManageInventory
	case CapViewWorkOrders:
		return p.CanViewWorkOrders
	case CapManageWorkOrders:
		return p.CanManageWorkOrders
	case CapViewReports:
		return p.CanViewReports
	case CapManageSettings:
		return p.CanManageSettings
	}
	return false
}

// Role binds a role name to its hierarchy rank and capability record.
// Roles are defined at deploy time and immutable at runtime.
type Role struct {
	Name        string
	Rank        int
	Permissions PermissionSet
}

// Catalog is the process-wide, read-only role table. Build it once at
// startup with New; an unknown role anywhere in the system is a
// configuration error surfaced through ErrUnknownRole, never a silent
// empty permission set.
type Catalog struct {
	roles       map[string]Role
	topRank     int
	defaultSet  PermissionSet
	defaultRole string
}

// New builds and validates a catalog from the given roles. defaultRole
// names the tier applied to principals holding no roles (the customer
// tier); it must itself be in the catalog.
func New(roles []Role, defaultRole string) (*Catalog, error) {
	if len(roles) == 0 {
		return nil, ErrEmptyCatalog
	}

	m := make(map[string]Role, len(roles))
	top := 0
	for _, r := range roles {
		if r.Name == "" {
			return nil, fmt.Errorf("%w: empty role name", ErrInvalidRole)
		}
		if r.Rank <= 0 {
			return nil, fmt.Errorf("%w: role %q has rank %d", ErrInvalidRole, r.Name, r.Rank)
		}
		if _, exists := m[r.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRole, r.Name)
		}
		m[r.Name] = r
		if r.Rank > top {
			top = r.Rank
		}
	}

	def, ok := m[defaultRole]
	if !ok {
		return nil, fmt.Errorf("%w: default role %q", ErrUnknownRole, defaultRole)
	}

	return &Catalog{
		roles:       m,
		topRank:     top,
		defaultSet:  def.Permissions,
		defaultRole: defaultRole,
	}, nil
}

// Lookup returns the catalog entry for a role name.
func (c *Catalog) Lookup(name string) (Role, error) {
	r, ok := c.roles[name]
	if !ok {
		return Role{}, fmt.Errorf("%w: %q", ErrUnknownRole, name)
	}
	return r, nil
}

// Rank returns the hierarchy rank of a role.
func (c *Catalog) Rank(name string) (int, error) {
	r, err := c.Lookup(name)
	if err != nil {
		return 0, err
	}
	return r.Rank, nil
}

// Permissions returns the capability record of a role.
func (c *Catalog) Permissions(name string) (PermissionSet, error) {
	r, err := c.Lookup(name)
	if err != nil {
		return PermissionSet{}, err
	}
	return r.Permissions, nil
}

// TopRank returns the highest rank defined in the catalog. Assigning a
// role at this rank is guarded by the escalation rule.
func (c *Catalog) TopRank() int {
	return c.topRank
}

// DefaultPermissions returns the capability record applied to principals
// holding no roles.
func (c *Catalog) DefaultPermissions() PermissionSet {
	return c.defaultSet
}

// DefaultRole returns the name of the no-roles default tier.
func (c *Catalog) DefaultRole() string {
	return c.defaultRole
}

// Names returns all role names in lexical order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.roles))
	for name := range c.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateReferences checks that every role name in refs has a catalog
// entry. Called at startup against any externally supplied role list so a
// misconfiguration fails loudly before the service accepts traffic.
func (c *Catalog) ValidateReferences(refs []string) error {
	for _, name := range refs {
		if _, ok := c.roles[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownRole, name)
		}
	}
	return nil
}
