package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that the built-in role table builds a valid catalog
// and that every role resolves to exactly its own capability record.
// Scope: Unit Test
// Security: Permission mapping integrity
// Expected: Lookup/Rank/Permissions agree with the role table for all roles.
// Test Case ID: CAT-01
func TestCatalog_DefaultRoles(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	for _, r := range DefaultRoles() {
		got, err := c.Permissions(r.Name)
		require.NoError(t, err)
		assert.Equal(t, r.Permissions, got, "permissions for %s", r.Name)

		rank, err := c.Rank(r.Name)
		require.NoError(t, err)
		assert.Equal(t, r.Rank, rank, "rank for %s", r.Name)
	}

	assert.Equal(t, 7, c.TopRank())
	assert.Equal(t, RoleCustomer, c.DefaultRole())
	assert.Equal(t, PermissionSet{CanViewWorkOrders: true}, c.DefaultPermissions())
}

// TestPurpose: Validates that an unknown role is a loud configuration error,
// never a silent empty permission set.
// Scope: Unit Test
// Security: Misconfiguration must fail closed at startup
// Expected: ErrUnknownRole from Lookup/Rank/Permissions/ValidateReferences.
// Test Case ID: CAT-02
func TestCatalog_UnknownRoleFailsLoudly(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	_, err = c.Lookup("dispatcher")
	assert.ErrorIs(t, err, ErrUnknownRole)

	_, err = c.Rank("dispatcher")
	assert.ErrorIs(t, err, ErrUnknownRole)

	_, err = c.Permissions("dispatcher")
	assert.ErrorIs(t, err, ErrUnknownRole)

	err = c.ValidateReferences([]string{RoleOwner, "dispatcher"})
	assert.ErrorIs(t, err, ErrUnknownRole)
}

// TestPurpose: Validates catalog construction rejects invalid role tables.
// Scope: Unit Test
// Expected: Errors for empty tables, duplicates, non-positive ranks, and a
// default role missing from the table.
// Test Case ID: CAT-03
func TestCatalog_Validation(t *testing.T) {
	tests := []struct {
		name        string
		roles       []Role
		defaultRole string
		wantErr     error
	}{
		{
			name:    "empty table",
			roles:   nil,
			wantErr: ErrEmptyCatalog,
		},
		{
			name: "duplicate role",
			roles: []Role{
				{Name: "owner", Rank: 7},
				{Name: "owner", Rank: 6},
			},
			defaultRole: "owner",
			wantErr:     ErrDuplicateRole,
		},
		{
			name: "zero rank",
			roles: []Role{
				{Name: "guest", Rank: 0},
			},
			defaultRole: "guest",
			wantErr:     ErrInvalidRole,
		},
		{
			name: "unknown default role",
			roles: []Role{
				{Name: "owner", Rank: 7},
			},
			defaultRole: "customer",
			wantErr:     ErrUnknownRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.roles, tt.defaultRole)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// TestPurpose: Validates capability name dispatch on PermissionSet.
// Scope: Unit Test
// Expected: Named capabilities map to their flags; unknown names are false.
// Test Case ID: CAT-04
func TestPermissionSet_Has(t *testing.T) {
	set := PermissionSet{
		CanAssignRoles:      true,
		CanManageWorkOrders: true,
	}

	assert.True(t, set.Has(CapAssignRoles))
	assert.True(t, set.Has(CapManageWorkOrders))
	assert.False(t, set.Has(CapManageSettings))
	assert.False(t, set.Has("launch_missiles"))
	assert.False(t, set.Has(""))
}
