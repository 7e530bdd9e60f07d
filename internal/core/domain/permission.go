package domain

import (
	"encoding/json"
	"sort"
)

// Permission names a resource:action pair.
type Permission string

const (
	PermVehiclesRead       Permission = "vehicles:read"
	PermVehiclesWrite      Permission = "vehicles:write"
	PermOrdersRead         Permission = "orders:read"
	PermOrdersWrite        Permission = "orders:write"
	PermPaymentsRead       Permission = "payments:read"
	PermPaymentsWrite      Permission = "payments:write"
	PermTestDrivesRead     Permission = "test_drives:read"
	PermTestDrivesWrite    Permission = "test_drives:write"
	PermDistributionsRead  Permission = "distributions:read"
	PermDistributionsWrite Permission = "distributions:write"
	PermDealersManage      Permission = "dealers:manage"
	PermUsersManage        Permission = "users:manage"
	PermReportsRead        Permission = "reports:read"
)

// rolePermissions is built once and never mutated; PermissionsFor hands
// out copies.
var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermVehiclesRead, PermVehiclesWrite,
		PermOrdersRead, PermOrdersWrite,
		PermPaymentsRead, PermPaymentsWrite,
		PermTestDrivesRead, PermTestDrivesWrite,
		PermDistributionsRead, PermDistributionsWrite,
		PermDealersManage, PermUsersManage, PermReportsRead,
	},
	RoleEVMStaff: {
		PermVehiclesRead, PermVehiclesWrite,
		PermOrdersRead,
		PermDistributionsRead, PermDistributionsWrite,
		PermDealersManage, PermReportsRead,
	},
	RoleDealerManager: {
		PermVehiclesRead,
		PermOrdersRead, PermOrdersWrite,
		PermPaymentsRead, PermPaymentsWrite,
		PermTestDrivesRead, PermTestDrivesWrite,
		PermDistributionsRead,
		PermReportsRead,
	},
	RoleDealerStaff: {
		PermVehiclesRead,
		PermOrdersRead, PermOrdersWrite,
		PermPaymentsRead,
		PermTestDrivesRead, PermTestDrivesWrite,
	},
	RoleCustomer: {
		PermVehiclesRead,
		PermOrdersRead,
		PermPaymentsRead,
		PermTestDrivesRead, PermTestDrivesWrite,
	},
}

// PermissionsFor derives the permission set of a role. Unknown roles get
// an empty set.
func PermissionsFor(r Role) PermissionSet {
	return NewPermissionSet(rolePermissions[r]...)
}

// PermissionSet is an unordered set of permissions.
type PermissionSet map[Permission]struct{}

func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

func (s PermissionSet) Contains(p Permission) bool {
	_, ok := s[p]
	return ok
}

// ContainsAll reports whether every permission of other is in s.
func (s PermissionSet) ContainsAll(other PermissionSet) bool {
	for p := range other {
		if !s.Contains(p) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy. Nil stays nil.
func (s PermissionSet) Clone() PermissionSet {
	if s == nil {
		return nil
	}
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

func (s PermissionSet) Empty() bool {
	return len(s) == 0
}

func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var perms []Permission
	if err := json.Unmarshal(data, &perms); err != nil {
		return err
	}
	*s = NewPermissionSet(perms...)
	return nil
}
