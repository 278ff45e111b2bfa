package rbac

import "strings"

// Role is a named category of actor with a fixed bundle of permissions.
type Role string

// Known roles. RoleUnknown is the zero value.
const (
	RoleUnknown           Role = ""
	RoleAdmin             Role = "admin"
	RoleManager           Role = "manager"
	RoleProductionSupport Role = "production-support"
	RoleUATSupport        Role = "uat-support"
	RoleDeveloper         Role = "developer"
)

// roleTable is the single source of truth for role capabilities.
var roleTable = map[Role]PermissionSet{
	RoleAdmin: {
		Dashboard:     true,
		DailyTracker:  true,
		ShiftHandover: true,
		AllUsersData:  true,
		Others:        true,
		ManageUsers:   true,
	},
	RoleManager: {
		Dashboard:     true,
		DailyTracker:  true,
		ShiftHandover: true,
		AllUsersData:  true,
		Others:        true,
	},
	RoleProductionSupport: {
		Dashboard:     true,
		DailyTracker:  true,
		ShiftHandover: true,
	},
	RoleUATSupport: {
		Dashboard:    true,
		DailyTracker: true,
	},
	RoleDeveloper: {
		Dashboard:    true,
		DailyTracker: true,
	},
}

var roleDisplay = map[Role]string{
	RoleAdmin:             "Admin",
	RoleManager:           "Manager",
	RoleProductionSupport: "Production Support",
	RoleUATSupport:        "UAT Support",
	RoleDeveloper:         "Developer",
}

var roleDepartment = map[Role]string{
	RoleAdmin:             "Management",
	RoleManager:           "Management",
	RoleProductionSupport: "Production",
	RoleUATSupport:        "Testing",
	RoleDeveloper:         "Development",
}

// Roles returns the known roles in display order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleProductionSupport, RoleUATSupport, RoleDeveloper}
}

// PermissionsFor returns the permission set for role. Unknown roles get DenyAll.
func PermissionsFor(role Role) PermissionSet {
	if set, ok := roleTable[role]; ok {
		return set
	}
	return DenyAll()
}

// ParseRole maps the wire and display spellings of a role onto Role.
// "Production Support", "production_support" and "PRODUCTION-SUPPORT" all
// resolve to RoleProductionSupport. Unrecognised input yields RoleUnknown.
func ParseRole(raw string) Role {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "-", "_", "-").Replace(key)
	role := Role(key)
	if _, ok := roleTable[role]; ok {
		return role
	}
	return RoleUnknown
}

// Known reports whether r is part of the role table.
func (r Role) Known() bool {
	_, ok := roleTable[r]
	return ok
}

// DisplayName returns the human readable role name.
func (r Role) DisplayName() string {
	if name, ok := roleDisplay[r]; ok {
		return name
	}
	return "Unknown"
}

// Department returns the department a role belongs to.
func (r Role) Department() string {
	if dept, ok := roleDepartment[r]; ok {
		return dept
	}
	return "Unknown"
}

func (r Role) String() string {
	return string(r)
}
