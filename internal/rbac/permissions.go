package rbac

// Permission names a protected capability.
type Permission string

// Capabilities guarded by the dashboard.
const (
	PermDashboard     Permission = "dashboard"
	PermDailyTracker  Permission = "daily-tracker"
	PermShiftHandover Permission = "shift-handover"
	PermAllUsersData  Permission = "all-users-data"
	PermOthers        Permission = "others"
	PermManageUsers   Permission = "manage-users"
)

// AllPermissions lists every capability in a stable order.
func AllPermissions() []Permission {
	return []Permission{
		PermDashboard,
		PermDailyTracker,
		PermShiftHandover,
		PermAllUsersData,
		PermOthers,
		PermManageUsers,
	}
}

// Valid reports whether p is one of the known capabilities.
func (p Permission) Valid() bool {
	switch p {
	case PermDashboard, PermDailyTracker, PermShiftHandover, PermAllUsersData, PermOthers, PermManageUsers:
		return true
	}
	return false
}

func (p Permission) String() string {
	return string(p)
}

// PermissionSet is the capability bundle derived from a Role.
type PermissionSet struct {
	Dashboard     bool `json:"canAccessDashboard"`
	DailyTracker  bool `json:"canAccessDailyTracker"`
	ShiftHandover bool `json:"canAccessShiftHandover"`
	AllUsersData  bool `json:"canAccessAllUsersData"`
	Others        bool `json:"canAccessOthers"`
	ManageUsers   bool `json:"canManageUsers"`
	ReadOnly      bool `json:"readOnly"`
}

// DenyAll returns the set granted to unknown roles and anonymous sessions.
func DenyAll() PermissionSet {
	return PermissionSet{ReadOnly: true}
}

// Has reports whether the set grants p. Unknown permissions are denied.
func (s PermissionSet) Has(p Permission) bool {
	switch p {
	case PermDashboard:
		return s.Dashboard
	case PermDailyTracker:
		return s.DailyTracker
	case PermShiftHandover:
		return s.ShiftHandover
	case PermAllUsersData:
		return s.AllUsersData
	case PermOthers:
		return s.Others
	case PermManageUsers:
		return s.ManageUsers
	default:
		return false
	}
}

// Granted returns the capabilities present in the set.
func (s PermissionSet) Granted() []Permission {
	granted := make([]Permission, 0, 6)
	for _, p := range AllPermissions() {
		if s.Has(p) {
			granted = append(granted, p)
		}
	}
	return granted
}
