package users

import (
	"errors"
	"time"

	"github.com/chandumcs/opstracker/internal/rbac"
)

// ErrNotFound indicates that the requested user does not exist.
var ErrNotFound = errors.New("users: not found")

// ErrUnknownRole indicates a role outside the role table.
var ErrUnknownRole = errors.New("users: unknown role")

// Presence values stored in users.status.
const (
	StatusOnline  = "Online"
	StatusOffline = "Offline"
)

// User represents a directory entry. The password hash never leaves the
// repository.
type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Username     string     `json:"username,omitempty"`
	Email        string     `json:"email"`
	EmployeeID   string     `json:"employeeId,omitempty"`
	Role         rbac.Role  `json:"role"`
	Department   string     `json:"department"`
	TotalLeaves  int        `json:"totalLeaves"`
	UsedLeaves   int        `json:"usedLeaves"`
	WeekOffs     int        `json:"weekOffs"`
	UsedWeekOffs int        `json:"usedWeekOffs"`
	Status       string     `json:"status"`
	LastLogin    *time.Time `json:"-"`
	LastLogout   *time.Time `json:"-"`
	RegisteredAt time.Time  `json:"registeredAt"`
}

// SignedInUser is the All Users Data row.
type SignedInUser struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Department   string `json:"department"`
	LastLogin    string `json:"lastLogin"`
	LastLogout   string `json:"lastLogout"`
	Status       string `json:"status"`
	TotalLeaves  int    `json:"totalLeaves"`
	UsedLeaves   int    `json:"usedLeaves"`
	WeekOffs     int    `json:"weekOffs"`
	UsedWeekOffs int    `json:"usedWeekOffs"`
	EmployeeID   string `json:"employeeId"`
	Role         string `json:"role"`
}

const timestampLayout = "2006-01-02 15:04:05"

// ToSignedIn renders u for the directory, showing "Never" for empty timestamps.
func (u User) ToSignedIn() SignedInUser {
	return SignedInUser{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Department:   u.Department,
		LastLogin:    formatStamp(u.LastLogin),
		LastLogout:   formatStamp(u.LastLogout),
		Status:       u.Status,
		TotalLeaves:  u.TotalLeaves,
		UsedLeaves:   u.UsedLeaves,
		WeekOffs:     u.WeekOffs,
		UsedWeekOffs: u.UsedWeekOffs,
		EmployeeID:   u.EmployeeID,
		Role:         u.Role.DisplayName(),
	}
}

func formatStamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "Never"
	}
	return t.UTC().Format(timestampLayout)
}

// ListFilters narrows the paginated directory listing.
type ListFilters struct {
	Role   rbac.Role
	Status string
	Search string
	Limit  int
	Offset int
}

// DepartmentSummary counts the members of one department.
type DepartmentSummary struct {
	Department string `json:"department"`
	Members    int    `json:"members"`
	Online     int    `json:"online"`
}
