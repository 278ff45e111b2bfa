package auth

import (
	"time"

	"github.com/chandumcs/opstracker/internal/rbac"
)

// Account is the credential record behind a user.
type Account struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         rbac.Role
	CreatedAt    time.Time
}

// Identity converts the account into the session identity.
func (a Account) Identity() rbac.Identity {
	return rbac.Identity{
		UserID: formatID(a.ID),
		Name:   a.Name,
		Email:  a.Email,
		Role:   a.Role,
	}
}

// NewAccount carries a registration after validation and hashing.
type NewAccount struct {
	Name         string
	Username     string
	Email        string
	PasswordHash string
	EmployeeID   string
	Role         rbac.Role
	Department   string
	TotalLeaves  int
	UsedLeaves   int
	WeekOffs     int
	UsedWeekOffs int
	Status       string
}

// Registration is the validated register request.
type Registration struct {
	FirstName  string
	LastName   string
	UserName   string
	EmployeeID string
	Email      string
	Role       string
	Password   string
}

// Leave allowances granted to a new account.
const (
	DefaultTotalLeaves = 20
	DefaultWeekOffs    = 52
)

// Presence values written on login and logout.
const (
	StatusOnline  = "Online"
	StatusOffline = "Offline"
)
