package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/chandumcs/opstracker/internal/rbac"
	"github.com/chandumcs/opstracker/internal/shared"
)

// ErrUnknownRole is returned when a registration names a role outside the table.
var ErrUnknownRole = errors.New("auth: unknown role")

// Service wraps authentication business rules.
type Service struct {
	repo Repository
	cost int
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// Authenticate validates email/password credentials and returns the
// identity to sign the session in with.
func (s *Service) Authenticate(ctx context.Context, email, password string) (rbac.Identity, error) {
	acct, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return rbac.Anonymous, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return rbac.Anonymous, shared.ErrInvalidCredentials
	}
	if err := s.repo.UpdateLoginStatus(ctx, acct.Email, StatusOnline); err != nil {
		return rbac.Anonymous, err
	}
	return acct.Identity(), nil
}

// Register creates an account and returns its identity. The account starts Online.
func (s *Service) Register(ctx context.Context, reg Registration) (rbac.Identity, error) {
	role := rbac.ParseRole(reg.Role)
	if !role.Known() {
		return rbac.Anonymous, ErrUnknownRole
	}
	if _, err := s.repo.FindByEmail(ctx, reg.Email); err == nil {
		return rbac.Anonymous, shared.ErrEmailTaken
	} else if !errors.Is(err, shared.ErrNotFound) {
		return rbac.Anonymous, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return rbac.Anonymous, fmt.Errorf("auth: hash password: %w", err)
	}
	acct := NewAccount{
		Name:         DisplayName(reg.FirstName, reg.LastName),
		Username:     strings.TrimSpace(reg.UserName),
		Email:        normalizeEmail(reg.Email),
		PasswordHash: string(hash),
		EmployeeID:   strings.TrimSpace(reg.EmployeeID),
		Role:         role,
		Department:   role.Department(),
		TotalLeaves:  DefaultTotalLeaves,
		WeekOffs:     DefaultWeekOffs,
		Status:       StatusOnline,
	}
	id, err := s.repo.CreateAccount(ctx, acct)
	if err != nil {
		return rbac.Anonymous, err
	}
	if err := s.repo.UpdateLoginStatus(ctx, acct.Email, StatusOnline); err != nil {
		return rbac.Anonymous, err
	}
	return Account{ID: id, Name: acct.Name, Email: acct.Email, Role: role}.Identity(), nil
}

// Logout marks the account Offline.
func (s *Service) Logout(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	return s.repo.UpdateLoginStatus(ctx, email, StatusOffline)
}

// SeedAdmin creates an Admin account unless the email is already taken.
// It reports whether an account was created.
func (s *Service) SeedAdmin(ctx context.Context, name, email, password string) (bool, error) {
	first, last, _ := strings.Cut(strings.TrimSpace(name), " ")
	_, err := s.Register(ctx, Registration{
		FirstName: first,
		LastName:  last,
		Email:     email,
		Role:      string(rbac.RoleAdmin),
		Password:  password,
	})
	if errors.Is(err, shared.ErrEmailTaken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// Seeding must not leave the account looking signed in.
	if err := s.repo.UpdateLoginStatus(ctx, email, StatusOffline); err != nil {
		return true, err
	}
	return true, nil
}

// DisplayName joins and title-cases first and last name.
func DisplayName(first, last string) string {
	full := strings.Join(strings.Fields(first+" "+last), " ")
	// Casers are stateful, so one is built per call.
	return cases.Title(language.English).String(strings.ToLower(full))
}
