package users

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/chandumcs/opstracker/internal/rbac"
	"github.com/chandumcs/opstracker/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListSignedIn(ctx context.Context) ([]User, error)
	List(ctx context.Context, filters ListFilters) ([]User, int, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	UpdateRole(ctx context.Context, id int64, role string, department string) (rbac.Role, error)
	MarkIdleOffline(ctx context.Context, cutoff time.Time) (int64, error)
	CountOnline(ctx context.Context) (int, error)
	Departments(ctx context.Context) ([]DepartmentSummary, error)
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	audit  shared.AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service instance. audit may be nil.
func NewService(repo RepositoryPort, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// ListSignedIn returns the All Users Data rows.
func (s *Service) ListSignedIn(ctx context.Context) ([]SignedInUser, error) {
	users, err := s.repo.ListSignedIn(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SignedInUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToSignedIn())
	}
	return out, nil
}

// List returns a page of users.
func (s *Service) List(ctx context.Context, page, perPage int, filters ListFilters) ([]User, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	filters.Limit = p.PerPage
	filters.Offset = p.Offset()
	users, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// GetByEmail returns a single user.
func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.GetByEmail(ctx, email)
}

// ChangeRole assigns a new role to a user. Unknown roles are rejected
// rather than silently stored.
func (s *Service) ChangeRole(ctx context.Context, actorID, userID int64, raw string) (User, error) {
	role := rbac.ParseRole(raw)
	if !role.Known() {
		return User{}, ErrUnknownRole
	}
	previous, err := s.repo.UpdateRole(ctx, userID, string(role), role.Department())
	if err != nil {
		return User{}, err
	}
	s.record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "users.role_changed",
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     map[string]any{"from": string(previous), "to": string(role)},
	})
	return s.repo.GetByID(ctx, userID)
}

// RoleOf returns the stored role of a user. found is false for unknown ids.
func (s *Service) RoleOf(ctx context.Context, userID int64) (rbac.Role, bool, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return rbac.RoleUnknown, false, nil
	}
	if err != nil {
		return rbac.RoleUnknown, false, err
	}
	return u.Role, true, nil
}

// MarkIdleOffline signs out users whose last login is older than idleFor.
func (s *Service) MarkIdleOffline(ctx context.Context, idleFor time.Duration) (int64, error) {
	return s.repo.MarkIdleOffline(ctx, s.now().Add(-idleFor))
}

// CountOnline returns how many users are Online.
func (s *Service) CountOnline(ctx context.Context) (int, error) {
	return s.repo.CountOnline(ctx)
}

// Departments returns the department overview.
func (s *Service) Departments(ctx context.Context) ([]DepartmentSummary, error) {
	return s.repo.Departments(ctx)
}

func (s *Service) record(ctx context.Context, entry shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record", slog.String("action", entry.Action), slog.Any("error", err))
	}
}
