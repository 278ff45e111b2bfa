package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chandumcs/opstracker/internal/platform/db"
	"github.com/chandumcs/opstracker/internal/rbac"
	"github.com/chandumcs/opstracker/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	CreateAccount(ctx context.Context, acct NewAccount) (int64, error)
	UpdateLoginStatus(ctx context.Context, email, status string) error
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db dbtx
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(db dbtx) *PGRepository {
	return &PGRepository{db: db}
}

// FindByEmail fetches an account by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	var (
		acct Account
		role string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, name, email, password_hash, role, registered_at FROM users WHERE lower(email) = $1`,
		normalizeEmail(email),
	).Scan(&acct.ID, &acct.Name, &acct.Email, &acct.PasswordHash, &role, &acct.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	acct.Role = rbac.ParseRole(role)
	return &acct, nil
}

// CreateAccount inserts a new user row and returns its id.
func (r *PGRepository) CreateAccount(ctx context.Context, acct NewAccount) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO users (
			name, username, email, password_hash, employee_id, role, department,
			total_leaves, used_leaves, week_offs, used_week_offs, status, registered_at
		) VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, NOW())
		RETURNING id`,
		acct.Name, acct.Username, normalizeEmail(acct.Email), acct.PasswordHash, acct.EmployeeID,
		string(acct.Role), acct.Department,
		acct.TotalLeaves, acct.UsedLeaves, acct.WeekOffs, acct.UsedWeekOffs, acct.Status,
	).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, shared.ErrEmailTaken
		}
		return 0, fmt.Errorf("auth: create account: %w", err)
	}
	return id, nil
}

// UpdateLoginStatus stamps last_login or last_logout along with the status.
func (r *PGRepository) UpdateLoginStatus(ctx context.Context, email, status string) error {
	column := "last_logout"
	if status == StatusOnline {
		column = "last_login"
	}
	_, err := r.db.Exec(ctx,
		`UPDATE users SET status = $1, `+column+` = NOW(), updated_at = NOW() WHERE lower(email) = $2`,
		status, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("auth: update login status: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

var _ Repository = (*PGRepository)(nil)
