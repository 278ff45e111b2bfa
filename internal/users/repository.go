package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chandumcs/opstracker/internal/platform/db"
	"github.com/chandumcs/opstracker/internal/rbac"
)

type dbtx interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var userColumns = []string{
	"id", "name", "COALESCE(username, '')", "email", "COALESCE(employee_id, '')", "role", "department",
	"total_leaves", "used_leaves", "week_offs", "used_week_offs", "status",
	"last_login", "last_logout", "registered_at",
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db dbtx
}

// NewRepository constructs a repository.
func NewRepository(db dbtx) *Repository {
	return &Repository{db: db}
}

// ListSignedIn returns users that have logged in at least once, newest first.
func (r *Repository) ListSignedIn(ctx context.Context) ([]User, error) {
	query, args, err := psql.Select(userColumns...).
		From("users").
		Where(sq.NotEq{"last_login": nil}).
		OrderBy("last_login DESC").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryUsers(ctx, query, args...)
}

// List returns one page of users and the total matching count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]User, int, error) {
	where := listPredicate(filters)

	countQuery, countArgs, err := psql.Select("count(*)").From("users").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}
	if total == 0 {
		return []User{}, 0, nil
	}

	stmt := psql.Select(userColumns...).From("users").Where(where).OrderBy("name ASC", "id ASC")
	if filters.Limit > 0 {
		stmt = stmt.Limit(uint64(filters.Limit))
	}
	if filters.Offset > 0 {
		stmt = stmt.Offset(uint64(filters.Offset))
	}
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, 0, err
	}
	users, err := r.queryUsers(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func listPredicate(filters ListFilters) sq.And {
	where := sq.And{}
	if filters.Role != "" {
		where = append(where, sq.Eq{"role": string(filters.Role)})
	}
	if filters.Status != "" {
		where = append(where, sq.Eq{"status": filters.Status})
	}
	if s := strings.TrimSpace(filters.Search); s != "" {
		like := "%" + s + "%"
		where = append(where, sq.Or{sq.ILike{"name": like}, sq.ILike{"email": like}})
	}
	return where
}

// GetByEmail fetches a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	query, args, err := psql.Select(userColumns...).From("users").
		Where(sq.Eq{"lower(email)": strings.ToLower(strings.TrimSpace(email))}).ToSql()
	if err != nil {
		return User{}, err
	}
	return r.queryUser(ctx, query, args...)
}

// GetByID fetches a user by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (User, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return User{}, err
	}
	return r.queryUser(ctx, query, args...)
}

// UpdateRole stores a new role and the department derived from it and
// returns the role it replaced. The row is locked for the duration.
func (r *Repository) UpdateRole(ctx context.Context, id int64, role string, department string) (rbac.Role, error) {
	var previous string
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&previous); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		_, err := tx.Exec(ctx,
			`UPDATE users SET role = $1, department = $2, updated_at = NOW() WHERE id = $3`,
			role, department, id)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return rbac.RoleUnknown, err
		}
		return rbac.RoleUnknown, fmt.Errorf("users: update role: %w", err)
	}
	return rbac.ParseRole(previous), nil
}

// MarkIdleOffline flips Online users whose last login precedes cutoff to Offline.
func (r *Repository) MarkIdleOffline(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET status = $1, last_logout = NOW(), updated_at = NOW()
		 WHERE status = $2 AND last_login < $3`,
		StatusOffline, StatusOnline, cutoff)
	if err != nil {
		return 0, fmt.Errorf("users: mark idle offline: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountOnline returns the number of users currently marked Online.
func (r *Repository) CountOnline(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM users WHERE status = $1`, StatusOnline).Scan(&n); err != nil {
		return 0, fmt.Errorf("users: count online: %w", err)
	}
	return n, nil
}

// Departments groups users by department in name order.
func (r *Repository) Departments(ctx context.Context) ([]DepartmentSummary, error) {
	query, args, err := psql.Select("department", "count(*)").
		Column(sq.Expr("count(*) FILTER (WHERE status = ?)", StatusOnline)).
		From("users").
		GroupBy("department").
		OrderBy("department ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("users: departments: %w", err)
	}
	defer rows.Close()
	out := make([]DepartmentSummary, 0)
	for rows.Next() {
		var d DepartmentSummary
		if err := rows.Scan(&d.Department, &d.Members, &d.Online); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) queryUser(ctx context.Context, query string, args ...any) (User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (r *Repository) queryUsers(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Username, &u.Email, &u.EmployeeID, &role, &u.Department,
		&u.TotalLeaves, &u.UsedLeaves, &u.WeekOffs, &u.UsedWeekOffs, &u.Status,
		&u.LastLogin, &u.LastLogout, &u.RegisteredAt,
	)
	if err != nil {
		return User{}, err
	}
	u.Role = rbac.ParseRole(role)
	return u, nil
}
