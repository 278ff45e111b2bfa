package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var taskColumns = []string{
	"id", "title", "description", "product", "issue_type", "status", "priority",
	"developer", "uat_person", "production_person",
	"COALESCE(to_char(reported_date, 'YYYY-MM-DD'), '')",
	"COALESCE(to_char(fixed_date, 'YYYY-MM-DD'), '')",
	"COALESCE(to_char(closed_date, 'YYYY-MM-DD'), '')",
	"to_char(task_date, 'YYYY-MM-DD')",
	"time_info", "COALESCE(created_by, 0)", "created_at", "updated_at",
}

// Repository persists tasks in PostgreSQL.
type Repository struct {
	db dbtx
}

// NewRepository constructs a repository.
func NewRepository(db dbtx) *Repository {
	return &Repository{db: db}
}

// Create inserts a task and returns it as stored.
func (r *Repository) Create(ctx context.Context, t Task) (Task, error) {
	query, args, err := psql.Insert("daily_tasks").
		Columns("title", "description", "product", "issue_type", "status", "priority",
			"developer", "uat_person", "production_person",
			"reported_date", "fixed_date", "closed_date", "task_date", "time_info", "created_by").
		Values(t.Title, t.Description, t.Product, t.IssueType, t.Status, t.Priority,
			t.Developer, t.UATPerson, t.ProductionPerson,
			nullDate(t.ReportedDate), nullDate(t.FixedDate), nullDate(t.ClosedDate),
			t.TaskDate, t.TimeInfo, nullID(t.CreatedBy)).
		Suffix("RETURNING " + joinColumns()).
		ToSql()
	if err != nil {
		return Task{}, err
	}
	created, err := scanTask(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return Task{}, fmt.Errorf("tasks: create: %w", err)
	}
	return created, nil
}

// List returns tasks matching filters, newest first.
func (r *Repository) List(ctx context.Context, f ListFilters) ([]Task, error) {
	query, args, err := psql.Select(taskColumns...).
		From("daily_tasks").
		Where(listPredicate(f)).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tasks: list: %w", err)
	}
	defer rows.Close()
	out := make([]Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func listPredicate(f ListFilters) sq.And {
	where := sq.And{}
	if f.DateFrom != "" {
		where = append(where, sq.Expr("task_date >= ?::date", f.DateFrom))
	}
	if f.DateTo != "" {
		where = append(where, sq.Expr("task_date <= ?::date", f.DateTo))
	}
	if f.Product != "" {
		where = append(where, sq.Eq{"product": f.Product})
	}
	if f.IssueType != "" {
		where = append(where, sq.Eq{"issue_type": f.IssueType})
	}
	if f.Status != "" {
		where = append(where, sq.Eq{"status": f.Status})
	}
	return where
}

// Get fetches a task by id.
func (r *Repository) Get(ctx context.Context, id int64) (Task, error) {
	query, args, err := psql.Select(taskColumns...).From("daily_tasks").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return Task{}, err
	}
	t, err := scanTask(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	return t, nil
}

// Update applies column assignments and returns the updated row.
func (r *Repository) Update(ctx context.Context, id int64, fields map[string]any) (Task, error) {
	if len(fields) == 0 {
		return Task{}, ErrNothingToUpdate
	}
	query, args, err := psql.Update("daily_tasks").
		SetMap(fields).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + joinColumns()).
		ToSql()
	if err != nil {
		return Task{}, err
	}
	t, err := scanTask(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("tasks: update: %w", err)
	}
	return t, nil
}

// Delete removes a task.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM daily_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("tasks: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus groups every task by status.
func (r *Repository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	rows, err := r.db.Query(ctx, `SELECT status, count(*) FROM daily_tasks GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("tasks: count by status: %w", err)
	}
	defer rows.Close()
	out := make([]StatusCount, 0)
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Product, &t.IssueType, &t.Status, &t.Priority,
		&t.Developer, &t.UATPerson, &t.ProductionPerson,
		&t.ReportedDate, &t.FixedDate, &t.ClosedDate, &t.TaskDate,
		&t.TimeInfo, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

func joinColumns() string {
	return strings.Join(taskColumns, ", ")
}

func nullDate(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
