package audit

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

type querier interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository reads audit_logs joined with the acting user.
type Repository struct {
	db querier
}

// NewRepository constructs a Repository.
func NewRepository(db querier) *Repository {
	return &Repository{db: db}
}

// List returns up to limit rows newest first, skipping offset rows.
func (r *Repository) List(ctx context.Context, f TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	stmt := psql.Select(
		"a.id", "a.occurred_at", "a.actor_id",
		"COALESCE(NULLIF(u.name, ''), u.email, 'system')",
		"a.action", "a.entity", "a.entity_id", "a.meta",
	).
		From("audit_logs a").
		LeftJoin("users u ON u.id = a.actor_id").
		Where(timelinePredicate(f)).
		OrderBy("a.occurred_at DESC", "a.id DESC")
	if limit > 0 {
		stmt = stmt.Limit(uint64(limit))
	}
	if offset > 0 {
		stmt = stmt.Offset(uint64(offset))
	}
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline: %w", err)
	}
	defer rows.Close()

	out := make([]TimelineRow, 0)
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.ID, &row.At, &row.ActorID, &row.Actor, &row.Action, &row.Entity, &row.EntityID, &row.Meta); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func timelinePredicate(f TimelineFilters) sq.And {
	where := sq.And{}
	if !f.From.IsZero() {
		where = append(where, sq.GtOrEq{"a.occurred_at": f.From})
	}
	if !f.To.IsZero() {
		where = append(where, sq.Lt{"a.occurred_at": f.To.AddDate(0, 0, 1)})
	}
	if actor := strings.TrimSpace(f.Actor); actor != "" {
		like := "%" + actor + "%"
		where = append(where, sq.Or{sq.ILike{"u.name": like}, sq.ILike{"u.email": like}})
	}
	if entity := strings.TrimSpace(f.Entity); entity != "" {
		where = append(where, sq.Eq{"a.entity": entity})
	}
	if action := strings.TrimSpace(f.Action); action != "" {
		where = append(where, sq.Eq{"a.action": action})
	}
	return where
}
