package handover

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

type dbtx interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var handoverColumns = []string{"id", "name", "shift_from", "shift_to", "body", "points", "saved_at", "COALESCE(created_by, 0)"}

// Repository persists handovers in PostgreSQL.
type Repository struct {
	db dbtx
}

// NewRepository constructs a repository.
func NewRepository(db dbtx) *Repository {
	return &Repository{db: db}
}

// Create stores a handover and returns it with id and saved_at filled in.
func (r *Repository) Create(ctx context.Context, h Handover) (Handover, error) {
	var createdBy any
	if h.CreatedBy > 0 {
		createdBy = h.CreatedBy
	}
	query, args, err := psql.Insert("shift_handovers").
		Columns("name", "shift_from", "shift_to", "body", "points", "created_by").
		Values(h.Name, h.ShiftFrom, h.ShiftTo, h.Text, h.Points, createdBy).
		Suffix("RETURNING id, saved_at").
		ToSql()
	if err != nil {
		return Handover{}, err
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&h.ID, &h.SavedAt); err != nil {
		return Handover{}, fmt.Errorf("handover: create: %w", err)
	}
	return h, nil
}

// List returns up to limit handovers, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]Handover, error) {
	query, args, err := psql.Select(handoverColumns...).
		From("shift_handovers").
		OrderBy("saved_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("handover: list: %w", err)
	}
	defer rows.Close()
	out := make([]Handover, 0, limit)
	for rows.Next() {
		h, err := scanHandover(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Latest returns the most recently saved handover.
func (r *Repository) Latest(ctx context.Context) (Handover, error) {
	query, args, err := psql.Select(handoverColumns...).
		From("shift_handovers").
		OrderBy("saved_at DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return Handover{}, err
	}
	h, err := scanHandover(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Handover{}, ErrNotFound
		}
		return Handover{}, err
	}
	return h, nil
}

func scanHandover(row pgx.Row) (Handover, error) {
	var h Handover
	err := row.Scan(&h.ID, &h.Name, &h.ShiftFrom, &h.ShiftTo, &h.Text, &h.Points, &h.SavedAt, &h.CreatedBy)
	if h.Points == nil {
		h.Points = []string{}
	}
	return h, err
}
