package audit

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	rows   []TimelineRow
	err    error
	limit  int
	offset int
}

func (s *stubRepo) List(ctx context.Context, f TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	s.limit, s.offset = limit, offset
	if s.err != nil {
		return nil, s.err
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	if offset >= len(s.rows) {
		return nil, nil
	}
	return s.rows[offset:end], nil
}

func makeRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	for i := range rows {
		rows[i] = TimelineRow{ID: int64(i + 1), Action: "task.create", Entity: "task"}
	}
	return rows
}

func TestTimelineDefaultsAndHasNext(t *testing.T) {
	repo := &stubRepo{rows: makeRows(25)}
	svc := NewService(repo)

	res, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 20)
	assert.Equal(t, 21, repo.limit)
	assert.Equal(t, 0, repo.offset)
	assert.Equal(t, PagingInfo{Page: 1, PageSize: 20, HasNext: true, NextPage: 2}, res.Paging)

	res, err = svc.Timeline(context.Background(), TimelineFilters{Page: 2})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 5)
	assert.Equal(t, 20, repo.offset)
	assert.Equal(t, PagingInfo{Page: 2, PageSize: 20, PrevPage: 1}, res.Paging)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{rows: makeRows(3)}
	res, err := NewService(repo).Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize+1, repo.limit)
	assert.Equal(t, maxPageSize, res.Paging.PageSize)
	assert.False(t, res.Paging.HasNext)
}

func TestTimelineClampsDeepPages(t *testing.T) {
	repo := &stubRepo{rows: makeRows(3)}
	res, err := NewService(repo).Timeline(context.Background(), TimelineFilters{Page: math.MaxInt})
	require.NoError(t, err)
	assert.Equal(t, (MaxPage-1)*defaultPageSize, repo.offset)
	assert.Equal(t, MaxPage, res.Paging.Page)
	assert.Empty(t, res.Rows)
}

func TestTimelineErrors(t *testing.T) {
	_, err := NewService(&stubRepo{err: errors.New("db down")}).Timeline(context.Background(), TimelineFilters{})
	assert.EqualError(t, err, "db down")

	_, err = NewService(nil).Timeline(context.Background(), TimelineFilters{})
	assert.Error(t, err)
}

func TestTimelinePredicate(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	sql, args, err := timelinePredicate(TimelineFilters{From: from, To: to, Actor: " ada ", Entity: "task"}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "a.occurred_at >= ?")
	assert.Contains(t, sql, "a.occurred_at < ?")
	assert.Contains(t, sql, "u.name ILIKE ?")
	assert.Contains(t, sql, "a.entity = ?")
	assert.NotContains(t, sql, "a.action")
	assert.Equal(t, []any{from, to.AddDate(0, 0, 1), "%ada%", "%ada%", "task"}, args)
}
