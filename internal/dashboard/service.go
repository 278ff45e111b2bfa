// Package dashboard aggregates the landing page summary.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chandumcs/opstracker/internal/handover"
	"github.com/chandumcs/opstracker/internal/platform/cache"
	"github.com/chandumcs/opstracker/internal/tasks"
)

const summaryCacheKey = "dashboard:summary"

// TaskCounter reports task counts by status.
type TaskCounter interface {
	CountByStatus(ctx context.Context) ([]tasks.StatusCount, error)
}

// OnlineCounter reports how many users are Online.
type OnlineCounter interface {
	CountOnline(ctx context.Context) (int, error)
}

// LatestHandover returns the newest shift handover.
type LatestHandover interface {
	Latest(ctx context.Context) (handover.Handover, error)
}

// Summary is the payload of GET /api/dashboard.
type Summary struct {
	TaskCounts     []tasks.StatusCount `json:"taskCounts"`
	TotalTasks     int                 `json:"totalTasks"`
	OnlineUsers    int                 `json:"onlineUsers"`
	LatestHandover *handover.Handover  `json:"latestHandover"`
	GeneratedAt    time.Time           `json:"generatedAt"`
}

// Service fans out to the task, user and handover stores.
type Service struct {
	tasks     TaskCounter
	users     OnlineCounter
	handovers LatestHandover
	cache     cache.Store
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds a Service. store may be nil to disable caching.
func NewService(t TaskCounter, u OnlineCounter, h LatestHandover, store cache.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{tasks: t, users: u, handovers: h, cache: store, logger: logger, now: time.Now}
}

// Summary returns the cached summary or loads a fresh one.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	if cached, ok := s.cached(ctx); ok {
		return cached, nil
	}
	summary, err := s.load(ctx)
	if err != nil {
		return Summary{}, err
	}
	s.store(ctx, summary)
	return summary, nil
}

func (s *Service) load(ctx context.Context) (Summary, error) {
	summary := Summary{GeneratedAt: s.now().UTC()}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := s.tasks.CountByStatus(ctx)
		if err != nil {
			return err
		}
		summary.TaskCounts = counts
		for _, c := range counts {
			summary.TotalTasks += c.Count
		}
		return nil
	})

	g.Go(func() error {
		n, err := s.users.CountOnline(ctx)
		if err != nil {
			return err
		}
		summary.OnlineUsers = n
		return nil
	})

	g.Go(func() error {
		latest, err := s.handovers.Latest(ctx)
		if errors.Is(err, handover.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		summary.LatestHandover = &latest
		return nil
	})

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	if summary.TaskCounts == nil {
		summary.TaskCounts = []tasks.StatusCount{}
	}
	return summary, nil
}

func (s *Service) cached(ctx context.Context) (Summary, bool) {
	if s.cache == nil {
		return Summary{}, false
	}
	raw, ok, err := s.cache.Load(ctx, summaryCacheKey)
	if err != nil || !ok {
		return Summary{}, false
	}
	var summary Summary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return Summary{}, false
	}
	return summary, true
}

func (s *Service) store(ctx context.Context, summary Summary) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Save(ctx, summaryCacheKey, string(data)); err != nil {
		s.logger.Warn("cache dashboard summary", slog.Any("error", err))
	}
}

// Invalidate drops the cached summary.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, summaryCacheKey)
}
