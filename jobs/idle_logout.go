package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/chandumcs/opstracker/internal/jobs"
)

// IdleMarker flips idle users Offline and reports how many changed.
type IdleMarker interface {
	MarkIdleOffline(ctx context.Context, idleFor time.Duration) (int64, error)
}

// IdleLogoutJob marks users Offline when their last login is older than IdleFor.
type IdleLogoutJob struct {
	Users   IdleMarker
	IdleFor time.Duration
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIdleLogoutJob initialises the idle logout handler.
func NewIdleLogoutJob(users IdleMarker, idleFor time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdleLogoutJob {
	return &IdleLogoutJob{Users: users, IdleFor: idleFor, Logger: logger, Metrics: metrics}
}

// Handle processes TaskUsersIdleLogout tasks.
func (j *IdleLogoutJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Users == nil {
		return errors.New("idle logout: handler not configured")
	}
	idleFor := j.IdleFor
	if len(t.Payload()) > 0 {
		var payload IdleLogoutPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.IdleForSeconds > int64(MaxIdleWindow/time.Second) {
			j.logger().Warn("idle logout window out of range", slog.Int64("idle_for_seconds", payload.IdleForSeconds))
			return asynq.SkipRetry
		}
		if payload.IdleForSeconds > 0 {
			idleFor = time.Duration(payload.IdleForSeconds) * time.Second
		}
	}
	if idleFor <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskUsersIdleLogout)
	defer func() { err = tracker.End(err) }()

	n, err := j.Users.MarkIdleOffline(ctx, idleFor)
	if err != nil {
		j.logger().Error("idle logout failed", slog.Any("error", err))
		return err
	}
	j.Metrics.AddIdleLogouts(n)
	if n > 0 {
		j.logger().Info("idle users logged out", slog.Int64("count", n), slog.Duration("idle_for", idleFor))
	}
	return nil
}

func (j *IdleLogoutJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
