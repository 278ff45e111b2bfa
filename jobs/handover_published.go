package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/chandumcs/opstracker/internal/jobs"
	"github.com/chandumcs/opstracker/internal/shared"
)

// HandoverPublishedJob writes an audit entry for each saved handover.
type HandoverPublishedJob struct {
	Audit   shared.AuditRecorder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewHandoverPublishedJob initialises the handler.
func NewHandoverPublishedJob(audit shared.AuditRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *HandoverPublishedJob {
	return &HandoverPublishedJob{Audit: audit, Logger: logger, Metrics: metrics}
}

// Handle processes TaskHandoverPublished tasks.
func (j *HandoverPublishedJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Audit == nil {
		return errors.New("handover published: handler not configured")
	}
	var payload HandoverPublishedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.HandoverID <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskHandoverPublished)
	defer func() { err = tracker.End(err) }()

	err = j.Audit.Record(ctx, shared.AuditLog{
		ActorID:  payload.CreatedBy,
		Action:   "handover.published",
		Entity:   "shift_handover",
		EntityID: strconv.FormatInt(payload.HandoverID, 10),
		Meta: map[string]any{
			"name":       payload.Name,
			"shift_from": payload.ShiftFrom,
			"shift_to":   payload.ShiftTo,
			"points":     payload.Points,
		},
		At: payload.SavedAt,
	})
	if err != nil {
		j.logger().Error("audit handover", slog.Int64("handover_id", payload.HandoverID), slog.Any("error", err))
		return err
	}
	j.logger().Info("handover published", slog.Int64("handover_id", payload.HandoverID), slog.String("shift", payload.ShiftFrom+"-"+payload.ShiftTo))
	return nil
}

func (j *HandoverPublishedJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
