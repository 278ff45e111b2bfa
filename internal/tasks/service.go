package tasks

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chandumcs/opstracker/internal/shared"
)

// RepositoryPort defines data access methods for tasks.
type RepositoryPort interface {
	Create(ctx context.Context, t Task) (Task, error)
	List(ctx context.Context, f ListFilters) ([]Task, error)
	Get(ctx context.Context, id int64) (Task, error)
	Update(ctx context.Context, id int64, fields map[string]any) (Task, error)
	Delete(ctx context.Context, id int64) error
	CountByStatus(ctx context.Context) ([]StatusCount, error)
}

// Service implements daily tracker use cases.
type Service struct {
	repo   RepositoryPort
	audit  shared.AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a Service. audit may be nil.
func NewService(repo RepositoryPort, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// Create stores a new pending task dated today.
func (s *Service) Create(ctx context.Context, actorID int64, req CreateTaskRequest) (Task, error) {
	now := s.now()
	task := Task{
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		Product:          strings.TrimSpace(req.Product),
		IssueType:        strings.TrimSpace(req.IssueType),
		Status:           StatusPending,
		Priority:         req.Priority,
		Developer:        req.Developer,
		UATPerson:        req.UATPerson,
		ProductionPerson: req.ProductionPerson,
		ReportedDate:     req.ReportedDate,
		FixedDate:        req.FixedDate,
		ClosedDate:       req.ClosedDate,
		TaskDate:         now.Format(DateLayout),
		TimeInfo:         "Added at " + now.Format("15:04:05"),
		CreatedBy:        actorID,
	}
	created, err := s.repo.Create(ctx, task)
	if err != nil {
		return Task{}, err
	}
	s.record(ctx, actorID, "tasks.created", created.ID, map[string]any{
		"title":   created.Title,
		"product": created.Product,
	})
	return created, nil
}

// List returns tasks matching filters.
func (s *Service) List(ctx context.Context, f ListFilters) ([]Task, error) {
	return s.repo.List(ctx, f)
}

// Get returns one task.
func (s *Service) Get(ctx context.Context, id int64) (Task, error) {
	return s.repo.Get(ctx, id)
}

// Update applies a partial update and stamps the time info.
func (s *Service) Update(ctx context.Context, actorID, id int64, req UpdateTaskRequest) (Task, error) {
	fields := req.Fields()
	if len(fields) == 0 {
		return Task{}, ErrNothingToUpdate
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Task{}, err
	}
	changed := make([]string, 0, len(fields))
	for col := range fields {
		changed = append(changed, col)
	}
	sort.Strings(changed)
	fields["time_info"] = "Updated at " + s.now().Format("15:04:05")
	updated, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		return Task{}, err
	}
	s.record(ctx, actorID, "tasks.updated", id, map[string]any{"fields": changed})
	return updated, nil
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "tasks.deleted", id, nil)
	return nil
}

// CountByStatus returns the dashboard breakdown.
func (s *Service) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	return s.repo.CountByStatus(ctx)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "daily_task",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		// The mutation already committed; a lost audit row is logged, not surfaced.
		s.logger.Warn("audit task mutation", slog.String("action", action), slog.Any("error", err))
	}
}
