package handover

import (
	"context"
	"log/slog"
	"strings"
)

// RepositoryPort defines data access for handovers.
type RepositoryPort interface {
	Create(ctx context.Context, h Handover) (Handover, error)
	List(ctx context.Context, limit int) ([]Handover, error)
	Latest(ctx context.Context) (Handover, error)
}

// Publisher announces a saved handover to background workers.
type Publisher interface {
	PublishHandover(ctx context.Context, h Handover) error
}

// Service implements shift handover use cases.
type Service struct {
	repo      RepositoryPort
	publisher Publisher
	logger    *slog.Logger
}

// NewService builds a Service. publisher may be nil.
func NewService(repo RepositoryPort, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, publisher: publisher, logger: logger}
}

// Create saves a handover and enqueues its publication.
func (s *Service) Create(ctx context.Context, actorID int64, req CreateRequest) (Handover, error) {
	saved, err := s.repo.Create(ctx, Handover{
		Name:      strings.TrimSpace(req.Name),
		ShiftFrom: strings.TrimSpace(req.ShiftFrom),
		ShiftTo:   strings.TrimSpace(req.ShiftTo),
		Text:      req.Text,
		Points:    CleanPoints(req.Points),
		CreatedBy: actorID,
	})
	if err != nil {
		return Handover{}, err
	}
	if s.publisher != nil {
		if err := s.publisher.PublishHandover(ctx, saved); err != nil {
			s.logger.Warn("publish handover", slog.Int64("handover_id", saved.ID), slog.Any("error", err))
		}
	}
	return saved, nil
}

// List returns recent handovers.
func (s *Service) List(ctx context.Context, limit int) ([]Handover, error) {
	return s.repo.List(ctx, ClampLimit(limit))
}

// Latest returns the newest handover.
func (s *Service) Latest(ctx context.Context) (Handover, error) {
	return s.repo.Latest(ctx)
}
