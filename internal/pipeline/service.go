package pipeline

import (
	"context"

	"github.com/zulandar/pipedesk/internal/auth"
	"github.com/zulandar/pipedesk/internal/crmerr"
	"github.com/zulandar/pipedesk/internal/models"
	"gorm.io/gorm"
)

// Service binds the package functions to a database and an identity
// provider so callers can work with a context instead of explicit actor ids.
type Service struct {
	DB       *gorm.DB
	Identity auth.Provider
	Stages   []string // default stages for new pipelines
}

// NewService returns a Service resolving actors from the request context.
func NewService(db *gorm.DB, stages []string) *Service {
	return &Service{DB: db, Identity: auth.ContextProvider{}, Stages: stages}
}

func (s *Service) db(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx)
}

func (s *Service) actor(ctx context.Context, op string) (string, error) {
	identity := s.Identity
	if identity == nil {
		identity = auth.ContextProvider{}
	}
	id, ok := identity.CurrentActor(ctx)
	if !ok {
		return "", crmerr.Unauthorized(op)
	}
	return id, nil
}

// List returns the active pipelines matching filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]models.Pipeline, error) {
	return List(s.db(ctx), filters)
}

// Pipeline returns the pipeline detail, or nil when missing.
func (s *Service) Pipeline(ctx context.Context, id string) (*Detail, error) {
	return Get(s.db(ctx), id)
}

// Create creates a pipeline owned by the current actor unless opts names an
// owner.
func (s *Service) Create(ctx context.Context, opts CreateOpts) (*models.Pipeline, error) {
	actor, err := s.actor(ctx, "pipeline: create")
	if err != nil {
		return nil, err
	}
	opts.ActorID = actor
	if opts.UserID == "" && opts.TeamID == "" {
		opts.UserID = actor
	}
	if len(opts.Stages) == 0 {
		opts.Stages = s.Stages
	}
	return Create(s.db(ctx), opts)
}

// Rename renames a pipeline.
func (s *Service) Rename(ctx context.Context, id, name string) (*models.Pipeline, error) {
	if _, err := s.actor(ctx, "pipeline: rename"); err != nil {
		return nil, err
	}
	return Rename(s.db(ctx), id, name)
}

// Delete soft-deletes a pipeline.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.actor(ctx, "pipeline: delete"); err != nil {
		return err
	}
	return Delete(s.db(ctx), id)
}

// CreateCard creates a card on behalf of the current actor.
func (s *Service) CreateCard(ctx context.Context, opts CardOpts) (*models.Card, error) {
	actor, err := s.actor(ctx, "card: create")
	if err != nil {
		return nil, err
	}
	opts.ActorID = actor
	return CreateCard(s.db(ctx), opts)
}

// MoveCard moves a card on behalf of the current actor.
func (s *Service) MoveCard(ctx context.Context, cardID, toStageID string) error {
	actor, err := s.actor(ctx, "card: move")
	if err != nil {
		return err
	}
	return MoveCard(s.db(ctx), cardID, toStageID, actor)
}

// CreateStage appends a stage to a pipeline.
func (s *Service) CreateStage(ctx context.Context, pipelineID, name string) (*models.Stage, error) {
	if _, err := s.actor(ctx, "stage: create"); err != nil {
		return nil, err
	}
	return CreateStage(s.db(ctx), pipelineID, name)
}

// RenameStage renames a stage.
func (s *Service) RenameStage(ctx context.Context, id, name string) (*models.Stage, error) {
	if _, err := s.actor(ctx, "stage: rename"); err != nil {
		return nil, err
	}
	return RenameStage(s.db(ctx), id, name)
}

// DeleteStage soft-deletes a stage.
func (s *Service) DeleteStage(ctx context.Context, id string) error {
	if _, err := s.actor(ctx, "stage: delete"); err != nil {
		return err
	}
	return DeleteStage(s.db(ctx), id)
}
