// Package pipeline provides pipeline, stage and card operations.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/pipedesk/internal/config"
	"github.com/zulandar/pipedesk/internal/crmerr"
	"github.com/zulandar/pipedesk/internal/models"
	"gorm.io/gorm"
)

// ListFilters holds optional owner filters for listing pipelines.
type ListFilters struct {
	UserID string
	TeamID string
}

// CreateOpts holds parameters for creating a new pipeline.
type CreateOpts struct {
	Name    string    // optional; DisplayName falls back to the date
	Date    time.Time // defaults to now
	UserID  string
	TeamID  string
	ActorID string
	Stages  []string // defaults to config.DefaultStages
}

// Detail is a pipeline with its active stages and their active cards loaded.
type Detail struct {
	models.Pipeline
	DisplayName string `json:"displayName"`
}

// DisplayName returns the pipeline name, or its date as "Monday 02/01" when
// the name is empty.
func DisplayName(p models.Pipeline) string {
	if p.Name != nil && strings.TrimSpace(*p.Name) != "" {
		return *p.Name
	}
	return p.Date.Format("Monday 02/01")
}

// List returns active pipelines matching the filters, newest date first.
func List(db *gorm.DB, filters ListFilters) ([]models.Pipeline, error) {
	q := db.Model(&models.Pipeline{}).Where("active = ?", true)
	if filters.UserID != "" {
		q = q.Where("user_id = ?", filters.UserID)
	}
	if filters.TeamID != "" {
		q = q.Where("team_id = ?", filters.TeamID)
	}

	var pipelines []models.Pipeline
	if err := q.Order("date DESC, created_at DESC").Find(&pipelines).Error; err != nil {
		return nil, fmt.Errorf("pipeline: list: %w", err)
	}
	return pipelines, nil
}

// Get returns the pipeline with active stages ascending by order, each with
// its active cards in creation order. Unknown or inactive ids yield nil, nil.
func Get(db *gorm.DB, id string) (*Detail, error) {
	var p models.Pipeline
	err := db.
		Preload("Stages", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("active = ?", true).Order("sort_order ASC, created_at ASC")
		}).
		Preload("Stages.Cards", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("active = ?", true).Order("created_at ASC")
		}).
		Preload("Stages.Cards.Contact").
		Where("id = ? AND active = ?", id, true).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("pipeline: get %s: %w", id, err)
	}
	for i := range p.Stages {
		if p.Stages[i].Cards == nil {
			p.Stages[i].Cards = []models.Card{}
		}
	}
	return &Detail{Pipeline: p, DisplayName: DisplayName(p)}, nil
}

// Create creates a pipeline and seeds its stages at orders 0..n-1 in one
// transaction.
func Create(db *gorm.DB, opts CreateOpts) (*models.Pipeline, error) {
	if opts.ActorID == "" {
		return nil, crmerr.Unauthorized("pipeline: create")
	}
	names := opts.Stages
	if len(names) == 0 {
		names = config.DefaultStages
	}
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, crmerr.Validation("pipeline: stage %d name is required", i)
		}
	}
	if opts.Date.IsZero() {
		opts.Date = time.Now()
	}

	p := models.Pipeline{
		Date:        opts.Date,
		CreatedByID: opts.ActorID,
		Active:      true,
	}
	if name := strings.TrimSpace(opts.Name); name != "" {
		p.Name = &name
	}
	if opts.UserID != "" {
		p.UserID = &opts.UserID
	}
	if opts.TeamID != "" {
		p.TeamID = &opts.TeamID
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return fmt.Errorf("pipeline: create: %w", err)
		}
		stages := make([]models.Stage, len(names))
		for i, name := range names {
			stages[i] = models.Stage{
				PipelineID: p.ID,
				Name:       strings.TrimSpace(name),
				Order:      i,
				Active:     true,
			}
		}
		if err := tx.Create(&stages).Error; err != nil {
			return fmt.Errorf("pipeline: seed stages: %w", err)
		}
		p.Stages = stages
		return nil
	})
	if err != nil {
		return nil, crmerr.Integrity("pipeline: create", err)
	}
	return &p, nil
}

// Rename sets a new name on an active pipeline.
func Rename(db *gorm.DB, id, name string) (*models.Pipeline, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, crmerr.Validation("pipeline: name is required")
	}
	var p models.Pipeline
	if err := db.Where("id = ? AND active = ?", id, true).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, crmerr.NotFound("pipeline", id)
		}
		return nil, fmt.Errorf("pipeline: get %s for rename: %w", id, err)
	}
	if err := db.Model(&p).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("pipeline: rename %s: %w", id, err)
	}
	p.Name = &name
	return &p, nil
}

// Delete soft-deletes a pipeline. Deleting an inactive pipeline is a no-op.
func Delete(db *gorm.DB, id string) error {
	return softDelete(db, &models.Pipeline{}, "pipeline", id)
}

// softDelete clears the active flag on the row with the given id. Unknown ids
// are NotFound; rows that are already inactive are left alone.
func softDelete(db *gorm.DB, model interface{}, kind, id string) error {
	var n int64
	if err := db.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("%s: check %s: %w", kind, id, err)
	}
	if n == 0 {
		return crmerr.NotFound(kind, id)
	}
	if err := db.Model(model).Where("id = ? AND active = ?", id, true).Update("active", false).Error; err != nil {
		return fmt.Errorf("%s: delete %s: %w", kind, id, err)
	}
	return nil
}
