package pipeline

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/pipedesk/internal/crmerr"
	"github.com/zulandar/pipedesk/internal/models"
	"gorm.io/gorm"
)

// CreateStage appends a stage to an active pipeline with an order one past
// the highest active stage, or 0 when the pipeline has none.
func CreateStage(db *gorm.DB, pipelineID, name string) (*models.Stage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, crmerr.Validation("stage: name is required")
	}

	stage := models.Stage{PipelineID: pipelineID, Name: name, Active: true}
	err := db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Pipeline{}).Where("id = ? AND active = ?", pipelineID, true).Count(&n).Error; err != nil {
			return fmt.Errorf("stage: check pipeline %s: %w", pipelineID, err)
		}
		if n == 0 {
			return crmerr.NotFound("pipeline", pipelineID)
		}

		var maxOrder sql.NullInt64
		row := tx.Model(&models.Stage{}).
			Where("pipeline_id = ? AND active = ?", pipelineID, true).
			Select("MAX(sort_order)").Row()
		if err := row.Scan(&maxOrder); err != nil {
			return fmt.Errorf("stage: max order for %s: %w", pipelineID, err)
		}
		if maxOrder.Valid {
			stage.Order = int(maxOrder.Int64) + 1
		}

		if err := tx.Create(&stage).Error; err != nil {
			return fmt.Errorf("stage: create: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, crmerr.Integrity("stage: create", err)
	}
	stage.Cards = []models.Card{}
	return &stage, nil
}

// RenameStage sets a new name on an active stage.
func RenameStage(db *gorm.DB, id, name string) (*models.Stage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, crmerr.Validation("stage: name is required")
	}
	var stage models.Stage
	if err := db.Where("id = ? AND active = ?", id, true).First(&stage).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, crmerr.NotFound("stage", id)
		}
		return nil, fmt.Errorf("stage: get %s for rename: %w", id, err)
	}
	if err := db.Model(&stage).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("stage: rename %s: %w", id, err)
	}
	stage.Name = name
	return &stage, nil
}

// DeleteStage soft-deletes a stage. Its cards stay attached and become
// invisible with it.
func DeleteStage(db *gorm.DB, id string) error {
	return softDelete(db, &models.Stage{}, "stage", id)
}
