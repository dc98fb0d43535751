package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/pipedesk/internal/crmerr"
	"github.com/zulandar/pipedesk/internal/models"
	"gorm.io/gorm"
)

// CardOpts holds parameters for creating a card and its contact.
type CardOpts struct {
	PipelineID     string // optional; defaults to the stage's pipeline
	StageID        string
	ActorID        string
	Notes          string
	NextFollowUpAt *time.Time
	Contact        models.Contact
}

// CardUpdate holds editable card fields. Nil fields are left unchanged.
type CardUpdate struct {
	Notes          *string
	NextFollowUpAt *time.Time
	ClearFollowUp  bool
}

// CreateCard creates the contact and then the card placing it in the stage,
// in one transaction. The returned card has its contact loaded.
func CreateCard(db *gorm.DB, opts CardOpts) (*models.Card, error) {
	if opts.ActorID == "" {
		return nil, crmerr.Unauthorized("card: create")
	}
	contact := opts.Contact
	contact.ID = ""
	contact.Name = strings.TrimSpace(contact.Name)
	if contact.Name == "" {
		return nil, crmerr.Validation("card: contact name is required")
	}
	if contact.CreatedByID == "" {
		contact.CreatedByID = opts.ActorID
	}

	var card models.Card
	err := db.Transaction(func(tx *gorm.DB) error {
		stage, err := activeStage(tx, opts.StageID)
		if err != nil {
			return err
		}
		if opts.PipelineID == "" {
			opts.PipelineID = stage.PipelineID
		}
		if stage.PipelineID != opts.PipelineID {
			return crmerr.NotFound("stage", fmt.Sprintf("%s in pipeline %s", opts.StageID, opts.PipelineID))
		}

		if err := tx.Create(&contact).Error; err != nil {
			return fmt.Errorf("card: create contact: %w", err)
		}
		card = models.Card{
			PipelineID:     stage.PipelineID,
			StageID:        stage.ID,
			ContactID:      contact.ID,
			Notes:          opts.Notes,
			NextFollowUpAt: opts.NextFollowUpAt,
			Active:         true,
		}
		if err := tx.Omit("Contact").Create(&card).Error; err != nil {
			return fmt.Errorf("card: create: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, crmerr.Integrity("card: create", err)
	}
	card.Contact = contact
	return &card, nil
}

// GetCard returns an active card with its contact, or nil when missing.
func GetCard(db *gorm.DB, id string) (*models.Card, error) {
	var card models.Card
	if err := db.Preload("Contact").Where("id = ? AND active = ?", id, true).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("card: get %s: %w", id, err)
	}
	return &card, nil
}

// MoveCard moves a card to another active stage of its pipeline and appends
// the move to its history. Both writes commit together or not at all.
// Moving a card to the stage it already occupies is recorded like any move.
// Concurrent moves of the same card are last-write-wins.
func MoveCard(db *gorm.DB, cardID, toStageID, actorID string) error {
	if actorID == "" {
		return crmerr.Unauthorized("card: move")
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		var card models.Card
		if err := tx.Where("id = ? AND active = ?", cardID, true).First(&card).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return crmerr.NotFound("card", cardID)
			}
			return fmt.Errorf("card: get %s: %w", cardID, err)
		}
		to, err := activeStage(tx, toStageID)
		if err != nil {
			return err
		}
		if to.PipelineID != card.PipelineID {
			return crmerr.Validation("card: stage %s belongs to another pipeline", toStageID)
		}

		if err := tx.Model(&models.Card{}).Where("id = ?", card.ID).Update("stage_id", to.ID).Error; err != nil {
			return fmt.Errorf("card: update stage of %s: %w", cardID, err)
		}
		var seq int64
		if err := tx.Model(&models.CardMove{}).Where("card_id = ?", card.ID).
			Select("COALESCE(MAX(seq), 0)").Scan(&seq).Error; err != nil {
			return fmt.Errorf("card: history sequence of %s: %w", cardID, err)
		}
		move := models.CardMove{
			CardID:      card.ID,
			Seq:         seq + 1,
			FromStageID: card.StageID,
			ToStageID:   to.ID,
			ChangedByID: actorID,
		}
		if err := tx.Create(&move).Error; err != nil {
			return fmt.Errorf("card: record move of %s: %w", cardID, err)
		}
		return nil
	})
	return crmerr.Integrity("card: move", err)
}

// History returns a card's moves, oldest first. Moves are ordered by their
// per-card sequence, so timestamps truncated by the store cannot reorder them.
func History(db *gorm.DB, cardID string) ([]models.CardMove, error) {
	var moves []models.CardMove
	if err := db.Where("card_id = ?", cardID).Order("seq ASC").Order("created_at ASC").Find(&moves).Error; err != nil {
		return nil, fmt.Errorf("card: history %s: %w", cardID, err)
	}
	return moves, nil
}

// UpdateCard edits the note and follow-up time of an active card.
func UpdateCard(db *gorm.DB, id string, upd CardUpdate) (*models.Card, error) {
	updates := map[string]interface{}{}
	if upd.Notes != nil {
		updates["notes"] = *upd.Notes
	}
	if upd.ClearFollowUp {
		updates["next_follow_up_at"] = nil
	} else if upd.NextFollowUpAt != nil {
		updates["next_follow_up_at"] = *upd.NextFollowUpAt
	}

	card, err := GetCard(db, id)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, crmerr.NotFound("card", id)
	}
	if len(updates) == 0 {
		return card, nil
	}
	if err := db.Model(&models.Card{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("card: update %s: %w", id, err)
	}
	return GetCard(db, id)
}

// DeleteCard soft-deletes a card. Its contact is kept.
func DeleteCard(db *gorm.DB, id string) error {
	return softDelete(db, &models.Card{}, "card", id)
}

func activeStage(db *gorm.DB, id string) (*models.Stage, error) {
	var stage models.Stage
	if err := db.Where("id = ? AND active = ?", id, true).First(&stage).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, crmerr.NotFound("stage", id)
		}
		return nil, fmt.Errorf("stage: get %s: %w", id, err)
	}
	return &stage, nil
}
