package models

import (
	"time"

	"gorm.io/gorm"
)

// Pipeline is a named sales funnel grouping ordered stages.
type Pipeline struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        *string   `gorm:"size:128" json:"name"`
	Date        time.Time `gorm:"not null;index" json:"date"`
	UserID      *string   `gorm:"size:36;index" json:"userId,omitempty"`
	TeamID      *string   `gorm:"size:36;index" json:"teamId,omitempty"`
	CreatedByID string    `gorm:"size:36;not null" json:"createdById"`
	Active      bool      `gorm:"default:true;index" json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Stages []Stage `gorm:"foreignKey:PipelineID" json:"stages,omitempty"`
}

// Stage is an ordered column within a pipeline. Order only defines relative
// position; gaps are allowed.
type Stage struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	PipelineID string    `gorm:"size:36;not null;index" json:"pipelineId"`
	Name       string    `gorm:"size:128;not null" json:"name"`
	Order      int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	Active     bool      `gorm:"default:true;index" json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Cards []Card `gorm:"foreignKey:StageID" json:"cards"`
}

// Card places a contact within a stage. StageID is the only record of where
// the card currently sits.
type Card struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	PipelineID     string     `gorm:"size:36;not null;index" json:"pipelineId"`
	StageID        string     `gorm:"size:36;not null;index" json:"stageId"`
	ContactID      string     `gorm:"size:36;not null;index" json:"contactId"`
	Notes          string     `gorm:"type:text" json:"notes"`
	NextFollowUpAt *time.Time `gorm:"index" json:"nextFollowUpAt,omitempty"`
	Active         bool       `gorm:"default:true;index" json:"active"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	Contact Contact `gorm:"foreignKey:ContactID" json:"contact"`
}

// Contact is a person's profile. Contacts outlive the cards that reference them.
type Contact struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Name           string    `gorm:"size:128;not null" json:"name"`
	Surname        string    `gorm:"size:128" json:"surname"`
	Phone          string    `gorm:"size:64" json:"phone"`
	PhoneSecondary string    `gorm:"size:64" json:"phoneSecondary"`
	Email          string    `gorm:"size:255" json:"email"`
	EmailSecondary string    `gorm:"size:255" json:"emailSecondary"`
	Position       string    `gorm:"size:128" json:"position"`
	Address        string    `gorm:"size:255" json:"address"`
	City           string    `gorm:"size:128" json:"city"`
	Country        string    `gorm:"size:128" json:"country"`
	PostalCode     string    `gorm:"size:32" json:"postalCode"`
	Notes          string    `gorm:"type:text" json:"notes"`
	SourceOrigin   string    `gorm:"size:64" json:"sourceOrigin"`
	CreatedByID    string    `gorm:"size:36;index" json:"createdById"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CardMove is an append-only audit entry written with every stage change.
// Seq counts a card's moves from 1 and orders moves that share a timestamp.
type CardMove struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	CardID      string    `gorm:"size:36;not null;index;index:idx_card_moves_card_seq,priority:1" json:"cardId"`
	Seq         int64     `gorm:"not null;default:0;index:idx_card_moves_card_seq,priority:2" json:"seq"`
	FromStageID string    `gorm:"size:36;not null" json:"fromStageId"`
	ToStageID   string    `gorm:"size:36;not null" json:"toStageId"`
	ChangedByID string    `gorm:"size:36;not null" json:"changedById"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
}

func (p *Pipeline) BeforeCreate(tx *gorm.DB) error { return assignID(&p.ID) }
func (s *Stage) BeforeCreate(tx *gorm.DB) error    { return assignID(&s.ID) }
func (c *Card) BeforeCreate(tx *gorm.DB) error     { return assignID(&c.ID) }
func (c *Contact) BeforeCreate(tx *gorm.DB) error  { return assignID(&c.ID) }
func (m *CardMove) BeforeCreate(tx *gorm.DB) error { return assignID(&m.ID) }
