package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LeadFolder groups uploaded lead files. ParentID models nesting, but listings
// only ever look at a folder's own files.
type LeadFolder struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	ParentID  *string   `gorm:"size:36;index" json:"parentId"`
	UserID    *string   `gorm:"size:36;index" json:"userId,omitempty"`
	TeamID    *string   `gorm:"size:36;index" json:"teamId,omitempty"`
	Active    bool      `gorm:"default:true;index" json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Files []LeadFileFolder `gorm:"foreignKey:FolderID" json:"-"`
}

// LeadFile is one uploaded delimited-text file. Columns keeps the header order.
type LeadFile struct {
	ID          string                      `gorm:"primaryKey;size:36" json:"id"`
	Name        string                      `gorm:"size:255;not null" json:"name"`
	Columns     datatypes.JSONSlice[string] `gorm:"column:headers" json:"columns"`
	CreatedByID string                      `gorm:"size:36" json:"createdById"`
	CreatedAt   time.Time                   `json:"createdAt"`
	UpdatedAt   time.Time                   `json:"updatedAt"`

	Rows []LeadRow `gorm:"foreignKey:FileID" json:"rows,omitempty"`
}

// LeadFileFolder links a file into a folder.
type LeadFileFolder struct {
	FolderID  string    `gorm:"primaryKey;size:36" json:"folderId"`
	FileID    string    `gorm:"primaryKey;size:36" json:"fileId"`
	CreatedAt time.Time `json:"createdAt"`

	File LeadFile `gorm:"foreignKey:FileID" json:"-"`
}

// LeadRow is one imported record. Data is keyed by the owning file's columns
// and Position keeps the upload's line order.
type LeadRow struct {
	ID        string                                `gorm:"primaryKey;size:36" json:"id"`
	FileID    string                                `gorm:"size:36;not null;index" json:"fileId"`
	Position  int                                   `gorm:"not null;default:0" json:"position"`
	Data      datatypes.JSONType[map[string]string] `json:"data"`
	Reached   bool                                  `gorm:"default:false;index" json:"reached"`
	CreatedAt time.Time                             `json:"createdAt"`
	UpdatedAt time.Time                             `json:"updatedAt"`
}

func (f *LeadFolder) BeforeCreate(tx *gorm.DB) error { return assignID(&f.ID) }
func (f *LeadFile) BeforeCreate(tx *gorm.DB) error   { return assignID(&f.ID) }
func (r *LeadRow) BeforeCreate(tx *gorm.DB) error    { return assignID(&r.ID) }
