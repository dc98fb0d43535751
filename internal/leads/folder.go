package leads

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/pipedesk/internal/crmerr"
	"github.com/zulandar/pipedesk/internal/models"
	"gorm.io/gorm"
)

// Filters holds optional owner filters for listing folders.
type Filters struct {
	UserID string
	TeamID string
}

// FolderOpts holds parameters for creating a folder.
type FolderOpts struct {
	Name     string
	ParentID string
	UserID   string
	TeamID   string
}

// FileSummary describes a file in a folder with its lead counts.
type FileSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Columns        []string  `json:"columns"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	TotalLeads     int64     `json:"totalLeads"`
	ContactedLeads int64     `json:"contactedLeads"`
}

// FolderSummary is a folder with its files and the sums of their counts.
// The counts are computed on every read and never stored.
type FolderSummary struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	ParentID       *string       `json:"parentId"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	Files          []FileSummary `json:"leadFiles"`
	TotalLeads     int64         `json:"totalLeads"`
	ContactedLeads int64         `json:"contactedLeads"`
}

// ListFolders returns active folders, newest first, with lead counts.
func ListFolders(db *gorm.DB, filters Filters) ([]FolderSummary, error) {
	q := withFiles(db).Where("active = ?", true)
	if filters.UserID != "" {
		q = q.Where("user_id = ?", filters.UserID)
	}
	if filters.TeamID != "" {
		q = q.Where("team_id = ?", filters.TeamID)
	}

	var folders []models.LeadFolder
	if err := q.Order("created_at DESC").Find(&folders).Error; err != nil {
		return nil, fmt.Errorf("leads: list folders: %w", err)
	}
	return summarize(db, folders)
}

// GetFolder returns an active folder with lead counts, or nil when missing.
func GetFolder(db *gorm.DB, id string) (*FolderSummary, error) {
	var folder models.LeadFolder
	if err := withFiles(db).Where("id = ? AND active = ?", id, true).First(&folder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("leads: get folder %s: %w", id, err)
	}
	summaries, err := summarize(db, []models.LeadFolder{folder})
	if err != nil {
		return nil, err
	}
	return &summaries[0], nil
}

// CreateFolder creates a folder, optionally nested under an active parent.
func CreateFolder(db *gorm.DB, opts FolderOpts) (*models.LeadFolder, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, crmerr.Validation("leads: folder name is required")
	}
	folder := models.LeadFolder{Name: name, Active: true}
	if opts.ParentID != "" {
		if _, err := activeFolder(db, opts.ParentID); err != nil {
			return nil, err
		}
		folder.ParentID = &opts.ParentID
	}
	if opts.UserID != "" {
		folder.UserID = &opts.UserID
	}
	if opts.TeamID != "" {
		folder.TeamID = &opts.TeamID
	}
	if err := db.Create(&folder).Error; err != nil {
		return nil, fmt.Errorf("leads: create folder: %w", err)
	}
	return &folder, nil
}

// UpdateFolder renames an active folder.
func UpdateFolder(db *gorm.DB, id, name string) (*models.LeadFolder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, crmerr.Validation("leads: folder name is required")
	}
	folder, err := activeFolder(db, id)
	if err != nil {
		return nil, err
	}
	if err := db.Model(folder).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("leads: rename folder %s: %w", id, err)
	}
	folder.Name = name
	return folder, nil
}

// DeleteFolder soft-deletes a folder. Deleting an inactive folder is a no-op.
func DeleteFolder(db *gorm.DB, id string) error {
	var n int64
	if err := db.Model(&models.LeadFolder{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("leads: check folder %s: %w", id, err)
	}
	if n == 0 {
		return crmerr.NotFound("folder", id)
	}
	if err := db.Model(&models.LeadFolder{}).Where("id = ? AND active = ?", id, true).Update("active", false).Error; err != nil {
		return fmt.Errorf("leads: delete folder %s: %w", id, err)
	}
	return nil
}

func activeFolder(db *gorm.DB, id string) (*models.LeadFolder, error) {
	var folder models.LeadFolder
	if err := db.Where("id = ? AND active = ?", id, true).First(&folder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, crmerr.NotFound("folder", id)
		}
		return nil, fmt.Errorf("leads: get folder %s: %w", id, err)
	}
	return &folder, nil
}

func withFiles(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Files", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC") }).
		Preload("Files.File")
}

type fileCount struct {
	FileID  string
	Total   int64
	Reached int64
}

// countRows returns total and reached row counts keyed by file id.
func countRows(db *gorm.DB, fileIDs []string) (map[string]fileCount, error) {
	counts := make(map[string]fileCount, len(fileIDs))
	if len(fileIDs) == 0 {
		return counts, nil
	}
	var rows []fileCount
	err := db.Model(&models.LeadRow{}).
		Select("file_id, COUNT(*) AS total, SUM(CASE WHEN reached THEN 1 ELSE 0 END) AS reached").
		Where("file_id IN ?", fileIDs).
		Group("file_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("leads: count rows: %w", err)
	}
	for _, r := range rows {
		counts[r.FileID] = r
	}
	return counts, nil
}

func summarize(db *gorm.DB, folders []models.LeadFolder) ([]FolderSummary, error) {
	var ids []string
	for _, f := range folders {
		for _, link := range f.Files {
			ids = append(ids, link.FileID)
		}
	}
	counts, err := countRows(db, ids)
	if err != nil {
		return nil, err
	}

	out := make([]FolderSummary, len(folders))
	for i, f := range folders {
		s := FolderSummary{
			ID:        f.ID,
			Name:      f.Name,
			ParentID:  f.ParentID,
			CreatedAt: f.CreatedAt,
			UpdatedAt: f.UpdatedAt,
			Files:     make([]FileSummary, 0, len(f.Files)),
		}
		for _, link := range f.Files {
			c := counts[link.FileID]
			s.Files = append(s.Files, FileSummary{
				ID:             link.File.ID,
				Name:           link.File.Name,
				Columns:        link.File.Columns,
				CreatedAt:      link.File.CreatedAt,
				UpdatedAt:      link.File.UpdatedAt,
				TotalLeads:     c.Total,
				ContactedLeads: c.Reached,
			})
			s.TotalLeads += c.Total
			s.ContactedLeads += c.Reached
		}
		out[i] = s
	}
	return out, nil
}
