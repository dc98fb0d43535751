package leads

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zulandar/pipedesk/internal/crmerr"
	"github.com/zulandar/pipedesk/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const rowBatchSize = 500

// UploadOpts holds a parsed file to store in a folder.
type UploadOpts struct {
	FolderID string
	FileName string
	Headers  []string
	Rows     []map[string]string
	ActorID  string
}

// Upload sanitises every string, then stores the file, its rows and the
// folder link in one transaction. Row data is restricted to the file's
// headers and always carries a reached cell.
func Upload(db *gorm.DB, opts UploadOpts) (*models.LeadFile, error) {
	if opts.ActorID == "" {
		return nil, crmerr.Unauthorized("leads: upload")
	}
	name := SanitizeField(opts.FileName)
	if name == "" {
		return nil, crmerr.Validation("leads: file name is required")
	}

	headers := make([]string, 0, len(opts.Headers)+1)
	for _, h := range opts.Headers {
		headers = append(headers, SanitizeField(h))
	}
	if !contains(headers, ReachedColumn) {
		headers = append(headers, ReachedColumn)
	}

	rows := make([]models.LeadRow, len(opts.Rows))
	for i, raw := range opts.Rows {
		clean := make(map[string]string, len(raw))
		for k, v := range raw {
			clean[SanitizeField(k)] = SanitizeField(v)
		}
		data := make(map[string]string, len(headers))
		for _, h := range headers {
			data[h] = clean[h]
		}
		if data[ReachedColumn] == "" {
			data[ReachedColumn] = "false"
		}
		rows[i] = models.LeadRow{
			Position: i,
			Data:     datatypes.NewJSONType(data),
			Reached:  strings.EqualFold(data[ReachedColumn], "true"),
		}
	}

	file := models.LeadFile{
		Name:        name,
		Columns:     datatypes.JSONSlice[string](headers),
		CreatedByID: opts.ActorID,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := activeFolder(tx, opts.FolderID); err != nil {
			return err
		}
		if err := tx.Omit("Rows").Create(&file).Error; err != nil {
			return fmt.Errorf("leads: create file: %w", err)
		}
		for i := range rows {
			rows[i].FileID = file.ID
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(&rows, rowBatchSize).Error; err != nil {
				return fmt.Errorf("leads: create rows: %w", err)
			}
		}
		link := models.LeadFileFolder{FolderID: opts.FolderID, FileID: file.ID}
		if err := tx.Omit("File").Create(&link).Error; err != nil {
			return fmt.Errorf("leads: link file to folder: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, crmerr.Integrity("leads: upload", err)
	}
	file.Rows = rows
	return &file, nil
}

// GetFile returns a file with its rows in upload order, or nil when missing.
func GetFile(db *gorm.DB, id string) (*models.LeadFile, error) {
	var file models.LeadFile
	err := db.Preload("Rows", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Where("id = ?", id).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("leads: get file %s: %w", id, err)
	}
	return &file, nil
}

// SetReached marks a row as reached or not, keeping the flag and the
// reached cell in step.
func SetReached(db *gorm.DB, rowID string, reached bool) (*models.LeadRow, error) {
	var row models.LeadRow
	if err := db.Where("id = ?", rowID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, crmerr.NotFound("lead row", rowID)
		}
		return nil, fmt.Errorf("leads: get row %s: %w", rowID, err)
	}

	data := make(map[string]string)
	for k, v := range row.Data.Data() {
		data[k] = v
	}
	data[ReachedColumn] = strconv.FormatBool(reached)
	row.Data = datatypes.NewJSONType(data)
	row.Reached = reached

	err := db.Model(&models.LeadRow{}).Where("id = ?", rowID).
		Updates(map[string]interface{}{"reached": reached, "data": row.Data}).Error
	if err != nil {
		return nil, fmt.Errorf("leads: update row %s: %w", rowID, err)
	}
	return &row, nil
}

// Export writes the file in the grammar ParseDelimitedText reads: the header
// line followed by each row's cells in header order, joined by commas with no
// quoting, so an export parses back to the stored rows.
func Export(w io.Writer, file *models.LeadFile) error {
	var b strings.Builder
	b.WriteString(strings.Join(file.Columns, ","))
	b.WriteByte('\n')
	record := make([]string, len(file.Columns))
	for _, row := range file.Rows {
		data := row.Data.Data()
		for i, h := range file.Columns {
			record[i] = data[h]
		}
		b.WriteString(strings.Join(record, ","))
		b.WriteByte('\n')
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("leads: export %s: %w", file.ID, err)
	}
	return nil
}
