// Package followup finds cards whose follow-up time is near and sends a
// reminder digest to chat and email.
package followup

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// DueCard is an active card with a follow-up before the digest horizon.
type DueCard struct {
	CardID         string
	PipelineID     string
	PipelineName   *string
	PipelineDate   time.Time
	StageName      string
	ContactName    string
	ContactSurname string
	Phone          string
	Email          string
	NextFollowUpAt time.Time
}

// Contact returns the contact's full name.
func (d DueCard) Contact() string {
	return strings.TrimSpace(d.ContactName + " " + d.ContactSurname)
}

// Pipeline returns the pipeline name, or its date when unnamed.
func (d DueCard) Pipeline() string {
	if d.PipelineName != nil && strings.TrimSpace(*d.PipelineName) != "" {
		return *d.PipelineName
	}
	return d.PipelineDate.Format("Monday 02/01")
}

// Due returns active cards in active stages and pipelines whose follow-up is
// at or before now+lookahead, earliest first. Overdue cards are included.
func Due(db *gorm.DB, now time.Time, lookahead time.Duration) ([]DueCard, error) {
	var due []DueCard
	err := db.Table("cards").
		Select("cards.id AS card_id, cards.pipeline_id, pipelines.name AS pipeline_name, " +
			"pipelines.date AS pipeline_date, stages.name AS stage_name, contacts.name AS contact_name, " +
			"contacts.surname AS contact_surname, contacts.phone, contacts.email, cards.next_follow_up_at").
		Joins("JOIN stages ON stages.id = cards.stage_id").
		Joins("JOIN pipelines ON pipelines.id = cards.pipeline_id").
		Joins("JOIN contacts ON contacts.id = cards.contact_id").
		Where("cards.active = ? AND stages.active = ? AND pipelines.active = ?", true, true, true).
		Where("cards.next_follow_up_at IS NOT NULL AND cards.next_follow_up_at <= ?", now.Add(lookahead)).
		Order("cards.next_follow_up_at ASC").
		Scan(&due).Error
	if err != nil {
		return nil, fmt.Errorf("followup: due cards: %w", err)
	}
	return due, nil
}

// Digest is a formatted reminder for a batch of due cards.
type Digest struct {
	Title       string
	Body        string
	Items       []DueCard
	GeneratedAt time.Time
	Overdue     int
}

// Colors used for the chat sidebar.
const (
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
)

// Color returns the sidebar color hint for the digest.
func (d *Digest) Color() string {
	if d.Overdue > 0 {
		return ColorWarning
	}
	return ColorInfo
}

// BuildDigest formats due cards into a digest. It returns nil when there is
// nothing to send.
func BuildDigest(items []DueCard, now time.Time) *Digest {
	if len(items) == 0 {
		return nil
	}
	d := &Digest{Items: items, GeneratedAt: now}

	var b strings.Builder
	for _, it := range items {
		when := it.NextFollowUpAt.Format("Mon 02/01 15:04")
		if it.NextFollowUpAt.Before(now) {
			d.Overdue++
			when += " (overdue)"
		}
		fmt.Fprintf(&b, "- %s", it.Contact())
		if it.Phone != "" {
			fmt.Fprintf(&b, " (%s)", it.Phone)
		}
		fmt.Fprintf(&b, ": %s / %s, %s\n", it.Pipeline(), it.StageName, when)
	}
	d.Body = strings.TrimRight(b.String(), "\n")

	noun := "follow-ups"
	if len(items) == 1 {
		noun = "follow-up"
	}
	d.Title = fmt.Sprintf("%d %s due", len(items), noun)
	if d.Overdue > 0 {
		d.Title += fmt.Sprintf(", %d overdue", d.Overdue)
	}
	return d
}
