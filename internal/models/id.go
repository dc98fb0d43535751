// Package models holds the GORM entities persisted by Pipedesk.
package models

import "github.com/google/uuid"

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// assignID fills an empty primary key so callers may pre-set IDs when they
// need to reference a row before it is written.
func assignID(id *string) error {
	if *id == "" {
		*id = NewID()
	}
	return nil
}
