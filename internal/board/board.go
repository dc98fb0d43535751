// Package board holds an immutable, copy-on-write snapshot of one pipeline's
// stages and cards, and a Session that keeps it in step with the backend.
package board

import (
	"github.com/zulandar/pipedesk/internal/models"
	"github.com/zulandar/pipedesk/internal/pipeline"
)

// Stage is one column of a board. Stages are never modified after they are
// placed in a Board; operations build replacements instead.
type Stage struct {
	ID    string
	Name  string
	Order int
	Cards []models.Card
}

// Board is a snapshot of a pipeline. Every operation returns a new Board;
// stages it does not touch are shared with the receiver.
type Board struct {
	PipelineID  string
	DisplayName string
	Stages      []*Stage
}

// FromDetail builds a board from a fetched pipeline.
func FromDetail(d *pipeline.Detail) *Board {
	b := &Board{
		PipelineID:  d.ID,
		DisplayName: d.DisplayName,
		Stages:      make([]*Stage, len(d.Stages)),
	}
	for i, s := range d.Stages {
		b.Stages[i] = &Stage{
			ID:    s.ID,
			Name:  s.Name,
			Order: s.Order,
			Cards: append([]models.Card(nil), s.Cards...),
		}
	}
	return b
}

// Stage returns the stage with the given id, or nil.
func (b *Board) Stage(id string) *Stage {
	if i := b.stageIndex(id); i >= 0 {
		return b.Stages[i]
	}
	return nil
}

// Locate returns the stage holding the card and the card's position in it.
func (b *Board) Locate(cardID string) (stageID string, index int, ok bool) {
	for _, s := range b.Stages {
		for i, c := range s.Cards {
			if c.ID == cardID {
				return s.ID, i, true
			}
		}
	}
	return "", -1, false
}

// CardCount returns the number of cards across all stages.
func (b *Board) CardCount() int {
	n := 0
	for _, s := range b.Stages {
		n += len(s.Cards)
	}
	return n
}

// WithCard appends a card to a stage. Unknown stages leave the board as is.
func (b *Board) WithCard(stageID string, card models.Card) (*Board, bool) {
	i := b.stageIndex(stageID)
	if i < 0 {
		return b, false
	}
	card.StageID = stageID
	return b.replaceStages(map[int]*Stage{i: b.Stages[i].withCards(appendCard(b.Stages[i].Cards, card))}), true
}

// WithCardMoved removes the card from whichever stage holds it and appends it
// to the destination, both from this one snapshot. An unknown card or
// destination leaves the board as is.
func (b *Board) WithCardMoved(cardID, toStageID string) (*Board, bool) {
	return b.WithCardMovedAt(cardID, toStageID, -1)
}

// WithCardMovedAt is WithCardMoved with the card inserted at index in the
// destination. An index outside the destination's cards appends.
func (b *Board) WithCardMovedAt(cardID, toStageID string, index int) (*Board, bool) {
	to := b.stageIndex(toStageID)
	if to < 0 {
		return b, false
	}
	fromID, idx, ok := b.Locate(cardID)
	if !ok {
		return b, false
	}
	from := b.stageIndex(fromID)

	card := b.Stages[from].Cards[idx]
	card.StageID = toStageID
	remaining := make([]models.Card, 0, len(b.Stages[from].Cards)-1)
	remaining = append(remaining, b.Stages[from].Cards[:idx]...)
	remaining = append(remaining, b.Stages[from].Cards[idx+1:]...)

	if from == to {
		return b.replaceStages(map[int]*Stage{from: b.Stages[from].withCards(insertCard(remaining, card, index))}), true
	}
	return b.replaceStages(map[int]*Stage{
		from: b.Stages[from].withCards(remaining),
		to:   b.Stages[to].withCards(insertCard(b.Stages[to].Cards, card, index)),
	}), true
}

// WithStage inserts a stage at the position given by its order.
func (b *Board) WithStage(s models.Stage) *Board {
	stage := &Stage{ID: s.ID, Name: s.Name, Order: s.Order, Cards: append([]models.Card(nil), s.Cards...)}
	stages := make([]*Stage, 0, len(b.Stages)+1)
	placed := false
	for _, existing := range b.Stages {
		if !placed && stage.Order < existing.Order {
			stages = append(stages, stage)
			placed = true
		}
		stages = append(stages, existing)
	}
	if !placed {
		stages = append(stages, stage)
	}
	return &Board{PipelineID: b.PipelineID, DisplayName: b.DisplayName, Stages: stages}
}

// WithStageRenamed replaces the named stage with a renamed copy.
func (b *Board) WithStageRenamed(stageID, name string) (*Board, bool) {
	i := b.stageIndex(stageID)
	if i < 0 {
		return b, false
	}
	renamed := *b.Stages[i]
	renamed.Name = name
	return b.replaceStages(map[int]*Stage{i: &renamed}), true
}

// WithoutStage drops a stage and the cards shown in it.
func (b *Board) WithoutStage(stageID string) (*Board, bool) {
	i := b.stageIndex(stageID)
	if i < 0 {
		return b, false
	}
	stages := make([]*Stage, 0, len(b.Stages)-1)
	stages = append(stages, b.Stages[:i]...)
	stages = append(stages, b.Stages[i+1:]...)
	return &Board{PipelineID: b.PipelineID, DisplayName: b.DisplayName, Stages: stages}, true
}

func (b *Board) stageIndex(id string) int {
	for i, s := range b.Stages {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// replaceStages returns a board with a fresh stage slice where the given
// indexes are swapped for new stages and every other entry is shared.
func (b *Board) replaceStages(repl map[int]*Stage) *Board {
	stages := make([]*Stage, len(b.Stages))
	copy(stages, b.Stages)
	for i, s := range repl {
		stages[i] = s
	}
	return &Board{PipelineID: b.PipelineID, DisplayName: b.DisplayName, Stages: stages}
}

func (s *Stage) withCards(cards []models.Card) *Stage {
	return &Stage{ID: s.ID, Name: s.Name, Order: s.Order, Cards: cards}
}

// appendCard copies cards into a new slice so the original backing array is
// never written.
func appendCard(cards []models.Card, card models.Card) []models.Card {
	out := make([]models.Card, 0, len(cards)+1)
	out = append(out, cards...)
	return append(out, card)
}

// insertCard copies cards into a new slice with card placed at index.
func insertCard(cards []models.Card, card models.Card, index int) []models.Card {
	if index < 0 || index > len(cards) {
		return appendCard(cards, card)
	}
	out := make([]models.Card, 0, len(cards)+1)
	out = append(out, cards[:index]...)
	out = append(out, card)
	return append(out, cards[index:]...)
}
