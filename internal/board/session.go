package board

import (
	"context"
	"log"
	"sync"

	"github.com/zulandar/pipedesk/internal/crmerr"
	"github.com/zulandar/pipedesk/internal/models"
	"github.com/zulandar/pipedesk/internal/pipeline"
)

// Backend persists board mutations. *pipeline.Service implements it.
type Backend interface {
	Pipeline(ctx context.Context, id string) (*pipeline.Detail, error)
	CreateCard(ctx context.Context, opts pipeline.CardOpts) (*models.Card, error)
	MoveCard(ctx context.Context, cardID, toStageID string) error
	CreateStage(ctx context.Context, pipelineID, name string) (*models.Stage, error)
	RenameStage(ctx context.Context, id, name string) (*models.Stage, error)
	DeleteStage(ctx context.Context, id string) error
}

// Session holds the selected pipeline's board and applies confirmed
// mutations to it. Snapshot swaps are serialised; backend calls are not, so
// overlapping Select calls resolve in arrival order.
type Session struct {
	backend Backend

	mu       sync.Mutex
	current  *Board
	inflight int
}

// NewSession returns an empty session backed by b.
func NewSession(b Backend) *Session {
	return &Session{backend: b}
}

// Snapshot returns the current board, or nil before a pipeline is selected.
func (s *Session) Snapshot() *Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Loading reports whether a Select is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// Select fetches a pipeline and replaces the whole board with it. Whichever
// fetch finishes last wins.
func (s *Session) Select(ctx context.Context, pipelineID string) error {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()

	detail, err := s.backend.Pipeline(ctx, pipelineID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if err != nil {
		return err
	}
	if detail == nil {
		s.current = nil
		return crmerr.NotFound("pipeline", pipelineID)
	}
	s.current = FromDetail(detail)
	return nil
}

// CreateCard creates a card in a stage of the selected pipeline and appends
// it to that stage without refetching.
func (s *Session) CreateCard(ctx context.Context, opts pipeline.CardOpts) (*models.Card, error) {
	b := s.Snapshot()
	if b == nil {
		return nil, crmerr.Validation("board: no pipeline selected")
	}
	opts.PipelineID = b.PipelineID

	card, err := s.backend.CreateCard(ctx, opts)
	if err != nil {
		return nil, err
	}
	s.update(b.PipelineID, func(cur *Board) *Board {
		next, _ := cur.WithCard(card.StageID, *card)
		return next
	})
	return card, nil
}

// MoveCard relocates the card in the board, persists the move, and restores
// the card to its previous stage and position if the backend rejects it.
func (s *Session) MoveCard(ctx context.Context, cardID, toStageID string) error {
	s.mu.Lock()
	prev := s.current
	if prev == nil {
		s.mu.Unlock()
		return crmerr.Validation("board: no pipeline selected")
	}
	fromStageID, fromIndex, ok := prev.Locate(cardID)
	if !ok {
		s.mu.Unlock()
		return crmerr.NotFound("card", cardID)
	}
	next, ok := prev.WithCardMoved(cardID, toStageID)
	if !ok {
		s.mu.Unlock()
		return crmerr.NotFound("stage", toStageID)
	}
	s.current = next
	s.mu.Unlock()

	err := s.backend.MoveCard(ctx, cardID, toStageID)
	if err == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.current == next:
		s.current = prev
	case s.current != nil && s.current.PipelineID == prev.PipelineID:
		if restored, ok := s.current.WithCardMovedAt(cardID, fromStageID, fromIndex); ok {
			s.current = restored
		}
	}
	log.Printf("board: move %s to %s rolled back: %v", cardID, toStageID, err)
	return err
}

// CreateStage appends a stage to the selected pipeline.
func (s *Session) CreateStage(ctx context.Context, name string) (*models.Stage, error) {
	b := s.Snapshot()
	if b == nil {
		return nil, crmerr.Validation("board: no pipeline selected")
	}
	stage, err := s.backend.CreateStage(ctx, b.PipelineID, name)
	if err != nil {
		return nil, err
	}
	s.update(b.PipelineID, func(cur *Board) *Board { return cur.WithStage(*stage) })
	return stage, nil
}

// RenameStage renames a stage and replaces only that stage in the board.
func (s *Session) RenameStage(ctx context.Context, stageID, name string) (*models.Stage, error) {
	b := s.Snapshot()
	if b == nil {
		return nil, crmerr.Validation("board: no pipeline selected")
	}
	stage, err := s.backend.RenameStage(ctx, stageID, name)
	if err != nil {
		return nil, err
	}
	s.update(b.PipelineID, func(cur *Board) *Board {
		next, _ := cur.WithStageRenamed(stage.ID, stage.Name)
		return next
	})
	return stage, nil
}

// DeleteStage soft-deletes a stage and drops it from the board.
func (s *Session) DeleteStage(ctx context.Context, stageID string) error {
	b := s.Snapshot()
	if b == nil {
		return crmerr.Validation("board: no pipeline selected")
	}
	if err := s.backend.DeleteStage(ctx, stageID); err != nil {
		return err
	}
	s.update(b.PipelineID, func(cur *Board) *Board {
		next, _ := cur.WithoutStage(stageID)
		return next
	})
	return nil
}

// update applies fn to the current board if it still shows pipelineID.
func (s *Session) update(pipelineID string, fn func(*Board) *Board) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.PipelineID != pipelineID {
		return
	}
	s.current = fn(s.current)
}
