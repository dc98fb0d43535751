package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/pipedesk/internal/auth"
	"github.com/zulandar/pipedesk/internal/crmerr"
	"github.com/zulandar/pipedesk/internal/db"
	"github.com/zulandar/pipedesk/internal/models"
	"github.com/zulandar/pipedesk/internal/pipeline"
)

// flakyBackend is a real service whose MoveCard can be forced to fail.
type flakyBackend struct {
	*pipeline.Service
	failMoves error
	// duringMove runs while a move is in flight, before the outcome.
	duringMove func()
}

func (f *flakyBackend) MoveCard(ctx context.Context, cardID, toStageID string) error {
	if f.duringMove != nil {
		f.duringMove()
	}
	if f.failMoves != nil {
		return f.failMoves
	}
	return f.Service.MoveCard(ctx, cardID, toStageID)
}

func setup(t *testing.T) (context.Context, *flakyBackend, *models.Pipeline) {
	t.Helper()
	gormDB, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	ctx := auth.WithActor(context.Background(), "user-1")
	svc := pipeline.NewService(gormDB, nil)
	p, err := svc.Create(ctx, pipeline.CreateOpts{Name: "Board"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return ctx, &flakyBackend{Service: svc}, p
}

func TestSession_SelectAndCreateCard(t *testing.T) {
	ctx, backend, p := setup(t)
	s := NewSession(backend)

	if _, err := s.CreateCard(ctx, pipeline.CardOpts{StageID: p.Stages[0].ID}); !errors.Is(err, crmerr.ErrValidation) {
		t.Errorf("CreateCard before Select err = %v", err)
	}

	if err := s.Select(ctx, p.ID); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if s.Loading() {
		t.Error("still loading after Select returned")
	}
	before := s.Snapshot()
	if len(before.Stages) != 4 || before.DisplayName != "Board" {
		t.Fatalf("snapshot = %+v", before)
	}

	card, err := s.CreateCard(ctx, pipeline.CardOpts{
		StageID: p.Stages[1].ID,
		Contact: models.Contact{Name: "Ada"},
	})
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	after := s.Snapshot()
	if after == before {
		t.Fatal("snapshot not replaced")
	}
	if got := after.Stage(p.Stages[1].ID).Cards; len(got) != 1 || got[0].ID != card.ID {
		t.Errorf("stage 1 cards = %+v", got)
	}
	if after.Stages[0] != before.Stages[0] {
		t.Error("untouched stage copied on card creation")
	}
}

func TestSession_SelectUnknown(t *testing.T) {
	ctx, backend, p := setup(t)
	s := NewSession(backend)
	if err := s.Select(ctx, p.ID); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := s.Select(ctx, "missing"); !errors.Is(err, crmerr.ErrNotFound) {
		t.Errorf("Select(missing) err = %v", err)
	}
	if s.Snapshot() != nil {
		t.Error("snapshot kept after selecting a missing pipeline")
	}
}

func TestSession_MoveCardPersists(t *testing.T) {
	ctx, backend, p := setup(t)
	s := NewSession(backend)
	if err := s.Select(ctx, p.ID); err != nil {
		t.Fatalf("Select: %v", err)
	}
	card, err := s.CreateCard(ctx, pipeline.CardOpts{StageID: p.Stages[0].ID, Contact: models.Contact{Name: "A"}})
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	if err := s.MoveCard(ctx, card.ID, p.Stages[2].ID); err != nil {
		t.Fatalf("MoveCard: %v", err)
	}
	if stageID, _, _ := s.Snapshot().Locate(card.ID); stageID != p.Stages[2].ID {
		t.Errorf("card in %s after move", stageID)
	}

	// A fresh fetch agrees with the local board.
	if err := s.Select(ctx, p.ID); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if stageID, _, _ := s.Snapshot().Locate(card.ID); stageID != p.Stages[2].ID {
		t.Errorf("server has card in %s", stageID)
	}
	assertEachCardOnce(t, s.Snapshot(), 1)
}

func TestSession_MoveCardRollsBack(t *testing.T) {
	ctx, backend, p := setup(t)
	s := NewSession(backend)
	if err := s.Select(ctx, p.ID); err != nil {
		t.Fatalf("Select: %v", err)
	}
	card, err := s.CreateCard(ctx, pipeline.CardOpts{StageID: p.Stages[0].ID, Contact: models.Contact{Name: "A"}})
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	before := s.Snapshot()

	boom := errors.New("connection reset")
	backend.failMoves = boom
	if err := s.MoveCard(ctx, card.ID, p.Stages[3].ID); !errors.Is(err, boom) {
		t.Fatalf("MoveCard err = %v, want %v", err, boom)
	}
	if s.Snapshot() != before {
		t.Error("failed move did not restore the previous snapshot")
	}
	if stageID, _, _ := s.Snapshot().Locate(card.ID); stageID != p.Stages[0].ID {
		t.Errorf("card in %s after rollback", stageID)
	}
}

func TestSession_MoveCardRollbackKeepsPosition(t *testing.T) {
	ctx, backend, p := setup(t)
	s := NewSession(backend)
	if err := s.Select(ctx, p.ID); err != nil {
		t.Fatalf("Select: %v", err)
	}
	var ids []string
	for _, name := range []string{"A", "B", "C"} {
		card, err := s.CreateCard(ctx, pipeline.CardOpts{StageID: p.Stages[0].ID, Contact: models.Contact{Name: name}})
		if err != nil {
			t.Fatalf("CreateCard %s: %v", name, err)
		}
		ids = append(ids, card.ID)
	}

	// Another change lands while the move is in flight, so the rollback
	// cannot simply restore the earlier snapshot.
	var other *models.Card
	backend.duringMove = func() {
		card, err := s.CreateCard(ctx, pipeline.CardOpts{StageID: p.Stages[1].ID, Contact: models.Contact{Name: "D"}})
		if err != nil {
			t.Errorf("CreateCard during move: %v", err)
			return
		}
		other = card
	}
	backend.failMoves = errors.New("connection reset")
	if err := s.MoveCard(ctx, ids[1], p.Stages[3].ID); err == nil {
		t.Fatal("MoveCard succeeded, want failure")
	}

	b := s.Snapshot()
	if got := cardIDs(b.Stage(p.Stages[0].ID)); len(got) != 3 || got[0] != ids[0] || got[1] != ids[1] || got[2] != ids[2] {
		t.Errorf("origin stage = %v, want %v", got, ids)
	}
	if got := b.Stage(p.Stages[3].ID).Cards; len(got) != 0 {
		t.Errorf("destination still holds %d cards", len(got))
	}
	if other == nil {
		t.Fatal("concurrent card not created")
	}
	if stageID, _, _ := b.Locate(other.ID); stageID != p.Stages[1].ID {
		t.Errorf("concurrent card in %q after rollback", stageID)
	}
	assertEachCardOnce(t, b, 4)
}

func TestSession_MoveCardUnknown(t *testing.T) {
	ctx, backend, p := setup(t)
	s := NewSession(backend)
	if err := s.MoveCard(ctx, "c", "s"); !errors.Is(err, crmerr.ErrValidation) {
		t.Errorf("move before Select err = %v", err)
	}
	if err := s.Select(ctx, p.ID); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := s.MoveCard(ctx, "nope", p.Stages[1].ID); !errors.Is(err, crmerr.ErrNotFound) {
		t.Errorf("unknown card err = %v", err)
	}
}

func TestSession_StageOperations(t *testing.T) {
	ctx, backend, p := setup(t)
	s := NewSession(backend)
	if err := s.Select(ctx, p.ID); err != nil {
		t.Fatalf("Select: %v", err)
	}

	stage, err := s.CreateStage(ctx, "Won")
	if err != nil {
		t.Fatalf("CreateStage: %v", err)
	}
	b := s.Snapshot()
	if last := b.Stages[len(b.Stages)-1]; last.ID != stage.ID || last.Order != 4 {
		t.Errorf("last stage = %+v", last)
	}

	if _, err := s.RenameStage(ctx, stage.ID, "Closed"); err != nil {
		t.Fatalf("RenameStage: %v", err)
	}
	if got := s.Snapshot().Stage(stage.ID).Name; got != "Closed" {
		t.Errorf("renamed stage = %q", got)
	}
	if _, err := s.RenameStage(ctx, stage.ID, " "); !errors.Is(err, crmerr.ErrValidation) {
		t.Errorf("blank rename err = %v", err)
	}

	if err := s.DeleteStage(ctx, stage.ID); err != nil {
		t.Fatalf("DeleteStage: %v", err)
	}
	if s.Snapshot().Stage(stage.ID) != nil {
		t.Error("deleted stage still on board")
	}
}

// gatedBackend blocks Pipeline until the test releases the matching gate.
type gatedBackend struct {
	*pipeline.Service
	gates map[string]chan struct{}
}

func (g *gatedBackend) Pipeline(ctx context.Context, id string) (*pipeline.Detail, error) {
	<-g.gates[id]
	return g.Service.Pipeline(ctx, id)
}

func TestSession_SelectLastResponseWins(t *testing.T) {
	ctx, backend, first := setup(t)
	second, err := backend.Service.Create(ctx, pipeline.CreateOpts{Name: "Second"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	gated := &gatedBackend{
		Service: backend.Service,
		gates:   map[string]chan struct{}{first.ID: make(chan struct{}), second.ID: make(chan struct{})},
	}
	s := NewSession(gated)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = s.Select(ctx, first.ID) }()
	go func() { defer wg.Done(); _ = s.Select(ctx, second.ID) }()

	deadline := time.Now().Add(2 * time.Second)
	for !s.Loading() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !s.Loading() {
		t.Fatal("Loading() never reported an in-flight select")
	}

	// The later selection resolves first; the stale one overwrites it.
	close(gated.gates[second.ID])
	for time.Now().Before(deadline) {
		if b := s.Snapshot(); b != nil && b.PipelineID == second.ID {
			break
		}
		time.Sleep(time.Millisecond)
	}
	close(gated.gates[first.ID])
	wg.Wait()

	if got := s.Snapshot().PipelineID; got != first.ID {
		t.Errorf("board shows %s, want the last response %s", got, first.ID)
	}
	if s.Loading() {
		t.Error("Loading() after both selects returned")
	}
}
