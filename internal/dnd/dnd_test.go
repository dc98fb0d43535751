package dnd

import (
	"testing"
	"time"
)

// Three 100-wide columns with 20-unit gutters.
var columns = []Container{
	{ID: "s0", Rect: Rect{X: 0, Y: 0, Width: 100, Height: 400}},
	{ID: "s1", Rect: Rect{X: 120, Y: 0, Width: 100, Height: 400}},
	{ID: "s2", Rect: Rect{X: 240, Y: 0, Width: 100, Height: 400}},
}

// A card inside s0.
var cardRect = Rect{X: 10, Y: 10, Width: 80, Height: 40}

var t0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func TestRect(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 30, Height: 40}
	if c := r.Center(); c != (Point{25, 40}) {
		t.Errorf("Center = %+v", c)
	}
	corners := r.Corners()
	if corners[3] != (Point{40, 60}) {
		t.Errorf("bottom-right = %+v", corners[3])
	}
	if !r.Intersects(Rect{X: 39, Y: 59, Width: 5, Height: 5}) {
		t.Error("overlapping rects reported disjoint")
	}
	if r.Intersects(Rect{X: 40, Y: 20, Width: 5, Height: 5}) {
		t.Error("edge-touching rects reported overlapping")
	}
}

func TestClosestCorners(t *testing.T) {
	tests := []struct {
		name    string
		preview Rect
		pointer Point
		want    string
		ok      bool
	}{
		{"inside first column", cardRect, Point{50, 30}, "s0", true},
		{"mostly over second column", cardRect.Translate(120, 0), Point{170, 30}, "s1", true},
		{"straddling, nearer third", Rect{X: 200, Y: 10, Width: 80, Height: 40}, Point{240, 30}, "s2", true},
		{"in a gutter only", Rect{X: 101, Y: 10, Width: 18, Height: 40}, Point{110, 30}, "", false},
		{"off the board", cardRect.Translate(0, 1000), Point{50, 1030}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ClosestCorners(tt.preview, tt.pointer, columns)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ClosestCorners() = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestClosestCorners_TieGoesToPointerCentre(t *testing.T) {
	// Two identical, stacked containers give identical corner distances.
	stacked := []Container{
		{ID: "a", Rect: Rect{X: 0, Y: 0, Width: 100, Height: 100}},
		{ID: "b", Rect: Rect{X: 0, Y: 0, Width: 100, Height: 100}},
	}
	preview := Rect{X: 10, Y: 10, Width: 20, Height: 20}

	got, _ := ClosestCorners(preview, Point{20, 20}, stacked)
	if got != "a" {
		t.Errorf("equal candidates should keep the first, got %q", got)
	}

	// Mirror-image containers around the preview: equal corner distance,
	// pointer decides.
	mirrored := []Container{
		{ID: "left", Rect: Rect{X: 0, Y: 0, Width: 60, Height: 100}},
		{ID: "right", Rect: Rect{X: 40, Y: 0, Width: 60, Height: 100}},
	}
	preview = Rect{X: 30, Y: 30, Width: 40, Height: 40}
	if got, _ := ClosestCorners(preview, Point{70, 50}, mirrored); got != "right" {
		t.Errorf("pointer on the right chose %q", got)
	}
	if got, _ := ClosestCorners(preview, Point{30, 50}, mirrored); got != "left" {
		t.Errorf("pointer on the left chose %q", got)
	}
}

func TestPointerSensor(t *testing.T) {
	s := DefaultPointerSensor
	start := Point{0, 0}
	if got := s.Evaluate(start, Point{5, 5}, time.Second); got != Pending {
		t.Errorf("7.07 units = %v, want Pending", got)
	}
	if got := s.Evaluate(start, Point{8, 0}, 0); got != Activate {
		t.Errorf("8 units = %v, want Activate", got)
	}
}

func TestTouchSensor(t *testing.T) {
	s := DefaultTouchSensor
	start := Point{0, 0}
	tests := []struct {
		name  string
		at    Point
		held  time.Duration
		wants Activation
	}{
		{"quick tap", Point{0, 0}, 50 * time.Millisecond, Pending},
		{"held still", Point{2, 2}, 200 * time.Millisecond, Activate},
		{"at tolerance", Point{5, 0}, 250 * time.Millisecond, Activate},
		{"scrolled away", Point{0, 6}, 100 * time.Millisecond, Abort},
		{"scrolled after delay", Point{0, 6}, 300 * time.Millisecond, Abort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Evaluate(start, tt.at, tt.held); got != tt.wants {
				t.Errorf("Evaluate() = %v, want %v", got, tt.wants)
			}
		})
	}
}

func newPointerController() (*Controller, *[]State) {
	c := NewController(DefaultPointerSensor)
	c.SetContainers(columns)
	var seen []State
	c.OnStateChange = func(_, to State) { seen = append(seen, to) }
	return c, &seen
}

func TestController_DragToOtherStage(t *testing.T) {
	c, seen := newPointerController()
	start := Point{50, 30}

	c.Press("card-1", "s0", cardRect, start, t0)
	c.Move(Point{53, 30}, t0.Add(10*time.Millisecond))
	if c.State() != Idle {
		t.Fatalf("activated below threshold: %v", c.State())
	}

	c.Move(Point{100, 30}, t0.Add(20*time.Millisecond))
	if c.State() != Dragging {
		t.Fatalf("state = %v, want Dragging", c.State())
	}
	if id, origin, ok := c.Active(); !ok || id != "card-1" || origin != "s0" {
		t.Errorf("Active() = %q, %q, %v", id, origin, ok)
	}

	c.Move(Point{290, 30}, t0.Add(30*time.Millisecond))
	if over, ok := c.Over(); !ok || over != "s2" {
		t.Errorf("Over() = %q, %v; want s2", over, ok)
	}
	if p, _ := c.Preview(); p.X != 250 {
		t.Errorf("preview X = %v, want 250", p.X)
	}

	intent, ok := c.Release(Point{290, 30}, t0.Add(40*time.Millisecond))
	if !ok || intent != (MoveIntent{CardID: "card-1", ToStageID: "s2"}) {
		t.Errorf("Release() = %+v, %v", intent, ok)
	}
	if c.State() != Idle {
		t.Errorf("state after release = %v", c.State())
	}
	want := []State{Dragging, DropEvaluating, Idle}
	if len(*seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", *seen, want)
	}
	for i := range want {
		if (*seen)[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, (*seen)[i], want[i])
		}
	}
}

func TestController_DropOnOriginSnapsBack(t *testing.T) {
	c, _ := newPointerController()
	c.Press("card-1", "s0", cardRect, Point{50, 30}, t0)
	c.Move(Point{50, 60}, t0.Add(time.Millisecond))
	if c.State() != Dragging {
		t.Fatalf("state = %v", c.State())
	}
	if _, ok := c.Release(Point{50, 60}, t0.Add(2*time.Millisecond)); ok {
		t.Error("drop on origin emitted an intent")
	}
}

func TestController_DropOutsideIsNoop(t *testing.T) {
	c, _ := newPointerController()
	c.Press("card-1", "s0", cardRect, Point{50, 30}, t0)
	c.Move(Point{50, 2000}, t0.Add(time.Millisecond))
	if _, ok := c.Over(); ok {
		t.Error("highlighted a target while off the board")
	}
	if _, ok := c.Release(Point{50, 2000}, t0.Add(2*time.Millisecond)); ok {
		t.Error("drop outside emitted an intent")
	}
	if c.State() != Idle {
		t.Errorf("state = %v", c.State())
	}
}

func TestController_TapIsNotADrag(t *testing.T) {
	c, seen := newPointerController()
	c.Press("card-1", "s0", cardRect, Point{50, 30}, t0)
	if _, ok := c.Release(Point{51, 30}, t0.Add(80*time.Millisecond)); ok {
		t.Error("tap emitted an intent")
	}
	if len(*seen) != 0 {
		t.Errorf("tap changed state: %v", *seen)
	}
}

func TestController_Cancel(t *testing.T) {
	c, _ := newPointerController()
	c.Press("card-1", "s0", cardRect, Point{50, 30}, t0)
	c.Move(Point{170, 30}, t0.Add(time.Millisecond))
	c.Cancel()
	if c.State() != Idle {
		t.Errorf("state = %v", c.State())
	}
	if _, ok := c.Release(Point{170, 30}, t0.Add(2*time.Millisecond)); ok {
		t.Error("release after cancel emitted an intent")
	}
}

func TestController_TouchHoldThenDrag(t *testing.T) {
	c := NewController(DefaultTouchSensor)
	c.SetContainers(columns)
	start := Point{50, 30}

	c.Press("card-1", "s0", cardRect, start, t0)
	c.Tick(t0.Add(100 * time.Millisecond))
	if c.State() != Idle {
		t.Fatalf("activated before delay: %v", c.State())
	}
	c.Tick(t0.Add(200 * time.Millisecond))
	if c.State() != Dragging {
		t.Fatalf("state = %v, want Dragging after hold", c.State())
	}

	c.Move(Point{170, 30}, t0.Add(300*time.Millisecond))
	intent, ok := c.Release(Point{170, 30}, t0.Add(400*time.Millisecond))
	if !ok || intent.ToStageID != "s1" {
		t.Errorf("Release() = %+v, %v", intent, ok)
	}
}

func TestController_TouchScrollAborts(t *testing.T) {
	c := NewController(DefaultTouchSensor)
	c.SetContainers(columns)

	c.Press("card-1", "s0", cardRect, Point{50, 30}, t0)
	c.Move(Point{50, 60}, t0.Add(50*time.Millisecond))
	c.Tick(t0.Add(500 * time.Millisecond))
	if c.State() != Idle {
		t.Errorf("scroll gesture became a drag: %v", c.State())
	}

	// The aborted press is gone; a new one can start.
	c.Press("card-2", "s1", Rect{X: 130, Y: 10, Width: 80, Height: 40}, Point{170, 30}, t0.Add(time.Second))
	c.Tick(t0.Add(1300 * time.Millisecond))
	if id, _, ok := c.Active(); !ok || id != "card-2" {
		t.Errorf("second press Active() = %q, %v", id, ok)
	}
}

func TestState_String(t *testing.T) {
	if Dragging.String() != "dragging" || State(9).String() != "State(9)" {
		t.Errorf("String() = %q, %q", Dragging.String(), State(9).String())
	}
}
