package dnd

import (
	"fmt"
	"time"
)

// State is the controller's position in the drag lifecycle.
type State int

const (
	Idle State = iota
	Dragging
	DropEvaluating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case DropEvaluating:
		return "drop-evaluating"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MoveIntent asks the board to move a card to another stage.
type MoveIntent struct {
	CardID    string
	ToStageID string
}

type press struct {
	cardID        string
	originStageID string
	start         Point
	at            time.Time
	cardRect      Rect
}

// Controller tracks one gesture at a time. It is not safe for concurrent use;
// a UI event loop drives it.
type Controller struct {
	// OnStateChange, when set, is called on every state transition.
	OnStateChange func(from, to State)

	sensor     Sensor
	containers []Container

	state   State
	press   *press
	pointer Point
	preview Rect
	over    string
}

// NewController returns an idle controller using sensor for activation.
func NewController(sensor Sensor) *Controller {
	return &Controller{sensor: sensor}
}

// SetContainers replaces the stage drop areas.
func (c *Controller) SetContainers(containers []Container) {
	c.containers = append([]Container(nil), containers...)
	if c.state == Dragging {
		c.evaluate()
	}
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Active returns the dragged card and its origin stage while dragging.
func (c *Controller) Active() (cardID, originStageID string, ok bool) {
	if c.state != Dragging || c.press == nil {
		return "", "", false
	}
	return c.press.cardID, c.press.originStageID, true
}

// Over returns the highlighted drop target while dragging.
func (c *Controller) Over() (string, bool) {
	if c.state != Dragging || c.over == "" {
		return "", false
	}
	return c.over, true
}

// Preview returns the detached card preview rectangle while dragging.
func (c *Controller) Preview() (Rect, bool) {
	if c.state != Dragging {
		return Rect{}, false
	}
	return c.preview, true
}

// Press starts a gesture on a card. It has no effect unless the controller
// is idle with no gesture pending.
func (c *Controller) Press(cardID, originStageID string, cardRect Rect, at Point, t time.Time) {
	if c.state != Idle || c.press != nil {
		return
	}
	c.press = &press{cardID: cardID, originStageID: originStageID, start: at, at: t, cardRect: cardRect}
	c.pointer = at
}

// Move reports a pointer movement. A pending press may activate or abort;
// an active drag moves the preview and re-evaluates the drop target.
func (c *Controller) Move(p Point, t time.Time) {
	if c.press == nil {
		return
	}
	c.pointer = p
	if c.state == Idle && !c.tryActivate(t) {
		return
	}
	if c.state == Dragging {
		c.evaluate()
	}
}

// Tick lets a held, motionless press activate once the sensor's delay passes.
func (c *Controller) Tick(t time.Time) {
	if c.press == nil || c.state != Idle {
		return
	}
	if c.tryActivate(t) {
		c.evaluate()
	}
}

// Release ends the gesture. It returns an intent only when a drag ends over
// a stage other than the card's origin; anything else snaps back.
func (c *Controller) Release(p Point, t time.Time) (MoveIntent, bool) {
	if c.press == nil {
		return MoveIntent{}, false
	}
	if c.state != Dragging {
		c.Cancel()
		return MoveIntent{}, false
	}
	c.pointer = p
	c.evaluate()
	c.transition(DropEvaluating)

	intent, ok := MoveIntent{}, false
	if c.over != "" && c.over != c.press.originStageID {
		intent, ok = MoveIntent{CardID: c.press.cardID, ToStageID: c.over}, true
	}
	c.reset()
	return intent, ok
}

// Cancel abandons any gesture and returns to Idle without an intent.
func (c *Controller) Cancel() {
	c.reset()
}

func (c *Controller) tryActivate(t time.Time) bool {
	switch c.sensor.Evaluate(c.press.start, c.pointer, t.Sub(c.press.at)) {
	case Activate:
		c.transition(Dragging)
		return true
	case Abort:
		c.reset()
	}
	return false
}

func (c *Controller) evaluate() {
	dx, dy := c.pointer.X-c.press.start.X, c.pointer.Y-c.press.start.Y
	c.preview = c.press.cardRect.Translate(dx, dy)
	c.over, _ = ClosestCorners(c.preview, c.pointer, c.containers)
}

func (c *Controller) reset() {
	c.transition(Idle)
	c.press = nil
	c.over = ""
	c.preview = Rect{}
}

func (c *Controller) transition(to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	if c.OnStateChange != nil {
		c.OnStateChange(from, to)
	}
}
