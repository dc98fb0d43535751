package dnd

import "time"

// Activation is a sensor's verdict on a pressed gesture.
type Activation int

const (
	// Pending means the gesture may still become a drag.
	Pending Activation = iota
	// Activate means the gesture is a drag.
	Activate
	// Abort means the gesture will never become a drag (a scroll, a tap).
	Abort
)

// Sensor decides when a press turns into a drag.
type Sensor interface {
	Evaluate(start, current Point, held time.Duration) Activation
}

// PointerSensor activates once the pointer travels Distance units from where
// it was pressed.
type PointerSensor struct {
	Distance float64
}

// DefaultPointerSensor is the mouse and pen sensor.
var DefaultPointerSensor = PointerSensor{Distance: 8}

// Evaluate implements Sensor.
func (s PointerSensor) Evaluate(start, current Point, _ time.Duration) Activation {
	if start.Dist(current) >= s.Distance {
		return Activate
	}
	return Pending
}

// TouchSensor activates once a press has been held for Delay without moving
// more than Tolerance units. Moving further first aborts the drag so the
// gesture can scroll instead.
type TouchSensor struct {
	Delay     time.Duration
	Tolerance float64
}

// DefaultTouchSensor is the touch-screen sensor.
var DefaultTouchSensor = TouchSensor{Delay: 200 * time.Millisecond, Tolerance: 5}

// Evaluate implements Sensor.
func (s TouchSensor) Evaluate(start, current Point, held time.Duration) Activation {
	if start.Dist(current) > s.Tolerance {
		return Abort
	}
	if held >= s.Delay {
		return Activate
	}
	return Pending
}
