package seat

import (
	"fmt"
	"sync"

	"github.com/bnema/inputseat/internal/backend"
	"github.com/bnema/inputseat/internal/keymap"
)

// EventKind identifies a normalized event
type EventKind int

const (
	KindKeyPress EventKind = iota
	KindKeyRelease
	KindMotion
	KindButtonPress
	KindButtonRelease
	KindScroll
	KindTouchBegin
	KindTouchUpdate
	KindTouchEnd
	KindTouchCancel
	KindPinch
	KindSwipe
	KindProximityIn
	KindProximityOut
	KindPadButtonPress
	KindPadButtonRelease
	KindPadStrip
	KindPadRing
	KindDeviceAdded
	KindDeviceRemoved
)

var kindNames = [...]string{
	KindKeyPress:         "key-press",
	KindKeyRelease:       "key-release",
	KindMotion:           "motion",
	KindButtonPress:      "button-press",
	KindButtonRelease:    "button-release",
	KindScroll:           "scroll",
	KindTouchBegin:       "touch-begin",
	KindTouchUpdate:      "touch-update",
	KindTouchEnd:         "touch-end",
	KindTouchCancel:      "touch-cancel",
	KindPinch:            "pinch",
	KindSwipe:            "swipe",
	KindProximityIn:      "proximity-in",
	KindProximityOut:     "proximity-out",
	KindPadButtonPress:   "pad-button-press",
	KindPadButtonRelease: "pad-button-release",
	KindPadStrip:         "pad-strip",
	KindPadRing:          "pad-ring",
	KindDeviceAdded:      "device-added",
	KindDeviceRemoved:    "device-removed",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// EventFlags mark synthesized events
type EventFlags uint32

const (
	FlagRepeated EventFlags = 1 << iota
	FlagEmulated
)

// Event is one normalized event
type Event interface {
	Kind() EventKind
	Header() *EventHeader
}

// EventHeader carries the fields shared by all normalized events. Device is
// the logical device the event is delivered through (usually a core device),
// Source the physical device that produced it.
type EventHeader struct {
	TimeUsec  uint64
	Device    *Device
	Source    *Device
	Modifiers keymap.Modifiers
	Flags     EventFlags
}

func (h *EventHeader) Header() *EventHeader { return h }

// TimeMs returns the event time in milliseconds
func (h *EventHeader) TimeMs() uint32 { return uint32(h.TimeUsec / 1000) }

type KeyEvent struct {
	EventHeader
	Pressed bool
	Code    uint32
}

func (e *KeyEvent) Kind() EventKind {
	if e.Pressed {
		return KindKeyPress
	}
	return KindKeyRelease
}

// MotionEvent reports the new pointer (or tablet) position. Relative
// motion also carries the deltas that produced it.
type MotionEvent struct {
	EventHeader
	X, Y                 float64
	Relative             bool
	DX, DY               float64
	DXUnaccel, DYUnaccel float64
	Tool                 *Tool
	Axes                 *backend.TabletAxes
}

func (e *MotionEvent) Kind() EventKind { return KindMotion }

// ButtonEvent carries the logical button number (1 primary, 2 middle,
// 3 secondary, 8+ extra) and the evdev code it came from.
type ButtonEvent struct {
	EventHeader
	Pressed bool
	Button  int
	Code    uint32
	X, Y    float64
	Tool    *Tool
}

func (e *ButtonEvent) Kind() EventKind {
	if e.Pressed {
		return KindButtonPress
	}
	return KindButtonRelease
}

// ScrollDirection of a scroll event. Smooth events carry deltas, the
// others are one discrete notch.
type ScrollDirection int

const (
	ScrollUp ScrollDirection = iota
	ScrollDown
	ScrollLeft
	ScrollRight
	ScrollSmooth
)

func (d ScrollDirection) String() string {
	switch d {
	case ScrollUp:
		return "up"
	case ScrollDown:
		return "down"
	case ScrollLeft:
		return "left"
	case ScrollRight:
		return "right"
	case ScrollSmooth:
		return "smooth"
	}
	return "unknown"
}

// ScrollFinish marks axes whose scroll sequence ended
type ScrollFinish uint32

const (
	FinishHorizontal ScrollFinish = 1 << iota
	FinishVertical
)

type ScrollEvent struct {
	EventHeader
	Direction ScrollDirection
	DX, DY    float64
	X, Y      float64
	Source    backend.AxisSource
	Finish    ScrollFinish
}

func (e *ScrollEvent) Kind() EventKind { return KindScroll }

// Emulated reports whether the event was synthesized from the other
// scroll representation
func (e *ScrollEvent) Emulated() bool { return e.Flags&FlagEmulated != 0 }

// TouchPhase is the stage of a touch contact
type TouchPhase int

const (
	TouchBegin TouchPhase = iota
	TouchUpdate
	TouchEnd
	TouchCancel
)

// TouchEvent carries a sequence id that is never zero
type TouchEvent struct {
	EventHeader
	Phase    TouchPhase
	Sequence int
	X, Y     float64
}

func (e *TouchEvent) Kind() EventKind {
	switch e.Phase {
	case TouchBegin:
		return KindTouchBegin
	case TouchUpdate:
		return KindTouchUpdate
	case TouchEnd:
		return KindTouchEnd
	}
	return KindTouchCancel
}

// Slot returns the seat slot the sequence was derived from
func (e *TouchEvent) Slot() int { return SequenceSlot(e.Sequence) }

// GesturePhase is the stage of a touchpad gesture
type GesturePhase int

const (
	GestureBegin GesturePhase = iota
	GestureUpdate
	GestureEnd
	GestureCancel
)

func (p GesturePhase) String() string {
	switch p {
	case GestureBegin:
		return "begin"
	case GestureUpdate:
		return "update"
	case GestureEnd:
		return "end"
	}
	return "cancel"
}

type PinchEvent struct {
	EventHeader
	Phase      GesturePhase
	Fingers    int
	X, Y       float64
	DX, DY     float64
	AngleDelta float64
	Scale      float64
}

func (e *PinchEvent) Kind() EventKind { return KindPinch }

type SwipeEvent struct {
	EventHeader
	Phase   GesturePhase
	Fingers int
	X, Y    float64
	DX, DY  float64
}

func (e *SwipeEvent) Kind() EventKind { return KindSwipe }

type ProximityEvent struct {
	EventHeader
	In   bool
	Tool *Tool
}

func (e *ProximityEvent) Kind() EventKind {
	if e.In {
		return KindProximityIn
	}
	return KindProximityOut
}

type PadButtonEvent struct {
	EventHeader
	Pressed bool
	Button  uint32
	Group   uint32
	Mode    uint32
}

func (e *PadButtonEvent) Kind() EventKind {
	if e.Pressed {
		return KindPadButtonPress
	}
	return KindPadButtonRelease
}

type PadStripEvent struct {
	EventHeader
	Number int
	Value  float64
	Source backend.PadSource
	Group  uint32
	Mode   uint32
}

func (e *PadStripEvent) Kind() EventKind { return KindPadStrip }

type PadRingEvent struct {
	EventHeader
	Number int
	Angle  float64
	Source backend.PadSource
	Group  uint32
	Mode   uint32
}

func (e *PadRingEvent) Kind() EventKind { return KindPadRing }

type DeviceEvent struct {
	EventHeader
	Added bool
}

func (e *DeviceEvent) Kind() EventKind {
	if e.Added {
		return KindDeviceAdded
	}
	return KindDeviceRemoved
}

// Queue is the output queue of normalized events. It is safe for one
// producer (the seat) and any number of consumers.
type Queue struct {
	mu     sync.Mutex
	events []Event
	ready  chan struct{}

	// retire runs, without the queue lock, for every removed device once
	// its removal event has been taken off the queue
	retire func(*Device)
}

func newQueue(retire func(*Device)) *Queue {
	return &Queue{ready: make(chan struct{}, 1), retire: retire}
}

func (q *Queue) push(ev Event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Ready fires after events were pushed
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Pop removes the oldest event
func (q *Queue) Pop() (Event, bool) {
	q.mu.Lock()
	if len(q.events) == 0 {
		q.mu.Unlock()
		return nil, false
	}
	ev := q.events[0]
	q.events[0] = nil
	q.events = q.events[1:]
	q.mu.Unlock()

	q.retireRemoved(ev)
	return ev, true
}

// Drain removes and returns all queued events in order
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	out := q.events
	q.events = nil
	q.mu.Unlock()

	q.retireRemoved(out...)
	return out
}

func (q *Queue) retireRemoved(events ...Event) {
	if q.retire == nil {
		return
	}
	for _, ev := range events {
		if de, ok := ev.(*DeviceEvent); ok && !de.Added {
			q.retire(de.Device)
		}
	}
}

// Len returns the number of queued events
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
