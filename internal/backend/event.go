// Package backend defines the raw input event stream the seat consumes and
// the sources that produce it: an evdev reader for real hardware and an
// in-memory queue for injection, replay and tests.
package backend

import "errors"

var (
	ErrSuspended = errors.New("backend suspended")
	ErrClosed    = errors.New("backend closed")
	ErrNoSeat    = errors.New("seat id must not be empty")
)

// Backend is a source of raw events. Dispatch reads whatever the hardware
// has pending; NextEvent then drains it in order until it returns nil.
type Backend interface {
	AssignSeat(id string) error
	Dispatch() error
	NextEvent() Event
	// Wake fires when Dispatch has something to read
	Wake() <-chan struct{}
	Suspend() error
	Resume() error
	Close() error
}

// Event is one raw backend event
type Event interface {
	Device() *Device
	Time() uint64
}

// Header carries the fields common to every event. Time is in microseconds.
type Header struct {
	Dev      *Device
	TimeUsec uint64
}

func (h Header) Device() *Device { return h.Dev }
func (h Header) Time() uint64    { return h.TimeUsec }

type DeviceAdded struct{ Header }

type DeviceRemoved struct{ Header }

// Key is a keyboard key transition. SeatCount is how many devices on the
// seat hold the key after this transition.
type Key struct {
	Header
	Code      uint32
	Pressed   bool
	SeatCount uint32
}

type PointerMotion struct {
	Header
	DX, DY               float64
	DXUnaccel, DYUnaccel float64
}

// PointerMotionAbsolute carries a position normalised to [0,1] on each axis
type PointerMotionAbsolute struct {
	Header
	X, Y float64
}

type PointerButton struct {
	Header
	Code      uint32
	Pressed   bool
	SeatCount uint32
}

// AxisSource is what generated a scroll event
type AxisSource int

const (
	AxisSourceWheel AxisSource = iota
	AxisSourceFinger
	AxisSourceContinuous
	AxisSourceWheelTilt
)

func (s AxisSource) String() string {
	switch s {
	case AxisSourceWheel:
		return "wheel"
	case AxisSourceFinger:
		return "finger"
	case AxisSourceContinuous:
		return "continuous"
	case AxisSourceWheelTilt:
		return "wheel-tilt"
	}
	return "unknown"
}

// PointerAxis is a scroll report. A Has flag set with a zero value means the
// axis stopped. Wheel sources fill the Discrete fields in notches; a high
// resolution wheel reports fractions of a notch.
type PointerAxis struct {
	Header
	Source                               AxisSource
	HasHorizontal, HasVertical           bool
	Horizontal, Vertical                 float64
	DiscreteHorizontal, DiscreteVertical float64
}

// Touch positions are normalised to [0,1]. Slot is the seat-wide slot.
type TouchDown struct {
	Header
	Slot int
	X, Y float64
}

type TouchMotion struct {
	Header
	Slot int
	X, Y float64
}

type TouchUp struct {
	Header
	Slot int
}

type TouchCancel struct {
	Header
	Slot int
}

type TouchFrame struct{ Header }

// GesturePhase is the stage of a multi-finger gesture
type GesturePhase int

const (
	GestureBegin GesturePhase = iota
	GestureUpdate
	GestureEnd
)

type GesturePinch struct {
	Header
	Phase      GesturePhase
	Cancelled  bool
	Fingers    int
	DX, DY     float64
	Scale      float64
	AngleDelta float64
}

type GestureSwipe struct {
	Header
	Phase     GesturePhase
	Cancelled bool
	Fingers   int
	DX, DY    float64
}

// ToolType is the physical kind of tablet tool
type ToolType int

const (
	ToolUnknown ToolType = iota
	ToolPen
	ToolEraser
	ToolBrush
	ToolPencil
	ToolAirbrush
	ToolMouse
	ToolLens
)

func (t ToolType) String() string {
	switch t {
	case ToolPen:
		return "pen"
	case ToolEraser:
		return "eraser"
	case ToolBrush:
		return "brush"
	case ToolPencil:
		return "pencil"
	case ToolAirbrush:
		return "airbrush"
	case ToolMouse:
		return "mouse"
	case ToolLens:
		return "lens"
	}
	return "unknown"
}

// ToolID identifies a tablet tool by hardware serial and kind
type ToolID struct {
	Serial uint64
	Type   ToolType
}

// TabletAxes is a snapshot of tool axes. X and Y are normalised to [0,1].
type TabletAxes struct {
	X, Y         float64
	DX, DY       float64
	Pressure     float64
	Distance     float64
	TiltX, TiltY float64
	Rotation     float64
	Slider       float64
	Wheel        float64
}

type TabletToolAxis struct {
	Header
	Tool ToolID
	Axes TabletAxes
}

type TabletToolProximity struct {
	Header
	Tool ToolID
	In   bool
	Axes TabletAxes
}

type TabletToolTip struct {
	Header
	Tool ToolID
	Down bool
	Axes TabletAxes
}

type TabletToolButton struct {
	Header
	Tool    ToolID
	Button  uint32
	Pressed bool
	Axes    TabletAxes
}

// PadSource is what drove a strip or ring change
type PadSource int

const (
	PadSourceUnknown PadSource = iota
	PadSourceFinger
)

type TabletPadButton struct {
	Header
	Button  uint32
	Pressed bool
	Group   uint32
	Mode    uint32
}

type TabletPadStrip struct {
	Header
	Number   int
	Position float64
	Source   PadSource
	Group    uint32
	Mode     uint32
}

type TabletPadRing struct {
	Header
	Number int
	Angle  float64
	Source PadSource
	Group  uint32
	Mode   uint32
}

// SwitchKind names a hardware switch
type SwitchKind int

const (
	SwitchLid SwitchKind = iota
	SwitchTabletMode
)

type SwitchToggle struct {
	Header
	Switch SwitchKind
	On     bool
}
