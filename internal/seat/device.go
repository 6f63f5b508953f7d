package seat

import (
	"fmt"

	"github.com/bnema/inputseat/internal/backend"
)

// DeviceType is the exclusive classification of a device
type DeviceType int

const (
	PointerDevice DeviceType = iota
	KeyboardDevice
	ExtensionDevice
	TabletDevice
	TouchpadDevice
	TouchscreenDevice
	PadDevice
)

func (t DeviceType) String() string {
	switch t {
	case PointerDevice:
		return "pointer"
	case KeyboardDevice:
		return "keyboard"
	case TabletDevice:
		return "tablet"
	case TouchpadDevice:
		return "touchpad"
	case TouchscreenDevice:
		return "touchscreen"
	case PadDevice:
		return "pad"
	}
	return "extension"
}

// InputMode tells core devices apart from the physical ones behind them
type InputMode int

const (
	ModeLogical InputMode = iota
	ModePhysical
	ModeFloating
)

// MappingMode selects how a tablet's position maps onto the screen
type MappingMode int

const (
	MappingAbsolute MappingMode = iota
	MappingRelative
)

// identityMatrix maps device coordinates unchanged
var identityMatrix = [6]float64{1, 0, 0, 0, 1, 0}

// Device is a seat's view of one input device. Fields that change after
// creation are only touched under the seat lock and read through Seat.
type Device struct {
	id   int
	name string
	typ  DeviceType
	mode InputMode

	raw  *backend.Device
	core *Device

	virtual      bool
	tabletSwitch bool

	// state below is guarded by the seat lock
	x, y     float64
	matrix   [6]float64
	mapping  MappingMode
	lastTool *Tool
	tools    map[backend.ToolID]*Tool
}

func newDevice(id int, name string, typ DeviceType, mode InputMode) *Device {
	return &Device{
		id:     id,
		name:   name,
		typ:    typ,
		mode:   mode,
		matrix: identityMatrix,
	}
}

func (d *Device) ID() int              { return d.id }
func (d *Device) Name() string         { return d.name }
func (d *Device) Type() DeviceType     { return d.typ }
func (d *Device) Mode() InputMode      { return d.mode }
func (d *Device) Virtual() bool        { return d.virtual }
func (d *Device) Raw() *backend.Device { return d.raw }

// Core returns the core device this one is a satellite of, or nil
func (d *Device) Core() *Device { return d.core }

// IsTabletSwitch reports whether the device has a tablet-mode switch
func (d *Device) IsTabletSwitch() bool { return d.tabletSwitch }

func (d *Device) String() string {
	return fmt.Sprintf("%d:%s(%s)", d.id, d.name, d.typ)
}

// classify picks one device type from a capability set. Devices report
// several capabilities, so the most specific one wins.
func classify(dev *backend.Device) DeviceType {
	switch {
	case dev.Has(backend.CapGesture):
		return TouchpadDevice
	case dev.Has(backend.CapTabletTool):
		return TabletDevice
	case dev.Has(backend.CapTabletPad):
		return PadDevice
	case dev.Has(backend.CapPointer):
		return PointerDevice
	case dev.Has(backend.CapTouch):
		return TouchscreenDevice
	case dev.Has(backend.CapKeyboard):
		return KeyboardDevice
	}
	return ExtensionDevice
}

// transform applies the device's affine matrix to a position in the
// shared coordinate space of the given extents.
func (d *Device) transform(width, height float64, x, y *float64) {
	if d.matrix == identityMatrix || width <= 0 || height <= 0 {
		return
	}
	m := d.matrix
	nx := *x / width
	ny := *y / height
	*x = (m[0]*nx + m[1]*ny + m[2]) * width
	*y = (m[3]*nx + m[4]*ny + m[5]) * height
}

// Tool is a tablet tool identified by serial and type
type Tool struct {
	id        backend.ToolID
	buttonMap map[int]uint32
}

func newTool(id backend.ToolID) *Tool {
	return &Tool{id: id, buttonMap: make(map[int]uint32)}
}

func (t *Tool) Serial() uint64          { return t.id.Serial }
func (t *Tool) Type() backend.ToolType  { return t.id.Type }
func (t *Tool) ID() backend.ToolID      { return t.id }
func (t *Tool) buttonCode(b int) uint32 { return t.buttonMap[b] }

func (t *Tool) String() string {
	return fmt.Sprintf("%s#%d", t.id.Type, t.id.Serial)
}
