package backend

import "strings"

// Capability is a bitmask of what a device can report
type Capability uint32

const (
	CapKeyboard Capability = 1 << iota
	CapPointer
	CapTouch
	CapTabletTool
	CapTabletPad
	CapGesture
	CapSwitch
)

var capabilityNames = []struct {
	c    Capability
	name string
}{
	{CapKeyboard, "keyboard"},
	{CapPointer, "pointer"},
	{CapTouch, "touch"},
	{CapTabletTool, "tablet-tool"},
	{CapTabletPad, "tablet-pad"},
	{CapGesture, "gesture"},
	{CapSwitch, "switch"},
}

func (c Capability) String() string {
	var parts []string
	for _, n := range capabilityNames {
		if c&n.c != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// LED is a keyboard indicator bitmask as written to devices
type LED uint32

const (
	LEDNumLock LED = 1 << iota
	LEDCapsLock
	LEDScrollLock
)

// LEDSink writes indicator state to hardware
type LEDSink interface {
	SetLEDs(leds LED) error
}

// Device is the backend's handle for one physical or injected device
type Device struct {
	Name    string
	Path    string
	Vendor  uint16
	Product uint16

	Capabilities        Capability
	HasTabletModeSwitch bool
	HasLEDs             bool

	// Size in millimetres, zero when unknown
	WidthMM  float64
	HeightMM float64

	LEDs LEDSink
}

// Has reports whether the device has all of the given capabilities
func (d *Device) Has(c Capability) bool {
	return d.Capabilities&c == c
}

// SetLEDs forwards indicator state to the device if it has any
func (d *Device) SetLEDs(leds LED) error {
	if !d.HasLEDs || d.LEDs == nil {
		return nil
	}
	return d.LEDs.SetLEDs(leds)
}

func (d *Device) String() string {
	if d.Path == "" {
		return d.Name
	}
	return d.Name + " (" + d.Path + ")"
}
