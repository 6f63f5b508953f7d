// Package keymap defines the keyboard state translator the seat feeds key
// transitions into, and a built-in translator that knows the standard evdev
// modifier and lock keys.
package keymap

import "strings"

// Direction of a key transition
type Direction int

const (
	KeyUp Direction = iota
	KeyDown
)

func (d Direction) String() string {
	if d == KeyDown {
		return "down"
	}
	return "up"
}

// StateComponent flags which parts of the keyboard state changed
type StateComponent uint32

const (
	ModsDepressed StateComponent = 1 << iota
	ModsLatched
	ModsLocked
	ModsEffective
	LayoutDepressed
	LayoutLatched
	LayoutLocked
	LayoutEffective
	LEDs
)

// Modifiers is the modifier bitmask carried on normalized events
type Modifiers uint32

const (
	ShiftMask Modifiers = 1 << iota
	LockMask
	ControlMask
	Mod1Mask
	Mod2Mask
	Mod3Mask
	Mod4Mask
	Mod5Mask
	Button1Mask
	Button2Mask
	Button3Mask
	Button4Mask
	Button5Mask
)

// ButtonMasks is the mask for buttons 1..5 in that order
var ButtonMasks = [5]Modifiers{Button1Mask, Button2Mask, Button3Mask, Button4Mask, Button5Mask}

var modifierNames = []struct {
	mask Modifiers
	name string
}{
	{ShiftMask, "shift"},
	{LockMask, "lock"},
	{ControlMask, "ctrl"},
	{Mod1Mask, "alt"},
	{Mod2Mask, "mod2"},
	{Mod3Mask, "mod3"},
	{Mod4Mask, "super"},
	{Mod5Mask, "altgr"},
	{Button1Mask, "b1"},
	{Button2Mask, "b2"},
	{Button3Mask, "b3"},
	{Button4Mask, "b4"},
	{Button5Mask, "b5"},
}

func (m Modifiers) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	for _, n := range modifierNames {
		if m&n.mask != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "+")
}

// LED is a keyboard indicator bitmask
type LED uint32

const (
	LEDNumLock LED = 1 << iota
	LEDCapsLock
	LEDScrollLock
)

// Keymap is a compiled keyboard layout description
type Keymap interface {
	NewState() State
	KeyRepeats(code uint32) bool
	// ModIndex returns the bit index of a named modifier, or -1
	ModIndex(name string) int
	NumLayouts() int
}

// State is the stateful translator for one keymap
type State interface {
	Keymap() Keymap
	UpdateKey(code uint32, dir Direction) StateComponent
	UpdateMask(depressedMods, latchedMods, lockedMods, depressedLayout, latchedLayout, lockedLayout uint32) StateComponent
	SerializeMods(components StateComponent) uint32
	SerializeLayout(components StateComponent) uint32
	LEDs() LED
}

// TranslateState builds the modifier mask for an event from the effective
// keyboard modifiers and the held pointer buttons.
func TranslateState(st State, buttons Modifiers) Modifiers {
	if st == nil {
		return buttons
	}
	return Modifiers(st.SerializeMods(ModsEffective))&0xff | buttons
}
