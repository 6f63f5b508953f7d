package keymap

import (
	evdev "github.com/gvalkov/golang-evdev"
)

type modKind int

const (
	modHeld modKind = iota
	modLock
)

type modKey struct {
	bit  uint32
	kind modKind
}

var basicModifiers = map[uint32]modKey{
	evdev.KEY_LEFTSHIFT:  {bit: 0, kind: modHeld},
	evdev.KEY_RIGHTSHIFT: {bit: 0, kind: modHeld},
	evdev.KEY_CAPSLOCK:   {bit: 1, kind: modLock},
	evdev.KEY_LEFTCTRL:   {bit: 2, kind: modHeld},
	evdev.KEY_RIGHTCTRL:  {bit: 2, kind: modHeld},
	evdev.KEY_LEFTALT:    {bit: 3, kind: modHeld},
	evdev.KEY_NUMLOCK:    {bit: 4, kind: modLock},
	evdev.KEY_SCROLLLOCK: {bit: 5, kind: modLock},
	evdev.KEY_LEFTMETA:   {bit: 6, kind: modHeld},
	evdev.KEY_RIGHTMETA:  {bit: 6, kind: modHeld},
	evdev.KEY_RIGHTALT:   {bit: 7, kind: modHeld},
}

var basicModNames = map[string]int{
	"Shift":   0,
	"Lock":    1,
	"Control": 2,
	"Mod1":    3,
	"Mod2":    4,
	"Mod3":    5,
	"Mod4":    6,
	"Mod5":    7,
}

// Basic is a US-style keymap with evdev modifiers and a configurable
// number of layouts. Layout switching happens only through UpdateMask.
type Basic struct {
	layouts int
}

// NewBasic returns a keymap with n layouts (at least one)
func NewBasic(layouts int) *Basic {
	if layouts < 1 {
		layouts = 1
	}
	return &Basic{layouts: layouts}
}

func (b *Basic) NewState() State {
	return &basicState{keymap: b}
}

// KeyRepeats reports false for modifier and lock keys
func (b *Basic) KeyRepeats(code uint32) bool {
	_, isMod := basicModifiers[code]
	return !isMod
}

func (b *Basic) ModIndex(name string) int {
	if idx, ok := basicModNames[name]; ok {
		return idx
	}
	return -1
}

func (b *Basic) NumLayouts() int {
	return b.layouts
}

type basicState struct {
	keymap *Basic

	held      [8]int
	latched   uint32
	locked    uint32
	depLayout uint32
	latLayout uint32
	lckLayout uint32
}

type snapshot struct {
	depressed, latched, locked, effective uint32
	depLayout, latLayout, lckLayout, layout uint32
	leds                                    LED
}

func (s *basicState) snapshot() snapshot {
	return snapshot{
		depressed: s.depressed(),
		latched:   s.latched,
		locked:    s.locked,
		effective: s.SerializeMods(ModsEffective),
		depLayout: s.depLayout,
		latLayout: s.latLayout,
		lckLayout: s.lckLayout,
		layout:    s.SerializeLayout(LayoutEffective),
		leds:      s.LEDs(),
	}
}

func diff(a, b snapshot) StateComponent {
	var c StateComponent
	if a.depressed != b.depressed {
		c |= ModsDepressed
	}
	if a.latched != b.latched {
		c |= ModsLatched
	}
	if a.locked != b.locked {
		c |= ModsLocked
	}
	if a.effective != b.effective {
		c |= ModsEffective
	}
	if a.depLayout != b.depLayout {
		c |= LayoutDepressed
	}
	if a.latLayout != b.latLayout {
		c |= LayoutLatched
	}
	if a.lckLayout != b.lckLayout {
		c |= LayoutLocked
	}
	if a.layout != b.layout {
		c |= LayoutEffective
	}
	if a.leds != b.leds {
		c |= LEDs
	}
	return c
}

func (s *basicState) Keymap() Keymap {
	return s.keymap
}

func (s *basicState) depressed() uint32 {
	var mask uint32
	for bit, n := range s.held {
		if n > 0 {
			mask |= 1 << bit
		}
	}
	return mask
}

func (s *basicState) UpdateKey(code uint32, dir Direction) StateComponent {
	mod, ok := basicModifiers[code]
	if !ok {
		return 0
	}

	before := s.snapshot()
	switch dir {
	case KeyDown:
		s.held[mod.bit]++
		if mod.kind == modLock {
			s.locked ^= 1 << mod.bit
		}
	case KeyUp:
		if s.held[mod.bit] > 0 {
			s.held[mod.bit]--
		}
	}
	return diff(before, s.snapshot())
}

func (s *basicState) UpdateMask(depressedMods, latchedMods, lockedMods, depressedLayout, latchedLayout, lockedLayout uint32) StateComponent {
	before := s.snapshot()
	for bit := range s.held {
		if depressedMods&(1<<bit) != 0 {
			if s.held[bit] == 0 {
				s.held[bit] = 1
			}
		} else {
			s.held[bit] = 0
		}
	}
	s.latched = latchedMods & 0xff
	s.locked = lockedMods & 0xff
	s.depLayout = depressedLayout
	s.latLayout = latchedLayout
	s.lckLayout = lockedLayout
	return diff(before, s.snapshot())
}

func (s *basicState) SerializeMods(components StateComponent) uint32 {
	var mask uint32
	if components&(ModsDepressed|ModsEffective) != 0 {
		mask |= s.depressed()
	}
	if components&(ModsLatched|ModsEffective) != 0 {
		mask |= s.latched
	}
	if components&(ModsLocked|ModsEffective) != 0 {
		mask |= s.locked
	}
	return mask
}

func (s *basicState) SerializeLayout(components StateComponent) uint32 {
	if components&LayoutEffective != 0 {
		return (s.depLayout + s.latLayout + s.lckLayout) % uint32(s.keymap.layouts)
	}
	var idx uint32
	if components&LayoutDepressed != 0 {
		idx += s.depLayout
	}
	if components&LayoutLatched != 0 {
		idx += s.latLayout
	}
	if components&LayoutLocked != 0 {
		idx += s.lckLayout
	}
	return idx
}

func (s *basicState) LEDs() LED {
	var leds LED
	if s.locked&(1<<1) != 0 {
		leds |= LEDCapsLock
	}
	if s.locked&(1<<4) != 0 {
		leds |= LEDNumLock
	}
	if s.locked&(1<<5) != 0 {
		leds |= LEDScrollLock
	}
	return leds
}
