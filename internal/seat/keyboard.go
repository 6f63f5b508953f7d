package seat

import (
	"fmt"
	"time"

	"github.com/bnema/inputseat/internal/backend"
	"github.com/bnema/inputseat/internal/keymap"
)

type keyState int

const (
	keyReleased keyState = iota
	keyPressed
	keyAutorepeat
)

func keyStateOf(pressed bool) keyState {
	if pressed {
		return keyPressed
	}
	return keyReleased
}

// KbdA11yFlags are the keyboard accessibility features in effect
type KbdA11yFlags uint32

const (
	A11yKeyboardEnabled KbdA11yFlags = 1 << iota
	A11yTimeoutEnabled
	A11yMouseKeysEnabled
	A11ySlowKeysEnabled
	A11yBounceKeysEnabled
	A11yStickyKeysEnabled
	A11yToggleKeysEnabled
)

// updateButtonCount tracks how many presses of a key or button the seat
// has seen and returns the count after this transition.
func (s *Seat) updateButtonCount(code uint32, pressed bool) uint32 {
	if int(code) >= len(s.counts) {
		if pressed {
			return 1
		}
		return 0
	}
	if pressed {
		s.counts[code]++
		return s.counts[code]
	}

	// The press may have happened before the device was seen
	if s.counts[code] == 0 {
		s.log.Warn("Release counted while count is already 0", "code", fmt.Sprintf("0x%x", code))
		return 0
	}
	s.counts[code]--
	return s.counts[code]
}

func (s *Seat) notifyKeyLocked(dev *Device, timeUsec uint64, code uint32, state keyState, updateKeys bool) {
	if state != keyAutorepeat {
		// Drop any repeated press, for example from virtual devices
		count := s.updateButtonCount(code, state == keyPressed)
		if (state == keyPressed && count > 1) || (state == keyReleased && count != 0) {
			s.log.Debug("Dropping repeated key transition",
				"code", fmt.Sprintf("0x%x", code), "pressed", state == keyPressed, "count", count)
			s.drop("duplicate")
			return
		}
	}

	ev := &KeyEvent{
		EventHeader: EventHeader{
			TimeUsec:  timeUsec,
			Device:    s.coreKeyboard,
			Source:    dev,
			Modifiers: keymap.TranslateState(s.xkb, s.buttonState),
		},
		Pressed: state != keyReleased,
		Code:    code,
	}

	// The translator must see strictly alternating transitions, never the
	// synthetic repeats, or lock keys toggle twice
	var changed keymap.StateComponent
	if state != keyAutorepeat {
		dir := keymap.KeyUp
		if state == keyPressed {
			dir = keymap.KeyDown
		}
		changed = s.xkb.UpdateKey(code, dir)
	} else {
		ev.Flags |= FlagRepeated
	}

	s.queueEvent(ev)

	if updateKeys && changed&keymap.LEDs != 0 {
		if cb := s.callbacks.ModifiersChanged; cb != nil {
			s.pending = append(s.pending, cb)
		}
		s.syncLEDsLocked()
		if s.a11yFlags&A11yToggleKeysEnabled != 0 {
			s.bellLocked()
		}
	}

	if state == keyReleased || !s.repeat || !s.keymap.KeyRepeats(code) {
		s.clearRepeatTimerLocked()
		return
	}

	if state == keyPressed {
		s.repeatCount = 0
	}
	s.repeatCount++
	s.repeatKey = code

	delay := s.repeatInterval
	if s.repeatCount == 1 {
		delay = s.repeatDelay
	}
	s.armRepeatLocked(dev, timeUsec, delay)
}

// armRepeatLocked replaces any live repeat timer with a new one
func (s *Seat) armRepeatLocked(dev *Device, fromUsec uint64, d time.Duration) {
	s.clearRepeatTimerLocked()

	s.repeatDevice = dev
	s.repeatTimeUsec = fromUsec + uint64(d.Microseconds())
	s.repeatGen++
	gen := s.repeatGen
	s.repeatTimer = s.clock.AfterFunc(d, func() { s.keyboardRepeat(gen) })
}

func (s *Seat) clearRepeatTimerLocked() {
	if s.repeatTimer == nil {
		return
	}
	s.repeatTimer.Stop()
	s.repeatTimer = nil
	s.repeatDevice = nil
}

func (s *Seat) keyboardRepeat(gen uint64) {
	s.mu.Lock()
	defer s.unlock()

	if s.repeatTimer == nil || s.repeatGen != gen || s.closed {
		return
	}

	// There might be events queued in the backend that cancel the repeat
	if err := s.dispatchLocked(); err != nil {
		s.log.Debug("Dispatch before repeat failed", "err", err)
	}
	if s.repeatTimer == nil || s.repeatGen != gen || s.repeatDevice == nil {
		return
	}

	s.notifyKeyLocked(s.repeatDevice, s.repeatTimeUsec, s.repeatKey, keyAutorepeat, false)
}

// Repeating reports whether a key repeat timer is armed
func (s *Seat) Repeating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repeatTimer != nil
}

// SetKeyboardRepeat enables or disables key repeat and sets its timing.
// The interval is at least MinRepeatInterval and a negative delay is zero.
func (s *Seat) SetKeyboardRepeat(enabled bool, delay, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delay = max(delay, 0)
	interval = max(interval, MinRepeatInterval)

	s.repeat = enabled
	s.repeatDelay = delay
	s.repeatInterval = interval
	if !enabled {
		s.clearRepeatTimerLocked()
	}
}

func ledsToBackend(l keymap.LED) backend.LED {
	var out backend.LED
	if l&keymap.LEDNumLock != 0 {
		out |= backend.LEDNumLock
	}
	if l&keymap.LEDCapsLock != 0 {
		out |= backend.LEDCapsLock
	}
	if l&keymap.LEDScrollLock != 0 {
		out |= backend.LEDScrollLock
	}
	return out
}

// syncLEDsLocked writes the lock state to every device with indicators
func (s *Seat) syncLEDsLocked() {
	leds := ledsToBackend(s.xkb.LEDs())
	for _, dev := range s.devices {
		if dev.raw == nil {
			continue
		}
		if err := dev.raw.SetLEDs(leds); err != nil {
			s.log.Warn("Failed to update LEDs", "device", dev, "err", err)
		}
	}
}

// updateXkbStateLocked starts a fresh translator state, keeping latched
// and locked modifiers and the layout but dropping held keys.
func (s *Seat) updateXkbStateLocked() {
	latched := s.xkb.SerializeMods(keymap.ModsLatched)
	locked := s.xkb.SerializeMods(keymap.ModsLocked)

	s.xkb = s.keymap.NewState()
	s.xkb.UpdateMask(0, latched, locked, 0, 0, s.layoutIdx)
	s.syncLEDsLocked()
}

// SetKeymap replaces the keymap. Keys held at the time are forgotten by the
// translator, so callers should switch while no key is pressed.
func (s *Seat) SetKeymap(km keymap.Keymap) {
	s.mu.Lock()
	defer s.unlock()

	s.keymap = km
	if s.layoutIdx >= uint32(km.NumLayouts()) {
		s.layoutIdx = 0
	}
	s.clearRepeatTimerLocked()
	s.updateXkbStateLocked()
}

func (s *Seat) Keymap() keymap.Keymap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keymap
}

// SetKeyboardLayoutIndex locks the given layout
func (s *Seat) SetKeyboardLayoutIndex(idx uint32) error {
	s.mu.Lock()
	defer s.unlock()

	if idx >= uint32(s.keymap.NumLayouts()) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidLayout, idx, s.keymap.NumLayouts())
	}

	depressed := s.xkb.SerializeMods(keymap.ModsDepressed)
	latched := s.xkb.SerializeMods(keymap.ModsLatched)
	locked := s.xkb.SerializeMods(keymap.ModsLocked)
	s.xkb.UpdateMask(depressed, latched, locked, 0, 0, idx)
	s.layoutIdx = idx
	return nil
}

func (s *Seat) KeyboardLayoutIndex() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layoutIdx
}

// SetKeyboardNumlock sets or clears the Mod2 lock and updates the LEDs
func (s *Seat) SetKeyboardNumlock(on bool) {
	s.mu.Lock()
	defer s.unlock()

	idx := s.keymap.ModIndex("Mod2")
	if idx < 0 {
		s.log.Warn("Keymap has no Mod2 modifier, cannot set numlock")
		return
	}
	numlock := uint32(1) << uint(idx)

	depressed := s.xkb.SerializeMods(keymap.ModsDepressed)
	latched := s.xkb.SerializeMods(keymap.ModsLatched)
	locked := s.xkb.SerializeMods(keymap.ModsLocked)
	group := s.xkb.SerializeLayout(keymap.LayoutEffective)

	if on {
		locked |= numlock
	} else {
		locked &^= numlock
	}
	s.xkb.UpdateMask(depressed, latched, locked, 0, 0, group)
	s.syncLEDsLocked()
}

// SetKbdA11yFlags updates the keyboard accessibility flags and reports
// what changed.
func (s *Seat) SetKbdA11yFlags(flags KbdA11yFlags) {
	s.mu.Lock()
	defer s.unlock()

	changed := s.a11yFlags ^ flags
	s.a11yFlags = flags
	if changed == 0 {
		return
	}
	if cb := s.callbacks.KbdA11yFlagsChanged; cb != nil {
		s.pending = append(s.pending, func() { cb(flags, changed) })
	}
}

// NotifyKbdA11yModsState reports modifiers latched or locked by an
// accessibility feature such as sticky keys.
func (s *Seat) NotifyKbdA11yModsState(latched, locked uint32) {
	if cb := s.callbacks.KbdA11yModsStateChanged; cb != nil {
		cb(latched, locked)
	}
}

// Bell rings the seat bell
func (s *Seat) Bell() {
	s.mu.Lock()
	defer s.unlock()
	s.bellLocked()
}

func (s *Seat) bellLocked() {
	if cb := s.callbacks.Bell; cb != nil {
		s.pending = append(s.pending, cb)
	}
}
