package seat

import (
	"github.com/bnema/inputseat/internal/backend"
	"github.com/bnema/inputseat/internal/keymap"
)

// touchState is one live touch contact, keyed by seat slot
type touchState struct {
	slot int
	x, y float64
	dev  *Device
}

// Sequence returns the touch sequence id of a seat slot. Zero is reserved
// for "no sequence".
func Sequence(slot int) int {
	if slot+1 < 1 {
		return 1
	}
	return slot + 1
}

// SequenceSlot is the inverse of Sequence
func SequenceSlot(seq int) int {
	return seq - 1
}

func (s *Seat) acquireTouchLocked(dev *Device, slot int) *touchState {
	if old, ok := s.touches[slot]; ok {
		s.log.Debug("Touch slot reused while still active", "slot", slot, "device", old.dev)
	}
	ts := &touchState{slot: slot, dev: dev}
	s.touches[slot] = ts
	s.metrics.touchContacts.Set(float64(len(s.touches)))
	return ts
}

func (s *Seat) releaseTouchLocked(slot int) {
	delete(s.touches, slot)
	s.metrics.touchContacts.Set(float64(len(s.touches)))
}

func (s *Seat) notifyTouchLocked(dev *Device, phase TouchPhase, timeUsec uint64, slot int, x, y float64) {
	ev := &TouchEvent{
		EventHeader: EventHeader{
			TimeUsec:  timeUsec,
			Device:    s.corePointer,
			Source:    dev,
			Modifiers: keymap.TranslateState(s.xkb, s.buttonState),
		},
		Phase:    phase,
		Sequence: Sequence(slot),
		X:        x,
		Y:        y,
	}
	w, h := s.extentsLocked()
	dev.transform(w, h, &ev.X, &ev.Y)

	// Clients expect a held primary button while a touch is down
	if phase == TouchBegin || phase == TouchUpdate {
		ev.Modifiers |= keymap.Button1Mask
	}

	s.queueEvent(ev)
}

func (s *Seat) touchDownLocked(dev *Device, e backend.TouchDown) {
	w, h := s.extentsLocked()
	ts := s.acquireTouchLocked(dev, e.Slot)
	ts.x = e.X * w
	ts.y = e.Y * h
	s.notifyTouchLocked(dev, TouchBegin, e.TimeUsec, ts.slot, ts.x, ts.y)
}

func (s *Seat) touchMotionLocked(dev *Device, e backend.TouchMotion) {
	ts, ok := s.touches[e.Slot]
	if !ok {
		s.drop("unknown_slot")
		return
	}
	w, h := s.extentsLocked()
	ts.x = e.X * w
	ts.y = e.Y * h
	s.notifyTouchLocked(dev, TouchUpdate, e.TimeUsec, ts.slot, ts.x, ts.y)
}

// touchEndLocked reports the end or cancellation of a contact at its last
// known position
func (s *Seat) touchEndLocked(dev *Device, timeUsec uint64, slot int, phase TouchPhase) {
	ts, ok := s.touches[slot]
	if !ok {
		s.drop("unknown_slot")
		return
	}
	s.notifyTouchLocked(dev, phase, timeUsec, ts.slot, ts.x, ts.y)
	s.releaseTouchLocked(slot)
}

// TouchCount returns the number of live touch contacts
func (s *Seat) TouchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.touches)
}
