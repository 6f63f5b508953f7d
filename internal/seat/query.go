package seat

import "github.com/bnema/inputseat/internal/keymap"

// PointerState is the position and modifiers of a device or touch sequence
type PointerState struct {
	X, Y      float64
	Modifiers keymap.Modifiers
}

// QueryState returns the state of a touch sequence when sequence is
// non-zero, otherwise the position of dev with the held buttons. It
// reports false for a sequence that is not active.
func (s *Seat) QueryState(dev *Device, sequence int) (PointerState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sequence > 0 {
		ts, ok := s.touches[SequenceSlot(sequence)]
		if !ok {
			return PointerState{}, false
		}
		return PointerState{
			X:         ts.x,
			Y:         ts.y,
			Modifiers: keymap.TranslateState(s.xkb, 0),
		}, true
	}

	if dev == nil {
		dev = s.corePointer
	}
	return PointerState{
		X:         dev.x,
		Y:         dev.y,
		Modifiers: keymap.TranslateState(s.xkb, s.buttonState),
	}, true
}
