package seat

import (
	"github.com/bnema/inputseat/internal/backend"
	"github.com/bnema/inputseat/internal/keymap"
)

func gesturePhase(phase backend.GesturePhase, cancelled bool) GesturePhase {
	switch phase {
	case backend.GestureBegin:
		return GestureBegin
	case backend.GestureUpdate:
		return GestureUpdate
	}
	if cancelled {
		return GestureCancel
	}
	return GestureEnd
}

func (s *Seat) gestureHeader(dev *Device, timeUsec uint64) EventHeader {
	return EventHeader{
		TimeUsec:  timeUsec,
		Device:    s.corePointer,
		Source:    dev,
		Modifiers: keymap.TranslateState(s.xkb, s.buttonState),
	}
}

// processPinchLocked reports a pinch at the core pointer. Only updates carry
// deltas, scale and rotation.
func (s *Seat) processPinchLocked(dev *Device, e backend.GesturePinch) {
	ev := &PinchEvent{
		EventHeader: s.gestureHeader(dev, e.TimeUsec),
		Phase:       gesturePhase(e.Phase, e.Cancelled),
		Fingers:     e.Fingers,
		X:           s.corePointer.x,
		Y:           s.corePointer.y,
	}
	if ev.Phase == GestureUpdate {
		ev.DX, ev.DY = e.DX, e.DY
		ev.AngleDelta = e.AngleDelta
		ev.Scale = e.Scale
	}
	s.queueEvent(ev)
}

func (s *Seat) processSwipeLocked(dev *Device, e backend.GestureSwipe) {
	ev := &SwipeEvent{
		EventHeader: s.gestureHeader(dev, e.TimeUsec),
		Phase:       gesturePhase(e.Phase, e.Cancelled),
		Fingers:     e.Fingers,
		X:           s.corePointer.x,
		Y:           s.corePointer.y,
	}
	if ev.Phase == GestureUpdate {
		ev.DX, ev.DY = e.DX, e.DY
	}
	s.queueEvent(ev)
}
