package seat

import (
	"math"

	"github.com/bnema/inputseat/internal/backend"
	"github.com/bnema/inputseat/internal/keymap"
)

// DiscreteScrollStep is the smooth scroll distance of one wheel notch
const DiscreteScrollStep = 10.0

// axisEpsilon is the float64 machine epsilon. Smaller axis values mean the
// axis stopped.
var axisEpsilon = math.Nextafter(1, 2) - 1

func (s *Seat) processAxisLocked(dev *Device, e backend.PointerAxis) {
	switch e.Source {
	case backend.AxisSourceWheel:
		var dx, dy float64
		if e.HasHorizontal {
			dx = e.DiscreteHorizontal
		}
		if e.HasVertical {
			dy = e.DiscreteVertical
		}
		s.notifyDiscreteScrollLocked(dev, e.TimeUsec, dx, dy, e.Source)

	default:
		var dx, dy float64
		var finish ScrollFinish
		if e.HasHorizontal {
			dx = e.Horizontal
			if math.Abs(dx) < axisEpsilon {
				finish |= FinishHorizontal
			}
		}
		if e.HasVertical {
			dy = e.Vertical
			if math.Abs(dy) < axisEpsilon {
				finish |= FinishVertical
			}
		}
		s.notifyScrollContinuousLocked(dev, e.TimeUsec, dx, dy, e.Source, finish)
	}
}

func (s *Seat) scrollHeader(dev *Device, timeUsec uint64) EventHeader {
	return EventHeader{
		TimeUsec:  timeUsec,
		Device:    s.corePointer,
		Source:    dev,
		Modifiers: keymap.TranslateState(s.xkb, s.buttonState),
	}
}

// notifySmoothScrollLocked emits a smooth scroll event. Deltas are given in
// pointer motion units and reported in notches.
func (s *Seat) notifySmoothScrollLocked(dev *Device, timeUsec uint64, dx, dy float64, source backend.AxisSource, finish ScrollFinish, emulated bool) {
	ev := &ScrollEvent{
		EventHeader: s.scrollHeader(dev, timeUsec),
		Direction:   ScrollSmooth,
		DX:          dx / DiscreteScrollStep,
		DY:          dy / DiscreteScrollStep,
		X:           s.pointerX,
		Y:           s.pointerY,
		Source:      source,
		Finish:      finish,
	}
	if emulated {
		ev.Flags |= FlagEmulated
	}
	s.queueEvent(ev)
}

func (s *Seat) notifyNotchLocked(dev *Device, timeUsec uint64, dir ScrollDirection, source backend.AxisSource, emulated bool) {
	if dir == ScrollSmooth {
		return
	}
	ev := &ScrollEvent{
		EventHeader: s.scrollHeader(dev, timeUsec),
		Direction:   dir,
		X:           s.pointerX,
		Y:           s.pointerY,
		Source:      source,
	}
	if emulated {
		ev.Flags |= FlagEmulated
	}
	s.queueEvent(ev)
}

// notifyScrollContinuousLocked emits the smooth event and then one notch
// for every whole step accumulated on either axis. The remainder is kept
// so slow scrolling still produces notches.
func (s *Seat) notifyScrollContinuousLocked(dev *Device, timeUsec uint64, dx, dy float64, source backend.AxisSource, finish ScrollFinish) {
	if finish&FinishHorizontal != 0 {
		s.accumScrollX = 0
	} else {
		s.accumScrollX += dx
	}
	if finish&FinishVertical != 0 {
		s.accumScrollY = 0
	} else {
		s.accumScrollY += dy
	}

	s.notifySmoothScrollLocked(dev, timeUsec, dx, dy, source, finish, false)

	nx := int(math.Floor(math.Abs(s.accumScrollX) / DiscreteScrollStep))
	ny := int(math.Floor(math.Abs(s.accumScrollY) / DiscreteScrollStep))

	dirX := ScrollLeft
	if s.accumScrollX > 0 {
		dirX = ScrollRight
	}
	for i := 0; i < nx; i++ {
		s.notifyNotchLocked(dev, timeUsec, dirX, source, true)
	}

	dirY := ScrollUp
	if s.accumScrollY > 0 {
		dirY = ScrollDown
	}
	for i := 0; i < ny; i++ {
		s.notifyNotchLocked(dev, timeUsec, dirY, source, true)
	}

	s.accumScrollX = math.Mod(s.accumScrollX, DiscreteScrollStep)
	s.accumScrollY = math.Mod(s.accumScrollY, DiscreteScrollStep)
}

// addWheel adds a discrete axis value to a wheel accumulator and returns
// the whole notches it now holds. A change of direction starts over.
func addWheel(acc *float64, v float64) int {
	if v == 0 {
		return 0
	}
	if *acc != 0 && math.Signbit(*acc) != math.Signbit(v) {
		*acc = 0
	}
	*acc += v
	n := math.Trunc(*acc)
	*acc -= n
	return int(math.Abs(n))
}

// notifyDiscreteScrollLocked reports wheel notches both as a smooth event,
// for clients that only understand smooth scrolling, and as notches.
// Fractions of a notch wait in the wheel accumulator until a whole notch
// is reached. Horizontal wins when both axes complete a notch.
func (s *Seat) notifyDiscreteScrollLocked(dev *Device, timeUsec uint64, dx, dy float64, source backend.AxisSource) {
	s.notifySmoothScrollLocked(dev, timeUsec,
		dx*DiscreteScrollStep, dy*DiscreteScrollStep,
		source, 0, true)

	nx := addWheel(&s.accumWheelX, dx)
	ny := addWheel(&s.accumWheelY, dy)

	dir, n := ScrollDown, ny
	if dy < 0 {
		dir = ScrollUp
	}
	if nx > 0 {
		dir, n = ScrollRight, nx
		if dx < 0 {
			dir = ScrollLeft
		}
	}
	for i := 0; i < n; i++ {
		s.notifyNotchLocked(dev, timeUsec, dir, source, false)
	}
}

// WheelRemainder returns the fraction of a wheel notch pending on each
// axis
func (s *Seat) WheelRemainder() (dx, dy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accumWheelX, s.accumWheelY
}

// ScrollRemainder returns the sub-notch scroll distance accumulated on
// each axis
func (s *Seat) ScrollRemainder() (dx, dy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accumScrollX, s.accumScrollY
}
