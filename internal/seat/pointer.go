package seat

import (
	"fmt"

	evdev "github.com/gvalkov/golang-evdev"

	"github.com/bnema/inputseat/internal/backend"
	"github.com/bnema/inputseat/internal/keymap"
	"github.com/bnema/inputseat/internal/viewport"
)

// PointerConstraint is an exclusive policy restricting pointer motion, such
// as a lock or a confinement region.
type PointerConstraint interface {
	// Constrain may move the candidate position (x, y). prevX and prevY are
	// where the pointer was before the motion.
	Constrain(timeUsec uint64, prevX, prevY float64, x, y *float64)
	// EnsureConstrained returns the position the pointer must be moved to
	// when the constraint is installed.
	EnsureConstrained(x, y float64) (float64, float64)
}

// SetPointerConstraint installs c, or removes the current constraint when
// c is nil. The pointer is pulled into the constraint's area at once;
// installing a constraint again only repeats that.
func (s *Seat) SetPointerConstraint(c PointerConstraint) {
	s.mu.Lock()
	defer s.unlock()

	s.constraint = c
	if c == nil {
		return
	}

	x, y := c.EnsureConstrained(s.pointerX, s.pointerY)
	if x != s.pointerX || y != s.pointerY {
		s.notifyAbsoluteMotionLocked(s.corePointer, 0, x, y, nil)
	}
}

// constrainPointerLocked runs the constraint chain: barriers, then the
// installed constraint, then the monitor layout.
func (s *Seat) constrainPointerLocked(timeUsec uint64, prevX, prevY float64, x, y *float64) {
	if s.barriers != nil {
		s.barriers.Process(timeUsec, prevX, prevY, x, y)
	}
	if s.constraint != nil {
		s.constraint.Constrain(timeUsec, prevX, prevY, x, y)
	}
	if s.viewports == nil || s.viewports.NumViews() == 0 {
		return
	}

	// Moving inside a monitor is fine
	if s.viewports.ViewAt(*x, *y) >= 0 {
		return
	}
	s.constrainToCurrentViewLocked(x, y)
}

// constrainToCurrentViewLocked clamps (x, y) to the view the core pointer
// is currently on.
func (s *Seat) constrainToCurrentViewLocked(x, y *float64) {
	cx, cy := s.corePointer.x, s.corePointer.y

	for i := 0; i < s.viewports.NumViews(); i++ {
		v, _ := s.viewports.View(i)
		l, t, r, b := v.Bounds()
		left, top, right, bottom := float64(l), float64(t), float64(r), float64(b)

		if cx < left || cx >= right || cy < top || cy >= bottom {
			continue
		}
		if *x < left {
			*x = left
		}
		if *x >= right {
			*x = right - 1
		}
		if *y < top {
			*y = top
		}
		if *y >= bottom {
			*y = bottom - 1
		}
		return
	}
}

// filterRelativeMotionLocked rescales a motion delta for the scale of the
// view it starts on, walking view by view when it crosses into another.
func (s *Seat) filterRelativeMotionLocked(x, y float64, dx, dy *float64) {
	if s.viewports == nil || s.viewports.Scaled() {
		return
	}
	view := s.viewports.ViewAt(x, y)
	if view < 0 {
		return
	}

	v, _ := s.viewports.View(view)
	newDX := *dx * v.Scale
	newDY := *dy * v.Scale

	dest := s.viewports.ViewAt(x+newDX, y+newDY)
	if dest >= 0 && dest != view {
		newDX, newDY = *dx, *dy
		relativeMotionAcrossViews(s.viewports, view, x, y, &newDX, &newDY)
	}

	*dx, *dy = newDX, newDY
}

// relativeMotionAcrossViews follows the motion segment through each view
// edge it crosses, applying each view's scale to the part of the delta
// spent inside it. It never re-crosses the edge it just came through.
func relativeMotionAcrossViews(layout *viewport.Layout, view int, curX, curY float64, dxInOut, dyInOut *float64) {
	x, y := curX, curY
	targetX, targetY := curX, curY
	dx, dy := *dxInOut, *dyInOut
	direction := viewport.Direction(-1)

	// Each step moves to a different view, so a layout can't need more
	// steps than it has edges
	for steps := 0; view >= 0 && steps <= 4*layout.NumViews(); steps++ {
		v, _ := layout.View(view)
		left, top, right, bottom := v.Bounds()
		l, t, r, b := float64(left), float64(top), float64(right), float64(bottom)

		motion := viewport.Line{
			A: viewport.Point{X: x, Y: y},
			B: viewport.Point{X: x + dx*v.Scale, Y: y + dy*v.Scale},
		}
		targetX, targetY = motion.B.X, motion.B.Y

		edges := []struct {
			dir     viewport.Direction
			reverse viewport.Direction
			line    viewport.Line
		}{
			{viewport.Left, viewport.Right, viewport.Line{A: viewport.Point{X: l, Y: t}, B: viewport.Point{X: l, Y: b}}},
			{viewport.Right, viewport.Left, viewport.Line{A: viewport.Point{X: r, Y: t}, B: viewport.Point{X: r, Y: b}}},
			{viewport.Up, viewport.Down, viewport.Line{A: viewport.Point{X: l, Y: t}, B: viewport.Point{X: r, Y: t}}},
			{viewport.Down, viewport.Up, viewport.Line{A: viewport.Point{X: l, Y: b}, B: viewport.Point{X: r, Y: b}}},
		}

		crossed := false
		var at viewport.Point
		for _, e := range edges {
			if direction == e.reverse {
				continue
			}
			p, ok := motion.Intersect(e.line)
			if !ok {
				continue
			}
			direction = e.dir
			at = p
			crossed = true
			break
		}
		if !crossed {
			// Reached the destination view
			break
		}

		x, y = at.X, at.Y
		dx -= (at.X - motion.A.X) / v.Scale
		dy -= (at.Y - motion.A.Y) / v.Scale
		view = layout.Neighbor(view, direction)
	}

	*dxInOut = targetX - curX
	*dyInOut = targetY - curY
}

func (s *Seat) notifyRelativeMotionLocked(dev *Device, timeUsec uint64, dx, dy, dxUnaccel, dyUnaccel float64) {
	s.filterRelativeMotionLocked(s.pointerX, s.pointerY, &dx, &dy)

	ev := s.newAbsoluteMotionEventLocked(dev, timeUsec, s.pointerX+dx, s.pointerY+dy, nil, true)
	ev.Relative = true
	ev.DX, ev.DY = dx, dy
	ev.DXUnaccel, ev.DYUnaccel = dxUnaccel, dyUnaccel
	s.queueEvent(ev)
}

func (s *Seat) notifyAbsoluteMotionLocked(dev *Device, timeUsec uint64, x, y float64, axes *backend.TabletAxes) {
	ev := s.newAbsoluteMotionEventLocked(dev, timeUsec, x, y, axes, dev.typ != TabletDevice)
	s.queueEvent(ev)
}

// newAbsoluteMotionEventLocked moves a pointer to (x, y). shared motion
// goes through the constraint chain and moves the seat pointer; tablets
// in absolute mode only move their own position.
func (s *Seat) newAbsoluteMotionEventLocked(dev *Device, timeUsec uint64, x, y float64, axes *backend.TabletAxes, shared bool) *MotionEvent {
	if shared {
		s.constrainPointerLocked(timeUsec, s.pointerX, s.pointerY, &x, &y)
	}

	ev := &MotionEvent{
		EventHeader: EventHeader{
			TimeUsec:  timeUsec,
			Device:    s.corePointer,
			Source:    dev,
			Modifiers: keymap.TranslateState(s.xkb, s.buttonState),
		},
		X:    x,
		Y:    y,
		Axes: axes,
	}
	w, h := s.extentsLocked()
	dev.transform(w, h, &ev.X, &ev.Y)

	if dev.typ == TabletDevice {
		ev.Tool = dev.lastTool
		ev.Device = dev
		dev.x, dev.y = x, y
	}
	if shared {
		s.corePointer.x, s.corePointer.y = x, y
		s.pointerX, s.pointerY = x, y
	}
	return ev
}

// btnStylus3 is missing from older kernel headers
const btnStylus3 = 0x149

// ButtonNumber maps an evdev button code to a logical button number.
// Buttons beyond the classic five come after the 4-7 scroll buttons.
func ButtonNumber(code uint32, tablet bool) int {
	switch code {
	case evdev.BTN_LEFT, evdev.BTN_TOUCH:
		return 1
	case evdev.BTN_RIGHT, evdev.BTN_STYLUS:
		return 3
	case evdev.BTN_MIDDLE, evdev.BTN_STYLUS2:
		return 2
	case btnStylus3:
		return 8
	}
	if tablet {
		return int(code) - evdev.BTN_TOOL_PEN + 4
	}
	return int(code) - (evdev.BTN_LEFT - 1) + 4
}

func (s *Seat) notifyButtonLocked(dev *Device, timeUsec uint64, code uint32, pressed bool) {
	// Drop any repeated press, for example from virtual devices
	count := s.updateButtonCount(code, pressed)
	if (pressed && count > 1) || (!pressed && count != 0) {
		s.log.Debug("Dropping repeated button transition",
			"code", fmt.Sprintf("0x%x", code), "pressed", pressed, "count", count)
		s.drop("duplicate")
		return
	}

	isTablet := dev.typ == TabletDevice
	button := ButtonNumber(code, isTablet)
	if button < 1 || button > 12 {
		s.log.Warn("Unhandled button event", "code", fmt.Sprintf("0x%x", code))
		s.drop("unknown_button")
		return
	}

	if button <= len(keymap.ButtonMasks) {
		if pressed {
			s.buttonState |= keymap.ButtonMasks[button-1]
		} else {
			s.buttonState &^= keymap.ButtonMasks[button-1]
		}
	}

	ev := &ButtonEvent{
		EventHeader: EventHeader{
			TimeUsec:  timeUsec,
			Device:    s.corePointer,
			Source:    dev,
			Modifiers: keymap.TranslateState(s.xkb, s.buttonState),
		},
		Pressed: pressed,
		Button:  button,
		Code:    code,
		X:       s.pointerX,
		Y:       s.pointerY,
	}

	if tool := dev.lastTool; tool != nil {
		if mapped := tool.buttonCode(button); mapped != 0 {
			ev.Code = mapped
		}
	}
	if isTablet {
		ev.X, ev.Y = dev.x, dev.y
		ev.Tool = dev.lastTool
		ev.Device = dev
	}

	s.queueEvent(ev)
}
