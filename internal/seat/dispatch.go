package seat

import (
	"fmt"

	"github.com/bnema/inputseat/internal/backend"
)

func (s *Seat) processEvent(ev backend.Event) {
	switch e := ev.(type) {
	case backend.DeviceAdded:
		s.addDeviceLocked(e)
		return
	case backend.DeviceRemoved:
		s.removeDeviceLocked(e)
		return
	}

	dev, ok := s.byRaw[ev.Device()]
	if !ok {
		s.log.Debug("Dropping event from unknown device", "device", ev.Device())
		s.drop("unknown_device")
		return
	}
	s.processDeviceEvent(dev, ev)
}

// seatWideTransition reports whether a press or release changes the state
// of the whole seat, given how many devices hold the code afterwards.
func seatWideTransition(pressed bool, seatCount uint32) bool {
	if pressed {
		return seatCount == 1
	}
	return seatCount == 0
}

func (s *Seat) processDeviceEvent(dev *Device, ev backend.Event) {
	switch e := ev.(type) {
	case backend.Key:
		if !seatWideTransition(e.Pressed, e.SeatCount) {
			s.log.Debug("Dropping key that is not a seat-wide change",
				"code", e.Code, "pressed", e.Pressed, "seat_count", e.SeatCount)
			s.drop("seat_count")
			return
		}
		s.notifyKeyLocked(dev, e.TimeUsec, e.Code, keyStateOf(e.Pressed), true)

	case backend.PointerMotion:
		s.notifyRelativeMotionLocked(dev, e.TimeUsec, e.DX, e.DY, e.DXUnaccel, e.DYUnaccel)

	case backend.PointerMotionAbsolute:
		w, h := s.extentsLocked()
		s.notifyAbsoluteMotionLocked(dev, e.TimeUsec, e.X*w, e.Y*h, nil)

	case backend.PointerButton:
		if !seatWideTransition(e.Pressed, e.SeatCount) {
			s.log.Debug("Dropping button that is not a seat-wide change",
				"code", e.Code, "pressed", e.Pressed, "seat_count", e.SeatCount)
			s.drop("seat_count")
			return
		}
		s.notifyButtonLocked(dev, e.TimeUsec, e.Code, e.Pressed)

	case backend.PointerAxis:
		s.processAxisLocked(dev, e)

	case backend.TouchDown:
		s.touchDownLocked(dev, e)
	case backend.TouchMotion:
		s.touchMotionLocked(dev, e)
	case backend.TouchUp:
		s.touchEndLocked(dev, e.TimeUsec, e.Slot, TouchEnd)
	case backend.TouchCancel:
		s.touchEndLocked(dev, e.TimeUsec, e.Slot, TouchCancel)
	case backend.TouchFrame:
		// contacts are tracked per event

	case backend.GesturePinch:
		s.processPinchLocked(dev, e)
	case backend.GestureSwipe:
		s.processSwipeLocked(dev, e)

	case backend.TabletToolAxis:
		s.ensureToolLocked(dev, e.Tool)
		s.processTabletAxisLocked(dev, e.TimeUsec, e.Axes)
	case backend.TabletToolProximity:
		s.processProximityLocked(dev, e)
	case backend.TabletToolTip:
		s.processTipLocked(dev, e)
	case backend.TabletToolButton:
		s.ensureToolLocked(dev, e.Tool)
		s.processTabletAxisLocked(dev, e.TimeUsec, e.Axes)
		s.notifyButtonLocked(dev, e.TimeUsec, e.Button, e.Pressed)

	case backend.TabletPadButton:
		s.queueEvent(&PadButtonEvent{
			EventHeader: s.padHeader(dev, e.TimeUsec),
			Pressed:     e.Pressed,
			Button:      e.Button,
			Group:       e.Group,
			Mode:        e.Mode,
		})
	case backend.TabletPadStrip:
		s.queueEvent(&PadStripEvent{
			EventHeader: s.padHeader(dev, e.TimeUsec),
			Number:      e.Number,
			Value:       e.Position,
			Source:      e.Source,
			Group:       e.Group,
			Mode:        e.Mode,
		})
	case backend.TabletPadRing:
		s.queueEvent(&PadRingEvent{
			EventHeader: s.padHeader(dev, e.TimeUsec),
			Number:      e.Number,
			Angle:       e.Angle,
			Source:      e.Source,
			Group:       e.Group,
			Mode:        e.Mode,
		})

	case backend.SwitchToggle:
		switch e.Switch {
		case backend.SwitchTabletMode:
			s.tabletModeOn = e.On
			s.updateTouchModeLocked()
		case backend.SwitchLid:
			s.log.Debug("Lid switch toggled", "device", dev, "closed", e.On)
		}

	default:
		s.log.Debug("Unhandled backend event", "type", fmt.Sprintf("%T", ev))
		s.drop("unhandled")
	}
}

// Pad events are delivered through the pad itself and carry no pointer
// position or modifiers.
func (s *Seat) padHeader(dev *Device, timeUsec uint64) EventHeader {
	return EventHeader{TimeUsec: timeUsec, Device: dev, Source: dev}
}

// extentsLocked is the area normalized absolute positions map onto. With
// no monitor layout that is a default-sized screen at the origin.
func (s *Seat) extentsLocked() (float64, float64) {
	if s.viewports != nil {
		if w, h := s.viewports.Extents(); w > 0 && h > 0 {
			return w, h
		}
	}
	return DefaultExtentWidth, DefaultExtentHeight
}
