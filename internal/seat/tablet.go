package seat

import (
	evdev "github.com/gvalkov/golang-evdev"

	"github.com/bnema/inputseat/internal/backend"
)

// updateToolLocked makes tool the device's active tool, creating it on
// first sight. A nil id clears the active tool.
func (s *Seat) updateToolLocked(dev *Device, id *backend.ToolID) {
	var tool *Tool
	if id != nil {
		if dev.tools == nil {
			dev.tools = make(map[backend.ToolID]*Tool)
		}
		tool = dev.tools[*id]
		if tool == nil {
			tool = newTool(*id)
			dev.tools[*id] = tool
		}
	}

	if dev.lastTool == tool {
		return
	}
	dev.lastTool = tool
	if cb := s.callbacks.ToolChanged; cb != nil {
		s.pending = append(s.pending, func() { cb(dev, tool) })
	}
}

// ensureToolLocked adopts the event's tool when no tool is in proximity,
// which happens for tools already near the tablet when it was attached.
func (s *Seat) ensureToolLocked(dev *Device, id backend.ToolID) {
	if dev.lastTool == nil {
		s.updateToolLocked(dev, &id)
	}
}

// relativeTool reports whether the device's motion drives the shared pointer
// by deltas rather than positions
func relativeTool(dev *Device) bool {
	if dev.mapping == MappingRelative {
		return true
	}
	if dev.lastTool == nil {
		return false
	}
	t := dev.lastTool.Type()
	return t == backend.ToolMouse || t == backend.ToolLens
}

func (s *Seat) processTabletAxisLocked(dev *Device, timeUsec uint64, axes backend.TabletAxes) {
	if relativeTool(dev) {
		s.notifyRelativeToolMotionLocked(dev, timeUsec, axes.DX, axes.DY, &axes)
		return
	}

	w, h := s.extentsLocked()
	s.notifyAbsoluteMotionLocked(dev, timeUsec, axes.X*w, axes.Y*h, &axes)
}

// notifyRelativeToolMotionLocked moves the shared pointer by a tool's deltas
func (s *Seat) notifyRelativeToolMotionLocked(dev *Device, timeUsec uint64, dx, dy float64, axes *backend.TabletAxes) {
	s.filterRelativeMotionLocked(s.pointerX, s.pointerY, &dx, &dy)

	ev := s.newAbsoluteMotionEventLocked(dev, timeUsec, s.pointerX+dx, s.pointerY+dy, axes, true)
	ev.Relative = true
	ev.DX, ev.DY = dx, dy
	s.queueEvent(ev)
}

func (s *Seat) notifyProximityLocked(dev *Device, timeUsec uint64, in bool) {
	s.queueEvent(&ProximityEvent{
		EventHeader: EventHeader{
			TimeUsec: timeUsec,
			Device:   s.corePointer,
			Source:   dev,
		},
		In:   in,
		Tool: dev.lastTool,
	})
}

// processProximityLocked keeps the tool active for the whole proximity
// sequence: it is set before proximity-in and cleared after proximity-out.
func (s *Seat) processProximityLocked(dev *Device, e backend.TabletToolProximity) {
	if e.In {
		s.updateToolLocked(dev, &e.Tool)
	}
	s.notifyProximityLocked(dev, e.TimeUsec, e.In)
	if !e.In {
		s.updateToolLocked(dev, nil)
	}
}

// processTipLocked reports axes before tip down and after tip up so the
// contact never carries stale pressure or position.
func (s *Seat) processTipLocked(dev *Device, e backend.TabletToolTip) {
	s.ensureToolLocked(dev, e.Tool)

	if e.Down {
		s.processTabletAxisLocked(dev, e.TimeUsec, e.Axes)
	}
	s.notifyButtonLocked(dev, e.TimeUsec, evdev.BTN_TOUCH, e.Down)
	if !e.Down {
		s.processTabletAxisLocked(dev, e.TimeUsec, e.Axes)
	}
}
