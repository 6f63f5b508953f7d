package seat

import (
	"github.com/bnema/inputseat/internal/backend"
)

func (s *Seat) addDeviceLocked(e backend.DeviceAdded) {
	raw := e.Device()
	if raw == nil {
		return
	}
	if _, ok := s.byRaw[raw]; ok {
		s.log.Debug("Device added twice", "device", raw)
		return
	}

	typ := classify(raw)
	dev := newDevice(s.ids.acquire(), raw.Name, typ, ModePhysical)
	dev.raw = raw
	dev.tabletSwitch = raw.Has(backend.CapSwitch) && raw.HasTabletModeSwitch

	// Device types are exclusive, so only pure pointers and keyboards
	// become satellites of a core device
	switch typ {
	case KeyboardDevice:
		dev.core = s.coreKeyboard
	case PointerDevice:
		dev.core = s.corePointer
	}

	s.devices = append([]*Device{dev}, s.devices...)
	s.byRaw[raw] = dev
	s.metrics.devices.Set(float64(len(s.devices)))
	s.log.Info("Device added", "id", dev.id, "name", dev.name, "type", typ, "caps", raw.Capabilities)

	isTouchscreen := typ == TouchscreenDevice
	if isTouchscreen {
		s.hasTouchscreen = true
	}
	if dev.tabletSwitch {
		s.hasTabletSwitch = true
	}
	if isTouchscreen || dev.tabletSwitch {
		s.updateTouchModeLocked()
	}

	s.queueEvent(&DeviceEvent{
		EventHeader: EventHeader{TimeUsec: e.TimeUsec, Device: dev, Source: dev},
		Added:       true,
	})
}

func (s *Seat) removeDeviceLocked(e backend.DeviceRemoved) {
	dev, ok := s.byRaw[e.Device()]
	if !ok {
		s.log.Debug("Removal of unknown device", "device", e.Device())
		return
	}

	delete(s.byRaw, dev.raw)
	for i, d := range s.devices {
		if d == dev {
			s.devices = append(s.devices[:i], s.devices[i+1:]...)
			break
		}
	}
	s.metrics.devices.Set(float64(len(s.devices)))
	s.log.Info("Device removed", "id", dev.id, "name", dev.name)

	s.queueEvent(&DeviceEvent{
		EventHeader: EventHeader{TimeUsec: e.TimeUsec, Device: dev, Source: dev},
		Added:       false,
	})

	// Other devices may share the capability, so rescan
	isTouchscreen := dev.typ == TouchscreenDevice
	if isTouchscreen {
		s.hasTouchscreen = s.anyDeviceLocked(func(d *Device) bool { return d.typ == TouchscreenDevice })
	}
	if dev.tabletSwitch {
		s.hasTabletSwitch = s.anyDeviceLocked(func(d *Device) bool { return d.tabletSwitch })
	}
	if isTouchscreen || dev.tabletSwitch {
		s.updateTouchModeLocked()
	}

	if s.repeatTimer != nil && s.repeatDevice == dev {
		s.clearRepeatTimerLocked()
	}
}

func (s *Seat) anyDeviceLocked(match func(*Device) bool) bool {
	for _, d := range s.devices {
		if match(d) {
			return true
		}
	}
	return false
}

// updateTouchModeLocked recomputes touch-mode and reports it only when it
// changes
func (s *Seat) updateTouchModeLocked() {
	var touchMode bool
	switch {
	case !s.hasTouchscreen:
		touchMode = false
	case s.hasTabletSwitch && !s.tabletModeOn:
		touchMode = false
	default:
		// Tablet mode on, or no switch at all (kiosks)
		touchMode = true
	}

	if touchMode == s.touchMode {
		return
	}
	s.touchMode = touchMode
	if touchMode {
		s.metrics.touchMode.Set(1)
	} else {
		s.metrics.touchMode.Set(0)
	}
	if cb := s.callbacks.TouchModeChanged; cb != nil {
		s.pending = append(s.pending, func() { cb(touchMode) })
	}
}

// HasTouchscreen reports whether a touchscreen is attached
func (s *Seat) HasTouchscreen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasTouchscreen
}

// HasTabletSwitch reports whether a device with a tablet-mode switch is attached
func (s *Seat) HasTabletSwitch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasTabletSwitch
}
