package seat

import (
	"errors"
	"fmt"

	evdev "github.com/gvalkov/golang-evdev"
	"github.com/jonboulle/clockwork"

	"github.com/bnema/inputseat/internal/backend"
)

// VirtualTouchSlots is the number of touch slots each virtual device owns
const VirtualTouchSlots = 0x20

// virtual slot ranges start above anything a touchscreen reports
const virtualSlotFloor = 0x100

var (
	ErrUnsupportedDevice = errors.New("unsupported virtual device type")
	ErrInvalidSlot       = errors.New("touch slot out of range")
	ErrSlotInUse         = errors.New("touch slot already in use")
	ErrUnknownSlot       = errors.New("touch slot not active")
	ErrVirtualClosed     = errors.New("virtual device closed")
)

// VirtualDevice injects events into the seat as if they came from a
// device. Keys and buttons it holds are released when it is closed.
type VirtualDevice struct {
	seat     *Seat
	dev      *Device
	slotBase int
	held     map[uint32]bool
	slots    map[int]bool
	closed   bool
}

// bumpVirtualSlotBaseLocked returns the next free slot range
func (s *Seat) bumpVirtualSlotBaseLocked() int {
	for {
		if s.virtualSlotBase < virtualSlotFloor {
			s.virtualSlotBase = virtualSlotFloor
		}
		s.virtualSlotBase += VirtualTouchSlots
		if !s.reservedSlots[s.virtualSlotBase] {
			return s.virtualSlotBase
		}
	}
}

// CreateVirtualDevice adds a software driven keyboard, pointer or
// touchscreen to the seat.
func (s *Seat) CreateVirtualDevice(typ DeviceType) (*VirtualDevice, error) {
	switch typ {
	case KeyboardDevice, PointerDevice, TouchscreenDevice:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDevice, typ)
	}

	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return nil, ErrClosed
	}

	base := s.bumpVirtualSlotBaseLocked()
	s.reservedSlots[base] = true

	id := s.ids.acquire()
	dev := newDevice(id, fmt.Sprintf("Virtual %s %d", typ, id), typ, ModePhysical)
	dev.virtual = true
	switch typ {
	case KeyboardDevice:
		dev.core = s.coreKeyboard
	case PointerDevice:
		dev.core = s.corePointer
	}
	dev.x, dev.y = s.pointerX, s.pointerY

	s.devices = append([]*Device{dev}, s.devices...)
	s.log.Debug("Virtual device created", "id", id, "type", typ, "slot_base", base)
	s.queueEvent(&DeviceEvent{
		EventHeader: EventHeader{TimeUsec: nowUsec(s.clock), Device: dev, Source: dev},
		Added:       true,
	})

	return &VirtualDevice{
		seat:     s,
		dev:      dev,
		slotBase: base,
		held:     make(map[uint32]bool),
		slots:    make(map[int]bool),
	}, nil
}

func nowUsec(c clockwork.Clock) uint64 {
	return uint64(c.Now().UnixMicro())
}

// Device returns the seat device events are reported from
func (v *VirtualDevice) Device() *Device { return v.dev }

// SlotBase returns the first seat slot owned by the device
func (v *VirtualDevice) SlotBase() int { return v.slotBase }

// lock takes the seat lock; callers must defer v.seat.unlock()
func (v *VirtualDevice) lock() error {
	v.seat.mu.Lock()
	if v.closed {
		return ErrVirtualClosed
	}
	if v.seat.closed {
		return ErrClosed
	}
	return nil
}

// holdLocked tracks the device's own presses so it cannot press a code it
// already holds or release one it does not
func (v *VirtualDevice) holdLocked(code uint32, pressed bool) bool {
	if v.held[code] == pressed {
		v.seat.log.Warn("Ignoring virtual transition that does not change state",
			"device", v.dev, "code", fmt.Sprintf("0x%x", code), "pressed", pressed)
		return false
	}
	if pressed {
		v.held[code] = true
	} else {
		delete(v.held, code)
	}
	return true
}

// NotifyKey presses or releases an evdev key code
func (v *VirtualDevice) NotifyKey(timeUsec uint64, code uint32, pressed bool) error {
	defer v.seat.unlock()
	if err := v.lock(); err != nil {
		return err
	}
	if v.holdLocked(code, pressed) {
		v.seat.notifyKeyLocked(v.dev, timeUsec, code, keyStateOf(pressed), true)
	}
	return nil
}

// NotifyButton presses or releases an evdev button code
func (v *VirtualDevice) NotifyButton(timeUsec uint64, code uint32, pressed bool) error {
	defer v.seat.unlock()
	if err := v.lock(); err != nil {
		return err
	}
	if v.holdLocked(code, pressed) {
		v.seat.notifyButtonLocked(v.dev, timeUsec, code, pressed)
	}
	return nil
}

func (v *VirtualDevice) NotifyRelativeMotion(timeUsec uint64, dx, dy float64) error {
	defer v.seat.unlock()
	if err := v.lock(); err != nil {
		return err
	}
	v.seat.notifyRelativeMotionLocked(v.dev, timeUsec, dx, dy, dx, dy)
	return nil
}

// NotifyAbsoluteMotion moves the pointer to a position in layout pixels
func (v *VirtualDevice) NotifyAbsoluteMotion(timeUsec uint64, x, y float64) error {
	defer v.seat.unlock()
	if err := v.lock(); err != nil {
		return err
	}
	v.seat.notifyAbsoluteMotionLocked(v.dev, timeUsec, x, y, nil)
	return nil
}

// NotifyDiscreteScroll scrolls one notch in dir
func (v *VirtualDevice) NotifyDiscreteScroll(timeUsec uint64, dir ScrollDirection, source backend.AxisSource) error {
	var dx, dy float64
	switch dir {
	case ScrollUp:
		dy = -1
	case ScrollDown:
		dy = 1
	case ScrollLeft:
		dx = -1
	case ScrollRight:
		dx = 1
	default:
		return fmt.Errorf("not a discrete direction: %s", dir)
	}

	defer v.seat.unlock()
	if err := v.lock(); err != nil {
		return err
	}
	v.seat.notifyDiscreteScrollLocked(v.dev, timeUsec, dx, dy, source)
	return nil
}

func (v *VirtualDevice) NotifyScrollContinuous(timeUsec uint64, dx, dy float64, source backend.AxisSource, finish ScrollFinish) error {
	defer v.seat.unlock()
	if err := v.lock(); err != nil {
		return err
	}
	v.seat.notifyScrollContinuousLocked(v.dev, timeUsec, dx, dy, source, finish)
	return nil
}

func (v *VirtualDevice) checkSlot(slot int) error {
	if slot < 0 || slot >= VirtualTouchSlots {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	return nil
}

// NotifyTouchDown starts a contact at a position in layout pixels. slot is
// relative to the device's own range.
func (v *VirtualDevice) NotifyTouchDown(timeUsec uint64, slot int, x, y float64) error {
	if err := v.checkSlot(slot); err != nil {
		return err
	}

	defer v.seat.unlock()
	if err := v.lock(); err != nil {
		return err
	}
	if v.slots[slot] {
		return fmt.Errorf("%w: %d", ErrSlotInUse, slot)
	}

	ts := v.seat.acquireTouchLocked(v.dev, v.slotBase+slot)
	ts.x, ts.y = x, y
	v.slots[slot] = true
	v.seat.notifyTouchLocked(v.dev, TouchBegin, timeUsec, ts.slot, x, y)
	return nil
}

func (v *VirtualDevice) NotifyTouchMotion(timeUsec uint64, slot int, x, y float64) error {
	if err := v.checkSlot(slot); err != nil {
		return err
	}

	defer v.seat.unlock()
	if err := v.lock(); err != nil {
		return err
	}
	ts, ok := v.seat.touches[v.slotBase+slot]
	if !ok || !v.slots[slot] {
		return fmt.Errorf("%w: %d", ErrUnknownSlot, slot)
	}

	ts.x, ts.y = x, y
	v.seat.notifyTouchLocked(v.dev, TouchUpdate, timeUsec, ts.slot, x, y)
	return nil
}

func (v *VirtualDevice) NotifyTouchUp(timeUsec uint64, slot int) error {
	if err := v.checkSlot(slot); err != nil {
		return err
	}

	defer v.seat.unlock()
	if err := v.lock(); err != nil {
		return err
	}
	if !v.slots[slot] {
		return fmt.Errorf("%w: %d", ErrUnknownSlot, slot)
	}

	delete(v.slots, slot)
	v.seat.touchEndLocked(v.dev, timeUsec, v.slotBase+slot, TouchEnd)
	return nil
}

// Close releases everything the device holds, gives back its slot range
// and removes it from the seat.
func (v *VirtualDevice) Close() error {
	s := v.seat
	s.mu.Lock()
	defer s.unlock()

	if v.closed {
		return nil
	}
	v.closed = true
	now := nowUsec(s.clock)

	if !s.closed {
		for code := range v.held {
			if isButtonCode(code) {
				s.notifyButtonLocked(v.dev, now, code, false)
			} else {
				s.notifyKeyLocked(v.dev, now, code, keyReleased, true)
			}
		}
		for slot := range v.slots {
			s.touchEndLocked(v.dev, now, v.slotBase+slot, TouchCancel)
		}
	}
	v.held = nil
	v.slots = nil
	delete(s.reservedSlots, v.slotBase)

	for i, d := range s.devices {
		if d == v.dev {
			s.devices = append(s.devices[:i], s.devices[i+1:]...)
			break
		}
	}
	if s.repeatTimer != nil && s.repeatDevice == v.dev {
		s.clearRepeatTimerLocked()
	}
	s.queueEvent(&DeviceEvent{
		EventHeader: EventHeader{TimeUsec: now, Device: v.dev, Source: v.dev},
		Added:       false,
	})
	return nil
}

// button ranges added after the classic BTN_MISC block
const (
	btnDpadUp       = 0x220
	keyAlsToggle    = 0x230
	btnTriggerHappy = 0x2c0
)

// isButtonCode reports whether code is in the evdev button ranges
func isButtonCode(code uint32) bool {
	return (code >= evdev.BTN_MISC && code < evdev.KEY_OK) ||
		(code >= btnDpadUp && code < keyAlsToggle) ||
		code >= btnTriggerHappy
}
