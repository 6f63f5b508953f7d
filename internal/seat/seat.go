// Package seat turns the raw event stream of a backend into normalized
// events and keeps the state shared by every device of one seat: pointer
// position, keyboard modifiers, touch contacts, the device list and
// touch-mode.
package seat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bnema/inputseat/internal/backend"
	"github.com/bnema/inputseat/internal/barrier"
	"github.com/bnema/inputseat/internal/keymap"
	"github.com/bnema/inputseat/internal/logger"
	"github.com/bnema/inputseat/internal/viewport"
)

const (
	InitialPointerX = 16
	InitialPointerY = 16

	// DefaultExtentWidth and DefaultExtentHeight size the area absolute
	// devices map onto when there is no monitor layout
	DefaultExtentWidth  = 1920
	DefaultExtentHeight = 1080

	DefaultRepeatDelay    = 250 * time.Millisecond
	DefaultRepeatInterval = 33 * time.Millisecond
	MinRepeatInterval     = time.Millisecond

	// key and button codes share one evdev code space
	codeSpace = 0x300
)

var (
	ErrNoBackend       = errors.New("seat requires a backend")
	ErrClosed          = errors.New("seat closed")
	ErrAlreadyReleased = errors.New("devices already released")
	ErrNotReleased     = errors.New("devices not released")
	ErrInvalidLayout   = errors.New("layout index out of range")
)

// Callbacks are invoked after the seat lock is dropped, in the order the
// seat raised them. Any of them may be nil.
type Callbacks struct {
	ModifiersChanged        func()
	TouchModeChanged        func(on bool)
	Bell                    func()
	KbdA11yFlagsChanged     func(flags, changed KbdA11yFlags)
	KbdA11yModsStateChanged func(latched, locked uint32)
	ToolChanged             func(dev *Device, tool *Tool)
	BarrierHit              func(hit barrier.HitEvent)
}

// Options configure a new seat
type Options struct {
	ID      string
	Backend backend.Backend
	// Keymap defaults to a single-layout keymap.Basic
	Keymap keymap.Keymap
	// Clock drives key repeat; defaults to the real clock
	Clock     clockwork.Clock
	Viewports *viewport.Layout
	Barriers  *barrier.Manager
	// InitialPointer overrides the starting pointer position
	InitialPointer *viewport.Point
	Registerer     prometheus.Registerer
	Callbacks      Callbacks
}

// Seat is the seat engine. All state is guarded by mu; backend events are
// processed one drain pass at a time, from Dispatch or the repeat timer.
type Seat struct {
	mu sync.Mutex

	id        string
	backend   backend.Backend
	clock     clockwork.Clock
	log       *log.Logger
	events    *Queue
	metrics   *metrics
	callbacks Callbacks
	pending   []func()

	corePointer  *Device
	coreKeyboard *Device
	devices      []*Device
	byRaw        map[*backend.Device]*Device
	ids          *idPool

	keymap      keymap.Keymap
	xkb         keymap.State
	layoutIdx   uint32
	buttonState keymap.Modifiers
	counts      [codeSpace]uint32

	pointerX, pointerY float64
	accumScrollX       float64
	accumScrollY       float64
	accumWheelX        float64
	accumWheelY        float64

	viewports  *viewport.Layout
	barriers   *barrier.Manager
	constraint PointerConstraint

	touches map[int]*touchState

	repeat         bool
	repeatDelay    time.Duration
	repeatInterval time.Duration
	repeatTimer    clockwork.Timer
	repeatGen      uint64
	repeatDevice   *Device
	repeatKey      uint32
	repeatCount    int
	repeatTimeUsec uint64

	hasTouchscreen  bool
	hasTabletSwitch bool
	tabletModeOn    bool
	touchMode       bool

	a11yFlags KbdA11yFlags

	virtualSlotBase int
	reservedSlots   map[int]bool

	released bool
	closed   bool
}

// New creates a seat and assigns the backend to it. A seat that cannot be
// assigned is unusable and no partial seat is returned.
func New(opts Options) (*Seat, error) {
	if opts.Backend == nil {
		return nil, ErrNoBackend
	}
	if opts.ID == "" {
		opts.ID = "seat0"
	}
	if err := opts.Backend.AssignSeat(opts.ID); err != nil {
		return nil, fmt.Errorf("failed to assign seat %q: %w", opts.ID, err)
	}
	if opts.Keymap == nil {
		opts.Keymap = keymap.NewBasic(1)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	s := &Seat{
		id:             opts.ID,
		backend:        opts.Backend,
		clock:          opts.Clock,
		log:            logger.With("seat"),
		metrics:        newMetrics(opts.Registerer, opts.ID),
		callbacks:      opts.Callbacks,
		byRaw:          make(map[*backend.Device]*Device),
		ids:            newIDPool(),
		keymap:         opts.Keymap,
		xkb:            opts.Keymap.NewState(),
		viewports:      opts.Viewports,
		barriers:       opts.Barriers,
		touches:        make(map[int]*touchState),
		repeat:         true,
		repeatDelay:    DefaultRepeatDelay,
		repeatInterval: DefaultRepeatInterval,
		reservedSlots:  make(map[int]bool),
		pointerX:       InitialPointerX,
		pointerY:       InitialPointerY,
	}
	s.events = newQueue(s.retireDevice)
	if opts.InitialPointer != nil {
		s.pointerX = opts.InitialPointer.X
		s.pointerY = opts.InitialPointer.Y
	}

	s.corePointer = newDevice(s.ids.acquire(), "Virtual core pointer", PointerDevice, ModeLogical)
	s.corePointer.x, s.corePointer.y = s.pointerX, s.pointerY
	s.coreKeyboard = newDevice(s.ids.acquire(), "Virtual core keyboard", KeyboardDevice, ModeLogical)

	if s.barriers != nil {
		// Process runs with the seat lock held
		s.barriers.OnHit(func(hit barrier.HitEvent) {
			s.metrics.barrierHits.Inc()
			if cb := s.callbacks.BarrierHit; cb != nil {
				s.pending = append(s.pending, func() { cb(hit) })
			}
		})
	}

	s.updateTouchModeLocked()
	return s, nil
}

// retireDevice returns a removed device's id to the pool. It runs once
// the removal event has left the event queue, so the id is never handed
// out while a consumer may still see it.
func (s *Seat) retireDevice(dev *Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids.release(dev.id)
}

// unlock drops the seat lock and runs the callbacks raised while it was held
func (s *Seat) unlock() {
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

func (s *Seat) queueEvent(ev Event) {
	s.events.push(ev)
	s.metrics.emitted.WithLabelValues(ev.Kind().String()).Inc()
}

func (s *Seat) drop(reason string) {
	s.metrics.dropped.WithLabelValues(reason).Inc()
}

// Run dispatches backend events whenever the backend signals it has some,
// until ctx is done or the backend is closed.
func (s *Seat) Run(ctx context.Context) error {
	if err := s.Dispatch(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.backend.Wake():
			if err := s.Dispatch(); err != nil {
				if errors.Is(err, backend.ErrClosed) || errors.Is(err, ErrClosed) {
					return nil
				}
				s.log.Warn("Dispatch failed", "err", err)
			}
		}
	}
}

// Dispatch runs one drain pass: the backend reads what is pending and every
// resulting event is processed in order.
func (s *Seat) Dispatch() error {
	s.mu.Lock()
	defer s.unlock()
	return s.dispatchLocked()
}

func (s *Seat) dispatchLocked() error {
	if s.closed {
		return ErrClosed
	}
	if err := s.backend.Dispatch(); err != nil {
		return fmt.Errorf("backend dispatch: %w", err)
	}
	s.processEventsLocked()
	return nil
}

func (s *Seat) processEventsLocked() {
	for {
		ev := s.backend.NextEvent()
		if ev == nil {
			return
		}
		s.processEvent(ev)
	}
}

// Close stops key repeat and closes the backend
func (s *Seat) Close() error {
	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return nil
	}
	s.clearRepeatTimerLocked()
	s.closed = true
	if err := s.backend.Close(); err != nil {
		return fmt.Errorf("failed to close backend: %w", err)
	}
	return nil
}

// ID returns the seat name
func (s *Seat) ID() string { return s.id }

// Events returns the normalized event queue
func (s *Seat) Events() *Queue { return s.events }

// CorePointer returns the logical pointer all pointer devices drive
func (s *Seat) CorePointer() *Device { return s.corePointer }

// CoreKeyboard returns the logical keyboard all keyboards drive
func (s *Seat) CoreKeyboard() *Device { return s.coreKeyboard }

// Barriers returns the barrier manager, if any
func (s *Seat) Barriers() *barrier.Manager { return s.barriers }

// Devices returns the physical devices, most recently added first
func (s *Seat) Devices() []*Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Device, len(s.devices))
	copy(out, s.devices)
	return out
}

// PointerPosition returns the shared pointer position
func (s *Seat) PointerPosition() (x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pointerX, s.pointerY
}

// Modifiers returns the effective keyboard modifiers and held buttons
func (s *Seat) Modifiers() keymap.Modifiers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return keymap.TranslateState(s.xkb, s.buttonState)
}

func (s *Seat) TouchMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchMode
}

func (s *Seat) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// SetViewports installs a new monitor layout snapshot
func (s *Seat) SetViewports(layout *viewport.Layout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewports = layout
}

func (s *Seat) Viewports() *viewport.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewports
}

// SetDeviceMatrix sets the affine transform applied to a device's absolute
// coordinates, as the first two rows of a 3x3 matrix.
func (s *Seat) SetDeviceMatrix(dev *Device, matrix [6]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dev.matrix = matrix
}

// SetDeviceMappingMode switches a tablet between absolute and relative mapping
func (s *Seat) SetDeviceMappingMode(dev *Device, mode MappingMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dev.mapping = mode
}

// LastTool returns the tool currently in proximity of a tablet, or nil
func (s *Seat) LastTool(dev *Device) *Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dev.lastTool
}

// SetToolButtonMap makes button presses of a tool report code instead of
// the hardware code. A zero code restores the hardware code.
func (s *Seat) SetToolButtonMap(tool *Tool, button int, code uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code == 0 {
		delete(tool.buttonMap, button)
		return
	}
	tool.buttonMap[button] = code
}

// WarpPointer moves the shared pointer to an absolute position
func (s *Seat) WarpPointer(x, y float64) {
	s.mu.Lock()
	defer s.unlock()
	s.notifyAbsoluteMotionLocked(s.corePointer, 0, x, y, nil)
}
