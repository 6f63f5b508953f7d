// Package mirror re-emits normalized seat events on uinput devices, so the
// result of the seat's processing (constraints, dedup, repeat filtering)
// can be consumed by anything that reads evdev.
package mirror

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ThomasT75/uinput"
	"github.com/charmbracelet/log"

	"github.com/bnema/inputseat/internal/logger"
	"github.com/bnema/inputseat/internal/seat"
)

const (
	DefaultName = "inputseat mirror"
	uinputPath  = "/dev/uinput"
)

var ErrClosed = errors.New("mirror closed")

// Mouse is the part of a uinput mouse the mirror drives
type Mouse interface {
	Move(x, y int32) error
	LeftPress() error
	LeftRelease() error
	RightPress() error
	RightRelease() error
	MiddlePress() error
	MiddleRelease() error
	Wheel(horizontal bool, delta int32) error
	Close() error
}

// Keyboard is the part of a uinput keyboard the mirror drives
type Keyboard interface {
	KeyDown(key int) error
	KeyUp(key int) error
	Close() error
}

// Mirror forwards keys, pointer motion, buttons 1 to 3 and wheel notches.
// Motion is re-emitted as the change in pointer position, with fractions
// carried over to the next event.
type Mirror struct {
	mu       sync.Mutex
	mouse    Mouse
	keyboard Keyboard
	log      *log.Logger

	started    bool
	x, y       float64
	accX, accY float64

	keys    map[uint32]bool
	buttons map[int]bool
	closed  bool
}

// ResolveName returns the name the mirror devices are created under
func ResolveName(name string) string {
	if name == "" {
		return DefaultName
	}
	return name
}

// New creates the uinput devices, named after name
func New(name string) (*Mirror, error) {
	name = ResolveName(name)

	mouse, err := uinput.CreateMouse(uinputPath, []byte(name+" pointer"))
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual mouse: %w", err)
	}
	keyboard, err := uinput.CreateKeyboard(uinputPath, []byte(name+" keyboard"))
	if err != nil {
		_ = mouse.Close()
		return nil, fmt.Errorf("failed to create virtual keyboard: %w", err)
	}
	return NewWithDevices(mouse, keyboard), nil
}

// NewWithDevices mirrors onto existing devices
func NewWithDevices(mouse Mouse, keyboard Keyboard) *Mirror {
	return &Mirror{
		mouse:    mouse,
		keyboard: keyboard,
		log:      logger.With("mirror"),
		keys:     make(map[uint32]bool),
		buttons:  make(map[int]bool),
	}
}

// Handle re-emits one event. Events the mirror has no equivalent for are
// ignored.
func (m *Mirror) Handle(ev seat.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	switch e := ev.(type) {
	case *seat.KeyEvent:
		return m.key(e)
	case *seat.MotionEvent:
		return m.motion(e)
	case *seat.ButtonEvent:
		return m.button(e)
	case *seat.ScrollEvent:
		return m.scroll(e)
	}
	return nil
}

func (m *Mirror) key(e *seat.KeyEvent) error {
	// the kernel repeats held keys on its own
	if e.Flags&seat.FlagRepeated != 0 {
		return nil
	}
	if m.keys[e.Code] == e.Pressed {
		return nil
	}

	var err error
	if e.Pressed {
		err = m.keyboard.KeyDown(int(e.Code))
		m.keys[e.Code] = true
	} else {
		err = m.keyboard.KeyUp(int(e.Code))
		delete(m.keys, e.Code)
	}
	if err != nil {
		return fmt.Errorf("failed to mirror key %d: %w", e.Code, err)
	}
	return nil
}

func (m *Mirror) motion(e *seat.MotionEvent) error {
	// tablets in absolute mode have their own cursor
	if e.Device != nil && e.Device.Type() == seat.TabletDevice {
		return nil
	}
	if !m.started {
		m.started = true
		m.x, m.y = e.X, e.Y
		return nil
	}

	m.accX += e.X - m.x
	m.accY += e.Y - m.y
	m.x, m.y = e.X, e.Y

	dx, dy := int32(m.accX), int32(m.accY)
	m.accX -= float64(dx)
	m.accY -= float64(dy)
	if dx == 0 && dy == 0 {
		return nil
	}
	if err := m.mouse.Move(dx, dy); err != nil {
		return fmt.Errorf("failed to mirror motion: %w", err)
	}
	return nil
}

func (m *Mirror) button(e *seat.ButtonEvent) error {
	if m.buttons[e.Button] == e.Pressed {
		return nil
	}

	var err error
	switch e.Button {
	case 1:
		err = pick(e.Pressed, m.mouse.LeftPress, m.mouse.LeftRelease)
	case 2:
		err = pick(e.Pressed, m.mouse.MiddlePress, m.mouse.MiddleRelease)
	case 3:
		err = pick(e.Pressed, m.mouse.RightPress, m.mouse.RightRelease)
	default:
		m.log.Debug("No mirror for button", "button", e.Button, "code", e.Code)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mirror button %d: %w", e.Button, err)
	}

	if e.Pressed {
		m.buttons[e.Button] = true
	} else {
		delete(m.buttons, e.Button)
	}
	return nil
}

func pick(pressed bool, press, release func() error) error {
	if pressed {
		return press()
	}
	return release()
}

// scroll forwards discrete notches; smooth scrolling has a discrete
// counterpart in the same stream
func (m *Mirror) scroll(e *seat.ScrollEvent) error {
	var err error
	switch e.Direction {
	case seat.ScrollUp:
		err = m.mouse.Wheel(false, 1)
	case seat.ScrollDown:
		err = m.mouse.Wheel(false, -1)
	case seat.ScrollLeft:
		err = m.mouse.Wheel(true, -1)
	case seat.ScrollRight:
		err = m.mouse.Wheel(true, 1)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mirror scroll %s: %w", e.Direction, err)
	}
	return nil
}

// Close releases whatever is still held and destroys the devices
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	codes := make([]uint32, 0, len(m.keys))
	for code := range m.keys {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(a, b int) bool { return codes[a] < codes[b] })
	for _, code := range codes {
		if err := m.keyboard.KeyUp(int(code)); err != nil {
			m.log.Warn("Failed to release key", "code", code, "err", err)
		}
	}
	for b := 1; b <= 3; b++ {
		if m.buttons[b] {
			_ = m.button(&seat.ButtonEvent{Button: b})
		}
	}

	var errs []error
	if m.mouse != nil {
		errs = append(errs, m.mouse.Close())
	}
	if m.keyboard != nil {
		errs = append(errs, m.keyboard.Close())
	}
	return errors.Join(errs...)
}
