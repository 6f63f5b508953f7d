package backend

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	evdev "github.com/holoplot/go-evdev"
	"github.com/jonboulle/clockwork"

	"github.com/bnema/inputseat/internal/logger"
)

const (
	DefaultInputDir = "/dev/input"
	DefaultDebounce = 250 * time.Millisecond
)

// EvdevConfig configures the evdev backend
type EvdevConfig struct {
	InputDir string
	// Devices whose name contains one of these (case-insensitive) are skipped
	IgnoreNames []string
	Grab        bool
	// Debounce is how long a new node must be quiet before it is opened,
	// giving udev time to set permissions
	Debounce time.Duration
	Opener   Opener
	Clock    clockwork.Clock
}

type evdevDevice struct {
	path    string
	node    InputDevice
	dev     *Device
	dec     *decoder
	closing bool
}

// Evdev reads event nodes directly. Each open device has a reader
// goroutine; decoded frames wait in pending until the next Dispatch.
type Evdev struct {
	cfg    EvdevConfig
	opener Opener
	clock  clockwork.Clock
	log    *log.Logger

	mu        sync.Mutex
	seat      string
	devices   map[string]*evdevDevice
	counts    *seatCounts
	pending   []Event
	ready     []Event
	debounce  map[string]clockwork.Timer
	suspended bool
	closed    bool

	wake    chan struct{}
	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// NewEvdev creates the backend and starts watching the input directory.
// No device is opened until a seat is assigned.
func NewEvdev(cfg EvdevConfig) (*Evdev, error) {
	if cfg.InputDir == "" {
		cfg.InputDir = DefaultInputDir
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create hotplug watcher: %w", err)
	}
	if err := watcher.Add(cfg.InputDir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", cfg.InputDir, err)
	}

	e := &Evdev{
		cfg:      cfg,
		opener:   cfg.Opener.withDefaults(),
		clock:    cfg.Clock,
		log:      logger.With("evdev"),
		devices:  make(map[string]*evdevDevice),
		counts:   newSeatCounts(),
		debounce: make(map[string]clockwork.Timer),
		wake:     make(chan struct{}, 1),
		watcher:  watcher,
	}

	e.wg.Add(1)
	go e.watch()
	return e, nil
}

// AssignSeat opens every device present in the input directory
func (e *Evdev) AssignSeat(id string) error {
	if id == "" {
		return ErrNoSeat
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.seat = id
	err := e.scanLocked()
	e.mu.Unlock()

	e.signal()
	return err
}

// Seat returns the assigned seat id
func (e *Evdev) Seat() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seat
}

func (e *Evdev) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Evdev) Wake() <-chan struct{} {
	return e.wake
}

func (e *Evdev) Dispatch() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.suspended {
		return nil
	}
	e.ready = append(e.ready, e.pending...)
	e.pending = nil
	return nil
}

func (e *Evdev) NextEvent() Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.ready) == 0 {
		return nil
	}
	ev := e.ready[0]
	e.ready[0] = nil
	e.ready = e.ready[1:]
	return ev
}

// eventNodes lists the event nodes in dir in numeric order
func eventNodes(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var nodes []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "event") {
			nodes = append(nodes, entry.Name())
		}
	}
	sort.Slice(nodes, func(a, b int) bool {
		na, errA := strconv.Atoi(strings.TrimPrefix(nodes[a], "event"))
		nb, errB := strconv.Atoi(strings.TrimPrefix(nodes[b], "event"))
		if errA != nil || errB != nil {
			return nodes[a] < nodes[b]
		}
		return na < nb
	})

	paths := make([]string, len(nodes))
	for i, n := range nodes {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}

func (e *Evdev) scanLocked() error {
	paths, err := eventNodes(e.cfg.InputDir)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", e.cfg.InputDir, err)
	}
	for _, path := range paths {
		e.addDeviceLocked(path)
	}
	return nil
}

func (e *Evdev) ignored(name string) bool {
	lower := strings.ToLower(name)
	for _, ignore := range e.cfg.IgnoreNames {
		if ignore != "" && strings.Contains(lower, strings.ToLower(ignore)) {
			return true
		}
	}
	return false
}

// addDeviceLocked opens path and queues DeviceAdded. Failures are logged
// and the device is skipped.
func (e *Evdev) addDeviceLocked(path string) bool {
	if _, ok := e.devices[path]; ok {
		return false
	}

	node, err := e.opener.Open(path, DefaultOpenFlags)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			e.log.Debug("Device node vanished before open", "path", path)
		} else {
			e.log.Warn("Skipping device", "path", path, "err", err)
		}
		return false
	}

	name, err := node.Name()
	if err != nil {
		name = filepath.Base(path)
	}
	if e.ignored(name) {
		e.log.Debug("Ignoring device", "name", name, "path", path)
		_ = e.opener.Close(node)
		return false
	}

	info, err := probe(node)
	if err != nil {
		e.log.Warn("Failed to read device capabilities", "name", name, "err", err)
		_ = e.opener.Close(node)
		return false
	}
	caps := info.capabilities()
	if caps == 0 {
		e.log.Debug("Device has nothing the seat uses", "name", name, "path", path)
		_ = e.opener.Close(node)
		return false
	}

	dev := &Device{
		Name:                name,
		Path:                path,
		Capabilities:        caps,
		HasTabletModeSwitch: info.sws[evdev.SW_TABLET_MODE],
		HasLEDs:             info.leds,
	}
	if id, err := node.InputID(); err == nil {
		dev.Vendor, dev.Product = id.Vendor, id.Product
	}
	dev.WidthMM = axisLength(info, evdev.ABS_X)
	dev.HeightMM = axisLength(info, evdev.ABS_Y)
	if info.leds {
		dev.LEDs = ledWriter{node: node}
	}

	if e.cfg.Grab {
		if err := node.Grab(); err != nil {
			e.log.Warn("Failed to grab device", "name", name, "err", err)
		}
	}

	ed := &evdevDevice{
		path: path,
		node: node,
		dev:  dev,
		dec:  newDecoder(dev, info, e.counts),
	}
	e.devices[path] = ed
	now := e.now()
	e.pending = append(e.pending, DeviceAdded{Header{Dev: dev, TimeUsec: now}})
	if dev.HasTabletModeSwitch {
		// a device plugged in while already in tablet mode never toggles
		if sw, err := node.State(evdev.EV_SW); err != nil {
			e.log.Warn("Failed to read switch state", "name", name, "err", err)
		} else if sw[evdev.SW_TABLET_MODE] {
			e.pending = append(e.pending, SwitchToggle{
				Header: Header{Dev: dev, TimeUsec: now},
				Switch: SwitchTabletMode,
				On:     true,
			})
		}
	}
	e.log.Info("Device added", "name", name, "path", path, "caps", caps)

	e.wg.Add(1)
	go e.read(ed)
	return true
}

// axisLength returns the physical length of an absolute axis in mm
func axisLength(info deviceInfo, code evdev.EvCode) float64 {
	a, ok := info.abs[code]
	if !ok || a.Resolution <= 0 || a.Maximum <= a.Minimum {
		return 0
	}
	return float64(a.Maximum-a.Minimum) / float64(a.Resolution)
}

func (e *Evdev) now() uint64 {
	return uint64(e.clock.Now().UnixMicro())
}

// removeDeviceLocked closes the node and queues releases for everything
// the device held followed by DeviceRemoved
func (e *Evdev) removeDeviceLocked(ed *evdevDevice) []Event {
	if ed.closing {
		return nil
	}
	ed.closing = true
	delete(e.devices, ed.path)

	now := e.now()
	events := ed.dec.release(now)
	events = append(events, DeviceRemoved{Header{Dev: ed.dev, TimeUsec: now}})

	// Unblocks the reader, which sees closing and exits
	if err := e.opener.Close(ed.node); err != nil {
		e.log.Debug("Failed to close device", "path", ed.path, "err", err)
	}
	e.log.Info("Device removed", "name", ed.dev.Name, "path", ed.path)
	return events
}

func (e *Evdev) read(ed *evdevDevice) {
	defer e.wg.Done()

	for {
		ev, err := ed.node.ReadOne()
		if err != nil {
			e.mu.Lock()
			if ed.closing {
				e.mu.Unlock()
				return
			}
			if deviceGone(err) {
				e.log.Debug("Device node gone", "path", ed.path)
			} else {
				e.log.Warn("Failed to read device", "path", ed.path, "err", err)
			}
			e.pending = append(e.pending, e.removeDeviceLocked(ed)...)
			e.mu.Unlock()
			e.signal()
			return
		}

		e.mu.Lock()
		if ed.closing {
			e.mu.Unlock()
			return
		}
		out := ed.dec.feed(ev)
		e.pending = append(e.pending, out...)
		e.mu.Unlock()

		if len(out) > 0 {
			e.signal()
		}
	}
}

// Suspend closes every device. Their removal, with releases for anything
// held, is readable at once; hotplug is ignored until Resume.
func (e *Evdev) Suspend() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.suspended {
		return nil
	}
	e.suspended = true
	e.stopDebounceLocked()

	e.ready = append(e.ready, e.pending...)
	e.pending = nil
	for _, ed := range e.sortedDevicesLocked() {
		e.ready = append(e.ready, e.removeDeviceLocked(ed)...)
	}
	e.log.Info("Backend suspended")
	return nil
}

// Resume rescans the input directory
func (e *Evdev) Resume() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if !e.suspended {
		e.mu.Unlock()
		return nil
	}
	e.suspended = false
	err := e.scanLocked()
	e.mu.Unlock()

	e.log.Info("Backend resumed")
	e.signal()
	return err
}

// Close stops hotplug and closes every device without reporting removals
func (e *Evdev) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.stopDebounceLocked()
	for _, ed := range e.devices {
		ed.closing = true
		_ = e.opener.Close(ed.node)
	}
	e.devices = make(map[string]*evdevDevice)
	e.pending = nil
	e.ready = nil
	e.mu.Unlock()

	err := e.watcher.Close()
	e.wg.Wait()
	return err
}

func (e *Evdev) sortedDevicesLocked() []*evdevDevice {
	devices := make([]*evdevDevice, 0, len(e.devices))
	for _, ed := range e.devices {
		devices = append(devices, ed)
	}
	sort.Slice(devices, func(a, b int) bool { return devices[a].path < devices[b].path })
	return devices
}

// Devices returns the open devices ordered by path
func (e *Evdev) Devices() []*Device {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*Device
	for _, ed := range e.sortedDevicesLocked() {
		out = append(out, ed.dev)
	}
	return out
}

// ledWriter drives a keyboard's indicators
type ledWriter struct {
	node InputDevice
}

var ledCodes = []struct {
	code evdev.EvCode
	led  LED
}{
	{evdev.LED_NUML, LEDNumLock},
	{evdev.LED_CAPSL, LEDCapsLock},
	{evdev.LED_SCROLLL, LEDScrollLock},
}

func (w ledWriter) SetLEDs(leds LED) error {
	for _, l := range ledCodes {
		var v int32
		if leds&l.led != 0 {
			v = 1
		}
		if err := w.node.WriteOne(&evdev.InputEvent{Type: evdev.EV_LED, Code: l.code, Value: v}); err != nil {
			return fmt.Errorf("failed to write LED state: %w", err)
		}
	}
	return w.node.WriteOne(&evdev.InputEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})
}
