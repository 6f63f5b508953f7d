package backend

import (
	"errors"
	"fmt"

	evdev "github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"
)

// InputDevice is the part of an evdev device node the backend uses.
// *evdev.InputDevice satisfies it.
type InputDevice interface {
	Name() (string, error)
	InputID() (evdev.InputID, error)
	Properties() []evdev.EvProp
	CapableEvents(t evdev.EvType) []evdev.EvCode
	AbsInfos() (map[evdev.EvCode]evdev.AbsInfo, error)
	State(t evdev.EvType) (evdev.StateMap, error)
	ReadOne() (*evdev.InputEvent, error)
	WriteOne(event *evdev.InputEvent) error
	Grab() error
	Close() error
}

// Opener opens and closes device nodes. A seat manager can supply its own
// to hand out descriptors it controls.
type Opener struct {
	Open  func(path string, flags int) (InputDevice, error)
	Close func(dev InputDevice) error
}

// DefaultOpenFlags are the flags device nodes are opened with
const DefaultOpenFlags = unix.O_RDWR | unix.O_NONBLOCK | unix.O_CLOEXEC

// DefaultOpener opens device nodes directly
func DefaultOpener() Opener {
	return Opener{
		Open:  openDevice,
		Close: closeDevice,
	}
}

// openDevice opens path, dropping to read-only when the node is not
// writable. LEDs cannot be driven in that case.
func openDevice(path string, flags int) (InputDevice, error) {
	dev, err := evdev.OpenWithFlags(path, flags)
	if err != nil && flags&unix.O_ACCMODE == unix.O_RDWR &&
		(errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM)) {
		dev, err = evdev.OpenWithFlags(path, flags&^unix.O_ACCMODE|unix.O_RDONLY)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return dev, nil
}

func closeDevice(dev InputDevice) error {
	return dev.Close()
}

// withDefaults fills in whatever the caller left nil
func (o Opener) withDefaults() Opener {
	def := DefaultOpener()
	if o.Open == nil {
		o.Open = def.Open
	}
	if o.Close == nil {
		o.Close = def.Close
	}
	return o
}

// deviceGone reports whether a read error means the node went away
func deviceGone(err error) bool {
	return errors.Is(err, unix.ENODEV) || errors.Is(err, unix.ENOENT)
}
