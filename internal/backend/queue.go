package backend

import (
	"sync"
)

// Queue is an in-memory backend. Pushed events become visible to NextEvent
// after the next Dispatch, in push order. It tracks added devices so that
// Suspend and Resume can report them removed and re-added.
type Queue struct {
	mu        sync.Mutex
	seat      string
	pending   []Event
	ready     []Event
	devices   []*Device
	wake      chan struct{}
	suspended bool
	closed    bool
}

// NewQueue creates an empty queue backend
func NewQueue() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
	}
}

func (q *Queue) AssignSeat(id string) error {
	if id == "" {
		return ErrNoSeat
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seat = id
	return nil
}

// Seat returns the assigned seat id
func (q *Queue) Seat() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seat
}

// Push appends events for the next Dispatch
func (q *Queue) Push(events ...Event) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending = append(q.pending, events...)
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) Dispatch() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if q.suspended {
		return nil
	}

	for _, ev := range q.pending {
		switch ev.(type) {
		case DeviceAdded:
			q.trackLocked(ev.Device())
		case DeviceRemoved:
			q.untrackLocked(ev.Device())
		}
	}
	q.ready = append(q.ready, q.pending...)
	q.pending = nil
	return nil
}

func (q *Queue) trackLocked(dev *Device) {
	for _, d := range q.devices {
		if d == dev {
			return
		}
	}
	q.devices = append(q.devices, dev)
}

func (q *Queue) untrackLocked(dev *Device) {
	for i, d := range q.devices {
		if d == dev {
			q.devices = append(q.devices[:i], q.devices[i+1:]...)
			return
		}
	}
}

func (q *Queue) NextEvent() Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ready) == 0 {
		return nil
	}
	ev := q.ready[0]
	q.ready[0] = nil
	q.ready = q.ready[1:]
	return ev
}

func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

// Suspend reports every tracked device removed. Pushed events stay pending
// until Resume.
func (q *Queue) Suspend() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if q.suspended {
		return nil
	}
	q.suspended = true
	for i := len(q.devices) - 1; i >= 0; i-- {
		q.ready = append(q.ready, DeviceRemoved{Header{Dev: q.devices[i]}})
	}
	return nil
}

// Resume re-adds the devices that were present at Suspend
func (q *Queue) Resume() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if !q.suspended {
		q.mu.Unlock()
		return nil
	}
	q.suspended = false
	for _, d := range q.devices {
		q.ready = append(q.ready, DeviceAdded{Header{Dev: d}})
	}
	hasPending := len(q.pending) > 0
	q.mu.Unlock()

	if hasPending {
		q.signal()
	}
	return nil
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.pending = nil
	q.ready = nil
	return nil
}

// Suspended reports whether the queue is suspended
func (q *Queue) Suspended() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.suspended
}
