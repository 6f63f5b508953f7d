package seat

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/inputseat/internal/backend"
	"github.com/bnema/inputseat/internal/keymap"
)

func TestSequence(t *testing.T) {
	assert.Equal(t, 1, Sequence(0))
	assert.Equal(t, 4, Sequence(3))
	assert.Equal(t, 1, Sequence(-5))
	assert.Equal(t, 3, SequenceSlot(Sequence(3)))
}

func TestTouchLifecycle(t *testing.T) {
	h := newHarness(t)
	ts := h.addDevice("ts", backend.CapTouch)

	events := h.push(
		backend.TouchDown{Header: hdr(ts, 1), Slot: 3, X: 0.25, Y: 0.5},
		backend.TouchFrame{Header: hdr(ts, 1)},
		backend.TouchUp{Header: hdr(ts, 2), Slot: 3},
		backend.TouchFrame{Header: hdr(ts, 2)},
	)
	require.Len(t, events, 2)

	begin := events[0].(*TouchEvent)
	end := events[1].(*TouchEvent)
	assert.Equal(t, KindTouchBegin, begin.Kind())
	assert.Equal(t, KindTouchEnd, end.Kind())
	assert.Equal(t, 4, begin.Sequence)
	assert.Equal(t, 3, end.Slot())
	assert.Equal(t, 480.0, begin.X)
	assert.Equal(t, 540.0, begin.Y)
	assert.Equal(t, begin.X, end.X)
	assert.Equal(t, begin.Y, end.Y)

	// a held primary button on begin and update only
	assert.NotZero(t, begin.Modifiers&keymap.Button1Mask)
	assert.Zero(t, end.Modifiers&keymap.Button1Mask)
	assert.Zero(t, h.seat.TouchCount())
}

func TestTouchMotion(t *testing.T) {
	h := newHarness(t)
	ts := h.addDevice("ts", backend.CapTouch)

	events := h.push(
		backend.TouchDown{Header: hdr(ts, 1), Slot: 0, X: 0.1, Y: 0.1},
		backend.TouchMotion{Header: hdr(ts, 2), Slot: 0, X: 0.5, Y: 0.5},
		backend.TouchCancel{Header: hdr(ts, 3), Slot: 0},
	)
	require.Len(t, events, 3)
	assert.Equal(t, []EventKind{KindTouchBegin, KindTouchUpdate, KindTouchCancel}, kinds(events))

	update := events[1].(*TouchEvent)
	assert.Equal(t, 960.0, update.X)
	assert.NotZero(t, update.Modifiers&keymap.Button1Mask)

	// cancel reports the last stored position
	cancel := events[2].(*TouchEvent)
	assert.Equal(t, 960.0, cancel.X)
	assert.Equal(t, 540.0, cancel.Y)
	assert.Zero(t, cancel.Modifiers&keymap.Button1Mask)
}

func TestTouchUnknownSlot(t *testing.T) {
	h := newHarness(t)
	ts := h.addDevice("ts", backend.CapTouch)

	events := h.push(
		backend.TouchUp{Header: hdr(ts, 1), Slot: 3},
		backend.TouchMotion{Header: hdr(ts, 2), Slot: 3, X: 0.5, Y: 0.5},
		backend.TouchCancel{Header: hdr(ts, 3), Slot: 3},
	)
	assert.Empty(t, events)
	assert.Equal(t, 3.0, h.dropped("unknown_slot"))
}

func TestTouchContacts(t *testing.T) {
	h := newHarness(t)
	ts := h.addDevice("ts", backend.CapTouch)

	h.push(
		backend.TouchDown{Header: hdr(ts, 1), Slot: 0, X: 0.1, Y: 0.1},
		backend.TouchDown{Header: hdr(ts, 1), Slot: 1, X: 0.2, Y: 0.2},
	)
	assert.Equal(t, 2, h.seat.TouchCount())
	assert.Equal(t, 2.0, testutil.ToFloat64(h.seat.metrics.touchContacts))

	// reusing a live slot replaces the contact
	events := h.push(backend.TouchDown{Header: hdr(ts, 2), Slot: 1, X: 0.5, Y: 0.5})
	require.Len(t, events, 1)
	assert.Equal(t, 2, h.seat.TouchCount())
	st, ok := h.seat.QueryState(nil, Sequence(1))
	require.True(t, ok)
	assert.Equal(t, 960.0, st.X)

	h.push(
		backend.TouchUp{Header: hdr(ts, 3), Slot: 0},
		backend.TouchUp{Header: hdr(ts, 3), Slot: 1},
	)
	assert.Zero(t, h.seat.TouchCount())
	assert.Equal(t, 0.0, testutil.ToFloat64(h.seat.metrics.touchContacts))
}

func TestTouchDeviceMatrix(t *testing.T) {
	h := newHarness(t)
	raw := h.addDevice("ts", backend.CapTouch)
	dev := h.seat.Devices()[0]

	// swap the axes
	h.seat.SetDeviceMatrix(dev, [6]float64{0, 1, 0, 1, 0, 0})

	events := h.push(backend.TouchDown{Header: hdr(raw, 1), Slot: 0, X: 0.25, Y: 0.5})
	require.Len(t, events, 1)
	ev := events[0].(*TouchEvent)
	assert.Equal(t, 960.0, ev.X)
	assert.Equal(t, 270.0, ev.Y)
}
