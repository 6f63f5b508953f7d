package seat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/inputseat/internal/backend"
)

func vertical(dev *backend.Device, usec uint64, v float64) backend.PointerAxis {
	return backend.PointerAxis{
		Header:      hdr(dev, usec),
		Source:      backend.AxisSourceFinger,
		HasVertical: true,
		Vertical:    v,
	}
}

func notches(events []Event) []ScrollDirection {
	var out []ScrollDirection
	for _, ev := range events {
		if sc, ok := ev.(*ScrollEvent); ok && sc.Direction != ScrollSmooth {
			out = append(out, sc.Direction)
		}
	}
	return out
}

func TestContinuousScrollAccumulates(t *testing.T) {
	h := newHarness(t)
	pad := h.addDevice("touchpad", backend.CapPointer|backend.CapGesture)

	events := h.push(vertical(pad, 1, 4))
	require.Len(t, events, 1)
	smooth := events[0].(*ScrollEvent)
	assert.Equal(t, ScrollSmooth, smooth.Direction)
	assert.InDelta(t, 0.4, smooth.DY, 1e-9)
	assert.False(t, smooth.Emulated())

	events = h.push(vertical(pad, 2, 4))
	assert.Empty(t, notches(events))

	events = h.push(vertical(pad, 3, 4))
	require.Len(t, events, 2)
	assert.Equal(t, []ScrollDirection{ScrollDown}, notches(events))
	assert.True(t, events[1].(*ScrollEvent).Emulated())

	_, dy := h.seat.ScrollRemainder()
	assert.InDelta(t, 2.0, dy, 1e-9)
}

func TestContinuousScroll(t *testing.T) {
	tests := []struct {
		name      string
		axes      []backend.PointerAxis
		want      []ScrollDirection
		remainder [2]float64
	}{
		{
			name:      "several notches at once",
			axes:      []backend.PointerAxis{vertical(nil, 1, -25)},
			want:      []ScrollDirection{ScrollUp, ScrollUp},
			remainder: [2]float64{0, -5},
		},
		{
			name: "finish resets the axis",
			axes: []backend.PointerAxis{
				vertical(nil, 1, 8),
				vertical(nil, 2, 0),
				vertical(nil, 3, 8),
			},
			remainder: [2]float64{0, 8},
		},
		{
			name: "both axes",
			axes: []backend.PointerAxis{{
				Source:        backend.AxisSourceContinuous,
				HasHorizontal: true,
				HasVertical:   true,
				Horizontal:    12,
				Vertical:      -31,
			}},
			want:      []ScrollDirection{ScrollRight, ScrollUp, ScrollUp, ScrollUp},
			remainder: [2]float64{2, -1},
		},
		{
			name: "untouched axis keeps its remainder",
			axes: []backend.PointerAxis{
				vertical(nil, 1, 7),
				{Source: backend.AxisSourceFinger, HasHorizontal: true, Horizontal: 3},
			},
			remainder: [2]float64{3, 7},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			pad := h.addDevice("touchpad", backend.CapPointer|backend.CapGesture)

			var got []ScrollDirection
			for _, ax := range tt.axes {
				ax.Dev = pad
				got = append(got, notches(h.push(ax))...)
			}
			assert.Equal(t, tt.want, got)

			dx, dy := h.seat.ScrollRemainder()
			assert.InDelta(t, tt.remainder[0], dx, 1e-9)
			assert.InDelta(t, tt.remainder[1], dy, 1e-9)
		})
	}
}

func TestScrollFinishFlags(t *testing.T) {
	h := newHarness(t)
	pad := h.addDevice("touchpad", backend.CapPointer|backend.CapGesture)

	events := h.push(backend.PointerAxis{
		Header:        hdr(pad, 1),
		Source:        backend.AxisSourceFinger,
		HasHorizontal: true,
		HasVertical:   true,
		Vertical:      3,
	})
	require.Len(t, events, 1)
	assert.Equal(t, FinishHorizontal, events[0].(*ScrollEvent).Finish)
}

func TestWheelScroll(t *testing.T) {
	tests := []struct {
		name   string
		axis   backend.PointerAxis
		want   []ScrollDirection
		dx, dy float64
	}{
		{
			name: "one notch down",
			axis: backend.PointerAxis{HasVertical: true, Vertical: 15, DiscreteVertical: 1},
			want: []ScrollDirection{ScrollDown},
			dy:   1,
		},
		{
			name: "two notches up",
			axis: backend.PointerAxis{HasVertical: true, Vertical: -30, DiscreteVertical: -2},
			want: []ScrollDirection{ScrollUp, ScrollUp},
			dy:   -2,
		},
		{
			name: "horizontal wins",
			axis: backend.PointerAxis{
				HasHorizontal:      true,
				HasVertical:        true,
				DiscreteHorizontal: -1,
				DiscreteVertical:   1,
			},
			want: []ScrollDirection{ScrollLeft},
			dx:   -1,
			dy:   1,
		},
		{
			name: "high resolution fraction waits for a whole notch",
			axis: backend.PointerAxis{HasVertical: true, DiscreteVertical: 0.25},
			dy:   0.25,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			mouse := h.addDevice("mouse", backend.CapPointer)

			tt.axis.Header = hdr(mouse, 1)
			tt.axis.Source = backend.AxisSourceWheel
			events := h.push(tt.axis)
			require.Len(t, events, 1+len(tt.want))

			smooth := events[0].(*ScrollEvent)
			assert.Equal(t, ScrollSmooth, smooth.Direction)
			assert.True(t, smooth.Emulated())
			assert.InDelta(t, tt.dx, smooth.DX, 1e-9)
			assert.InDelta(t, tt.dy, smooth.DY, 1e-9)

			assert.Equal(t, tt.want, notches(events))
			for _, ev := range events[1:] {
				assert.False(t, ev.(*ScrollEvent).Emulated())
			}

			// wheels never touch the accumulator
			dx, dy := h.seat.ScrollRemainder()
			assert.Zero(t, dx)
			assert.Zero(t, dy)
		})
	}
}

func TestHighResolutionWheel(t *testing.T) {
	h := newHarness(t)
	mouse := h.addDevice("mouse", backend.CapPointer)

	// one detent of a wheel reporting eighths of a notch
	var got []ScrollDirection
	for i := 0; i < 8; i++ {
		got = append(got, notches(h.push(backend.PointerAxis{
			Header:           hdr(mouse, uint64(i+1)),
			Source:           backend.AxisSourceWheel,
			HasVertical:      true,
			Vertical:         -15.0 / 8,
			DiscreteVertical: -0.125,
		}))...)
	}
	assert.Equal(t, []ScrollDirection{ScrollUp}, got)
	_, dy := h.seat.WheelRemainder()
	assert.InDelta(t, 0, dy, 1e-9)

	// half a notch down throws away the pending upward fraction
	h.push(backend.PointerAxis{Header: hdr(mouse, 20), Source: backend.AxisSourceWheel, HasVertical: true, DiscreteVertical: -0.5})
	got = notches(h.push(backend.PointerAxis{Header: hdr(mouse, 21), Source: backend.AxisSourceWheel, HasVertical: true, DiscreteVertical: 0.5}))
	assert.Empty(t, got)
	_, dy = h.seat.WheelRemainder()
	assert.InDelta(t, 0.5, dy, 1e-9)

	got = notches(h.push(backend.PointerAxis{Header: hdr(mouse, 22), Source: backend.AxisSourceWheel, HasVertical: true, DiscreteVertical: 0.5}))
	assert.Equal(t, []ScrollDirection{ScrollDown}, got)
}

func TestScrollCarriesPointerPosition(t *testing.T) {
	h := newHarness(t, startAt(300, 400))
	mouse := h.addDevice("mouse", backend.CapPointer)

	events := h.push(backend.PointerAxis{
		Header:           hdr(mouse, 1),
		Source:           backend.AxisSourceWheel,
		HasVertical:      true,
		DiscreteVertical: 1,
	})
	for _, ev := range events {
		sc := ev.(*ScrollEvent)
		assert.Equal(t, 300.0, sc.X)
		assert.Equal(t, 400.0, sc.Y)
		assert.Equal(t, h.seat.CorePointer(), sc.Device)
	}
}
