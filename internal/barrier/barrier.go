// Package barrier implements pointer barriers: invisible axis-aligned walls
// the pointer may only cross in the directions a barrier allows.
package barrier

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/bnema/inputseat/internal/logger"
	"github.com/bnema/inputseat/internal/viewport"
)

// Direction is a bitmask of motion directions
type Direction uint32

const (
	PositiveX Direction = 1 << iota
	PositiveY
	NegativeX
	NegativeY
)

// ParseDirection maps "+x", "-x", "+y", "-y" to a direction bit
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "+x":
		return PositiveX, nil
	case "-x":
		return NegativeX, nil
	case "+y":
		return PositiveY, nil
	case "-y":
		return NegativeY, nil
	}
	return 0, fmt.Errorf("unknown barrier direction %q", s)
}

// Stops short of the line by one wl_fixed step when blocking motion
// toward increasing coordinates, so the pointer stays on the near side.
const nearSide = 1.0 / 256

var ErrNotAxisAligned = errors.New("barrier must be horizontal or vertical")

// Barrier is a wall from (X1,Y1) to (X2,Y2). Directions lists the
// directions the pointer may pass through it.
type Barrier struct {
	ID         int
	X1, Y1     float64
	X2, Y2     float64
	Directions Direction

	released bool
}

func (b *Barrier) vertical() bool {
	return b.X1 == b.X2
}

func (b *Barrier) line() viewport.Line {
	return viewport.Line{
		A: viewport.Point{X: b.X1, Y: b.Y1},
		B: viewport.Point{X: b.X2, Y: b.Y2},
	}
}

// HitEvent reports a blocked crossing
type HitEvent struct {
	BarrierID int
	TimeUsec  uint64
	X, Y      float64 // Clamped position
	DX, DY    float64 // Attempted motion
}

// Manager holds the active barriers of one seat
type Manager struct {
	mu       sync.Mutex
	barriers map[int]*Barrier
	nextID   int
	onHit    func(HitEvent)
}

// NewManager creates an empty barrier manager
func NewManager() *Manager {
	return &Manager{
		barriers: make(map[int]*Barrier),
		nextID:   1,
	}
}

// OnHit sets the callback invoked for every blocked crossing
func (m *Manager) OnHit(fn func(HitEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onHit = fn
}

// Add installs a barrier and returns its id
func (m *Manager) Add(x1, y1, x2, y2 float64, directions Direction) (int, error) {
	if x1 != x2 && y1 != y2 {
		return 0, ErrNotAxisAligned
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b := &Barrier{
		ID:         m.nextID,
		X1:         math.Min(x1, x2),
		Y1:         math.Min(y1, y2),
		X2:         math.Max(x1, x2),
		Y2:         math.Max(y1, y2),
		Directions: directions,
	}
	m.barriers[b.ID] = b
	m.nextID++

	logger.Debugf("barrier %d added: (%.0f,%.0f)-(%.0f,%.0f) allows %04b", b.ID, b.X1, b.Y1, b.X2, b.Y2, directions)
	return b.ID, nil
}

// Remove deletes a barrier
func (m *Manager) Remove(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.barriers[id]; !ok {
		return false
	}
	delete(m.barriers, id)
	return true
}

// Release lets the pointer through barrier id once
func (m *Manager) Release(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.barriers[id]
	if !ok {
		return false
	}
	b.released = true
	return true
}

// Len returns the number of installed barriers
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.barriers)
}

// crossing reports whether motion from (prevX, prevY) to (x, y) goes through
// b in a direction b blocks. It returns the motion parameter of the hit and
// the blocked direction.
func (b *Barrier) crossing(prevX, prevY, x, y float64) (float64, Direction, bool) {
	var prev, next, at float64
	var pos, neg Direction
	if b.vertical() {
		prev, next, at = prevX, x, b.X1
		pos, neg = PositiveX, NegativeX
	} else {
		prev, next, at = prevY, y, b.Y1
		pos, neg = PositiveY, NegativeY
	}

	var dir Direction
	switch {
	case prev < at && next >= at:
		dir = pos
	case prev >= at && next < at:
		dir = neg
	default:
		return 0, 0, false
	}

	motion := viewport.Line{
		A: viewport.Point{X: prevX, Y: prevY},
		B: viewport.Point{X: x, Y: y},
	}
	hit, ok := motion.Intersect(b.line())
	if !ok {
		return 0, 0, false
	}

	if b.Directions&dir != 0 {
		return 0, 0, false
	}

	dist := math.Hypot(hit.X-prevX, hit.Y-prevY)
	return dist, dir, true
}

func (b *Barrier) clamp(dir Direction, x, y *float64) {
	switch dir {
	case PositiveX:
		*x = b.X1 - nearSide
	case NegativeX:
		*x = b.X1
	case PositiveY:
		*y = b.Y1 - nearSide
	case NegativeY:
		*y = b.Y1
	}
}

// Process constrains motion from (prevX, prevY) to (*x, *y) against all
// barriers. The nearest blocking barrier clamps first; the clamped motion is
// then checked again so corners formed by two barriers hold.
func (m *Manager) Process(timeUsec uint64, prevX, prevY float64, x, y *float64) {
	m.mu.Lock()
	if len(m.barriers) == 0 {
		m.mu.Unlock()
		return
	}

	dx, dy := *x-prevX, *y-prevY
	var hits []HitEvent
	used := make(map[int]bool)

	for range m.barriers {
		var nearest *Barrier
		var nearestDir Direction
		best := math.Inf(1)

		for id, b := range m.barriers {
			if used[id] {
				continue
			}
			dist, dir, ok := b.crossing(prevX, prevY, *x, *y)
			if !ok {
				continue
			}
			if dist < best || (dist == best && nearest != nil && id < nearest.ID) {
				best = dist
				nearest = b
				nearestDir = dir
			}
		}

		if nearest == nil {
			break
		}
		used[nearest.ID] = true

		if nearest.released {
			nearest.released = false
			continue
		}

		nearest.clamp(nearestDir, x, y)
		hits = append(hits, HitEvent{
			BarrierID: nearest.ID,
			TimeUsec:  timeUsec,
			X:         *x,
			Y:         *y,
			DX:        dx,
			DY:        dy,
		})
	}

	onHit := m.onHit
	m.mu.Unlock()

	if onHit != nil {
		for _, h := range hits {
			onHit(h)
		}
	}
}
