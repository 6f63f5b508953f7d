// Package pointer_constraints provides the lock and confine policies a seat
// applies to pointer motion.
//
// # Basic Usage
//
//	manager := pointer_constraints.NewManager(s)
//
//	// Keep the pointer where it is
//	locked, err := manager.LockPointer(nil, pointer_constraints.LifetimeOneshot)
//
//	// Or keep it inside a region
//	confined, err := manager.ConfinePointer(region, pointer_constraints.LifetimePersistent)
//
// A seat holds at most one constraint. Deactivating a oneshot constraint
// destroys it; a persistent one can be activated again until destroyed.
package pointer_constraints

import (
	"fmt"
	"math"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/bnema/inputseat/internal/logger"
	"github.com/bnema/inputseat/internal/seat"
	"github.com/bnema/inputseat/internal/viewport"
)

// Lifetime constants for pointer constraints
const (
	LIFETIME_ONESHOT    = 1 // Constraint destroyed when deactivated
	LIFETIME_PERSISTENT = 2 // Constraint may be activated again after deactivation

	LifetimeOneshot    = LIFETIME_ONESHOT
	LifetimePersistent = LIFETIME_PERSISTENT
)

// Error constants for pointer constraints
const (
	ERROR_ALREADY_CONSTRAINED = 1 // A constraint already exists on the seat
	ERROR_INVALID_LIFETIME    = 2
	ERROR_DEFUNCT             = 3 // The constraint was destroyed
)

// fixedStep is one wl_fixed unit. Region edges are exclusive, so a clamped
// pointer stops this far inside the right and bottom edges.
const fixedStep = 1.0 / 256

// PointerConstraintsError represents errors that can occur with pointer constraints operations.
type PointerConstraintsError struct {
	Code    int
	Message string
}

func (e *PointerConstraintsError) Error() string {
	return fmt.Sprintf("pointer constraints error %d: %s", e.Code, e.Message)
}

// Region is a union of rectangles. An empty region means no restriction.
type Region []viewport.Rect

// Contains reports whether (x, y) is inside the region
func (r Region) Contains(x, y float64) bool {
	if len(r) == 0 {
		return true
	}
	for _, rect := range r {
		if rect.Contains(x, y) {
			return true
		}
	}
	return false
}

// Nearest returns the point of the region closest to (x, y)
func (r Region) Nearest(x, y float64) (float64, float64) {
	if r.Contains(x, y) {
		return x, y
	}

	bestX, bestY := x, y
	best := math.Inf(1)
	for _, rect := range r {
		if rect.Width <= 0 || rect.Height <= 0 {
			continue
		}
		x1, y1, x2, y2 := rect.Bounds()
		cx := clamp(x, float64(x1), float64(x2)-fixedStep)
		cy := clamp(y, float64(y1), float64(y2)-fixedStep)
		if d := math.Hypot(cx-x, cy-y); d < best {
			best = d
			bestX, bestY = cx, cy
		}
	}
	return bestX, bestY
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// Manager hands out constraints for one seat
type Manager struct {
	seat *seat.Seat
	log  *log.Logger

	mu      sync.Mutex
	current constraint
}

// constraint is the part shared by locked and confined pointers
type constraint interface {
	seat.PointerConstraint
	destroyed() bool
}

// NewManager creates a constraint manager for s
func NewManager(s *seat.Seat) *Manager {
	return &Manager{
		seat: s,
		log:  logger.With("constraints"),
	}
}

func (m *Manager) claim(lifetime uint32) error {
	if m.seat == nil {
		return &PointerConstraintsError{
			Code:    -1,
			Message: "manager has no seat",
		}
	}
	if lifetime != LIFETIME_ONESHOT && lifetime != LIFETIME_PERSISTENT {
		return &PointerConstraintsError{
			Code:    ERROR_INVALID_LIFETIME,
			Message: fmt.Sprintf("invalid lifetime value %d", lifetime),
		}
	}
	if m.current != nil && !m.current.destroyed() {
		return &PointerConstraintsError{
			Code:    ERROR_ALREADY_CONSTRAINED,
			Message: "pointer constraint already requested on this seat",
		}
	}
	return nil
}

// LockPointer stops the pointer where it is. The lock is active at once.
// region limits where a cursor position hint may place the pointer on
// deactivation.
func (m *Manager) LockPointer(region Region, lifetime uint32) (*LockedPointer, error) {
	m.mu.Lock()
	if err := m.claim(lifetime); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	lp := &LockedPointer{
		base: base{
			manager:  m,
			lifetime: lifetime,
			region:   region,
		},
	}
	lp.self = lp
	m.current = lp
	m.mu.Unlock()

	m.log.Debug("Pointer locked", "lifetime", lifetime)
	if err := lp.Activate(); err != nil {
		return nil, err
	}
	return lp, nil
}

// ConfinePointer keeps the pointer inside region. The pointer is pulled
// into the region when the constraint activates.
func (m *Manager) ConfinePointer(region Region, lifetime uint32) (*ConfinedPointer, error) {
	m.mu.Lock()
	if err := m.claim(lifetime); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	cp := &ConfinedPointer{
		base: base{
			manager:  m,
			lifetime: lifetime,
			region:   region,
		},
	}
	cp.self = cp
	m.current = cp
	m.mu.Unlock()

	m.log.Debug("Pointer confined", "lifetime", lifetime, "rects", len(region))
	if err := cp.Activate(); err != nil {
		return nil, err
	}
	return cp, nil
}

// Current returns the constraint the manager holds, or nil
func (m *Manager) Current() seat.PointerConstraint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.destroyed() {
		return nil
	}
	return m.current
}

// Close destroys the current constraint
func (m *Manager) Close() error {
	m.mu.Lock()
	c := m.current
	m.mu.Unlock()

	switch c := c.(type) {
	case *LockedPointer:
		return c.Destroy()
	case *ConfinedPointer:
		return c.Destroy()
	}
	return nil
}

// base holds the lifecycle shared by both constraint kinds. Region is read
// from Constrain under the seat lock, so it has its own mutex.
type base struct {
	manager  *Manager
	self     seat.PointerConstraint
	lifetime uint32

	mu     sync.Mutex
	region Region
	active bool
	dead   bool
}

func (b *base) destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dead
}

// Active reports whether the seat is currently applying the constraint
func (b *base) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

func (b *base) regionCopy() Region {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.region
}

// Activate installs the constraint on the seat
func (b *base) Activate() error {
	b.mu.Lock()
	if b.manager == nil || b.manager.seat == nil {
		b.mu.Unlock()
		return &PointerConstraintsError{
			Code:    -1,
			Message: "constraint not attached to a seat",
		}
	}
	if b.dead {
		b.mu.Unlock()
		return &PointerConstraintsError{
			Code:    ERROR_DEFUNCT,
			Message: "constraint destroyed",
		}
	}
	if b.active {
		b.mu.Unlock()
		return nil
	}
	b.active = true
	b.mu.Unlock()

	b.manager.seat.SetPointerConstraint(b.self)
	return nil
}

// deactivate removes the constraint from the seat; a oneshot constraint is
// dead afterwards. It reports whether the constraint was active.
func (b *base) deactivate() bool {
	b.mu.Lock()
	wasActive := b.active
	b.active = false
	if b.lifetime == LIFETIME_ONESHOT {
		b.dead = true
	}
	b.mu.Unlock()

	if wasActive && b.manager != nil && b.manager.seat != nil {
		b.manager.seat.SetPointerConstraint(nil)
	}
	return wasActive
}

func (b *base) destroy() {
	b.deactivate()
	b.mu.Lock()
	b.dead = true
	b.mu.Unlock()
	if b.manager == nil {
		return
	}

	b.manager.mu.Lock()
	if b.manager.current == b.self {
		b.manager.current = nil
	}
	b.manager.mu.Unlock()
}

// LockedPointer keeps the pointer at the position it had when activated
type LockedPointer struct {
	base

	hintSet      bool
	hintX, hintY float64
}

// Constrain undoes any motion
func (lp *LockedPointer) Constrain(_ uint64, prevX, prevY float64, x, y *float64) {
	*x, *y = prevX, prevY
}

// EnsureConstrained leaves the pointer where it is
func (lp *LockedPointer) EnsureConstrained(x, y float64) (float64, float64) {
	return x, y
}

// SetCursorPositionHint sets where the pointer goes when the lock ends
func (lp *LockedPointer) SetCursorPositionHint(x, y float64) error {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.dead || lp.manager == nil {
		return &PointerConstraintsError{
			Code:    -1,
			Message: "locked pointer not active",
		}
	}
	lp.hintSet = true
	lp.hintX, lp.hintY = x, y
	return nil
}

// SetRegion replaces the region hints are checked against
func (lp *LockedPointer) SetRegion(region Region) error {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.dead || lp.manager == nil {
		return &PointerConstraintsError{
			Code:    -1,
			Message: "locked pointer not active",
		}
	}
	lp.region = region
	return nil
}

// Deactivate releases the lock and moves the pointer to the position hint
// when one inside the region was given
func (lp *LockedPointer) Deactivate() {
	if !lp.deactivate() {
		return
	}

	lp.mu.Lock()
	hintSet, x, y, region := lp.hintSet, lp.hintX, lp.hintY, lp.region
	lp.hintSet = false
	lp.mu.Unlock()

	if hintSet && region.Contains(x, y) {
		lp.manager.seat.WarpPointer(x, y)
	}
}

// Destroy deactivates the lock and frees the seat for a new constraint
func (lp *LockedPointer) Destroy() error {
	if lp.manager == nil {
		return nil
	}
	lp.Deactivate()
	lp.destroy()
	return nil
}

// ConfinedPointer keeps the pointer inside a region
type ConfinedPointer struct {
	base
}

// Constrain moves a candidate outside the region to the nearest point inside
func (cp *ConfinedPointer) Constrain(_ uint64, _, _ float64, x, y *float64) {
	*x, *y = cp.regionCopy().Nearest(*x, *y)
}

// EnsureConstrained pulls a pointer outside the region into it
func (cp *ConfinedPointer) EnsureConstrained(x, y float64) (float64, float64) {
	return cp.regionCopy().Nearest(x, y)
}

// SetRegion replaces the confinement region. An active constraint pulls
// the pointer into the new region.
func (cp *ConfinedPointer) SetRegion(region Region) error {
	cp.mu.Lock()
	if cp.dead || cp.manager == nil {
		cp.mu.Unlock()
		return &PointerConstraintsError{
			Code:    -1,
			Message: "confined pointer not active",
		}
	}
	cp.region = region
	active := cp.active
	cp.mu.Unlock()

	if active {
		s := cp.manager.seat
		x, y := s.PointerPosition()
		if nx, ny := region.Nearest(x, y); nx != x || ny != y {
			s.WarpPointer(nx, ny)
		}
	}
	return nil
}

// Deactivate lets the pointer leave the region
func (cp *ConfinedPointer) Deactivate() {
	cp.deactivate()
}

// Destroy deactivates the confinement and frees the seat for a new
// constraint
func (cp *ConfinedPointer) Destroy() error {
	if cp.manager == nil {
		return nil
	}
	cp.deactivate()
	cp.destroy()
	return nil
}

// LockPointerAtCurrentPosition locks the pointer with oneshot lifetime
func LockPointerAtCurrentPosition(manager *Manager) (*LockedPointer, error) {
	return manager.LockPointer(nil, LIFETIME_ONESHOT)
}

// LockPointerPersistent locks the pointer with persistent lifetime
func LockPointerPersistent(manager *Manager) (*LockedPointer, error) {
	return manager.LockPointer(nil, LIFETIME_PERSISTENT)
}

// ConfinePointerToRegion confines the pointer with oneshot lifetime
func ConfinePointerToRegion(manager *Manager, region Region) (*ConfinedPointer, error) {
	return manager.ConfinePointer(region, LIFETIME_ONESHOT)
}
