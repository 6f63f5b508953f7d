// Package viewport models the monitor layout the pointer moves across:
// one rectangle and scale factor per monitor, in a shared coordinate space.
package viewport

import "fmt"

// Rect is an integer rectangle in the shared coordinate space
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Bounds returns the rectangle's boundaries
func (r Rect) Bounds() (x1, y1, x2, y2 int) {
	return r.X, r.Y, r.X + r.Width, r.Y + r.Height
}

// Contains checks if a point is within this rectangle
func (r Rect) Contains(x, y float64) bool {
	return x >= float64(r.X) && x < float64(r.X+r.Width) &&
		y >= float64(r.Y) && y < float64(r.Y+r.Height)
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// View is one monitor
type View struct {
	Name string
	Rect
	Scale float64
}

// Direction is a cardinal direction between adjacent views
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Layout is an immutable snapshot of the monitor arrangement. Callers
// replace it wholesale when monitors change.
type Layout struct {
	views  []View
	scaled bool
}

// New copies views into a new layout. scaled reports whether the compositor
// already lays views out in logical (scaled) units.
func New(views []View, scaled bool) *Layout {
	l := &Layout{
		views:  make([]View, len(views)),
		scaled: scaled,
	}
	copy(l.views, views)
	for i := range l.views {
		if l.views[i].Scale <= 0 {
			l.views[i].Scale = 1
		}
	}
	return l
}

// NumViews returns the number of views in the layout
func (l *Layout) NumViews() int {
	return len(l.views)
}

// View returns the view at index idx
func (l *Layout) View(idx int) (View, bool) {
	if idx < 0 || idx >= len(l.views) {
		return View{}, false
	}
	return l.views[idx], true
}

// Views returns a copy of all views
func (l *Layout) Views() []View {
	out := make([]View, len(l.views))
	copy(out, l.views)
	return out
}

// Scaled reports whether views are laid out in logical units
func (l *Layout) Scaled() bool {
	return l.scaled
}

// ViewAt returns the index of the view containing the point, or -1
func (l *Layout) ViewAt(x, y float64) int {
	for i, v := range l.views {
		if v.Contains(x, y) {
			return i
		}
	}
	return -1
}

// Neighbor returns the view sharing the given edge of view idx, or -1
func (l *Layout) Neighbor(idx int, dir Direction) int {
	if idx < 0 || idx >= len(l.views) {
		return -1
	}
	r := l.views[idx].Rect
	for i, v := range l.views {
		if i == idx {
			continue
		}
		if adjacent(r, v.Rect, dir) {
			return i
		}
	}
	return -1
}

// Extents returns the size of the bounding box of all views, measured from
// the origin.
func (l *Layout) Extents() (width, height float64) {
	for _, v := range l.views {
		_, _, x2, y2 := v.Bounds()
		if float64(x2) > width {
			width = float64(x2)
		}
		if float64(y2) > height {
			height = float64(y2)
		}
	}
	return width, height
}

func overlaps(a1, a2, b1, b2 int) bool {
	return a1 < b2 && b1 < a2
}

func adjacent(r, other Rect, dir Direction) bool {
	rx1, ry1, rx2, ry2 := r.Bounds()
	ox1, oy1, ox2, oy2 := other.Bounds()

	switch dir {
	case Up:
		return oy2 == ry1 && overlaps(rx1, rx2, ox1, ox2)
	case Down:
		return oy1 == ry2 && overlaps(rx1, rx2, ox1, ox2)
	case Left:
		return ox2 == rx1 && overlaps(ry1, ry2, oy1, oy2)
	case Right:
		return ox1 == rx2 && overlaps(ry1, ry2, oy1, oy2)
	}
	return false
}
