package viewport

// Point is a position in the shared coordinate space
type Point struct {
	X, Y float64
}

// Line is a segment from A to B
type Line struct {
	A, B Point
}

func cross(ax, ay, bx, by float64) float64 {
	return ax*by - ay*bx
}

// Intersect returns the point where two segments cross. Parallel segments
// never intersect.
func (l Line) Intersect(o Line) (Point, bool) {
	rx, ry := l.B.X-l.A.X, l.B.Y-l.A.Y
	sx, sy := o.B.X-o.A.X, o.B.Y-o.A.Y

	denominator := cross(rx, ry, sx, sy)
	if denominator == 0 {
		return Point{}, false
	}

	qpx, qpy := o.A.X-l.A.X, o.A.Y-l.A.Y
	t := cross(qpx, qpy, sx, sy) / denominator
	u := cross(qpx, qpy, rx, ry) / denominator
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return Point{}, false
	}

	return Point{X: l.A.X + t*rx, Y: l.A.Y + t*ry}, true
}
