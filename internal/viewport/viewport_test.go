package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dualHead() *Layout {
	return New([]View{
		{Name: "left", Rect: Rect{X: 0, Y: 0, Width: 1920, Height: 1080}, Scale: 1},
		{Name: "right", Rect: Rect{X: 1920, Y: 0, Width: 1280, Height: 720}, Scale: 2},
		{Name: "below", Rect: Rect{X: 0, Y: 1080, Width: 1920, Height: 1080}},
	}, false)
}

func TestViewAt(t *testing.T) {
	l := dualHead()
	tests := []struct {
		name string
		x, y float64
		want int
	}{
		{"origin", 0, 0, 0},
		{"inside left", 1919.5, 1079.9, 0},
		{"right edge belongs to neighbor", 1920, 10, 1},
		{"below right monitor", 2000, 800, -1},
		{"negative", -1, 5, -1},
		{"second row", 100, 1500, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.ViewAt(tt.x, tt.y))
		})
	}
}

func TestNeighbor(t *testing.T) {
	l := dualHead()
	assert.Equal(t, 1, l.Neighbor(0, Right))
	assert.Equal(t, 0, l.Neighbor(1, Left))
	assert.Equal(t, 2, l.Neighbor(0, Down))
	assert.Equal(t, 0, l.Neighbor(2, Up))
	assert.Equal(t, -1, l.Neighbor(0, Left))
	assert.Equal(t, -1, l.Neighbor(1, Down))
	assert.Equal(t, -1, l.Neighbor(7, Up))
}

func TestLayoutBasics(t *testing.T) {
	l := dualHead()
	w, h := l.Extents()
	assert.Equal(t, 3200.0, w)
	assert.Equal(t, 2160.0, h)
	assert.Equal(t, 3, l.NumViews())

	v, ok := l.View(2)
	require.True(t, ok)
	assert.Equal(t, 1.0, v.Scale, "zero scale defaults to 1")
	_, ok = l.View(3)
	assert.False(t, ok)
	assert.Equal(t, "1280x720+1920+0", l.Views()[1].Rect.String())
	assert.Equal(t, "right", Right.String())
}

func TestLineIntersect(t *testing.T) {
	tests := []struct {
		name   string
		a, b   Line
		want   Point
		wantOK bool
	}{
		{
			name:   "crossing",
			a:      Line{Point{0, 0}, Point{10, 10}},
			b:      Line{Point{0, 10}, Point{10, 0}},
			want:   Point{5, 5},
			wantOK: true,
		},
		{
			name:   "touching endpoint",
			a:      Line{Point{0, 5}, Point{10, 5}},
			b:      Line{Point{10, 0}, Point{10, 10}},
			want:   Point{10, 5},
			wantOK: true,
		},
		{
			name: "parallel",
			a:    Line{Point{0, 0}, Point{10, 0}},
			b:    Line{Point{0, 1}, Point{10, 1}},
		},
		{
			name: "short of the edge",
			a:    Line{Point{0, 5}, Point{9, 5}},
			b:    Line{Point{10, 0}, Point{10, 10}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.a.Intersect(tt.b)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want.X, got.X, 1e-9)
				assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
			}
		})
	}
}
