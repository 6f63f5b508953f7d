// Package display discovers the monitor arrangement the seat maps pointer
// motion onto and turns it into a viewport layout.
package display

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/bnema/inputseat/internal/config"
	"github.com/bnema/inputseat/internal/logger"
	"github.com/bnema/inputseat/internal/viewport"
)

var ErrNoMonitors = errors.New("no active monitors found")

// Monitor represents a physical display. Position is in the compositor's
// layout space, size is the current mode in device pixels with the output
// transform applied.
type Monitor struct {
	Name    string
	X       int
	Y       int
	Width   int
	Height  int
	Primary bool
	Scale   float64
}

// Bounds returns the monitor's boundaries in device pixels
func (m Monitor) Bounds() (x1, y1, x2, y2 int) {
	return m.X, m.Y, m.X + m.Width, m.Y + m.Height
}

func (m Monitor) String() string {
	primary := ""
	if m.Primary {
		primary = " (primary)"
	}
	return fmt.Sprintf("%s %dx%d+%d+%d @%.2f%s", m.Name, m.Width, m.Height, m.X, m.Y, m.Scale, primary)
}

// View converts the monitor into a viewport. In a scaled layout the
// rectangle is measured in logical units.
func (m Monitor) View(scaled bool) viewport.View {
	scale := m.Scale
	if scale <= 0 {
		scale = 1
	}
	w, h := m.Width, m.Height
	if scaled {
		w = int(math.Round(float64(w) / scale))
		h = int(math.Round(float64(h) / scale))
	}
	return viewport.View{
		Name:  m.Name,
		Rect:  viewport.Rect{X: m.X, Y: m.Y, Width: w, Height: h},
		Scale: scale,
	}
}

// Source lists the current monitors
type Source interface {
	Monitors(ctx context.Context) ([]Monitor, error)
}

// Layout builds a viewport layout from monitors
func Layout(monitors []Monitor, scaled bool) *viewport.Layout {
	views := make([]viewport.View, 0, len(monitors))
	for _, m := range monitors {
		views = append(views, m.View(scaled))
	}
	return viewport.New(views, scaled)
}

// FromConfig builds a layout from configured viewports. Their rectangles
// are used as given.
func FromConfig(vs []config.ViewportConfig, scaled bool) *viewport.Layout {
	views := make([]viewport.View, 0, len(vs))
	for i, v := range vs {
		name := v.Name
		if name == "" {
			name = fmt.Sprintf("view-%d", i)
		}
		views = append(views, viewport.View{
			Name:  name,
			Rect:  viewport.Rect{X: v.X, Y: v.Y, Width: v.Width, Height: v.Height},
			Scale: v.Scale,
		})
	}
	return viewport.New(views, scaled)
}

// ToConfig converts monitors into viewport entries suitable for the
// configuration file
func ToConfig(monitors []Monitor, scaled bool) []config.ViewportConfig {
	out := make([]config.ViewportConfig, 0, len(monitors))
	for _, m := range monitors {
		v := m.View(scaled)
		out = append(out, config.ViewportConfig{
			Name:   v.Name,
			X:      v.X,
			Y:      v.Y,
			Width:  v.Width,
			Height: v.Height,
			Scale:  v.Scale,
		})
	}
	return out
}

// Detect returns the layout to run the seat with. Configured viewports take
// precedence; otherwise src is asked for the current monitors.
func Detect(ctx context.Context, cfg *config.Config, src Source) (*viewport.Layout, error) {
	if len(cfg.Viewports) > 0 {
		logger.Debug("Using configured viewports", "count", len(cfg.Viewports))
		return FromConfig(cfg.Viewports, cfg.ViewsScaled), nil
	}
	if src == nil {
		return nil, ErrNoMonitors
	}

	monitors, err := src.Monitors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to detect monitors: %w", err)
	}
	for _, m := range monitors {
		logger.Debug("Detected monitor", "monitor", m.String())
	}
	return Layout(monitors, cfg.ViewsScaled), nil
}

// markPrimary flags the monitor at the origin as primary when none is,
// falling back to the first one
func markPrimary(monitors []Monitor) {
	for _, m := range monitors {
		if m.Primary {
			return
		}
	}
	for i := range monitors {
		if monitors[i].X == 0 && monitors[i].Y == 0 {
			monitors[i].Primary = true
			return
		}
	}
	if len(monitors) > 0 {
		monitors[0].Primary = true
	}
}
