package display

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/inputseat/internal/config"
	"github.com/bnema/inputseat/internal/viewport"
)

const randrJSON = `[
  {
    "name": "DP-1",
    "description": "Dell Inc. DELL U2720Q (DP-1)",
    "enabled": true,
    "modes": [
      {"width": 3840, "height": 2160, "refresh": 59.997, "preferred": true, "current": true},
      {"width": 2560, "height": 1440, "refresh": 59.951, "preferred": false, "current": false}
    ],
    "position": {"x": 1080, "y": 0},
    "transform": "normal",
    "scale": 1.5
  },
  {
    "name": "HDMI-A-1",
    "enabled": true,
    "modes": [{"width": 1920, "height": 1080, "refresh": 60, "current": true}],
    "position": {"x": 0, "y": 0},
    "transform": "90",
    "scale": 1
  },
  {
    "name": "eDP-1",
    "enabled": false,
    "modes": [{"width": 2880, "height": 1800, "refresh": 90, "current": true}],
    "position": {"x": 0, "y": 0},
    "scale": 2
  }
]`

const randrText = `DP-1 "Dell Inc. DELL U2720Q (DP-1)"
  Make: Dell Inc.
  Model: DELL U2720Q
  Enabled: yes
  Modes:
    3840x2160 px, 59.997002 Hz (preferred, current)
    2560x1440 px, 59.951000 Hz
  Position: 1080,0
  Transform: normal
  Scale: 1.500000
HDMI-A-1 "Unknown (HDMI-A-1)"
  Enabled: yes
  Modes:
    1920x1080 px, 60.000000 Hz (current)
  Position: 0,0
  Transform: 90
  Scale: 1.000000
eDP-1 "Laptop panel"
  Enabled: no
  Modes:
    2880x1800 px, 90.000000 Hz (current)
  Position: 0,0
`

var wantMonitors = []Monitor{
	{Name: "DP-1", X: 1080, Y: 0, Width: 3840, Height: 2160, Scale: 1.5},
	{Name: "HDMI-A-1", X: 0, Y: 0, Width: 1080, Height: 1920, Scale: 1, Primary: true},
}

type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) run(_ context.Context, _ string, args ...string) ([]byte, error) {
	key := ""
	if len(args) > 0 {
		key = args[0]
	}
	f.calls = append(f.calls, key)
	return []byte(f.outputs[key]), f.errs[key]
}

func TestParseJSON(t *testing.T) {
	monitors, err := parseJSON([]byte(randrJSON))
	require.NoError(t, err)
	assert.Equal(t, wantMonitors, monitors)

	_, err = parseJSON([]byte(`[{"name": "X", "enabled": false}]`))
	assert.ErrorIs(t, err, ErrNoMonitors)

	_, err = parseJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseText(t *testing.T) {
	monitors, err := parseText([]byte(randrText))
	require.NoError(t, err)
	assert.Equal(t, wantMonitors, monitors)

	_, err = parseText([]byte("\n"))
	assert.ErrorIs(t, err, ErrNoMonitors)
}

func TestWlrRandrFallback(t *testing.T) {
	tests := []struct {
		name      string
		runner    *fakeRunner
		wantCalls []string
		wantErr   bool
	}{
		{
			name:      "json",
			runner:    &fakeRunner{outputs: map[string]string{"--json": randrJSON}},
			wantCalls: []string{"--json"},
		},
		{
			name: "json flag unsupported",
			runner: &fakeRunner{
				outputs: map[string]string{"--json": "unknown option", "": randrText},
				errs:    map[string]error{"--json": errors.New("exit status 1")},
			},
			wantCalls: []string{"--json", ""},
		},
		{
			name:      "json unparseable",
			runner:    &fakeRunner{outputs: map[string]string{"--json": "{", "": randrText}},
			wantCalls: []string{"--json", ""},
		},
		{
			name: "both fail",
			runner: &fakeRunner{
				errs: map[string]error{"--json": errors.New("exit status 1"), "": errors.New("exit status 1")},
			},
			wantCalls: []string{"--json", ""},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &WlrRandr{path: "wlr-randr", run: tt.runner.run}
			monitors, err := w.Monitors(context.Background())
			assert.Equal(t, tt.wantCalls, tt.runner.calls)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, wantMonitors, monitors)
		})
	}
}

func TestMarkPrimary(t *testing.T) {
	tests := []struct {
		name     string
		monitors []Monitor
		want     int
	}{
		{"explicit", []Monitor{{X: 0}, {X: 100, Primary: true}}, 1},
		{"origin", []Monitor{{X: 100}, {X: 0}}, 1},
		{"first", []Monitor{{X: 100}, {X: 200}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			markPrimary(tt.monitors)
			for i, m := range tt.monitors {
				assert.Equal(t, i == tt.want, m.Primary, "monitor %d", i)
			}
		})
	}
}

func TestLayout(t *testing.T) {
	physical := Layout(wantMonitors, false)
	require.Equal(t, 2, physical.NumViews())
	v, _ := physical.View(0)
	assert.Equal(t, viewport.Rect{X: 1080, Y: 0, Width: 3840, Height: 2160}, v.Rect)
	assert.Equal(t, 1.5, v.Scale)
	assert.False(t, physical.Scaled())

	logical := Layout(wantMonitors, true)
	v, _ = logical.View(0)
	assert.Equal(t, viewport.Rect{X: 1080, Y: 0, Width: 2560, Height: 1440}, v.Rect)
	assert.True(t, logical.Scaled())

	// the rotated monitor sits left of DP-1
	assert.Equal(t, 0, logical.Neighbor(1, viewport.Right))
}

func TestConfigRoundTrip(t *testing.T) {
	vs := ToConfig(wantMonitors, true)
	require.Len(t, vs, 2)
	assert.Equal(t, config.ViewportConfig{Name: "DP-1", X: 1080, Width: 2560, Height: 1440, Scale: 1.5}, vs[0])

	layout := FromConfig(vs, true)
	assert.Equal(t, Layout(wantMonitors, true).Views(), layout.Views())

	unnamed := FromConfig([]config.ViewportConfig{{Width: 800, Height: 600}}, false)
	v, _ := unnamed.View(0)
	assert.Equal(t, "view-0", v.Name)
	assert.Equal(t, 1.0, v.Scale)
}

type staticSource struct {
	monitors []Monitor
	err      error
}

func (s staticSource) Monitors(context.Context) ([]Monitor, error) {
	return s.monitors, s.err
}

func TestDetect(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{
		Viewports: []config.ViewportConfig{{Name: "fixed", Width: 1024, Height: 768, Scale: 1}},
	}
	layout, err := Detect(ctx, cfg, staticSource{err: errors.New("unused")})
	require.NoError(t, err)
	v, _ := layout.View(0)
	assert.Equal(t, "fixed", v.Name)

	cfg = &config.Config{ViewsScaled: true}
	layout, err = Detect(ctx, cfg, staticSource{monitors: wantMonitors})
	require.NoError(t, err)
	assert.Equal(t, 2, layout.NumViews())
	assert.True(t, layout.Scaled())

	_, err = Detect(ctx, cfg, staticSource{err: ErrNoMonitors})
	assert.ErrorIs(t, err, ErrNoMonitors)

	_, err = Detect(ctx, cfg, nil)
	assert.ErrorIs(t, err, ErrNoMonitors)
}

func TestWlrRandrLive(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping wlr-randr test in short mode")
	}
	w, err := NewWlrRandr()
	if err != nil {
		t.Skipf("wlr-randr not available: %v", err)
	}
	monitors, err := w.Monitors(context.Background())
	if err != nil {
		t.Skipf("No compositor to query: %v", err)
	}
	assert.NotEmpty(t, monitors)
}
