package ui

import (
	"strings"
	"testing"

	"github.com/bnema/inputseat/internal/viewport"
)

func TestStatusBar(t *testing.T) {
	t.Run("creates new status bar", func(t *testing.T) {
		sb := NewStatusBar("Test App")

		if sb.Title != "Test App" {
			t.Errorf("Expected title 'Test App', got %q", sb.Title)
		}
		if !sb.ShowSpinner {
			t.Error("Expected ShowSpinner to be true by default")
		}
		if sb.Init() == nil {
			t.Error("Expected Init to start the spinner")
		}
	})

	t.Run("renders status bar", func(t *testing.T) {
		sb := NewStatusBar("Test App")
		sb.Width = 80
		sb.Status = "Running"
		sb.Active = true

		view := sb.View()

		if !strings.Contains(view, "Test App") {
			t.Error("Status bar should contain title")
		}
		if !strings.Contains(view, "Running") {
			t.Error("Status bar should contain status")
		}
		if !strings.Contains(view, ActiveIndicator) {
			t.Error("Status bar should show the active indicator")
		}
	})
}

func TestInfoPanel(t *testing.T) {
	tests := []struct {
		name     string
		panel    InfoPanel
		mustHave []string
	}{
		{
			name: "with title",
			panel: InfoPanel{
				Title:   "Seat seat0",
				Content: []string{"Line 1", "Line 2"},
				Width:   50,
			},
			mustHave: []string{"Seat seat0", "Line 1", "Line 2"},
		},
		{
			name: "without title",
			panel: InfoPanel{
				Content: []string{"Just content"},
				Width:   50,
			},
			mustHave: []string{"Just content"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := tt.panel.View()

			for _, must := range tt.mustHave {
				if !strings.Contains(view, must) {
					t.Errorf("InfoPanel should contain %q", must)
				}
			}
		})
	}
}

func TestDeviceList(t *testing.T) {
	t.Run("empty list", func(t *testing.T) {
		dl := DeviceList{Width: 60}
		view := dl.View()

		if !strings.Contains(view, "Devices (0)") {
			t.Error("Should contain title with count")
		}
		if !strings.Contains(view, "No devices") {
			t.Error("Should show 'No devices' when empty")
		}
	})

	t.Run("with devices", func(t *testing.T) {
		s := newTestSeat(t)
		dl := DeviceList{Devices: s.Devices(), Width: 60}
		view := dl.View()

		for _, want := range []string{"Devices (2)", "Test Keyboard", "(keyboard)", "Test Mouse", "(pointer)"} {
			if !strings.Contains(view, want) {
				t.Errorf("Should contain %q, got:\n%s", want, view)
			}
		}
	})
}

func TestViewportInfo(t *testing.T) {
	vi := ViewportInfo{
		Layout: viewport.New([]viewport.View{
			{Name: "DP-1", Rect: viewport.Rect{Width: 1920, Height: 1080}, Scale: 1},
			{Name: "DP-2", Rect: viewport.Rect{X: 1920, Width: 2560, Height: 1440}, Scale: 1.5},
		}, false),
		Width: 80,
	}

	view := vi.View()

	for _, want := range []string{"Viewports (2)", "DP-1", "1920x1080+0+0", "DP-2", "2560x1440+1920+0", "@1.50"} {
		if !strings.Contains(view, want) {
			t.Errorf("Should contain %q", want)
		}
	}

	empty := ViewportInfo{Width: 40}
	if !strings.Contains(empty.View(), "Viewports (0)") {
		t.Error("Should render without a layout")
	}
}

func TestControlsHelp(t *testing.T) {
	ch := ControlsHelp{
		Controls: []Control{
			{Key: "q", Desc: "Quit"},
			{Key: "m", Desc: "Toggle motion"},
			{Key: "p", Desc: "Pause log"},
		},
		Width: 80,
	}

	view := ch.View()

	for _, ctrl := range ch.Controls {
		if !strings.Contains(view, ctrl.Key) {
			t.Errorf("Should contain key %q", ctrl.Key)
		}
		if !strings.Contains(view, ctrl.Desc) {
			t.Errorf("Should contain description %q", ctrl.Desc)
		}
	}
}
