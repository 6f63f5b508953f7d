package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/inputseat/internal/seat"
	"github.com/bnema/inputseat/internal/viewport"
)

// StatusBar represents a reusable status bar component
type StatusBar struct {
	Width       int
	Title       string
	Status      string
	Active      bool
	ShowSpinner bool
	spinner     spinner.Model
}

// NewStatusBar creates a new status bar
func NewStatusBar(title string) *StatusBar {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: SpinnerDot,
		FPS:    time.Second / 10,
	}
	s.Style = SpinnerStyle

	return &StatusBar{
		Title:       title,
		ShowSpinner: true,
		spinner:     s,
	}
}

// Init implements tea.Model
func (s *StatusBar) Init() tea.Cmd {
	return s.spinner.Tick
}

// Update implements tea.Model
func (s *StatusBar) Update(msg tea.Msg) (*StatusBar, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd
	case tea.WindowSizeMsg:
		s.Width = msg.Width
	}
	return s, nil
}

// View renders the status bar
func (s *StatusBar) View() string {
	title := TitleStyle.Render(s.Title)

	status := s.Status
	if s.ShowSpinner && s.Active {
		status = s.spinner.View() + " " + s.Status
	}
	statusFormatted := FormatStatus(s.Active, status)

	gap := s.Width - lipgloss.Width(title) - lipgloss.Width(statusFormatted) - 4
	if gap < 1 {
		gap = 1
	}
	line := title + strings.Repeat(" ", gap) + statusFormatted

	return BoxStyle.Width(s.Width).Render(line)
}

// InfoPanel represents a panel with information
type InfoPanel struct {
	Title   string
	Content []string
	Width   int
}

// View renders the info panel
func (p *InfoPanel) View() string {
	var b strings.Builder

	if p.Title != "" {
		b.WriteString(SubheaderStyle.Render(p.Title))
		b.WriteString("\n")
	}
	for i, line := range p.Content {
		b.WriteString(TextStyle.Render(line))
		if i < len(p.Content)-1 {
			b.WriteString("\n")
		}
	}

	return BoxStyle.Width(p.Width).Render(b.String())
}

// DeviceList shows the physical devices of the seat
type DeviceList struct {
	Devices []*seat.Device
	Width   int
}

// View renders the device list
func (d *DeviceList) View() string {
	var b strings.Builder

	b.WriteString(SubheaderStyle.Render(fmt.Sprintf("Devices (%d)", len(d.Devices))))
	b.WriteString("\n")

	if len(d.Devices) == 0 {
		b.WriteString(MutedStyle.Render("No devices"))
	}
	for i, dev := range d.Devices {
		name := ListItemStyle.Render(dev.Name())
		if dev.Virtual() {
			name = ListItemStyle.Foreground(ColorSecondary).Render(dev.Name())
		}
		b.WriteString(fmt.Sprintf("%s %s %s",
			SubtleStyle.Render(fmt.Sprintf("%3d", dev.ID())),
			name,
			SubtleStyle.Render("("+dev.Type().String()+")")))
		if i < len(d.Devices)-1 {
			b.WriteString("\n")
		}
	}

	return BoxStyle.Width(d.Width).Render(b.String())
}

// ViewportInfo displays the monitor layout the pointer moves across
type ViewportInfo struct {
	Layout *viewport.Layout
	Width  int
}

// View renders the viewport info
func (v *ViewportInfo) View() string {
	var b strings.Builder

	var views []viewport.View
	if v.Layout != nil {
		views = v.Layout.Views()
	}
	b.WriteString(SubheaderStyle.Render(fmt.Sprintf("Viewports (%d)", len(views))))

	for i, view := range views {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%d. %s %s %s",
			i+1,
			BoldStyle.Render(view.Name),
			TextStyle.Render(view.Rect.String()),
			SubtleStyle.Render(fmt.Sprintf("@%.2f", view.Scale))))
	}

	return BoxStyle.Width(v.Width).Render(b.String())
}

// ControlsHelp displays keyboard controls
type ControlsHelp struct {
	Controls []Control
	Width    int
}

// Control represents a keyboard control
type Control struct {
	Key  string
	Desc string
}

// View renders the controls help on one line
func (c *ControlsHelp) View() string {
	parts := make([]string, 0, len(c.Controls))
	for _, ctrl := range c.Controls {
		parts = append(parts, FormatControl(ctrl.Key, ctrl.Desc))
	}
	return SubtleStyle.Width(c.Width).Render(strings.Join(parts, "  "))
}
