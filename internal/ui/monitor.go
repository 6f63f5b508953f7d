package ui

import (
	"fmt"
	"strings"

	logview "github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/inputseat/internal/eventlog"
	"github.com/bnema/inputseat/internal/keymap"
	"github.com/bnema/inputseat/internal/seat"
	"github.com/bnema/inputseat/internal/viewport"
)

const (
	maxLogLines = 500
	maxBatch    = 64
)

// StateSource is the seat state the monitor polls after every batch of
// events. *seat.Seat implements it.
type StateSource interface {
	ID() string
	PointerPosition() (x, y float64)
	Modifiers() keymap.Modifiers
	TouchMode() bool
	Devices() []*seat.Device
	Viewports() *viewport.Layout
}

// EventsMsg carries a batch of normalized events into the model
type EventsMsg []seat.Event

// EventsClosedMsg is sent once the event channel is closed
type EventsClosedMsg struct{}

// MonitorModel is the Bubble Tea model of the live seat monitor
type MonitorModel struct {
	source    StateSource
	events    <-chan seat.Event
	statusBar *StatusBar
	devices   *DeviceList
	viewports *ViewportInfo
	controls  *ControlsHelp
	log       logview.Model

	lines      []string
	total      int
	hideMotion bool
	paused     bool
	closed     bool
	quitting   bool

	x, y      float64
	modifiers keymap.Modifiers
	touchMode bool

	width  int
	height int
}

// NewMonitorModel creates a monitor reading events from events
func NewMonitorModel(source StateSource, events <-chan seat.Event) *MonitorModel {
	statusBar := NewStatusBar("inputseat")
	statusBar.Active = true
	statusBar.Status = "Watching " + source.ID()

	m := &MonitorModel{
		source:    source,
		events:    events,
		statusBar: statusBar,
		devices:   &DeviceList{},
		viewports: &ViewportInfo{},
		controls: &ControlsHelp{
			Controls: []Control{
				{Key: "q", Desc: "Quit"},
				{Key: "m", Desc: "Toggle motion"},
				{Key: "p", Desc: "Pause log"},
				{Key: "c", Desc: "Clear log"},
			},
		},
		log:    logview.New(80, 10),
		width:  80,
		height: 24,
	}
	m.refresh()
	return m
}

// Init implements tea.Model
func (m *MonitorModel) Init() tea.Cmd {
	return tea.Batch(m.statusBar.Init(), waitForEvents(m.events))
}

// waitForEvents blocks for one event, then takes whatever else is already
// queued so bursts of motion render once
func waitForEvents(ch <-chan seat.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return EventsClosedMsg{}
		}
		batch := EventsMsg{ev}
		for len(batch) < maxBatch {
			select {
			case ev, ok := <-ch:
				if !ok {
					return batch
				}
				batch = append(batch, ev)
			default:
				return batch
			}
		}
		return batch
	}
}

// Update implements tea.Model
func (m *MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "m":
			m.hideMotion = !m.hideMotion
		case "p":
			m.paused = !m.paused
			m.updateStatus()
		case "c":
			m.lines = m.lines[:0]
			m.log.SetContent("")
		default:
			var cmd tea.Cmd
			m.log, cmd = m.log.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case EventsMsg:
		m.appendEvents(msg)
		m.refresh()
		cmds = append(cmds, waitForEvents(m.events))

	case EventsClosedMsg:
		m.closed = true
		m.statusBar.Active = false
		m.updateStatus()
	}

	statusBar, cmd := m.statusBar.Update(msg)
	m.statusBar = statusBar
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *MonitorModel) appendEvents(events EventsMsg) {
	m.total += len(events)
	if m.paused {
		return
	}

	for _, ev := range events {
		if m.hideMotion && ev.Kind() == seat.KindMotion {
			continue
		}
		line := eventlog.FromEvent(ev).String()
		m.lines = append(m.lines, EventStyle(ev.Kind()).Render(line))
	}
	if over := len(m.lines) - maxLogLines; over > 0 {
		m.lines = append(m.lines[:0], m.lines[over:]...)
	}

	follow := m.log.AtBottom() || m.log.TotalLineCount() == 0
	m.log.SetContent(strings.Join(m.lines, "\n"))
	if follow {
		m.log.GotoBottom()
	}
}

// refresh polls the seat state
func (m *MonitorModel) refresh() {
	m.x, m.y = m.source.PointerPosition()
	m.modifiers = m.source.Modifiers()
	m.touchMode = m.source.TouchMode()
	m.devices.Devices = m.source.Devices()
	m.viewports.Layout = m.source.Viewports()
	m.updateStatus()
	m.resize()
}

func (m *MonitorModel) updateStatus() {
	switch {
	case m.closed:
		m.statusBar.Status = fmt.Sprintf("Seat %s closed, %d events", m.source.ID(), m.total)
	case m.paused:
		m.statusBar.Status = fmt.Sprintf("Paused, %d events", m.total)
	default:
		m.statusBar.Status = fmt.Sprintf("Watching %s, %d events", m.source.ID(), m.total)
	}
}

func (m *MonitorModel) stateView() string {
	mods := "none"
	if m.modifiers != 0 {
		mods = m.modifiers.String()
	}
	touch := "off"
	if m.touchMode {
		touch = SuccessStyle.Render("on")
	}
	panel := InfoPanel{
		Title: "Seat " + m.source.ID(),
		Content: []string{
			fmt.Sprintf("Pointer    %.2f, %.2f", m.x, m.y),
			fmt.Sprintf("Modifiers  %s", mods),
			fmt.Sprintf("Touch mode %s", touch),
		},
	}
	return panel.View()
}

func (m *MonitorModel) header() string {
	third := m.width / 3
	m.devices.Width = third
	m.viewports.Width = third
	m.statusBar.Width = m.width
	m.controls.Width = m.width

	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(third).Render(m.stateView()),
		m.devices.View(),
		m.viewports.View(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, m.statusBar.View(), panels)
}

// resize fits the event log into the space the panels leave
func (m *MonitorModel) resize() {
	used := lipgloss.Height(m.header()) + lipgloss.Height(m.controls.View()) + 2
	h := m.height - used
	if h < 3 {
		h = 3
	}
	m.log.Width = m.width - 2
	m.log.Height = h
}

// View implements tea.Model
func (m *MonitorModel) View() string {
	if m.quitting {
		return MutedStyle.Render("Stopping monitor...\n")
	}

	logBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorSubtle).
		Render(m.log.View())

	return lipgloss.JoinVertical(lipgloss.Left, m.header(), logBox, m.controls.View())
}

// Total returns the number of events received
func (m *MonitorModel) Total() int {
	return m.total
}
