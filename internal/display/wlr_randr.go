package display

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bnema/inputseat/internal/logger"
)

// runFunc runs a command and returns its combined output
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// WlrRandr detects monitors with the wlr-randr tool
type WlrRandr struct {
	path string
	run  runFunc
}

// NewWlrRandr locates wlr-randr in PATH
func NewWlrRandr() (*WlrRandr, error) {
	path, err := exec.LookPath("wlr-randr")
	if err != nil {
		return nil, fmt.Errorf("wlr-randr not found. Please install wlr-randr: https://gitlab.freedesktop.org/emersion/wlr-randr")
	}
	return &WlrRandr{path: path, run: runCommand}, nil
}

// Monitors asks for JSON output first and falls back to parsing the human
// readable listing from older releases
func (w *WlrRandr) Monitors(ctx context.Context) ([]Monitor, error) {
	output, err := w.run(ctx, w.path, "--json")
	if err == nil {
		monitors, perr := parseJSON(output)
		if perr == nil {
			return monitors, nil
		}
		logger.Debug("wlr-randr JSON output unusable, falling back to text", "err", perr)
	} else {
		if len(output) > 0 {
			logger.Debugf("wlr-randr --json error: %s", strings.TrimSpace(string(output)))
		}
		logger.Debug("JSON mode failed, falling back to text parsing")
	}

	output, err = w.run(ctx, w.path)
	if err != nil {
		if len(output) > 0 {
			logger.Errorf("wlr-randr error: %s", strings.TrimSpace(string(output)))
		}
		return nil, fmt.Errorf("failed to run wlr-randr: %w", err)
	}
	return parseText(output)
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = sessionEnv()
	return cmd.CombinedOutput()
}

// sessionEnv returns the environment for talking to the compositor. Under
// sudo the invoking user's runtime directory and Wayland socket are
// recovered so the tool can connect.
func sessionEnv() []string {
	env := os.Environ()
	sudoUser := os.Getenv("SUDO_USER")
	if sudoUser == "" || os.Geteuid() != 0 {
		return env
	}
	logger.Debugf("Running wlr-randr with sudo, SUDO_USER=%s", sudoUser)

	sudoUID := os.Getenv("SUDO_UID")
	if sudoUID == "" {
		if out, err := exec.Command("id", "-u", sudoUser).Output(); err == nil {
			sudoUID = strings.TrimSpace(string(out))
		}
	}
	if sudoUID == "" {
		logger.Warn("Could not determine the invoking user's uid")
		return env
	}

	runtimeDir := "/run/user/" + sudoUID
	env = append(env, "XDG_RUNTIME_DIR="+runtimeDir)

	display := waylandSocket(runtimeDir)
	if display == "" {
		display = os.Getenv("WAYLAND_DISPLAY")
	}
	if display == "" {
		logger.Warn("Could not detect WAYLAND_DISPLAY for sudo session")
		return env
	}
	logger.Debugf("Using WAYLAND_DISPLAY=%s", display)
	return append(env, "WAYLAND_DISPLAY="+display)
}

func waylandSocket(runtimeDir string) string {
	entries, err := os.ReadDir(runtimeDir)
	if err != nil {
		logger.Warnf("Could not read socket directory %s: %v", runtimeDir, err)
		return ""
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "wayland-") && !strings.HasSuffix(e.Name(), ".lock") {
			return e.Name()
		}
	}
	return ""
}

type randrOutput struct {
	Name      string  `json:"name"`
	Enabled   bool    `json:"enabled"`
	Scale     float64 `json:"scale"`
	Transform string  `json:"transform"`
	Modes     []struct {
		Width   int     `json:"width"`
		Height  int     `json:"height"`
		Refresh float64 `json:"refresh"`
		Current bool    `json:"current"`
	} `json:"modes"`
	Position struct {
		X int `json:"x"`
		Y int `json:"y"`
	} `json:"position"`
}

func parseJSON(data []byte) ([]Monitor, error) {
	var outputs []randrOutput
	if err := json.Unmarshal(data, &outputs); err != nil {
		return nil, fmt.Errorf("failed to decode wlr-randr output: %w", err)
	}

	var monitors []Monitor
	for _, o := range outputs {
		if !o.Enabled {
			continue
		}
		m := Monitor{
			Name:  o.Name,
			X:     o.Position.X,
			Y:     o.Position.Y,
			Scale: o.Scale,
		}
		for _, mode := range o.Modes {
			if mode.Current {
				m.Width, m.Height = mode.Width, mode.Height
				break
			}
		}
		if rotated(o.Transform) {
			m.Width, m.Height = m.Height, m.Width
		}
		if m.Scale <= 0 {
			m.Scale = 1
		}
		if m.Width == 0 || m.Height == 0 {
			logger.Warnf("Skipping monitor %s with invalid dimensions: %dx%d", m.Name, m.Width, m.Height)
			continue
		}
		monitors = append(monitors, m)
	}

	if len(monitors) == 0 {
		return nil, ErrNoMonitors
	}
	markPrimary(monitors)
	return monitors, nil
}

func rotated(transform string) bool {
	return strings.HasSuffix(transform, "90") || strings.HasSuffix(transform, "270")
}

// parseText reads the plain listing:
//
//	DP-1 "Dell Inc. DELL U2720Q (DP-1)"
//	  Enabled: yes
//	  Modes:
//	    3840x2160 px, 59.997002 Hz (preferred, current)
//	  Position: 0,0
//	  Transform: normal
//	  Scale: 1.500000
func parseText(data []byte) ([]Monitor, error) {
	var (
		monitors  []Monitor
		cur       *Monitor
		enabled   bool
		transform string
	)
	flush := func() {
		if cur == nil {
			return
		}
		if rotated(transform) {
			cur.Width, cur.Height = cur.Height, cur.Width
		}
		if enabled && cur.Width > 0 && cur.Height > 0 {
			monitors = append(monitors, *cur)
		}
		cur = nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		// output names start in the first column
		if raw[0] != ' ' && raw[0] != '\t' {
			flush()
			cur = &Monitor{Name: strings.Fields(line)[0], Scale: 1}
			enabled, transform = false, ""
			continue
		}
		if cur == nil {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		switch {
		case found && key == "Enabled":
			enabled = strings.TrimSpace(value) == "yes"
		case found && key == "Position":
			x, y, ok := strings.Cut(strings.TrimSpace(value), ",")
			if ok {
				cur.X, _ = strconv.Atoi(strings.TrimSpace(x))
				cur.Y, _ = strconv.Atoi(strings.TrimSpace(y))
			}
		case found && key == "Transform":
			transform = strings.TrimSpace(value)
		case found && key == "Scale":
			if s, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && s > 0 {
				cur.Scale = s
			}
		case strings.Contains(line, "current"):
			// 1920x1080 px, 60.000000 Hz (current)
			w, h, ok := strings.Cut(strings.Fields(line)[0], "x")
			if ok {
				cur.Width, _ = strconv.Atoi(w)
				cur.Height, _ = strconv.Atoi(h)
			}
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read wlr-randr output: %w", err)
	}

	if len(monitors) == 0 {
		return nil, fmt.Errorf("no monitors detected from wlr-randr output: %w", ErrNoMonitors)
	}
	markPrimary(monitors)
	return monitors, nil
}
