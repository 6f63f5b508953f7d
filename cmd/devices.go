package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	evdev "github.com/gvalkov/golang-evdev"
	"github.com/spf13/cobra"

	"github.com/bnema/inputseat/internal/backend"
	"github.com/bnema/inputseat/internal/config"
	"github.com/bnema/inputseat/internal/ui"
)

var devicesJSON bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the input devices the seat would open",
	Long: `List the evdev nodes in the input directory with the capabilities the seat
assigns them. Devices matching backend.ignore_names are shown but marked
as ignored.`,
	RunE: listDevices,
}

func init() {
	devicesCmd.Flags().BoolVar(&devicesJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(devicesCmd)
}

// DeviceInfo describes one device node
type DeviceInfo struct {
	Path         string `json:"path"`
	Symlink      string `json:"symlink,omitempty"`
	Name         string `json:"name"`
	Phys         string `json:"phys,omitempty"`
	Vendor       uint16 `json:"vendor"`
	Product      uint16 `json:"product"`
	Capabilities string `json:"capabilities"`
	Ignored      bool   `json:"ignored"`
}

// classify mirrors the seat's device classification using the capability
// lists the kernel reports. Input properties are not available here, so
// touch devices with finger tools count as touchpads.
func classify(caps map[int][]int) backend.Capability {
	has := func(typ, code int) bool {
		for _, c := range caps[typ] {
			if c == code {
				return true
			}
		}
		return false
	}

	var c backend.Capability
	switch {
	case has(evdev.EV_KEY, evdev.BTN_0) && !has(evdev.EV_KEY, evdev.BTN_TOOL_PEN) &&
		(has(evdev.EV_ABS, evdev.ABS_WHEEL) || has(evdev.EV_ABS, evdev.ABS_RX)):
		c |= backend.CapTabletPad
	case has(evdev.EV_KEY, evdev.BTN_TOOL_PEN) || has(evdev.EV_KEY, evdev.BTN_STYLUS):
		c |= backend.CapTabletTool
	case has(evdev.EV_ABS, evdev.ABS_MT_POSITION_X) ||
		(has(evdev.EV_KEY, evdev.BTN_TOUCH) && has(evdev.EV_ABS, evdev.ABS_X)):
		if has(evdev.EV_KEY, evdev.BTN_TOOL_FINGER) {
			c |= backend.CapPointer | backend.CapGesture
		} else {
			c |= backend.CapTouch
		}
	default:
		if has(evdev.EV_REL, evdev.REL_X) && has(evdev.EV_REL, evdev.REL_Y) {
			c |= backend.CapPointer
		}
		if has(evdev.EV_KEY, evdev.BTN_LEFT) && has(evdev.EV_ABS, evdev.ABS_X) {
			c |= backend.CapPointer
		}
	}
	for _, code := range caps[evdev.EV_KEY] {
		if code >= evdev.KEY_ESC && code < evdev.BTN_MISC {
			c |= backend.CapKeyboard
			break
		}
	}
	if has(evdev.EV_SW, evdev.SW_LID) || has(evdev.EV_SW, evdev.SW_TABLET_MODE) {
		c |= backend.CapSwitch
	}
	return c
}

// ignoredName matches the backend's substring filter
func ignoredName(name string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// findSymlink returns the stable by-id or by-path link to a node
func findSymlink(path string) string {
	for _, dir := range []string{"/dev/input/by-id", "/dev/input/by-path"} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			link := filepath.Join(dir, e.Name())
			target, err := filepath.EvalSymlinks(link)
			if err == nil && target == path {
				return link
			}
		}
	}
	return ""
}

func scanDevices(cfg *config.Config) ([]DeviceInfo, error) {
	devs, err := evdev.ListInputDevices(filepath.Join(cfg.Backend.InputDir, "event*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list input devices: %w", err)
	}

	infos := make([]DeviceInfo, 0, len(devs))
	for _, dev := range devs {
		infos = append(infos, DeviceInfo{
			Path:         dev.Fn,
			Symlink:      findSymlink(dev.Fn),
			Name:         dev.Name,
			Phys:         dev.Phys,
			Vendor:       dev.Vendor,
			Product:      dev.Product,
			Capabilities: classify(dev.CapabilitiesFlat).String(),
			Ignored:      ignoredName(dev.Name, cfg.Backend.IgnoreNames),
		})
		if dev.File != nil {
			_ = dev.File.Close()
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

func renderDevices(out io.Writer, infos []DeviceInfo) {
	if len(infos) == 0 {
		fmt.Fprintln(out, ui.MutedStyle.Render("No input devices found. Reading /dev/input may require the input group."))
		return
	}

	rows := make([][]string, 0, len(infos))
	for _, d := range infos {
		status := "open"
		if d.Ignored {
			status = "ignored"
		}
		rows = append(rows, []string{
			filepath.Base(d.Path),
			d.Name,
			fmt.Sprintf("%04x:%04x", d.Vendor, d.Product),
			d.Capabilities,
			status,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(ui.TableBorderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return ui.TableHeaderStyle
			case col == 4 && infos[row].Ignored:
				return ui.TableCellStyle.Foreground(ui.ColorSubtle)
			case col == 4:
				return ui.TableCellStyle.Foreground(ui.ColorSuccess)
			default:
				return ui.TableCellStyle
			}
		}).
		Headers("NODE", "NAME", "ID", "CAPABILITIES", "STATUS").
		Rows(rows...)

	fmt.Fprintln(out, t.String())
	fmt.Fprintln(out, ui.SubtleStyle.Render(fmt.Sprintf("Total: %d device(s)", len(infos))))
}

func listDevices(cmd *cobra.Command, args []string) error {
	infos, err := scanDevices(config.Get())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if devicesJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	renderDevices(out, infos)
	return nil
}
