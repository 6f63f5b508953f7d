package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/bnema/inputseat/internal/config"
	"github.com/bnema/inputseat/internal/display"
	"github.com/bnema/inputseat/internal/logger"
	"github.com/bnema/inputseat/internal/ui"
)

// DisplayInfo represents the display information output
type DisplayInfo struct {
	Monitors []MonitorInfo `json:"monitors"`
	Scaled   bool          `json:"scaled"`
	Error    string        `json:"error,omitempty"`
}

// MonitorInfo is one monitor and the viewport the seat derives from it
type MonitorInfo struct {
	Name     string  `json:"name"`
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Primary  bool    `json:"primary"`
	Scale    float64 `json:"scale"`
	Viewport string  `json:"viewport"`
}

var (
	monitorsJSON   bool
	monitorsSave   bool
	monitorsScaled bool
)

var monitorsCmd = &cobra.Command{
	Use:   "monitors",
	Short: "Show the monitor layout",
	Long: `Detect the connected monitors with wlr-randr and show the viewports the
seat constrains the pointer to. With --save the layout is written to the
configuration file so it no longer has to be detected at startup.`,
	RunE: runMonitors,
}

func init() {
	monitorsCmd.Flags().BoolVar(&monitorsJSON, "json", false, "Output in JSON format")
	monitorsCmd.Flags().BoolVar(&monitorsSave, "save", false, "Store the detected layout as configured viewports")
	monitorsCmd.Flags().BoolVar(&monitorsScaled, "scaled", false, "Use logical (scaled) monitor sizes")
	rootCmd.AddCommand(monitorsCmd)
}

func describeMonitors(monitors []display.Monitor, scaled bool) DisplayInfo {
	info := DisplayInfo{
		Monitors: make([]MonitorInfo, 0, len(monitors)),
		Scaled:   scaled,
	}
	for _, m := range monitors {
		info.Monitors = append(info.Monitors, MonitorInfo{
			Name:     m.Name,
			X:        m.X,
			Y:        m.Y,
			Width:    m.Width,
			Height:   m.Height,
			Primary:  m.Primary,
			Scale:    m.Scale,
			Viewport: m.View(scaled).Rect.String(),
		})
	}
	return info
}

func renderMonitors(out io.Writer, monitors []display.Monitor, scaled bool) {
	if len(monitors) == 0 {
		fmt.Fprintln(out, "No monitors detected")
		return
	}

	info := describeMonitors(monitors, scaled)
	rows := make([][]string, 0, len(info.Monitors))
	for _, m := range info.Monitors {
		primary := ""
		if m.Primary {
			primary = "yes"
		}
		rows = append(rows, []string{
			m.Name,
			fmt.Sprintf("%dx%d", m.Width, m.Height),
			fmt.Sprintf("%d,%d", m.X, m.Y),
			fmt.Sprintf("%.2f", m.Scale),
			m.Viewport,
			primary,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(ui.TableBorderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return ui.TableHeaderStyle
			case col == 0:
				return ui.TableCellStyle.Foreground(ui.ColorInfo).Bold(true)
			default:
				return ui.TableCellStyle
			}
		}).
		Headers("NAME", "MODE", "POSITION", "SCALE", "VIEWPORT", "PRIMARY").
		Rows(rows...)

	fmt.Fprintln(out, t.String())

	w, h := display.Layout(monitors, scaled).Extents()
	fmt.Fprintln(out, ui.SubtleStyle.Render(fmt.Sprintf("Total virtual screen: %.0fx%.0f", w, h)))
}

// saveLayout writes the monitors as configured viewports
func saveLayout(monitors []display.Monitor, scaled bool) error {
	config.UpdateViewports(display.ToConfig(monitors, scaled), scaled)
	if err := config.Save(); err != nil {
		return err
	}
	logger.Infof("Saved %d viewport(s) to: %s", len(monitors), config.GetConfigPath())
	return nil
}

func runMonitors(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	scaled := config.Get().ViewsScaled
	if cmd.Flags().Changed("scaled") {
		scaled = monitorsScaled
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var monitors []display.Monitor
	src, err := display.NewWlrRandr()
	if err == nil {
		monitors, err = src.Monitors(ctx)
	}
	if err != nil {
		if monitorsJSON {
			return json.NewEncoder(out).Encode(DisplayInfo{Error: err.Error()})
		}
		return fmt.Errorf("failed to detect monitors: %w", err)
	}

	if monitorsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(describeMonitors(monitors, scaled)); err != nil {
			return err
		}
	} else {
		renderMonitors(out, monitors, scaled)
	}

	if monitorsSave {
		return saveLayout(monitors, scaled)
	}
	return nil
}
