package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/bnema/inputseat/internal/config"
	"github.com/bnema/inputseat/internal/logger"
	"github.com/bnema/inputseat/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage inputseat configuration",
	Long:  `Show, initialize and save the seat, keyboard, backend and output settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig(cmd.OutOrStdout(), config.Get(), config.GetConfigPath())
	},
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save current configuration to file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Save(); err != nil {
			return err
		}
		logger.Infof("Configuration saved to: %s", config.GetConfigPath())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.GetConfigPath()
		if _, err := os.Stat(configPath); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				logger.Infof("Configuration file already exists at: %s", configPath)
				logger.Info("Use --force to overwrite")
				return nil
			}
		}

		if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
			answers := newSetupAnswers(config.Get())
			if err := answers.form().Run(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					logger.Info("Setup cancelled")
					return nil
				}
				return fmt.Errorf("setup failed: %w", err)
			}
			if err := answers.apply(config.Get()); err != nil {
				return err
			}
		}

		if err := config.Save(); err != nil {
			return err
		}

		logger.Infof("Configuration initialized at: %s", configPath)
		logger.Info("You can now:")
		logger.Info("  - Edit the configuration file directly")
		logger.Info("  - Use 'inputseat monitors --save' to store the monitor layout")
		logger.Info("  - Use 'inputseat config show' to view current settings")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSaveCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().Bool("force", false, "Force overwrite existing configuration")
	configInitCmd.Flags().BoolP("interactive", "i", false, "Answer a few questions instead of writing defaults")

	rootCmd.AddCommand(configCmd)
}

func showConfig(out io.Writer, cfg *config.Config, path string) error {
	section := func(name string) {
		fmt.Fprintln(out)
		fmt.Fprintln(out, ui.SubheaderStyle.Render("["+name+"]"))
	}

	fmt.Fprintln(out, ui.HeaderStyle.Render("Current Configuration"))
	fmt.Fprintln(out, ui.CreateSeparator(50, "─"))
	fmt.Fprintf(out, "Config file: %s\n", path)

	section("Seat")
	fmt.Fprintf(out, "  ID: %s\n", cfg.Seat.ID)
	fmt.Fprintf(out, "  Initial Pointer: %.0f, %.0f\n", cfg.Seat.InitialPointerX, cfg.Seat.InitialPointerY)

	section("Keyboard")
	fmt.Fprintf(out, "  Repeat: %v (delay %dms, interval %dms)\n",
		cfg.Keyboard.Repeat, cfg.Keyboard.RepeatDelayMs, cfg.Keyboard.RepeatIntervalMs)
	fmt.Fprintf(out, "  NumLock: %v\n", cfg.Keyboard.NumLock)
	fmt.Fprintf(out, "  Layout: %d of %d\n", cfg.Keyboard.LayoutIndex, cfg.Keyboard.Layouts)

	section("Backend")
	fmt.Fprintf(out, "  Input Directory: %s\n", cfg.Backend.InputDir)
	fmt.Fprintf(out, "  Ignore Names: %s\n", strings.Join(cfg.Backend.IgnoreNames, ", "))
	fmt.Fprintf(out, "  Grab: %v\n", cfg.Backend.Grab)
	fmt.Fprintf(out, "  Hotplug Debounce: %dms\n", cfg.Backend.Debounce)

	section("Viewports")
	if len(cfg.Viewports) == 0 {
		fmt.Fprintln(out, "  Detected at startup")
	} else {
		fmt.Fprintf(out, "  Scaled: %v\n", cfg.ViewsScaled)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  Name\tPosition\tSize\tScale")
		for _, v := range cfg.Viewports {
			fmt.Fprintf(w, "  %s\t%d,%d\t%dx%d\t%.2f\n", v.Name, v.X, v.Y, v.Width, v.Height, v.Scale)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(cfg.Barriers) > 0 {
		section("Barriers")
		for i, b := range cfg.Barriers {
			dirs := "none"
			if len(b.Directions) > 0 {
				dirs = strings.Join(b.Directions, " ")
			}
			fmt.Fprintf(out, "  %d. (%g,%g)-(%g,%g) passes %s\n", i, b.X1, b.Y1, b.X2, b.Y2, dirs)
		}
	}

	section("Outputs")
	fmt.Fprintf(out, "  Mirror: %v (%s)\n", cfg.Mirror.Enabled, cfg.Mirror.Name)
	fmt.Fprintf(out, "  Record: %s\n", orNone(cfg.Record.Path))
	fmt.Fprintf(out, "  Metrics: %s\n", orNone(cfg.Metrics.Address))

	section("Logging")
	fmt.Fprintf(out, "  Level: %s\n", orNone(cfg.Logging.LogLevel))
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// setupAnswers holds the interactive form values as typed
type setupAnswers struct {
	SeatID         string
	Repeat         bool
	RepeatDelay    string
	RepeatInterval string
	MirrorEnabled  bool
	RecordPath     string
	MetricsAddress string
}

func newSetupAnswers(cfg *config.Config) *setupAnswers {
	return &setupAnswers{
		SeatID:         cfg.Seat.ID,
		Repeat:         cfg.Keyboard.Repeat,
		RepeatDelay:    strconv.Itoa(cfg.Keyboard.RepeatDelayMs),
		RepeatInterval: strconv.Itoa(cfg.Keyboard.RepeatIntervalMs),
		MirrorEnabled:  cfg.Mirror.Enabled,
		RecordPath:     cfg.Record.Path,
		MetricsAddress: cfg.Metrics.Address,
	}
}

func validateMillis(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("enter a number of milliseconds")
	}
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func (a *setupAnswers) form() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Seat ID").
				Value(&a.SeatID).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("seat id must not be empty")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Enable key repeat?").
				Value(&a.Repeat),
			huh.NewInput().
				Title("Repeat delay (ms)").
				Value(&a.RepeatDelay).
				Validate(validateMillis),
			huh.NewInput().
				Title("Repeat interval (ms)").
				Value(&a.RepeatInterval).
				Validate(validateMillis),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Mirror events on uinput devices?").
				Value(&a.MirrorEnabled),
			huh.NewInput().
				Title("Record events to").
				Description("Leave empty to disable recording").
				Value(&a.RecordPath),
			huh.NewInput().
				Title("Metrics address").
				Description("For example 127.0.0.1:9273, empty to disable").
				Value(&a.MetricsAddress),
		),
	)
}

// apply stores the answers in the loaded configuration
func (a *setupAnswers) apply(cfg *config.Config) error {
	if strings.TrimSpace(a.SeatID) == "" {
		return fmt.Errorf("seat id must not be empty")
	}
	delay, err := strconv.Atoi(strings.TrimSpace(a.RepeatDelay))
	if err != nil || delay < 0 {
		return fmt.Errorf("invalid repeat delay %q", a.RepeatDelay)
	}
	interval, err := strconv.Atoi(strings.TrimSpace(a.RepeatInterval))
	if err != nil || interval < 0 {
		return fmt.Errorf("invalid repeat interval %q", a.RepeatInterval)
	}

	kb := cfg.Keyboard
	kb.Repeat = a.Repeat
	kb.RepeatDelayMs = delay
	kb.RepeatIntervalMs = interval

	mirrorCfg := cfg.Mirror
	mirrorCfg.Enabled = a.MirrorEnabled

	config.UpdateSeatID(strings.TrimSpace(a.SeatID))
	config.UpdateKeyboard(kb)
	config.UpdateOutputs(
		mirrorCfg,
		config.RecordConfig{Path: strings.TrimSpace(a.RecordPath)},
		config.MetricsConfig{Address: strings.TrimSpace(a.MetricsAddress)},
	)
	return nil
}
