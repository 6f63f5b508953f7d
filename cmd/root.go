package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/inputseat/internal/config"
	"github.com/bnema/inputseat/internal/logger"
)

var (
	configFile string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "inputseat",
		Short: "inputseat - input device seat engine",
		Long: `inputseat reads evdev input devices and normalizes them into one seat:
a shared pointer, a keyboard state with modifiers and repeat, touch
contacts, tablets and pads. The resulting event stream can be watched,
recorded, replayed or mirrored onto uinput devices.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default is $XDG_CONFIG_HOME/inputseat/inputseat.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// loadConfig reads the configuration and applies the log level. The flag
// wins over the file, which wins over LOG_LEVEL.
func loadConfig(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		config.SetConfigPath(configFile)
	}
	if err := config.Init(); err != nil {
		return err
	}

	level := config.Get().Logging.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if level != "" && !logger.SetLevel(level) {
		return fmt.Errorf("unknown log level %q", level)
	}
	return nil
}
