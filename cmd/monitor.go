package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bnema/inputseat/internal/config"
	"github.com/bnema/inputseat/internal/logger"
	"github.com/bnema/inputseat/internal/seat"
	"github.com/bnema/inputseat/internal/ui"
)

const monitorBuffer = 1024

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch the seat in a terminal UI",
	Long: `Run the seat on the local input devices and show the normalized event
stream together with the pointer position, modifiers, touch mode and the
current device list.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// feed pumps the session into a channel for the UI. Events are dropped
// rather than stalling the seat when the UI falls behind.
func feed(ctx context.Context, sess *session) (<-chan seat.Event, <-chan error) {
	ch := make(chan seat.Event, monitorBuffer)
	errCh := make(chan error, 1)
	go func() {
		defer close(ch)
		dropped := 0
		errCh <- sess.pump(ctx, func(ev seat.Event) {
			select {
			case ch <- ev:
			default:
				dropped++
				if dropped == 1 || dropped%monitorBuffer == 0 {
					logger.Debug("Monitor is behind, dropping events", "dropped", dropped)
				}
			}
		})
	}()
	return ch, errCh
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := newEvdevSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	pumpCtx, cancel := context.WithCancel(ctx)
	events, pumpErr := feed(pumpCtx, sess)

	model := ui.NewMonitorModel(sess.seat, events)
	runErr := ui.NewProgramRunner(ui.DefaultProgramConfig()).Run(ctx, model)

	cancel()
	if err := <-pumpErr; err != nil {
		logger.Warn("Seat stopped", "err", err)
	}
	if runErr != nil {
		return runErr
	}
	logger.Info("Monitor stopped", "events", model.Total())
	return nil
}
