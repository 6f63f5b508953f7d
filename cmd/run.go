package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/bnema/inputseat/internal/config"
	"github.com/bnema/inputseat/internal/eventlog"
	"github.com/bnema/inputseat/internal/logger"
	"github.com/bnema/inputseat/internal/mirror"
	"github.com/bnema/inputseat/internal/seat"
)

var (
	runRecordPath string
	runMirror     bool
	runMetrics    string
	runGrab       bool
	runPrint      bool
	runConfine    []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the seat on the local input devices",
	Long: `Open every evdev device in the input directory, normalize their events
into one seat and forward the result to the configured outputs: an event
log file, uinput mirror devices and a Prometheus /metrics endpoint.

Reading /dev/input and writing /dev/uinput usually requires root or
membership in the input group.`,
	RunE: runSeat,
}

func init() {
	runCmd.Flags().StringVarP(&runRecordPath, "record", "r", "", "Record normalized events to this file")
	runCmd.Flags().BoolVar(&runMirror, "mirror", false, "Re-emit normalized events on uinput devices")
	runCmd.Flags().StringVar(&runMetrics, "metrics", "", "Serve Prometheus metrics on this address")
	runCmd.Flags().BoolVar(&runGrab, "grab", false, "Grab devices so no other reader sees their events")
	runCmd.Flags().BoolVarP(&runPrint, "print", "p", false, "Print every normalized event")
	runCmd.Flags().StringSliceVar(&runConfine, "confine", nil, "Keep the pointer inside these viewports (e.g. DP-1)")
	rootCmd.AddCommand(runCmd)
}

// runFlags applies command line overrides to a copy of the configuration
func runFlags(cmd *cobra.Command, base *config.Config) *config.Config {
	cfg := *base
	if cmd.Flags().Changed("record") {
		cfg.Record.Path = runRecordPath
	}
	if cmd.Flags().Changed("mirror") {
		cfg.Mirror.Enabled = runMirror
	}
	if cmd.Flags().Changed("metrics") {
		cfg.Metrics.Address = runMetrics
	}
	if cmd.Flags().Changed("grab") {
		cfg.Backend.Grab = runGrab
	}
	return &cfg
}

// eventSink consumes normalized events next to the seat
type eventSink interface {
	Handle(ev seat.Event) error
	Close() error
}

type recordSink struct {
	w *eventlog.Writer
}

func (r recordSink) Handle(ev seat.Event) error { return r.w.Write(ev) }
func (r recordSink) Close() error               { return r.w.Close() }

type printSink struct{}

func (printSink) Handle(ev seat.Event) error {
	_, err := fmt.Println(eventlog.FromEvent(ev).String())
	return err
}

func (printSink) Close() error { return nil }

// openSinks creates the outputs the configuration asks for
func openSinks(cfg *config.Config, printEvents bool) ([]eventSink, error) {
	var sinks []eventSink
	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}

	if cfg.Record.Path != "" {
		w, err := eventlog.Create(cfg.Record.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("Recording events", "path", cfg.Record.Path)
		sinks = append(sinks, recordSink{w: w})
	}
	if cfg.Mirror.Enabled {
		m, err := mirror.New(cfg.Mirror.Name)
		if err != nil {
			closeAll()
			return nil, err
		}
		logger.Info("Mirroring events", "name", cfg.Mirror.Name)
		sinks = append(sinks, m)
	}
	if printEvents {
		sinks = append(sinks, printSink{})
	}
	return sinks, nil
}

// dispatcher hands events to every sink. A sink that fails is logged once
// per error streak so a vanished device does not flood the log.
type dispatcher struct {
	sinks  []eventSink
	failed map[int]bool
}

func newDispatcher(sinks []eventSink) *dispatcher {
	return &dispatcher{sinks: sinks, failed: make(map[int]bool)}
}

func (d *dispatcher) handle(ev seat.Event) {
	for i, s := range d.sinks {
		if err := s.Handle(ev); err != nil {
			if !d.failed[i] {
				logger.Warn("Event output failed", "output", fmt.Sprintf("%T", s), "err", err)
				d.failed[i] = true
			}
			continue
		}
		d.failed[i] = false
	}
}

func (d *dispatcher) Close() error {
	var errs []error
	for _, s := range d.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// serveMetrics exposes the registry until ctx is done
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("Serving metrics", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "err", err)
		}
	}()
}

func runSeat(cmd *cobra.Command, args []string) error {
	cfg := runFlags(cmd, config.Get())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := newEvdevSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("Failed to close seat", "err", err)
		}
	}()

	if err := sess.confine(runConfine); err != nil {
		return err
	}

	sinks, err := openSinks(cfg, runPrint)
	if err != nil {
		return err
	}
	d := newDispatcher(sinks)
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("Failed to close outputs", "err", err)
		}
	}()

	if cfg.Metrics.Address != "" {
		serveMetrics(ctx, cfg.Metrics.Address, sess.registry)
	}

	logger.Info("Seat running", "seat", cfg.Seat.ID, "input", cfg.Backend.InputDir)
	if err := sess.pump(ctx, d.handle); err != nil {
		return fmt.Errorf("seat stopped: %w", err)
	}
	logger.Info("Seat stopped")
	return nil
}
