package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/bnema/inputseat/internal/config"
	"github.com/bnema/inputseat/internal/eventlog"
	"github.com/bnema/inputseat/internal/logger"
	"github.com/bnema/inputseat/internal/mirror"
	"github.com/bnema/inputseat/internal/seat"
	"github.com/bnema/inputseat/internal/ui"
)

var (
	replayMirror   bool
	replayRealtime bool
	replayKinds    []string
	replayQuiet    bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Print or re-emit a recorded event log",
	Long: `Read an event log written by "inputseat run --record" and print every
record. With --mirror the events are re-emitted on uinput devices, and
--realtime keeps the recorded spacing between them.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&replayMirror, "mirror", false, "Re-emit events on uinput devices")
	replayCmd.Flags().BoolVar(&replayRealtime, "realtime", false, "Keep the recorded timing between events")
	replayCmd.Flags().StringSliceVarP(&replayKinds, "kind", "k", nil, "Only replay these event kinds (e.g. key-press,motion)")
	replayCmd.Flags().BoolVarP(&replayQuiet, "quiet", "q", false, "Do not print records")
	rootCmd.AddCommand(replayCmd)
}

// replayer walks a log in order, optionally pacing it against a clock
type replayer struct {
	out      io.Writer
	handle   func(seat.Event) error
	clock    clockwork.Clock
	realtime bool
	kinds    map[seat.EventKind]bool
}

// parseKinds resolves kind names as printed in the log
func parseKinds(names []string) (map[seat.EventKind]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	byName := make(map[string]seat.EventKind)
	for k := seat.KindKeyPress; k <= seat.KindDeviceRemoved; k++ {
		byName[k.String()] = k
	}
	kinds := make(map[seat.EventKind]bool, len(names))
	for _, n := range names {
		k, ok := byName[strings.TrimSpace(n)]
		if !ok {
			return nil, fmt.Errorf("unknown event kind %q", n)
		}
		kinds[k] = true
	}
	return kinds, nil
}

// play consumes r until EOF and returns the number of records replayed
func (p *replayer) play(ctx context.Context, r *eventlog.Reader) (int, error) {
	var (
		n        int
		lastTime uint64
	)
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if p.kinds != nil && !p.kinds[rec.Kind] {
			continue
		}

		if p.realtime && n > 0 && rec.TimeUsec > lastTime {
			gap := time.Duration(rec.TimeUsec-lastTime) * time.Microsecond
			select {
			case <-p.clock.After(gap):
			case <-ctx.Done():
				return n, ctx.Err()
			}
		}
		lastTime = rec.TimeUsec

		if p.out != nil {
			fmt.Fprintln(p.out, rec.String())
		}
		if p.handle != nil {
			if err := p.handle(rec.Event()); err != nil {
				return n, fmt.Errorf("record %d: %w", n, err)
			}
		}
		n++
	}
}

func runReplay(cmd *cobra.Command, args []string) error {
	kinds, err := parseKinds(replayKinds)
	if err != nil {
		return err
	}

	r, err := eventlog.Open(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := &replayer{
		clock:    clockwork.NewRealClock(),
		realtime: replayRealtime,
		kinds:    kinds,
	}
	if !replayQuiet {
		p.out = cmd.OutOrStdout()
	}
	if replayMirror {
		m, err := mirror.New(config.Get().Mirror.Name)
		if err != nil {
			return err
		}
		defer m.Close()
		p.handle = m.Handle
	}

	n, err := p.play(ctx, r)
	logger.Debug("Replay finished", "records", n)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("replay of %s stopped: %w", args[0], err)
	}
	if p.out != nil {
		fmt.Fprintln(p.out, ui.FormatResult(err == nil, fmt.Sprintf("%d record(s) replayed", n)))
	}
	return nil
}
