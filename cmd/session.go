package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/bnema/inputseat/internal/backend"
	"github.com/bnema/inputseat/internal/barrier"
	"github.com/bnema/inputseat/internal/config"
	"github.com/bnema/inputseat/internal/display"
	"github.com/bnema/inputseat/internal/keymap"
	"github.com/bnema/inputseat/internal/logger"
	"github.com/bnema/inputseat/internal/mirror"
	"github.com/bnema/inputseat/internal/seat"
	"github.com/bnema/inputseat/internal/viewport"
	"github.com/bnema/inputseat/pointer_constraints"
)

// session is a seat driven by a backend, built from the configuration
type session struct {
	seat        *seat.Seat
	registry    *prometheus.Registry
	layout      *viewport.Layout
	constraints *pointer_constraints.Manager
}

// newEvdevSession opens the evdev backend as configured
func newEvdevSession(ctx context.Context, cfg *config.Config) (*session, error) {
	be, err := backend.NewEvdev(backend.EvdevConfig{
		InputDir:    cfg.Backend.InputDir,
		IgnoreNames: ignoreNames(cfg),
		Grab:        cfg.Backend.Grab,
		Debounce:    msDuration(cfg.Backend.Debounce),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create evdev backend: %w", err)
	}

	s, err := newSession(cfg, be, detectLayout(ctx, cfg))
	if err != nil {
		_ = be.Close()
		return nil, err
	}
	return s, nil
}

// ignoreNames is the configured ignore list plus the mirror's own devices,
// so the seat never reads back what the mirror writes
func ignoreNames(cfg *config.Config) []string {
	ignore := append([]string(nil), cfg.Backend.IgnoreNames...)
	if cfg.Mirror.Enabled {
		ignore = append(ignore, mirror.ResolveName(cfg.Mirror.Name))
	}
	return ignore
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// detectLayout returns the configured or detected monitor layout, or nil
// when there is none; the pointer is then unconstrained
func detectLayout(ctx context.Context, cfg *config.Config) *viewport.Layout {
	var src display.Source
	if len(cfg.Viewports) == 0 {
		w, err := display.NewWlrRandr()
		if err != nil {
			logger.Debug("Monitor detection unavailable", "err", err)
		} else {
			src = w
		}
	}

	layout, err := display.Detect(ctx, cfg, src)
	if err != nil {
		logger.Warn("Running without a monitor layout", "err", err)
		return nil
	}
	for _, v := range layout.Views() {
		logger.Info("Viewport", "name", v.Name, "rect", v.Rect.String(), "scale", v.Scale)
	}
	return layout
}

// newBarriers installs the configured barriers
func newBarriers(cfgs []config.BarrierConfig) (*barrier.Manager, error) {
	m := barrier.NewManager()
	for i, bc := range cfgs {
		var dirs barrier.Direction
		for _, d := range bc.Directions {
			dir, err := barrier.ParseDirection(d)
			if err != nil {
				return nil, fmt.Errorf("barrier %d: %w", i, err)
			}
			dirs |= dir
		}
		if _, err := m.Add(bc.X1, bc.Y1, bc.X2, bc.Y2, dirs); err != nil {
			return nil, fmt.Errorf("barrier %d: %w", i, err)
		}
	}
	return m, nil
}

// newSession builds the seat on top of an existing backend
func newSession(cfg *config.Config, be backend.Backend, layout *viewport.Layout) (*session, error) {
	barriers, err := newBarriers(cfg.Barriers)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	log := logger.With("seat")
	s, err := seat.New(seat.Options{
		ID:             cfg.Seat.ID,
		Backend:        be,
		Keymap:         keymap.NewBasic(cfg.Keyboard.Layouts),
		Viewports:      layout,
		Barriers:       barriers,
		InitialPointer: &viewport.Point{X: cfg.Seat.InitialPointerX, Y: cfg.Seat.InitialPointerY},
		Registerer:     reg,
		Callbacks: seat.Callbacks{
			TouchModeChanged: func(on bool) {
				log.Info("Touch mode changed", "on", on)
			},
			BarrierHit: func(hit barrier.HitEvent) {
				log.Debug("Barrier hit", "barrier", hit.BarrierID, "x", hit.X, "y", hit.Y)
			},
			Bell: func() {
				log.Debug("Bell")
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create seat: %w", err)
	}

	kb := cfg.Keyboard
	s.SetKeyboardRepeat(kb.Repeat, kb.RepeatDelay(), kb.RepeatInterval())
	s.SetKeyboardNumlock(kb.NumLock)
	if err := s.SetKeyboardLayoutIndex(uint32(kb.LayoutIndex)); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to select keyboard layout: %w", err)
	}

	return &session{
		seat:        s,
		registry:    reg,
		layout:      layout,
		constraints: pointer_constraints.NewManager(s),
	}, nil
}

// pump runs the seat and hands every normalized event to handle, in order,
// until ctx is done or the backend goes away
func (s *session) pump(ctx context.Context, handle func(seat.Event)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- s.seat.Run(ctx)
	}()

	events := s.seat.Events()
	for {
		select {
		case <-events.Ready():
			for _, ev := range events.Drain() {
				handle(ev)
			}
		case err := <-runErr:
			for _, ev := range events.Drain() {
				handle(ev)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}
	}
}

// confine keeps the pointer inside the named viewports until the session
// is closed
func (s *session) confine(names []string) error {
	if len(names) == 0 {
		return nil
	}
	if s.layout == nil {
		return errors.New("cannot confine the pointer without a monitor layout")
	}

	var region pointer_constraints.Region
	for _, name := range names {
		found := false
		for _, v := range s.layout.Views() {
			if v.Name == name {
				region = append(region, v.Rect)
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown viewport %q", name)
		}
	}

	if _, err := s.constraints.ConfinePointer(region, pointer_constraints.LifetimePersistent); err != nil {
		return fmt.Errorf("failed to confine pointer: %w", err)
	}
	logger.Info("Pointer confined", "viewports", names)
	return nil
}

func (s *session) Close() error {
	return errors.Join(s.constraints.Close(), s.seat.Close())
}
