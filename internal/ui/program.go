package ui

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bnema/inputseat/internal/logger"
)

// ProgramConfig holds configuration for running a UI program
type ProgramConfig struct {
	AltScreen bool
	// QuitTimeout bounds how long a cancelled program may take to exit
	QuitTimeout time.Duration
	Input       io.Reader
	Output      io.Writer
}

// DefaultProgramConfig returns default configuration
func DefaultProgramConfig() ProgramConfig {
	return ProgramConfig{
		AltScreen:   true,
		QuitTimeout: 2 * time.Second,
	}
}

// ProgramRunner manages the lifecycle of a Bubble Tea program
type ProgramRunner struct {
	config  ProgramConfig
	program *tea.Program
	done    chan struct{}
}

// NewProgramRunner creates a new program runner
func NewProgramRunner(config ProgramConfig) *ProgramRunner {
	if config.QuitTimeout <= 0 {
		config.QuitTimeout = 2 * time.Second
	}
	return &ProgramRunner{
		config: config,
		done:   make(chan struct{}),
	}
}

// Run starts the program and blocks until it exits or ctx is cancelled
func (r *ProgramRunner) Run(ctx context.Context, model tea.Model) error {
	defer close(r.done)

	var opts []tea.ProgramOption
	if r.config.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if r.config.Input != nil {
		opts = append(opts, tea.WithInput(r.config.Input))
	}
	if r.config.Output != nil {
		opts = append(opts, tea.WithOutput(r.config.Output))
	}
	r.program = tea.NewProgram(model, opts...)

	errCh := make(chan error, 1)
	go func() {
		_, err := r.program.Run()
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ui program failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		r.program.Quit()
		select {
		case <-errCh:
		case <-time.After(r.config.QuitTimeout):
			logger.Warn("UI did not quit in time, killing it")
			r.program.Kill()
			<-errCh
		}
		return nil
	}
}

// Done returns a channel that's closed when the program exits
func (r *ProgramRunner) Done() <-chan struct{} {
	return r.done
}
