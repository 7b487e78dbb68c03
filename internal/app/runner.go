package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/emmett/utter/internal/input"
	"github.com/emmett/utter/internal/observe"
	"github.com/emmett/utter/internal/output"
	"github.com/emmett/utter/internal/segment"
)

// RunnerConfig holds configuration for the interactive CLI loop
type RunnerConfig struct {
	Session   *Session
	Formatter output.Formatter

	// Console, when set, shows a live status line while listening
	Console *output.ConsoleOutput

	// Hotkey, when set, interrupts the current utterance (e.g. "ctrl+shift+space")
	Hotkey string

	// Continuous keeps listening for utterances until Ctrl+C
	Continuous bool

	Logger *slog.Logger
}

// Runner drives Session.Listen from the terminal
type Runner struct {
	config RunnerConfig
}

// NewRunner creates a new Runner
func NewRunner(config RunnerConfig) *Runner {
	if config.Logger == nil {
		config.Logger = observe.Discard()
	}
	return &Runner{config: config}
}

// Run listens once, or repeatedly in continuous mode, until Ctrl+C
func (r *Runner) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	latch := &input.Latch{}
	if r.config.Hotkey != "" {
		hk, err := input.WatchHotkey(ctx, r.config.Hotkey)
		if err != nil {
			return fmt.Errorf("failed to start hotkey listener: %w", err)
		}
		defer hk.Close()
		latch = &hk.Latch
	}

	var opts []segment.ListenOption
	if r.config.Console != nil {
		opts = append(opts, segment.WithTickObserver(r.config.Console.Tick))
	}

	for {
		latch.Reset()
		_ = r.config.Formatter.WriteEvent("listening", r.prompt())

		outcome, err := r.config.Session.Listen(ctx, latch.Fired, opts...)

		report := output.NewReport(outcome.Result, err)
		if outcome.Transcript != nil {
			report.Transcript = outcome.Transcript.Text
			report.Confidence = outcome.Transcript.Confidence
		}
		if werr := r.config.Formatter.WriteReport(report); werr != nil {
			r.config.Logger.Warn("failed to write report", "error", werr)
		}

		if err != nil {
			return err
		}
		if !r.config.Continuous || ctx.Err() != nil {
			return nil
		}
	}
}

func (r *Runner) prompt() string {
	msg := "Speak now."
	if r.config.Hotkey != "" {
		msg += fmt.Sprintf(" Press %s to stop early.", r.config.Hotkey)
	}
	if r.config.Continuous {
		msg += " Press Ctrl+C to exit."
	}
	return msg
}
