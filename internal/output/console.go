package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/emmett/utter/internal/audio"
	"github.com/emmett/utter/internal/segment"
	"github.com/emmett/utter/internal/vad"
)

// ConsoleOutput prints human-readable session status
type ConsoleOutput struct {
	mu            sync.Mutex
	writer        io.Writer
	errWriter     io.Writer
	showTimestamp bool
}

// ConsoleConfig configures console output behavior
type ConsoleConfig struct {
	// ShowTimestamp prefixes each line with a timestamp
	ShowTimestamp bool

	// Writer is the output destination (default: os.Stdout)
	Writer io.Writer

	// ErrWriter receives errors (default: os.Stderr)
	ErrWriter io.Writer
}

// NewConsoleOutput creates a new console output handler
func NewConsoleOutput(config ConsoleConfig) *ConsoleOutput {
	writer := config.Writer
	if writer == nil {
		writer = os.Stdout
	}
	errWriter := config.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}

	return &ConsoleOutput{
		writer:        writer,
		errWriter:     errWriter,
		showTimestamp: config.ShowTimestamp,
	}
}

func (c *ConsoleOutput) prefix() string {
	if !c.showTimestamp {
		return ""
	}
	return fmt.Sprintf("[%s] ", time.Now().Format("15:04:05"))
}

// WriteReport prints how the session ended
func (c *ConsoleOutput) WriteReport(r Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// End any in-place status line first
	fmt.Fprintln(c.writer)

	d := time.Duration(r.DurationMS) * time.Millisecond
	switch {
	case r.Path != "":
		fmt.Fprintf(c.writer, "%sSaved %s (%s, %s)\n", c.prefix(), r.Path, d, r.Reason)
	case r.Error != "":
		fmt.Fprintf(c.errWriter, "[ERROR] %s: %s\n", r.State, r.Error)
	default:
		fmt.Fprintf(c.writer, "%sNothing saved (%s after %s)\n", c.prefix(), r.State, d)
	}

	if r.Transcript != "" {
		fmt.Fprintf(c.writer, "%s%s (confidence: %.2f)\n", c.prefix(), r.Transcript, r.Confidence)
	}
	if r.Dropped > 0 {
		fmt.Fprintf(c.writer, "%s%d bytes dropped on buffer overflow\n", c.prefix(), r.Dropped)
	}
	return nil
}

// WriteEvent writes an informational message
func (c *ConsoleOutput) WriteEvent(eventType, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.writer, "%s[%s] %s\n", c.prefix(), strings.ToUpper(eventType), message)
	return nil
}

// Error writes an error message
func (c *ConsoleOutput) Error(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.errWriter, "[ERROR] %s\n", msg)
}

// Tick redraws the live status line; usable as a segment tick observer
func (c *ConsoleOutput) Tick(t segment.Tick) {
	// Redraw ten times a second
	if t.Counters.RecordingCount%10 != 0 && !t.Stop {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	marker := "."
	if t.Classification == vad.Speech {
		marker = "#"
	}
	elapsed := time.Duration(t.Counters.RecordingCount) * audio.FrameDuration
	fmt.Fprintf(c.writer, "\r[*] listening %s %6s silent %3d", marker, elapsed.Truncate(100*time.Millisecond), t.Counters.SilentCount)
}
