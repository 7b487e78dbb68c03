package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/emmett/utter/internal/segment"
)

// Report is the printable outcome of one listening session
type Report struct {
	State      string    `json:"state"`
	Reason     string    `json:"reason,omitempty"`
	Path       string    `json:"path,omitempty"`
	Frames     int       `json:"frames"`
	Bytes      int       `json:"bytes"`
	DurationMS int64     `json:"duration_ms"`
	Dropped    uint64    `json:"dropped_bytes,omitempty"`
	Transcript string    `json:"transcript,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewReport summarizes a session result; err is the error Listen returned, if any
func NewReport(res segment.Result, err error) Report {
	r := Report{
		State:      res.State.String(),
		Path:       res.Path,
		Frames:     res.Frames,
		Bytes:      res.Bytes,
		DurationMS: res.Duration.Milliseconds(),
		Dropped:    res.Dropped,
		Timestamp:  time.Now(),
	}
	if res.State == segment.StateStopped {
		r.Reason = res.Reason.String()
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Event represents a system event
type Event struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Formatter is the interface for output formatters
type Formatter interface {
	// WriteReport writes the outcome of a session
	WriteReport(report Report) error

	// WriteEvent writes a system event (e.g., listening started)
	WriteEvent(eventType, message string) error
}

// NewFormatter returns the formatter for an output format: console, json or text
func NewFormatter(format string, w io.Writer) (Formatter, error) {
	switch format {
	case "", "console":
		return NewConsoleOutput(ConsoleConfig{Writer: w, ShowTimestamp: true}), nil
	case "json":
		return NewJSONFormatter(w), nil
	case "text":
		return NewPlainTextFormatter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

// JSONFormatter writes one JSON document per line
type JSONFormatter struct {
	encoder *json.Encoder
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(writer io.Writer) *JSONFormatter {
	return &JSONFormatter{encoder: json.NewEncoder(writer)}
}

// WriteReport writes a session report in JSON format
func (j *JSONFormatter) WriteReport(report Report) error {
	return j.encoder.Encode(report)
}

// WriteEvent writes a system event
func (j *JSONFormatter) WriteEvent(eventType, message string) error {
	return j.encoder.Encode(Event{
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// PlainTextFormatter prints only what a script needs: the saved path, or nothing
type PlainTextFormatter struct {
	writer io.Writer
}

// NewPlainTextFormatter creates a new plain text formatter
func NewPlainTextFormatter(writer io.Writer) *PlainTextFormatter {
	return &PlainTextFormatter{writer: writer}
}

// WriteReport writes the path and, when present, the transcript on the next line
func (p *PlainTextFormatter) WriteReport(report Report) error {
	if report.Path == "" {
		return nil
	}
	text := report.Path + "\n"
	if report.Transcript != "" {
		text += report.Transcript + "\n"
	}
	_, err := io.WriteString(p.writer, text)
	return err
}

// WriteEvent is a no-op for plain text
func (p *PlainTextFormatter) WriteEvent(string, string) error {
	return nil
}
