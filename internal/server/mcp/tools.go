package mcp

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/emmett/utter/internal/app"
	"github.com/emmett/utter/internal/segment"
)

// RecordArgs timeouts are optional; an omitted field uses the configured
// value and 0 stops on the first frame, as in the gRPC Listen call.
type RecordArgs struct {
	SilentTimeout    *int `json:"silent_timeout,omitempty" jsonschema:"seconds of silence that end the utterance (default from config)"`
	RecordingTimeout *int `json:"recording_timeout,omitempty" jsonschema:"maximum utterance length in seconds (default from config)"`
}

type RecordResult struct {
	State      string  `json:"state"`
	Reason     string  `json:"reason,omitempty"`
	Path       string  `json:"path,omitempty"`
	DurationMS int64   `json:"duration_ms"`
	Transcript string  `json:"transcript,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

type ListDevicesArgs struct{}

type Device struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

type ListDevicesResult struct {
	Devices []Device `json:"devices"`
}

func (s *Server) handleRecordUtterance(ctx context.Context, req *sdk.CallToolRequest, args RecordArgs) (*sdk.CallToolResult, RecordResult, error) {
	if (args.SilentTimeout != nil && *args.SilentTimeout < 0) || (args.RecordingTimeout != nil && *args.RecordingTimeout < 0) {
		return nil, RecordResult{}, fmt.Errorf("timeouts must not be negative")
	}

	var opts []segment.ListenOption
	if args.SilentTimeout != nil {
		opts = append(opts, segment.WithSilentTimeout(*args.SilentTimeout))
	}
	if args.RecordingTimeout != nil {
		opts = append(opts, segment.WithRecordingTimeout(*args.RecordingTimeout))
	}

	// The request context is cancelled when the client cancels the call
	outcome, err := s.recorder.Listen(ctx, nil, opts...)
	if errors.Is(err, app.ErrBusy) {
		return nil, RecordResult{}, fmt.Errorf("microphone busy: %w", err)
	}
	if err != nil {
		s.logger.Error("record_utterance failed", "error", err)
		return nil, RecordResult{}, fmt.Errorf("recording failed: %w", err)
	}

	res := outcome.Result
	out := RecordResult{
		State:      res.State.String(),
		Path:       res.Path,
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.State == segment.StateStopped {
		out.Reason = res.Reason.String()
	}
	if outcome.Transcript != nil {
		out.Transcript = outcome.Transcript.Text
		out.Confidence = outcome.Transcript.Confidence
	}

	text := fmt.Sprintf("Recording %s; nothing saved", out.State)
	if out.Path != "" {
		text = fmt.Sprintf("Saved %s (%dms, stopped on %s)", out.Path, out.DurationMS, out.Reason)
	}
	content := []sdk.Content{&sdk.TextContent{Text: text}}
	if out.Transcript != "" {
		content = append(content, &sdk.TextContent{Text: out.Transcript})
	}

	return &sdk.CallToolResult{Content: content}, out, nil
}

func (s *Server) handleListDevices(ctx context.Context, req *sdk.CallToolRequest, args ListDevicesArgs) (*sdk.CallToolResult, ListDevicesResult, error) {
	devices, err := s.devices.Devices()
	if err != nil {
		return nil, ListDevicesResult{}, err
	}

	out := ListDevicesResult{Devices: make([]Device, 0, len(devices))}
	content := []sdk.Content{
		&sdk.TextContent{Text: fmt.Sprintf("Capture devices (%d):", len(devices))},
	}
	for _, d := range devices {
		out.Devices = append(out.Devices, Device{ID: d.ID, Name: d.Name, IsDefault: d.IsDefault})
		content = append(content, &sdk.TextContent{Text: fmt.Sprintf("- %s", d.String())})
	}

	return &sdk.CallToolResult{Content: content}, out, nil
}
