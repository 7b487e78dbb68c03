// Package mcp exposes utterance recording as Model Context Protocol tools.
package mcp

import (
	"context"
	"log/slog"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/emmett/utter/internal/app"
	"github.com/emmett/utter/internal/audio"
	"github.com/emmett/utter/internal/observe"
	"github.com/emmett/utter/internal/segment"
)

// Recorder records one utterance; *app.Session implements it
type Recorder interface {
	Listen(ctx context.Context, interrupt func() bool, opts ...segment.ListenOption) (app.Outcome, error)
}

// DeviceLister enumerates capture devices; *app.DeviceManager implements it
type DeviceLister interface {
	Devices() ([]audio.DeviceInfo, error)
}

type Config struct {
	ServerName    string
	ServerVersion string
}

type Server struct {
	config    Config
	mcpServer *sdk.Server
	recorder  Recorder
	devices   DeviceLister
	logger    *slog.Logger
}

func NewServer(cfg Config, recorder Recorder, devices DeviceLister, logger *slog.Logger) *Server {
	if logger == nil {
		logger = observe.Discard()
	}

	s := &Server{
		config:   cfg,
		recorder: recorder,
		devices:  devices,
		logger:   logger.With("component", "mcp"),
	}

	s.mcpServer = sdk.NewServer(&sdk.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}, nil)

	s.registerTools()
	return s
}

// Run serves on stdin/stdout until ctx is done or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, &sdk.StdioTransport{})
}

// Serve runs the server over any transport
func (s *Server) Serve(ctx context.Context, t sdk.Transport) error {
	return s.mcpServer.Run(ctx, t)
}

// Connect starts a single session over t without blocking
func (s *Server) Connect(ctx context.Context, t sdk.Transport) (*sdk.ServerSession, error) {
	return s.mcpServer.Connect(ctx, t, nil)
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name: "record_utterance",
		Description: "Record one utterance from the microphone. Recording stops after " +
			"silent_timeout seconds of silence or recording_timeout seconds in total, " +
			"and the audio is saved as a 16 kHz mono WAV file.",
	}, s.handleRecordUtterance)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "list_devices",
		Description: "List audio capture devices",
	}, s.handleListDevices)
}
