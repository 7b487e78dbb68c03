package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/emmett/utter/internal/audio"
	"github.com/emmett/utter/internal/config"
	"github.com/emmett/utter/internal/models"
	"github.com/emmett/utter/internal/observe"
	"github.com/emmett/utter/internal/segment"
	"github.com/emmett/utter/internal/sink"
	"github.com/emmett/utter/internal/stt"
	"github.com/emmett/utter/internal/vad"
)

// ErrBusy is returned when a session is already listening
var ErrBusy = errors.New("a listening session is already running")

// Outcome is a finished session plus its optional transcript
type Outcome struct {
	Result     segment.Result
	Transcript *stt.Result
}

// Session owns the microphone: one Listen at a time
type Session struct {
	mu          sync.Mutex
	listener    *segment.Listener
	transcriber stt.Transcriber
	cfg         *config.Config
	logger      *slog.Logger
}

type sessionDeps struct {
	opener      audio.Opener
	sink        segment.Sink
	transcriber stt.Transcriber
	metrics     *observe.Metrics
}

// SessionOption overrides a collaborator NewSession would otherwise build from config
type SessionOption func(*sessionDeps)

// WithOpener replaces the malgo capture device
func WithOpener(o audio.Opener) SessionOption {
	return func(d *sessionDeps) { d.opener = o }
}

// WithSink replaces the WAV (and archive) sink
func WithSink(s segment.Sink) SessionOption {
	return func(d *sessionDeps) { d.sink = s }
}

// WithTranscriber sets the transcriber instead of loading a Vosk model
func WithTranscriber(t stt.Transcriber) SessionOption {
	return func(d *sessionDeps) { d.transcriber = t }
}

// WithMetrics records session metrics on m
func WithMetrics(m *observe.Metrics) SessionOption {
	return func(d *sessionDeps) { d.metrics = m }
}

// NewSession wires a listener from configuration
func NewSession(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...SessionOption) (*Session, error) {
	if logger == nil {
		logger = observe.Discard()
	}

	var deps sessionDeps
	for _, opt := range opts {
		opt(&deps)
	}

	if deps.opener == nil {
		deps.opener = audio.NewMalgoOpener(cfg.Audio.Device)
	}

	classifier, err := newClassifier(cfg.VAD)
	if err != nil {
		return nil, err
	}

	if deps.sink == nil {
		deps.sink, err = newSink(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	if deps.transcriber == nil {
		modelPath, err := resolveModelPath(cfg.Transcribe)
		if err != nil {
			return nil, err
		}
		if modelPath != "" {
			engine, err := stt.NewVoskEngine(stt.DefaultConfig(modelPath))
			if err != nil {
				return nil, fmt.Errorf("failed to initialize STT engine: %w", err)
			}
			deps.transcriber = engine
		}
	}

	listenerOpts := []segment.Option{
		segment.WithLogger(logger),
		segment.WithBufferSize(cfg.Audio.RingBufferBytes),
		segment.WithPollInterval(cfg.Listen.PollInterval),
	}
	if deps.metrics != nil {
		listenerOpts = append(listenerOpts, segment.WithMetrics(deps.metrics))
	}

	listener, err := segment.NewListener(deps.opener, classifier, deps.sink, listenerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	return &Session{
		listener:    listener,
		transcriber: deps.transcriber,
		cfg:         cfg,
		logger:      logger,
	}, nil
}

// resolveModelPath returns "" when transcription is not configured
func resolveModelPath(cfg config.TranscribeConfig) (string, error) {
	if cfg.ModelPath != "" || cfg.Model == "" {
		return cfg.ModelPath, nil
	}
	path, err := models.NewStore(cfg.ModelsDir).Path(cfg.Model)
	if err != nil {
		return "", fmt.Errorf("failed to resolve model %q: %w", cfg.Model, err)
	}
	return path, nil
}

func newClassifier(cfg config.VADConfig) (vad.Classifier, error) {
	switch cfg.Mode {
	case "", "energy":
		c, err := vad.NewEnergyClassifier(vad.EnergyConfig{Threshold: cfg.Threshold})
		if err != nil {
			return nil, fmt.Errorf("failed to create classifier: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown vad mode: %s", cfg.Mode)
	}
}

func newSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (segment.Sink, error) {
	wav, err := sink.NewWAVSink(cfg.Output.Dir)
	if err != nil {
		return nil, err
	}
	if !cfg.Archive.Enabled {
		return wav, nil
	}

	archive, err := sink.NewArchiveSink(ctx, wav, sink.ArchiveConfig{
		Bucket:          cfg.Archive.Bucket,
		Region:          cfg.Archive.Region,
		Endpoint:        cfg.Archive.Endpoint,
		Prefix:          cfg.Archive.Prefix,
		AccessKeyID:     cfg.Archive.AccessKeyID,
		SecretAccessKey: cfg.Archive.SecretAccessKey,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure archive: %w", err)
	}
	return archive, nil
}

// Config returns the configuration the session was built from
func (s *Session) Config() *config.Config {
	return s.cfg
}

// CanTranscribe reports whether saved utterances are transcribed
func (s *Session) CanTranscribe() bool {
	return s.transcriber != nil
}

// Listen records one utterance using the configured timeouts; opts override them.
// It returns ErrBusy instead of waiting when another Listen is running.
func (s *Session) Listen(ctx context.Context, interrupt func() bool, opts ...segment.ListenOption) (Outcome, error) {
	if !s.mu.TryLock() {
		return Outcome{}, ErrBusy
	}
	defer s.mu.Unlock()

	listenOpts := append([]segment.ListenOption{
		segment.WithSilentTimeout(s.cfg.Listen.SilentTimeout),
		segment.WithRecordingTimeout(s.cfg.Listen.RecordingTimeout),
	}, opts...)

	res, err := s.listener.Listen(ctx, interrupt, listenOpts...)
	out := Outcome{Result: res}
	if err != nil || res.Path == "" || s.transcriber == nil {
		return out, err
	}

	transcript, terr := stt.TranscribeFile(ctx, s.transcriber, res.Path, s.listener.Format().SampleRate)
	if terr != nil {
		s.logger.Warn("failed to transcribe utterance", "path", res.Path, "error", terr)
		return out, nil
	}
	out.Transcript = transcript
	return out, nil
}

// Close releases the transcriber
func (s *Session) Close() error {
	if s.transcriber != nil {
		return s.transcriber.Close()
	}
	return nil
}
