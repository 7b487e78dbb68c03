// Package segment cuts one utterance out of a live capture stream.
//
// A Listener opens a capture stream whose real-time callback pushes PCM into
// a small drop-oldest ring buffer. The listening loop drains that buffer once
// per tick, classifies the drained frame, and feeds the result to [Next]. The
// session ends when silence outlasts the silent threshold, when the recording
// reaches its length cap, when the interrupt predicate fires, or when the
// device fails. Only a normal stop persists audio.
package segment

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/emmett/utter/internal/audio"
	"github.com/emmett/utter/internal/observe"
	"github.com/emmett/utter/internal/vad"
)

const (
	// DefaultSilentTimeout is the silence, in seconds, that ends an utterance
	DefaultSilentTimeout = 3

	// DefaultRecordingTimeout caps an utterance, in seconds
	DefaultRecordingTimeout = 15

	// DefaultPollInterval is how long the loop sleeps when no audio is buffered
	DefaultPollInterval = 10 * time.Millisecond
)

// State is a node of the session state machine
type State int

const (
	StateIdle State = iota
	StateListening
	StateStopped
	StateInterrupted
	StateDeviceError
)

// String returns the state name used in logs and metrics
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateStopped:
		return "stopped"
	case StateInterrupted:
		return "interrupted"
	case StateDeviceError:
		return "device_error"
	default:
		return "unknown"
	}
}

// Sink persists a finished utterance and returns where it was written
type Sink interface {
	Persist(ctx context.Context, frames []byte, format audio.Format) (string, error)
}

// Result describes how a session ended
type Result struct {
	// State is the terminal state: stopped, interrupted or device_error
	State State

	// Path is the persisted utterance; empty unless State is StateStopped
	Path string

	// Reason is set when State is StateStopped
	Reason StopReason

	// Frames is the number of accepted ticks
	Frames int

	// Bytes is the size of the accepted audio
	Bytes int

	// Duration is the playback length of the accepted audio
	Duration time.Duration

	// Dropped is the number of bytes the ring buffer evicted
	Dropped uint64
}

// Tick is reported to a tick observer after each classified tick
type Tick struct {
	Classification vad.Classification
	Counters       Counters
	Stop           bool
}

// Listener records one utterance per Listen call
type Listener struct {
	opener       audio.Opener
	classifier   vad.Classifier
	sink         Sink
	logger       *slog.Logger
	metrics      *observe.Metrics
	format       audio.Format
	bufferSize   int
	pollInterval time.Duration
}

// Option configures a Listener
type Option func(*Listener)

// WithLogger sets the logger; the default discards output
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) { l.logger = logger }
}

// WithMetrics sets the metric instruments; the default records nothing
func WithMetrics(m *observe.Metrics) Option {
	return func(l *Listener) { l.metrics = m }
}

// WithBufferSize sets the ring buffer capacity in bytes (default one frame).
// A larger buffer lets a slow loop drain several frames at once; such drains
// are classified as unknown and count as silence.
func WithBufferSize(n int) Option {
	return func(l *Listener) { l.bufferSize = n }
}

// WithPollInterval sets the idle sleep between empty drains
func WithPollInterval(d time.Duration) Option {
	return func(l *Listener) { l.pollInterval = d }
}

// NewListener creates a Listener from its collaborators
func NewListener(opener audio.Opener, classifier vad.Classifier, sink Sink, opts ...Option) (*Listener, error) {
	if opener == nil || classifier == nil || sink == nil {
		return nil, fmt.Errorf("listener needs an opener, a classifier and a sink")
	}

	format := audio.DefaultFormat()
	l := &Listener{
		opener:       opener,
		classifier:   classifier,
		sink:         sink,
		format:       format,
		bufferSize:   format.FrameBytes(),
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.logger == nil {
		l.logger = observe.Discard()
	}
	if l.metrics == nil {
		m, err := observe.NewMetrics(noop.NewMeterProvider())
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
		l.metrics = m
	}
	if l.bufferSize < format.FrameBytes() {
		return nil, fmt.Errorf("ring buffer must hold at least one frame (%d bytes), got %d", format.FrameBytes(), l.bufferSize)
	}
	if l.pollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", l.pollInterval)
	}

	return l, nil
}

// Format returns the audio format sessions record in
func (l *Listener) Format() audio.Format {
	return l.format
}

type listenConfig struct {
	silentTimeout    int
	recordingTimeout int
	onTick           func(Tick)
}

// ListenOption configures a single Listen call
type ListenOption func(*listenConfig)

// WithSilentTimeout sets how many seconds of silence end the utterance
func WithSilentTimeout(seconds int) ListenOption {
	return func(c *listenConfig) { c.silentTimeout = seconds }
}

// WithRecordingTimeout caps the utterance length in seconds
func WithRecordingTimeout(seconds int) ListenOption {
	return func(c *listenConfig) { c.recordingTimeout = seconds }
}

// WithTickObserver calls fn after every classified tick, on the listening goroutine
func WithTickObserver(fn func(Tick)) ListenOption {
	return func(c *listenConfig) { c.onTick = fn }
}

// InterruptOnDone returns a predicate that turns true once ctx is done
func InterruptOnDone(ctx context.Context) func() bool {
	return func() bool { return ctx.Err() != nil }
}

// Listen records one utterance. It blocks until the utterance ends or the
// session is interrupted. interrupt may be nil; cancelling ctx also interrupts.
//
// Stopped returns the persisted path. Interrupted returns no path and
// no error. A capture failure returns StateDeviceError with an error wrapping
// ErrDeviceOpen or ErrDeviceLost.
func (l *Listener) Listen(ctx context.Context, interrupt func() bool, opts ...ListenOption) (Result, error) {
	cfg := listenConfig{
		silentTimeout:    DefaultSilentTimeout,
		recordingTimeout: DefaultRecordingTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.silentTimeout < 0 || cfg.recordingTimeout < 0 {
		return Result{State: StateIdle}, fmt.Errorf("timeouts must not be negative")
	}

	s := &session{
		Listener:   l,
		ctx:        ctx,
		interrupt:  interrupt,
		thresholds: ThresholdsFromSeconds(cfg.silentTimeout, cfg.recordingTimeout),
		onTick:     cfg.onTick,
		logger:     l.logger.With("component", "listener"),
	}

	res, err := s.run()
	l.metrics.RecordSession(ctx, res.State.String())
	return res, err
}

// session holds the state of one Listen call
type session struct {
	*Listener

	ctx        context.Context
	interrupt  func() bool
	thresholds Thresholds
	onTick     func(Tick)
	logger     *slog.Logger

	buffer   *audio.RingBuffer
	stream   audio.Stream
	counters Counters
	chunks   [][]byte
	size     int
	dropped  uint64
}

func (s *session) interrupted() bool {
	if s.ctx.Err() != nil {
		return true
	}
	return s.interrupt != nil && s.interrupt()
}

func (s *session) run() (Result, error) {
	if s.interrupted() {
		s.logger.Debug("interrupted before opening capture stream")
		return Result{State: StateInterrupted}, nil
	}

	s.buffer = audio.NewRingBuffer(s.bufferSize)
	stream, err := s.opener.Open(s.format, s.format.SamplesPerFrame(audio.FrameDuration), s.buffer.Push)
	if err != nil {
		s.logger.Log(s.ctx, observe.LevelCritical, "failed to open capture stream", "error", err)
		return Result{State: StateDeviceError}, fmt.Errorf("%w: %w", ErrDeviceOpen, err)
	}
	s.stream = stream
	defer s.closeStream()

	s.metrics.ActiveSessions.Add(s.ctx, 1)
	defer s.metrics.ActiveSessions.Add(s.ctx, -1)

	s.logger.Debug("listening",
		"silent_threshold", s.thresholds.Silent,
		"recording_threshold", s.thresholds.Recording)

	for {
		if s.interrupted() {
			s.logger.Debug("interrupted while listening", "frames", s.counters.RecordingCount)
			return s.result(StateInterrupted), nil
		}

		select {
		case err := <-s.stream.Errors():
			s.logger.Error("capture stream failed", "error", err, "frames", s.counters.RecordingCount)
			return s.result(StateDeviceError), fmt.Errorf("%w: %w", ErrDeviceLost, err)
		default:
		}

		data := s.buffer.DrainAll()
		s.trackDropped()
		if len(data) == 0 {
			s.sleep()
			continue
		}

		cls := s.classify(data)
		next, stop := Next(s.counters, s.thresholds, cls)
		s.counters = next
		if s.onTick != nil {
			s.onTick(Tick{Classification: cls, Counters: next, Stop: stop})
		}

		if stop {
			return s.finish()
		}

		s.chunks = append(s.chunks, data)
		s.size += len(data)
	}
}

// classify rejects partial or oversized drains before they reach the classifier
func (s *session) classify(data []byte) vad.Classification {
	var cls vad.Classification
	if len(data) != s.format.FrameBytes() {
		s.logger.Warn("unexpected frame length, treating as unknown",
			"bytes", len(data), "want", s.format.FrameBytes())
		cls = vad.Unknown
	} else {
		cls = s.classifier.Classify(data, s.format.SampleRate)
		if cls == vad.Unknown {
			s.logger.Warn("frame classification failed, treating as silence")
		}
	}
	s.metrics.RecordFrame(s.ctx, cls.String())
	return cls
}

func (s *session) finish() (Result, error) {
	s.closeStream()

	res := s.result(StateStopped)
	res.Reason = s.thresholds.Reason(s.counters)

	start := time.Now()
	path, err := s.sink.Persist(s.ctx, bytes.Join(s.chunks, nil), s.format)
	if err != nil {
		s.logger.Error("failed to persist utterance", "error", err, "bytes", s.size)
		return res, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.metrics.RecordUtterance(s.ctx, res.Duration, time.Since(start))

	res.Path = path
	s.logger.Info("utterance saved",
		"path", path,
		"reason", res.Reason.String(),
		"frames", res.Frames,
		"duration", res.Duration)
	return res, nil
}

func (s *session) result(state State) Result {
	return Result{
		State:    state,
		Frames:   len(s.chunks),
		Bytes:    s.size,
		Duration: s.format.Duration(s.size),
		Dropped:  s.dropped,
	}
}

func (s *session) trackDropped() {
	total := s.buffer.Dropped()
	if total > s.dropped {
		s.metrics.RecordDropped(s.ctx, total-s.dropped)
		s.dropped = total
	}
}

// sleep waits one poll interval, waking early if ctx is cancelled
func (s *session) sleep() {
	t := time.NewTimer(s.pollInterval)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
	case <-t.C:
	}
}

func (s *session) closeStream() {
	if s.stream == nil {
		return
	}
	if err := s.stream.Close(); err != nil {
		s.logger.Warn("failed to close capture stream", "error", err)
	}
	s.stream = nil
}
