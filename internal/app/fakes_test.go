package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/emmett/utter/internal/audio"
	"github.com/emmett/utter/internal/config"
	"github.com/emmett/utter/internal/stt"
)

// quietStream pushes silent frames until closed
type quietStream struct {
	errs chan error
	done chan struct{}
	once sync.Once
}

func (s *quietStream) Errors() <-chan error { return s.errs }

func (s *quietStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// quietOpener opens free-running silent streams and reports each open on opened
type quietOpener struct {
	opened chan struct{}
	count  atomic.Int32
}

func newQuietOpener() *quietOpener {
	return &quietOpener{opened: make(chan struct{}, 8)}
}

func (o *quietOpener) Open(format audio.Format, _ int, onFrame func([]byte)) (audio.Stream, error) {
	s := &quietStream{errs: make(chan error, 1), done: make(chan struct{})}
	frame := make([]byte, format.FrameBytes())

	go func() {
		ticker := time.NewTicker(200 * time.Microsecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				onFrame(frame)
			}
		}
	}()

	o.count.Add(1)
	o.opened <- struct{}{}
	return s, nil
}

type fakeTranscriber struct {
	mu     sync.Mutex
	got    int
	err    error
	closed bool
}

func (f *fakeTranscriber) Transcribe(_ context.Context, pcm []byte) (*stt.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = len(pcm)
	if f.err != nil {
		return nil, f.err
	}
	return &stt.Result{Text: "hello", Confidence: 0.75}, nil
}

func (f *fakeTranscriber) Close() error {
	f.closed = true
	return nil
}

var errNoModel = errors.New("model unavailable")

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Listen.SilentTimeout = 1
	cfg.Listen.RecordingTimeout = 2
	cfg.Listen.PollInterval = time.Millisecond
	cfg.Output.Dir = t.TempDir()
	require.NoError(t, cfg.Validate())
	return cfg
}
