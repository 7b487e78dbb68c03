package segment

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"

	"github.com/emmett/utter/internal/audio"
	"github.com/emmett/utter/internal/vad"
)

// Frame markers understood by markerClassifier
const (
	speechByte  = 's'
	silenceByte = '.'
	unknownByte = '?'
)

func frames(marker byte, n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = bytes.Repeat([]byte{marker}, 320)
	}
	return out
}

func script(parts ...[][]byte) [][]byte {
	var out [][]byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// markerClassifier classifies a frame by its first byte
type markerClassifier struct {
	calls atomic.Int64
}

func (c *markerClassifier) Classify(frame []byte, sampleRate int) vad.Classification {
	c.calls.Add(1)
	if sampleRate != 16000 {
		return vad.Unknown
	}
	switch frame[0] {
	case speechByte:
		return vad.Speech
	case silenceByte:
		return vad.Silence
	default:
		return vad.Unknown
	}
}

// lockstepOpener opens streams that push one scripted chunk per tick. The
// next chunk is pushed only after the listener acknowledges the previous one
// through the tick observer, so each drain sees exactly one chunk.
type lockstepOpener struct {
	chunks   [][]byte
	openErr  error
	failWith error // reported on Errors() once failAt chunks were consumed
	failAt   int

	ack    chan struct{}
	opened atomic.Int32
	stream *lockstepStream

	format      audio.Format
	frameSample int
}

func newLockstepOpener(chunks [][]byte) *lockstepOpener {
	return &lockstepOpener{
		chunks: chunks,
		ack:    make(chan struct{}, 1),
		failAt: -1,
	}
}

// observer acknowledges each tick to the producer
func (o *lockstepOpener) observer(extra func(Tick)) ListenOption {
	return WithTickObserver(func(t Tick) {
		if extra != nil {
			extra(t)
		}
		select {
		case o.ack <- struct{}{}:
		default:
		}
	})
}

func (o *lockstepOpener) Open(format audio.Format, frameSizeSamples int, onFrame func([]byte)) (audio.Stream, error) {
	o.opened.Add(1)
	o.format = format
	o.frameSample = frameSizeSamples
	if o.openErr != nil {
		return nil, o.openErr
	}

	s := &lockstepStream{
		done:   make(chan struct{}),
		errors: make(chan error, 1),
	}
	o.stream = s

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for i, chunk := range o.chunks {
			if i == o.failAt {
				s.errors <- o.failWith
				return
			}
			select {
			case <-s.done:
				return
			default:
			}
			onFrame(chunk)
			select {
			case <-o.ack:
			case <-s.done:
				return
			}
		}
		if o.failAt == len(o.chunks) {
			s.errors <- o.failWith
		}
	}()
	return s, nil
}

type lockstepStream struct {
	done   chan struct{}
	errors chan error
	closed atomic.Int32
	once   sync.Once
	wg     sync.WaitGroup
}

func (s *lockstepStream) Errors() <-chan error { return s.errors }

func (s *lockstepStream) Close() error {
	s.closed.Add(1)
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
	return nil
}

// recordingSink keeps what it was asked to persist
type recordingSink struct {
	mu     sync.Mutex
	calls  int
	frames []byte
	format audio.Format
	err    error
}

func (s *recordingSink) Persist(_ context.Context, frames []byte, format audio.Format) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.frames = append([]byte(nil), frames...)
	s.format = format
	if s.err != nil {
		return "", s.err
	}
	return "/tmp/utter/output-test.wav", nil
}
