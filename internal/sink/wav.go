// Package sink persists finished utterances.
package sink

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"

	"github.com/emmett/utter/internal/audio"
)

// wavPCM is the WAVE format tag for integer PCM
const wavPCM = 1

// sampleBytes is the only sample width written: 16-bit PCM
const sampleBytes = 2

// DefaultDir returns the directory utterances are written to when none is configured
func DefaultDir() string {
	return filepath.Join(os.TempDir(), "utter")
}

// WAVSink writes each utterance to its own WAV file
type WAVSink struct {
	dir string
	now func() time.Time
}

// NewWAVSink creates a sink writing into dir, creating it if needed.
// An empty dir uses DefaultDir.
func NewWAVSink(dir string) (*WAVSink, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &WAVSink{dir: dir, now: time.Now}, nil
}

// Dir returns the output directory
func (s *WAVSink) Dir() string {
	return s.dir
}

// Persist writes frames as a 16-bit PCM WAV file and returns its path
func (s *WAVSink) Persist(ctx context.Context, frames []byte, format audio.Format) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}
	if format.BitWidth != sampleBytes {
		return "", fmt.Errorf("unsupported bit width: %d bytes", format.BitWidth)
	}
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return "", fmt.Errorf("invalid format %+v", format)
	}

	path := filepath.Join(s.dir, s.fileName())
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := encode(f, frames, format); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

// fileName is output<unix-seconds>-<8 hex>.wav; the suffix keeps two
// utterances saved in the same second apart
func (s *WAVSink) fileName() string {
	return fmt.Sprintf("output%d-%s.wav", s.now().Unix(), uuid.New().String()[:8])
}

func encode(f *os.File, frames []byte, format audio.Format) error {
	bitDepth := format.BitWidth * 8
	enc := wav.NewEncoder(f, format.SampleRate, bitDepth, format.Channels, wavPCM)

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: format.Channels,
			SampleRate:  format.SampleRate,
		},
		Data:           samples(frames, format.Channels),
		SourceBitDepth: bitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav header: %w", err)
	}
	return nil
}

// samples decodes S16LE bytes; a trailing partial sample frame is dropped
func samples(frames []byte, channels int) []int {
	align := sampleBytes * channels
	frames = frames[:len(frames)-len(frames)%align]

	out := make([]int, len(frames)/sampleBytes)
	for i := range out {
		out[i] = int(int16(binary.LittleEndian.Uint16(frames[sampleBytes*i:])))
	}
	return out
}
