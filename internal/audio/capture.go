package audio

import "time"

// Format describes raw interleaved PCM audio
type Format struct {
	// SampleRate is the number of samples per second (Hz)
	SampleRate int

	// Channels is the number of audio channels
	Channels int

	// BitWidth is the number of bytes per sample
	BitWidth int
}

// FrameDuration is the fixed frame length used for classification
const FrameDuration = 10 * time.Millisecond

// DefaultFormat returns 16kHz mono 16-bit, the only format the listener records
func DefaultFormat() Format {
	return Format{
		SampleRate: 16000,
		Channels:   1,
		BitWidth:   2,
	}
}

// BytesPerFrame returns the size in bytes of a frame lasting d
func (f Format) BytesPerFrame(d time.Duration) int {
	return f.SampleRate * f.BitWidth * f.Channels * int(d/time.Millisecond) / 1000
}

// SamplesPerFrame returns the number of samples per channel in a frame lasting d
func (f Format) SamplesPerFrame(d time.Duration) int {
	return f.SampleRate * int(d/time.Millisecond) / 1000
}

// FrameBytes is the size of one classification frame (320 bytes at the default format)
func (f Format) FrameBytes() int {
	return f.BytesPerFrame(FrameDuration)
}

// Duration returns how long n bytes of audio play for
func (f Format) Duration(n int) time.Duration {
	bytesPerSecond := f.SampleRate * f.BitWidth * f.Channels
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bytesPerSecond)
}

// Stream is an open capture stream
type Stream interface {
	// Errors reports asynchronous device failures (e.g. disconnect)
	// The channel is never closed by the stream
	Errors() <-chan error

	// Close stops capture and releases the device
	Close() error
}

// Opener opens capture streams
type Opener interface {
	// Open starts capturing audio in the given format, invoking onFrame once per
	// captured period of frameSizeSamples samples
	// onFrame runs on the real-time audio thread and must return quickly
	Open(format Format, frameSizeSamples int, onFrame func([]byte)) (Stream, error)
}

// OpenerFunc adapts a function to the Opener interface
type OpenerFunc func(format Format, frameSizeSamples int, onFrame func([]byte)) (Stream, error)

// Open calls f
func (f OpenerFunc) Open(format Format, frameSizeSamples int, onFrame func([]byte)) (Stream, error) {
	return f(format, frameSizeSamples, onFrame)
}
