// Package vad classifies fixed-length PCM frames as speech or silence.
//
// A Classifier is stateless from the caller's point of view: every call looks
// at exactly one 10ms frame. Hysteresis (how much silence ends an utterance)
// is the segmentation engine's job, not the classifier's.
package vad

// Classification is the verdict for a single frame
type Classification int

const (
	// Unknown means the frame could not be classified
	Unknown Classification = iota

	// Silence means no voice activity in the frame
	Silence

	// Speech means voice activity in the frame
	Speech
)

// String returns the lowercase name used in logs and metrics
func (c Classification) String() string {
	switch c {
	case Speech:
		return "speech"
	case Silence:
		return "silence"
	default:
		return "unknown"
	}
}

// Classifier decides whether a frame contains speech
type Classifier interface {
	// Classify inspects one frame of 16-bit little-endian mono PCM
	// The frame must be exactly one 10ms frame at sampleRate
	Classify(frame []byte, sampleRate int) Classification
}

// ClassifierFunc adapts a function to the Classifier interface
type ClassifierFunc func(frame []byte, sampleRate int) Classification

// Classify calls f
func (f ClassifierFunc) Classify(frame []byte, sampleRate int) Classification {
	return f(frame, sampleRate)
}

// FromBool wraps a plain isSpeech predicate
func FromBool(isSpeech func(frame []byte, sampleRate int) bool) Classifier {
	return ClassifierFunc(func(frame []byte, sampleRate int) Classification {
		if isSpeech(frame, sampleRate) {
			return Speech
		}
		return Silence
	})
}

// FrameBytes returns the length of a valid 10ms 16-bit mono frame at sampleRate
func FrameBytes(sampleRate int) int {
	return sampleRate / 100 * 2
}
