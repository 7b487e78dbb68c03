package vad

import (
	"fmt"
	"math"
)

// EnergyConfig holds configuration for the energy classifier
type EnergyConfig struct {
	// Threshold is the minimum RMS energy to consider as speech
	// Typical values: 0.001 to 0.1 (lower = more sensitive)
	Threshold float64
}

// DefaultEnergyConfig returns a default energy classifier configuration
func DefaultEnergyConfig() EnergyConfig {
	return EnergyConfig{
		Threshold: 0.01, // Moderate sensitivity
	}
}

// EnergyClassifier labels a frame as speech when its RMS energy exceeds a
// fixed threshold
type EnergyClassifier struct {
	config EnergyConfig
}

// NewEnergyClassifier creates a new energy classifier
func NewEnergyClassifier(config EnergyConfig) (*EnergyClassifier, error) {
	if config.Threshold <= 0 || config.Threshold >= 1 {
		return nil, fmt.Errorf("energy threshold must be in (0, 1), got %v", config.Threshold)
	}
	return &EnergyClassifier{config: config}, nil
}

// Classify returns Unknown for frames that are not exactly one 10ms frame
func (e *EnergyClassifier) Classify(frame []byte, sampleRate int) Classification {
	if sampleRate <= 0 || len(frame) != FrameBytes(sampleRate) {
		return Unknown
	}
	if Energy(frame) > e.config.Threshold {
		return Speech
	}
	return Silence
}

// Energy calculates the RMS energy of 16-bit little-endian PCM, normalized to 0..1
func Energy(data []byte) float64 {
	sampleCount := len(data) / 2
	if sampleCount == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < sampleCount; i++ {
		sample := int16(data[i*2]) | int16(data[i*2+1])<<8
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
	}

	return math.Sqrt(sum / float64(sampleCount))
}
