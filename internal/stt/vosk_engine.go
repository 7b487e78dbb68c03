package stt

import (
	"context"
	"fmt"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"
)

// chunkBytes is how much PCM is fed to the recognizer between context checks (0.25s)
const chunkBytes = 8000

// VoskEngine implements Transcriber using an offline Vosk model
type VoskEngine struct {
	mu     sync.Mutex
	model  *vosk.VoskModel
	config Config
}

// NewVoskEngine loads the model at config.ModelPath
func NewVoskEngine(config Config) (*VoskEngine, error) {
	if config.ModelPath == "" {
		return nil, fmt.Errorf("model path is required")
	}
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}

	// Suppress Vosk's own logging
	vosk.SetLogLevel(-1)

	model, err := vosk.NewModel(config.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load model from %s: %w", config.ModelPath, err)
	}
	if model == nil {
		return nil, fmt.Errorf("failed to load model from %s: model returned nil", config.ModelPath)
	}

	return &VoskEngine{model: model, config: config}, nil
}

// Transcribe runs a fresh recognizer over the whole utterance
func (v *VoskEngine) Transcribe(ctx context.Context, pcm []byte) (*Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.model == nil {
		return nil, fmt.Errorf("engine closed")
	}

	recognizer, err := vosk.NewRecognizer(v.model, float64(v.config.SampleRate))
	if err != nil {
		return nil, fmt.Errorf("failed to create recognizer: %w", err)
	}
	defer recognizer.Free()

	// Always enable word results to get confidence scores
	recognizer.SetWords(1)

	for len(pcm) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := min(chunkBytes, len(pcm))
		recognizer.AcceptWaveform(pcm[:n])
		pcm = pcm[n:]
	}

	return parseResult(recognizer.FinalResult())
}

// Close releases the model
func (v *VoskEngine) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.model != nil {
		v.model.Free()
		v.model = nil
	}
	return nil
}
