// Package stt turns a saved utterance into text.
package stt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// Result represents a speech recognition result
type Result struct {
	// Text is the recognized text
	Text string

	// Confidence is the average word confidence (0.0 to 1.0)
	Confidence float64

	// Words holds per-word timing
	Words []Word
}

// Word is one recognized word with its position in the utterance, in seconds
type Word struct {
	Text       string
	Start      float64
	End        float64
	Confidence float64
}

// Config holds configuration for the STT engine
type Config struct {
	// ModelPath is the path to the Vosk model directory
	ModelPath string

	// SampleRate is the audio sample rate in Hz
	SampleRate int
}

// Transcriber converts 16-bit PCM into text
type Transcriber interface {
	// Transcribe recognizes a whole utterance of mono S16LE PCM
	Transcribe(ctx context.Context, pcm []byte) (*Result, error)

	// Close releases resources
	Close() error
}

// DefaultConfig returns a default STT configuration
func DefaultConfig(modelPath string) Config {
	return Config{
		ModelPath:  modelPath,
		SampleRate: 16000,
	}
}

// TranscribeFile reads a WAV utterance and transcribes it
func TranscribeFile(ctx context.Context, t Transcriber, path string, sampleRate int) (*Result, error) {
	pcm, err := ReadPCM(path, sampleRate)
	if err != nil {
		return nil, err
	}
	return t.Transcribe(ctx, pcm)
}

// ReadPCM decodes a mono 16-bit WAV file recorded at sampleRate back to S16LE bytes
func ReadPCM(path string, sampleRate int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid wav file", path)
	}
	if int(dec.SampleRate) != sampleRate || dec.NumChans != 1 || dec.BitDepth != 16 {
		return nil, fmt.Errorf("%s: want %d Hz mono 16-bit, got %d Hz %d channels %d-bit",
			path, sampleRate, dec.SampleRate, dec.NumChans, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	pcm := make([]byte, 2*len(buf.Data))
	for i, s := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(s)))
	}
	return pcm, nil
}

// voskResult is the JSON document Vosk returns
type voskResult struct {
	Text   string `json:"text"`
	Result []struct {
		Conf  float64 `json:"conf"`
		End   float64 `json:"end"`
		Start float64 `json:"start"`
		Word  string  `json:"word"`
	} `json:"result,omitempty"`
}

func parseResult(raw string) (*Result, error) {
	var vr voskResult
	if err := json.Unmarshal([]byte(raw), &vr); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}

	res := &Result{Text: vr.Text}
	if len(vr.Result) == 0 {
		return res, nil
	}

	var sum float64
	for _, w := range vr.Result {
		res.Words = append(res.Words, Word{Text: w.Word, Start: w.Start, End: w.End, Confidence: w.Conf})
		sum += w.Conf
	}
	res.Confidence = sum / float64(len(vr.Result))
	return res, nil
}
