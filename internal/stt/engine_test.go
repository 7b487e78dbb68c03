package stt

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmett/utter/internal/audio"
	"github.com/emmett/utter/internal/sink"
)

func TestParseResult(t *testing.T) {
	raw := `{
  "result": [
    {"conf": 1.0, "end": 0.6, "start": 0.2, "word": "turn"},
    {"conf": 0.5, "end": 0.9, "start": 0.6, "word": "on"}
  ],
  "text": "turn on"
}`
	res, err := parseResult(raw)
	require.NoError(t, err)

	assert.Equal(t, "turn on", res.Text)
	assert.InDelta(t, 0.75, res.Confidence, 1e-9)
	require.Len(t, res.Words, 2)
	assert.Equal(t, Word{Text: "turn", Start: 0.2, End: 0.6, Confidence: 1.0}, res.Words[0])
}

func TestParseResult_Empty(t *testing.T) {
	res, err := parseResult(`{"text": ""}`)
	require.NoError(t, err)
	assert.Empty(t, res.Text)
	assert.Zero(t, res.Confidence)

	_, err = parseResult("not json")
	assert.Error(t, err)
}

func writeUtterance(t *testing.T, samples []int16) string {
	t.Helper()
	pcm := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(s))
	}

	s, err := sink.NewWAVSink(t.TempDir())
	require.NoError(t, err)
	path, err := s.Persist(context.Background(), pcm, audio.DefaultFormat())
	require.NoError(t, err)
	return path
}

func TestReadPCM(t *testing.T) {
	path := writeUtterance(t, []int16{10, -10, 300, -32768})

	pcm, err := ReadPCM(path, 16000)
	require.NoError(t, err)
	require.Len(t, pcm, 8)
	assert.Equal(t, int16(-10), int16(binary.LittleEndian.Uint16(pcm[2:])))
	assert.Equal(t, int16(-32768), int16(binary.LittleEndian.Uint16(pcm[6:])))
}

func TestReadPCM_Rejects(t *testing.T) {
	path := writeUtterance(t, []int16{1, 2})
	_, err := ReadPCM(path, 8000)
	assert.Error(t, err, "sample rate mismatch")

	junk := filepath.Join(t.TempDir(), "junk.wav")
	require.NoError(t, os.WriteFile(junk, []byte("not a wav"), 0600))
	_, err = ReadPCM(junk, 16000)
	assert.Error(t, err)

	_, err = ReadPCM(filepath.Join(t.TempDir(), "missing.wav"), 16000)
	assert.Error(t, err)
}

type echoTranscriber struct{ got []byte }

func (e *echoTranscriber) Transcribe(_ context.Context, pcm []byte) (*Result, error) {
	e.got = pcm
	return &Result{Text: "ok"}, nil
}

func (e *echoTranscriber) Close() error { return nil }

func TestTranscribeFile(t *testing.T) {
	path := writeUtterance(t, []int16{7, 8, 9})
	tr := &echoTranscriber{}

	res, err := TranscribeFile(context.Background(), tr, path, 16000)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.Len(t, tr.got, 6)
}

func TestNewVoskEngine_RequiresModelPath(t *testing.T) {
	_, err := NewVoskEngine(Config{})
	assert.Error(t, err)
}
