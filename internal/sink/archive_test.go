package sink

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmett/utter/internal/audio"
	"github.com/emmett/utter/internal/observe"
)

// fakeS3 records PutObject requests
type fakeS3 struct {
	mu     sync.Mutex
	status int
	paths  []string
	bodies [][]byte
	types  []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Method == http.MethodPut {
		f.paths = append(f.paths, r.URL.Path)
		f.bodies = append(f.bodies, body)
		f.types = append(f.types, r.Header.Get("Content-Type"))
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func newArchive(t *testing.T, endpoint, prefix string, logs io.Writer) (*ArchiveSink, *WAVSink) {
	t.Helper()
	local, err := NewWAVSink(t.TempDir())
	require.NoError(t, err)

	s, err := NewArchiveSink(context.Background(), local, ArchiveConfig{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		Prefix:          prefix,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}, observe.NewLogger("debug", "text", logs))
	require.NoError(t, err)
	return s, local
}

func TestArchiveSink_UploadsPersistedFile(t *testing.T) {
	fake := &fakeS3{}
	server := httptest.NewServer(fake)
	defer server.Close()

	var logs bytes.Buffer
	s, local := newArchive(t, server.URL, "utterances/", &logs)

	path, err := s.Persist(context.Background(), pcm(1, 2, 3), audio.DefaultFormat())
	require.NoError(t, err)
	assert.Equal(t, local.Dir(), filepath.Dir(path))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.paths, 1)
	assert.Equal(t, "/test-bucket/utterances/"+filepath.Base(path), fake.paths[0])
	assert.Equal(t, onDisk, fake.bodies[0])
	assert.Equal(t, "audio/wav", fake.types[0])
	assert.Contains(t, logs.String(), "utterance archived")
}

func TestArchiveSink_UploadFailureKeepsLocalFile(t *testing.T) {
	fake := &fakeS3{status: http.StatusForbidden}
	server := httptest.NewServer(fake)
	defer server.Close()

	var logs bytes.Buffer
	s, _ := newArchive(t, server.URL, "", &logs)

	path, err := s.Persist(context.Background(), pcm(1, 2, 3), audio.DefaultFormat())
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Contains(t, logs.String(), "failed to archive utterance")
}

type failingSink struct{ err error }

func (f failingSink) Persist(context.Context, []byte, audio.Format) (string, error) {
	return "", f.err
}

func TestArchiveSink_LocalFailureSkipsUpload(t *testing.T) {
	fake := &fakeS3{}
	server := httptest.NewServer(fake)
	defer server.Close()

	diskFull := errors.New("disk full")
	s, err := NewArchiveSink(context.Background(), failingSink{err: diskFull}, ArchiveConfig{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        server.URL,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}, observe.Discard())
	require.NoError(t, err)

	_, err = s.Persist(context.Background(), pcm(1), audio.DefaultFormat())
	assert.ErrorIs(t, err, diskFull)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Empty(t, fake.paths)
}

func TestArchiveSink_Key(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: "output1-abcd1234.wav"},
		{prefix: "utterances", want: "utterances/output1-abcd1234.wav"},
		{prefix: "/a/b/", want: "a/b/output1-abcd1234.wav"},
	}

	for _, tt := range tests {
		s := &ArchiveSink{prefix: tt.prefix}
		assert.Equal(t, tt.want, s.Key("/tmp/utter/output1-abcd1234.wav"), "prefix %q", tt.prefix)
	}
}

func TestNewArchiveSink_Validation(t *testing.T) {
	local, err := NewWAVSink(t.TempDir())
	require.NoError(t, err)

	_, err = NewArchiveSink(context.Background(), nil, ArchiveConfig{Bucket: "b"}, nil)
	assert.Error(t, err)

	_, err = NewArchiveSink(context.Background(), local, ArchiveConfig{}, nil)
	assert.Error(t, err)
}
