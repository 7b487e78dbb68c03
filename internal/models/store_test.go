package models

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func serve(t *testing.T, status int, body []byte) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/model.zip"
}

func TestFind(t *testing.T) {
	m, err := Find(DefaultModelName)
	require.NoError(t, err)
	assert.Equal(t, "en-US", m.Language)

	_, err = Find("vosk-model-klingon")
	assert.ErrorContains(t, err, "unknown model")
}

func TestStore_Download(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		"vosk-model-test/conf/model.conf": "--sample-frequency=16000",
		"vosk-model-test/README":          "test model",
	})
	store := NewStore(filepath.Join(t.TempDir(), "models"))
	m := Model{Name: "vosk-model-test", URL: serve(t, http.StatusOK, archive)}

	var last int64
	require.NoError(t, store.Download(context.Background(), m, func(n, _ int64) { last = n }))
	assert.EqualValues(t, len(archive), last)

	path, err := store.Path("vosk-model-test")
	require.NoError(t, err)
	conf, err := os.ReadFile(filepath.Join(path, "conf", "model.conf"))
	require.NoError(t, err)
	assert.Equal(t, "--sample-frequency=16000", string(conf))

	names, err := store.Downloaded()
	require.NoError(t, err)
	assert.Equal(t, []string{"vosk-model-test"}, names)

	_, err = os.Stat(filepath.Join(store.Dir(), "vosk-model-test.zip"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_DownloadHTTPError(t *testing.T) {
	store := NewStore(t.TempDir())
	err := store.Download(context.Background(), Model{Name: "vosk-model-x", URL: serve(t, http.StatusNotFound, nil)}, nil)
	assert.ErrorContains(t, err, "404")
}

func TestStore_DownloadRejectsZipSlip(t *testing.T) {
	archive := zipArchive(t, map[string]string{"../escape.txt": "nope"})
	dir := filepath.Join(t.TempDir(), "models")
	store := NewStore(dir)

	err := store.Download(context.Background(), Model{Name: "vosk-model-bad", URL: serve(t, http.StatusOK, archive)}, nil)
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(filepath.Dir(dir), "escape.txt"))
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestStore_PathNotDownloaded(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Path(DefaultModelName)
	assert.ErrorIs(t, err, ErrNotDownloaded)

	names, err := NewStore(filepath.Join(t.TempDir(), "missing")).Downloaded()
	require.NoError(t, err)
	assert.Empty(t, names)
}
