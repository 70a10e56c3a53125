package downloader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDownloader(chunk int) *Downloader {
	return New(Options{ChunkSize: chunk}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDownloadWritesBody(t *testing.T) {
	payload := strings.Repeat("frame", 10_000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		_, _ = io.WriteString(w, payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, err := newTestDownloader(1024).Download(context.Background(), srv.URL, "clip.mp4", dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "clip.mp4"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payload, string(got))
}

func TestDownloadNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
		_, _ = io.WriteString(w, "tunnel expired")
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := newTestDownloader(0).Download(context.Background(), srv.URL, "clip.mp4", dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "tunnel expired")
	require.Contains(t, err.Error(), "410")

	_, statErr := os.Stat(filepath.Join(dir, "clip.mp4"))
	require.True(t, os.IsNotExist(statErr))
}

func TestDownloadStripsDirectories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, err := newTestDownloader(0).Download(context.Background(), srv.URL, "../../escape.mp4", dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "escape.mp4"), path)
}

func TestDownloadRejectsEmptyName(t *testing.T) {
	_, err := newTestDownloader(0).Download(context.Background(), "http://unused", "..", t.TempDir())
	require.True(t, errors.Is(err, ErrBadFilename))
}

func TestDownloadOverwritesExisting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "new")
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("old-and-longer"), 0o644))

	path, err := newTestDownloader(0).Download(context.Background(), srv.URL, "clip.mp4", dir)
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "new", string(got))
}
