package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
)

const (
	defaultChunkSize   = 32 * 1024
	maxDiagnosticBytes = 4096
)

// ErrBadFilename is returned when a resolved filename cannot name a file inside the destination.
var ErrBadFilename = errors.New("invalid filename")

// Options tunes a Downloader.
type Options struct {
	ChunkSize int
	Timeout   time.Duration
	Progress  bool
}

// Downloader streams tunnel links to files.
type Downloader struct {
	httpClient *http.Client
	chunkSize  int
	progress   bool
	logger     *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	return &Downloader{
		httpClient: &http.Client{Timeout: opts.Timeout},
		chunkSize:  chunk,
		progress:   opts.Progress,
		logger:     logger.With("component", "downloader"),
	}
}

// Download GETs link and writes the body to destDir/filename in bounded chunks.
// It returns the written path. A partially written file is left in place on failure.
func (d *Downloader) Download(ctx context.Context, link, filename, destDir string) (string, error) {
	name := filepath.Base(filepath.Clean(filename))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrBadFilename, filename)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxDiagnosticBytes))
		return "", fmt.Errorf("download %s: status %d: %s", name, resp.StatusCode, string(body))
	}

	path := filepath.Join(destDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	var w io.Writer = f
	if d.progress {
		bar := progressbar.DefaultBytes(resp.ContentLength, name)
		defer bar.Close()
		w = io.MultiWriter(f, bar)
	}

	n, err := io.CopyBuffer(w, resp.Body, make([]byte, d.chunkSize))
	if err != nil {
		return path, fmt.Errorf("write %s after %d bytes: %w", path, n, err)
	}
	if err := f.Close(); err != nil {
		return path, fmt.Errorf("close %s: %w", path, err)
	}

	d.logger.Info("downloaded", "file", name, "path", path, "bytes", n)
	return path, nil
}
