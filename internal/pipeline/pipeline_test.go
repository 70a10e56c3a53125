package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
	"github.com/CarrieW-BorderX/tiktok-scraper/internal/resolver"
)

type scriptedResolver struct {
	outcomes []resolver.Outcome
	calls    int
}

func (s *scriptedResolver) Resolve(_ context.Context, _ string) resolver.Outcome {
	out := s.outcomes[min(s.calls, len(s.outcomes)-1)]
	s.calls++
	return out
}

type recordingDownloader struct {
	calls int
	err   error
	links []string
}

func (d *recordingDownloader) Download(_ context.Context, link, filename, destDir string) (string, error) {
	d.calls++
	d.links = append(d.links, link)
	if d.err != nil {
		return "", d.err
	}
	return destDir + "/" + filename, nil
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func rateLimited(n int) []resolver.Outcome {
	outs := make([]resolver.Outcome, 0, n+1)
	for i := 0; i < n; i++ {
		outs = append(outs, resolver.Outcome{Kind: resolver.RateLimited})
	}
	return outs
}

func newPipeline(r Resolver, d Downloader, s *sleepRecorder, maxRetries int) *Pipeline {
	return New(r, d, Options{
		RateLimitDelay:      7 * time.Second,
		MaxRateLimitRetries: maxRetries,
		Sleep:               s.sleep,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestProcessBacksOffThenDownloadsOnce(t *testing.T) {
	for _, n := range []int{0, 1, 4} {
		outs := append(rateLimited(n), resolver.Outcome{Kind: resolver.Resolved, Link: "http://tunnel/x", Filename: "x.mp4"})
		r := &scriptedResolver{outcomes: outs}
		d := &recordingDownloader{}
		s := &sleepRecorder{}

		res, err := newPipeline(r, d, s, 10).Process(context.Background(), "vid1", "/out")
		require.NoError(t, err)
		require.Equal(t, media.StatusDone, res.Status)
		require.Len(t, s.delays, n)
		for _, delay := range s.delays {
			require.Equal(t, 7*time.Second, delay)
		}
		require.Equal(t, 1, d.calls)
		require.Equal(t, n+1, r.calls)
		require.Equal(t, n, res.RateLimitHits)
		require.Equal(t, "/out/x.mp4", res.Path)
	}
}

func TestProcessResolutionFailedSkipsDownload(t *testing.T) {
	r := &scriptedResolver{outcomes: []resolver.Outcome{{Kind: resolver.Failed, Diagnostic: "bad link"}}}
	d := &recordingDownloader{}
	s := &sleepRecorder{}

	res, err := newPipeline(r, d, s, 10).Process(context.Background(), "vid2", "/out")
	require.NoError(t, err)
	require.Equal(t, media.StatusResolutionFailed, res.Status)
	require.Equal(t, "bad link", res.Diagnostic)
	require.Zero(t, d.calls)
	require.Empty(t, s.delays)
}

func TestProcessDownloadFailed(t *testing.T) {
	r := &scriptedResolver{outcomes: []resolver.Outcome{{Kind: resolver.Resolved, Link: "l", Filename: "f.mp4"}}}
	d := &recordingDownloader{err: errors.New("status 403: forbidden")}

	res, err := newPipeline(r, d, &sleepRecorder{}, 10).Process(context.Background(), "vid3", "/out")
	require.NoError(t, err)
	require.Equal(t, media.StatusDownloadFailed, res.Status)
	require.Contains(t, res.Diagnostic, "forbidden")
	require.Equal(t, 1, d.calls)
}

func TestProcessRetryBudgetExceeded(t *testing.T) {
	r := &scriptedResolver{outcomes: rateLimited(1)}
	d := &recordingDownloader{}
	s := &sleepRecorder{}

	res, err := newPipeline(r, d, s, 3).Process(context.Background(), "vid4", "/out")
	require.NoError(t, err)
	require.Equal(t, media.StatusRetryBudgetExceeded, res.Status)
	require.Len(t, s.delays, 3)
	require.Equal(t, 4, r.calls)
	require.Zero(t, d.calls)
}

func TestProcessStopsOnCancelledBackoff(t *testing.T) {
	r := &scriptedResolver{outcomes: rateLimited(1)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(r, &recordingDownloader{}, Options{RateLimitDelay: time.Hour}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := p.Process(ctx, "vid5", "/out")
	require.ErrorIs(t, err, context.Canceled)
}
