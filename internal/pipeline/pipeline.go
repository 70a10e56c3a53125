package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
	"github.com/CarrieW-BorderX/tiktok-scraper/internal/resolver"
)

const DefaultMaxRateLimitRetries = 30

// ErrRetryBudgetExceeded marks an identifier abandoned after too many rate-limit backoffs.
var ErrRetryBudgetExceeded = errors.New("rate limit retry budget exceeded")

// Resolver answers one resolution attempt.
type Resolver interface {
	Resolve(ctx context.Context, identifier string) resolver.Outcome
}

// Downloader writes a resolved link to destDir and returns the written path.
type Downloader interface {
	Download(ctx context.Context, link, filename, destDir string) (string, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Options configure the backoff loop.
type Options struct {
	RateLimitDelay      time.Duration
	MaxRateLimitRetries int
	Sleep               SleepFunc
}

// Pipeline resolves and downloads one identifier at a time.
// It holds no state between identifiers.
type Pipeline struct {
	resolver   Resolver
	downloader Downloader
	delay      time.Duration
	maxRetries int
	sleep      SleepFunc
	logger     *slog.Logger
}

func New(r Resolver, d Downloader, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxRateLimitRetries <= 0 {
		opts.MaxRateLimitRetries = DefaultMaxRateLimitRetries
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	return &Pipeline{
		resolver:   r,
		downloader: d,
		delay:      opts.RateLimitDelay,
		maxRetries: opts.MaxRateLimitRetries,
		sleep:      opts.Sleep,
		logger:     logger.With("component", "pipeline"),
	}
}

// Process runs Resolving -> (Backoff -> Resolving)* -> Downloading for identifier.
// The returned error is non-nil only when ctx was cancelled; every other failure is
// reported through the result status.
func (p *Pipeline) Process(ctx context.Context, identifier, destDir string) (media.ItemResult, error) {
	res := media.ItemResult{Identifier: identifier}
	log := p.logger.With("identifier", identifier)

	for {
		res.Attempts++
		out := p.resolver.Resolve(ctx, identifier)

		switch out.Kind {
		case resolver.Resolved:
			res.Filename = out.Filename
			path, err := p.downloader.Download(ctx, out.Link, out.Filename, destDir)
			if err != nil {
				if ctx.Err() != nil {
					return p.finish(res, media.StatusDownloadFailed, err.Error()), ctx.Err()
				}
				log.Warn("download failed", "error", err)
				return p.finish(res, media.StatusDownloadFailed, err.Error()), nil
			}
			res.Path = path
			return p.finish(res, media.StatusDone, ""), nil

		case resolver.RateLimited:
			if res.RateLimitHits >= p.maxRetries {
				log.Warn("giving up after rate limit backoffs", "backoffs", res.RateLimitHits)
				return p.finish(res, media.StatusRetryBudgetExceeded,
					fmt.Sprintf("%v after %d backoffs", ErrRetryBudgetExceeded, res.RateLimitHits)), nil
			}
			res.RateLimitHits++
			log.Info("rate limit hit, backing off", "delay", p.delay, "backoff", res.RateLimitHits)
			if err := p.sleep(ctx, p.delay); err != nil {
				return p.finish(res, media.StatusRetryBudgetExceeded, err.Error()), err
			}

		default:
			if ctx.Err() != nil {
				return p.finish(res, media.StatusResolutionFailed, out.Diagnostic), ctx.Err()
			}
			log.Warn("resolution failed", "diagnostic", out.Diagnostic)
			return p.finish(res, media.StatusResolutionFailed, out.Diagnostic), nil
		}
	}
}

func (p *Pipeline) finish(res media.ItemResult, status media.ItemStatus, diag string) media.ItemResult {
	res.Status = status
	res.Diagnostic = diag
	res.FinishedAt = time.Now().UTC()
	return res
}
