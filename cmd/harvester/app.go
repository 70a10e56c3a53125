package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/batch"
	"github.com/CarrieW-BorderX/tiktok-scraper/internal/catalog"
	"github.com/CarrieW-BorderX/tiktok-scraper/internal/downloader"
	"github.com/CarrieW-BorderX/tiktok-scraper/internal/events"
	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
	"github.com/CarrieW-BorderX/tiktok-scraper/internal/pipeline"
	"github.com/CarrieW-BorderX/tiktok-scraper/internal/resolver"
	"github.com/CarrieW-BorderX/tiktok-scraper/internal/search"
	"github.com/CarrieW-BorderX/tiktok-scraper/internal/sources/tiktok"
	"github.com/CarrieW-BorderX/tiktok-scraper/internal/store"
	"github.com/CarrieW-BorderX/tiktok-scraper/internal/worker"
	"github.com/CarrieW-BorderX/tiktok-scraper/pkg/config"
	"github.com/CarrieW-BorderX/tiktok-scraper/pkg/dedup"
	"github.com/CarrieW-BorderX/tiktok-scraper/pkg/metrics"
)

const sweepInterval = 15 * time.Minute

// app owns the configured components of one command invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

func loadApp(g *Globals) (*app, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)
	return &app{cfg: cfg, logger: logger}, nil
}

func newLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// close releases components in reverse order of creation.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// orchestrator wires discovery, the pipeline and every configured sink.
// Optional infrastructure that cannot be reached is logged and left out.
func (a *app) orchestrator(ctx context.Context, kind media.SearchKind, max int) (*batch.Orchestrator, error) {
	cfg := a.cfg

	src, err := tiktok.NewSource(tiktok.Options{
		BatchSize:      cfg.Discovery.BatchSize,
		Rest:           time.Duration(cfg.Discovery.RestSeconds) * time.Second,
		RetryDelay:     time.Duration(cfg.Discovery.RetryDelaySeconds) * time.Second,
		MaxRetries:     cfg.Discovery.MaxRetries,
		UserDataDir:    cfg.Discovery.UserDataDir,
		Headless:       cfg.Discovery.Headless,
		MonitorAddress: cfg.Discovery.MonitorAddress,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	a.onClose(func() {
		if err := src.Close(); err != nil {
			a.logger.Warn("close browser", "err", err)
		}
	})

	go worker.StartProfileSweeper(ctx, os.TempDir(), tiktok.ProfilePrefix, sweepInterval, a.logger, src.Profile())

	items := pipeline.New(
		resolver.New(cfg.Resolver.Endpoint, cfg.ResolverTimeout(), a.logger),
		downloader.New(downloader.Options{
			ChunkSize: cfg.Download.ChunkSize,
			Timeout:   cfg.DownloadTimeout(),
			Progress:  cfg.Download.Progress,
		}, a.logger),
		pipeline.Options{
			RateLimitDelay:      cfg.RateLimitDelay(),
			MaxRateLimitRetries: cfg.Resolver.RateLimitMaxRetries,
		},
		a.logger,
	)

	o := batch.New(src, store.NewListStore(cfg.Batch.ListsDir), items, batch.Options{
		Kind:            kind,
		MaxIdentifiers:  max,
		DestinationRoot: cfg.Batch.DestinationRoot,
		ErrorLogPath:    cfg.Batch.ErrorLog,
		ReportPath:      cfg.Batch.ReportPath,
		SkipCompleted:   cfg.Batch.SkipCompleted,
	}, a.logger)

	a.attachSinks(ctx, o)
	return o, nil
}

func (a *app) attachSinks(ctx context.Context, o *batch.Orchestrator) {
	cfg := a.cfg

	if cfg.Redis.Address != "" {
		rdb, err := dedup.Connect(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.logger.Warn("redis disabled", "err", err)
		} else {
			d := dedup.NewDeduplicator(rdb, cfg.Redis.TTLHours)
			a.onClose(func() { _ = d.Close() })
			o.WithSinks(d).WithCompletion(d)

			if cfg.Metrics.Address != "" {
				go func() {
					if err := metrics.Serve(ctx, cfg.Metrics.Address, d.RDB(), metricDefs(), a.logger); err != nil {
						a.logger.Error("metrics server stopped", "err", err)
					}
				}()
			}
		}
	} else if cfg.Metrics.Address != "" {
		a.logger.Warn("metrics need redis, endpoint disabled", "address", cfg.Metrics.Address)
	}

	if cfg.Batch.SkipCompleted && cfg.Redis.Address == "" {
		a.logger.Warn("batch.skip_completed needs redis, every listed identifier will be downloaded")
	}

	if cfg.Database.URL != "" {
		c, err := catalog.Open(ctx, cfg.Database.URL, a.logger)
		if err != nil {
			a.logger.Warn("catalog disabled", "err", err)
		} else {
			a.onClose(func() { _ = c.Close(context.Background()) })
			o.WithSinks(c)
		}
	}

	if cfg.Meilisearch.Host != "" {
		o.WithSinks(search.NewIndexer(cfg.Meilisearch.Host, cfg.Meilisearch.Key, cfg.Meilisearch.Index, a.logger))
	}

	if cfg.Nats.URL != "" {
		p, err := events.Connect(cfg.Nats.URL, a.logger)
		if err != nil {
			a.logger.Warn("events disabled", "err", err)
		} else {
			a.onClose(p.Close)
			o.WithSinks(p)
		}
	}
}

func metricDefs() []metrics.MetricDef {
	statuses := []struct {
		status media.ItemStatus
		help   string
	}{
		{media.StatusDone, "Videos downloaded"},
		{media.StatusSkipped, "Videos skipped because an earlier run completed them"},
		{media.StatusResolutionFailed, "Identifiers the resolver rejected"},
		{media.StatusDownloadFailed, "Resolved links that failed to download"},
		{media.StatusRetryBudgetExceeded, "Identifiers abandoned after repeated rate limiting"},
	}
	defs := make([]metrics.MetricDef, 0, len(statuses)+1)
	for _, s := range statuses {
		defs = append(defs, metrics.MetricDef{
			RedisKey: dedup.StatKey(s.status),
			PromName: fmt.Sprintf("harvester_items_%s_total", s.status),
			Help:     s.help,
			Type:     "counter",
		})
	}
	defs = append(defs, metrics.MetricDef{
		RedisKey: "harvester:stats:rate_limit_hits",
		PromName: "harvester_rate_limit_hits_total",
		Help:     "Rate limit responses from the resolver",
		Type:     "counter",
	})
	return defs
}
