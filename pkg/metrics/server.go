package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// MetricDef maps a Redis counter onto a Prometheus metric.
type MetricDef struct {
	RedisKey string
	PromName string
	Help     string
	Type     string // "counter" or "gauge"
}

// Handler renders every def in the Prometheus text format. Missing keys read as 0.
func Handler(rdb *redis.Client, defs []MetricDef, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		for _, m := range defs {
			val, err := rdb.Get(r.Context(), m.RedisKey).Result()
			if errors.Is(err, redis.Nil) {
				val = "0"
			} else if err != nil {
				logger.Warn("metrics: read failed", "key", m.RedisKey, "err", err)
				val = "0"
			}
			fmt.Fprintf(w, "# HELP %s %s\n", m.PromName, m.Help)
			fmt.Fprintf(w, "# TYPE %s %s\n", m.PromName, m.Type)
			fmt.Fprintf(w, "%s %s\n\n", m.PromName, val)
		}
	})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, rdb *redis.Client, defs []MetricDef, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(rdb, defs, logger))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", "address", addr+"/metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: serve %s: %w", addr, err)
	}
	return nil
}
