package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
)

// Catalog records the outcome of every identifier in Postgres.
type Catalog struct {
	db     *pgx.Conn
	logger *slog.Logger
}

// Open connects to databaseURL and applies migrations.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("postgres not answering: %w", err)
	}

	c := &Catalog{db: conn, logger: logger.With("component", "catalog")}
	if err := c.runMigrations(ctx); err != nil {
		conn.Close(ctx)
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Name() string { return "postgres" }

// Record upserts rec keyed by (identifier, account_id, search_kind).
func (c *Catalog) Record(ctx context.Context, rec media.Record) error {
	query := `
        INSERT INTO downloads
        (identifier, run_id, label, account_id, search_kind, status, filename, path,
         attempts, rate_limit_hits, diagnostic, finished_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
        ON CONFLICT (identifier, account_id, search_kind) DO UPDATE
        SET run_id = EXCLUDED.run_id,
            label = EXCLUDED.label,
            status = EXCLUDED.status,
            filename = EXCLUDED.filename,
            path = EXCLUDED.path,
            attempts = EXCLUDED.attempts,
            rate_limit_hits = EXCLUDED.rate_limit_hits,
            diagnostic = EXCLUDED.diagnostic,
            finished_at = EXCLUDED.finished_at,
            updated_at = NOW()
    `
	_, err := c.db.Exec(ctx, query,
		rec.Identifier,
		rec.RunID,
		rec.Label,
		rec.AccountID,
		string(rec.Kind),
		string(rec.Status),
		rec.Filename,
		rec.Path,
		rec.Attempts,
		rec.RateLimitHits,
		rec.Diagnostic,
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("catalog upsert %s: %w", rec.Identifier, err)
	}
	return nil
}

// Get returns the latest record for an identifier of an account.
func (c *Catalog) Get(ctx context.Context, identifier, accountID string, kind media.SearchKind) (media.Record, error) {
	query := `
        SELECT run_id, label, status, filename, path, attempts, rate_limit_hits, diagnostic, finished_at
        FROM downloads
        WHERE identifier = $1 AND account_id = $2 AND search_kind = $3
    `
	rec := media.Record{AccountID: accountID, Kind: kind}
	rec.Identifier = identifier

	var status string
	var finished time.Time
	err := c.db.QueryRow(ctx, query, identifier, accountID, string(kind)).Scan(
		&rec.RunID,
		&rec.Label,
		&status,
		&rec.Filename,
		&rec.Path,
		&rec.Attempts,
		&rec.RateLimitHits,
		&rec.Diagnostic,
		&finished,
	)
	if err != nil {
		return media.Record{}, fmt.Errorf("catalog get %s: %w", identifier, err)
	}
	rec.Status = media.ItemStatus(status)
	rec.FinishedAt = finished
	return rec, nil
}

func (c *Catalog) Close(ctx context.Context) error {
	return c.db.Close(ctx)
}
