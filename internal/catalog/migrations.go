package catalog

import (
	"context"
	"fmt"
)

var migrations = []struct {
	name  string
	query string
}{
	{
		name: "001_downloads",
		query: `CREATE TABLE IF NOT EXISTS downloads (
			id BIGSERIAL PRIMARY KEY,
			identifier TEXT NOT NULL,
			run_id TEXT NOT NULL,
			label TEXT NOT NULL,
			account_id TEXT NOT NULL,
			search_kind VARCHAR(16) NOT NULL,
			status VARCHAR(32) NOT NULL,
			filename TEXT,
			path TEXT,
			attempts INT DEFAULT 0,
			rate_limit_hits INT DEFAULT 0,
			diagnostic TEXT,
			finished_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE(identifier, account_id, search_kind)
		);`,
	},
	{
		name:  "002_status_index",
		query: "CREATE INDEX IF NOT EXISTS idx_downloads_status ON downloads(status);",
	},
	{
		name:  "003_account_index",
		query: "CREATE INDEX IF NOT EXISTS idx_downloads_account ON downloads(account_id, search_kind);",
	},
}

func (c *Catalog) runMigrations(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := c.db.Exec(ctx, m.query); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	c.logger.Debug("schema up to date", "migrations", len(migrations))
	return nil
}
