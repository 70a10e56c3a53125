package sources

import (
	"context"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
)

// Source expands a query (hashtag or user id) into video identifiers.
// Pacing, batching and retries are the implementation's concern.
type Source interface {
	Name() string
	// Discover returns up to max identifiers for query, in discovery order.
	Discover(ctx context.Context, query string, kind media.SearchKind, max int) ([]string, error)
	// Close releases resources such as browsers.
	Close() error
}
