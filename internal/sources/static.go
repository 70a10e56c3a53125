package sources

import (
	"context"
	"fmt"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
)

// StaticSource serves fixed identifier lists keyed by query. Errors, when set for a
// query, are returned instead of identifiers.
type StaticSource struct {
	Lists  map[string][]string
	Errors map[string]error
	Calls  []string
}

func (s *StaticSource) Name() string {
	return "static"
}

func (s *StaticSource) Discover(_ context.Context, query string, kind media.SearchKind, max int) ([]string, error) {
	s.Calls = append(s.Calls, fmt.Sprintf("%s:%s", kind, query))
	if err := s.Errors[query]; err != nil {
		return nil, err
	}
	ids := s.Lists[query]
	if max > 0 && len(ids) > max {
		ids = ids[:max]
	}
	return append([]string(nil), ids...), nil
}

func (s *StaticSource) Close() error {
	return nil
}
