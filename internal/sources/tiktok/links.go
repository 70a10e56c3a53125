package tiktok

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
)

const baseURL = "https://www.tiktok.com"

// PageURL is the listing page scrolled for query.
func PageURL(query string, kind media.SearchKind) (string, error) {
	q := strings.TrimSpace(query)
	switch kind {
	case media.KindHashtag:
		return fmt.Sprintf("%s/tag/%s", baseURL, url.PathEscape(strings.TrimPrefix(q, "#"))), nil
	case media.KindUserID:
		return fmt.Sprintf("%s/@%s", baseURL, url.PathEscape(strings.TrimPrefix(q, "@"))), nil
	default:
		return "", fmt.Errorf("%w: %q", media.ErrUnknownKind, kind)
	}
}

// NormalizeVideoLink turns an anchor href into a canonical video URL.
// It reports false for anything that is not a video page.
func NormalizeVideoLink(href string) (string, bool) {
	if !strings.Contains(href, "/video/") {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if u.Host == "" {
		u.Scheme = "https"
		u.Host = "www.tiktok.com"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), true
}

// collector accumulates unique video links up to a limit.
type collector struct {
	max   int
	seen  map[string]struct{}
	links []string
}

func newCollector(max int) *collector {
	return &collector{max: max, seen: make(map[string]struct{})}
}

// add merges hrefs and returns how many new links were kept.
func (c *collector) add(hrefs []string) int {
	added := 0
	for _, href := range hrefs {
		if c.full() {
			break
		}
		link, ok := NormalizeVideoLink(href)
		if !ok {
			continue
		}
		if _, dup := c.seen[link]; dup {
			continue
		}
		c.seen[link] = struct{}{}
		c.links = append(c.links, link)
		added++
	}
	return added
}

func (c *collector) full() bool {
	return c.max > 0 && len(c.links) >= c.max
}
