package tiktok

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
	"github.com/CarrieW-BorderX/tiktok-scraper/pkg/captcha"
)

const (
	navigateTimeout = 45 * time.Second
	loadTimeout     = 15 * time.Second
	scrollDelta     = 1000
)

// Source discovers video links by scrolling TikTok listing pages in a real browser.
type Source struct {
	browser    *rod.Browser
	launcher   *launcher.Launcher
	opts       Options
	tmpProfile string
	logger     *slog.Logger
}

// NewSource launches the browser. Without a UserDataDir a temporary profile is
// created and removed again on Close.
func NewSource(opts Options, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	s := &Source{opts: opts, logger: logger.With("component", "tiktok")}

	profile := opts.UserDataDir
	if profile == "" {
		dir, err := os.MkdirTemp("", ProfilePrefix)
		if err != nil {
			return nil, fmt.Errorf("create browser profile: %w", err)
		}
		profile = dir
		s.tmpProfile = dir
		s.logger.Warn("no user data dir configured, session will not stay logged in", "profile", dir)
	}

	path, _ := launcher.LookPath()
	l := launcher.New().
		Bin(path).
		UserDataDir(profile).
		Leakless(false).
		Set("disable-gpu").
		Set("no-sandbox")
	if opts.Headless {
		l = l.Set("headless", "new")
	} else {
		l = l.Headless(false)
	}

	u, err := l.Launch()
	if err != nil {
		s.removeProfile()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	s.launcher = l

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		s.removeProfile()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	s.browser = browser

	if opts.MonitorAddress != "" {
		go browser.ServeMonitor(opts.MonitorAddress)
		s.logger.Info("rod monitor listening", "address", opts.MonitorAddress)
	}
	return s, nil
}

func (s *Source) Name() string {
	return "tiktok-rod"
}

// Profile is the throwaway profile directory of the running browser, or "" when
// Options.UserDataDir is used.
func (s *Source) Profile() string {
	return s.tmpProfile
}

// Discover scrolls the listing page for query and returns up to max video URLs.
// It rests after every BatchSize new links and stops after MaxRetries scrolls in a row
// that surface nothing new.
func (s *Source) Discover(ctx context.Context, query string, kind media.SearchKind, max int) ([]string, error) {
	pageURL, err := PageURL(query, kind)
	if err != nil {
		return nil, err
	}
	log := s.logger.With("query", query, "kind", kind)

	page, err := stealth.Page(s.browser)
	if err != nil {
		return nil, fmt.Errorf("create stealth page: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	log.Info("navigating", "url", pageURL)
	if err := page.Timeout(navigateTimeout).Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	_ = page.Timeout(loadTimeout).WaitLoad()

	if err := s.handleCaptcha(ctx, page); err != nil {
		return nil, err
	}

	c := newCollector(max)
	misses, sinceRest := 0, 0
	for !c.full() {
		hrefs, err := videoHrefs(page)
		if err != nil {
			return c.links, fmt.Errorf("collect links: %w", err)
		}

		added := c.add(hrefs)
		if added == 0 {
			misses++
			if misses > s.opts.MaxRetries {
				log.Info("no new videos after retries, stopping", "collected", len(c.links))
				break
			}
			if err := sleep(ctx, s.opts.RetryDelay); err != nil {
				return c.links, err
			}
		} else {
			misses = 0
			sinceRest += added
			log.Debug("collected videos", "added", added, "total", len(c.links))
		}

		if sinceRest >= s.opts.BatchSize && !c.full() {
			log.Info("batch collected, resting", "total", len(c.links), "rest", s.opts.Rest)
			if err := sleep(ctx, s.opts.Rest); err != nil {
				return c.links, err
			}
			sinceRest = 0
		}

		if err := page.Mouse.Scroll(0, scrollDelta, 1); err != nil {
			return c.links, fmt.Errorf("scroll: %w", err)
		}
		if err := s.handleCaptcha(ctx, page); err != nil {
			return c.links, err
		}
	}

	log.Info("discovery finished", "collected", len(c.links))
	return c.links, nil
}

func (s *Source) handleCaptcha(ctx context.Context, page *rod.Page) error {
	if !captcha.IsCaptchaPresent(page) {
		return nil
	}
	s.logger.Warn("captcha detected, waiting for manual resolution", "timeout", s.opts.CaptchaWait)
	if err := captcha.WaitResolved(ctx, page, s.opts.CaptchaWait, 3*time.Second); err != nil {
		return fmt.Errorf("captcha: %w", err)
	}
	_ = page.Timeout(loadTimeout).WaitLoad()
	return nil
}

// Close shuts the browser down and removes a temporary profile.
func (s *Source) Close() error {
	var errs []error
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if s.launcher != nil {
		s.launcher.Kill()
	}
	if err := s.removeProfile(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Source) removeProfile() error {
	if s.tmpProfile == "" {
		return nil
	}
	if err := os.RemoveAll(s.tmpProfile); err != nil {
		return fmt.Errorf("remove browser profile %s: %w", s.tmpProfile, err)
	}
	s.tmpProfile = ""
	return nil
}

func videoHrefs(page *rod.Page) ([]string, error) {
	links, err := page.Timeout(5 * time.Second).Elements(`a[href*="/video/"]`)
	if err != nil {
		return nil, err
	}
	hrefs := make([]string, 0, len(links))
	for _, link := range links {
		href, err := link.Attribute("href")
		if err == nil && href != nil {
			hrefs = append(hrefs, *href)
		}
	}
	return hrefs, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
