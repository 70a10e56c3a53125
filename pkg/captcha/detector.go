package captcha

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-rod/rod"
)

// ErrUnresolved is returned when a captcha is still on the page after the wait limit.
var ErrUnresolved = errors.New("captcha not resolved before timeout")

var selectors = []string{
	".captcha_verify_container",
	".captcha_verify_img_slide",
	"[class*='captcha']",
	"[class*='secsdk-captcha']",
	"[id*='captcha']",
	"div[class*='verify']",
}

// IsCaptchaPresent reports whether the page shows a verification challenge.
func IsCaptchaPresent(page *rod.Page) bool {
	info, _ := page.Info()
	if info != nil && LooksLikeVerifyURL(info.URL) {
		return true
	}

	if _, err := page.Timeout(2 * time.Second).Element(`iframe[src*="captcha"]`); err == nil {
		return true
	}

	for _, sel := range selectors {
		if _, err := page.Timeout(1 * time.Second).Element(sel); err == nil {
			return true
		}
	}

	if _, err := page.Timeout(1*time.Second).ElementR("*", "(?i)(drag.*slider|fit.*puzzle|verify|captcha)"); err == nil {
		return true
	}

	return false
}

// LooksLikeVerifyURL matches the redirect targets TikTok uses for challenges.
func LooksLikeVerifyURL(rawURL string) bool {
	u := strings.ToLower(rawURL)
	return strings.Contains(u, "verify") || strings.Contains(u, "captcha")
}

// WaitResolved polls until the captcha disappears (solved by an operator in the
// visible browser), the timeout elapses, or ctx is done.
func WaitResolved(ctx context.Context, page *rod.Page, timeout, poll time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if !IsCaptchaPresent(page) {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrUnresolved
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}
