package tiktok

import "time"

// ProfilePrefix names throwaway browser profiles so the sweeper can find leftovers.
const ProfilePrefix = "harvester_profile_"

// Options is the session configuration of the browser-backed source.
type Options struct {
	// BatchSize is how many new identifiers are collected before resting.
	BatchSize int
	// Rest is the pause after each batch.
	Rest time.Duration
	// RetryDelay is the pause after a scroll that produced nothing new.
	RetryDelay time.Duration
	// MaxRetries bounds consecutive fruitless scrolls before giving up on more results.
	MaxRetries int
	// UserDataDir keeps cookies between runs. Empty means a temporary profile.
	UserDataDir string
	Headless    bool
	// CaptchaWait is how long an operator has to solve a challenge in the browser.
	CaptchaWait time.Duration
	// MonitorAddress serves the rod monitor when set, e.g. ":9222".
	MonitorAddress string
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.Rest < 0 {
		o.Rest = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 10
	}
	if o.CaptchaWait <= 0 {
		o.CaptchaWait = 5 * time.Minute
	}
	return o
}
