package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// SearchKind selects how an account id is expanded into identifiers.
type SearchKind string

const (
	KindHashtag SearchKind = "hashtag"
	KindUserID  SearchKind = "userid"
)

// ErrUnknownKind is returned when a search kind is neither hashtag nor userid.
var ErrUnknownKind = errors.New("unknown search kind")

// ErrUnsafeName is returned for labels and account ids that cannot be used as a file name.
var ErrUnsafeName = errors.New("unsafe path component")

// ParseKind normalizes a configured search kind.
func ParseKind(s string) (SearchKind, error) {
	switch SearchKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindHashtag:
		return KindHashtag, nil
	case KindUserID:
		return KindUserID, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

func (k SearchKind) String() string { return string(k) }

// ManifestRow is one (label, account) pair of a batch manifest.
type ManifestRow struct {
	Line      int
	Label     string
	AccountID string
}

// ItemStatus is the terminal state of one identifier in the pipeline.
type ItemStatus string

const (
	StatusDone                ItemStatus = "done"
	StatusResolutionFailed    ItemStatus = "resolution_failed"
	StatusDownloadFailed      ItemStatus = "download_failed"
	StatusRetryBudgetExceeded ItemStatus = "retry_budget_exceeded"
	StatusSkipped             ItemStatus = "skipped"
)

// Failed reports whether the status should be surfaced in a run report.
func (s ItemStatus) Failed() bool {
	switch s {
	case StatusResolutionFailed, StatusDownloadFailed, StatusRetryBudgetExceeded:
		return true
	}
	return false
}

// ItemResult is what the pipeline reports for a single identifier.
type ItemResult struct {
	Identifier    string     `json:"identifier"`
	Status        ItemStatus `json:"status"`
	Filename      string     `json:"filename,omitempty"`
	Path          string     `json:"path,omitempty"`
	Attempts      int        `json:"attempts"`
	RateLimitHits int        `json:"rate_limit_hits"`
	Diagnostic    string     `json:"diagnostic,omitempty"`
	FinishedAt    time.Time  `json:"finished_at"`
}

// Record ties an item result to the account it was produced for. Sinks consume it.
type Record struct {
	RunID     string     `json:"run_id"`
	Label     string     `json:"label"`
	AccountID string     `json:"account_id"`
	Kind      SearchKind `json:"search_kind"`
	ItemResult
}

// DestinationDir returns <root>/videos/<label>_<kind>_videos.
func DestinationDir(root, label string, kind SearchKind) string {
	return filepath.Join(root, "videos", fmt.Sprintf("%s_%s_videos", label, kind))
}

// CheckPathComponent rejects names that would resolve outside the directory they are joined under.
func CheckPathComponent(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return nil
}
