package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
)

// ErrorLog is the per-run, append-only record of failed manifest rows.
// Acquire truncates it; each Append writes one line immediately.
type ErrorLog struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// AcquireErrorLog opens path for the lifetime of one run, truncating previous content.
func AcquireErrorLog(path string) (*ErrorLog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create error log dir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open error log %s: %w", path, err)
	}
	return &ErrorLog{path: path, f: f}, nil
}

// Append writes one line. Newlines inside line are flattened so one failure stays one line.
func (l *ErrorLog) Append(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return fmt.Errorf("error log %s already released", l.path)
	}
	flat := strings.Join(strings.Fields(line), " ")
	if _, err := fmt.Fprintln(l.f, flat); err != nil {
		return fmt.Errorf("append error log %s: %w", l.path, err)
	}
	return l.f.Sync()
}

// Release closes the log. It is safe to call more than once.
func (l *ErrorLog) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

func (l *ErrorLog) Path() string { return l.path }

// RowFailure is an AccountProcessingError for one manifest row.
type RowFailure struct {
	Manifest  string `json:"manifest"`
	Line      int    `json:"line,omitempty"`
	Label     string `json:"label"`
	AccountID string `json:"account_id"`
	Error     string `json:"error"`
}

// LogLine renders the failure as it appears in the error log.
func (f RowFailure) LogLine() string {
	return fmt.Sprintf("Error processing %s (%s) from %s: %s", f.AccountID, f.Label, f.Manifest, f.Error)
}

// RunReport accumulates the outcome of one batch run in memory.
type RunReport struct {
	RunID        string         `json:"run_id"`
	Manifest     string         `json:"manifest,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	Rows         int            `json:"rows"`
	SkippedRows  int            `json:"skipped_rows"`
	Downloaded   int            `json:"downloaded"`
	Skipped      int            `json:"skipped_items"`
	RowFailures  []RowFailure   `json:"row_failures"`
	ItemFailures []media.Record `json:"item_failures"`
}

func New(manifest string) *RunReport {
	return &RunReport{
		RunID:        uuid.NewString(),
		Manifest:     manifest,
		StartedAt:    time.Now().UTC(),
		RowFailures:  []RowFailure{},
		ItemFailures: []media.Record{},
	}
}

// AddItem counts one pipeline result, keeping failed ones.
func (r *RunReport) AddItem(rec media.Record) {
	switch {
	case rec.Status == media.StatusDone:
		r.Downloaded++
	case rec.Status == media.StatusSkipped:
		r.Skipped++
	case rec.Status.Failed():
		r.ItemFailures = append(r.ItemFailures, rec)
	}
}

func (r *RunReport) AddRowFailure(f RowFailure) {
	r.RowFailures = append(r.RowFailures, f)
}

// Err joins every row failure, or returns nil when all rows completed.
func (r *RunReport) Err() error {
	errs := make([]error, 0, len(r.RowFailures))
	for _, f := range r.RowFailures {
		errs = append(errs, errors.New(f.LogLine()))
	}
	return errors.Join(errs...)
}

func (r *RunReport) Finish() {
	r.FinishedAt = time.Now().UTC()
}

// WriteJSON stores the report at path.
func (r *RunReport) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write run report %s: %w", path, err)
	}
	return nil
}
