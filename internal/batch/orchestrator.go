package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/manifest"
	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
	"github.com/CarrieW-BorderX/tiktok-scraper/internal/report"
	"github.com/CarrieW-BorderX/tiktok-scraper/internal/sources"
	"github.com/CarrieW-BorderX/tiktok-scraper/internal/store"
)

// Processor runs the resolve/download pipeline for one identifier.
type Processor interface {
	Process(ctx context.Context, identifier, destDir string) (media.ItemResult, error)
}

// Sink receives every item record. Errors are logged and never fail a row.
type Sink interface {
	Name() string
	Record(ctx context.Context, rec media.Record) error
}

// Completion answers whether an identifier was already downloaded.
type Completion interface {
	IsCompleted(ctx context.Context, kind media.SearchKind, identifier string) (bool, error)
}

// Options configure one orchestrator.
type Options struct {
	Kind            media.SearchKind
	MaxIdentifiers  int
	DestinationRoot string
	ErrorLogPath    string
	// ReportPath receives the run report as JSON when set.
	ReportPath string
	// SkipCompleted skips identifiers Completion knows about. Without it every
	// listed identifier is downloaded again on each run.
	SkipCompleted bool
}

// Orchestrator drives manifest rows through discovery, the identifier list and the pipeline.
// Rows and identifiers are processed strictly one at a time.
type Orchestrator struct {
	source    sources.Source
	lists     *store.ListStore
	items     Processor
	sinks     []Sink
	completed Completion
	opts      Options
	logger    *slog.Logger
}

func New(src sources.Source, lists *store.ListStore, items Processor, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "batch")
	opts.DestinationRoot = DestinationRoot(opts.DestinationRoot, logger)
	return &Orchestrator{
		source: src,
		lists:  lists,
		items:  items,
		opts:   opts,
		logger: logger,
	}
}

// WithSinks adds sinks that observe every item record.
func (o *Orchestrator) WithSinks(sinks ...Sink) *Orchestrator {
	o.sinks = append(o.sinks, sinks...)
	return o
}

// WithCompletion sets the completion lookup used when SkipCompleted is on.
func (o *Orchestrator) WithCompletion(c Completion) *Orchestrator {
	o.completed = c
	return o
}

// DestinationRoot returns root when it exists, and the working directory otherwise.
func DestinationRoot(root string, logger *slog.Logger) string {
	if root == "" || root == "." {
		return "."
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		logger.Warn("destination root not available, using working directory", "root", root)
		return "."
	}
	return root
}

// RunManifest processes every valid row of the manifest at path. The error log is
// truncated first and gets one line per failed row. Only an unreadable manifest or
// a cancelled ctx ends the run early; the report is returned in both cases.
func (o *Orchestrator) RunManifest(ctx context.Context, path string) (*report.RunReport, error) {
	rep := report.New(path)

	errLog, err := report.AcquireErrorLog(o.opts.ErrorLogPath)
	if err != nil {
		return rep, err
	}
	defer func() {
		if err := errLog.Release(); err != nil {
			o.logger.Warn("release error log", "path", errLog.Path(), "err", err)
		}
	}()

	parsed, err := manifest.Load(path)
	if err != nil {
		rep.Finish()
		return rep, err
	}
	rep.Rows = len(parsed.Rows)
	rep.SkippedRows = parsed.Skipped
	o.logger.Info("manifest loaded", "path", path, "rows", rep.Rows, "skipped", rep.SkippedRows, "run", rep.RunID)

	var runErr error
	for _, row := range parsed.Rows {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		err := o.processAccount(ctx, rep, row.Label, row.AccountID)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}

		failure := report.RowFailure{
			Manifest:  path,
			Line:      row.Line,
			Label:     row.Label,
			AccountID: row.AccountID,
			Error:     err.Error(),
		}
		rep.AddRowFailure(failure)
		o.logger.Error("row failed", "account", row.AccountID, "label", row.Label, "line", row.Line, "err", err)
		if err := errLog.Append(failure.LogLine()); err != nil {
			o.logger.Error("write error log", "err", err)
		}
	}

	o.finish(rep)
	return rep, runErr
}

// RunAccount performs one discovery/persist/download cycle for an operator-supplied
// query. It touches no error log; the row error is returned instead.
func (o *Orchestrator) RunAccount(ctx context.Context, label, accountID string) (*report.RunReport, error) {
	rep := report.New("")
	rep.Rows = 1
	if label == "" {
		label = accountID
	}

	err := o.processAccount(ctx, rep, label, accountID)
	if err != nil && ctx.Err() == nil {
		rep.AddRowFailure(report.RowFailure{Label: label, AccountID: accountID, Error: err.Error()})
	}
	o.finish(rep)
	return rep, err
}

func (o *Orchestrator) finish(rep *report.RunReport) {
	rep.Finish()
	if o.opts.ReportPath == "" {
		return
	}
	if err := rep.WriteJSON(o.opts.ReportPath); err != nil {
		o.logger.Warn("write run report", "err", err)
	}
}

// processAccount is the failure boundary of one row: every error and panic from
// discovery, persistence, directory creation or the pipeline ends up in the return value.
func (o *Orchestrator) processAccount(ctx context.Context, rep *report.RunReport, label, accountID string) (err error) {
	log := o.logger.With("account", accountID, "label", label)
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing row", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	for _, name := range []string{label, accountID} {
		if err := media.CheckPathComponent(name); err != nil {
			return err
		}
	}

	kind := o.opts.Kind
	discovered, err := o.source.Discover(ctx, accountID, kind, o.opts.MaxIdentifiers)
	if err != nil {
		return fmt.Errorf("discover via %s: %w", o.source.Name(), err)
	}
	log.Info("discovered identifiers", "count", len(discovered))

	list, err := o.lists.Append(accountID, kind, discovered)
	if err != nil {
		return fmt.Errorf("persist identifiers: %w", err)
	}

	dest := media.DestinationDir(o.opts.DestinationRoot, label, kind)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create destination %s: %w", dest, err)
	}

	log.Info("processing identifier list", "count", len(list), "dest", dest)
	for i, id := range list {
		rec := media.Record{RunID: rep.RunID, Label: label, AccountID: accountID, Kind: kind}

		if o.skip(ctx, kind, id) {
			rec.ItemResult = media.ItemResult{Identifier: id, Status: media.StatusSkipped, FinishedAt: time.Now().UTC()}
			o.record(ctx, rep, rec)
			continue
		}

		res, err := o.items.Process(ctx, id, dest)
		rec.ItemResult = res
		if err != nil {
			return fmt.Errorf("identifier %d/%d %s: %w", i+1, len(list), id, err)
		}
		o.record(ctx, rep, rec)
		log.Debug("item finished", "identifier", id, "status", res.Status, "attempts", res.Attempts)
	}
	return nil
}

func (o *Orchestrator) skip(ctx context.Context, kind media.SearchKind, id string) bool {
	if !o.opts.SkipCompleted || o.completed == nil {
		return false
	}
	done, err := o.completed.IsCompleted(ctx, kind, id)
	if err != nil {
		o.logger.Warn("completion lookup failed, downloading anyway", "identifier", id, "err", err)
		return false
	}
	return done
}

func (o *Orchestrator) record(ctx context.Context, rep *report.RunReport, rec media.Record) {
	rep.AddItem(rec)
	for _, s := range o.sinks {
		if err := s.Record(ctx, rec); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Warn("sink failed", "sink", s.Name(), "identifier", rec.Identifier, "err", err)
		}
	}
}
