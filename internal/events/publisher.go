package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
)

const (
	StreamName        = "MEDIA"
	SubjectDownloaded = "media.downloaded"
)

// Downloaded is the payload published for every finished download.
type Downloaded struct {
	RunID      string           `json:"run_id"`
	Label      string           `json:"label"`
	AccountID  string           `json:"account_id"`
	Kind       media.SearchKind `json:"search_kind"`
	Identifier string           `json:"identifier"`
	Filename   string           `json:"filename"`
	Path       string           `json:"path"`
	FinishedAt time.Time        `json:"finished_at"`
}

// jetStream is the part of nats.JetStreamContext the publisher needs.
type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher announces downloaded videos on JetStream.
type Publisher struct {
	nc     *nats.Conn
	js     jetStream
	logger *slog.Logger
}

// Connect dials url and makes sure the MEDIA stream exists.
func Connect(url string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "events")

	nc, err := nats.Connect(url, nats.Name("harvester"))
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectDownloaded},
		Storage:  nats.FileStorage,
	})
	if err != nil {
		logger.Warn("add stream, ok if it already exists", "stream", StreamName, "err", err)
	}

	p := newPublisher(js, logger)
	p.nc = nc
	return p, nil
}

func newPublisher(js jetStream, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{js: js, logger: logger}
}

func (p *Publisher) Name() string { return "nats" }

// Record publishes a Downloaded event for successful items only.
func (p *Publisher) Record(ctx context.Context, rec media.Record) error {
	if rec.Status != media.StatusDone {
		return nil
	}
	data, err := json.Marshal(Downloaded{
		RunID:      rec.RunID,
		Label:      rec.Label,
		AccountID:  rec.AccountID,
		Kind:       rec.Kind,
		Identifier: rec.Identifier,
		Filename:   rec.Filename,
		Path:       rec.Path,
		FinishedAt: rec.FinishedAt,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	ack, err := p.js.Publish(SubjectDownloaded, data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("publish %s: %w", SubjectDownloaded, err)
	}
	p.logger.Debug("event published", "stream", ack.Stream, "seq", ack.Sequence)
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
