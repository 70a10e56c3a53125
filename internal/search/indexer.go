package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
)

const primaryKey = "id"

// Indexer keeps an open Meilisearch connection for downloaded videos.
type Indexer struct {
	client    meilisearch.ServiceManager
	indexName string
	logger    *slog.Logger
}

// NewIndexer connects and makes sure the index and its settings exist.
// Setup failures are logged; the index may already be configured.
func NewIndexer(host, apiKey, indexName string, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "search")
	client := meilisearch.New(host, meilisearch.WithAPIKey(apiKey))

	if _, err := client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        indexName,
		PrimaryKey: primaryKey,
	}); err != nil {
		logger.Warn("create index", "index", indexName, "err", err)
	}

	index := client.Index(indexName)
	if _, err := index.UpdateSearchableAttributes(&[]string{
		"identifier",
		"label",
		"account_id",
		"filename",
	}); err != nil {
		logger.Warn("update searchable attributes", "err", err)
	}
	if _, err := index.UpdateSortableAttributes(&[]string{
		"finished_at",
	}); err != nil {
		logger.Warn("update sortable attributes", "err", err)
	}
	filterable := []interface{}{"label", "account_id", "search_kind"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		logger.Warn("update filterable attributes", "err", err)
	}

	return newIndexer(client, indexName, logger)
}

func newIndexer(client meilisearch.ServiceManager, indexName string, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{client: client, indexName: indexName, logger: logger}
}

func (i *Indexer) Name() string { return "meilisearch" }

// DocumentID is stable per identifier so re-downloads update the same document.
func DocumentID(identifier string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(identifier)).String()
}

// Document is the search representation of a downloaded video.
func Document(rec media.Record) map[string]interface{} {
	return map[string]interface{}{
		primaryKey:    DocumentID(rec.Identifier),
		"identifier":  rec.Identifier,
		"label":       rec.Label,
		"account_id":  rec.AccountID,
		"search_kind": string(rec.Kind),
		"filename":    rec.Filename,
		"path":        rec.Path,
		"run_id":      rec.RunID,
		"finished_at": rec.FinishedAt.Unix(),
	}
}

// Record indexes successful downloads. Other outcomes are ignored.
func (i *Indexer) Record(_ context.Context, rec media.Record) error {
	if rec.Status != media.StatusDone {
		return nil
	}
	pk := primaryKey
	doc := Document(rec)
	task, err := i.client.Index(i.indexName).UpdateDocuments([]map[string]interface{}{doc}, &meilisearch.DocumentOptions{PrimaryKey: &pk})
	if err != nil {
		return fmt.Errorf("index document %s: %w", rec.Identifier, err)
	}
	i.logger.Debug("document enqueued", "task", task.TaskUID, "id", doc[primaryKey])
	return nil
}
