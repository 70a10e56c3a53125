package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/require"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
)

func doneRecord() media.Record {
	return media.Record{
		RunID:     "run-1",
		Label:     "shoes",
		AccountID: "shoes",
		Kind:      media.KindHashtag,
		ItemResult: media.ItemResult{
			Identifier: "https://www.tiktok.com/@shop/video/1",
			Status:     media.StatusDone,
			Filename:   "video1.mp4",
			Path:       "videos/shoes_hashtag_videos/video1.mp4",
			FinishedAt: time.Unix(1700000000, 0),
		},
	}
}

func TestDocumentIDIsStable(t *testing.T) {
	a := DocumentID("https://www.tiktok.com/@shop/video/1")
	b := DocumentID("https://www.tiktok.com/@shop/video/1")
	c := DocumentID("https://www.tiktok.com/@shop/video/2")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestDocument(t *testing.T) {
	doc := Document(doneRecord())
	require.Equal(t, DocumentID("https://www.tiktok.com/@shop/video/1"), doc["id"])
	require.Equal(t, "hashtag", doc["search_kind"])
	require.Equal(t, int64(1700000000), doc["finished_at"])
}

func TestRecordIgnoresFailures(t *testing.T) {
	idx := newIndexer(nil, "videos", nil)
	rec := doneRecord()
	rec.Status = media.StatusDownloadFailed
	require.NoError(t, idx.Record(context.Background(), rec))
}

func TestRecordUpsertsDocument(t *testing.T) {
	var method, path string
	var docs []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &docs)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"taskUid":7,"indexUid":"videos","status":"enqueued","type":"documentAdditionOrUpdate","enqueuedAt":"2024-01-01T00:00:00Z"}`)
	}))
	t.Cleanup(srv.Close)

	idx := newIndexer(meilisearch.New(srv.URL), "videos", nil)
	require.NoError(t, idx.Record(context.Background(), doneRecord()))

	require.Equal(t, http.MethodPut, method)
	require.True(t, strings.HasSuffix(path, "/indexes/videos/documents"), path)
	require.Len(t, docs, 1)
	require.Equal(t, "video1.mp4", docs[0]["filename"])
}
