package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
)

func TestAcquireTruncatesPreviousRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "error_log.txt")
	require.NoError(t, os.WriteFile(path, []byte("stale line\n"), 0o644))

	log, err := AcquireErrorLog(path)
	require.NoError(t, err)
	require.NoError(t, log.Release())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestAppendOneLinePerFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "error_log.txt")
	log, err := AcquireErrorLog(path)
	require.NoError(t, err)

	first := RowFailure{Manifest: "accounts.csv", Label: "shoes", AccountID: "acct1", Error: "browser crashed\nstack"}
	require.NoError(t, log.Append(first.LogLine()))
	require.NoError(t, log.Append(RowFailure{Manifest: "accounts.csv", Label: "bags", AccountID: "acct2", Error: "x"}.LogLine()))
	require.NoError(t, log.Release())
	require.NoError(t, log.Release())
	require.Error(t, log.Append("late"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "acct1")
	require.Contains(t, lines[0], "accounts.csv")
	require.Contains(t, lines[1], "acct2")
}

func TestRunReportCounts(t *testing.T) {
	r := New("accounts.csv")
	require.NotEmpty(t, r.RunID)

	r.AddItem(media.Record{ItemResult: media.ItemResult{Identifier: "a", Status: media.StatusDone}})
	r.AddItem(media.Record{ItemResult: media.ItemResult{Identifier: "b", Status: media.StatusResolutionFailed}})
	r.AddItem(media.Record{ItemResult: media.ItemResult{Identifier: "c", Status: media.StatusSkipped}})
	require.Equal(t, 1, r.Downloaded)
	require.Equal(t, 1, r.Skipped)
	require.Len(t, r.ItemFailures, 1)
	require.NoError(t, r.Err())

	r.AddRowFailure(RowFailure{Manifest: "accounts.csv", AccountID: "acct1", Error: "boom"})
	require.ErrorContains(t, r.Err(), "acct1")

	r.Finish()
	out := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, r.WriteJSON(out))

	var decoded RunReport
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, r.RunID, decoded.RunID)
	require.Len(t, decoded.RowFailures, 1)
}
