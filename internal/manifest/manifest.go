package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
)

// Result holds the valid rows of a manifest and how many rows were skipped.
type Result struct {
	Rows    []media.ManifestRow
	Skipped int
}

// Load reads the manifest at path. Failing to open the file is the only fatal error.
func Load(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open manifest %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses comma-delimited (label, accountId) rows with no header.
// Rows without exactly two non-empty fields are skipped.
func Read(r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var res Result
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("read manifest: %w", err)
		}

		line, _ := cr.FieldPos(0)
		row, ok := parseRow(record, line)
		if !ok {
			res.Skipped++
			continue
		}
		res.Rows = append(res.Rows, row)
	}
}

func parseRow(record []string, line int) (media.ManifestRow, bool) {
	if len(record) != 2 {
		return media.ManifestRow{}, false
	}
	label := strings.TrimSpace(record[0])
	account := strings.TrimSpace(record[1])
	if label == "" || account == "" {
		return media.ManifestRow{}, false
	}
	return media.ManifestRow{Line: line, Label: label, AccountID: account}, true
}
