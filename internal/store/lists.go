package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
)

// ListStore persists IdentifierLists as JSON arrays under one directory.
// Files only ever grow: Append merges new identifiers into what is already there.
type ListStore struct {
	dir string
}

func NewListStore(dir string) *ListStore {
	return &ListStore{dir: dir}
}

// Path returns the list file for (accountID, kind).
func (s *ListStore) Path(accountID string, kind media.SearchKind) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s_video_urls.json", accountID, kind))
}

// Load returns the persisted identifiers, or an empty list when none exist yet.
func (s *ListStore) Load(accountID string, kind media.SearchKind) ([]string, error) {
	if err := media.CheckPathComponent(accountID); err != nil {
		return nil, fmt.Errorf("list for account: %w", err)
	}
	path := s.Path(accountID, kind)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read list %s: %w", path, err)
	}
	if len(data) == 0 {
		return []string{}, nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parse list %s: %w", path, err)
	}
	return ids, nil
}

// Append adds identifiers not yet in the list, keeping first-seen order,
// writes the list back and returns the full merged list.
func (s *ListStore) Append(accountID string, kind media.SearchKind, identifiers []string) ([]string, error) {
	existing, err := s.Load(accountID, kind)
	if err != nil {
		return nil, err
	}

	merged := Union(existing, identifiers)
	if err := writeJSON(s.Path(accountID, kind), merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Union returns base followed by every element of extra not already present.
func Union(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, id := range list {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON for %s: %w", path, err)
	}
	data = append(data, '\n')
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data through a temp file and rename so readers never see a torn file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".harvester-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
