package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
)

func TestListStoreAppendNeverShrinks(t *testing.T) {
	s := NewListStore(filepath.Join(t.TempDir(), "scraped_lists"))

	first, err := s.Append("acct1", media.KindHashtag, []string{"vid1", "vid2"})
	require.NoError(t, err)
	require.Equal(t, []string{"vid1", "vid2"}, first)

	second, err := s.Append("acct1", media.KindHashtag, []string{"vid3"})
	require.NoError(t, err)
	require.Equal(t, []string{"vid1", "vid2", "vid3"}, second)
	require.GreaterOrEqual(t, len(second), len(first))

	// Re-discovering the same identifiers keeps the list intact.
	third, err := s.Append("acct1", media.KindHashtag, []string{"vid2", "vid1"})
	require.NoError(t, err)
	require.Equal(t, second, third)

	// Nothing discovered still leaves the list readable and unchanged.
	fourth, err := s.Append("acct1", media.KindHashtag, nil)
	require.NoError(t, err)
	require.Equal(t, second, fourth)
}

func TestListStoreKeysAreIndependent(t *testing.T) {
	s := NewListStore(t.TempDir())

	_, err := s.Append("acct1", media.KindHashtag, []string{"a"})
	require.NoError(t, err)
	_, err = s.Append("acct1", media.KindUserID, []string{"b"})
	require.NoError(t, err)

	ids, err := s.Load("acct1", media.KindHashtag)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, ids)

	ids, err = s.Load("acct1", media.KindUserID)
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, ids)

	require.Equal(t, "acct1_userid_video_urls.json", filepath.Base(s.Path("acct1", media.KindUserID)))
}

func TestListStoreLoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	s := NewListStore(dir)

	ids, err := s.Load("nobody", media.KindHashtag)
	require.NoError(t, err)
	require.Empty(t, ids)

	require.NoError(t, os.WriteFile(s.Path("broken", media.KindHashtag), []byte("{not json"), 0o644))
	_, err = s.Load("broken", media.KindHashtag)
	require.Error(t, err)

	_, err = s.Append("broken", media.KindHashtag, []string{"x"})
	require.Error(t, err)
	data, readErr := os.ReadFile(s.Path("broken", media.KindHashtag))
	require.NoError(t, readErr)
	require.Equal(t, "{not json", string(data))
}

func TestListStoreRejectsUnsafeAccountIDs(t *testing.T) {
	root := t.TempDir()
	s := NewListStore(filepath.Join(root, "scraped_lists"))

	for _, acct := range []string{"../../outside", "a/b", ".."} {
		_, err := s.Append(acct, media.KindHashtag, []string{"vid1"})
		require.ErrorIs(t, err, media.ErrUnsafeName, acct)

		_, err = s.Load(acct, media.KindHashtag)
		require.ErrorIs(t, err, media.ErrUnsafeName, acct)
	}

	_, err := os.Stat(filepath.Join(root, "scraped_lists"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "outside_hashtag_video_urls.json"))
	require.True(t, os.IsNotExist(err))
}

func TestUnion(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, Union([]string{"a", "b"}, []string{"b", "", "c", "a"}))
	require.Empty(t, Union(nil, nil))
}
