package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinepipe/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "catalog.xlsx"))
}

func sampleRows() []models.ItemRow {
	return []models.ItemRow{
		{
			ID:          "603",
			Title:       "The Matrix",
			ReleaseDate: "1999-03-30",
			Rating:      8.2,
			Popularity:  88.5,
			Genres:      []string{"Action", "Science Fiction"},
			Overview:    "A computer hacker learns the truth.",
			Poster:      "https://image.tmdb.org/t/p/w185/matrix.jpg",
			SourceURL:   "https://www.vidking.net/embed/movie/603",
		},
		{
			ID:        "604",
			Title:     "The Matrix Reloaded",
			SourceURL: "https://www.vidking.net/embed/movie/604",
		},
		{
			ID:          "605",
			Title:       "The Matrix Revolutions",
			SourceURL:   "https://www.vidking.net/embed/movie/605",
			WrappedLink: "https://link-to.net/12345/678/dynamic?r=abc",
		},
	}
}

func TestMissingWorkbook(t *testing.T) {
	store := newTestStore(t)

	assert.False(t, store.Exists())

	counts, err := store.RowCounts()
	require.NoError(t, err)
	assert.Empty(t, counts)

	collection, err := store.LoadCollection("Movies")
	require.NoError(t, err)
	assert.Equal(t, "Movies", collection.Name)
	assert.Zero(t, collection.Len())
}

func TestReplaceAndLoadRoundtrip(t *testing.T) {
	store := newTestStore(t)

	err := store.ReplaceCollection(&models.Collection{Name: "Movies", Rows: sampleRows()})
	require.NoError(t, err)
	assert.True(t, store.Exists())

	loaded, err := store.LoadCollection("Movies")
	require.NoError(t, err)
	require.Equal(t, 3, loaded.Len())

	first := loaded.Rows[0]
	assert.Equal(t, "603", first.ID)
	assert.Equal(t, "The Matrix", first.Title)
	assert.Equal(t, "1999-03-30", first.ReleaseDate)
	assert.Equal(t, 8.2, first.Rating)
	assert.Equal(t, 88.5, first.Popularity)
	assert.Equal(t, []string{"Action", "Science Fiction"}, first.Genres)
	assert.Equal(t, "https://www.vidking.net/embed/movie/603", first.SourceURL)
	assert.False(t, first.IsWrapped())

	// The pre-wrapped row keeps its link through the roundtrip
	assert.Equal(t, "https://link-to.net/12345/678/dynamic?r=abc", loaded.Rows[2].WrappedLink)
	assert.Equal(t, 1, loaded.WrappedCount())
}

func TestLoadMissingSheet(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.ReplaceCollection(&models.Collection{Name: "Movies", Rows: sampleRows()}))

	collection, err := store.LoadCollection("Channels")
	require.NoError(t, err)
	assert.Zero(t, collection.Len())
}

func TestRowCounts(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.ReplaceCollection(&models.Collection{Name: "Movies", Rows: sampleRows()}))
	require.NoError(t, store.ReplaceCollection(&models.Collection{Name: "TV Shows", Rows: sampleRows()[:1]}))

	counts, err := store.RowCounts()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Movies": 3, "TV Shows": 1}, counts)
}

func TestReplaceDropsStaleRows(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.ReplaceCollection(&models.Collection{Name: "Movies", Rows: sampleRows()}))

	require.NoError(t, store.ReplaceCollection(&models.Collection{Name: "Movies", Rows: sampleRows()[:1]}))

	loaded, err := store.LoadCollection("Movies")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
}

func TestUpdateWrappedLinks(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.ReplaceCollection(&models.Collection{Name: "Movies", Rows: sampleRows()}))

	err := store.UpdateWrappedLinks("Movies", map[int]string{
		0: "https://link-to.net/12345/100/dynamic?r=aaa",
		1: "https://link-to.net/12345/101/dynamic?r=bbb",
	})
	require.NoError(t, err)

	loaded, err := store.LoadCollection("Movies")
	require.NoError(t, err)
	assert.Equal(t, "https://link-to.net/12345/100/dynamic?r=aaa", loaded.Rows[0].WrappedLink)
	assert.Equal(t, "https://link-to.net/12345/101/dynamic?r=bbb", loaded.Rows[1].WrappedLink)

	// Untouched cells survive the partial rewrite
	assert.Equal(t, "The Matrix", loaded.Rows[0].Title)
	assert.Equal(t, 8.2, loaded.Rows[0].Rating)
	assert.Equal(t, "https://link-to.net/12345/678/dynamic?r=abc", loaded.Rows[2].WrappedLink)
}

func TestUpdateWrappedLinksMissingSheet(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.ReplaceCollection(&models.Collection{Name: "Movies", Rows: sampleRows()}))

	err := store.UpdateWrappedLinks("Channels", map[int]string{0: "https://link-to.net/x"})
	assert.Error(t, err)
}

func TestUpdateWrappedLinksEmptyBatch(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.UpdateWrappedLinks("Movies", nil))
}

func TestNoTempFileLeftBehind(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.ReplaceCollection(&models.Collection{Name: "Movies", Rows: sampleRows()}))

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotEqual(t, ".tmp", filepath.Ext(entry.Name()), "temp file left behind: %s", entry.Name())
	}
}

func TestDefaultSheetRemoved(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.ReplaceCollection(&models.Collection{Name: "Movies", Rows: sampleRows()}))

	collection, err := store.LoadCollection("Sheet1")
	require.NoError(t, err)
	assert.Zero(t, collection.Len())

	counts, err := store.RowCounts()
	require.NoError(t, err)
	_, hasDefault := counts["Sheet1"]
	assert.False(t, hasDefault)
}
