package models

import "strings"

// Collection names. Each collection is one sheet in the catalog workbook.
const (
	CollectionMovies      = "Movies"
	CollectionTVShows     = "TV Shows"
	CollectionAnimeSeries = "Anime Series"
	CollectionAnimeMovies = "Anime Movies"
	CollectionChannels    = "Channels"
)

// DefaultCollections lists every collection the pipeline maintains, in the
// order sheets appear in the workbook.
func DefaultCollections() []string {
	return []string{
		CollectionMovies,
		CollectionTVShows,
		CollectionAnimeSeries,
		CollectionAnimeMovies,
		CollectionChannels,
	}
}

// ItemRow is one catalog item. ID is the immutable source-assigned key.
// WrappedLink starts empty and is filled exactly once by the link processor;
// a row with a non-empty WrappedLink is never re-processed.
type ItemRow struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	ReleaseDate string   `json:"release_date,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	Popularity  float64  `json:"popularity,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Overview    string   `json:"overview,omitempty"`
	Poster      string   `json:"poster,omitempty"`
	SourceURL   string   `json:"source_url"`
	WrappedLink string   `json:"wrapped_link,omitempty"`
}

// IsWrapped reports whether the row already carries a wrapped link.
func (r *ItemRow) IsWrapped() bool {
	return r.WrappedLink != ""
}

// Wrappable reports whether the row is a candidate for link wrapping: it has
// no wrapped link yet and its source URL looks like a real URL. Rows with
// junk source URLs are skipped the same way already-wrapped rows are.
func (r *ItemRow) Wrappable() bool {
	return !r.IsWrapped() && strings.HasPrefix(r.SourceURL, "http")
}

// Collection is a named, ordered sequence of item rows. Ordering is the
// upstream fetch's insertion order; new items append at the end.
type Collection struct {
	Name string
	Rows []ItemRow
}

// Len returns the number of rows.
func (c *Collection) Len() int {
	return len(c.Rows)
}

// WrappedCount returns the number of rows carrying a wrapped link.
func (c *Collection) WrappedCount() int {
	n := 0
	for i := range c.Rows {
		if c.Rows[i].IsWrapped() {
			n++
		}
	}
	return n
}

// Columns is the fixed, named-column schema every collection sheet uses,
// in order.
var Columns = []string{
	"ID",
	"Title",
	"Release Date",
	"Rating",
	"Popularity",
	"Genres",
	"Overview",
	"Poster",
	"Source URL",
	"Wrapped Link",
}

// WrappedLinkColumn is the workbook column holding the wrapped link.
const WrappedLinkColumn = "Wrapped Link"
