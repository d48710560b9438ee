package pipeline

import (
	"context"

	"cinepipe/pkg/models"
)

// FetchSource supplies, per collection, a full replacement list of item
// rows. knownIDs lets incremental sources stop paging early. Implemented by
// tmdb.Client; tests substitute deterministic fakes.
type FetchSource interface {
	FetchCollection(ctx context.Context, name string, knownIDs map[string]struct{}) ([]models.ItemRow, error)
}

// LinkWrapper turns a source URL into a monetized redirect. Treated as an
// opaque, possibly-failing remote call. Implemented by wrap.Client.
type LinkWrapper interface {
	Wrap(ctx context.Context, sourceURL, itemID string) (string, error)
}

// RowStore is the persistence surface the pipeline needs from the workbook
// store. Implemented by store.Store.
type RowStore interface {
	Exists() bool
	RowCounts() (map[string]int, error)
	LoadCollection(name string) (*models.Collection, error)
	ReplaceCollection(collection *models.Collection) error
	UpdateWrappedLinks(collection string, links map[int]string) error
}
