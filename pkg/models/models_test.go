package models

import "testing"

func TestWrappable(t *testing.T) {
	tests := []struct {
		name string
		row  ItemRow
		want bool
	}{
		{"unwrapped with url", ItemRow{SourceURL: "https://example.com/watch/1"}, true},
		{"already wrapped", ItemRow{SourceURL: "https://example.com/watch/1", WrappedLink: "https://link-to.net/x"}, false},
		{"no source url", ItemRow{}, false},
		{"junk source url", ItemRow{SourceURL: "n/a"}, false},
		{"http also accepted", ItemRow{SourceURL: "http://example.com"}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.row.Wrappable(); got != test.want {
				t.Errorf("Wrappable() = %v, want %v", got, test.want)
			}
		})
	}
}

func TestWrappedCount(t *testing.T) {
	c := &Collection{Name: "Movies", Rows: []ItemRow{
		{ID: "1", WrappedLink: "https://link-to.net/a"},
		{ID: "2"},
		{ID: "3", WrappedLink: "https://link-to.net/b"},
	}}

	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
	if c.WrappedCount() != 2 {
		t.Errorf("WrappedCount() = %d, want 2", c.WrappedCount())
	}
}

func TestDefaultCollections(t *testing.T) {
	collections := DefaultCollections()
	if len(collections) != 5 {
		t.Fatalf("Expected 5 collections, got %d", len(collections))
	}
	if collections[0] != CollectionMovies {
		t.Errorf("Expected Movies first, got %s", collections[0])
	}
}

func TestColumnsIncludeWrappedLink(t *testing.T) {
	found := false
	for _, col := range Columns {
		if col == WrappedLinkColumn {
			found = true
		}
	}
	if !found {
		t.Errorf("Columns missing %q", WrappedLinkColumn)
	}
}
