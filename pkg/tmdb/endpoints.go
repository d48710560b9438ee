package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	errs "cinepipe/pkg/errors"
	"cinepipe/pkg/models"
)

// FetchCollection returns the full replacement row list for one collection.
// knownIDs holds catalog keys already present in the row store; in
// incremental mode, paging stops as soon as a page contains only known IDs
// (listings are popularity-ordered, so new items surface early).
func (c *Client) FetchCollection(ctx context.Context, name string, knownIDs map[string]struct{}) ([]models.ItemRow, error) {
	switch name {
	case models.CollectionMovies:
		return c.fetchPaged(ctx, "/discover/movie", url.Values{
			"sort_by": {"popularity.desc"},
		}, c.cfg.MaxPagesMovies, false, knownIDs)
	case models.CollectionTVShows:
		return c.fetchPaged(ctx, "/discover/tv", url.Values{
			"sort_by": {"popularity.desc"},
		}, c.cfg.MaxPagesTV, true, knownIDs)
	case models.CollectionAnimeSeries:
		return c.fetchPaged(ctx, "/discover/tv", url.Values{
			"sort_by":             {"popularity.desc"},
			"with_genres":         {"16"},
			"with_origin_country": {"JP"},
		}, c.cfg.MaxPagesAnime, true, knownIDs)
	case models.CollectionAnimeMovies:
		return c.fetchPaged(ctx, "/discover/movie", url.Values{
			"sort_by":             {"popularity.desc"},
			"with_genres":         {"16"},
			"with_origin_country": {"JP"},
		}, c.cfg.MaxPagesAnime, false, knownIDs)
	case models.CollectionChannels:
		return c.fetchProviders(ctx)
	default:
		return nil, errs.New(errs.ErrorTypeNotFound, fmt.Sprintf("unknown collection: %s", name), 0)
	}
}

// fetchPaged walks a paged listing endpoint, normalizing every item
func (c *Client) fetchPaged(ctx context.Context, endpoint string, params url.Values, maxPages int, isTV bool, knownIDs map[string]struct{}) ([]models.ItemRow, error) {
	if maxPages <= 0 || maxPages > maxPageCap {
		maxPages = maxPageCap
	}

	var rows []models.ItemRow
	seen := make(map[string]struct{})

	for page := 1; page <= maxPages; page++ {
		pageParams := url.Values{}
		for key, values := range params {
			pageParams[key] = values
		}
		pageParams.Set("page", strconv.Itoa(page))

		var resp pagedResponse
		if err := c.get(ctx, endpoint, pageParams, &resp); err != nil {
			return nil, err
		}

		newOnPage := 0
		for _, item := range resp.Results {
			row := normalizeMedia(item, isTV)
			if _, dup := seen[row.ID]; dup {
				continue
			}
			seen[row.ID] = struct{}{}
			if _, known := knownIDs[row.ID]; !known {
				newOnPage++
			}
			rows = append(rows, row)
		}

		// Incremental mode: a page of already-known items means everything
		// deeper is known too
		if c.cfg.Incremental && len(knownIDs) > 0 && newOnPage == 0 && len(resp.Results) > 0 {
			c.logger.DebugWithFields("incremental fetch stop", map[string]interface{}{
				"endpoint": endpoint,
				"page":     page,
			})
			break
		}

		if resp.TotalPages > 0 && page >= resp.TotalPages {
			break
		}
	}

	return rows, nil
}

// fetchProviders returns broadcast/streaming channels from the TV watch
// providers listing. Single call; the provider list is small.
func (c *Client) fetchProviders(ctx context.Context) ([]models.ItemRow, error) {
	var resp providerResponse
	if err := c.get(ctx, "/watch/providers/tv", nil, &resp); err != nil {
		return nil, err
	}

	limit := c.cfg.MaxPagesChannels * 20 // page cap expressed in items
	rows := make([]models.ItemRow, 0, len(resp.Results))
	for _, provider := range resp.Results {
		if limit > 0 && len(rows) >= limit {
			break
		}
		rows = append(rows, models.ItemRow{
			ID:        fmt.Sprintf("channel-%d", provider.ProviderID),
			Title:     provider.ProviderName,
			Poster:    posterURL(provider.LogoPath),
			SourceURL: fmt.Sprintf("https://www.themoviedb.org/watch/provider/%d", provider.ProviderID),
		})
	}

	return rows, nil
}

// normalizeMedia converts a TMDB listing item into a catalog row. The source
// URL is the player embed the wrapped link will front.
func normalizeMedia(item mediaItem, isTV bool) models.ItemRow {
	title := item.Title
	releaseDate := item.ReleaseDate
	embedKind := "movie"
	if isTV {
		title = item.Name
		releaseDate = item.FirstAirDate
		embedKind = "tv"
	}

	return models.ItemRow{
		ID:          strconv.Itoa(item.ID),
		Title:       title,
		ReleaseDate: releaseDate,
		Rating:      item.VoteAverage,
		Popularity:  item.Popularity,
		Genres:      GenreNames(item.GenreIDs),
		Overview:    item.Overview,
		Poster:      posterURL(item.PosterPath),
		SourceURL:   fmt.Sprintf("%s/embed/%s/%d", EmbedBaseURL, embedKind, item.ID),
	}
}

func posterURL(path string) string {
	if path == "" {
		return ""
	}
	return ImageBaseURL + path
}
