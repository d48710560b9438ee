// Package tmdb implements the catalog fetch source against The Movie
// Database API.
//
// The client supplies, per collection, a full replacement list of item rows:
// popularity-ordered movie and TV discovery for the media collections,
// Japanese-animation discovery filters for the anime collections, and the TV
// watch-provider listing for channels. In incremental mode, paging a listing
// stops once a page contains only IDs the row store already knows, which
// keeps steady-state cycles cheap.
//
// Requests are paced by a fixed inter-request delay and retried a bounded
// number of times on transient failures. Authentication prefers the v4 read
// token (bearer) over the v3 api_key query parameter.
package tmdb
