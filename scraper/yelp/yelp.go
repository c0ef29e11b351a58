// Package yelp harvests business listings from Yelp search results and
// extracts per-listing details from the hydration state each page embeds.
package yelp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"yelp-scraper/config"
	"yelp-scraper/scraper/fetch"
)

const (
	searchPageSize = 10
	photoPageSize  = 30

	searchStateMarker = "data-hypernova-key"
	apolloStateMarker = "data-apollo-state"

	nextSearchPageText = "Next Page"
	nextPhotoPageText  = "Suivant"
)

// ErrPaginationExhausted means a paginator hit its page ceiling before the
// site reported a last page.
var ErrPaginationExhausted = errors.New("yelp: pagination ceiling reached")

// Fetcher returns a rendered page or a terminal error. *fetch.Cascade
// satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

// SearchPageURL assembles "<searchURL>?k=v&k=v&start=N". Parameter values are
// used verbatim apart from spaces, which are percent-encoded.
func SearchPageURL(searchURL string, params []config.Param, start int) string {
	pairs := make([]string, 0, len(params)+1)
	for _, p := range params {
		pairs = append(pairs, p.Key+"="+p.Value)
	}
	pairs = append(pairs, fmt.Sprintf("start=%d", start))
	return searchURL + "?" + strings.ReplaceAll(strings.Join(pairs, "&"), " ", "%20")
}

// Absolute resolves a site-relative path against base.
func Absolute(base, u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return strings.TrimRight(base, "/") + u
}
