package yelp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"yelp-scraper/config"
	"yelp-scraper/models"
	"yelp-scraper/scraper/fetch"
	"yelp-scraper/scraper/hydration"
	"yelp-scraper/utils"
)

// Harvester walks the paginated search endpoint and builds listing summaries.
type Harvester struct {
	fetcher   Fetcher
	searchURL string
	params    []config.Param
	maxPages  int
	logger    *utils.Logger
}

func NewHarvester(fetcher Fetcher, cfg *config.Config, logger *utils.Logger) *Harvester {
	return &Harvester{
		fetcher:   fetcher,
		searchURL: cfg.SearchURL(),
		params:    cfg.SearchParams,
		maxPages:  cfg.MaxSearchPages,
		logger:    logger,
	}
}

// Harvest follows the site's own "Next Page" control until it is disabled or
// missing. A fetch failure ends the walk early with what was collected so far.
// If a page ceiling is configured and reached, the partial result is returned
// together with ErrPaginationExhausted.
func (h *Harvester) Harvest(ctx context.Context) ([]models.ListingSummary, error) {
	var out []models.ListingSummary
	seen := make(map[string]struct{})

	for page := 0; ; page++ {
		if h.maxPages > 0 && page >= h.maxPages {
			h.logger.Warn("[harvester] Stopping after %d pages without a last-page signal", page)
			return out, fmt.Errorf("%w: %d search pages", ErrPaginationExhausted, page)
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		url := SearchPageURL(h.searchURL, h.params, page*searchPageSize)
		h.logger.Info("[harvester] Retrieving links from %s, page %d", url, page+1)

		p, err := h.fetcher.Fetch(ctx, url)
		if err != nil {
			h.logger.Error("[harvester] Search page %d failed, ending harvest: %v", page+1, err)
			return out, nil
		}

		summaries, err := parseSearchPage(p)
		if err != nil {
			h.logger.Warn("[harvester] Could not decode search page %d: %v", page+1, err)
		}
		added := 0
		for _, s := range summaries {
			if _, dup := seen[s.BusinessID]; dup {
				h.logger.Debug("[harvester] Duplicate business skipped: %s", s.BusinessID)
				continue
			}
			seen[s.BusinessID] = struct{}{}
			out = append(out, s)
			added++
		}
		h.logger.Info("[harvester] Page %d: %d new listings (%d total)", page+1, added, len(out))

		if isLastSearchPage(p) {
			break
		}
	}

	return out, nil
}

// isLastSearchPage reports whether the "Next Page" control is disabled or absent.
func isLastSearchPage(p *fetch.Page) bool {
	next := p.FindByText(nextSearchPageText)
	if next.Length() == 0 {
		return true
	}
	return strings.Contains(fetch.ParentHTML(next), "disabled")
}

type searchPageProps struct {
	MainContent    []json.RawMessage `json:"mainContentComponentsListProps"`
	RightRailProps struct {
		SearchMapProps struct {
			MapState struct {
				Markers []json.RawMessage `json:"markers"`
			} `json:"mapState"`
		} `json:"searchMapProps"`
	} `json:"rightRailProps"`
}

type legacyProps struct {
	SearchAppProps struct {
		SearchPageProps *searchPageProps `json:"searchPageProps"`
	} `json:"searchAppProps"`
}

type searchResult struct {
	BizID    string `json:"bizId"`
	Business *struct {
		BusinessURL string            `json:"businessUrl"`
		Name        string            `json:"name"`
		Rating      float64           `json:"rating"`
		ReviewCount int               `json:"reviewCount"`
		PriceRange  string            `json:"priceRange"`
		Categories  []json.RawMessage `json:"categories"`
		Website     json.RawMessage   `json:"website"`
	} `json:"searchResultBusiness"`
}

type mapMarker struct {
	ResourceID string `json:"resourceId"`
	Location   struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
}

type coords struct{ lat, lng float64 }

// parseSearchPage inner-joins the result list with the map pins by business id.
// A page without a hydration block yields no summaries and no error.
func parseSearchPage(p *fetch.Page) ([]models.ListingSummary, error) {
	state, err := hydration.Extract(p, searchStateMarker)
	if err != nil {
		return nil, err
	}
	if state.Empty() {
		return nil, nil
	}

	var legacy legacyProps
	if err := state.Decode("legacyProps", &legacy); err != nil {
		return nil, err
	}
	props := legacy.SearchAppProps.SearchPageProps
	if props == nil {
		return nil, fmt.Errorf("yelp: searchPageProps missing")
	}

	pins := make(map[string]coords)
	for _, raw := range props.RightRailProps.SearchMapProps.MapState.Markers {
		var m mapMarker
		if err := json.Unmarshal(raw, &m); err != nil || m.ResourceID == "" {
			continue
		}
		pins[m.ResourceID] = coords{m.Location.Latitude, m.Location.Longitude}
	}

	var out []models.ListingSummary
	for _, raw := range props.MainContent {
		var r searchResult
		if err := json.Unmarshal(raw, &r); err != nil || r.BizID == "" {
			continue
		}
		pin, ok := pins[r.BizID]
		if !ok {
			continue
		}
		s := models.ListingSummary{
			BusinessID: r.BizID,
			Categories: []string{},
			Latitude:   pin.lat,
			Longitude:  pin.lng,
		}
		if b := r.Business; b != nil {
			s.URL = b.BusinessURL
			s.Name = b.Name
			s.Rating = b.Rating
			s.ReviewCount = b.ReviewCount
			s.PriceRange = b.PriceRange
			s.Categories = categoryTitles(b.Categories)
			s.Website = websiteOf(b.Website)
		}
		out = append(out, s)
	}
	return out, nil
}

func categoryTitles(raw []json.RawMessage) []string {
	titles := make([]string, 0, len(raw))
	for _, r := range raw {
		var c struct {
			Title string `json:"title"`
		}
		if err := json.Unmarshal(r, &c); err != nil || c.Title == "" {
			continue
		}
		titles = append(titles, c.Title)
	}
	return titles
}

// websiteOf accepts either a bare string or an object with an href.
func websiteOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Href string `json:"href"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Href
	}
	return ""
}
