package yelp

import (
	"context"
	"errors"
	"fmt"

	"yelp-scraper/config"
	"yelp-scraper/models"
	"yelp-scraper/utils"
)

// Store is the persistence collaborator. It is optional: a nil Store disables
// known-listing filtering and per-record inserts.
type Store interface {
	Insert(ctx context.Context, records []models.NormalizedRecord) error
	KnownIdentifiers(ctx context.Context) ([]string, error)
	KnownURLs(ctx context.Context) ([]string, error)
}

// Normalizer joins one summary with its detail into a storable record.
type Normalizer interface {
	Normalize(s models.ListingSummary, d models.ListingDetail) models.NormalizedRecord
}

// Result is one run's output. FailedURLs lists detail pages that could not be
// fetched or joined.
type Result struct {
	Records    []models.NormalizedRecord
	FailedURLs []string
}

// Scraper orchestrates the Yelp scraping process: search harvest, then one
// detail page at a time.
type Scraper struct {
	baseURL    string
	fetcher    Fetcher
	harvester  *Harvester
	extractor  *Extractor
	normalizer Normalizer
	store      Store
	logger     *utils.Logger
}

// New creates a ready-to-use Yelp Scraper. store may be nil.
func New(cfg *config.Config, fetcher Fetcher, normalizer Normalizer, store Store, logger *utils.Logger) *Scraper {
	return &Scraper{
		baseURL:    cfg.BaseURL,
		fetcher:    fetcher,
		harvester:  NewHarvester(fetcher, cfg, logger),
		extractor:  NewExtractor(fetcher, cfg, logger),
		normalizer: normalizer,
		store:      store,
		logger:     logger,
	}
}

// Scrape is the entry point. Listings are processed sequentially; a failing
// listing is recorded in FailedURLs and the run moves on.
func (s *Scraper) Scrape(ctx context.Context) (*Result, error) {
	summaries, err := s.harvester.Harvest(ctx)
	switch {
	case errors.Is(err, ErrPaginationExhausted):
		s.logger.Warn("[yelp] %v, continuing with %d listings", err, len(summaries))
	case err != nil:
		return nil, fmt.Errorf("yelp: harvest: %w", err)
	}
	s.logger.Info("[yelp] Harvested %d listings", len(summaries))

	byID := make(map[string]models.ListingSummary, len(summaries))
	for i := range summaries {
		if summaries[i].URL != "" {
			summaries[i].URL = Absolute(s.baseURL, summaries[i].URL)
		}
		byID[summaries[i].BusinessID] = summaries[i]
	}

	links := s.filterKnown(ctx, summaries)
	s.logger.Info("[yelp] %d listings left after removing known ones", len(links))

	res := &Result{Records: []models.NormalizedRecord{}, FailedURLs: []string{}}
	for i, link := range links {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		s.logger.Info("[yelp] Link %d/%d: %s", i+1, len(links), link)

		rec, ok := s.processLink(ctx, link, byID)
		if !ok {
			res.FailedURLs = append(res.FailedURLs, link)
			continue
		}
		res.Records = append(res.Records, rec)
	}

	if len(res.FailedURLs) > 0 {
		s.logger.Warn("[yelp] Links failed to process: %v", res.FailedURLs)
	}
	s.logger.Info("[yelp] Scrape complete: %d records, %d failed", len(res.Records), len(res.FailedURLs))
	return res, nil
}

// filterKnown drops listings without a URL and those whose id or URL the store
// already holds. A store error skips that half of the filter.
func (s *Scraper) filterKnown(ctx context.Context, summaries []models.ListingSummary) []string {
	knownIDs := utils.NewURLSet()
	knownURLs := utils.NewURLSet()
	if s.store != nil {
		if ids, err := s.store.KnownIdentifiers(ctx); err != nil {
			s.logger.Error("[yelp] Could not list known identifiers, not filtering by id: %v", err)
		} else {
			for _, id := range ids {
				knownIDs.Add(id)
			}
		}
		if urls, err := s.store.KnownURLs(ctx); err != nil {
			s.logger.Error("[yelp] Could not list known URLs, not filtering by URL: %v", err)
		} else {
			for _, u := range urls {
				knownURLs.Add(u)
			}
		}
		s.logger.Info("[yelp] Store knows %d ids and %d urls", knownIDs.Size(), knownURLs.Size())
	}

	links := utils.NewURLSet()
	for _, sm := range summaries {
		if sm.URL == "" {
			s.logger.Warn("[yelp] Listing %q has no URL, skipping", sm.BusinessID)
			continue
		}
		if knownIDs.Contains(sm.BusinessID) || knownURLs.Contains(sm.URL) {
			continue
		}
		links.Add(sm.URL)
	}
	return links.Values()
}

// processLink fetches, extracts, joins and normalizes one listing. A panic
// abandons this link only.
func (s *Scraper) processLink(ctx context.Context, link string, byID map[string]models.ListingSummary) (rec models.NormalizedRecord, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("[yelp] Failed to process %s: %v", link, r)
			ok = false
		}
	}()

	page, err := s.fetcher.Fetch(ctx, link)
	if err != nil {
		s.logger.Error("[yelp] Request failed for %s: %v", link, err)
		return rec, false
	}

	detail := s.extractor.Extract(ctx, page)
	summary, found := byID[detail.BusinessID]
	if detail.BusinessID == "" || !found {
		s.logger.Error("[yelp] No search summary matches business %q from %s", detail.BusinessID, link)
		return rec, false
	}

	rec = s.normalizer.Normalize(summary, detail)
	if rec.BusinessID == "" {
		s.logger.Error("[yelp] Normalized record from %s has no identifier", link)
		return rec, false
	}

	if s.store != nil {
		if err := s.store.Insert(ctx, []models.NormalizedRecord{rec}); err != nil {
			s.logger.Error("[yelp] Failed to insert %s: %v", rec.BusinessID, err)
		} else {
			s.logger.Debug("[yelp] Inserted %s", rec.BusinessID)
		}
	}
	return rec, true
}
