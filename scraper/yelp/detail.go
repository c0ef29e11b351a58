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

const amenitiesKey = `organizedProperties({"clientPlatform":"WWW"})`

// Field names recorded in ListingDetail.Defaults.
const (
	FieldBusinessID      = "business_id"
	FieldStreetAddress   = "street_address"
	FieldPostalCode      = "postal_code"
	FieldAddressLocality = "address_locality"
	FieldAddressCountry  = "address_country"
	FieldPhone           = "phone"
	FieldDescription     = "description"
	FieldAmenities       = "amenities"
	FieldHours           = "hours"
	FieldImages          = "images"
)

// FieldResult is the outcome of one sub-extraction: a present value, or a default
// with the reason it was used.
type FieldResult[T any] struct {
	Value  T
	Reason string
}

func present[T any](v T) FieldResult[T] { return FieldResult[T]{Value: v} }

func defaulted[T any](v T, format string, args ...any) FieldResult[T] {
	reason := fmt.Sprintf(format, args...)
	if reason == "" {
		reason = "defaulted"
	}
	return FieldResult[T]{Value: v, Reason: reason}
}

// Present reports whether the value came from the page.
func (r FieldResult[T]) Present() bool { return r.Reason == "" }

// Extractor pulls listing fields from a detail page and its hydration state.
// Each field falls back to its own default; one bad field never aborts the rest.
type Extractor struct {
	fetcher       Fetcher
	photosURL     string
	maxImagePages int
	stateRetries  int
	logger        *utils.Logger
}

func NewExtractor(fetcher Fetcher, cfg *config.Config, logger *utils.Logger) *Extractor {
	return &Extractor{
		fetcher:       fetcher,
		photosURL:     cfg.BaseURL + cfg.PhotosPath,
		maxImagePages: cfg.MaxImagePages,
		stateRetries:  cfg.StateRetries,
		logger:        logger,
	}
}

type address struct {
	Street, PostalCode, Locality, Country string
}

// Extract never fails: missing or malformed structures leave defaults, and
// ListingDetail.Defaults records which fields fell back and why.
func (e *Extractor) Extract(ctx context.Context, page *fetch.Page) models.ListingDetail {
	page, state := e.loadState(ctx, page)

	d := models.ListingDetail{
		Amenities: []models.Amenity{},
		Hours:     []models.DayHours{},
		Images:    []string{},
		Defaults:  make(map[string]string),
	}

	id := guard(e, FieldBusinessID, "", func() FieldResult[string] { return extractBusinessID(page) })
	d.BusinessID = record(&d, id, FieldBusinessID)

	addr := guard(e, "address", address{}, func() FieldResult[address] { return extractAddress(state, d.BusinessID) })
	a := record(&d, addr, FieldStreetAddress, FieldPostalCode, FieldAddressLocality, FieldAddressCountry)
	d.StreetAddress, d.PostalCode, d.AddressLocality, d.AddressCountry = a.Street, a.PostalCode, a.Locality, a.Country

	d.Phone = record(&d, guard(e, FieldPhone, "", func() FieldResult[string] {
		return extractPhone(state, d.BusinessID)
	}), FieldPhone)

	d.Description = record(&d, guard(e, FieldDescription, "", func() FieldResult[string] {
		return extractMeta(page, `meta[property="og:description"]`)
	}), FieldDescription)

	d.Amenities = record(&d, guard(e, FieldAmenities, []models.Amenity{}, func() FieldResult[[]models.Amenity] {
		return extractAmenities(state, d.BusinessID)
	}), FieldAmenities)

	d.Hours = record(&d, guard(e, FieldHours, []models.DayHours{}, func() FieldResult[[]models.DayHours] {
		return extractHours(state, d.BusinessID)
	}), FieldHours)

	d.Images = record(&d, guard(e, FieldImages, []string{}, func() FieldResult[[]string] {
		return e.extractImages(ctx, state, d.BusinessID)
	}), FieldImages)

	for field, reason := range d.Defaults {
		e.logger.Debug("[detail] %s: %s defaulted (%s)", page.URL, field, reason)
	}
	return d
}

// loadState reads the page's hydration state. When no Business entity is
// present it re-fetches the page a few times, then tries the Apollo block.
func (e *Extractor) loadState(ctx context.Context, page *fetch.Page) (*fetch.Page, hydration.State) {
	state, err := hydration.Extract(page, "")
	if err != nil {
		e.logger.Warn("[detail] %s: %v", page.URL, err)
	}

	for i := 0; i < e.stateRetries && !state.HasKind(hydration.KindBusiness); i++ {
		e.logger.Warn("[detail] No business data on %s, retrying (%d/%d)", page.URL, i+1, e.stateRetries)
		again, err := e.fetcher.Fetch(ctx, page.URL)
		if err != nil {
			e.logger.Warn("[detail] Re-fetch failed: %v", err)
			break
		}
		page = again
		if state, err = hydration.Extract(page, ""); err != nil {
			e.logger.Warn("[detail] %s: %v", page.URL, err)
		}
	}

	if !state.HasKind(hydration.KindBusiness) {
		apollo, err := hydration.Extract(page, apolloStateMarker)
		if err != nil {
			e.logger.Warn("[detail] %s: apollo state: %v", page.URL, err)
		} else if !apollo.Empty() {
			e.logger.Info("[detail] Using %s block for %s", apolloStateMarker, page.URL)
			state = apollo
		}
	}
	return page, state
}

// guard turns a panic inside one sub-extraction into that field's default.
func guard[T any](e *Extractor, field string, def T, fn func() FieldResult[T]) (r FieldResult[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("[detail] %s extraction panicked: %v", field, rec)
			r = defaulted(def, "panic: %v", rec)
		}
	}()
	return fn()
}

// record stores a defaulted result's reason under each named field.
func record[T any](d *models.ListingDetail, r FieldResult[T], fields ...string) T {
	if !r.Present() {
		for _, f := range fields {
			d.Defaults[f] = r.Reason
		}
	}
	return r.Value
}

func extractBusinessID(page *fetch.Page) FieldResult[string] {
	return extractMeta(page, `meta[name="yelp-biz-id"]`)
}

func extractMeta(page *fetch.Page, selector string) FieldResult[string] {
	v, ok := page.Attr(selector, "content")
	if !ok {
		return defaulted("", "%s not found", selector)
	}
	return present(v)
}

func extractAddress(state hydration.State, id string) FieldResult[address] {
	raw, ok := state.Lookup(hydration.KindBusinessLocation, id)
	if !ok {
		return defaulted(address{}, "%s not in state", hydration.Key(hydration.KindBusinessLocation, id))
	}

	var loc struct {
		Address *struct {
			AddressLine1 *string `json:"addressLine1"`
			AddressLine2 *string `json:"addressLine2"`
			AddressLine3 *string `json:"addressLine3"`
			PostalCode   string  `json:"postalCode"`
			City         string  `json:"city"`
		} `json:"address"`
		Country *struct {
			Code string `json:"code"`
		} `json:"country"`
	}
	if err := json.Unmarshal(raw, &loc); err != nil {
		return defaulted(address{}, "location: %v", err)
	}
	if loc.Address == nil || loc.Country == nil {
		return defaulted(address{}, "location has no address or country")
	}

	var lines []string
	for _, l := range []*string{loc.Address.AddressLine1, loc.Address.AddressLine2, loc.Address.AddressLine3} {
		if l != nil && strings.TrimSpace(*l) != "" {
			lines = append(lines, strings.TrimSpace(*l))
		}
	}
	return present(address{
		Street:     strings.Join(lines, " "),
		PostalCode: loc.Address.PostalCode,
		Locality:   loc.Address.City,
		Country:    loc.Country.Code,
	})
}

// businessNode returns the top-level fields of Business:<id>. Some keys carry
// call arguments (quotes included) so the node is kept as a raw map.
func businessNode(state hydration.State, id string) (map[string]json.RawMessage, error) {
	raw, ok := state.Lookup(hydration.KindBusiness, id)
	if !ok {
		return nil, fmt.Errorf("%s not in state", hydration.Key(hydration.KindBusiness, id))
	}
	var node map[string]json.RawMessage
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("business node: %v", err)
	}
	return node, nil
}

func extractPhone(state hydration.State, id string) FieldResult[string] {
	node, err := businessNode(state, id)
	if err != nil {
		return defaulted("", "%v", err)
	}
	var phone *struct {
		Formatted *string `json:"formatted"`
	}
	if err := json.Unmarshal(node["phoneNumber"], &phone); err != nil || phone == nil || phone.Formatted == nil {
		return defaulted("", "phoneNumber.formatted missing")
	}
	return present(*phone.Formatted)
}

func extractAmenities(state hydration.State, id string) FieldResult[[]models.Amenity] {
	empty := []models.Amenity{}
	node, err := businessNode(state, id)
	if err != nil {
		return defaulted(empty, "%v", err)
	}
	raw, ok := node[amenitiesKey]
	if !ok {
		return defaulted(empty, "%s missing", amenitiesKey)
	}

	var groups []struct {
		Properties []struct {
			DisplayText *string `json:"displayText"`
			IsActive    *bool   `json:"isActive"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(raw, &groups); err != nil {
		return defaulted(empty, "amenities: %v", err)
	}
	if len(groups) == 0 {
		return defaulted(empty, "amenities: no property group")
	}

	out := make([]models.Amenity, 0, len(groups[0].Properties))
	for _, p := range groups[0].Properties {
		if p.DisplayText == nil || p.IsActive == nil {
			return defaulted(empty, "amenities: property without displayText/isActive")
		}
		out = append(out, models.Amenity{Label: *p.DisplayText, Active: *p.IsActive})
	}
	return present(out)
}

func extractHours(state hydration.State, id string) FieldResult[[]models.DayHours] {
	empty := []models.DayHours{}
	node, err := businessNode(state, id)
	if err != nil {
		return defaulted(empty, "%v", err)
	}

	var ops *struct {
		Week []struct {
			DayOfWeekShort *string  `json:"dayOfWeekShort"`
			Hours          []string `json:"hours"`
		} `json:"regularHoursMergedWithSpecialHoursForCurrentWeek"`
	}
	if err := json.Unmarshal(node["operationHours"], &ops); err != nil {
		return defaulted(empty, "operationHours: %v", err)
	}
	if ops == nil || ops.Week == nil {
		return defaulted(empty, "operationHours missing")
	}

	out := make([]models.DayHours, 0, len(ops.Week))
	for _, day := range ops.Week {
		if day.DayOfWeekShort == nil || len(day.Hours) == 0 {
			return defaulted(empty, "malformed day entry")
		}
		h, err := NormalizeHours(day.Hours[0])
		if err != nil {
			return defaulted(empty, "%v", err)
		}
		out = append(out, models.DayHours{Day: LocalizeDay(*day.DayOfWeekShort), Hours: h})
	}
	return present(out)
}
