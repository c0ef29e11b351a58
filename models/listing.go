package models

import "time"

// ListingSummary is one search-result entry merged with its map pin.
// Both halves are keyed by BusinessID.
type ListingSummary struct {
	BusinessID  string
	URL         string
	Name        string
	Rating      float64
	ReviewCount int
	PriceRange  string
	Categories  []string
	Website     string
	Latitude    float64
	Longitude   float64
}

// Amenity is a single feature flag shown on a listing page.
type Amenity struct {
	Label  string
	Active bool
}

// DayHours is one day of the current week's opening schedule, already
// localized ("Lundi", "09h00 - 18h00" or "Fermé").
type DayHours struct {
	Day   string
	Hours string
}

// ListingDetail holds what a single listing page yields. Collections are
// never nil: a failed sub-extraction leaves an empty slice or string.
type ListingDetail struct {
	BusinessID      string
	StreetAddress   string
	PostalCode      string
	AddressLocality string
	AddressCountry  string
	Phone           string
	Description     string
	Amenities       []Amenity
	Hours           []DayHours
	Images          []string

	// Defaults maps a field name to the reason it fell back to its default.
	// Fields absent from the map were extracted from the page.
	Defaults map[string]string
}

// Defaulted reports whether the named field was defaulted during extraction.
func (d ListingDetail) Defaulted(field string) bool {
	_, ok := d.Defaults[field]
	return ok
}

// NormalizedRecord is a summary joined with its detail and cleaned for storage.
type NormalizedRecord struct {
	BusinessID      string
	URL             string
	Name            string
	Rating          float64
	ReviewCount     int
	PriceRange      string
	Categories      string
	Phone           string
	Website         string
	Latitude        float64
	Longitude       float64
	StreetAddress   string
	PostalCode      string
	AddressLocality string
	AddressCountry  string
	Description     string
	Amenities       string
	Hours           string
	Images          string
	DateInsertion   time.Time
}

// InsightReport holds the computed analytics over one run's records.
type InsightReport struct {
	TotalListings      int
	AverageRating      float64
	TotalReviews       int
	MostReviewed       *NormalizedRecord
	TopRated           []*NormalizedRecord
	ListingsByLocality map[string]int
	ListingsByPrice    map[string]int
}
