package services

import (
	"html"
	"strings"
	"time"
	"unicode"

	"yelp-scraper/models"
	"yelp-scraper/utils"
)

// Normalizer joins a summary with its detail and cleans every field for storage.
type Normalizer struct {
	logger *utils.Logger
	now    func() time.Time
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger, now: time.Now}
}

// WithClock overrides the insertion-date source.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Normalize flattens lists to delimited strings, strips markup leftovers and
// stamps today's date. The detail's identifier wins over the summary's.
func (n *Normalizer) Normalize(s models.ListingSummary, d models.ListingDetail) models.NormalizedRecord {
	id := d.BusinessID
	if id == "" {
		id = s.BusinessID
	}

	rec := models.NormalizedRecord{
		BusinessID:      cleanText(id),
		URL:             cleanText(s.URL),
		Name:            normaliseText(cleanText(s.Name)),
		Rating:          s.Rating,
		ReviewCount:     s.ReviewCount,
		PriceRange:      cleanText(s.PriceRange),
		Categories:      cleanText(strings.Join(s.Categories, ", ")),
		Phone:           normaliseText(cleanText(d.Phone)),
		Website:         cleanText(stripScheme(s.Website)),
		Latitude:        s.Latitude,
		Longitude:       s.Longitude,
		StreetAddress:   normaliseText(cleanText(strings.ReplaceAll(d.StreetAddress, "None", ""))),
		PostalCode:      cleanText(d.PostalCode),
		AddressLocality: cleanText(d.AddressLocality),
		AddressCountry:  cleanText(d.AddressCountry),
		Description:     cleanText(strings.ReplaceAll(d.Description, "Specialties: ", "")),
		Amenities:       cleanText(RenderAmenities(d.Amenities)),
		Hours:           cleanText(joinHours(d.Hours)),
		Images:          cleanText(strings.Join(OriginalImages(d.Images), ", ")),
		DateInsertion:   today(n.now()),
	}

	n.logger.Debug("[normalizer] %s normalized (%d defaulted fields)", rec.BusinessID, len(d.Defaults))
	return rec
}

// OriginalImages rewrites each photo URL to its full-size "o.jpg" variant.
// Thumbnails of the same photo collapse into one entry.
func OriginalImages(urls []string) []string {
	set := utils.NewURLSet()
	for _, u := range urls {
		if i := strings.LastIndex(u, "/"); i >= 0 {
			u = u[:i+1] + "o.jpg"
		}
		set.Add(u)
	}
	return set.Values()
}

// RenderAmenities writes each flag as "[✓] : label" or "[X] : label", joined by "; ".
func RenderAmenities(amenities []models.Amenity) string {
	parts := make([]string, 0, len(amenities))
	for _, a := range amenities {
		mark := "X"
		if a.Active {
			mark = "✓"
		}
		parts = append(parts, "["+mark+"] : "+a.Label)
	}
	return strings.Join(parts, "; ")
}

func joinHours(hours []models.DayHours) string {
	parts := make([]string, 0, len(hours))
	for _, h := range hours {
		parts = append(parts, h.Day+" : "+h.Hours)
	}
	return strings.Join(parts, ", ")
}

func stripScheme(s string) string {
	s = strings.ReplaceAll(s, "http://", "")
	return strings.ReplaceAll(s, "https://", "")
}

// cleanText resolves HTML entities, drops mis-decoded non-breaking spaces and trims.
func cleanText(s string) string {
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "Â\u00a0", "")
	s = strings.ReplaceAll(s, "Â ", "")
	return strings.TrimSpace(s)
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

func today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
