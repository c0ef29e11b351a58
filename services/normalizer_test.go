package services

import (
	"io"
	"testing"
	"time"

	"yelp-scraper/models"
	"yelp-scraper/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLoggerTo(io.Discard) }

func fixedClock() time.Time { return time.Date(2024, 3, 7, 15, 4, 5, 0, time.UTC) }

func TestNormalizeJoinsAndCleans(t *testing.T) {
	n := NewNormalizer(newTestLogger()).WithClock(fixedClock)

	s := models.ListingSummary{
		BusinessID:  "b1",
		URL:         "https://www.yelp.fr/biz/chez-nous-paris",
		Name:        "  Chez  Nous &amp; Fils ",
		Rating:      4.5,
		ReviewCount: 120,
		PriceRange:  "€€",
		Categories:  []string{"Français", "Bistro"},
		Website:     "https://chez-nous.fr",
		Latitude:    48.85,
		Longitude:   2.35,
	}
	d := models.ListingDetail{
		BusinessID:      "b1",
		StreetAddress:   "12 rue de l&#x27;Église None",
		PostalCode:      "75001",
		AddressLocality: "Paris",
		AddressCountry:  "FR",
		Phone:           "01 23 45 67 89",
		Description:     "Specialties: Cuisine du marchéÂ ",
		Amenities:       []models.Amenity{{Label: "Terrasse", Active: true}, {Label: "Wi-Fi"}},
		Hours: []models.DayHours{
			{Day: "Lundi", Hours: "09h00 - 18h00"},
			{Day: "Mardi", Hours: "Fermé"},
		},
		Images: []string{
			"https://s3-media0.fl.yelpcdn.com/bphoto/AAA/258s.jpg",
			"https://s3-media0.fl.yelpcdn.com/bphoto/AAA/348s.jpg",
			"https://s3-media0.fl.yelpcdn.com/bphoto/BBB/258s.jpg",
		},
	}

	rec := n.Normalize(s, d)

	checks := []struct {
		field, got, want string
	}{
		{"Name", rec.Name, "Chez Nous & Fils"},
		{"Website", rec.Website, "chez-nous.fr"},
		{"Categories", rec.Categories, "Français, Bistro"},
		{"StreetAddress", rec.StreetAddress, "12 rue de l'Église"},
		{"Description", rec.Description, "Cuisine du marché"},
		{"Hours", rec.Hours, "Lundi : 09h00 - 18h00, Mardi : Fermé"},
		{"Amenities", rec.Amenities, "[✓] : Terrasse; [X] : Wi-Fi"},
		{"Images", rec.Images, "https://s3-media0.fl.yelpcdn.com/bphoto/AAA/o.jpg, https://s3-media0.fl.yelpcdn.com/bphoto/BBB/o.jpg"},
		{"BusinessID", rec.BusinessID, "b1"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q; want %q", c.field, c.got, c.want)
		}
	}

	wantDate := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	if !rec.DateInsertion.Equal(wantDate) {
		t.Errorf("DateInsertion = %v; want %v", rec.DateInsertion, wantDate)
	}
	if rec.Rating != 4.5 || rec.ReviewCount != 120 {
		t.Errorf("rating/reviews = %.1f/%d", rec.Rating, rec.ReviewCount)
	}
}

func TestNormalizeEmptyDetail(t *testing.T) {
	n := NewNormalizer(newTestLogger()).WithClock(fixedClock)
	rec := n.Normalize(models.ListingSummary{BusinessID: "b2", URL: "u"}, models.ListingDetail{})

	if rec.BusinessID != "b2" {
		t.Errorf("BusinessID = %q; want summary id", rec.BusinessID)
	}
	if rec.Hours != "" || rec.Images != "" || rec.Categories != "" || rec.Amenities != "" {
		t.Errorf("empty collections should flatten to empty strings: %+v", rec)
	}
}

func TestOriginalImages(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, []string{}},
		{[]string{"a/b/1.jpg", "a/b/2.jpg"}, []string{"a/b/o.jpg"}},
		{[]string{"noslash"}, []string{"noslash"}},
	}
	for _, tt := range tests {
		got := OriginalImages(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("OriginalImages(%v) = %v; want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("OriginalImages(%v)[%d] = %q; want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestNormaliseText(t *testing.T) {
	if got := normaliseText("  a \n\t b  "); got != "a b" {
		t.Errorf("normaliseText = %q", got)
	}
}
