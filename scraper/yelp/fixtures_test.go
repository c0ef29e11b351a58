package yelp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"yelp-scraper/config"
	"yelp-scraper/scraper/fetch"
	"yelp-scraper/utils"
)

const testBase = "https://www.yelp.fr"

func testConfig() *config.Config {
	return &config.Config{
		BaseURL:    testBase,
		SearchPath: "/search",
		PhotosPath: "/biz_photos",
		SearchParams: []config.Param{
			{Key: "find_desc", Value: "Restaurants"},
			{Key: "find_loc", Value: "Paris"},
		},
		MaxImagePages: 10,
		StateRetries:  2,
	}
}

func testLogger() *utils.Logger { return utils.NewLoggerTo(io.Discard) }

func searchURL(start int) string {
	return fmt.Sprintf("%s/search?find_desc=Restaurants&find_loc=Paris&start=%d", testBase, start)
}

// fakeFetcher serves canned HTML by exact URL; unknown URLs fail like an
// exhausted cascade.
type fakeFetcher struct {
	pages map[string]string
	calls []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: make(map[string]string)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*fetch.Page, error) {
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	if !ok {
		return nil, &fetch.FetchError{URL: url, Attempts: 1, Last: errors.New("no fixture")}
	}
	return fetch.NewPage(url, 200, body)
}

func (f *fakeFetcher) callsTo(url string) int {
	n := 0
	for _, c := range f.calls {
		if c == url {
			n++
		}
	}
	return n
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return string(b)
}

func result(id, name string) map[string]any {
	return map[string]any{
		"bizId": id,
		"searchResultBusiness": map[string]any{
			"businessUrl": "/biz/" + id,
			"name":        name,
			"rating":      4.5,
			"reviewCount": 10,
			"priceRange":  "€€",
			"categories":  []any{map[string]any{"title": "Bistro"}, "junk"},
			"website":     "https://" + id + ".fr",
		},
	}
}

func marker(id string, lat, lng float64) map[string]any {
	return map[string]any{
		"resourceId": id,
		"location":   map[string]any{"latitude": lat, "longitude": lng},
	}
}

func searchPage(t *testing.T, results, markers []map[string]any, disabled bool) string {
	t.Helper()
	state := map[string]any{
		"legacyProps": map[string]any{
			"searchAppProps": map[string]any{
				"searchPageProps": map[string]any{
					"mainContentComponentsListProps": results,
					"rightRailProps": map[string]any{
						"searchMapProps": map[string]any{
							"mapState": map[string]any{"markers": markers},
						},
					},
				},
			},
		},
	}
	class := "next-link"
	if disabled {
		class += " disabled"
	}
	return fmt.Sprintf(`<html><body>
<script type="application/json" data-hypernova-key="yelpfrontend__search"><!--%s--></script>
<div class="pagination"><button class="%s"><span>Next Page</span></button></div>
</body></html>`, mustJSON(t, state), class)
}

func businessState(id string) map[string]any {
	return map[string]any{
		"Business:" + id: map[string]any{
			"phoneNumber": map[string]any{"formatted": "01 23 45 67 89"},
			amenitiesKey: []any{map[string]any{
				"properties": []any{
					map[string]any{"displayText": "Terrasse", "isActive": true},
					map[string]any{"displayText": "Wi-Fi", "isActive": false},
				},
			}},
			"operationHours": map[string]any{
				"regularHoursMergedWithSpecialHoursForCurrentWeek": []any{
					map[string]any{"dayOfWeekShort": "Mon", "hours": []any{"9:00 AM - 12:00 PM"}},
					map[string]any{"dayOfWeekShort": "Tue", "hours": []any{"Closed"}},
					map[string]any{"dayOfWeekShort": "Wed", "hours": []any{"11:30 AM - 10:00 PM (Next day)"}},
				},
			},
		},
		"BusinessLocation:" + id: map[string]any{
			"address": map[string]any{
				"addressLine1": "12 rue de Rivoli",
				"addressLine2": "",
				"addressLine3": nil,
				"postalCode":   "75001",
				"city":         "Paris",
			},
			"country": map[string]any{"code": "FR"},
		},
	}
}

func detailPage(t *testing.T, id string, state map[string]any) string {
	t.Helper()
	return fmt.Sprintf(`<html><head>
<meta name="yelp-biz-id" content="%s">
<meta property="og:description" content="Specialties: Cuisine du marché">
</head><body>
<script type="application/json">%s</script>
</body></html>`, id, mustJSON(t, state))
}

func galleryPage(srcs []string, hasNext bool) string {
	items := ""
	for _, s := range srcs {
		items += fmt.Sprintf(`<li><img srcset="%s 1x, %s 2x" alt=""></li>`, s, s+"?2x")
	}
	next := ""
	if hasNext {
		next = `<div class="pager"><a href="#"><span>Suivant</span></a></div>`
	}
	return fmt.Sprintf(`<html><body>
<div class="media-landing_gallery photos"><ul>%s</ul></div>
%s
</body></html>`, items, next)
}
