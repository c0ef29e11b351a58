package yelp

import (
	"context"
	"errors"
	"testing"

	"yelp-scraper/config"
)

func TestSearchPageURL(t *testing.T) {
	params := []config.Param{{Key: "find_desc", Value: "Fast Food"}, {Key: "find_loc", Value: "Le Mans"}}
	got := SearchPageURL("https://www.yelp.fr/search", params, 20)
	want := "https://www.yelp.fr/search?find_desc=Fast%20Food&find_loc=Le%20Mans&start=20"
	if got != want {
		t.Errorf("SearchPageURL = %q; want %q", got, want)
	}
	if got := SearchPageURL("https://x/search", nil, 0); got != "https://x/search?start=0" {
		t.Errorf("SearchPageURL without params = %q", got)
	}
}

func TestAbsolute(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/biz/a", testBase + "/biz/a"},
		{"biz/a", testBase + "/biz/a"},
		{"https://other.test/biz/a", "https://other.test/biz/a"},
	}
	for _, tt := range tests {
		if got := Absolute(testBase+"/", tt.in); got != tt.want {
			t.Errorf("Absolute(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestHarvestStopsOnDisabledNext(t *testing.T) {
	f := newFakeFetcher()
	f.pages[searchURL(0)] = searchPage(t,
		[]map[string]any{result("a", "A"), result("b", "B")},
		[]map[string]any{marker("a", 48.1, 2.1), marker("b", 48.2, 2.2)},
		false)
	f.pages[searchURL(10)] = searchPage(t,
		[]map[string]any{result("b", "B again"), result("c", "C")},
		[]map[string]any{marker("b", 48.2, 2.2), marker("c", 48.3, 2.3)},
		true)
	f.pages[searchURL(20)] = searchPage(t, nil, nil, true)

	h := NewHarvester(f, testConfig(), testLogger())
	got, err := h.Harvest(context.Background())
	if err != nil {
		t.Fatalf("Harvest: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("got %d summaries; want 3 (duplicate b dropped)", len(got))
	}
	if got[1].Name != "B" {
		t.Errorf("first-seen b should win, got %q", got[1].Name)
	}
	if f.callsTo(searchURL(20)) != 0 {
		t.Error("fetched a page after the disabled Next Page marker")
	}
	if len(f.calls) != 2 {
		t.Errorf("fetch calls = %d; want 2", len(f.calls))
	}
}

func TestHarvestInnerJoin(t *testing.T) {
	noID := map[string]any{"searchResultBusiness": map[string]any{"name": "ad slot"}}
	withHref := result("h", "Href")
	withHref["searchResultBusiness"].(map[string]any)["website"] = map[string]any{"href": "http://href.fr"}

	f := newFakeFetcher()
	f.pages[searchURL(0)] = searchPage(t,
		[]map[string]any{result("a", "A"), result("nopin", "No pin"), noID, withHref},
		[]map[string]any{marker("a", 48.85, 2.35), marker("h", 1, 2), marker("orphan", 0, 0), {"location": map[string]any{}}},
		true)

	got, err := NewHarvester(f, testConfig(), testLogger()).Harvest(context.Background())
	if err != nil {
		t.Fatalf("Harvest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d summaries; want 2: %+v", len(got), got)
	}

	a := got[0]
	if a.BusinessID != "a" || a.URL != "/biz/a" || a.Latitude != 48.85 || a.Longitude != 2.35 {
		t.Errorf("summary a = %+v", a)
	}
	if a.Rating != 4.5 || a.ReviewCount != 10 || a.PriceRange != "€€" || a.Website != "https://a.fr" {
		t.Errorf("summary a business fields = %+v", a)
	}
	if len(a.Categories) != 1 || a.Categories[0] != "Bistro" {
		t.Errorf("categories = %v; want [Bistro]", a.Categories)
	}
	if got[1].Website != "http://href.fr" {
		t.Errorf("website object href = %q", got[1].Website)
	}
}

func TestHarvestMissingNextStops(t *testing.T) {
	f := newFakeFetcher()
	f.pages[searchURL(0)] = `<html><body><p>no results, no pager</p></body></html>`

	got, err := NewHarvester(f, testConfig(), testLogger()).Harvest(context.Background())
	if err != nil {
		t.Fatalf("Harvest: %v", err)
	}
	if len(got) != 0 || len(f.calls) != 1 {
		t.Errorf("got %d summaries after %d calls; want 0 after 1", len(got), len(f.calls))
	}
}

func TestHarvestFetchFailureReturnsPartial(t *testing.T) {
	f := newFakeFetcher()
	f.pages[searchURL(0)] = searchPage(t,
		[]map[string]any{result("a", "A")},
		[]map[string]any{marker("a", 1, 1)},
		false)

	got, err := NewHarvester(f, testConfig(), testLogger()).Harvest(context.Background())
	if err != nil {
		t.Fatalf("Harvest: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d summaries; want the 1 from page one", len(got))
	}
}

func TestHarvestPageCeiling(t *testing.T) {
	f := newFakeFetcher()
	for i := 0; i < 5; i++ {
		f.pages[searchURL(i*10)] = searchPage(t, nil, nil, false)
	}
	cfg := testConfig()
	cfg.MaxSearchPages = 2

	_, err := NewHarvester(f, cfg, testLogger()).Harvest(context.Background())
	if !errors.Is(err, ErrPaginationExhausted) {
		t.Errorf("err = %v; want ErrPaginationExhausted", err)
	}
	if len(f.calls) != 2 {
		t.Errorf("fetch calls = %d; want 2", len(f.calls))
	}
}

func TestHarvestDecodeErrorStillPaginates(t *testing.T) {
	f := newFakeFetcher()
	f.pages[searchURL(0)] = `<html><body>
<script type="application/json" data-hypernova-key="x">{broken</script>
<div><button class="next-link"><span>Next Page</span></button></div>
</body></html>`
	f.pages[searchURL(10)] = searchPage(t,
		[]map[string]any{result("a", "A")},
		[]map[string]any{marker("a", 1, 1)},
		true)

	got, err := NewHarvester(f, testConfig(), testLogger()).Harvest(context.Background())
	if err != nil {
		t.Fatalf("Harvest: %v", err)
	}
	if len(got) != 1 || len(f.calls) != 2 {
		t.Errorf("got %d summaries after %d calls; want 1 after 2", len(got), len(f.calls))
	}
}
