package yelp

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"yelp-scraper/scraper/fetch"
	"yelp-scraper/scraper/hydration"
	"yelp-scraper/utils"
)

// extractImages pages through the listing's photo gallery 30 photos at a time
// while a "Suivant" link is shown. A failed gallery fetch ends the walk but
// keeps the photos already collected; failing before any photo defaults.
func (e *Extractor) extractImages(ctx context.Context, state hydration.State, id string) FieldResult[[]string] {
	if !state.HasKind(hydration.KindBusinessPhoto) {
		return defaulted([]string{}, "no %s keys in state", hydration.KindBusinessPhoto)
	}
	if id == "" {
		return defaulted([]string{}, "no business id for gallery")
	}

	seen := utils.NewURLSet()
	base := e.photosURL + "/" + id

	for page := 0; ; page++ {
		if e.maxImagePages > 0 && page >= e.maxImagePages {
			e.logger.Warn("[images] %s: stopping after %d gallery pages", id, page)
			break
		}

		url := base
		if page > 0 {
			url = fmt.Sprintf("%s?start=%d", base, page*photoPageSize)
		}
		e.logger.Info("[images] Extracting images from %s, page %d", url, page+1)

		p, err := e.fetcher.Fetch(ctx, url)
		if err != nil {
			if seen.Size() == 0 {
				return defaulted([]string{}, "gallery: %v", err)
			}
			e.logger.Warn("[images] Gallery fetch failed, keeping %d images: %v", seen.Size(), err)
			break
		}

		for _, src := range galleryImages(p) {
			seen.Add(src)
		}

		next := p.FindByText(nextPhotoPageText)
		if next.Length() == 0 || strings.TrimSpace(next.Text()) != nextPhotoPageText {
			break
		}
	}

	return present(seen.Values())
}

// galleryImages reads the first URL of each srcset in the gallery's photo list.
func galleryImages(p *fetch.Page) []string {
	var out []string
	list := p.Find("div.media-landing_gallery.photos").First().Children().First()
	list.Find("li img[srcset]").Each(func(_ int, img *goquery.Selection) {
		srcset, _ := img.Attr("srcset")
		if fields := strings.Fields(srcset); len(fields) > 0 {
			out = append(out, fields[0])
		}
	})
	return out
}
