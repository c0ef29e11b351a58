package fetch

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a rendered document as returned by one strategy attempt.
type Page struct {
	URL    string
	Status int
	HTML   string

	doc *goquery.Document
}

// NewPage parses html into a queryable document.
func NewPage(url string, status int, html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("fetch: parse document %s: %w", url, err)
	}
	return &Page{URL: url, Status: status, HTML: html, doc: doc}, nil
}

// Doc exposes the underlying goquery document.
func (p *Page) Doc() *goquery.Document {
	return p.doc
}

// Find runs a CSS selector over the whole document.
func (p *Page) Find(selector string) *goquery.Selection {
	return p.doc.Find(selector)
}

// Attr returns an attribute of the first element matching selector.
func (p *Page) Attr(selector, attr string) (string, bool) {
	return p.doc.Find(selector).First().Attr(attr)
}

// FindByText returns the innermost element whose trimmed text equals text.
// The returned selection is empty when nothing matches.
func (p *Page) FindByText(text string) *goquery.Selection {
	match := p.doc.Find("body *").FilterFunction(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) != text {
			return false
		}
		inner := s.Children().FilterFunction(func(_ int, c *goquery.Selection) bool {
			return strings.TrimSpace(c.Text()) == text
		})
		return inner.Length() == 0
	})
	return match.First()
}

// ParentHTML renders the outer HTML of sel's parent, or "" if there is none.
func ParentHTML(sel *goquery.Selection) string {
	parent := sel.Parent()
	if parent.Length() == 0 {
		return ""
	}
	html, err := goquery.OuterHtml(parent)
	if err != nil {
		return ""
	}
	return html
}
