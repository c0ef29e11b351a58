// Package hydration decodes the JSON state a server-rendered page embeds in
// <script type="application/json"> blocks to seed its client application.
package hydration

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"yelp-scraper/scraper/fetch"
)

// ErrDecode is returned when a block matches the marker but is not valid JSON.
var ErrDecode = errors.New("hydration: decode failed")

// Kind is the type prefix of a normalized-cache key such as "Business:<id>".
type Kind string

const (
	KindBusiness         Kind = "Business"
	KindBusinessLocation Kind = "BusinessLocation"
	KindBusinessPhoto    Kind = "BusinessPhoto"
)

// Key builds the cache key for an entity of the given kind.
func Key(kind Kind, id string) string {
	return string(kind) + ":" + id
}

// State is one page load's hydration payload: top-level key -> raw JSON.
// The zero value is an empty state.
type State struct {
	nodes map[string]json.RawMessage
}

// NewState wraps an already-decoded top-level object.
func NewState(nodes map[string]json.RawMessage) State {
	return State{nodes: nodes}
}

// Empty reports whether the state holds no keys.
func (s State) Empty() bool { return len(s.nodes) == 0 }

func (s State) Len() int { return len(s.nodes) }

// Get returns the raw value stored under key.
func (s State) Get(key string) (json.RawMessage, bool) {
	v, ok := s.nodes[key]
	return v, ok
}

// Lookup returns the node for "<kind>:<id>".
func (s State) Lookup(kind Kind, id string) (json.RawMessage, bool) {
	return s.Get(Key(kind, id))
}

// HasKind reports whether any key carries the kind prefix.
func (s State) HasKind(kind Kind) bool {
	prefix := string(kind) + ":"
	for k := range s.nodes {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// Decode unmarshals the value under key into v.
func (s State) Decode(key string, v any) error {
	raw, ok := s.nodes[key]
	if !ok {
		return fmt.Errorf("hydration: key %q not found", key)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("hydration: decode %q: %w", key, err)
	}
	return nil
}

// Extract scans the page's JSON script blocks. With a marker, the first block
// whose outer HTML contains it is decoded, and a parse failure is ErrDecode.
// Without a marker, the first block that parses wins. No match yields an
// empty State and a nil error.
func Extract(page *fetch.Page, marker string) (State, error) {
	var (
		state State
		err   error
		found bool
	)

	page.Find(`script[type="application/json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if marker != "" {
			outer, oerr := goquery.OuterHtml(s)
			if oerr != nil || !strings.Contains(outer, marker) {
				return true
			}
			nodes, perr := parse(s.Text())
			if perr != nil {
				err = fmt.Errorf("%w: marker %q: %v", ErrDecode, marker, perr)
			} else {
				state = NewState(nodes)
			}
			found = true
			return false
		}

		nodes, perr := parse(s.Text())
		if perr != nil {
			return true
		}
		state = NewState(nodes)
		found = true
		return false
	})

	if err != nil {
		return State{}, err
	}
	if !found {
		return State{}, nil
	}
	return state, nil
}

func parse(text string) (map[string]json.RawMessage, error) {
	cleaned := Clean(text)
	if cleaned == "" {
		return nil, errors.New("empty block")
	}
	var nodes map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Clean strips the HTML comment wrapper some pages put around the payload and
// resolves entity-escaped quotes.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "<!--", "")
	text = strings.ReplaceAll(text, "-->", "")
	return strings.TrimSpace(html.UnescapeString(text))
}
