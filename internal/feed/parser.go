package feed

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/mmcdole/gofeed/rss"
)

// Dialect is the structural family of a feed document, chosen once per document.
type Dialect int

const (
	DialectUnknown Dialect = iota
	// DialectRSS covers RSS 0.9x/2.0 and RDF (RSS 1.0) documents.
	DialectRSS
	DialectAtom
)

func (d Dialect) String() string {
	switch d {
	case DialectRSS:
		return "rss"
	case DialectAtom:
		return "atom"
	default:
		return "unknown"
	}
}

// rawDocument is what a dialect decoder extracts before normalization.
type rawDocument struct {
	Title   string
	Link    string
	Entries []rawEntry
}

type rawEntry struct {
	Title string
	Link  string
	// Description is the raw HTML body, kept for the <img> thumbnail fallback.
	Description  string
	Date         *time.Time
	MediaURL     string
	EnclosureURL string
}

type dialectDecoder func(r io.Reader) (*rawDocument, error)

var decoders = map[Dialect]dialectDecoder{
	DialectRSS:  decodeRSS,
	DialectAtom: decodeAtom,
}

// DetectDialect inspects the document root.
func DetectDialect(text string) Dialect {
	switch gofeed.DetectFeedType(strings.NewReader(text)) {
	case gofeed.FeedTypeRSS:
		return DialectRSS
	case gofeed.FeedTypeAtom:
		return DialectAtom
	default:
		return DialectUnknown
	}
}

// Parser converts feed documents into normalized items.
type Parser struct {
	now func() time.Time
}

func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// Parse decodes text and normalizes every entry. A malformed document fails as a
// whole with ErrParseFailure; a malformed entry only loses the affected fields.
func (p *Parser) Parse(text, feedURL string) (*ParsedFeed, error) {
	dialect := DetectDialect(text)
	decode, ok := decoders[dialect]
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized document root", ErrParseFailure)
	}

	doc, err := decode(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	baseURL := resolveBaseURL(doc.Link, feedURL)
	source := DeriveSourceLabel(strings.TrimSpace(doc.Title), feedURL)
	fetchedAt := p.now()

	items := make([]Item, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		items = append(items, normalizeEntry(e, source, baseURL, feedURL, fetchedAt))
	}

	return &ParsedFeed{
		Dialect: dialect,
		Source:  source,
		BaseURL: baseURL,
		Items:   items,
	}, nil
}

func normalizeEntry(e rawEntry, source, baseURL, feedURL string, fetchedAt time.Time) Item {
	title := strings.TrimSpace(e.Title)
	if title == "" {
		title = untitled
	}

	link := strings.TrimSpace(e.Link)
	if link != "" {
		if resolved, ok := ResolveURL(link, baseURL); ok {
			link = resolved
		}
	}

	date := fetchedAt
	if e.Date != nil && !e.Date.IsZero() {
		date = *e.Date
	}

	return Item{
		Title:       title,
		Link:        link,
		Description: CleanDescription(e.Description),
		Date:        date,
		Source:      source,
		Thumbnail:   extractThumbnail(e, baseURL),
		FeedURL:     feedURL,
	}
}

func decodeRSS(r io.Reader) (*rawDocument, error) {
	var p rss.Parser
	f, err := p.Parse(r)
	if err != nil {
		return nil, err
	}

	doc := &rawDocument{Title: f.Title, Link: f.Link}
	for _, it := range f.Items {
		if it == nil {
			continue
		}
		e := rawEntry{
			Title:       it.Title,
			Link:        it.Link,
			Description: firstNonEmpty(it.Description, it.Content),
			Date:        it.PubDateParsed,
			MediaURL:    mediaURL(it.Extensions),
		}
		if e.Date == nil && it.DublinCoreExt != nil {
			e.Date = parseDate(firstNonEmpty(it.DublinCoreExt.Date...))
		}
		if enc := it.Enclosure; enc != nil && isImageType(enc.Type) {
			e.EnclosureURL = enc.URL
		}
		doc.Entries = append(doc.Entries, e)
	}
	return doc, nil
}

func decodeAtom(r io.Reader) (*rawDocument, error) {
	var p atom.Parser
	f, err := p.Parse(r)
	if err != nil {
		return nil, err
	}

	doc := &rawDocument{Title: f.Title, Link: atomAlternate(f.Links)}
	for _, en := range f.Entries {
		if en == nil {
			continue
		}
		var content string
		if en.Content != nil {
			content = en.Content.Value
		}
		date := en.PublishedParsed
		if date == nil {
			date = en.UpdatedParsed
		}
		doc.Entries = append(doc.Entries, rawEntry{
			Title:        en.Title,
			Link:         atomAlternate(en.Links),
			Description:  firstNonEmpty(content, en.Summary),
			Date:         date,
			MediaURL:     mediaURL(en.Extensions),
			EnclosureURL: atomImageEnclosure(en.Links),
		})
	}
	return doc, nil
}

// atomAlternate prefers rel="alternate" and otherwise takes the first link.
func atomAlternate(links []*atom.Link) string {
	for _, l := range links {
		if l != nil && strings.EqualFold(l.Rel, "alternate") {
			return l.Href
		}
	}
	if len(links) > 0 && links[0] != nil {
		return links[0].Href
	}
	return ""
}

func atomImageEnclosure(links []*atom.Link) string {
	for _, l := range links {
		if l != nil && strings.EqualFold(l.Rel, "enclosure") && isImageType(l.Type) {
			return l.Href
		}
	}
	return ""
}

// mediaURL returns the url attribute of the first media:content element, or of
// the first media:thumbnail when there is no media:content. Elements nested in a
// media:group count too.
func mediaURL(exts ext.Extensions) string {
	media, ok := exts["media"]
	if !ok {
		return ""
	}
	for _, name := range []string{"content", "thumbnail"} {
		if list := media[name]; len(list) > 0 {
			return list[0].Attrs["url"]
		}
		for _, group := range media["group"] {
			if list := group.Children[name]; len(list) > 0 {
				return list[0].Attrs["url"]
			}
		}
	}
	return ""
}

func isImageType(t string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(t)), "image")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var dateLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDate covers the date formats seen in dc:date; unparseable input yields nil.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
