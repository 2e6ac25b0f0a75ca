package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var parseNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestParser() *Parser {
	return &Parser{now: func() time.Time { return parseNow }}
}

func TestDetectDialect(t *testing.T) {
	assert.Equal(t, DialectRSS, DetectDialect(sampleRSS))
	assert.Equal(t, DialectRSS, DetectDialect(sampleRDF))
	assert.Equal(t, DialectAtom, DetectDialect(sampleAtom))
	assert.Equal(t, DialectUnknown, DetectDialect(htmlErrorPage))
	assert.Equal(t, DialectUnknown, DetectDialect(""))
	assert.Equal(t, "atom", DialectAtom.String())
	assert.Equal(t, "unknown", Dialect(42).String())
}

func TestParse_RSS(t *testing.T) {
	feedURL := "https://example.com/blog/feed.xml"
	parsed, err := newTestParser().Parse(sampleRSS, feedURL)
	require.NoError(t, err)

	assert.Equal(t, DialectRSS, parsed.Dialect)
	assert.Equal(t, "Sample Blog", parsed.Source)
	assert.Equal(t, "https://example.com/blog/", parsed.BaseURL)
	require.Len(t, parsed.Items, 2)

	first := parsed.Items[0]
	assert.Equal(t, "RSS Entry 1", first.Title)
	assert.Equal(t, "https://example.com/blog/entry1", first.Link)
	assert.Equal(t, "Description for RSS Entry 1", first.Description)
	assert.WithinDuration(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), first.Date, 0)
	assert.Equal(t, "https://example.com/media/one.jpg", first.Thumbnail)
	assert.Equal(t, "Sample Blog", first.Source)
	assert.Equal(t, feedURL, first.FeedURL)

	second := parsed.Items[1]
	assert.Equal(t, "https://example.com/blog/images/two.png", second.Thumbnail)
	assert.Equal(t, "Description for RSS Entry 2", second.Description)
}

func TestParse_Atom(t *testing.T) {
	parsed, err := newTestParser().Parse(sampleAtom, "https://atom.example.com/feed.xml")
	require.NoError(t, err)

	assert.Equal(t, DialectAtom, parsed.Dialect)
	assert.Equal(t, "Sample Atom Feed", parsed.Source)
	assert.Equal(t, "https://atom.example.com/", parsed.BaseURL)
	require.Len(t, parsed.Items, 2)

	first := parsed.Items[0]
	assert.Equal(t, "Atom Entry 1", first.Title)
	assert.Equal(t, "https://atom.example.com/entry1", first.Link, "rel=alternate preferred over the first link")
	assert.Equal(t, "Summary for Atom Entry 1.", first.Description)
	assert.WithinDuration(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), first.Date, 0, "published preferred over updated")
	assert.Equal(t, "https://atom.example.com/img/entry1.jpg", first.Thumbnail)

	second := parsed.Items[1]
	assert.Equal(t, "Untitled", second.Title)
	assert.Equal(t, "https://atom.example.com/entry2", second.Link)
	assert.Equal(t, "Body with image", second.Description)
	assert.WithinDuration(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), second.Date, 0)
	assert.Equal(t, "https://atom.example.com/pics/inline.gif", second.Thumbnail)
}

func TestParse_RDFWithDublinCoreDate(t *testing.T) {
	parsed, err := newTestParser().Parse(sampleRDF, "https://rdf.example.com/index.rdf")
	require.NoError(t, err)

	assert.Equal(t, DialectRSS, parsed.Dialect)
	assert.Equal(t, "RDF News", parsed.Source)
	require.Len(t, parsed.Items, 1)
	assert.Equal(t, "RDF Item", parsed.Items[0].Title)
	assert.Equal(t, "First RDF item", parsed.Items[0].Description)
	assert.WithinDuration(t, time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC), parsed.Items[0].Date, 0)
}

func TestParse_Defaults(t *testing.T) {
	doc := `<?xml version="1.0"?>
<rss version="2.0">
<channel>
	<title></title>
	<item>
		<description>No title, link or date</description>
	</item>
	<item>
		<title>Bad date</title>
		<pubDate>not a date</pubDate>
	</item>
</channel>
</rss>`

	parsed, err := newTestParser().Parse(doc, "https://www.Example.org/feed.xml")
	require.NoError(t, err)
	assert.Equal(t, "example.org", parsed.Source)
	assert.Equal(t, "https://www.Example.org", parsed.BaseURL)
	require.Len(t, parsed.Items, 2)

	for _, it := range parsed.Items {
		assert.Equal(t, parseNow, it.Date)
		assert.Empty(t, it.Link)
		assert.Empty(t, it.Thumbnail)
		assert.Equal(t, "example.org", it.Source)
	}
	assert.Equal(t, "Untitled", parsed.Items[0].Title)
	assert.Equal(t, "Bad date", parsed.Items[1].Title)
}

func TestParse_ThumbnailPreference(t *testing.T) {
	doc := `<?xml version="1.0"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
<channel>
	<title>Pictures</title>
	<link>https://pics.example.com/</link>
	<item>
		<title>media wins</title>
		<media:thumbnail url="https://cdn.example.com/thumb.jpg"/>
		<enclosure url="https://cdn.example.com/enclosure.jpg" type="image/jpeg"/>
		<description><![CDATA[<img src="https://cdn.example.com/inline.jpg">]]></description>
	</item>
	<item>
		<title>grouped media</title>
		<media:group>
			<media:content url="https://cdn.example.com/grouped.jpg"/>
		</media:group>
	</item>
	<item>
		<title>audio enclosure skipped</title>
		<enclosure url="https://cdn.example.com/episode.mp3" type="audio/mpeg"/>
		<description><![CDATA[<p>Show notes <IMG SRC='/inline.png'></p>]]></description>
	</item>
	<item>
		<title>nothing</title>
		<enclosure url="https://cdn.example.com/episode.mp3" type="audio/mpeg"/>
	</item>
</channel>
</rss>`

	parsed, err := newTestParser().Parse(doc, "https://pics.example.com/rss")
	require.NoError(t, err)
	require.Len(t, parsed.Items, 4)
	assert.Equal(t, "https://cdn.example.com/thumb.jpg", parsed.Items[0].Thumbnail)
	assert.Equal(t, "https://cdn.example.com/grouped.jpg", parsed.Items[1].Thumbnail)
	assert.Equal(t, "https://pics.example.com/inline.png", parsed.Items[2].Thumbnail)
	assert.Empty(t, parsed.Items[3].Thumbnail)
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"html page", htmlErrorPage},
		{"truncated garbage", "garbage <rss"},
		{"empty", ""},
		{"plain xml", "<document><title>Not a feed</title></document>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestParser().Parse(tt.text, "https://example.com/feed")
			assert.ErrorIs(t, err, ErrParseFailure)
		})
	}
}

func TestParse_LongDescriptionIsBounded(t *testing.T) {
	doc := `<rss version="2.0"><channel><title>Long</title><item><title>x</title><description>` +
		"&lt;p&gt;" + strings.Repeat("word ", 200) + "&lt;/p&gt;" +
		`</description></item></channel></rss>`

	parsed, err := newTestParser().Parse(doc, "https://example.com/feed")
	require.NoError(t, err)
	require.Len(t, parsed.Items, 1)
	d := parsed.Items[0].Description
	assert.LessOrEqual(t, len([]rune(d)), maxDescriptionLen+len(ellipsis))
	assert.True(t, strings.HasSuffix(d, ellipsis))
	assert.NotContains(t, d, "<p>")
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2024-03-05T08:30:00Z", "2024-03-05T09:30:00+01:00", "Tue, 05 Mar 2024 08:30:00 +0000"} {
		d := parseDate(s)
		require.NotNil(t, d, s)
		assert.True(t, d.Equal(time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC)), s)
	}
	assert.NotNil(t, parseDate("2024-03-05"))
	assert.Nil(t, parseDate(""))
	assert.Nil(t, parseDate("yesterday"))
}
