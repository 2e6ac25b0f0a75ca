package feed

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const (
	maxDescriptionLen = 200
	ellipsis          = "..."
	untitled          = "Untitled"
)

var (
	imgSrcRe      = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']+)["']`)
	labelSuffixRe = regexp.MustCompile(`(?i)\s*[-–—|]\s*(RSS|Feed|Blog).*$`)
	labelRSSRe    = regexp.MustCompile(`(?i)\s*RSS.*$`)
)

// CleanDescription turns an HTML fragment into a single line of plain text of at
// most maxDescriptionLen characters, followed by an ellipsis when cut.
func CleanDescription(raw string) string {
	if raw == "" {
		return ""
	}
	text := strings.Join(strings.Fields(extractText(raw)), " ")
	return truncate(text, maxDescriptionLen)
}

// extractText walks the fragment's tokens and keeps decoded character data.
// Script and style bodies are dropped; block boundaries become spaces.
func extractText(raw string) string {
	z := html.NewTokenizer(strings.NewReader(raw))
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a tokenizer error on garbage input; keep what we have.
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if rawTextTags[tag] {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if blockTags[tag] {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if rawTextTags[tag] && skip > 0 {
				skip--
				continue
			}
			if blockTags[tag] {
				b.WriteByte(' ')
			}
		}
	}
}

var rawTextTags = map[string]bool{"script": true, "style": true}

var blockTags = map[string]bool{
	"p": true, "br": true, "div": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "tr": true, "td": true, "th": true, "hr": true,
	"figure": true, "figcaption": true, "pre": true, "section": true, "article": true,
}

// truncate cuts s to maxLen characters (not bytes) and appends an ellipsis.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:maxLen])) + ellipsis
}

// extractThumbnail picks the first candidate in order media, image enclosure,
// first <img> in the raw description, and resolves it against baseURL.
func extractThumbnail(e rawEntry, baseURL string) string {
	candidate := e.MediaURL
	if candidate == "" {
		candidate = e.EnclosureURL
	}
	if candidate == "" && e.Description != "" {
		if m := imgSrcRe.FindStringSubmatch(e.Description); m != nil {
			candidate = m[1]
		}
	}
	if candidate == "" {
		return ""
	}
	resolved, ok := ResolveURL(candidate, baseURL)
	if !ok {
		return ""
	}
	return resolved
}

// ResolveURL resolves ref against base. ok is false when either fails to parse
// or the result is not absolute.
func ResolveURL(ref, base string) (string, bool) {
	b, err := url.Parse(strings.TrimSpace(base))
	if err != nil || !b.IsAbs() {
		return "", false
	}
	r, err := b.Parse(strings.TrimSpace(ref))
	if err != nil || !r.IsAbs() {
		return "", false
	}
	return r.String(), true
}

// resolveBaseURL prefers the channel link resolved against the feed URL, then
// the feed URL's origin, then the feed URL as given.
func resolveBaseURL(channelLink, feedURL string) string {
	base, err := url.Parse(feedURL)
	if err != nil || !base.IsAbs() || base.Host == "" {
		return feedURL
	}
	if link := strings.TrimSpace(channelLink); link != "" {
		resolved, err := base.Parse(link)
		if err != nil {
			return feedURL
		}
		return resolved.String()
	}
	return base.Scheme + "://" + base.Host
}

// SourceLabelFromURL is the fallback label: the hostname without a leading "www.".
func SourceLabelFromURL(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// DeriveSourceLabel strips trailing "- RSS", "| Feed", "— Blog" style suffixes
// from a channel title. An empty result falls back to the hostname label.
func DeriveSourceLabel(title, feedURL string) string {
	label := labelSuffixRe.ReplaceAllString(title, "")
	label = labelRSSRe.ReplaceAllString(label, "")
	label = strings.TrimSpace(label)
	if label == "" {
		return SourceLabelFromURL(feedURL)
	}
	return label
}
