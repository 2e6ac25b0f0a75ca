package rss

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"morningpages/internal/feed"
)

// RSS is the root element of an RSS feed.
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel Channel  `xml:"channel"`
}

// Channel represents the channel element in an RSS feed.
type Channel struct {
	XMLName       xml.Name `xml:"channel"`
	Title         string   `xml:"title"`
	Link          string   `xml:"link"`
	Description   string   `xml:"description"`
	LastBuildDate string   `xml:"lastBuildDate,omitempty"` // RFC1123Z
	Generator     string   `xml:"generator,omitempty"`
	Items         []Item   `xml:"item"`
}

// Item represents an item element in an RSS feed.
type Item struct {
	XMLName     xml.Name `xml:"item"`
	Title       string   `xml:"title"`
	Link        string   `xml:"link,omitempty"`
	Description string   `xml:"description,omitempty"`
	PubDate     string   `xml:"pubDate,omitempty"` // RFC1123Z
	GUID        *GUID    `xml:"guid,omitempty"`
	Source      *Source  `xml:"source,omitempty"`
}

type GUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// Source names the feed an item was aggregated from.
type Source struct {
	URL  string `xml:"url,attr"`
	Name string `xml:",chardata"`
}

// ChannelInfo describes the generated channel.
type ChannelInfo struct {
	Title       string
	Link        string
	Description string
}

// FromItems builds an RSS 2.0 document from aggregated items, keeping their order.
func FromItems(info ChannelInfo, items []feed.Item, built time.Time) *RSS {
	doc := &RSS{
		Version: "2.0",
		Channel: Channel{
			Title:         info.Title,
			Link:          info.Link,
			Description:   info.Description,
			LastBuildDate: built.UTC().Format(time.RFC1123Z),
			Generator:     "morningpages",
			Items:         make([]Item, 0, len(items)),
		},
	}
	for _, it := range items {
		out := Item{
			Title:       it.Title,
			Link:        it.Link,
			Description: it.Description,
		}
		if !it.Date.IsZero() {
			out.PubDate = it.Date.UTC().Format(time.RFC1123Z)
		}
		if it.Link != "" {
			out.GUID = &GUID{IsPermaLink: true, Value: it.Link}
		}
		if it.FeedURL != "" {
			out.Source = &Source{URL: it.FeedURL, Name: it.Source}
		}
		doc.Channel.Items = append(doc.Channel.Items, out)
	}
	return doc
}

// Encode writes doc as an indented XML document.
func Encode(w io.Writer, doc *RSS) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding rss: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}
