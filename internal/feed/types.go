// internal/feed/types.go
package feed

import (
	"time"
)

// MaxItemsPerFeed caps how many of a feed's newest items enter the aggregated collection.
const MaxItemsPerFeed = 25

// Item is one normalized entry from a feed.
type Item struct {
	Title       string    `json:"title"`
	Link        string    `json:"link,omitempty"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Source      string    `json:"source"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	FeedURL     string    `json:"feedUrl"`
}

// ParsedFeed is the result of parsing one feed document.
type ParsedFeed struct {
	Dialect Dialect
	Source  string
	BaseURL string
	Items   []Item
}

// FeedOutcome records what happened to a single feed during a load cycle.
type FeedOutcome struct {
	URL    string
	Source string
	Items  int
	Err    error
}

// Failed reports whether the feed contributed nothing because of an error.
func (o FeedOutcome) Failed() bool {
	return o.Err != nil
}

// LoadResult is the output of one load cycle over all subscriptions.
type LoadResult struct {
	CycleID  string
	Items    []Item
	Outcomes []FeedOutcome
	// Sources maps feed URL to the label derived on a successful parse.
	Sources map[string]string
}

// Succeeded returns the number of feeds that loaded without error.
func (r *LoadResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Failed() {
			n++
		}
	}
	return n
}

// ProgressFunc is called after each feed finishes, with done counting up to total.
type ProgressFunc func(done, total int)
