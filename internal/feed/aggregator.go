package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// DefaultConcurrency is the number of feeds fetched at once.
const DefaultConcurrency = 4

// TextFetcher retrieves a feed document. *Resolver is the production implementation.
type TextFetcher interface {
	FetchFeedText(ctx context.Context, feedURL string) (string, error)
}

type AggregatorConfig struct {
	Concurrency     int
	MaxItemsPerFeed int
}

// Aggregator runs load cycles: fetch and parse every feed, cap each feed's
// contribution, then merge into one date-descending collection.
type Aggregator struct {
	fetcher     TextFetcher
	parser      *Parser
	logger      *zap.SugaredLogger
	concurrency int
	maxPerFeed  int
}

func NewAggregator(fetcher TextFetcher, parser *Parser, cfg AggregatorConfig, logger *zap.SugaredLogger) *Aggregator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxItemsPerFeed < 1 {
		cfg.MaxItemsPerFeed = MaxItemsPerFeed
	}
	if parser == nil {
		parser = NewParser()
	}
	return &Aggregator{
		fetcher:     fetcher,
		parser:      parser,
		logger:      logger,
		concurrency: cfg.Concurrency,
		maxPerFeed:  cfg.MaxItemsPerFeed,
	}
}

type feedResult struct {
	index  int
	parsed *ParsedFeed
	err    error
}

// LoadAllFeeds never fails: a feed that cannot be fetched or parsed is recorded
// in Outcomes and contributes no items. progress, if set, is called from a
// single goroutine with a strictly increasing done count.
func (a *Aggregator) LoadAllFeeds(ctx context.Context, urls []string, progress ProgressFunc) *LoadResult {
	result := &LoadResult{
		CycleID:  uuid.NewString(),
		Items:    []Item{},
		Outcomes: make([]FeedOutcome, len(urls)),
		Sources:  make(map[string]string),
	}
	total := len(urls)
	if total == 0 {
		return result
	}

	start := time.Now()
	log := a.logger.With("cycle", result.CycleID)
	log.Infow("Starting load cycle", "feeds", total, "concurrency", a.concurrency)

	results := make(chan feedResult, total)
	var wg sync.WaitGroup
	sem := make(chan struct{}, a.concurrency)

	go func() {
		for i, u := range urls {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, u string) {
				defer wg.Done()
				defer func() { <-sem }()
				parsed, err := a.loadOne(ctx, u)
				results <- feedResult{index: i, parsed: parsed, err: err}
			}(i, u)
		}
		wg.Wait()
		close(results)
	}()

	perFeed := make([][]Item, total)
	done := 0
	for r := range results {
		done++
		u := urls[r.index]
		outcome := FeedOutcome{URL: u, Err: r.err}
		if r.err != nil {
			feedLoads.WithLabelValues("failed").Inc()
			log.Warnw("Feed failed", "feed", u, "error", r.err)
		} else {
			perFeed[r.index] = a.capItems(r.parsed.Items)
			outcome.Source = r.parsed.Source
			outcome.Items = len(perFeed[r.index])
			result.Sources[u] = r.parsed.Source
			feedLoads.WithLabelValues("ok").Inc()
			log.Debugw("Feed loaded", "feed", u, "dialect", r.parsed.Dialect, "items", outcome.Items)
		}
		result.Outcomes[r.index] = outcome
		if progress != nil {
			progress(done, total)
		}
	}

	// Merge only after every feed has resolved so the ordering does not depend
	// on completion order.
	result.Items = lo.Flatten(perFeed)
	sortByDateDesc(result.Items)

	elapsed := time.Since(start)
	loadCycleDuration.Observe(elapsed.Seconds())
	log.Infow("Load cycle complete",
		"feeds", total,
		"succeeded", result.Succeeded(),
		"items", len(result.Items),
		"elapsed", elapsed)
	return result
}

func (a *Aggregator) loadOne(ctx context.Context, feedURL string) (*ParsedFeed, error) {
	text, err := a.fetcher.FetchFeedText(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return a.parser.Parse(text, feedURL)
}

// capItems keeps the feed's newest maxPerFeed items.
func (a *Aggregator) capItems(items []Item) []Item {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sortByDateDesc(sorted)
	if len(sorted) > a.maxPerFeed {
		sorted = sorted[:a.maxPerFeed]
	}
	return sorted
}

func sortByDateDesc(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date)
	})
}
