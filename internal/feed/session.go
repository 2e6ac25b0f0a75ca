package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"morningpages/internal/database"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Preference keys.
const (
	KeyFeeds        = "feeds"
	KeyTimeFilter   = "time_filter"
	KeySourceFilter = "source_filter"

	jsonValueType = "json"
)

// Preferences is the key-value store that keeps subscriptions and filters
// between runs. *database.DB implements it.
type Preferences interface {
	// GetSetting returns database.ErrNotFound for a missing key.
	GetSetting(ctx context.Context, key string) (string, error)
	UpdateSetting(ctx context.Context, key, value, valueType string) error
	DeleteSetting(ctx context.Context, key string) error
}

// Session owns the subscriptions, filters and the current aggregated
// collection. Only Reload replaces items and the feed label map.
type Session struct {
	mu sync.RWMutex

	prefs      Preferences
	aggregator *Aggregator
	engine     *FilterEngine
	logger     *zap.SugaredLogger

	feeds        []string
	timeFilter   TimeFilter
	sourceFilter SourceFilter
	feedSources  map[string]string
	items        []Item
	last         *LoadResult
}

// NewSession restores persisted state. Malformed stored values are logged and
// replaced with defaults.
func NewSession(ctx context.Context, prefs Preferences, aggregator *Aggregator, logger *zap.SugaredLogger) (*Session, error) {
	s := &Session{
		prefs:       prefs,
		aggregator:  aggregator,
		engine:      NewFilterEngine(),
		logger:      logger,
		feeds:       []string{},
		timeFilter:  AllTime(),
		feedSources: make(map[string]string),
		items:       []Item{},
	}

	raw, err := s.get(ctx, KeyFeeds)
	if err != nil {
		return nil, err
	}
	if raw != "" {
		var feeds []string
		if err := json.Unmarshal([]byte(raw), &feeds); err != nil {
			logger.Warnw("Ignoring malformed stored feed list", "error", err)
		} else {
			s.feeds = lo.Uniq(lo.Compact(feeds))
		}
	}

	raw, err = s.get(ctx, KeyTimeFilter)
	if err != nil {
		return nil, err
	}
	if raw != "" {
		s.timeFilter = ParseTimeFilter([]byte(raw))
	}

	raw, err = s.get(ctx, KeySourceFilter)
	if err != nil {
		return nil, err
	}
	if raw != "" {
		var sf SourceFilter
		if err := json.Unmarshal([]byte(raw), &sf); err != nil {
			logger.Warnw("Ignoring malformed stored source filter", "error", err)
		} else {
			s.sourceFilter = sf
		}
	}

	return s, nil
}

func (s *Session) get(ctx context.Context, key string) (string, error) {
	v, err := s.prefs.GetSetting(ctx, key)
	if errors.Is(err, database.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading %s: %w", key, err)
	}
	return v, nil
}

func (s *Session) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.prefs.UpdateSetting(ctx, key, string(data), jsonValueType); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

func (s *Session) saveSourceFilter(ctx context.Context) error {
	if s.sourceFilter.Unrestricted() {
		err := s.prefs.DeleteSetting(ctx, KeySourceFilter)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("clearing %s: %w", KeySourceFilter, err)
		}
		return nil
	}
	return s.putJSON(ctx, KeySourceFilter, s.sourceFilter)
}

// Feeds returns the subscriptions in insertion order.
func (s *Session) Feeds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.feeds...)
}

// AddFeed subscribes to raw after validation and returns the stored URL.
func (s *Session) AddFeed(ctx context.Context, raw string) (string, error) {
	u, err := ValidateFeedURL(raw)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if lo.Contains(s.feeds, u) {
		return "", fmt.Errorf("%w: %s", ErrDuplicateFeed, u)
	}
	next := append(append([]string(nil), s.feeds...), u)
	if err := s.putJSON(ctx, KeyFeeds, next); err != nil {
		return "", err
	}
	s.feeds = next
	s.logger.Infow("Feed added", "feed", u)
	return u, nil
}

// RemoveFeed unsubscribes feedURL. It reports false when it was not subscribed.
func (s *Session) RemoveFeed(ctx context.Context, feedURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !lo.Contains(s.feeds, feedURL) {
		return false, nil
	}
	next := lo.Without(s.feeds, feedURL)
	if err := s.putJSON(ctx, KeyFeeds, next); err != nil {
		return false, err
	}
	s.feeds = next
	delete(s.feedSources, feedURL)
	s.items = lo.Filter(s.items, func(it Item, _ int) bool { return it.FeedURL != feedURL })
	s.logger.Infow("Feed removed", "feed", feedURL)
	return true, s.normalizeSourceFilterLocked(ctx)
}

func (s *Session) TimeFilter() TimeFilter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeFilter
}

// SetTimeFilter normalizes, stores and returns the effective filter.
func (s *Session) SetTimeFilter(ctx context.Context, tf TimeFilter) (TimeFilter, error) {
	tf = NormalizeTimeFilter(tf)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putJSON(ctx, KeyTimeFilter, tf); err != nil {
		return s.timeFilter, err
	}
	s.timeFilter = tf
	return tf, nil
}

func (s *Session) SourceFilter() SourceFilter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sourceFilter
}

// SetSourceFilter enables exactly labels, pruned to the known sources. Selecting
// every known source stores the unrestricted filter.
func (s *Session) SetSourceFilter(ctx context.Context, labels []string) (SourceFilter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceFilter = NormalizeSourceFilter(OnlySources(labels...), s.allSourcesLocked())
	return s.sourceFilter, s.saveSourceFilter(ctx)
}

func (s *Session) ClearSourceFilter(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceFilter = AllSourcesFilter()
	return s.saveSourceFilter(ctx)
}

// ResetFilters restores both filters to unrestricted.
func (s *Session) ResetFilters(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putJSON(ctx, KeyTimeFilter, AllTime()); err != nil {
		return err
	}
	s.timeFilter = AllTime()
	s.sourceFilter = AllSourcesFilter()
	return s.saveSourceFilter(ctx)
}

// Reload runs a full load cycle over the current subscriptions and replaces the
// aggregated collection once it completes.
func (s *Session) Reload(ctx context.Context, progress ProgressFunc) (*LoadResult, error) {
	feeds := s.Feeds()
	result := s.aggregator.LoadAllFeeds(ctx, feeds, progress)

	s.mu.Lock()
	defer s.mu.Unlock()
	sources := make(map[string]string, len(feeds))
	for _, u := range feeds {
		if label, ok := s.feedSources[u]; ok {
			sources[u] = label
		}
	}
	for u, label := range result.Sources {
		sources[u] = label
	}
	s.feedSources = sources
	s.items = result.Items
	s.last = result
	return result, s.normalizeSourceFilterLocked(ctx)
}

// LastResult is the outcome of the most recent Reload, or nil.
func (s *Session) LastResult() *LoadResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Items returns the full aggregated collection, newest first.
func (s *Session) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Item(nil), s.items...)
}

// Visible applies the current filters to the aggregated collection.
func (s *Session) Visible() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Apply(s.items, s.timeFilter, s.sourceFilter)
}

// AllSources lists every known label: item sources plus a label for each
// subscription, falling back to the hostname for feeds that never loaded.
func (s *Session) AllSources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allSourcesLocked()
}

func (s *Session) allSourcesLocked() []string {
	labels := lo.Map(s.items, func(it Item, _ int) string { return it.Source })
	for _, u := range s.feeds {
		label, ok := s.feedSources[u]
		if !ok || label == "" {
			label = SourceLabelFromURL(u)
		}
		labels = append(labels, label)
	}
	labels = lo.Uniq(lo.Compact(labels))
	sort.Strings(labels)
	return labels
}

func (s *Session) normalizeSourceFilterLocked(ctx context.Context) error {
	if s.sourceFilter.Unrestricted() {
		return nil
	}
	s.sourceFilter = NormalizeSourceFilter(s.sourceFilter, s.allSourcesLocked())
	return s.saveSourceFilter(ctx)
}
