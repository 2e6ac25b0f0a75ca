package feed

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"morningpages/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memPrefs is an in-memory Preferences.
type memPrefs struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemPrefs(seed map[string]string) *memPrefs {
	p := &memPrefs{values: map[string]string{}}
	for k, v := range seed {
		p.values[k] = v
	}
	return p
}

func (p *memPrefs) GetSetting(_ context.Context, key string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[key]
	if !ok {
		return "", database.ErrNotFound
	}
	return v, nil
}

func (p *memPrefs) UpdateSetting(_ context.Context, key, value, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
	return nil
}

func (p *memPrefs) DeleteSetting(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.values[key]; !ok {
		return database.ErrNotFound
	}
	delete(p.values, key)
	return nil
}

func (p *memPrefs) get(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[key]
	return v, ok
}

const (
	alphaURL = "https://alpha.example.com/feed"
	betaURL  = "https://www.beta.example.com/rss"
)

func sessionFetcher() *fakeFetcher {
	now := time.Now().UTC()
	return &fakeFetcher{docs: map[string]string{
		alphaURL: rssWithItems("Alpha", 3, now.Add(-time.Hour)),
		betaURL:  rssWithItems("Beta | Feed", 2, now.Add(-2*time.Hour)),
	}}
}

func newTestSession(t *testing.T, prefs Preferences, f TextFetcher) *Session {
	t.Helper()
	s, err := NewSession(context.Background(), prefs, newTestAggregator(f, 2), testLogger())
	require.NoError(t, err)
	return s
}

func TestNewSession_Defaults(t *testing.T) {
	s := newTestSession(t, newMemPrefs(nil), sessionFetcher())
	assert.Empty(t, s.Feeds())
	assert.Equal(t, AllTime(), s.TimeFilter())
	assert.True(t, s.SourceFilter().Unrestricted())
	assert.Empty(t, s.Items())
	assert.Nil(t, s.LastResult())
}

func TestNewSession_RestoresAndNormalizesStoredState(t *testing.T) {
	prefs := newMemPrefs(map[string]string{
		KeyFeeds:        `["https://a.example.com/","","https://a.example.com/","https://b.example.com/"]`,
		KeyTimeFilter:   `{"type":"preset","preset":"bogus"}`,
		KeySourceFilter: `["Alpha"]`,
	})
	s := newTestSession(t, prefs, sessionFetcher())

	assert.Equal(t, []string{"https://a.example.com/", "https://b.example.com/"}, s.Feeds())
	assert.Equal(t, AllTime(), s.TimeFilter())
	assert.Equal(t, []string{"Alpha"}, s.SourceFilter().Labels())
}

func TestNewSession_MalformedValuesFallBack(t *testing.T) {
	prefs := newMemPrefs(map[string]string{
		KeyFeeds:        `{not json`,
		KeyTimeFilter:   `[]`,
		KeySourceFilter: `"Alpha"`,
	})
	s := newTestSession(t, prefs, sessionFetcher())

	assert.Empty(t, s.Feeds())
	assert.Equal(t, AllTime(), s.TimeFilter())
	assert.True(t, s.SourceFilter().Unrestricted())
}

func TestSession_AddAndRemoveFeeds(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs(nil)
	s := newTestSession(t, prefs, sessionFetcher())

	u, err := s.AddFeed(ctx, "  "+alphaURL+" ")
	require.NoError(t, err)
	assert.Equal(t, alphaURL, u)

	_, err = s.AddFeed(ctx, betaURL)
	require.NoError(t, err)

	_, err = s.AddFeed(ctx, alphaURL)
	assert.ErrorIs(t, err, ErrDuplicateFeed)

	_, err = s.AddFeed(ctx, "not a url")
	assert.ErrorIs(t, err, ErrInvalidURL)

	assert.Equal(t, []string{alphaURL, betaURL}, s.Feeds())
	stored, _ := prefs.get(KeyFeeds)
	assert.JSONEq(t, `["`+alphaURL+`","`+betaURL+`"]`, stored)

	removed, err := s.RemoveFeed(ctx, alphaURL)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.RemoveFeed(ctx, alphaURL)
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Equal(t, []string{betaURL}, s.Feeds())
	stored, _ = prefs.get(KeyFeeds)
	assert.JSONEq(t, `["`+betaURL+`"]`, stored)
}

func TestSession_ReloadAndVisible(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs(map[string]string{KeyFeeds: `["` + alphaURL + `","` + betaURL + `","https://down.example.com/feed"]`})
	s := newTestSession(t, prefs, sessionFetcher())

	var progress progressRecorder
	result, err := s.Reload(ctx, progress.record)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded())
	assert.Same(t, result, s.LastResult())
	assert.Len(t, progress.calls, 3)

	items := s.Items()
	require.Len(t, items, 5)
	assert.Equal(t, "Alpha", items[0].Source)
	assert.Equal(t, "Beta", items[1].Source)

	assert.Equal(t, []string{"Alpha", "Beta", "down.example.com"}, s.AllSources())
	assert.Len(t, s.Visible(), 5)

	_, err = s.SetTimeFilter(ctx, PresetFilter("24h"))
	require.NoError(t, err)
	assert.Len(t, s.Visible(), 2)

	sf, err := s.SetSourceFilter(ctx, []string{"Beta", "Unknown"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Beta"}, sf.Labels())
	for _, it := range s.Visible() {
		assert.Equal(t, "Beta", it.Source)
	}
	stored, ok := prefs.get(KeySourceFilter)
	require.True(t, ok)
	assert.JSONEq(t, `["Beta"]`, stored)
}

func TestSession_SourceFilterCollapsesAndClears(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs(map[string]string{KeyFeeds: `["` + alphaURL + `","` + betaURL + `"]`})
	s := newTestSession(t, prefs, sessionFetcher())
	_, err := s.Reload(ctx, nil)
	require.NoError(t, err)

	sf, err := s.SetSourceFilter(ctx, []string{"Alpha", "Beta"})
	require.NoError(t, err)
	assert.True(t, sf.Unrestricted())
	_, ok := prefs.get(KeySourceFilter)
	assert.False(t, ok, "unrestricted filter is not stored")

	_, err = s.SetSourceFilter(ctx, []string{})
	require.NoError(t, err)
	assert.Empty(t, s.Visible())
	stored, _ := prefs.get(KeySourceFilter)
	assert.JSONEq(t, `[]`, stored)

	require.NoError(t, s.ClearSourceFilter(ctx))
	assert.Len(t, s.Visible(), 5)
	require.NoError(t, s.ClearSourceFilter(ctx), "clearing twice is fine")
}

func TestSession_ReloadPrunesSourceFilter(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs(map[string]string{
		KeyFeeds:        `["` + alphaURL + `","` + betaURL + `"]`,
		KeySourceFilter: `["Alpha","Gone"]`,
	})
	s := newTestSession(t, prefs, sessionFetcher())

	_, err := s.Reload(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha"}, s.SourceFilter().Labels())
	stored, _ := prefs.get(KeySourceFilter)
	assert.JSONEq(t, `["Alpha"]`, stored)

	// Removing the only other feed leaves the selection covering everything.
	_, err = s.RemoveFeed(ctx, betaURL)
	require.NoError(t, err)
	assert.True(t, s.SourceFilter().Unrestricted())
	for _, it := range s.Items() {
		assert.Equal(t, alphaURL, it.FeedURL)
	}
}

func TestSession_KeepsLabelOfFeedThatFailsLater(t *testing.T) {
	ctx := context.Background()
	f := sessionFetcher()
	prefs := newMemPrefs(map[string]string{KeyFeeds: `["` + alphaURL + `","` + betaURL + `"]`})
	s := newTestSession(t, prefs, f)

	_, err := s.Reload(ctx, nil)
	require.NoError(t, err)

	f.mu.Lock()
	delete(f.docs, betaURL)
	f.mu.Unlock()

	_, err = s.Reload(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Beta"}, s.AllSources())
	assert.Len(t, s.Items(), 3)
}

func TestSession_ResetFilters(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs(map[string]string{KeyFeeds: `["` + alphaURL + `","` + betaURL + `"]`})
	s := newTestSession(t, prefs, sessionFetcher())
	_, err := s.Reload(ctx, nil)
	require.NoError(t, err)

	_, err = s.SetTimeFilter(ctx, RangeFilter("2020-01-01", "2020-01-02"))
	require.NoError(t, err)
	_, err = s.SetSourceFilter(ctx, []string{"Alpha"})
	require.NoError(t, err)
	assert.Empty(t, s.Visible())

	require.NoError(t, s.ResetFilters(ctx))
	assert.Equal(t, AllTime(), s.TimeFilter())
	assert.True(t, s.SourceFilter().Unrestricted())
	assert.Len(t, s.Visible(), 5)

	stored, _ := prefs.get(KeyTimeFilter)
	assert.JSONEq(t, `{"type":"all"}`, stored)
	_, ok := prefs.get(KeySourceFilter)
	assert.False(t, ok)
}

func TestSession_SQLitePreferences(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "prefs.db")

	db, err := database.NewDB(dbPath, database.DefaultConfig())
	require.NoError(t, err)
	s := newTestSession(t, db, sessionFetcher())
	_, err = s.AddFeed(ctx, alphaURL)
	require.NoError(t, err)
	_, err = s.SetTimeFilter(ctx, PresetFilter("7d"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = database.NewDB(dbPath, database.DefaultConfig())
	require.NoError(t, err)
	defer db.Close()
	restored := newTestSession(t, db, sessionFetcher())
	assert.Equal(t, []string{alphaURL}, restored.Feeds())
	assert.Equal(t, PresetFilter("7d"), restored.TimeFilter())
}
