// internal/feed/filter.go
package feed

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
)

// Time filter kinds.
const (
	TimeAll    = "all"
	TimePreset = "preset"
	TimeRange  = "range"
)

const (
	dateLayout      = "2006-01-02"
	shortDateLayout = "Jan 2, 2006"
	maxLabelLen     = 22
)

var presetWindows = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

var presetLabels = map[string]string{
	"24h": "Last 24 hours",
	"7d":  "Last 7 days",
	"30d": "Last 30 days",
}

// TimeFilter restricts items by date. Its JSON form is the persisted shape:
// {"type":"all"}, {"type":"preset","preset":"7d"} or {"type":"range","from":"2024-01-01","to":"2024-01-31"}.
type TimeFilter struct {
	Type   string `json:"type"`
	Preset string `json:"preset,omitempty"`
	// From and To are calendar dates (YYYY-MM-DD) in UTC; To covers the whole day.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

func AllTime() TimeFilter { return TimeFilter{Type: TimeAll} }

func PresetFilter(preset string) TimeFilter {
	return NormalizeTimeFilter(TimeFilter{Type: TimePreset, Preset: preset})
}

func RangeFilter(from, to string) TimeFilter {
	return NormalizeTimeFilter(TimeFilter{Type: TimeRange, From: from, To: to})
}

// NormalizeTimeFilter maps any unrecognized or incomplete shape to the
// unrestricted filter. Unparseable range bounds are dropped.
func NormalizeTimeFilter(f TimeFilter) TimeFilter {
	switch f.Type {
	case TimePreset:
		if _, ok := presetWindows[f.Preset]; ok {
			return TimeFilter{Type: TimePreset, Preset: f.Preset}
		}
	case TimeRange:
		from := validDate(f.From)
		to := validDate(f.To)
		if from != "" || to != "" {
			return TimeFilter{Type: TimeRange, From: from, To: to}
		}
	}
	return AllTime()
}

// ParseTimeFilter decodes a persisted filter; malformed input yields AllTime.
func ParseTimeFilter(data []byte) TimeFilter {
	var f TimeFilter
	if err := json.Unmarshal(data, &f); err != nil {
		return AllTime()
	}
	return NormalizeTimeFilter(f)
}

func validDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return ""
	}
	return s
}

// IsAll reports whether the filter lets every item through.
func (f TimeFilter) IsAll() bool {
	return NormalizeTimeFilter(f).Type == TimeAll
}

// Describe returns a short label for an active filter, or "" for AllTime.
func (f TimeFilter) Describe() string {
	f = NormalizeTimeFilter(f)
	switch f.Type {
	case TimePreset:
		return presetLabels[f.Preset]
	case TimeRange:
		switch {
		case f.From != "" && f.To != "":
			return shortDate(f.From) + " → " + shortDate(f.To)
		case f.From != "":
			return "From " + shortDate(f.From)
		default:
			return "Until " + shortDate(f.To)
		}
	}
	return ""
}

func shortDate(s string) string {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return s
	}
	return t.Format(shortDateLayout)
}

// predicate returns the date test for a normalized filter.
func (f TimeFilter) predicate(now time.Time) func(time.Time) bool {
	switch f.Type {
	case TimePreset:
		cutoff := now.Add(-presetWindows[f.Preset])
		return func(d time.Time) bool { return !d.Before(cutoff) }
	case TimeRange:
		var from, until time.Time
		if f.From != "" {
			from, _ = time.Parse(dateLayout, f.From)
		}
		if f.To != "" {
			to, _ := time.Parse(dateLayout, f.To)
			until = to.AddDate(0, 0, 1)
		}
		return func(d time.Time) bool {
			if !from.IsZero() && d.Before(from) {
				return false
			}
			if !until.IsZero() && !d.Before(until) {
				return false
			}
			return true
		}
	}
	return func(time.Time) bool { return true }
}

// SourceFilter is either unrestricted (the zero value) or an explicit set of
// enabled source labels, which may be empty.
type SourceFilter struct {
	enabled map[string]struct{}
}

func AllSourcesFilter() SourceFilter { return SourceFilter{} }

func OnlySources(labels ...string) SourceFilter {
	return SourceFilter{enabled: lo.Associate(labels, func(l string) (string, struct{}) {
		return l, struct{}{}
	})}
}

func (f SourceFilter) Unrestricted() bool { return f.enabled == nil }

func (f SourceFilter) Allows(source string) bool {
	if f.enabled == nil {
		return true
	}
	_, ok := f.enabled[source]
	return ok
}

// Labels returns the enabled labels sorted, or nil when unrestricted.
func (f SourceFilter) Labels() []string {
	if f.enabled == nil {
		return nil
	}
	labels := lo.Keys(f.enabled)
	sort.Strings(labels)
	return labels
}

func (f SourceFilter) Len() int { return len(f.enabled) }

// NormalizeSourceFilter drops labels that are not in known and collapses to
// unrestricted when what remains covers every known source.
func NormalizeSourceFilter(f SourceFilter, known []string) SourceFilter {
	if f.Unrestricted() {
		return f
	}
	available := lo.Uniq(known)
	kept := lo.Filter(f.Labels(), func(l string, _ int) bool {
		return lo.Contains(available, l)
	})
	if len(kept) == len(available) {
		return AllSourcesFilter()
	}
	return OnlySources(kept...)
}

// Describe summarizes an explicit selection; "" when unrestricted.
func (f SourceFilter) Describe() string {
	switch {
	case f.Unrestricted():
		return ""
	case f.Len() == 0:
		return "No sources"
	case f.Len() == 1:
		label := f.Labels()[0]
		if utf8.RuneCountInString(label) > maxLabelLen {
			label = string([]rune(label)[:maxLabelLen]) + ellipsis
		}
		return label
	default:
		return fmt.Sprintf("%d sources", f.Len())
	}
}

// MarshalJSON writes null for unrestricted and a sorted array otherwise.
func (f SourceFilter) MarshalJSON() ([]byte, error) {
	if f.Unrestricted() {
		return []byte("null"), nil
	}
	return json.Marshal(f.Labels())
}

func (f *SourceFilter) UnmarshalJSON(data []byte) error {
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return err
	}
	if labels == nil {
		*f = AllSourcesFilter()
		return nil
	}
	*f = OnlySources(labels...)
	return nil
}

// FilterEngine derives the visible set from the aggregated collection.
type FilterEngine struct {
	now func() time.Time
}

func NewFilterEngine() *FilterEngine {
	return &FilterEngine{now: time.Now}
}

// Apply keeps items that pass both the time and the source predicate. The
// input order is preserved and the input slice is not modified.
func (fe *FilterEngine) Apply(items []Item, tf TimeFilter, sf SourceFilter) []Item {
	inWindow := NormalizeTimeFilter(tf).predicate(fe.now())
	return lo.Filter(items, func(it Item, _ int) bool {
		return inWindow(it.Date) && sf.Allows(it.Source)
	})
}
