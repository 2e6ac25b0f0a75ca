package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"morningpages/internal/feed"
	"morningpages/internal/rss"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatRSS  = "rss"

	week = 7 * 24 * time.Hour
)

var timeNow = time.Now

func readCmd() *cli.Command {
	return &cli.Command{
		Name:  "read",
		Usage: "Load every subscription once and print the visible items",
		Description: `Fetch all subscribed feeds, merge them newest first and print the
items that pass the stored time and source filters.

Feeds that fail are reported on stderr; the rest are still shown.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   formatText,
				Usage:   "output format: text, json or rss",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "print at most this many items (0 prints all)",
			},
			&cli.BoolFlag{
				Name:  "unfiltered",
				Usage: "ignore the stored filters",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "do not report progress",
			},
		},
		Action: func(c *cli.Context) error {
			format := strings.ToLower(c.String("format"))
			if format != formatText && format != formatJSON && format != formatRSS {
				return fmt.Errorf("unknown format %q", c.String("format"))
			}

			rt, err := openRuntime(c)
			if err != nil {
				return err
			}
			defer rt.Close()

			var progress feed.ProgressFunc
			if !c.Bool("quiet") {
				progress = progressPrinter(c.App.ErrWriter)
			}
			result, err := rt.session.Reload(c.Context, progress)
			if err != nil {
				return err
			}
			reportFailures(c.App.ErrWriter, result)

			items := rt.session.Visible()
			if c.Bool("unfiltered") {
				items = rt.session.Items()
			}
			if n := c.Int("limit"); n > 0 && len(items) > n {
				items = items[:n]
			}

			now := timeNow()
			switch format {
			case formatJSON:
				enc := json.NewEncoder(c.App.Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			case formatRSS:
				doc := rss.FromItems(rss.ChannelInfo{
					Title:       "Morning Pages",
					Description: "Merged reading list",
				}, items, now)
				return rss.Encode(c.App.Writer, doc)
			default:
				writeHeader(c.App.Writer, rt.session, now)
				writeItems(c.App.Writer, items, now)
				return nil
			}
		},
	}
}

func progressPrinter(w io.Writer) feed.ProgressFunc {
	return func(done, total int) {
		fmt.Fprintf(w, "\rLoading %d / %d feeds", done, total)
		if done == total {
			fmt.Fprintln(w)
		}
	}
}

func reportFailures(w io.Writer, result *feed.LoadResult) {
	for _, o := range result.Outcomes {
		if o.Failed() {
			fmt.Fprintf(w, "Failed to load %s: %v\n", o.URL, o.Err)
		}
	}
}

func writeHeader(w io.Writer, s *feed.Session, now time.Time) {
	fmt.Fprintln(w, now.Format("Monday, January 2, 2006"))
	var active []string
	if d := s.TimeFilter().Describe(); d != "" {
		active = append(active, d)
	}
	if d := s.SourceFilter().Describe(); d != "" {
		active = append(active, d)
	}
	if len(active) > 0 {
		fmt.Fprintf(w, "Filtered: %s\n", strings.Join(active, " · "))
	}
	fmt.Fprintln(w)
}

func writeItems(w io.Writer, items []feed.Item, now time.Time) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No stories found.")
		return
	}
	for _, it := range items {
		fmt.Fprintf(w, "%s · %s\n", it.Source, formatAge(it.Date, now))
		fmt.Fprintf(w, "  %s\n", it.Title)
		if it.Link != "" {
			fmt.Fprintf(w, "  %s\n", it.Link)
		}
		if it.Description != "" {
			fmt.Fprintf(w, "  %s\n", it.Description)
		}
		fmt.Fprintln(w)
	}
}

// formatAge is relative within a week and a short calendar date beyond it.
func formatAge(date, now time.Time) string {
	if now.Sub(date) < week {
		return humanize.RelTime(date, now, "ago", "from now")
	}
	return date.Format("Jan 2")
}
