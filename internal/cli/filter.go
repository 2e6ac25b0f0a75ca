package cli

import (
	"fmt"
	"io"
	"strings"

	"morningpages/internal/feed"

	"github.com/urfave/cli/v2"
)

func filterCmd() *cli.Command {
	return &cli.Command{
		Name:  "filter",
		Usage: "Show or change the time and source filters",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the active filters",
				Action: func(c *cli.Context) error {
					rt, err := openRuntime(c)
					if err != nil {
						return err
					}
					defer rt.Close()
					printFilters(c.App.Writer, rt.session)
					return nil
				},
			},
			{
				Name:      "time",
				Usage:     "Limit items to a recent window",
				ArgsUsage: "<all|24h|7d|30d>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("filter time takes one of: all, 24h, 7d, 30d")
					}
					tf := feed.AllTime()
					if arg := c.Args().First(); arg != feed.TimeAll {
						tf = feed.PresetFilter(arg)
						if tf.IsAll() {
							return fmt.Errorf("unknown time window %q", arg)
						}
					}
					return updateFilters(c, func(s *feed.Session) error {
						_, err := s.SetTimeFilter(c.Context, tf)
						return err
					})
				},
			},
			{
				Name:  "range",
				Usage: "Limit items to a calendar date range (UTC, inclusive)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "first day, YYYY-MM-DD"},
					&cli.StringFlag{Name: "to", Usage: "last day, YYYY-MM-DD"},
				},
				Action: func(c *cli.Context) error {
					tf := feed.RangeFilter(c.String("from"), c.String("to"))
					if tf.IsAll() {
						return fmt.Errorf("a range needs --from and/or --to as YYYY-MM-DD")
					}
					return updateFilters(c, func(s *feed.Session) error {
						_, err := s.SetTimeFilter(c.Context, tf)
						return err
					})
				},
			},
			{
				Name:      "sources",
				Usage:     "Show only the named sources",
				ArgsUsage: "[label...]",
				Description: `Loads the feeds to learn their labels, then keeps only the named
sources. Without labels it lists the known sources and marks the enabled ones.`,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "show every source again"},
				},
				Action: func(c *cli.Context) error {
					rt, err := openRuntime(c)
					if err != nil {
						return err
					}
					defer rt.Close()

					if c.Bool("all") {
						if err := rt.session.ClearSourceFilter(c.Context); err != nil {
							return err
						}
						printFilters(c.App.Writer, rt.session)
						return nil
					}

					if _, err := rt.session.Reload(c.Context, nil); err != nil {
						return err
					}
					if c.NArg() == 0 {
						printSources(c.App.Writer, rt.session)
						return nil
					}

					labels := c.Args().Slice()
					sf, err := rt.session.SetSourceFilter(c.Context, labels)
					if err != nil {
						return err
					}
					for _, l := range labels {
						if !sf.Allows(l) {
							fmt.Fprintf(c.App.ErrWriter, "Unknown source %q ignored\n", l)
						}
					}
					printFilters(c.App.Writer, rt.session)
					return nil
				},
			},
			{
				Name:  "reset",
				Usage: "Clear both filters",
				Action: func(c *cli.Context) error {
					return updateFilters(c, func(s *feed.Session) error {
						return s.ResetFilters(c.Context)
					})
				},
			},
		},
	}
}

func updateFilters(c *cli.Context, apply func(*feed.Session) error) error {
	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := apply(rt.session); err != nil {
		return err
	}
	printFilters(c.App.Writer, rt.session)
	return nil
}

func printFilters(w io.Writer, s *feed.Session) {
	timeDesc := s.TimeFilter().Describe()
	if timeDesc == "" {
		timeDesc = "All time"
	}
	sf := s.SourceFilter()
	sourceDesc := "All sources"
	if !sf.Unrestricted() {
		sourceDesc = sf.Describe()
		if sf.Len() > 1 {
			sourceDesc += " (" + strings.Join(sf.Labels(), ", ") + ")"
		}
	}
	fmt.Fprintf(w, "Time:    %s\n", timeDesc)
	fmt.Fprintf(w, "Sources: %s\n", sourceDesc)
}

func printSources(w io.Writer, s *feed.Session) {
	sources := s.AllSources()
	if len(sources) == 0 {
		fmt.Fprintln(w, "No sources available")
		return
	}
	sf := s.SourceFilter()
	for _, label := range sources {
		mark := " "
		if sf.Allows(label) {
			mark = "x"
		}
		fmt.Fprintf(w, "[%s] %s\n", mark, label)
	}
}
