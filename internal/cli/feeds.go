package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func feedsCmd() *cli.Command {
	return &cli.Command{
		Name:  "feeds",
		Usage: "Manage subscriptions",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Print subscribed feed URLs in subscription order",
				Action: func(c *cli.Context) error {
					rt, err := openRuntime(c)
					if err != nil {
						return err
					}
					defer rt.Close()

					feeds := rt.session.Feeds()
					if len(feeds) == 0 {
						fmt.Fprintln(c.App.Writer, "No feeds yet.")
						return nil
					}
					for _, u := range feeds {
						fmt.Fprintln(c.App.Writer, u)
					}
					return nil
				},
			},
			{
				Name:      "add",
				Usage:     "Subscribe to a feed",
				ArgsUsage: "<url>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("feeds add takes exactly one url")
					}
					rt, err := openRuntime(c)
					if err != nil {
						return err
					}
					defer rt.Close()

					u, err := rt.session.AddFeed(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Added %s\n", u)
					return nil
				},
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Unsubscribe from a feed",
				ArgsUsage: "<url>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("feeds remove takes exactly one url")
					}
					rt, err := openRuntime(c)
					if err != nil {
						return err
					}
					defer rt.Close()

					u := c.Args().First()
					removed, err := rt.session.RemoveFeed(c.Context, u)
					if err != nil {
						return err
					}
					if !removed {
						return fmt.Errorf("not subscribed to %s", u)
					}
					fmt.Fprintf(c.App.Writer, "Removed %s\n", u)
					return nil
				},
			},
		},
	}
}
