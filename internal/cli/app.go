package cli

import (
	"github.com/urfave/cli/v2"
)

// RootApp assembles the morningpages command tree.
func RootApp() *cli.App {
	return &cli.App{
		Name:  "morningpages",
		Usage: "Merge RSS and Atom feeds into one chronological reading list",
		Description: `Morningpages fetches every subscribed feed, falling back through a
chain of relays when a host refuses a direct request, and prints the merged
items newest first. Time and source filters narrow what is shown and are kept
in a small SQLite preference store alongside the subscription list.

Settings come from an optional YAML file, overridden by environment
variables, overridden by flags, e.g.:

--config => MORNINGPAGES_CONFIG=morningpages.yaml
--database => MORNINGPAGES_DB_PATH=data/morningpages.db
--log-level => MORNINGPAGES_LOG_LEVEL=debug
`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"MORNINGPAGES_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Usage:   "SQLite preference store location",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Commands: []*cli.Command{
			readCmd(),
			feedsCmd(),
			filterCmd(),
			settingsCmd(),
			relayCmd(),
			watchCmd(),
		},
		Action: func(ctx *cli.Context) error {
			return cli.ShowAppHelp(ctx)
		},
	}
}
