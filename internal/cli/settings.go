package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

func settingsCmd() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Print the stored preference rows",
		Action: func(c *cli.Context) error {
			rt, err := openRuntime(c)
			if err != nil {
				return err
			}
			defer rt.Close()

			settings, err := rt.db.ListSettings(c.Context)
			if err != nil {
				return err
			}
			if len(settings) == 0 {
				fmt.Fprintln(c.App.Writer, "Nothing stored yet.")
				return nil
			}

			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tTYPE\tUPDATED\tVALUE")
			for _, s := range settings {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Key, s.Type, humanize.Time(s.UpdatedAt), s.Value)
			}
			return tw.Flush()
		},
	}
}
