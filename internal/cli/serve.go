package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"morningpages/internal/feed"
	"morningpages/internal/logger"
	"morningpages/internal/relay"

	"github.com/urfave/cli/v2"
)

func relayCmd() *cli.Command {
	return &cli.Command{
		Name:  "relay",
		Usage: "Run the pass-through feed relay",
		Description: `Serves GET /proxy?url=<target>, returning the target's body and status
with permissive cross-origin headers. Loopback and private network targets
are refused. /healthz and /metrics are served alongside.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "listen port (overrides config)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if p := c.Int("port"); p > 0 {
				cfg.Relay.Port = p
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signalContext(c.Context)
			defer stop()

			srv := relay.NewServer(relay.Config{Addr: cfg.GetAddress(), Timeout: cfg.Relay.Timeout}, log)
			return srv.ListenAndServe(ctx)
		},
	}
}

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Reload all feeds periodically and print new items",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "time between reloads (overrides config, minimum 1m)",
			},
		},
		Action: func(c *cli.Context) error {
			rt, err := openRuntime(c)
			if err != nil {
				return err
			}
			defer rt.Close()

			interval := rt.cfg.Watch.Interval
			if d := c.Duration("interval"); d > 0 {
				rt.cfg.Watch.Interval = d
				if err := rt.cfg.Validate(); err != nil {
					return err
				}
				interval = rt.cfg.Watch.Interval
			}

			ctx, stop := signalContext(c.Context)
			defer stop()

			seen := make(map[string]bool)
			svc := feed.NewService(rt.session, feed.ServiceConfig{Interval: interval}, rt.log)
			err = svc.Run(ctx, func(result *feed.LoadResult) {
				reportFailures(c.App.ErrWriter, result)
				var fresh []feed.Item
				for _, it := range rt.session.Visible() {
					key := itemKey(it)
					if !seen[key] {
						seen[key] = true
						fresh = append(fresh, it)
					}
				}
				if len(fresh) > 0 {
					writeItems(c.App.Writer, fresh, timeNow())
				}
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}

func itemKey(it feed.Item) string {
	if it.Link != "" {
		return it.Link
	}
	return it.FeedURL + "\x00" + it.Title
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
