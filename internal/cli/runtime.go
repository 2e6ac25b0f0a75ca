package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"morningpages/internal/config"
	"morningpages/internal/database"
	"morningpages/internal/feed"
	"morningpages/internal/logger"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// runtime holds what a command needs to work with the reading session.
type runtime struct {
	cfg     config.Config
	log     *zap.SugaredLogger
	db      *database.DB
	session *feed.Session
}

// loadConfig reads the config file and environment, then applies global flags.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}
	if v := c.String("database"); v != "" {
		cfg.DBPath = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, nil
}

func buildStrategies(entries []string) ([]feed.Strategy, error) {
	strategies := make([]feed.Strategy, 0, len(entries))
	for _, entry := range entries {
		s, err := feed.ParseStrategy(entry)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}
	return strategies, nil
}

func openRuntime(c *cli.Context) (*runtime, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	strategies, err := buildStrategies(cfg.Fetch.Transports)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := database.NewDB(cfg.DBPath, database.DefaultConfig())
	if err != nil {
		return nil, err
	}

	resolver := feed.NewResolver(strategies, cfg.Fetch.Timeout, log)
	aggregator := feed.NewAggregator(resolver, feed.NewParser(), feed.AggregatorConfig{
		Concurrency:     cfg.Fetch.Concurrency,
		MaxItemsPerFeed: cfg.Fetch.MaxItemsPerFeed,
	}, log)

	session, err := feed.NewSession(c.Context, db, aggregator, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Debugw("Session ready",
		"db", cfg.DBPath,
		"feeds", len(session.Feeds()),
		"transports", resolver.Strategies(),
	)
	return &runtime{cfg: cfg, log: log, db: db, session: session}, nil
}

func (rt *runtime) Close() {
	if err := rt.db.Close(); err != nil {
		rt.log.Warnw("Closing database", "error", err)
	}
	_ = rt.log.Sync()
}
