// internal/feed/service.go
package feed

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	DefaultRefreshInterval = 15 * time.Minute
	defaultRetryInterval   = 30 * time.Second
)

type ServiceConfig struct {
	// Interval is the wait between successful cycles.
	Interval time.Duration
	// RetryInterval is the first wait after a cycle in which every feed failed.
	// Consecutive failed cycles back off exponentially up to Interval.
	RetryInterval time.Duration
}

// Service reloads a session periodically.
type Service struct {
	session *Session
	logger  *zap.SugaredLogger
	cfg     ServiceConfig
}

func NewService(session *Session, cfg ServiceConfig, logger *zap.SugaredLogger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultRefreshInterval
	}
	if cfg.RetryInterval <= 0 || cfg.RetryInterval > cfg.Interval {
		cfg.RetryInterval = min(defaultRetryInterval, cfg.Interval)
	}
	return &Service{session: session, logger: logger, cfg: cfg}
}

// Run reloads immediately and then on every tick until ctx is done. onCycle,
// if set, receives each completed cycle.
func (s *Service) Run(ctx context.Context, onCycle func(*LoadResult)) error {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = s.cfg.RetryInterval
	retry.MaxInterval = s.cfg.Interval
	retry.Multiplier = 2
	retry.MaxElapsedTime = 0
	retry.Reset()

	s.logger.Infow("Starting feed service update loop", "interval", s.cfg.Interval)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Infow("Feed service shutting down")
			return ctx.Err()
		case <-timer.C:
		}

		result, err := s.session.Reload(ctx, nil)
		if err != nil {
			s.logger.Errorw("Saving source filter after reload failed", "error", err)
		}
		if ctx.Err() != nil {
			continue
		}
		if onCycle != nil {
			onCycle(result)
		}

		wait := s.cfg.Interval
		if len(result.Outcomes) > 0 && result.Succeeded() == 0 {
			wait = retry.NextBackOff()
			s.logger.Warnw("Every feed failed, retrying early", "cycle", result.CycleID, "wait", wait)
		} else {
			retry.Reset()
		}
		timer.Reset(wait)
	}
}
