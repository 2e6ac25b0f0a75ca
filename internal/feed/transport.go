package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultFetchTimeout bounds a single transport attempt.
	DefaultFetchTimeout = 25 * time.Second

	maxFeedBytes = 5 << 20
	acceptHeader = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
	userAgent    = "MorningPages/1.0"
)

// Strategy maps a feed URL to the URL that is actually requested.
type Strategy interface {
	Name() string
	Target(feedURL string) (string, error)
}

// DirectStrategy requests the feed URL itself.
type DirectStrategy struct{}

func (DirectStrategy) Name() string { return "direct" }

func (DirectStrategy) Target(feedURL string) (string, error) { return feedURL, nil }

// RelayStrategy requests {Base}?url={feed URL} from a pass-through relay.
type RelayStrategy struct {
	Base string
}

func (s RelayStrategy) Name() string {
	if u, err := url.Parse(s.Base); err == nil && u.Host != "" {
		return "relay:" + u.Host
	}
	return "relay"
}

func (s RelayStrategy) Target(feedURL string) (string, error) {
	u, err := url.Parse(s.Base)
	if err != nil {
		return "", fmt.Errorf("relay base %q: %w", s.Base, err)
	}
	q := u.Query()
	q.Set("url", feedURL)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseStrategy turns a configured transport entry into a Strategy: "direct"
// or an absolute relay base URL.
func ParseStrategy(entry string) (Strategy, error) {
	if entry == "direct" {
		return DirectStrategy{}, nil
	}
	u, err := url.Parse(entry)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("transport %q: want \"direct\" or an http(s) relay URL", entry)
	}
	return RelayStrategy{Base: entry}, nil
}

// Resolver walks an ordered list of strategies until one yields a body that
// looks like a feed.
type Resolver struct {
	strategies []Strategy
	timeout    time.Duration
	client     *http.Client
	logger     *zap.SugaredLogger
}

func NewResolver(strategies []Strategy, timeout time.Duration, logger *zap.SugaredLogger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Resolver{
		strategies: strategies,
		timeout:    timeout,
		client: &http.Client{Transport: transport, CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			return nil
		}},
		logger: logger,
	}
}

// Strategies returns the names of the configured strategies in order.
func (r *Resolver) Strategies() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// FetchFeedText returns the first classifier-approved body. When every strategy
// fails the error wraps ErrAllTransportsFailed and the last *TransportError.
func (r *Resolver) FetchFeedText(ctx context.Context, feedURL string) (string, error) {
	lastErr := errors.New("no transports configured")
	for _, s := range r.strategies {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %w", ErrAllTransportsFailed, err)
		}

		text, err := r.attempt(ctx, s, feedURL)
		if err == nil {
			transportAttempts.WithLabelValues(s.Name(), "ok").Inc()
			return text, nil
		}
		transportAttempts.WithLabelValues(s.Name(), "error").Inc()
		r.logger.Debugw("Transport attempt failed", "feed", feedURL, "strategy", s.Name(), "error", err)
		lastErr = err
	}
	return "", fmt.Errorf("%w: %w", ErrAllTransportsFailed, lastErr)
}

func (r *Resolver) attempt(ctx context.Context, s Strategy, feedURL string) (string, error) {
	target, err := s.Target(feedURL)
	if err != nil {
		return "", &TransportError{Strategy: s.Name(), Target: feedURL, Err: err}
	}
	fail := func(status int, err error) (string, error) {
		return "", &TransportError{Strategy: s.Name(), Target: target, Status: status, Err: err}
	}

	// Expiry cancels only this attempt.
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, errBadStatus)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return fail(resp.StatusCode, err)
	}
	text := string(body)
	if !LooksLikeFeed(text) {
		return fail(resp.StatusCode, ErrNotAFeed)
	}
	return text, nil
}
