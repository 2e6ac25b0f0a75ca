// internal/feed/validation.go
package feed

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrInvalidURL          = errors.New("invalid feed URL")
	ErrDuplicateFeed       = errors.New("feed already subscribed")
	ErrNotAFeed            = errors.New("response does not look like a feed")
	ErrParseFailure        = errors.New("feed document could not be parsed")
	ErrAllTransportsFailed = errors.New("all transports failed")
)

// TransportError describes one failed attempt through a single strategy.
type TransportError struct {
	Strategy string
	Target   string
	// Status is the HTTP status when a response was received, otherwise 0.
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s transport: %s: status %d: %v", e.Strategy, e.Target, e.Status, e.Err)
	}
	return fmt.Sprintf("%s transport: %s: %v", e.Strategy, e.Target, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

var errBadStatus = errors.New("unexpected status")

// ValidateFeedURL checks that raw is an absolute http(s) URL with a host and
// returns it trimmed. It does not touch the network.
func ValidateFeedURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: must use HTTP or HTTPS", ErrInvalidURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return raw, nil
}
