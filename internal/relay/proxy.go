package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

var (
	ErrInvalidTarget = errors.New("invalid target url")
	ErrBlockedTarget = errors.New("blocked target")
)

const (
	upstreamAccept    = "application/rss+xml, application/atom+xml, application/xml, text/xml, */*"
	upstreamUserAgent = "MorningPages-Relay/1.0"
)

// checkTarget parses raw and rejects non-http(s) URLs and local hosts.
func (s *Server) checkTarget(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: missing url parameter", ErrInvalidTarget)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrBlockedTarget, u.Scheme)
	}
	if s.blocked(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrBlockedTarget, u.Hostname())
	}
	return u, nil
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	target, err := s.checkTarget(r.URL.Query().Get("url"))
	if err != nil {
		s.respondTargetError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.Method, target.String(), nil)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid url")
		return
	}
	req.Header.Set("Accept", upstreamAccept)
	req.Header.Set("User-Agent", upstreamUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrBlockedTarget) {
			s.respondTargetError(w, err)
			return
		}
		s.logger.Warnw("Upstream request failed", "target", target.String(), "error", err)
		RespondWithError(w, http.StatusBadGateway, "upstream error")
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		// Headers are already out; all that is left is to note it.
		s.logger.Debugw("Relay stream interrupted", "target", target.String(), "error", err)
	}
}

func (s *Server) respondTargetError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrBlockedTarget) {
		s.logger.Infow("Rejected relay target", "error", err)
		RespondWithError(w, http.StatusForbidden, "blocked target")
		return
	}
	RespondWithError(w, http.StatusBadRequest, "invalid url")
}
