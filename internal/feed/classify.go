package feed

import "strings"

var feedMarkers = []string{"<rss", "<feed", "<rdf:RDF"}

// LooksLikeFeed is a cheap check run before parsing. It rejects empty bodies and
// HTML pages that relays return in place of the upstream document.
func LooksLikeFeed(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	if strings.HasPrefix(t, "<!DOCTYPE html") {
		return false
	}
	for _, marker := range feedMarkers {
		if strings.Contains(t, marker) {
			return true
		}
	}
	return false
}
