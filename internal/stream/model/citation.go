package model

import (
	"net/url"
	"strings"
)

// Citation is the display record derived from a source URL.
type Citation struct {
	Title string
	URL   string
}

// BuildCitations projects source URLs into citations, keeping the first
// occurrence of each URL in order.
func BuildCitations(sources []string) []Citation {
	if len(sources) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(sources))
	out := make([]Citation, 0, len(sources))
	for _, raw := range sources {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		out = append(out, Citation{Title: citationTitle(raw), URL: raw})
	}
	return out
}

func citationTitle(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
