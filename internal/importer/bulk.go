package importer

import (
	"net/url"
	"strings"
)

// Candidate is a URL taken from one line of a bulk submission
type Candidate struct {
	Line int
	URL  string
}

// ParseBulk extracts one candidate per non-empty line, taking the first
// whitespace separated token. Malformed and repeated URLs are reported as
// results instead of candidates. Line numbers start at 1.
func ParseBulk(text string) ([]Candidate, []RowResult) {
	var (
		candidates []Candidate
		rejected   []RowResult
	)
	seen := make(map[string]bool)

	for i, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		lineNo := i + 1
		raw := fields[0]

		if !isWebURL(raw) {
			rejected = append(rejected, RowResult{Line: lineNo, URL: raw, Status: StatusError, Reason: ReasonIncorrectURL})
			continue
		}
		if seen[raw] {
			rejected = append(rejected, RowResult{Line: lineNo, URL: raw, Status: StatusError, Reason: ReasonDuplicate})
			continue
		}
		seen[raw] = true
		candidates = append(candidates, Candidate{Line: lineNo, URL: raw})
	}
	return candidates, rejected
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
