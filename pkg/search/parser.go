package search

import (
	"strconv"
	"strings"
)

// ParseQuery extracts inline directives from a typed line and returns the
// query they describe, starting from base.
// Supported:
// /k:<n>              -> ResultCount
// /ai or /overview    -> WantsOverview = true
// /noai or /fast      -> WantsOverview = false
// <text>              -> remaining words are the query text
//
// Unknown directives are kept as query text.
func ParseQuery(raw string, base Query) Query {
	q := base
	parts := strings.Fields(raw)
	var cleanParts []string

	for _, part := range parts {
		lowerPart := strings.ToLower(part)

		switch {
		case strings.HasPrefix(lowerPart, "/k:"):
			if n, err := strconv.Atoi(strings.TrimPrefix(lowerPart, "/k:")); err == nil && n > 0 {
				q.ResultCount = n
			} else {
				cleanParts = append(cleanParts, part)
			}
		case lowerPart == "/ai" || lowerPart == "/overview":
			q.WantsOverview = true
		case lowerPart == "/noai" || lowerPart == "/fast":
			q.WantsOverview = false
		default:
			cleanParts = append(cleanParts, part)
		}
	}

	q.Text = strings.Join(cleanParts, " ")
	return q
}
