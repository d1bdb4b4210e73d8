package overview

import (
	"regexp"
	"strings"
)

// Repairer fixes one known defect in generator output. Repair returns the
// (possibly unchanged) text and whether it changed anything.
type Repairer interface {
	Name() string
	Repair(text string) (string, bool)
}

// DefaultRepairers is the chain applied before structural parsing, in order.
func DefaultRepairers() []Repairer {
	return []Repairer{FenceStripper{}, MissingCommaRepairer{}}
}

const fence = "```"

// FenceStripper removes one leading ``` (optionally tagged json) and one trailing ```.
type FenceStripper struct{}

func (FenceStripper) Name() string { return "fence" }

func (FenceStripper) Repair(text string) (string, bool) {
	content := strings.TrimSpace(text)
	changed := false

	if strings.HasPrefix(content, fence) {
		content = strings.TrimPrefix(content, fence)
		content = strings.TrimPrefix(content, "json")
		changed = true
	}
	if strings.HasSuffix(content, fence) {
		content = strings.TrimSuffix(content, fence)
		changed = true
	}

	if !changed {
		return text, false
	}
	return strings.TrimSpace(content), true
}

// The generator sometimes drops the comma between "overview" and the
// "movie_explanations" key when they are split across lines.
var missingCommaPattern = regexp.MustCompile(`("overview"\s*:\s*"[^"]*")\s*\n\s*("movie_explanations")`)

type MissingCommaRepairer struct{}

func (MissingCommaRepairer) Name() string { return "missing_comma" }

func (MissingCommaRepairer) Repair(text string) (string, bool) {
	if !missingCommaPattern.MatchString(text) {
		return text, false
	}
	return missingCommaPattern.ReplaceAllString(text, "${1},\n  ${2}"), true
}

var overviewFieldPattern = regexp.MustCompile(`"overview"\s*:\s*"([^"]+)"`)

// salvageSummary pulls just the overview string out of text that would not parse.
func salvageSummary(text string) (string, bool) {
	m := overviewFieldPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}
