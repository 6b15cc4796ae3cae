package normalize

import (
	"regexp"
	"strings"
)

// CategoryOther is the fallback when no pattern matches.
const CategoryOther = "other"

var fundingAmount = regexp.MustCompile(`\$\d+(\.\d+)?\s*(million|billion|[mb])\b`)

// categoryRules is checked in order; the first matching category wins,
// so more specific event kinds sit above broader ones.
var categoryRules = []struct {
	name     string
	keywords []string
}{
	{"acquisition", []string{"acquisition", "acquires", "acquired", "merger", "merges with", "buyout", "takeover"}},
	{"funding", []string{"funding round", "raises", "raised", "series a", "series b", "series c", "seed round", "venture capital"}},
	{"leadership_change", []string{"appoints", "steps down", "resigns", "new ceo", "new cfo", "new cto", "joins as", "named chief"}},
	{"regulation", []string{"regulator", "regulatory", "antitrust", "lawsuit", "sues", "fined", "compliance", "legislation"}},
	{"partnership", []string{"partnership", "partners with", "teams up", "joint venture", "collaboration with", "alliance"}},
	{"hiring", []string{"hiring", "to hire", "new hires", "headcount", "job openings", "recruiting"}},
	{"product_launch", []string{"launches", "launch of", "unveils", "introduces", "releases", "rolls out", "general availability"}},
}

// Categorize labels an item by the kind of event its text describes.
// Always returns a non-empty category.
func Categorize(text string) string {
	lower := strings.ToLower(text)

	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.name
			}
		}
		if rule.name == "funding" && fundingAmount.MatchString(lower) {
			return rule.name
		}
	}
	return CategoryOther
}
