package signal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var fundingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\$(\d+(?:\.\d+)?)\s*(billion|million|[bm]\b)`),
	regexp.MustCompile(`(?i)raised\s+\$?(\d+(?:\.\d+)?)\s*(billion|million|[bm]\b)`),
	regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(billion|million|[bm]\b)\s+(?:funding|investment|round)`),
}

// extractFundingAmount parses a dollar amount ("raised $120M", "$1.5
// billion round") out of free text. Returns 0 when none is found.
func extractFundingAmount(text string) float64 {
	for _, pattern := range fundingPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		amount, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		unit := strings.ToLower(m[2])
		if strings.HasPrefix(unit, "b") {
			return amount * 1_000_000_000
		}
		return amount * 1_000_000
	}
	return 0
}

var hiringPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)hiring\s+(\d+)`),
	regexp.MustCompile(`(?i)(\d+)\s+(?:new\s+)?(?:employees|positions|roles|jobs)`),
	regexp.MustCompile(`(?i)adding\s+(\d+)\s+(?:employees|positions)`),
}

func extractHiringCount(text string) int {
	for _, pattern := range hiringPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		count, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return count
	}
	return 0
}

func formatAmount(amount float64) string {
	switch {
	case amount >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", amount/1_000_000_000)
	case amount >= 1_000_000:
		return fmt.Sprintf("%.1fM", amount/1_000_000)
	default:
		return fmt.Sprintf("%.0fK", amount/1_000)
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
