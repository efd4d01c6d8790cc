package receipt

import (
	"regexp"
	"strconv"
	"strings"
)

var totalPatterns = []*regexp.Regexp{
	// Keyword-anchored totals; longer keywords first so "monto total" wins over "total".
	regexp.MustCompile(`(?i)\b(?:monto\s+total|gran\s+total|total|amount\s+due|neto|net)\s*:?\s*(?:[$€£]|clp|usd|eur|mxn|cop|ars)?\s*(\d[\d.,]*)`),
	// Currency symbol followed by an amount at the end of a line.
	regexp.MustCompile(`(?m)[$€£]\s*(\d[\d.,]*)\s*$`),
	// Bare decimal-looking amount at the end of a line.
	regexp.MustCompile(`(?m)(\d{1,3}(?:[.,]\d{3})*[.,]\d{2})\s*$`),
}

var latinDecimal = regexp.MustCompile(`,\d{2}$`)

// ExtractTotal returns the largest positive amount matched by any total
// pattern, or nil when none parse.
func ExtractTotal(text string) *float64 {
	var (
		best  float64
		found bool
	)
	for _, re := range totalPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v, ok := ParseAmount(m[1])
			if !ok || v <= 0 {
				continue
			}
			if !found || v > best {
				best, found = v, true
			}
		}
	}
	if !found {
		return nil
	}
	return &best
}

// ParseAmount normalizes a numeric token. A token ending in ",dd" is read as
// "1.234,56"; anything else as "1,234.56".
func ParseAmount(token string) (float64, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, false
	}
	var normalized string
	if latinDecimal.MatchString(token) {
		normalized = strings.ReplaceAll(token, ".", "")
		i := strings.LastIndex(normalized, ",")
		normalized = normalized[:i] + "." + normalized[i+1:]
	} else {
		normalized = strings.ReplaceAll(token, ",", "")
	}
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
