package receipt

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	numericDate = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4})\b`)
	isoDate     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	textualDate = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(?:de\s+)?([a-záéíóúñ]+)\.?,?\s+(?:de\s+|del\s+)?(\d{4})\b`)
)

var months = map[string]int{
	"enero": 1, "ene": 1, "january": 1, "jan": 1,
	"febrero": 2, "feb": 2, "february": 2,
	"marzo": 3, "mar": 3, "march": 3,
	"abril": 4, "abr": 4, "april": 4, "apr": 4,
	"mayo": 5, "may": 5,
	"junio": 6, "jun": 6, "june": 6,
	"julio": 7, "jul": 7, "july": 7,
	"agosto": 8, "ago": 8, "august": 8, "aug": 8,
	"septiembre": 9, "setiembre": 9, "sep": 9, "sept": 9, "set": 9, "september": 9,
	"octubre": 10, "oct": 10, "october": 10,
	"noviembre": 11, "nov": 11, "november": 11,
	"diciembre": 12, "dic": 12, "december": 12, "dec": 12,
}

// ExtractDate returns the first valid calendar date found as YYYY-MM-DD.
// Numeric dates are read day first.
func ExtractDate(text string) *string {
	for _, m := range numericDate.FindAllStringSubmatch(text, -1) {
		if d, ok := formatDate(m[3], m[2], m[1]); ok {
			return &d
		}
	}
	for _, m := range isoDate.FindAllStringSubmatch(text, -1) {
		if d, ok := formatDate(m[1], m[2], m[3]); ok {
			return &d
		}
	}
	for _, m := range textualDate.FindAllStringSubmatch(text, -1) {
		month, ok := months[strings.ToLower(m[2])]
		if !ok {
			continue
		}
		if d, ok := formatDate(m[3], strconv.Itoa(month), m[1]); ok {
			return &d
		}
	}
	return nil
}

func formatDate(year, month, day string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 {
		return "", false
	}
	// time.Date normalizes overflow, so 31/02 comes back as March.
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m {
		return "", false
	}
	return t.Format("2006-01-02"), true
}
