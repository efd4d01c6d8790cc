// Package receipt extracts a best-effort summary from OCR text of Spanish or
// English receipts. Parsing never fails; missing fields are nil.
package receipt

import (
	"strings"
	"unicode/utf8"
)

const (
	vendorScanLines      = 3
	vendorMaxLen         = 100
	descriptionLines     = 5
	descriptionMaxLen    = 200
	descriptionSeparator = " | "
)

// ParsedReceipt is the structured summary of a receipt.
type ParsedReceipt struct {
	Total       *float64 `json:"total"`
	Date        *string  `json:"date"`
	Vendor      *string  `json:"vendor"`
	Description string   `json:"description"`
}

// Parse extracts total, date, vendor and description from raw text.
func Parse(text string) ParsedReceipt {
	lines := nonBlankLines(text)
	return ParsedReceipt{
		Total:       ExtractTotal(text),
		Date:        ExtractDate(text),
		Vendor:      extractVendor(lines),
		Description: describe(lines),
	}
}

func nonBlankLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func describe(lines []string) string {
	if len(lines) > descriptionLines {
		lines = lines[:descriptionLines]
	}
	return truncate(strings.Join(lines, descriptionSeparator), descriptionMaxLen)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
