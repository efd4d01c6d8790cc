package receipt

import (
	"regexp"
	"unicode/utf8"
)

var (
	codeLike        = regexp.MustCompile(`^\d+[\s/.\-:]`)
	metadataKeyword = regexp.MustCompile(`(?i)^(?:rut|nit|rfc|cuit|fecha|date|hora|time|folio|boleta|factura)\b`)
)

func extractVendor(lines []string) *string {
	if len(lines) > vendorScanLines {
		lines = lines[:vendorScanLines]
	}
	for _, l := range lines {
		if utf8.RuneCountInString(l) < 3 || codeLike.MatchString(l) || metadataKeyword.MatchString(l) {
			continue
		}
		v := truncate(l, vendorMaxLen)
		return &v
	}
	return nil
}
