package utils

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber reads a locale-formatted number such as "1,234.5", "1.234,5",
// "12 345", "-26,1" or "-80 dBm". A trailing unit and "%" are dropped.
//
// When both ',' and '.' appear, the last one is the decimal separator. A
// single separator repeated more than once is a thousands separator; a lone
// ',' is read as a decimal comma.
func ParseNumber(s string) (float64, bool) {
	raw := strings.ReplaceAll(s, "\u00a0", " ")
	raw = strings.ReplaceAll(raw, "\u202f", " ")
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.TrimSpace(raw)
	raw = strings.TrimRightFunc(raw, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == ' ' || r == '/' || r == '°'
	})
	if raw == "" {
		return 0, false
	}

	lastComma := strings.LastIndex(raw, ",")
	lastDot := strings.LastIndex(raw, ".")
	var dec, thou string
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			dec, thou = ",", "."
		} else {
			dec, thou = ".", ","
		}
	case lastComma >= 0:
		if strings.Count(raw, ",") > 1 {
			thou = ","
		} else {
			dec = ","
		}
	case lastDot >= 0:
		if strings.Count(raw, ".") > 1 {
			thou = "."
		} else {
			dec = "."
		}
	}

	raw = strings.ReplaceAll(raw, " ", "")
	if thou != "" {
		raw = strings.ReplaceAll(raw, thou, "")
	}
	if dec == "," {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
