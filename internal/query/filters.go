package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/KaramelBytes/sigloom-cli/internal/measure"
)

var (
	reHourRange  = regexp.MustCompile(`\bbetween\s+(\d+)\s*(?:and|to|-)\s*(\d+)\b`)
	reHourSingle = regexp.MustCompile(`\b(?:hour|at)\s+(\d+)\b`)
	reDay        = regexp.MustCompile(`\baug(?:ust)?\s+(\d+)\b`)
)

// Filters narrow the dataset before an intent is answered.
type Filters struct {
	Technology measure.Technology `json:"technology,omitempty"`
	// HourFrom and HourTo are inclusive; HasHours reports whether they apply.
	HasHours bool `json:"hasHours"`
	HourFrom int  `json:"hourFrom"`
	HourTo   int  `json:"hourTo"`
	// Day of month, 0 when unset.
	Day int `json:"day,omitempty"`
}

// ExtractFilters reads filters from a lowercased question. selected is the
// externally chosen technology, used when the question names none.
func ExtractFilters(q string, selected measure.Technology) Filters {
	var f Filters
	padded := " " + q
	switch {
	case strings.Contains(padded, "5g") || strings.Contains(padded, " nr"):
		f.Technology = measure.Tech5G
	case strings.Contains(padded, "4g") || strings.Contains(padded, "lte"):
		f.Technology = measure.Tech4G
	default:
		f.Technology = selected
	}

	if m := reHourRange.FindStringSubmatch(q); m != nil {
		a, b := clamp(atoi(m[1]), 0, 23), clamp(atoi(m[2]), 0, 23)
		if a > b {
			a, b = b, a
		}
		f.HasHours, f.HourFrom, f.HourTo = true, a, b
	} else if m := reHourSingle.FindStringSubmatch(q); m != nil {
		h := clamp(atoi(m[1]), 0, 23)
		f.HasHours, f.HourFrom, f.HourTo = true, h, h
	}

	if m := reDay.FindStringSubmatch(q); m != nil {
		f.Day = clamp(atoi(m[1]), 1, 31)
	}
	return f
}

// Apply returns the records that pass every filter, in order.
func (f Filters) Apply(records []measure.Record) []measure.Record {
	out := make([]measure.Record, 0, len(records))
	for _, r := range records {
		if f.Technology != "" && r.Technology != f.Technology {
			continue
		}
		if f.HasHours && (r.Hour < f.HourFrom || r.Hour > f.HourTo) {
			continue
		}
		if f.Day != 0 && r.Day != f.Day {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (f Filters) String() string {
	var parts []string
	if f.Technology != "" {
		parts = append(parts, "technology="+string(f.Technology))
	}
	if f.HasHours {
		if f.HourFrom == f.HourTo {
			parts = append(parts, fmt.Sprintf("hour=%d", f.HourFrom))
		} else {
			parts = append(parts, fmt.Sprintf("hours=%d-%d", f.HourFrom, f.HourTo))
		}
	}
	if f.Day != 0 {
		parts = append(parts, fmt.Sprintf("day=%d", f.Day))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		// Only overflow gets here; treat as very large.
		return int(^uint(0) >> 1)
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
