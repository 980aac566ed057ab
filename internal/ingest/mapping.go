package ingest

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/KaramelBytes/sigloom-cli/internal/measure"
)

// FieldMapping maps a canonical field to a source column name; "" means unmapped.
type FieldMapping map[measure.Field]string

// Clone returns an independent copy.
func (m FieldMapping) Clone() FieldMapping {
	out := make(FieldMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Set overrides the column for a field. An empty column unmaps the field.
func (m FieldMapping) Set(f measure.Field, column string) {
	m[f] = strings.TrimSpace(column)
}

// Apply parses "field=column" overrides and applies them. Column names must
// exist in headers unless empty.
func (m FieldMapping) Apply(overrides []string, headers []string) error {
	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}
	for _, o := range overrides {
		k, v, ok := strings.Cut(o, "=")
		if !ok {
			return fmt.Errorf("invalid mapping override %q (want field=column)", o)
		}
		f, err := measure.ParseField(k)
		if err != nil {
			return err
		}
		if !isMappable(f) {
			return fmt.Errorf("field %s cannot be mapped to a source column", f)
		}
		v = strings.TrimSpace(v)
		if v != "" && !known[v] {
			return fmt.Errorf("column %q not found in headers", v)
		}
		m.Set(f, v)
	}
	return nil
}

// String renders the mapping in canonical field order.
func (m FieldMapping) String() string {
	var b strings.Builder
	for _, f := range measure.MappableFields {
		col := m[f]
		if col == "" {
			col = "(unmapped)"
		}
		fmt.Fprintf(&b, "%-10s <- %s\n", f, col)
	}
	return b.String()
}

func isMappable(f measure.Field) bool {
	for _, m := range measure.MappableFields {
		if m == f {
			return true
		}
	}
	return false
}

var latPatterns = []string{
	"lat", "Lat", "LAT", "latitude", "Latitude", "LATITUDE",
	"lat_deg", "Lat_Deg", "LAT_DEG", "gps_lat", "GPS_Lat", "GPS_LAT",
}

var lonPatterns = []string{
	"lon", "Lon", "LON", "lng", "Lng", "LNG", "long", "Long", "LONG",
	"longitude", "Longitude", "LONGITUDE", "lon_deg", "Lon_Deg", "LON_DEG",
	"gps_lon", "GPS_Lon", "GPS_LON",
}

type cue struct {
	text  string
	token bool // match a whole word only
}

type fieldCues struct {
	field measure.Field
	cues  []cue
}

// Other fields in canonical order. Short or ambiguous cues match whole words.
var headerCues = []fieldCues{
	{measure.FieldTimestamp, []cue{{text: "time"}, {text: "date"}}},
	{measure.FieldRSRP, []cue{{text: "rsrp"}, {text: "signal strength"}}},
	{measure.FieldRSRQ, []cue{{text: "rsrq"}, {text: "quality"}}},
	{measure.FieldSINR, []cue{{text: "sinr"}, {text: "snr"}}},
	{measure.FieldTechnology, []cue{{text: "tech"}, {text: "rat", token: true}, {text: "generation"}}},
	{measure.FieldLocation, []cue{{text: "location"}, {text: "sector"}, {text: "cell"}, {text: "site"}}},
	{measure.FieldThroughput, []cue{{text: "throughput"}, {text: "speed"}, {text: "rate"}, {text: "kbps"}, {text: "mbps"}}},
}

// Propose suggests a mapping from headers. It is a heuristic; callers may override it.
func Propose(headers []string) FieldMapping {
	m := FieldMapping{}
	claimed := map[int]bool{}

	pick := func(f measure.Field, patterns []string) {
		for _, p := range patterns {
			for i, h := range headers {
				if !claimed[i] && strings.TrimSpace(h) == p {
					m[f] = h
					claimed[i] = true
					return
				}
			}
		}
	}
	pick(measure.FieldLatitude, latPatterns)
	pick(measure.FieldLongitude, lonPatterns)

	for _, fc := range headerCues {
		for i, h := range headers {
			if claimed[i] {
				continue
			}
			if matchesAny(normalizeHeader(h), fc.cues) {
				m[fc.field] = h
				claimed[i] = true
				break
			}
		}
	}
	for _, f := range measure.MappableFields {
		if _, ok := m[f]; !ok {
			m[f] = ""
		}
	}
	return m
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Map(func(r rune) rune {
		if r == '_' || r == '-' || r == '.' {
			return ' '
		}
		return r
	}, h)
}

func matchesAny(h string, cues []cue) bool {
	var words []string
	for _, c := range cues {
		if !c.token {
			if strings.Contains(h, c.text) {
				return true
			}
			continue
		}
		if words == nil {
			words = strings.FieldsFunc(h, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		}
		for _, w := range words {
			if w == c.text {
				return true
			}
		}
	}
	return false
}

// Unmapped lists fields without a source column, sorted.
func (m FieldMapping) Unmapped() []string {
	var out []string
	for _, f := range measure.MappableFields {
		if m[f] == "" {
			out = append(out, string(f))
		}
	}
	sort.Strings(out)
	return out
}
