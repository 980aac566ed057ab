package ingest

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/sigloom-cli/internal/geo"
	"github.com/KaramelBytes/sigloom-cli/internal/measure"
	"github.com/KaramelBytes/sigloom-cli/internal/utils"
	"github.com/paulmach/orb"
)

// Defaults substituted for missing or unparseable values.
const (
	DefaultRSRQ           = -10.0
	DefaultSINR           = 15.0
	DefaultThroughputMin  = 50.0
	DefaultThroughputSpan = 100.0
)

// DefaultBaseDate anchors synthesized timestamps.
var DefaultBaseDate = time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

// Options controls normalization. The zero value is usable.
type Options struct {
	// BaseDate anchors synthesized timestamps; zero means DefaultBaseDate.
	BaseDate time.Time
	// Center is the fallback coordinate center; zero means geo.DefaultCenter.
	Center orb.Point
	// Rand drives default throughput and coordinate jitter. Nil seeds from the clock.
	Rand *rand.Rand
}

// Result is the outcome of one normalization pass.
type Result struct {
	Records []measure.Record
	// Defaulted counts, per field, the rows that fell back to a default.
	Defaulted map[measure.Field]int
}

// numericField describes how one float field is read and defaulted.
type numericField struct {
	field measure.Field
	set   func(*measure.Record, float64)
	def   func(*rand.Rand) float64
	scale float64
}

// Normalize turns raw rows into canonical records, one per row, in order.
// It fails only when there are no rows.
func Normalize(t *Table, mapping FieldMapping, opt Options) (*Result, error) {
	if t == nil || len(t.Rows) == 0 {
		name := ""
		if t != nil {
			name = t.Name
		}
		return nil, &IngestionError{Source: name, Err: ErrNoRows}
	}
	base := opt.BaseDate
	if base.IsZero() {
		base = DefaultBaseDate
	}
	center := opt.Center
	if center == (orb.Point{}) {
		center = geo.DefaultCenter
	}
	rng := opt.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	idx := columnIndex(t.Headers, mapping)
	fields := numericFields(mapping)
	res := &Result{
		Records:   make([]measure.Record, 0, len(t.Rows)),
		Defaulted: map[measure.Field]int{},
	}

	for i, row := range t.Rows {
		cell := func(f measure.Field) (string, bool) {
			j, ok := idx[f]
			if !ok || j >= len(row) {
				return "", false
			}
			v := strings.TrimSpace(row[j])
			return v, v != ""
		}

		ts, ok := time.Time{}, false
		if raw, present := cell(measure.FieldTimestamp); present {
			ts, ok = parseTimestamp(raw)
		}
		if !ok {
			ts = base.AddDate(0, 0, i/24).Add(time.Duration(i%24) * time.Hour)
			res.Defaulted[measure.FieldTimestamp]++
		}

		rsrp, ok := parseCell(cell, measure.FieldRSRP, 1)
		if !ok {
			rsrp = measure.DefaultRSRP
			res.Defaulted[measure.FieldRSRP]++
		}
		rec := measure.NewRecord(ts, measure.Round1(rsrp))
		rec.SourceRow = i

		for _, nf := range fields {
			v, ok := parseCell(cell, nf.field, nf.scale)
			if !ok {
				v = nf.def(rng)
				res.Defaulted[nf.field]++
			}
			nf.set(&rec, measure.Round1(v))
		}

		rec.Technology = measure.Tech4G
		if raw, present := cell(measure.FieldTechnology); present {
			rec.Technology = parseTechnology(raw)
		} else {
			res.Defaulted[measure.FieldTechnology]++
		}

		if raw, present := cell(measure.FieldLocation); present {
			rec.Location = raw
		} else {
			rec.Location = fmt.Sprintf("Sector_%d", i/24+1)
			res.Defaulted[measure.FieldLocation]++
		}

		var pt orb.Point
		latRaw, latOK := cell(measure.FieldLatitude)
		lonRaw, lonOK := cell(measure.FieldLongitude)
		if latOK && lonOK {
			pt, ok = geo.ParseValid(latRaw, lonRaw)
		} else {
			ok = false
		}
		if !ok {
			pt = geo.Fallback(center, i, rng)
			res.Defaulted[measure.FieldLatitude]++
			res.Defaulted[measure.FieldLongitude]++
		}
		rec.Lat, rec.Lon = pt.Lat(), pt.Lon()

		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// numericFields is the (field, parser, default) table for the float fields
// other than RSRP, which is resolved first because the class derives from it.
func numericFields(mapping FieldMapping) []numericField {
	throughputScale := 1.0
	if strings.Contains(strings.ToLower(mapping[measure.FieldThroughput]), "kbps") {
		throughputScale = 0.001
	}
	return []numericField{
		{
			field: measure.FieldRSRQ,
			set:   func(r *measure.Record, v float64) { r.RSRQ = v },
			def:   func(*rand.Rand) float64 { return DefaultRSRQ },
			scale: 1,
		},
		{
			field: measure.FieldSINR,
			set:   func(r *measure.Record, v float64) { r.SINR = v },
			def:   func(*rand.Rand) float64 { return DefaultSINR },
			scale: 1,
		},
		{
			field: measure.FieldThroughput,
			set:   func(r *measure.Record, v float64) { r.Throughput = v },
			def: func(rng *rand.Rand) float64 {
				return DefaultThroughputMin + rng.Float64()*DefaultThroughputSpan
			},
			scale: throughputScale,
		},
	}
}

func columnIndex(headers []string, mapping FieldMapping) map[measure.Field]int {
	pos := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	idx := map[measure.Field]int{}
	for f, col := range mapping {
		if col == "" {
			continue
		}
		if i, ok := pos[col]; ok {
			idx[f] = i
		}
	}
	return idx
}

func parseCell(cell func(measure.Field) (string, bool), f measure.Field, scale float64) (float64, bool) {
	raw, ok := cell(f)
	if !ok {
		return 0, false
	}
	v, ok := utils.ParseNumber(raw)
	if !ok {
		return 0, false
	}
	return v * scale, true
}

func parseTechnology(raw string) measure.Technology {
	v := strings.ToLower(raw)
	for _, c := range []string{"5g", "nr", "new"} {
		if strings.Contains(v, c) {
			return measure.Tech5G
		}
	}
	return measure.Tech4G
}

// Slash dates without a leading year are month first.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"02-Jan-2006 15:04:05",
}

// parseTimestamp tries the known layouts, then Unix seconds or milliseconds.
// Values without a zone are read as UTC.
func parseTimestamp(s string) (time.Time, bool) {
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), true
		}
		if n > 1e9 {
			return time.Unix(n, 0).UTC(), true
		}
	}
	return time.Time{}, false
}
