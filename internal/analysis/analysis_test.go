package analysis

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/sigloom-cli/internal/measure"
)

func rec(hourOffset int, rsrp, tp float64, tech measure.Technology, loc string) measure.Record {
	ts := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(hourOffset) * time.Hour)
	r := measure.NewRecord(ts, rsrp)
	r.Throughput = tp
	r.RSRQ = -10
	r.SINR = 15
	r.Technology = tech
	r.Location = loc
	r.Lat, r.Lon = -26.2, 28.0
	return r
}

func sample() []measure.Record {
	var out []measure.Record
	for i := 0; i < 50; i++ {
		tech := measure.Tech4G
		if i%2 == 0 {
			tech = measure.Tech5G
		}
		out = append(out, rec(i, -60-float64(i), float64(10+i), tech, []string{"A", "B", "C"}[i%3]))
	}
	return out
}

func TestBucketTotals(t *testing.T) {
	recs := sample()
	hourly := ByHour(recs)
	daily := ByDay(recs)
	sumH, sumD := 0, 0
	for h, b := range hourly {
		if b.Hour != h {
			t.Fatalf("hour index %d labelled %d", h, b.Hour)
		}
		sumH += b.Count
	}
	for i, b := range daily {
		if b.Day != i+1 {
			t.Fatalf("day index %d labelled %d", i, b.Day)
		}
		sumD += b.Count
	}
	if sumH != len(recs) || sumD != len(recs) {
		t.Fatalf("totals: hourly=%d daily=%d want %d", sumH, sumD, len(recs))
	}
	// Hour 0 holds rows 0, 24 and 48.
	h0 := hourly[0]
	if h0.Count != 3 || h0.Class1Count != 1 {
		t.Fatalf("hour 0: %+v", h0)
	}
	if math.Abs(h0.Class1Pct-100.0/3) > 1e-9 {
		t.Fatalf("hour 0 class1 pct: %v", h0.Class1Pct)
	}
	if math.Abs(h0.MeanThroughputKbps-34000) > 1e-6 || math.Abs(h0.MeanRSRP-(-84)) > 1e-9 {
		t.Fatalf("hour 0 means: %+v", h0)
	}
	if daily[0].Count != 24 || daily[2].Count != 2 || daily[3].Count != 0 {
		t.Fatalf("daily counts: %d %d %d", daily[0].Count, daily[2].Count, daily[3].Count)
	}
}

func TestEmptyInputs(t *testing.T) {
	for _, b := range ByHour(nil) {
		if b.Count != 0 || b.Class1Pct != 0 || b.MeanRSRP != 0 || b.MeanThroughputKbps != 0 {
			t.Fatalf("empty hour bucket not zero: %+v", b)
		}
	}
	for _, b := range ByDay(nil) {
		if b.Count != 0 || b.Class1Pct != 0 || math.IsNaN(b.MeanRSRP) {
			t.Fatalf("empty day bucket not zero: %+v", b)
		}
	}
	if Mean(nil, measure.FieldRSRP) != 0 {
		t.Fatal("mean of nothing should be 0")
	}
	if Percentile(nil, measure.FieldRSRP, 50) != 0 {
		t.Fatal("percentile of nothing should be 0")
	}
	if len(ByCategory(nil, measure.FieldLocation, measure.FieldThroughput)) != 0 {
		t.Fatal("categories of nothing should be empty")
	}
	s := Summarize(nil, nil)
	if s.Rows != 0 || s.Class1Pct != 0 || s.MeanThroughputKbps != 0 {
		t.Fatalf("empty summary: %+v", s)
	}
}

func TestPercentile(t *testing.T) {
	var recs []measure.Record
	for i := 200; i >= 1; i-- {
		recs = append(recs, rec(0, -80, float64(i), measure.Tech4G, "A"))
	}
	cases := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{-5, 1},
		{50, 101},
		{95, 190},
		{99, 198},
		{100, 198},
	}
	for _, c := range cases {
		if got := Percentile(recs, measure.FieldThroughput, c.p); got != c.want {
			t.Errorf("p%.0f: got %v want %v", c.p, got, c.want)
		}
	}
	// Non-finite values are ignored.
	recs = append(recs, rec(0, -80, math.Inf(1), measure.Tech4G, "A"), rec(0, -80, math.NaN(), measure.Tech4G, "A"))
	if got := Percentile(recs, measure.FieldThroughput, 99); got != 198 {
		t.Fatalf("non-finite values should be skipped, got %v", got)
	}
	if got := Mean(recs, measure.FieldThroughput); got != 100.5 {
		t.Fatalf("mean over finite values: got %v", got)
	}
	one := []measure.Record{rec(0, -80, 7, measure.Tech4G, "A")}
	if Percentile(one, measure.FieldThroughput, 99) != 7 || Percentile(one, measure.FieldThroughput, 0) != 7 {
		t.Fatal("single value percentile")
	}
}

func TestCategoriesAndFilter(t *testing.T) {
	recs := sample()
	byLoc := ByCategory(recs, measure.FieldLocation, measure.FieldThroughput)
	if len(byLoc) != 3 {
		t.Fatalf("want 3 locations, got %v", byLoc)
	}
	// A: rows 0,3,...,48 -> throughput 10..58 step 3
	if byLoc["A"].Count != 17 || byLoc["A"].Mean != 34 {
		t.Fatalf("A: %+v", byLoc["A"])
	}
	cats := Categories(recs, measure.FieldClass, measure.FieldRSRP)
	for i := 1; i < len(cats); i++ {
		if !labelLess(cats[i-1].Label, cats[i].Label) {
			t.Fatalf("categories not sorted: %v", cats)
		}
	}
	hours := Categories(recs, measure.FieldHour, measure.FieldThroughput)
	if hours[0].Label != "0" || hours[2].Label != "2" || hours[len(hours)-1].Label != "23" {
		t.Fatalf("hour labels should sort numerically: %v", hours)
	}

	five := FilterTechnology(recs, measure.Tech5G)
	if len(five) != 25 {
		t.Fatalf("5G filter: %d", len(five))
	}
	for _, r := range five {
		if r.Technology != measure.Tech5G {
			t.Fatalf("unexpected tech %s", r.Technology)
		}
	}
	if len(FilterTechnology(recs, "")) != len(recs) {
		t.Fatal("empty selector must keep all rows")
	}
}

func TestSummarize(t *testing.T) {
	recs := []measure.Record{
		rec(0, -65, 80, measure.Tech5G, "A"),
		rec(1, -90, 40, measure.Tech4G, "B"),
	}
	s := Summarize(recs, []string{"rsrp", "throughput"})
	if s.Rows != 2 || s.Class1Count != 1 || s.Class1Pct != 50 {
		t.Fatalf("summary counts: %+v", s)
	}
	if s.MeanThroughputMbps != 60 || s.MeanThroughputKbps != 60000 || s.MeanRSRP != -77.5 {
		t.Fatalf("summary means: %+v", s)
	}
	if len(s.Columns) != 2 {
		t.Fatalf("columns: %v", s.Columns)
	}
}

func TestBoundsAndReport(t *testing.T) {
	recs := sample()
	recs[3].Lat, recs[3].Lon = -26.3, 27.9
	b := Bounds(recs)
	if b.Min.Lat() != -26.3 || b.Max.Lat() != -26.2 || b.Min.Lon() != 27.9 || b.Max.Lon() != 28.0 {
		t.Fatalf("bounds: %+v", b)
	}

	rep := BuildReport("drive.csv", measure.Tech5G, FilterTechnology(recs, measure.Tech5G), measure.Columns)
	md := rep.Markdown()
	for _, want := range []string{
		"# Drive-test report",
		"File: drive.csv",
		"Technology: 5G",
		"Rows: 25",
		"## Hourly",
		"## Daily",
		"## By signal class",
		"Class 1 (excellent",
		"| A |",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
	if BuildReport("", "", nil, nil).Technology != "All" {
		t.Fatal("empty selector should render as All")
	}
}
