package analysis

import (
	"math"
	"sort"
	"strconv"

	"github.com/KaramelBytes/sigloom-cli/internal/geo"
	"github.com/KaramelBytes/sigloom-cli/internal/measure"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"
)

// Bucket holds the derived metrics of one time bucket. Empty buckets are all zeros.
type Bucket struct {
	Count              int     `json:"count"`
	Class1Count        int     `json:"class1Count"`
	Class1Pct          float64 `json:"class1Pct"`
	MeanRSRP           float64 `json:"meanRsrp"`
	MeanThroughputKbps float64 `json:"meanThroughputKbps"`
}

// HourBucket is the Bucket for one hour of day, 0-23.
type HourBucket struct {
	Hour int `json:"hour"`
	Bucket
}

// DayBucket is the Bucket for one day of month, 1-31.
type DayBucket struct {
	Day int `json:"day"`
	Bucket
}

// bucketAcc accumulates one bucket.
type bucketAcc struct {
	n, class1      int
	sumRSRP, sumTP float64
	nRSRP, nTP     int
}

func (a *bucketAcc) add(r measure.Record) {
	a.n++
	if r.SignalClass == 1 {
		a.class1++
	}
	if finite(r.RSRP) {
		a.sumRSRP += r.RSRP
		a.nRSRP++
	}
	if finite(r.Throughput) {
		a.sumTP += r.Throughput
		a.nTP++
	}
}

func (a *bucketAcc) bucket() Bucket {
	b := Bucket{Count: a.n, Class1Count: a.class1}
	if a.n > 0 {
		b.Class1Pct = float64(a.class1) * 100 / float64(a.n)
	}
	if a.nRSRP > 0 {
		b.MeanRSRP = a.sumRSRP / float64(a.nRSRP)
	}
	if a.nTP > 0 {
		b.MeanThroughputKbps = a.sumTP / float64(a.nTP) * 1000
	}
	return b
}

// ByHour returns 24 buckets, hour 0..23.
func ByHour(records []measure.Record) [24]HourBucket {
	var acc [24]bucketAcc
	for _, r := range records {
		if r.Hour >= 0 && r.Hour < 24 {
			acc[r.Hour].add(r)
		}
	}
	var out [24]HourBucket
	for h := range out {
		out[h] = HourBucket{Hour: h, Bucket: acc[h].bucket()}
	}
	return out
}

// ByDay returns 31 buckets; index 0 is day 1.
func ByDay(records []measure.Record) [31]DayBucket {
	var acc [31]bucketAcc
	for _, r := range records {
		if r.Day >= 1 && r.Day <= 31 {
			acc[r.Day-1].add(r)
		}
	}
	var out [31]DayBucket
	for i := range out {
		out[i] = DayBucket{Day: i + 1, Bucket: acc[i].bucket()}
	}
	return out
}

// CategoryStat is the count and mean of a field within one category.
type CategoryStat struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
}

// Category is a labelled CategoryStat.
type Category struct {
	Label string `json:"label"`
	CategoryStat
}

// ByCategory groups records by key and averages field within each group.
func ByCategory(records []measure.Record, key, field measure.Field) map[string]CategoryStat {
	vals := map[string][]float64{}
	counts := map[string]int{}
	for _, r := range records {
		k := key.Label(r)
		counts[k]++
		if v, ok := field.Value(r); ok && finite(v) {
			vals[k] = append(vals[k], v)
		}
	}
	out := make(map[string]CategoryStat, len(counts))
	for k, n := range counts {
		out[k] = CategoryStat{Count: n, Mean: meanOf(vals[k])}
	}
	return out
}

// Categories is ByCategory sorted by label, numerically when labels are integers.
func Categories(records []measure.Record, key, field measure.Field) []Category {
	m := ByCategory(records, key, field)
	out := make([]Category, 0, len(m))
	for k, s := range m {
		out = append(out, Category{Label: k, CategoryStat: s})
	}
	sort.Slice(out, func(i, j int) bool { return labelLess(out[i].Label, out[j].Label) })
	return out
}

func labelLess(a, b string) bool {
	ai, errA := strconv.Atoi(a)
	bi, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}

// Percentile returns the nearest-rank percentile of field's finite values.
// p is clamped to [0,99]; empty input returns 0.
func Percentile(records []measure.Record, field measure.Field, p float64) float64 {
	vals := values(records, field)
	if len(vals) == 0 {
		return 0
	}
	if math.IsNaN(p) || p < 0 {
		p = 0
	}
	if p > 99 {
		p = 99
	}
	sort.Float64s(vals)
	idx := int(math.Round(p / 100 * float64(len(vals)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx > len(vals)-1 {
		idx = len(vals) - 1
	}
	return vals[idx]
}

// Mean averages field's finite values; empty input returns 0.
func Mean(records []measure.Record, field measure.Field) float64 {
	return meanOf(values(records, field))
}

// FilterTechnology keeps records of tech. An empty tech keeps everything.
func FilterTechnology(records []measure.Record, tech measure.Technology) []measure.Record {
	if tech == "" {
		return records
	}
	out := make([]measure.Record, 0, len(records))
	for _, r := range records {
		if r.Technology == tech {
			out = append(out, r)
		}
	}
	return out
}

// Bounds is the geographic extent of the records.
func Bounds(records []measure.Record) orb.Bound {
	pts := make([]orb.Point, 0, len(records))
	for _, r := range records {
		pts = append(pts, orb.Point{r.Lon, r.Lat})
	}
	return geo.Bounds(pts)
}

func values(records []measure.Record, field measure.Field) []float64 {
	out := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := field.Value(r); ok && finite(v) {
			out = append(out, v)
		}
	}
	return out
}

func meanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return stat.Mean(vals, nil)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
