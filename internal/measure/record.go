package measure

import (
	"math"
	"strings"
	"time"
)

// Technology is the radio access generation of a measurement.
type Technology string

const (
	Tech4G Technology = "4G"
	Tech5G Technology = "5G"
)

// ParseTechnology accepts a technology selector ("All", "4G", "5G", "lte", "nr").
// It returns "" for All or unknown values, meaning no restriction.
func ParseTechnology(s string) Technology {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "4g", "lte":
		return Tech4G
	case "5g", "nr":
		return Tech5G
	default:
		return ""
	}
}

// Record is one canonical, fully defaulted measurement. Throughput is in Mbps.
type Record struct {
	Timestamp   time.Time  `json:"timestamp"`
	Hour        int        `json:"hour"`
	Day         int        `json:"day"`
	Date        string     `json:"date"`
	RSRP        float64    `json:"rsrp"`
	RSRQ        float64    `json:"rsrq"`
	SINR        float64    `json:"sinr"`
	SignalClass int        `json:"signalClass"`
	Technology  Technology `json:"technology"`
	Location    string     `json:"location"`
	Throughput  float64    `json:"throughput"`
	Lat         float64    `json:"lat"`
	Lon         float64    `json:"lon"`
	SourceRow   int        `json:"sourceRowIndex"`
}

// Columns lists the canonical record columns in display order.
var Columns = []string{
	"timestamp", "hour", "day", "date", "rsrp", "rsrq", "sinr", "signalClass",
	"technology", "location", "throughput", "lat", "lon", "sourceRowIndex",
}

// NewRecord fills in the fields derived from ts and rsrp.
func NewRecord(ts time.Time, rsrp float64) Record {
	ts = ts.UTC()
	return Record{
		Timestamp:   ts,
		Hour:        ts.Hour(),
		Day:         ts.Day(),
		Date:        ts.Format("2006-01-02"),
		RSRP:        rsrp,
		SignalClass: Classify(rsrp),
	}
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
