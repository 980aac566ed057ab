package analysis

import "github.com/KaramelBytes/sigloom-cli/internal/measure"

// SummaryContext holds the KPI scalars of a record subset.
type SummaryContext struct {
	Rows               int      `json:"rows"`
	MeanThroughputMbps float64  `json:"meanThroughputMbps"`
	MeanThroughputKbps float64  `json:"meanThroughputKbps"`
	MeanRSRP           float64  `json:"meanRsrp"`
	MeanRSRQ           float64  `json:"meanRsrq"`
	MeanSINR           float64  `json:"meanSinr"`
	Class1Count        int      `json:"class1Count"`
	Class1Pct          float64  `json:"class1Pct"`
	Columns            []string `json:"columns"`
}

// Summarize computes the KPI scalars of records. columns is carried through as-is.
func Summarize(records []measure.Record, columns []string) SummaryContext {
	s := SummaryContext{
		Rows:     len(records),
		MeanRSRP: Mean(records, measure.FieldRSRP),
		MeanRSRQ: Mean(records, measure.FieldRSRQ),
		MeanSINR: Mean(records, measure.FieldSINR),
		Columns:  append([]string(nil), columns...),
	}
	s.MeanThroughputMbps = Mean(records, measure.FieldThroughput)
	s.MeanThroughputKbps = s.MeanThroughputMbps * 1000
	for _, r := range records {
		if r.SignalClass == 1 {
			s.Class1Count++
		}
	}
	if s.Rows > 0 {
		s.Class1Pct = float64(s.Class1Count) * 100 / float64(s.Rows)
	}
	return s
}
