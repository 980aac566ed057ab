package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/sigloom-cli/internal/measure"
	"github.com/KaramelBytes/sigloom-cli/internal/utils"
	"github.com/paulmach/orb"
)

// Report is a markdown-friendly analysis of a drive-test dataset.
type Report struct {
	Source       string         `json:"source"`
	Technology   string         `json:"technology"`
	Summary      SummaryContext `json:"summary"`
	Hourly       [24]HourBucket `json:"hourly"`
	Daily        [31]DayBucket  `json:"daily"`
	ByTechnology []Category     `json:"byTechnology"`
	ByClass      []Category     `json:"byClass"`
	ByLocation   []Category     `json:"byLocation"`
	P95Kbps      float64        `json:"p95ThroughputKbps"`
	Extent       orb.Bound      `json:"extent"`
	Generated    time.Time      `json:"generatedAt"`
}

// BuildReport aggregates records into a Report. tech is the selector that
// produced records and is recorded only for display.
func BuildReport(source string, tech measure.Technology, records []measure.Record, columns []string) *Report {
	label := string(tech)
	if label == "" {
		label = "All"
	}
	return &Report{
		Source:       source,
		Technology:   label,
		Summary:      Summarize(records, columns),
		Hourly:       ByHour(records),
		Daily:        ByDay(records),
		ByTechnology: Categories(records, measure.FieldTechnology, measure.FieldThroughput),
		ByClass:      Categories(records, measure.FieldClass, measure.FieldRSRP),
		ByLocation:   Categories(records, measure.FieldLocation, measure.FieldThroughput),
		P95Kbps:      Percentile(records, measure.FieldThroughput, 95) * 1000,
		Extent:       Bounds(records),
		Generated:    time.Now().UTC(),
	}
}

// Markdown renders the report as a standalone document.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# Drive-test report\n\n")
	if r.Source != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Source))
	}
	b.WriteString(fmt.Sprintf("Technology: %s\n", r.Technology))
	b.WriteString(fmt.Sprintf("Rows: %s\n\n", utils.FormatInt(r.Summary.Rows)))

	s := r.Summary
	b.WriteString("## KPIs\n\n")
	b.WriteString(fmt.Sprintf("- Mean throughput: %.0f kbps (%.1f Mbps)\n", s.MeanThroughputKbps, s.MeanThroughputMbps))
	b.WriteString(fmt.Sprintf("- P95 throughput: %.0f kbps\n", r.P95Kbps))
	b.WriteString(fmt.Sprintf("- Mean RSRP: %.1f dBm\n", s.MeanRSRP))
	b.WriteString(fmt.Sprintf("- Mean RSRQ: %.1f dB\n", s.MeanRSRQ))
	b.WriteString(fmt.Sprintf("- Mean SINR: %.1f dB\n", s.MeanSINR))
	b.WriteString(fmt.Sprintf("- Class 1 coverage: %.1f%% (%s rows)\n", s.Class1Pct, utils.FormatInt(s.Class1Count)))
	if s.Rows > 0 {
		e := r.Extent
		b.WriteString(fmt.Sprintf("- Extent: lat %.4f..%.4f, lon %.4f..%.4f\n", e.Min.Lat(), e.Max.Lat(), e.Min.Lon(), e.Max.Lon()))
	}
	b.WriteString("\n")

	b.WriteString("## Hourly\n\n")
	b.WriteString("| Hour | Rows | Class 1 % | Mean RSRP (dBm) | Mean throughput (kbps) |\n")
	b.WriteString("|---:|---:|---:|---:|---:|\n")
	for _, h := range r.Hourly {
		if h.Count == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("| %02d | %s | %.1f | %.1f | %.0f |\n", h.Hour, utils.FormatInt(h.Count), h.Class1Pct, h.MeanRSRP, h.MeanThroughputKbps))
	}
	b.WriteString("\n")

	b.WriteString("## Daily\n\n")
	b.WriteString("| Day | Rows | Class 1 | Class 1 % | Mean RSRP (dBm) | Mean throughput (kbps) |\n")
	b.WriteString("|---:|---:|---:|---:|---:|---:|\n")
	for _, d := range r.Daily {
		if d.Count == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("| %d | %s | %s | %.1f | %.1f | %.0f |\n", d.Day, utils.FormatInt(d.Count), utils.FormatInt(d.Class1Count), d.Class1Pct, d.MeanRSRP, d.MeanThroughputKbps))
	}
	b.WriteString("\n")

	writeCategories(&b, "By technology", "Technology", "Mean throughput (Mbps)", r.ByTechnology, s.Rows)
	classes := make([]Category, len(r.ByClass))
	for i, c := range r.ByClass {
		c.Label = classLabel(c.Label)
		classes[i] = c
	}
	writeCategories(&b, "By signal class", "Class", "Mean RSRP (dBm)", classes, s.Rows)
	writeCategories(&b, "By location", "Location", "Mean throughput (Mbps)", r.ByLocation, s.Rows)
	return b.String()
}

func writeCategories(b *strings.Builder, title, key, metric string, cats []Category, total int) {
	if len(cats) == 0 {
		return
	}
	b.WriteString(fmt.Sprintf("## %s\n\n", title))
	b.WriteString(fmt.Sprintf("| %s | Rows | Share %% | %s |\n", key, metric))
	b.WriteString("|---|---:|---:|---:|\n")
	for _, c := range cats {
		share := 0.0
		if total > 0 {
			share = float64(c.Count) * 100 / float64(total)
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %.1f | %.1f |\n", safeVal(c.Label), utils.FormatInt(c.Count), share, c.Mean))
	}
	b.WriteString("\n")
}

func classLabel(s string) string {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return s
	}
	return measure.ClassLabel(n)
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
