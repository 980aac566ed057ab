package query

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/sigloom-cli/internal/analysis"
	"github.com/KaramelBytes/sigloom-cli/internal/measure"
	"github.com/KaramelBytes/sigloom-cli/internal/utils"
)

// NoMatchMessage answers questions whose filters leave no rows.
const NoMatchMessage = "No measurements match those filters. Try a different technology, hour range or day."

// Intent names, in dispatch order.
const (
	IntentNoMatch       = "no_match"
	IntentSchema        = "schema"
	IntentCount         = "count"
	IntentAvgThroughput = "avg_throughput"
	IntentAvgSignal     = "avg_signal"
	IntentClass1Share   = "class1_share"
	IntentTopSectors    = "top_sectors"
	IntentBottomSectors = "bottom_sectors"
	IntentPercentile    = "percentile_throughput"
	IntentWorstRSRP     = "worst_rsrp"
	IntentSummary       = "summary"
)

const (
	defaultTopN       = 5
	maxTopN           = 50
	defaultPercentile = 95
)

// Answer is the result of one question.
type Answer struct {
	Text    string  `json:"text"`
	Intent  string  `json:"intent"`
	Rows    int     `json:"rows"`
	Filters Filters `json:"filters"`
}

// Engine answers free-text questions with a fixed, ordered rule list.
// Selected is the externally chosen technology; empty means all.
type Engine struct {
	Selected measure.Technology
}

// New returns an Engine with the given technology selection.
func New(selected measure.Technology) *Engine {
	return &Engine{Selected: selected}
}

// request is what a rule sees: the lowercased question and the filtered subset.
type request struct {
	q       string
	records []measure.Record
	headers []string
}

type rule struct {
	name   string
	match  func(q string) bool
	answer func(req request) string
}

var rules = []rule{
	{IntentSchema, matchSchema, answerSchema},
	{IntentCount, matchCount, answerCount},
	{IntentAvgThroughput, matchAvgThroughput, answerAvgThroughput},
	{IntentAvgSignal, matchAvgSignal, answerAvgSignal},
	{IntentClass1Share, matchClass1, answerClass1},
	{IntentTopSectors, matchTop, func(req request) string { return answerRanked(req, true) }},
	{IntentBottomSectors, matchBottom, func(req request) string { return answerRanked(req, false) }},
	{IntentPercentile, matchPercentile, answerPercentile},
	{IntentWorstRSRP, matchWorstRSRP, answerWorstRSRP},
}

// Answer filters ds, dispatches the question to the first matching rule and
// formats the reply. It never fails; a nil dataset answers NoMatchMessage.
func (e *Engine) Answer(ds *measure.Dataset, question string) Answer {
	q := strings.ToLower(strings.TrimSpace(question))
	f := ExtractFilters(q, e.Selected)
	var all []measure.Record
	var headers []string
	if ds != nil {
		all, headers = ds.Records, ds.Headers
	}
	subset := f.Apply(all)
	if len(subset) == 0 {
		return Answer{Text: NoMatchMessage, Intent: IntentNoMatch, Filters: f}
	}
	req := request{q: q, records: subset, headers: headers}
	for _, r := range rules {
		if r.match(q) {
			return Answer{Text: r.answer(req), Intent: r.name, Rows: len(subset), Filters: f}
		}
	}
	return Answer{Text: answerSummary(req), Intent: IntentSummary, Rows: len(subset), Filters: f}
}

// Intents returns the rule names in dispatch order, ending with the fallback.
func Intents() []string {
	out := make([]string, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.name)
	}
	return append(out, IntentSummary)
}

func containsAny(q string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

var (
	reCount      = regexp.MustCompile(`\b(how many|count|number of|rows|records)\b`)
	reTop        = regexp.MustCompile(`\btop\b(?:\s+(\d+))?`)
	reBottom     = regexp.MustCompile(`\bbottom\b(?:\s+(\d+))?`)
	rePercentile = regexp.MustCompile(`\bp?(\d+)(?:st|nd|rd|th)?\s*(?:-\s*)?percentile\b|\bp(\d+)\b`)
)

func isAverage(q string) bool { return containsAny(q, "average", "avg", "mean") }

func isThroughput(q string) bool { return containsAny(q, "throughput", "speed") }

func isSector(q string) bool { return containsAny(q, "sector", "location", "site", "cell") }

func matchSchema(q string) bool { return containsAny(q, "column", "schema", "fields") }

func matchCount(q string) bool { return reCount.MatchString(q) }

func matchAvgThroughput(q string) bool { return isAverage(q) && isThroughput(q) }

func matchAvgSignal(q string) bool { return isAverage(q) && containsAny(q, "rsrp", "rsrq", "sinr") }

func matchClass1(q string) bool {
	return containsAny(q, "class 1", "class1", "class-1") && containsAny(q, "coverage", "percent", "share", "%")
}

func matchTop(q string) bool { return reTop.MatchString(q) && isSector(q) && isThroughput(q) }

func matchBottom(q string) bool { return reBottom.MatchString(q) && isSector(q) && isThroughput(q) }

func matchPercentile(q string) bool { return strings.Contains(q, "percentile") && isThroughput(q) }

func matchWorstRSRP(q string) bool { return containsAny(q, "worst", "lowest") && strings.Contains(q, "rsrp") }

func answerSchema(req request) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Columns (%d): %s", len(measure.Columns), strings.Join(measure.Columns, ", ")))
	if len(req.headers) > 0 {
		b.WriteString(fmt.Sprintf("\nSource headers (%d): %s", len(req.headers), strings.Join(req.headers, ", ")))
	}
	return b.String()
}

func answerCount(req request) string {
	return fmt.Sprintf("Count: %s match your question.", measurements(len(req.records)))
}

func answerAvgThroughput(req request) string {
	mbps := analysis.Mean(req.records, measure.FieldThroughput)
	return fmt.Sprintf("Average throughput: %s based on %s.", formatThroughput(mbps), measurements(len(req.records)))
}

func answerAvgSignal(req request) string {
	field, label, unit := measure.FieldRSRP, "RSRP", "dBm"
	switch {
	case strings.Contains(req.q, "rsrp"):
	case strings.Contains(req.q, "rsrq"):
		field, label, unit = measure.FieldRSRQ, "RSRQ", "dB"
	case strings.Contains(req.q, "sinr"):
		field, label, unit = measure.FieldSINR, "SINR", "dB"
	}
	v := analysis.Mean(req.records, field)
	return fmt.Sprintf("Average %s: %.1f %s based on %s.", label, v, unit, measurements(len(req.records)))
}

func answerClass1(req request) string {
	s := analysis.Summarize(req.records, nil)
	return fmt.Sprintf("Class 1 coverage (RSRP >= -70 dBm): %s of %s (%.1f%%).",
		utils.FormatInt(s.Class1Count), measurements(s.Rows), s.Class1Pct)
}

func answerRanked(req request, top bool) string {
	re, word := reTop, "Top"
	if !top {
		re, word = reBottom, "Bottom"
	}
	n := defaultTopN
	if m := re.FindStringSubmatch(req.q); m != nil && m[1] != "" {
		n = clamp(atoi(m[1]), 1, maxTopN)
	}
	cats := analysis.Categories(req.records, measure.FieldLocation, measure.FieldThroughput)
	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].Mean == cats[j].Mean {
			return cats[i].Label < cats[j].Label
		}
		if top {
			return cats[i].Mean > cats[j].Mean
		}
		return cats[i].Mean < cats[j].Mean
	})
	if n > len(cats) {
		n = len(cats)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %d sectors by mean throughput:", word, n))
	for i, c := range cats[:n] {
		b.WriteString(fmt.Sprintf("\n%d. %s: %s (%s)", i+1, c.Label, formatThroughput(c.Mean), measurements(c.Count)))
	}
	return b.String()
}

func answerPercentile(req request) string {
	p := defaultPercentile
	if m := rePercentile.FindStringSubmatch(req.q); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if raw != "" {
			p = clamp(atoi(raw), 1, 99)
		}
	}
	v := analysis.Percentile(req.records, measure.FieldThroughput, float64(p))
	return fmt.Sprintf("%s percentile throughput: %s over %s.", ordinal(p), formatThroughput(v), measurements(len(req.records)))
}

func answerWorstRSRP(req request) string {
	worst := req.records[0]
	for _, r := range req.records[1:] {
		if r.RSRP < worst.RSRP {
			worst = r
		}
	}
	return fmt.Sprintf("Lowest RSRP: %.1f dBm at %s on %s (class %d).",
		worst.RSRP, worst.Location, worst.Timestamp.Format("2006-01-02 15:04 UTC"), worst.SignalClass)
}

func answerSummary(req request) string {
	s := analysis.Summarize(req.records, nil)
	lines := []string{
		fmt.Sprintf("Summary of %s:", measurements(s.Rows)),
		fmt.Sprintf("- Mean throughput: %s", formatThroughput(s.MeanThroughputMbps)),
		fmt.Sprintf("- Mean RSRP: %.1f dBm", s.MeanRSRP),
		fmt.Sprintf("- Mean RSRQ: %.1f dB", s.MeanRSRQ),
		fmt.Sprintf("- Mean SINR: %.1f dB", s.MeanSINR),
		fmt.Sprintf("- Class 1 coverage: %.1f%%", s.Class1Pct),
	}
	return strings.Join(lines, "\n")
}

// formatThroughput renders Mbps as "N kbps (≈ X.X Mbps)".
func formatThroughput(mbps float64) string {
	return fmt.Sprintf("%.0f kbps (≈ %.1f Mbps)", mbps*1000, mbps)
}

func measurements(n int) string {
	if n == 1 {
		return "1 measurement"
	}
	return utils.FormatInt(n) + " measurements"
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
