package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/KaramelBytes/sigloom-cli/internal/analysis"
	"github.com/KaramelBytes/sigloom-cli/internal/logging"
	"github.com/KaramelBytes/sigloom-cli/internal/utils"
)

// maxPromptTokens bounds the user prompt sent for refinement.
const maxPromptTokens = 2000

const refineSystemPrompt = `You are a radio network performance analyst reviewing drive-test results.
You receive a user's question, summary statistics of the dataset, and an answer already computed locally.
Rewrite the local answer as a short, clear explanation for an engineer.
Never change, invent or recompute numbers: every figure you mention must come from the local answer or the summary.
Keep units explicit (dBm, dB, Mbps, kbps). Answer in at most five sentences.`

// RefineRequest is what a Refiner sends to the remote model.
type RefineRequest struct {
	Question    string
	Summary     analysis.SummaryContext
	LocalAnswer string
}

// Refiner asks a Runtime to rephrase a locally computed answer. It is best-effort:
// failures are logged, reported through OnFailure and otherwise ignored.
type Refiner struct {
	Runtime     Runtime
	Model       string
	MaxTokens   int
	Temperature float64
	Logger      logging.Logger
	// OnFailure, if set, is called once per failed refinement.
	OnFailure func(err error)
}

// NewRefiner returns a Refiner with default generation settings.
func NewRefiner(rt Runtime, model string, log logging.Logger) *Refiner {
	if log == nil {
		log = logging.Nop{}
	}
	return &Refiner{Runtime: rt, Model: model, MaxTokens: 400, Temperature: 0.2, Logger: log}
}

// Refine returns the refined answer and true, or "" and false when no
// refinement is available. It never returns an error.
func (r *Refiner) Refine(ctx context.Context, req RefineRequest) (string, bool) {
	if r == nil || r.Runtime == nil {
		return "", false
	}
	log := r.Logger
	if log == nil {
		log = logging.Nop{}
	}
	msgs := BuildRefineMessages(req)
	prompt := 0
	for _, m := range msgs {
		prompt += utils.CountTokens(m.Content)
	}
	log.Debug("refinement prompt: ~%d tokens", prompt)
	resp, err := r.Runtime.Generate(ctx, GenerateRequest{
		Model:       r.Model,
		Messages:    msgs,
		MaxTokens:   r.MaxTokens,
		Temperature: r.Temperature,
	})
	if err == nil && strings.TrimSpace(resp.Content()) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		log.Warn("refinement discarded (%s): %v", Kind(err), err)
		if r.OnFailure != nil {
			r.OnFailure(err)
		}
		return "", false
	}
	log.Debug("refinement ok: request_id=%s tokens=%d", resp.RequestID, resp.Usage.TotalTokens)
	return strings.TrimSpace(resp.Content()), true
}

// RefineAsync runs Refine in its own goroutine. The channel yields at most one
// refined answer and is then closed; callers may stop listening at any time.
func (r *Refiner) RefineAsync(ctx context.Context, req RefineRequest) <-chan string {
	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		if s, ok := r.Refine(ctx, req); ok {
			ch <- s
		}
	}()
	return ch
}

// BuildRefineMessages renders the system and user prompt for req.
func BuildRefineMessages(req RefineRequest) []Message {
	s := req.Summary
	var b strings.Builder
	b.WriteString("QUESTION:\n")
	b.WriteString(strings.TrimSpace(req.Question))
	b.WriteString("\n\nDATASET SUMMARY:\n")
	b.WriteString(fmt.Sprintf("- Rows: %s\n", utils.FormatInt(s.Rows)))
	b.WriteString(fmt.Sprintf("- Mean throughput: %.0f kbps (%.1f Mbps)\n", s.MeanThroughputKbps, s.MeanThroughputMbps))
	b.WriteString(fmt.Sprintf("- Mean RSRP: %.1f dBm\n", s.MeanRSRP))
	b.WriteString(fmt.Sprintf("- Mean RSRQ: %.1f dB\n", s.MeanRSRQ))
	b.WriteString(fmt.Sprintf("- Mean SINR: %.1f dB\n", s.MeanSINR))
	b.WriteString(fmt.Sprintf("- Class 1 coverage: %.1f%%\n", s.Class1Pct))
	if len(s.Columns) > 0 {
		b.WriteString(fmt.Sprintf("- Columns: %s\n", strings.Join(s.Columns, ", ")))
	}
	b.WriteString("\nLOCAL ANSWER:\n")
	b.WriteString(strings.TrimSpace(req.LocalAnswer))
	return []Message{
		{Role: "system", Content: refineSystemPrompt},
		{Role: "user", Content: utils.TruncateToTokenLimit(b.String(), maxPromptTokens)},
	}
}
