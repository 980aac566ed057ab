package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/sigloom-cli/internal/analysis"
	"github.com/KaramelBytes/sigloom-cli/internal/logging"
	"github.com/KaramelBytes/sigloom-cli/internal/utils"
)

type fakeRuntime struct {
	resp *GenerateResponse
	err  error
	got  GenerateRequest
	wait time.Duration
}

func (f *fakeRuntime) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	f.got = req
	if f.wait > 0 {
		select {
		case <-time.After(f.wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.resp, f.err
}

func sampleRequest() RefineRequest {
	return RefineRequest{
		Question:    "average throughput on 5g",
		Summary:     analysis.SummaryContext{Rows: 1234, MeanThroughputMbps: 80, MeanThroughputKbps: 80000, MeanRSRP: -81.3, Class1Pct: 12.5, Columns: []string{"rsrp", "throughput"}},
		LocalAnswer: "Average throughput: 80000 kbps (≈ 80.0 Mbps) based on 1 measurement.",
	}
}

func okResponse(text string) *GenerateResponse {
	return &GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: text}}}}
}

func TestBuildRefineMessages(t *testing.T) {
	msgs := BuildRefineMessages(sampleRequest())
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	user := msgs[1].Content
	for _, want := range []string{"average throughput on 5g", "Rows: 1,234", "80000 kbps (80.0 Mbps)", "-81.3 dBm", "12.5%", "rsrp, throughput", "LOCAL ANSWER:\nAverage throughput"} {
		if !strings.Contains(user, want) {
			t.Fatalf("prompt missing %q:\n%s", want, user)
		}
	}
}

func TestRefineSuccess(t *testing.T) {
	rt := &fakeRuntime{resp: okResponse("  5G averages 80 Mbps.  ")}
	r := NewRefiner(rt, "m", nil)
	got, ok := r.Refine(context.Background(), sampleRequest())
	if !ok || got != "5G averages 80 Mbps." {
		t.Fatalf("refine: %q %v", got, ok)
	}
	if rt.got.Model != "m" || rt.got.MaxTokens != 400 {
		t.Fatalf("request settings: %+v", rt.got)
	}
}

func TestRefineLogsPromptSize(t *testing.T) {
	var buf bytes.Buffer
	rt := &fakeRuntime{resp: okResponse("ok")}
	r := NewRefiner(rt, "m", logging.New(&buf, true))
	if _, ok := r.Refine(context.Background(), sampleRequest()); !ok {
		t.Fatal("refine failed")
	}
	want := 0
	for _, m := range rt.got.Messages {
		want += utils.CountTokens(m.Content)
	}
	if want == 0 || !strings.Contains(buf.String(), fmt.Sprintf("refinement prompt: ~%d tokens", want)) {
		t.Fatalf("prompt size not logged (want %d):\n%s", want, buf.String())
	}
}

func TestRefineFailuresAreDiscarded(t *testing.T) {
	cases := []struct {
		name string
		rt   *fakeRuntime
		kind string
	}{
		{"server", &fakeRuntime{err: &ServerError{APIError: &APIError{StatusCode: 502}}}, "server"},
		{"empty", &fakeRuntime{resp: okResponse("   ")}, "empty"},
		{"no choices", &fakeRuntime{resp: &GenerateResponse{}}, "empty"},
	}
	for _, c := range cases {
		var buf bytes.Buffer
		var failures []error
		r := NewRefiner(c.rt, "m", logging.New(&buf, false))
		r.OnFailure = func(err error) { failures = append(failures, err) }
		got, ok := r.Refine(context.Background(), sampleRequest())
		if ok || got != "" {
			t.Fatalf("%s: expected discard, got %q", c.name, got)
		}
		if len(failures) != 1 || Kind(failures[0]) != c.kind {
			t.Fatalf("%s: failures %v", c.name, failures)
		}
		if !strings.Contains(buf.String(), "refinement discarded ("+c.kind+")") {
			t.Fatalf("%s: log %q", c.name, buf.String())
		}
	}

	var nilRefiner *Refiner
	if _, ok := nilRefiner.Refine(context.Background(), sampleRequest()); ok {
		t.Fatal("nil refiner must not refine")
	}
}

func TestRefineAsyncYieldsAtMostOnce(t *testing.T) {
	r := NewRefiner(&fakeRuntime{resp: okResponse("better")}, "m", nil)
	ch := r.RefineAsync(context.Background(), sampleRequest())
	var got []string
	for s := range ch {
		got = append(got, s)
	}
	if len(got) != 1 || got[0] != "better" {
		t.Fatalf("async: %v", got)
	}

	r = NewRefiner(&fakeRuntime{err: errors.New("boom")}, "m", nil)
	if _, open := <-r.RefineAsync(context.Background(), sampleRequest()); open {
		t.Fatal("failed refinement should close without a value")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r = NewRefiner(&fakeRuntime{wait: time.Minute, resp: okResponse("late")}, "m", nil)
	ch = r.RefineAsync(ctx, sampleRequest())
	cancel()
	select {
	case s, open := <-ch:
		if open {
			t.Fatalf("cancelled refinement yielded %q", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled refinement did not finish")
	}
}

func TestRefineOverOllama(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"message": map[string]any{"role": "assistant", "content": "refined"}})
	}))
	defer srv.Close()

	rt, ok := GetRuntime(ProviderOllama, RuntimeConfig{Host: srv.URL, HTTPTimeout: 2 * time.Second, RetryMax: 1})
	if !ok {
		t.Fatal("ollama not registered")
	}
	got, ok := NewRefiner(rt, "llama3", nil).Refine(context.Background(), sampleRequest())
	if !ok || got != "refined" {
		t.Fatalf("refine over ollama: %q %v", got, ok)
	}
}
