package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const sampleCSV = `Time,RSRP (dBm),RSRQ,SINR,Throughput (kbps),Sector,Technology,Lat,Lon
2025-08-01 08:00,-65,-8,22,120000,S1,5G,-26.1,28.0
2025-08-01 09:00,-90,-12,8,40000,S2,LTE,-26.2,28.1
2025-08-02 08:30,-75,-10,15,60000,S1,4G,-26.15,28.05
2025-08-02 21:00,-104,-16,2,5000,S3,NR,-26.3,28.2
`

// resetFlags restores every command flag to its default so runs do not leak state.
func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	})
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd is a helper to execute the root command with args and return its stdout.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

func execCmd(args ...string) (string, error) {
	resetFlags(rootCmd)
	cfg = nil
	loadConfig()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// isolate points HOME at a temp dir and writes the sample CSV there.
func isolate(t *testing.T) (home, csvPath string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SIGLOOM_API_KEY", "")
	t.Setenv("SIGLOOM_REFINE_ENABLED", "")
	csvPath = filepath.Join(home, "drive.csv")
	if err := os.WriteFile(csvPath, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return home, csvPath
}

func TestCLI_Inspect(t *testing.T) {
	_, csvPath := isolate(t)
	out := runCmd(t, "inspect", csvPath)
	for _, want := range []string{
		"File: drive.csv (utf-8, 4 rows, 9 columns)",
		"rsrp       <- RSRP (dBm)",
		"throughput <- Throughput (kbps)",
		"✓ 4 records ready",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("inspect output missing %q:\n%s", want, out)
		}
	}

	out = runCmd(t, "inspect", csvPath, "--map", "location=", "--map", "technology=")
	if !strings.Contains(out, "location   <- (unmapped)") || !strings.Contains(out, "location   4 of 4 rows") {
		t.Fatalf("override not reflected:\n%s", out)
	}

	if _, err := execCmd("inspect", csvPath, "--map", "rsrp=Missing"); err == nil {
		t.Fatal("expected error for unknown mapping column")
	}
}

func TestCLI_Ask(t *testing.T) {
	_, csvPath := isolate(t)

	out := runCmd(t, "ask", csvPath, "how many measurements on 5G?")
	if strings.TrimSpace(out) != "Count: 2 measurements match your question." {
		t.Fatalf("count answer: %q", out)
	}

	out = runCmd(t, "ask", csvPath, "average", "throughput", "--tech", "4G")
	if !strings.HasPrefix(out, "Average throughput: 50000 kbps (≈ 50.0 Mbps) based on 2 measurements.") {
		t.Fatalf("avg answer: %q", out)
	}

	out = runCmd(t, "ask", csvPath, "top 1 sectors by throughput", "--json")
	var res askOutput
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if res.Intent != "top_sectors" || !strings.Contains(res.Text, "1. S1") {
		t.Fatalf("top sectors: %+v", res)
	}

	out = runCmd(t, "ask", csvPath, "average throughput on aug 9")
	if !strings.Contains(out, "No measurements match") {
		t.Fatalf("expected no-match answer: %q", out)
	}
}

func TestCLI_AskRefineOverOllama(t *testing.T) {
	_, csvPath := isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"message": map[string]any{"role": "assistant", "content": "S1 leads."}})
	}))
	defer srv.Close()
	t.Setenv("SIGLOOM_REFINE_PROVIDER", "ollama")
	t.Setenv("SIGLOOM_OLLAMA_HOST", srv.URL)
	t.Setenv("SIGLOOM_REFINE_MODEL", "llama3")

	out := runCmd(t, "ask", csvPath, "top sectors by throughput", "--refine")
	local := strings.Index(out, "Top ")
	refined := strings.Index(out, "Refined:\nS1 leads.")
	if local < 0 || refined < 0 || local > refined {
		t.Fatalf("expected local answer then refinement:\n%s", out)
	}

	// a failing remote leaves only the local answer
	t.Setenv("SIGLOOM_OLLAMA_HOST", "http://127.0.0.1:1")
	t.Setenv("SIGLOOM_RETRY_MAX_ATTEMPTS", "1")
	out = runCmd(t, "ask", csvPath, "top sectors by throughput", "--refine")
	if strings.Contains(out, "Refined:") || !strings.Contains(out, "Top ") {
		t.Fatalf("failed refinement should be silent:\n%s", out)
	}
}

func TestCLI_ReportAndBatch(t *testing.T) {
	home, csvPath := isolate(t)

	out := runCmd(t, "report", csvPath, "--tech", "5G")
	if !strings.Contains(out, "# Drive-test report") || !strings.Contains(out, "Technology: 5G") || !strings.Contains(out, "Rows: 2") {
		t.Fatalf("report output:\n%s", out)
	}

	jsonPath := filepath.Join(home, "out", "report.json")
	runCmd(t, "report", csvPath, "--json", "-o", jsonPath)
	b, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var rep struct {
		Technology string `json:"technology"`
		Summary    struct {
			Rows int `json:"rows"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(b, &rep); err != nil || rep.Summary.Rows != 4 || rep.Technology != "All" {
		t.Fatalf("json report: %+v %v", rep, err)
	}

	// Two files with the same basename in different directories
	for _, d := range []string{"d1", "d2"} {
		dir := filepath.Join(home, d)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "route.csv"), []byte(sampleCSV), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	outDir := filepath.Join(home, "reports")
	runCmd(t, "report-batch", filepath.Join(home, "d*", "route.csv"), "--out-dir", outDir, "--quiet")
	for _, name := range []string{"route.report.md", "route__2.report.md"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
	if _, err := execCmd("report-batch", filepath.Join(home, "nothing*.csv"), "--out-dir", outDir); err == nil {
		t.Fatal("expected error when no files match")
	}
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	home, _ := isolate(t)
	runCmd(t, "config", "set", "default_technology", "5g")
	runCmd(t, "config", "set", "api_key", "sk-abcdefghij")
	if _, err := os.Stat(filepath.Join(home, ".sigloom", "config.yaml")); err != nil {
		t.Fatalf("config not saved: %v", err)
	}
	out := runCmd(t, "config", "show")
	if !strings.Contains(out, "default_technology: 5G") || !strings.Contains(out, "api_key: sk-****hij") {
		t.Fatalf("config show:\n%s", out)
	}
	if _, err := execCmd("config", "set", "refine_provider", "bard"); err == nil {
		t.Fatal("expected invalid provider error")
	}
}

func TestCurrentConfigFallbackDefaults(t *testing.T) {
	saved := cfg
	cfg = nil
	t.Cleanup(func() { cfg = saved })
	c := currentConfig()
	if c.RefineModel != "openai/gpt-4o-mini" || c.RefineProvider != "openrouter" {
		t.Fatalf("refine defaults: %+v", c)
	}
	if c.HTTPTimeoutSec != 60 || c.RetryMaxAttempts != 3 || c.BaseDate != "2025-08-01" {
		t.Fatalf("http/ingest defaults: %+v", c)
	}
}
