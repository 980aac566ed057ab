package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SIGLOOM_REFINE_MODEL", "llama3")
	t.Setenv("SIGLOOM_MAX_ROWS", "500")

	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.RefineProvider != "openrouter" || c.DefaultTechnology != "All" || c.ServeAddr != ":8080" {
		t.Fatalf("defaults: %+v", c)
	}
	if c.RefineModel != "llama3" || c.MaxRows != 500 {
		t.Fatalf("env overrides: model=%s max_rows=%d", c.RefineModel, c.MaxRows)
	}
	if c.HTTPTimeout() != 60*time.Second || c.RetryBaseDelay() != 500*time.Millisecond || c.RetryMaxDelay() != 4*time.Second {
		t.Fatalf("durations: %v %v %v", c.HTTPTimeout(), c.RetryBaseDelay(), c.RetryMaxDelay())
	}
	base, err := c.ParseBaseDate()
	if err != nil || !base.Equal(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("base date: %v %v", base, err)
	}
}

func TestSaveAndReload(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load missing explicit file: %v", err)
	}
	c.RefineEnabled = true
	c.CenterLat = -33.9249
	c.CenterLon = 18.4241
	c.BaseDate = "2024-12-31"
	if err := Save(c, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !got.RefineEnabled || got.CenterLat != -33.9249 || got.CenterLon != 18.4241 || got.BaseDate != "2024-12-31" {
		t.Fatalf("round trip lost values: %+v", got)
	}
}

func TestSaveDefaultLocationAndBadDate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := Save(&Global{ServeAddr: ":9000"}, ""); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".sigloom", "config.yaml")); err != nil {
		t.Fatalf("config not written under ~/.sigloom: %v", err)
	}
	t.Setenv("SIGLOOM_BASE_DATE", "yesterday")
	if _, err := Load(""); err == nil {
		t.Fatal("expected invalid base_date error")
	}
}

func TestSetAndGet(t *testing.T) {
	c := &Global{BaseDate: "2025-08-01"}
	ok := map[string]string{
		"api_key":            "sk-1234567890",
		"refine_enabled":     "true",
		"refine_provider":    "Local",
		"max_tokens":         "256",
		"temperature":        "0.7",
		"default_technology": "nr",
		"base_date":          "2025-09-15",
		"center_lat":         "-33.9249",
		"seed":               "42",
		"max_rows":           "0",
	}
	for k, v := range ok {
		if err := c.Set(k, v); err != nil {
			t.Fatalf("set %s=%s: %v", k, v, err)
		}
	}
	want := map[string]string{
		"api_key":            "sk-****890",
		"refine_enabled":     "true",
		"refine_provider":    "ollama",
		"max_tokens":         "256",
		"temperature":        "0.700",
		"default_technology": "5G",
		"base_date":          "2025-09-15",
		"center_lat":         "-33.9249",
		"seed":               "42",
	}
	for k, v := range want {
		got, err := c.Get(k)
		if err != nil || got != v {
			t.Fatalf("get %s: got %q (%v), want %q", k, got, err, v)
		}
	}
	for _, k := range Keys {
		if _, err := c.Get(k); err != nil {
			t.Fatalf("key %s listed but not readable: %v", k, err)
		}
	}

	bad := [][2]string{
		{"refine_provider", "bard"},
		{"max_tokens", "0"},
		{"temperature", "3"},
		{"default_technology", "3G"},
		{"base_date", "soon"},
		{"center_lon", "200"},
		{"refine_enabled", "maybe"},
		{"nope", "1"},
	}
	for _, kv := range bad {
		if err := c.Set(kv[0], kv[1]); err == nil {
			t.Fatalf("set %s=%s: expected error", kv[0], kv[1])
		}
	}
	if c.BaseDate != "2025-09-15" {
		t.Fatalf("rejected base_date must not stick, got %q", c.BaseDate)
	}
}
