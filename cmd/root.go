package cmd

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/KaramelBytes/sigloom-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/sigloom-cli/internal/config"
	"github.com/KaramelBytes/sigloom-cli/internal/ingest"
	"github.com/KaramelBytes/sigloom-cli/internal/logging"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "sigloom",
	Short: "SigLoom CLI: analyze drive-test radio measurements",
	Long: `SigLoom ingests drive-test CSV exports of unknown layout (RSRP, RSRQ, SINR,
throughput, coordinates, timestamps), normalizes them, and answers questions
about coverage and throughput with a local rule-based engine. A remote model
can optionally rephrase the local answers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.sigloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands fall back to defaults via currentConfig
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
}

// currentConfig returns the loaded config, or built-in defaults when loading failed.
func currentConfig() *cfgpkg.Global {
	if cfg != nil {
		return cfg
	}
	return &cfgpkg.Global{
		RefineProvider:    ai.ProviderOpenRouter,
		RefineModel:       "openai/gpt-4o-mini",
		MaxTokens:         400,
		Temperature:       0.2,
		RefineWaitSec:     20,
		HTTPTimeoutSec:    60,
		RetryMaxAttempts:  3,
		RetryBaseDelayMs:  500,
		RetryMaxDelayMs:   4000,
		OllamaHost:        "http://127.0.0.1:11434",
		DefaultTechnology: "All",
		BaseDate:          "2025-08-01",
		CenterLat:         -26.2041,
		CenterLon:         28.0473,
		ServeAddr:         ":8080",
	}
}

func newLogger() logging.Logger {
	return logging.New(os.Stderr, debug)
}

// loadOptions builds ingestion settings from config plus per-command overrides.
func loadOptions(c *cfgpkg.Global, overrides []string) (ingest.LoadOptions, error) {
	base, err := c.ParseBaseDate()
	if err != nil {
		return ingest.LoadOptions{}, err
	}
	opt := ingest.LoadOptions{
		Read:      ingest.ReadOptions{MaxRows: c.MaxRows},
		Overrides: overrides,
		Normalize: ingest.Options{
			BaseDate: base,
			Center:   orb.Point{c.CenterLon, c.CenterLat},
		},
	}
	if c.Seed != 0 {
		opt.Normalize.Rand = rand.New(rand.NewSource(c.Seed))
	}
	return opt, nil
}

// newRefiner returns a Refiner for the configured provider, or nil when
// refinement is not possible. onFailure may be nil.
func newRefiner(c *cfgpkg.Global, log logging.Logger, onFailure func(error)) *ai.Refiner {
	provider := c.RefineProvider
	if provider == "" {
		provider = ai.ProviderOpenRouter
	}
	if provider == ai.ProviderOpenRouter && c.APIKey == "" {
		fmt.Fprintln(os.Stderr, "⚠ Warning: refinement needs an API key (set SIGLOOM_API_KEY or `sigloom config set api_key`); showing the local answer only")
		return nil
	}
	rt, ok := ai.GetRuntime(provider, ai.RuntimeConfig{
		HTTPTimeout: c.HTTPTimeout(),
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   c.RetryBaseDelay(),
		MaxDelay:    c.RetryMaxDelay(),
		APIKey:      c.APIKey,
		Host:        c.OllamaHost,
	})
	if !ok {
		fmt.Fprintf(os.Stderr, "⚠ Warning: unknown refine_provider %q (use one of %v)\n", provider, ai.Providers())
		return nil
	}
	r := ai.NewRefiner(rt, c.RefineModel, log)
	if c.MaxTokens > 0 {
		r.MaxTokens = c.MaxTokens
	}
	r.Temperature = c.Temperature
	r.OnFailure = onFailure
	return r
}
