package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/KaramelBytes/sigloom-cli/internal/ai"
	"github.com/KaramelBytes/sigloom-cli/internal/measure"
	"github.com/KaramelBytes/sigloom-cli/internal/metrics"
	"github.com/KaramelBytes/sigloom-cli/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr string
	serveFile string
	serveMap  []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve dataset views, questions and uploads over HTTP",
	Long: `Start an HTTP server with read-only dataset views (/api/dataset, /api/kpis,
/api/hourly, /api/daily, /api/categories), question answering (POST /api/ask),
CSV upload (POST /api/ingest) and Prometheus metrics (/metrics).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := currentConfig()
		log := newLogger()
		m := metrics.New()

		opt, err := loadOptions(c, serveMap)
		if err != nil {
			return err
		}
		var refiner *ai.Refiner
		if c.RefineEnabled {
			refiner = newRefiner(c, log, m.ObserveRefineFailure)
		}
		srv := server.New(&measure.Store{}, server.Options{
			Load:       opt,
			Technology: measure.ParseTechnology(c.DefaultTechnology),
			Refiner:    refiner,
			RefineWait: c.RefineWait(),
			Metrics:    m,
			Logger:     log,
		})

		if serveFile != "" {
			data, err := os.ReadFile(serveFile)
			if err != nil {
				return fmt.Errorf("read seed file: %w", err)
			}
			pass, err := srv.Ingest(filepath.Base(serveFile), data, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Loaded %s (%d rows)\n", pass.Dataset.Source, pass.Dataset.Len())
		}

		addr := c.ServeAddr
		if cmd.Flags().Changed("addr") || addr == "" {
			addr = serveAddr
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Serving on %s\n", addr)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address (overrides serve_addr)")
	serveCmd.Flags().StringVar(&serveFile, "file", "", "CSV file to load at startup")
	serveCmd.Flags().StringArrayVar(&serveMap, "map", nil, "override a column mapping as field=column for every ingestion (repeatable)")
}
