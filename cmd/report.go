package cmd

import (
	"fmt"

	"github.com/KaramelBytes/sigloom-cli/internal/analysis"
	"github.com/KaramelBytes/sigloom-cli/internal/measure"
	"github.com/KaramelBytes/sigloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	reportTech   string
	reportMap    []string
	reportOutput string
	reportJSON   bool
)

var reportCmd = &cobra.Command{
	Use:   "report <file.csv>",
	Short: "Produce a KPI report (hourly, daily and per-category breakdowns)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := currentConfig()
		pass, err := loadFile(args[0], reportMap)
		if err != nil {
			return err
		}
		tech := c.DefaultTechnology
		if cmd.Flags().Changed("tech") {
			tech = reportTech
		}
		selected := measure.ParseTechnology(tech)
		ds := pass.Dataset
		rep := analysis.BuildReport(ds.Source, selected, analysis.FilterTechnology(ds.Records, selected), ds.Headers)

		var data []byte
		if reportJSON {
			data, err = utils.PrettyJSON(rep)
			if err != nil {
				return err
			}
		} else {
			data = []byte(rep.Markdown())
		}

		// Decide where to write: --output path or stdout
		if reportOutput != "" {
			if err := utils.SafeWriteFile(reportOutput, data); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote report to %s\n", reportOutput)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportTech, "tech", "All", "technology selection: All | 4G | 5G")
	reportCmd.Flags().StringArrayVar(&reportMap, "map", nil, "override a column mapping as field=column (repeatable)")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "optional path to write the report")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "emit JSON instead of Markdown")
}
