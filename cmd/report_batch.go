package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/sigloom-cli/internal/analysis"
	"github.com/KaramelBytes/sigloom-cli/internal/measure"
	"github.com/KaramelBytes/sigloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	rbOutDir string
	rbTech   string
	rbMap    []string
	rbJSON   bool
	rbQuiet  bool
)

var reportBatchCmd = &cobra.Command{
	Use:   "report-batch <files...>",
	Short: "Write a KPI report for each of several drive-test files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		if rbOutDir == "" {
			return fmt.Errorf("--out-dir is required")
		}
		c := currentConfig()
		tech := c.DefaultTechnology
		if cmd.Flags().Changed("tech") {
			tech = rbTech
		}
		selected := measure.ParseTechnology(tech)
		ext := ".report.md"
		if rbJSON {
			ext = ".report.json"
		}

		out := cmd.OutOrStdout()
		total := len(files)
		for i, path := range files {
			if !rbQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			pass, err := loadFile(path, rbMap)
			if err != nil {
				return err
			}
			ds := pass.Dataset
			rep := analysis.BuildReport(ds.Source, selected, analysis.FilterTechnology(ds.Records, selected), ds.Headers)
			var data []byte
			if rbJSON {
				if data, err = utils.PrettyJSON(rep); err != nil {
					return err
				}
			} else {
				data = []byte(rep.Markdown())
			}

			base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			outFile := freeName(rbOutDir, base, ext)
			if filepath.Base(outFile) != base+ext && !rbQuiet {
				fmt.Fprintf(out, "⚠ Detected existing report, writing to %s to avoid overwrite.\n", filepath.Base(outFile))
			}
			if err := utils.SafeWriteFile(outFile, data); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if !rbQuiet {
				fmt.Fprintf(out, "✓ Wrote %s (%s rows)\n", outFile, utils.FormatInt(rep.Summary.Rows))
			}
		}
		return nil
	},
}

// expandInputs resolves globs and literal paths, dropping duplicates, sorted.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

// freeName returns dir/base+ext, or dir/base__N+ext for the first N >= 2 not yet taken.
func freeName(dir, base, ext string) string {
	p := filepath.Join(dir, base+ext)
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return p
	}
	for idx := 2; ; idx++ {
		cand := filepath.Join(dir, fmt.Sprintf("%s__%d%s", base, idx, ext))
		if _, err := os.Stat(cand); os.IsNotExist(err) {
			return cand
		}
	}
}

func init() {
	rootCmd.AddCommand(reportBatchCmd)
	reportBatchCmd.Flags().StringVar(&rbOutDir, "out-dir", "", "directory to write reports into")
	reportBatchCmd.Flags().StringVar(&rbTech, "tech", "All", "technology selection: All | 4G | 5G")
	reportBatchCmd.Flags().StringArrayVar(&rbMap, "map", nil, "override a column mapping as field=column for every file (repeatable)")
	reportBatchCmd.Flags().BoolVar(&rbJSON, "json", false, "write JSON reports instead of Markdown")
	reportBatchCmd.Flags().BoolVar(&rbQuiet, "quiet", false, "suppress progress and non-essential output")
}
