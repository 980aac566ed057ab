package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/sigloom-cli/internal/ingest"
	"github.com/KaramelBytes/sigloom-cli/internal/measure"
	"github.com/KaramelBytes/sigloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var inspectMap []string

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.csv>",
	Short: "Show headers, the proposed column mapping and normalization stats",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pass, err := loadFile(args[0], inspectMap)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		t := pass.Table
		fmt.Fprintf(out, "File: %s (%s, %s rows, %d columns)\n", t.Name, t.Encoding, utils.FormatInt(len(t.Rows)), len(t.Headers))
		fmt.Fprintf(out, "Headers: %s\n\n", strings.Join(t.Headers, ", "))
		fmt.Fprintln(out, "Mapping:")
		fmt.Fprint(out, pass.Mapping.String())
		if len(pass.Result.Defaulted) > 0 {
			fmt.Fprintln(out, "\nDefaults applied:")
			for _, line := range defaultedLines(pass.Result.Defaulted, len(t.Rows)) {
				fmt.Fprintln(out, "  "+line)
			}
		}
		fmt.Fprintf(out, "\n✓ %s records ready (dataset %s)\n", utils.FormatInt(pass.Dataset.Len()), pass.Dataset.ID)
		return nil
	},
}

// defaultedLines renders per-field default counts sorted by field name.
func defaultedLines(defaulted map[measure.Field]int, rows int) []string {
	keys := make([]measure.Field, 0, len(defaulted))
	for k := range defaulted {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%-10s %s of %s rows", k, utils.FormatInt(defaulted[k]), utils.FormatInt(rows)))
	}
	return out
}

// loadFile runs one ingestion pass over path with the loaded configuration.
func loadFile(path string, overrides []string) (*ingest.Pass, error) {
	opt, err := loadOptions(currentConfig(), overrides)
	if err != nil {
		return nil, err
	}
	return ingest.LoadFile(path, opt)
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringArrayVar(&inspectMap, "map", nil, "override a column mapping as field=column (repeatable)")
}
