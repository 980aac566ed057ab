package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/sigloom-cli/internal/ai"
	"github.com/KaramelBytes/sigloom-cli/internal/analysis"
	"github.com/KaramelBytes/sigloom-cli/internal/measure"
	"github.com/KaramelBytes/sigloom-cli/internal/query"
	"github.com/KaramelBytes/sigloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	askTech   string
	askMap    []string
	askRefine bool
	askJSON   bool
)

type askOutput struct {
	query.Answer
	Refined string `json:"refined,omitempty"`
}

var askCmd = &cobra.Command{
	Use:   "ask <file.csv> <question>",
	Short: "Answer a free-text question about a drive-test file",
	Long: `Answer a question such as "average throughput on 5G between 8 and 10" or
"top 3 sectors by throughput" using the local rule engine. With --refine (or
refine_enabled in config) the local answer is printed first and a remote model
is then asked to rephrase it; a failed refinement is only logged.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := currentConfig()
		question := strings.Join(args[1:], " ")
		pass, err := loadFile(args[0], askMap)
		if err != nil {
			return err
		}
		tech := c.DefaultTechnology
		if cmd.Flags().Changed("tech") {
			tech = askTech
		}
		selected := measure.ParseTechnology(tech)
		ds := pass.Dataset
		ans := query.New(selected).Answer(ds, question)
		log := newLogger()
		log.Debug("intent=%s rows=%d filters=%s", ans.Intent, ans.Rows, ans.Filters)

		out := cmd.OutOrStdout()
		refine := askRefine || (c.RefineEnabled && !cmd.Flags().Changed("refine"))
		if !askJSON {
			fmt.Fprintln(out, ans.Text)
		}
		res := askOutput{Answer: ans}
		if refine && ans.Intent != query.IntentNoMatch {
			if r := newRefiner(c, log, nil); r != nil {
				res.Refined = awaitRefinement(cmd.Context(), r, c.RefineWait(), ai.RefineRequest{
					Question:    question,
					Summary:     analysis.Summarize(analysis.FilterTechnology(ds.Records, selected), ds.Headers),
					LocalAnswer: ans.Text,
				})
				if res.Refined != "" && !askJSON {
					fmt.Fprintf(out, "\nRefined:\n%s\n", res.Refined)
				}
			}
		}
		if askJSON {
			b, err := utils.PrettyJSON(res)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
		}
		return nil
	},
}

// awaitRefinement waits up to wait for a refined answer; "" means none arrived.
func awaitRefinement(ctx context.Context, r *ai.Refiner, wait time.Duration, req ai.RefineRequest) string {
	if ctx == nil {
		ctx = context.Background()
	}
	if wait <= 0 {
		wait = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	select {
	case s := <-r.RefineAsync(ctx, req):
		return s
	case <-ctx.Done():
		return ""
	}
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVar(&askTech, "tech", "All", "technology selection: All | 4G | 5G")
	askCmd.Flags().StringArrayVar(&askMap, "map", nil, "override a column mapping as field=column (repeatable)")
	askCmd.Flags().BoolVar(&askRefine, "refine", false, "ask the configured remote model to rephrase the answer")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer as JSON")
}
