package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/KaramelBytes/datalens-cli/internal/chart"
	"github.com/spf13/cobra"
)

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List chart kinds and the columns they require",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tCOLUMNS\tAGGREGATION\tDESCRIPTION")
		for _, r := range chart.Kinds() {
			agg := "-"
			if len(r.Aggregations) > 0 {
				agg = fmt.Sprintf("%s (default %s)", joinAggs(r.Aggregations), r.DefaultAgg)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Kind, r.Usage(), agg, r.Summary)
		}
		return w.Flush()
	},
}

func joinAggs(aggs []chart.Aggregation) string {
	names := make([]string, len(aggs))
	for i, a := range aggs {
		names[i] = string(a)
	}
	return strings.Join(names, "|")
}

func init() {
	rootCmd.AddCommand(kindsCmd)
}
