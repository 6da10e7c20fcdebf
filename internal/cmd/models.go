package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hupe1980/tribunal/config"
	"github.com/hupe1980/tribunal/cost"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show configured models and known pricing",
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Roster")
	fmt.Fprintf(out, "  analyst:     %s\n", cfg.Agents.Analyst)
	fmt.Fprintf(out, "  skeptic:     %s\n", cfg.Agents.Skeptic)
	fmt.Fprintf(out, "  pragmatist:  %s\n", cfg.Agents.Pragmatist)
	fmt.Fprintf(out, "  judge:       %s\n", cfg.Agents.Judge)

	table := cost.DefaultTable()
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(out, "\nKnown pricing (USD per 1K tokens)")
	for _, name := range names {
		p := table[name]
		fmt.Fprintf(out, "  %-28s in %.5f  out %.5f  cache-read %.5f\n",
			name, p.InputPer1K, p.OutputPer1K, p.CacheReadPer1K)
	}
	fmt.Fprintln(out, "\nUnlisted models are estimated at default pricing.")
	return nil
}
