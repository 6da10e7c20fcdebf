package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/tribunal/config"
	"github.com/hupe1980/tribunal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past consultations",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 10, "number of consultations to show (0 = all)")
	historyCmd.Flags().Bool("json", false, "print results as JSON")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	store := history.NewFileStore(cfg.History.ResolvePath())
	results, err := store.List(limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		raw, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(raw))
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No consultations recorded yet.")
		return nil
	}

	for _, res := range results {
		question := res.Question
		if len(question) > 60 {
			question = question[:57] + "..."
		}
		fmt.Fprintf(out, "%s  %-60s  %.2f  $%.4f\n",
			res.Timestamp.Format("2006-01-02 15:04"), question, res.Confidence, res.Cost.ActualUSD)
		if res.Recommendation != "" {
			fmt.Fprintf(out, "%18s%s\n", "", res.Recommendation)
		}
	}
	return nil
}
