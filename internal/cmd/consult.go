package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/tribunal/agent"
	"github.com/hupe1980/tribunal/config"
	"github.com/hupe1980/tribunal/consult"
	"github.com/hupe1980/tribunal/cost"
	"github.com/hupe1980/tribunal/event"
	"github.com/hupe1980/tribunal/history"
	"github.com/hupe1980/tribunal/logging"
	"github.com/hupe1980/tribunal/model"
	anthropicmodel "github.com/hupe1980/tribunal/model/anthropic"
	openaimodel "github.com/hupe1980/tribunal/model/openai"

	"github.com/anthropics/anthropic-sdk-go"
)

var consultCmd = &cobra.Command{
	Use:   "consult \"question\"",
	Short: "Run a consultation on a question",
	Long: `Consult runs the full debate protocol on a question: the roster takes
independent positions, a judge synthesizes them, the advisors cross-examine
the synthesis, and a final judge renders a verdict with dissent on record.`,
	Args: cobra.ExactArgs(1),
	RunE: runConsult,
}

func init() {
	consultCmd.Flags().String("context", "", "additional context for the question")
	consultCmd.Flags().Int("rounds", 0, "override max rounds (2 or 4)")
	consultCmd.Flags().BoolP("yes", "y", false, "approve the cost estimate without prompting")
	consultCmd.Flags().Bool("json", false, "print the full result as JSON")
	consultCmd.Flags().BoolP("quiet", "q", false, "suppress progress output")

	rootCmd.AddCommand(consultCmd)
}

func runConsult(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	contextText, _ := cmd.Flags().GetString("context")
	rounds, _ := cmd.Flags().GetInt("rounds")
	yes, _ := cmd.Flags().GetBool("yes")
	asJSON, _ := cmd.Flags().GetBool("json")
	quiet, _ := cmd.Flags().GetBool("quiet")

	engineCfg := consult.Config{
		AutoApproveUSD: cfg.Consult.AutoApproveUSD,
		MaxRounds:      cfg.Consult.MaxRounds,
		MaxTokens:      cfg.Consult.MaxTokens,
		Temperature:    cfg.Consult.Temperature,
	}
	if rounds != 0 {
		if rounds != 2 && rounds != 4 {
			return fmt.Errorf("--rounds must be 2 (stop after synthesis) or 4 (full protocol)")
		}
		engineCfg.MaxRounds = rounds
	}

	var consent cost.Consent
	if yes {
		consent = cost.AlwaysApprove
	} else {
		consent = promptConsent(cmd)
	}

	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, false).
		WithContext("command", "consult")

	engine := consult.New(newResolver(), func(o *consult.Options) {
		o.Config = engineCfg
		o.Roster = rosterFromConfig(cfg)
		o.JudgeModel = cfg.Agents.Judge
		o.Consent = consent
		o.Logger = logger
	})

	if !quiet && !asJSON {
		go printProgress(cmd, engine.Bus().Subscribe())
	}

	res, err := engine.Consult(cmd.Context(), args[0], contextText)
	if err != nil {
		if errors.Is(err, consult.ErrCancelled) {
			fmt.Fprintln(cmd.OutOrStdout(), "Consultation cancelled.")
			return nil
		}
		return err
	}

	store := history.NewFileStore(cfg.History.ResolvePath())
	if err := store.Append(res); err != nil {
		logger.Warn("failed to record history", "error", err)
	}

	if asJSON {
		raw, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return nil
	}

	printResult(cmd, res)
	return nil
}

// rosterFromConfig builds the debater roster with per-position model ids.
func rosterFromConfig(cfg *config.Config) []agent.Agent {
	roster := agent.DefaultRoster(cfg.Agents.Judge)
	for i := range roster {
		switch roster[i].Name {
		case "analyst":
			roster[i].Model = cfg.Agents.Analyst
		case "skeptic":
			roster[i].Model = cfg.Agents.Skeptic
		case "pragmatist":
			roster[i].Model = cfg.Agents.Pragmatist
		}
	}
	return roster
}

// newResolver maps model ids to provider adapters. OpenAI-style ids go to the
// OpenAI adapter, everything else to Anthropic. API keys come from the
// standard environment variables via the provider SDKs.
func newResolver() model.Resolver {
	return func(modelID string) (model.Model, error) {
		if modelID == "" {
			return nil, fmt.Errorf("empty model id")
		}
		if strings.HasPrefix(modelID, "gpt-") || strings.HasPrefix(modelID, "o1") || strings.HasPrefix(modelID, "o3") {
			return openaimodel.NewModel(func(o *openaimodel.Options) {
				o.Model = modelID
			}), nil
		}
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.Model = anthropic.Model(modelID)
		}), nil
	}
}

// promptConsent asks on the terminal before an over-threshold consultation
// is admitted.
func promptConsent(cmd *cobra.Command) cost.Consent {
	return func(est cost.Estimate, agentCount, maxRounds int) (cost.Decision, error) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Estimated cost: $%.4f (~%d tokens, %d agents, %d rounds)\n",
			est.CostUSD, est.TotalTokens, agentCount, maxRounds)
		fmt.Fprint(out, "Proceed? [y/N/a(lways)] ")

		reader := bufio.NewReader(cmd.InOrStdin())
		line, err := reader.ReadString('\n')
		if err != nil {
			return cost.DecisionDenied, nil
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return cost.DecisionApproved, nil
		case "a", "always":
			fmt.Fprintf(out, "Tip: set consult.auto_approve_usd in %s to stop prompting.\n", config.ConfigFile())
			return cost.DecisionAlways, nil
		default:
			return cost.DecisionDenied, nil
		}
	}
}

// printProgress renders bus events as one-line progress updates on stderr.
func printProgress(cmd *cobra.Command, events <-chan event.Event) {
	out := cmd.ErrOrStderr()
	for ev := range events {
		switch ev.Type {
		case event.TypePhaseChanged:
			fmt.Fprintf(out, "» phase: %s\n", ev.Phase)
		case event.TypeAgentFinished:
			if ev.Error != "" {
				fmt.Fprintf(out, "  %s failed: %s\n", ev.Agent, ev.Error)
			} else {
				fmt.Fprintf(out, "  %s answered\n", ev.Agent)
			}
		case event.TypeBreakerTripped:
			fmt.Fprintf(out, "! cost breaker tripped at $%.4f\n", ev.CostUSD)
		}
	}
}

func printResult(cmd *cobra.Command, res *consult.Result) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "\nVerdict (confidence %.2f, %s)\n", res.Confidence, confidenceBand(res.Confidence))
	fmt.Fprintf(out, "  %s\n", res.Recommendation)

	if res.ConsensusSummary != "" {
		fmt.Fprintf(out, "\nConsensus\n  %s\n", res.ConsensusSummary)
	}
	if len(res.Concerns) > 0 {
		fmt.Fprintln(out, "\nConcerns")
		for _, c := range res.Concerns {
			fmt.Fprintf(out, "  - %s\n", c)
		}
	}
	if len(res.Dissent) > 0 {
		fmt.Fprintln(out, "\nDissent")
		for _, d := range res.Dissent {
			fmt.Fprintf(out, "  - %s (%s): %s\n", d.Agent, d.Severity, d.Concern)
		}
	}

	fmt.Fprintf(out, "\nCost: $%.4f (estimated $%.4f), %d tokens, %d/%d rounds, %s\n",
		res.Cost.ActualUSD, res.Cost.EstimatedUSD, res.Cost.Tokens.Total,
		res.CompletedRounds, res.TotalRounds, res.Duration.Round(time.Millisecond))
}

func confidenceBand(c float64) string {
	switch {
	case c > 0.9:
		return "high"
	case c >= 0.7:
		return "medium"
	default:
		return "low"
	}
}
