package cost

// Pre-flight estimation approximates what a consultation will spend before
// any provider call is made. The approximation is deliberately coarse: input
// tokens from character length at a fixed ratio, output tokens from a fixed
// per-agent-per-round allowance.

const (
	// CharsPerToken is the fixed characters-per-token ratio used to
	// approximate input tokens from question and context length.
	CharsPerToken = 4

	// OutputTokensPerAgentRound is the fixed output allowance assumed for
	// each agent in each round.
	OutputTokensPerAgentRound = 1200
)

// Estimate is the pre-flight token and cost prediction for a consultation.
type Estimate struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Estimator predicts consultation cost against a per-model price table.
type Estimator struct {
	pricing map[string]Pricing
}

// NewEstimator constructs an Estimator. A nil table falls back to DefaultTable.
func NewEstimator(pricing map[string]Pricing) *Estimator {
	if pricing == nil {
		pricing = DefaultTable()
	}
	return &Estimator{pricing: pricing}
}

// Estimate predicts token usage and cost for the given question/context,
// model roster and round count. The result is monotonically non-decreasing
// in agent count and round count: every agent is assumed to read the full
// prompt and produce the fixed allowance in every round.
func (e *Estimator) Estimate(question, context string, models []string, maxRounds int) Estimate {
	if maxRounds < 0 {
		maxRounds = 0
	}

	promptTokens := (len(question) + len(context) + CharsPerToken - 1) / CharsPerToken

	var est Estimate
	for _, m := range models {
		in := promptTokens * maxRounds
		out := OutputTokensPerAgentRound * maxRounds
		est.InputTokens += in
		est.OutputTokens += out
		est.CostUSD += priceFor(e.pricing, m).Price(in, out, 0)
	}
	est.TotalTokens = est.InputTokens + est.OutputTokens
	return est
}
