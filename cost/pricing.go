// Package cost implements the resource-budgeting half of the consultation
// engine: a per-model pricing table, an append-only ledger of every provider
// call, a pre-flight estimator and the admission gate that decides whether a
// consultation needs interactive consent.
package cost

// Pricing is the USD price per 1000 tokens for one model. Cache reads are
// priced separately (providers bill cached prompt tokens at a discount).
type Pricing struct {
	InputPer1K     float64 `json:"input_per_1k"`
	OutputPer1K    float64 `json:"output_per_1k"`
	CacheReadPer1K float64 `json:"cache_read_per_1k"`
}

// DefaultPricing is the fallback for models missing from the table.
var DefaultPricing = Pricing{InputPer1K: 0.003, OutputPer1K: 0.015, CacheReadPer1K: 0.0003}

// DefaultTable prices the models the default roster and judges use. Prices
// are USD per 1K tokens.
func DefaultTable() map[string]Pricing {
	return map[string]Pricing{
		"claude-3-5-sonnet-20241022": {InputPer1K: 0.003, OutputPer1K: 0.015, CacheReadPer1K: 0.0003},
		"claude-3-5-haiku-20241022":  {InputPer1K: 0.0008, OutputPer1K: 0.004, CacheReadPer1K: 0.00008},
		"gpt-4o":                     {InputPer1K: 0.0025, OutputPer1K: 0.01, CacheReadPer1K: 0.00125},
		"gpt-4o-mini":                {InputPer1K: 0.00015, OutputPer1K: 0.0006, CacheReadPer1K: 0.000075},
	}
}

// priceFor resolves a model's pricing with fallback to DefaultPricing.
func priceFor(table map[string]Pricing, modelID string) Pricing {
	if p, ok := table[modelID]; ok {
		return p
	}
	return DefaultPricing
}

// Price computes the USD cost of a call. Cached prompt tokens are carved out
// of the input count and priced at the cache-read rate.
func (p Pricing) Price(inputTokens, outputTokens, cacheReadTokens int) float64 {
	billedInput := inputTokens - cacheReadTokens
	if billedInput < 0 {
		billedInput = 0
	}
	return float64(billedInput)/1000*p.InputPer1K +
		float64(cacheReadTokens)/1000*p.CacheReadPer1K +
		float64(outputTokens)/1000*p.OutputPer1K
}
