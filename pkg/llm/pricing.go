package llm

// PriceTable maps token usage to abstract cost units per provider model.
// Prices are per 1000 tokens.
type PriceTable struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

// DefaultPrices is used when no pricing is configured.
var DefaultPrices = PriceTable{PromptPer1K: 0.005, CompletionPer1K: 0.015}

// CostOf converts usage into cost units.
func CostOf(u Usage, p PriceTable) float64 {
	if p.PromptPer1K == 0 && p.CompletionPer1K == 0 {
		p = DefaultPrices
	}
	return float64(u.PromptTokens)/1000*p.PromptPer1K +
		float64(u.CompletionTokens)/1000*p.CompletionPer1K
}
