package intent

// Intent is the resolved purpose of an image submission.
type Intent string

const (
	ComplaintEvidence Intent = "complaint_evidence"
	ProductSearch     Intent = "product_search"
	LLMAnalysis       Intent = "llm_analysis"
	Unknown           Intent = "unknown"
)

// Source names the cascade tier that produced a result.
type Source string

const (
	SourceCapability Source = "capability_gate"
	SourceSession    Source = "session_state"
	SourceBotPrompt  Source = "bot_initiative"
	SourceKeywords   Source = "keyword_score"
	SourceLLM        Source = "llm"
	SourceFallback   Source = "fallback"
)

// Result is a classification verdict.
type Result struct {
	Intent     Intent
	Confidence float64
	Source     Source
}
