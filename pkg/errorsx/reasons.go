package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonLLMGenerate  ReasonCode = "llm_generate"
	ReasonLLMParse     ReasonCode = "llm_parse"
	ReasonLLMRateLimit ReasonCode = "llm_rate_limit"

	ReasonRetrievalSearch ReasonCode = "retrieval_search"
	ReasonCommerceLookup  ReasonCode = "commerce_lookup"

	ReasonFunctionExec    ReasonCode = "function_exec"
	ReasonFunctionTimeout ReasonCode = "function_timeout"
	ReasonFunctionSkipped ReasonCode = "function_skipped"

	ReasonSessionNotFound ReasonCode = "session_not_found"
	ReasonAgentNotFound   ReasonCode = "agent_not_found"

	ReasonDateUnparseable ReasonCode = "date_unparseable"

	ReasonTransportSend             ReasonCode = "transport_send"
	ReasonTransportInvalidSignature ReasonCode = "webhook_invalid_signature"

	ReasonEnrichment ReasonCode = "enrichment"
)
