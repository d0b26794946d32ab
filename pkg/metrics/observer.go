package metrics

import "time"

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// Well-known event names emitted by the decision pipeline.
const (
	EventTurnIn            = "turn_in"
	EventTurnOut           = "turn_out"
	EventLLMDone           = "llm_done"
	EventLLMClassify       = "llm_classify"
	EventRetrievalDone     = "retrieval_done"
	EventFunctionDone      = "function_done"
	EventValidatorOverride = "validator_override"
	EventEnrichmentDone    = "enrichment_done"
	EventEnrichmentDrop    = "enrichment_drop"
)

// Common tag keys.
const (
	TagSessionID = "session_id"
	TagAgentID   = "agent_id"
	TagChannel   = "channel"
	TagOperation = "operation"
)

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}
