package metrics

import (
	"sync"
)

// CostSummary accumulates per-session spend from llm, retrieval, and
// enrichment events so operators can read a running total without
// touching the session store.
type CostSummary struct {
	mu     sync.Mutex
	totals map[string]float64
}

func NewCostSummary() *CostSummary {
	return &CostSummary{totals: make(map[string]float64)}
}

func (c *CostSummary) RecordEvent(ev MetricsEvent) {
	switch ev.Name {
	case EventLLMDone, EventLLMClassify, EventRetrievalDone, EventFunctionDone, EventEnrichmentDone:
	default:
		return
	}
	if ev.Value <= 0 {
		return
	}
	sid := ev.Tags[TagSessionID]
	if sid == "" {
		return
	}
	c.mu.Lock()
	c.totals[sid] += ev.Value
	c.mu.Unlock()
}

// Total reports the accumulated spend for one session.
func (c *CostSummary) Total(sessionID string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totals[sessionID]
}

// Totals returns a copy of all per-session totals.
func (c *CostSummary) Totals() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]float64, len(c.totals))
	for k, v := range c.totals {
		out[k] = v
	}
	return out
}
