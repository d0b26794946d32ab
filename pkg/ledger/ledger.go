package ledger

import "sync"

// Operation names for billable actions.
const (
	OpLLMCall         = "llm_call"
	OpLLMClassify     = "llm_classify"
	OpKnowledgeSearch = "knowledge_search"
	OpProductSearch   = "product_search"
	OpFunctionCall    = "function_call"
)

// Entry is one billable action within a turn.
type Entry struct {
	Operation string  `json:"operation"`
	UnitCost  float64 `json:"unit_cost"`
	TotalCost float64 `json:"total_cost"`
	Detail    string  `json:"detail,omitempty"`
}

// Breakdown is the itemized view returned to callers. FinalCost always
// equals the sum of the listed operations.
type Breakdown struct {
	Operations []Entry `json:"operations"`
	FinalCost  float64 `json:"final_cost"`
}

// Ledger accumulates per-operation costs for one turn.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
}

func New() *Ledger {
	return &Ledger{}
}

// Add records a billable action. Entries with zero cost are still recorded
// so the breakdown reflects every operation that ran.
func (l *Ledger) Add(operation string, cost float64, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{
		Operation: operation,
		UnitCost:  cost,
		TotalCost: cost,
		Detail:    detail,
	})
}

func (l *Ledger) Total() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var sum float64
	for _, e := range l.entries {
		sum += e.TotalCost
	}
	return sum
}

func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) Breakdown() Breakdown {
	entries := l.Entries()
	var sum float64
	for _, e := range entries {
		sum += e.TotalCost
	}
	return Breakdown{Operations: entries, FinalCost: sum}
}
