package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/niaga/pkg/llm"
)

// Adapter replays scripted responses in order, repeating the last one when
// the script is exhausted. Calls and requests are recorded for assertions.
type Adapter struct {
	mu        sync.Mutex
	responses []llm.Response
	err       error
	calls     int
	Requests  []llm.Request
}

func NewAdapter(responses ...llm.Response) *Adapter {
	if len(responses) == 0 {
		responses = []llm.Response{{Text: `{"response": "mock response"}`}}
	}
	return &Adapter{responses: responses}
}

// NewTextAdapter is a convenience for single-response scripts.
func NewTextAdapter(text string) *Adapter {
	return NewAdapter(llm.Response{Text: text, Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}})
}

func (a *Adapter) Name() string { return "mock_llm" }

// Fail makes every subsequent Generate return err.
func (a *Adapter) Fail(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
}

func (a *Adapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *Adapter) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Requests = append(a.Requests, req)
	idx := a.calls
	a.calls++
	if a.err != nil {
		return llm.Response{}, a.err
	}
	if idx >= len(a.responses) {
		idx = len(a.responses) - 1
	}
	return a.responses[idx], nil
}
