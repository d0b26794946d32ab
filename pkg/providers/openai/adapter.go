package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/harunnryd/niaga/pkg/errorsx"
	"github.com/harunnryd/niaga/pkg/llm"
	"github.com/harunnryd/niaga/pkg/resilience"
)

type Adapter struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
	Breaker *resilience.CircuitBreaker
}

func NewAdapter(apiKey, model string) *Adapter {
	return &Adapter{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://api.openai.com/v1",
		Client:  &http.Client{Timeout: 60 * time.Second},
		Breaker: resilience.NewCircuitBreaker(3, 30*time.Second),
	}
}

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) Generate(ctx context.Context, input llm.Request) (llm.Response, error) {
	if a.Breaker != nil && !a.Breaker.Allow() {
		return llm.Response{}, resilience.ErrCircuitOpen
	}
	resp, err := a.generate(ctx, input)
	if a.Breaker != nil {
		a.Breaker.Record(err)
	}
	return resp, err
}

func (a *Adapter) generate(ctx context.Context, input llm.Request) (llm.Response, error) {
	body, err := a.buildRequest(input)
	if err != nil {
		return llm.Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/chat/completions", body)
	if err != nil {
		return llm.Response{}, err
	}
	a.applyHeaders(req)
	resp, err := a.client().Do(req)
	if err != nil {
		return llm.Response{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		rl := resilience.RateLimitError{Provider: "openai", Message: string(body)}
		return llm.Response{}, errorsx.Wrap(rl, errorsx.ReasonLLMRateLimit)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return llm.Response{}, errors.New(string(body))
	}
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return llm.Response{}, err
	}
	return parseResponse(payload)
}

func (a *Adapter) buildRequest(input llm.Request) (*bytes.Buffer, error) {
	req := map[string]any{
		"model":    a.Model,
		"messages": normalizeMessages(input.Messages),
	}
	if input.JSONMode {
		req["response_format"] = map[string]any{"type": "json_object"}
	}
	if input.Temperature > 0 {
		req["temperature"] = input.Temperature
	} else {
		req["temperature"] = 0
	}
	if input.MaxTokens > 0 {
		req["max_tokens"] = input.MaxTokens
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(b), nil
}

func (a *Adapter) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.APIKey)
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}

// normalizeMessages converts llm messages to the chat completions shape.
// Image attachments become multi-part content entries.
func normalizeMessages(messages []llm.Message) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		entry := map[string]any{"role": m.Role}
		if m.ImageURL != "" {
			entry["content"] = []map[string]any{
				{"type": "text", "text": m.Content},
				{"type": "image_url", "image_url": map[string]any{"url": m.ImageURL}},
			}
		} else {
			entry["content"] = m.Content
		}
		out = append(out, entry)
	}
	return out
}

func parseResponse(payload map[string]any) (llm.Response, error) {
	choices, _ := payload["choices"].([]any)
	if len(choices) == 0 {
		return llm.Response{}, errors.New("no choices")
	}
	first, _ := choices[0].(map[string]any)
	msg, _ := first["message"].(map[string]any)
	content, _ := msg["content"].(string)
	resp := llm.Response{Text: content}
	if reason, _ := first["finish_reason"].(string); reason != "" {
		resp.FinishReason = reason
	}
	if usage, ok := payload["usage"].(map[string]any); ok {
		resp.Usage = llm.Usage{
			PromptTokens:     intValue(usage["prompt_tokens"]),
			CompletionTokens: intValue(usage["completion_tokens"]),
			TotalTokens:      intValue(usage["total_tokens"]),
		}
	}
	return resp, nil
}

func intValue(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}
