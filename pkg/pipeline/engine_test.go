package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/niaga/pkg/commerce"
	"github.com/harunnryd/niaga/pkg/complaint"
	"github.com/harunnryd/niaga/pkg/dispatch"
	"github.com/harunnryd/niaga/pkg/errorsx"
	"github.com/harunnryd/niaga/pkg/intent"
	"github.com/harunnryd/niaga/pkg/llm"
	"github.com/harunnryd/niaga/pkg/metrics"
	"github.com/harunnryd/niaga/pkg/msglog"
	"github.com/harunnryd/niaga/pkg/providers/mock"
	"github.com/harunnryd/niaga/pkg/retrieval"
	"github.com/harunnryd/niaga/pkg/session"
)

type captureSink struct {
	mu      sync.Mutex
	tickets []dispatch.Ticket
	err     error
}

func (c *captureSink) CreateTicket(ctx context.Context, t dispatch.Ticket) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.tickets = append(c.tickets, t)
	return "TCK-1", nil
}

func testAgent() AgentConfig {
	return AgentConfig{
		ID:          "shopbot",
		Name:        "ShopBot",
		Language:    "en",
		HasCatalog:  true,
		HasCommerce: true,
		PolicyWindows: map[string]int{
			"return": 2,
		},
	}
}

type harness struct {
	engine  *Engine
	adapter *mock.Adapter
	store   *session.MemoryStore
	sink    *captureSink
	msgs    *msglog.MemoryLog
	obs     *metrics.MemoryObserver
}

func newHarness(t *testing.T, responses ...llm.Response) *harness {
	t.Helper()
	adapter := mock.NewAdapter(responses...)
	agents := NewAgentRegistry()
	agents.Register(testAgent())
	store := session.NewMemoryStore()
	sink := &captureSink{}

	registry := dispatch.NewRegistry()
	registry.Register(dispatch.OrderStatusFunction(&commerce.StaticIntegration{
		Orders: []commerce.Order{{Number: "INV-12345", Status: "delivered", Total: 250000, Currency: "IDR"}},
	}))
	registry.Register(dispatch.CreateTicketFunction(sink))
	dispatcher := dispatch.NewDispatcher(registry, dispatch.Options{Timeout: time.Second}, nil)

	msgs := msglog.NewMemoryLog(nil)
	obs := metrics.NewMemoryObserver()

	engine := NewEngine(Options{
		Adapter:    adapter,
		Classifier: intent.NewClassifier(adapter, nil),
		Agents:     agents,
		Sessions:   store,
		Retrieval: &retrieval.StaticService{
			Knowledge: []string{"Returns are accepted within 2 days of delivery."},
			Products:  []retrieval.ProductHit{{ID: "p1", Title: "Sepatu Lari Biru", Price: 450000, Currency: "IDR"}},
			CostPer:   0.001,
		},
		Dispatcher: dispatcher,
		MsgLog:     msgs,
		Observer:   obs,
		Retry:      llm.RetryConfig{MaxAttempts: 1, Sleep: func(time.Duration) {}},
	})
	return &harness{engine: engine, adapter: adapter, store: store, sink: sink, msgs: msgs, obs: obs}
}

func usage() llm.Usage {
	return llm.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150}
}

func TestUnknownAgentIsAnError(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", AgentID: "nope", Text: "hi"})
	if !errorsx.HasReason(err, errorsx.ReasonAgentNotFound) {
		t.Fatalf("expected agent-not-found, got %v", err)
	}
}

func TestPlainTurnSinglePass(t *testing.T) {
	h := newHarness(t, llm.Response{Text: `{"response": "We ship nationwide!"}`, Usage: usage()})
	resp, err := h.engine.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", AgentID: "shopbot", Text: "do you ship to Bali?"})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if resp.Response.Text != "We ship nationwide!" {
		t.Fatalf("unexpected response: %q", resp.Response.Text)
	}
	if h.adapter.Calls() != 1 {
		t.Fatalf("expected one model call, got %d", h.adapter.Calls())
	}
	if resp.Cost <= 0 {
		t.Fatalf("expected positive cost")
	}
}

func TestCostConservation(t *testing.T) {
	h := newHarness(t,
		llm.Response{Text: `{"response": "", "knowledge_search_needed": true, "search_query": "returns"}`, Usage: usage()},
		llm.Response{Text: `{"response": "You can return within 2 days."}`, Usage: usage()},
	)
	resp, err := h.engine.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", AgentID: "shopbot", Text: "what is your return policy?"})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	var sum float64
	for _, op := range resp.CostBreakdown.Operations {
		sum += op.TotalCost
	}
	if sum != resp.CostBreakdown.FinalCost || resp.Cost != sum {
		t.Fatalf("breakdown sum %v != final %v / cost %v", sum, resp.CostBreakdown.FinalCost, resp.Cost)
	}
	s, _ := h.store.Get(context.Background(), "s1")
	if s.TotalCost != resp.Cost {
		t.Fatalf("session total %v != turn cost %v", s.TotalCost, resp.Cost)
	}
}

func TestSecondPassOnlyWithNewFacts(t *testing.T) {
	h := newHarness(t,
		llm.Response{Text: `{"response": "", "knowledge_search_needed": true, "search_query": "returns"}`, Usage: usage()},
		llm.Response{Text: `{"response": "Returns are accepted within 2 days."}`, Usage: usage()},
	)
	resp, err := h.engine.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", AgentID: "shopbot", Text: "return policy?"})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if h.adapter.Calls() != 2 {
		t.Fatalf("expected two model passes, got %d", h.adapter.Calls())
	}
	if resp.Response.Text != "Returns are accepted within 2 days." {
		t.Fatalf("unexpected response: %q", resp.Response.Text)
	}
	if len(resp.Sources) == 0 {
		t.Fatalf("expected sources from retrieval")
	}
}

func TestAmbiguousImageBuffersPendingAndAsks(t *testing.T) {
	h := newHarness(t, llm.Response{Text: `not json at all`})
	resp, err := h.engine.ProcessTurn(context.Background(), TurnRequest{
		SessionID: "s1", AgentID: "shopbot", Text: "look at this", ImageRef: "https://img/x.jpg",
	})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if !strings.Contains(resp.Response.Text, "similar products") {
		t.Fatalf("expected disambiguation question, got %q", resp.Response.Text)
	}
	s, _ := h.store.Get(context.Background(), "s1")
	if s.PendingImage == nil || s.PendingImage.ImageRef != "https://img/x.jpg" {
		t.Fatalf("expected buffered pending image, got %+v", s.PendingImage)
	}
	// "look at this" resolves to unknown on the keyword tier; no model
	// traffic at all.
	if h.adapter.Calls() != 0 {
		t.Fatalf("expected no model calls, got %d", h.adapter.Calls())
	}
}

func TestPendingImageConsumedNextTurn(t *testing.T) {
	h := newHarness(t, llm.Response{Text: `{"response": "Here are similar blue shoes."}`, Usage: usage()})
	s := &session.Session{ID: "s1", AgentID: "shopbot", Language: "en"}
	s.StorePendingImage("https://img/x.jpg", "look at this", time.Now())
	if err := h.store.Save(context.Background(), s); err != nil {
		t.Fatalf("save: %v", err)
	}

	resp, err := h.engine.ProcessTurn(context.Background(), TurnRequest{
		SessionID: "s1", AgentID: "shopbot", Text: "I want shoes similar to this",
	})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if resp.Response.Text == "" {
		t.Fatalf("expected a response")
	}
	got, _ := h.store.Get(context.Background(), "s1")
	if got.PendingImage != nil {
		t.Fatalf("pending image must be consumed")
	}
}

func TestComplaintTicketLifecycle(t *testing.T) {
	h := newHarness(t,
		// Turn 1: user complains, model opens the sub-flow and asks for photos.
		llm.Response{Text: `{"response": "I am sorry to hear that! Could you share a photo of the damage?", "complaint_context": {"is_complaint": true, "complaint_type": "damaged", "awaiting_images": true}}`, Usage: usage()},
		// Turn 2 (image): model acknowledges and asks for the order number.
		llm.Response{Text: `{"response": "Thank you. What is your order number?", "complaint_context": {"is_complaint": true, "complaint_type": "damaged", "awaiting_images": false}}`, Usage: usage()},
		// Turn 3: model files the ticket.
		llm.Response{Text: `{"response": "", "function_call_needed": true, "function_name": "create_ticket", "function_args": {"complaint_type": "damaged"}, "complaint_context": {"is_complaint": true, "complaint_type": "damaged", "order_number": "INV-12345", "ready_for_ticket": true}}`, Usage: usage()},
		llm.Response{Text: `{"response": "Your ticket has been filed. We will follow up within 24 hours."}`, Usage: usage()},
	)
	ctx := context.Background()

	if _, err := h.engine.ProcessTurn(ctx, TurnRequest{SessionID: "s1", AgentID: "shopbot", Text: "my package arrived damaged"}); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	s, _ := h.store.Get(ctx, "s1")
	if s.Complaint == nil || s.Complaint.State != complaint.StateAwaitingImages {
		t.Fatalf("expected awaiting images, got %+v", s.Complaint)
	}

	if _, err := h.engine.ProcessTurn(ctx, TurnRequest{SessionID: "s1", AgentID: "shopbot", ImageRef: "https://img/damage.jpg"}); err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	s, _ = h.store.Get(ctx, "s1")
	if len(s.Complaint.Images) != 1 {
		t.Fatalf("expected one collected image, got %d", len(s.Complaint.Images))
	}

	resp, err := h.engine.ProcessTurn(ctx, TurnRequest{SessionID: "s1", AgentID: "shopbot", Text: "my order is INV-12345"})
	if err != nil {
		t.Fatalf("turn 3: %v", err)
	}
	if len(h.sink.tickets) != 1 {
		t.Fatalf("expected one filed ticket, got %d", len(h.sink.tickets))
	}
	ticket := h.sink.tickets[0]
	if ticket.OrderNo != "INV-12345" {
		t.Fatalf("order number not injected: %+v", ticket)
	}
	if len(ticket.ImageURLs) != 1 || ticket.ImageURLs[0] != "https://img/damage.jpg" {
		t.Fatalf("evidence images not injected: %+v", ticket.ImageURLs)
	}
	if !strings.Contains(resp.Response.Text, "ticket has been filed") {
		t.Fatalf("unexpected final response: %q", resp.Response.Text)
	}
	s, _ = h.store.Get(ctx, "s1")
	if s.Complaint != nil && s.Complaint.State != complaint.StateInactive {
		t.Fatalf("complaint must be cleared after ticket, got %s", s.Complaint.State)
	}
}

func TestTemporalOverrideRejectsFalsePass(t *testing.T) {
	h := newHarness(t, llm.Response{Text: `{
		"response": "Sure, your return is within the window, let me set that up!",
		"date_validation": {"required": true, "policy_type": "return", "current_date": "2025-11-22", "comparison_date": "2025-10-31", "days_elapsed": 2, "threshold_days": 2, "validation_passed": true}
	}`, Usage: usage()})
	resp, err := h.engine.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", AgentID: "shopbot", Text: "I want to return my order from Oct 31"})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if strings.Contains(resp.Response.Text, "set that up") {
		t.Fatalf("model's false pass must be discarded, got %q", resp.Response.Text)
	}
	if !strings.Contains(resp.Response.Text, "22 days") || !strings.Contains(resp.Response.Text, "2 days") {
		t.Fatalf("override must cite corrected numbers, got %q", resp.Response.Text)
	}
	if h.obs.Count(metrics.EventValidatorOverride) != 1 {
		t.Fatalf("expected an override audit event")
	}
	if h.adapter.Calls() != 1 {
		t.Fatalf("override must not trigger a second model pass, got %d calls", h.adapter.Calls())
	}
}

func TestFunctionFailureYieldsApologyAndKeepsComplaint(t *testing.T) {
	h := newHarness(t, llm.Response{Text: `{"response": "Filing your ticket now.", "function_call_needed": true, "function_name": "create_ticket", "function_args": {"order_no": "INV-12345"}, "complaint_context": {"is_complaint": true, "complaint_type": "damaged", "order_number": "INV-12345", "ready_for_ticket": true}}`, Usage: usage()})
	h.sink.err = context.DeadlineExceeded

	resp, err := h.engine.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", AgentID: "shopbot", Text: "please file the ticket"})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if !strings.Contains(strings.ToLower(resp.Response.Text), "sorry") {
		t.Fatalf("expected apology, got %q", resp.Response.Text)
	}
	s, _ := h.store.Get(context.Background(), "s1")
	if s.Complaint == nil || !s.Complaint.Active() {
		t.Fatalf("complaint state must survive a failed ticket for retry")
	}
}

func TestGuardSkipPreservesModelResponse(t *testing.T) {
	h := newHarness(t, llm.Response{Text: `{"response": "Could you give me your order number, email, or phone?", "function_call_needed": true, "function_name": "order_status", "function_args": {}}`, Usage: usage()})
	resp, err := h.engine.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", AgentID: "shopbot", Text: "where is my order?"})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if !strings.Contains(resp.Response.Text, "order number, email, or phone") {
		t.Fatalf("skip must keep the model's ask, got %q", resp.Response.Text)
	}
	if len(resp.FunctionCalls) != 1 || !resp.FunctionCalls[0].Skipped() {
		t.Fatalf("expected a skipped call record, got %+v", resp.FunctionCalls)
	}
	if h.adapter.Calls() != 1 {
		t.Fatalf("skipped function must not trigger pass 2")
	}
}

func TestEmptyResponseFallbackTrivial(t *testing.T) {
	h := newHarness(t, llm.Response{Text: `{"response": ""}`, Usage: usage()})
	resp, err := h.engine.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", AgentID: "shopbot", Text: "thanks!"})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if !strings.Contains(resp.Response.Text, "welcome") {
		t.Fatalf("expected canned thanks reply, got %q", resp.Response.Text)
	}
}

func TestEmptyResponseFallbackOrderLookup(t *testing.T) {
	h := newHarness(t, llm.Response{Text: `{"response": ""}`, Usage: usage()})
	resp, err := h.engine.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", AgentID: "shopbot", Text: "any news on INV-12345?"})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if !strings.Contains(resp.Response.Text, "delivered") {
		t.Fatalf("expected order lookup output, got %q", resp.Response.Text)
	}
	if strings.ContainsAny(resp.Response.Text, "{}") {
		t.Fatalf("raw lookup payload leaked to the user: %q", resp.Response.Text)
	}
	if len(resp.FunctionCalls) != 1 || !resp.FunctionCalls[0].Executed() {
		t.Fatalf("expected an executed fallback lookup, got %+v", resp.FunctionCalls)
	}
}

func TestEmptyResponseNeverReturned(t *testing.T) {
	h := newHarness(t, llm.Response{Text: `{"response": ""}`, Usage: usage()})
	resp, err := h.engine.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", AgentID: "shopbot", Text: "zzkqj"})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if strings.TrimSpace(resp.Response.Text) == "" {
		t.Fatalf("pipeline returned an empty message")
	}
}

func TestClosingLineAppendedOnClosure(t *testing.T) {
	h := newHarness(t, llm.Response{Text: `{"response": "Glad I could help.", "conversation_complete": true}`, Usage: usage()})
	resp, err := h.engine.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", AgentID: "shopbot", Text: "that's all"})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if !resp.InteractionClosed {
		t.Fatalf("expected closed interaction")
	}
	if !containsFarewell(resp.Response.Text) {
		t.Fatalf("expected closing line appended, got %q", resp.Response.Text)
	}
}

func TestClosureKeepsModelFarewell(t *testing.T) {
	h := newHarness(t, llm.Response{Text: `{"response": "Goodbye and thanks for shopping with us!", "user_wants_to_end": true}`, Usage: usage()})
	resp, err := h.engine.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", AgentID: "shopbot", Text: "bye"})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if resp.Response.Text != "Goodbye and thanks for shopping with us!" {
		t.Fatalf("model farewell must be kept as-is, got %q", resp.Response.Text)
	}
}

func TestTurnMessagesLogged(t *testing.T) {
	h := newHarness(t, llm.Response{Text: `{"response": "Hi there!"}`, Usage: usage()})
	if _, err := h.engine.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", AgentID: "shopbot", Text: "hello"}); err != nil {
		t.Fatalf("turn: %v", err)
	}
	msgs := h.msgs.Messages("s1")
	if len(msgs) != 2 {
		t.Fatalf("expected user+assistant messages, got %d", len(msgs))
	}
	if msgs[0].Role != llm.RoleUser || msgs[1].Role != llm.RoleAssistant {
		t.Fatalf("unexpected roles: %s / %s", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].Cost <= 0 {
		t.Fatalf("assistant message must carry the turn cost")
	}
}
