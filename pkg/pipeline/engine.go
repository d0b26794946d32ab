package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/niaga/pkg/complaint"
	"github.com/harunnryd/niaga/pkg/decision"
	"github.com/harunnryd/niaga/pkg/dispatch"
	"github.com/harunnryd/niaga/pkg/errorsx"
	"github.com/harunnryd/niaga/pkg/intent"
	"github.com/harunnryd/niaga/pkg/ledger"
	"github.com/harunnryd/niaga/pkg/llm"
	"github.com/harunnryd/niaga/pkg/metrics"
	"github.com/harunnryd/niaga/pkg/msglog"
	"github.com/harunnryd/niaga/pkg/retrieval"
	"github.com/harunnryd/niaga/pkg/session"
	"github.com/harunnryd/niaga/pkg/temporal"
)

// TurnRequest is one inbound user turn.
type TurnRequest struct {
	SessionID string
	AgentID   string
	Text      string
	ImageRef  string
	Channel   string
}

// ResponseBody is the user-visible part of a turn result.
type ResponseBody struct {
	Text string `json:"text"`
}

// TurnResponse is the stable per-turn result surface.
type TurnResponse struct {
	SessionID         string                `json:"session_id"`
	Response          ResponseBody          `json:"response"`
	AgentTransfer     bool                  `json:"agent_transfer"`
	InteractionClosed bool                  `json:"interaction_closed"`
	Sources           []string              `json:"sources,omitempty"`
	Images            []string              `json:"images,omitempty"`
	Products          []retrieval.ProductHit `json:"products,omitempty"`
	FunctionCalls     []dispatch.CallResult `json:"function_calls,omitempty"`
	Cost              float64               `json:"cost"`
	CostBreakdown     ledger.Breakdown      `json:"cost_breakdown"`
}

// Options wires an Engine. Retrieval and MsgLog may be nil; the engine
// degrades to no search context and no history.
type Options struct {
	Adapter    llm.Adapter
	Classifier *intent.Classifier
	Agents     *AgentRegistry
	Sessions   session.Store
	Retrieval  retrieval.Service
	Dispatcher *dispatch.Dispatcher
	Validator  *temporal.Validator
	MsgLog     msglog.Logger
	Observer   metrics.Observer
	Prices     llm.PriceTable
	Retry      llm.RetryConfig
	Logger     *slog.Logger
	Now        func() time.Time

	// Locker serializes session access. Share it with anything else
	// that writes sessions (the enrichment worker does); left nil the
	// engine creates a private one.
	Locker *session.Locker
}

// Engine runs the per-turn decision pipeline. One turn is strictly
// sequential; turns for the same session are serialized by the locker.
type Engine struct {
	adapter    llm.Adapter
	classifier *intent.Classifier
	agents     *AgentRegistry
	sessions   session.Store
	locker     *session.Locker
	retrieval  retrieval.Service
	dispatcher *dispatch.Dispatcher
	validator  *temporal.Validator
	msgs       msglog.Logger
	obs        metrics.Observer
	prices     llm.PriceTable
	retryCfg   llm.RetryConfig
	log        *slog.Logger
	now        func() time.Time
}

func NewEngine(opts Options) *Engine {
	if opts.Validator == nil {
		opts.Validator = temporal.NewValidator()
	}
	if opts.Observer == nil {
		opts.Observer = metrics.NoopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Prices == (llm.PriceTable{}) {
		opts.Prices = llm.DefaultPrices
	}
	if opts.Locker == nil {
		opts.Locker = session.NewLocker()
	}
	return &Engine{
		adapter:    opts.Adapter,
		classifier: opts.Classifier,
		agents:     opts.Agents,
		sessions:   opts.Sessions,
		locker:     opts.Locker,
		retrieval:  opts.Retrieval,
		dispatcher: opts.Dispatcher,
		validator:  opts.Validator,
		msgs:       opts.MsgLog,
		obs:        opts.Observer,
		prices:     opts.Prices,
		retryCfg:   opts.Retry,
		log:        opts.Logger,
		now:        opts.Now,
	}
}

// turnState is the mutable working set of one ProcessTurn execution.
type turnState struct {
	req        TurnRequest
	agent      AgentConfig
	sess       *session.Session
	led        *ledger.Ledger
	text       string
	imageRef   string
	search     retrieval.SearchResult
	calls      []dispatch.CallResult
	dec        decision.Decision
	overridden bool
}

// ProcessTurn runs one user turn end to end. Unknown agent and session
// store failures are the only caller-visible errors; everything else
// degrades into a user-facing message.
func (e *Engine) ProcessTurn(ctx context.Context, req TurnRequest) (TurnResponse, error) {
	agent, ok := e.agents.Lookup(req.AgentID)
	if !ok {
		return TurnResponse{}, errorsx.New(errorsx.ReasonAgentNotFound, fmt.Sprintf("agent %q not registered", req.AgentID))
	}

	unlock := e.locker.Acquire(req.SessionID)
	defer unlock()

	sess, err := session.GetOrCreate(ctx, e.sessions, req.SessionID, agent.ID, req.Channel)
	if err != nil {
		return TurnResponse{}, err
	}
	if sess.Language == "" {
		sess.Language = agent.Language
	}

	e.obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventTurnIn, Time: e.now(), Tags: map[string]string{
		metrics.TagSessionID: req.SessionID, metrics.TagAgentID: agent.ID, metrics.TagChannel: req.Channel,
	}})

	st := &turnState{
		req:      req,
		agent:    agent,
		sess:     sess,
		led:      ledger.New(),
		text:     req.Text,
		imageRef: req.ImageRef,
	}

	e.resolvePending(st)

	if st.imageRef != "" {
		if done, resp := e.classify(ctx, st); done {
			return resp, nil
		}
	}

	e.invokeFirstPass(ctx, st)
	e.validateTemporal(st)
	if !st.overridden {
		e.dispatchFunction(ctx, st)
		e.retrieveRequested(ctx, st)
		e.invokeSecondPass(ctx, st)
	}
	return e.finalize(ctx, st)
}

// resolvePending merges a buffered ambiguous image into this turn.
func (e *Engine) resolvePending(st *turnState) {
	pending := st.sess.ConsumePendingImage()
	if pending == nil {
		return
	}
	if st.imageRef == "" {
		st.imageRef = pending.ImageRef
	}
	if pending.OriginalText != "" && pending.OriginalText != st.text {
		st.text = strings.TrimSpace(pending.OriginalText + " " + st.text)
	}
}

// classify resolves the intent of an image turn. When the verdict is
// unknown the image is buffered and a disambiguation question short-circuits
// the turn before any full-cost model call.
func (e *Engine) classify(ctx context.Context, st *turnState) (bool, TurnResponse) {
	rec := st.sess.ComplaintRecord()
	in := intent.Input{
		Message:         st.text,
		HasImage:        true,
		RecentTurns:     e.recentTurns(st.req.SessionID),
		ComplaintActive: rec.Active(),
		AwaitingImages:  rec.AwaitingImages(),
		HasCatalog:      st.agent.HasCatalog,
		HasCommerce:     st.agent.HasCommerce,
	}
	result, usage := e.classifier.Classify(ctx, in)
	if usage.TotalTokens > 0 {
		cost := llm.CostOf(usage, e.prices)
		st.led.Add(ledger.OpLLMClassify, cost, "image intent")
		e.obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventLLMClassify, Time: e.now(), Value: cost,
			Tags: map[string]string{metrics.TagSessionID: st.req.SessionID}})
	}
	e.log.Debug("image_intent", "session_id", st.req.SessionID, "intent", result.Intent, "source", result.Source, "confidence", result.Confidence)

	switch result.Intent {
	case intent.Unknown:
		st.sess.StorePendingImage(st.imageRef, st.req.Text, e.now())
		resp, err := e.respondDirect(ctx, st, disambiguationMessage(st.sess.Language), false)
		if err != nil {
			e.log.Error("finalize_failed", "session_id", st.req.SessionID, "error", err)
		}
		return true, resp
	case intent.ComplaintEvidence:
		if !rec.Active() {
			if err := rec.Begin(complaint.TypeUnknown, "image classified as complaint evidence"); err != nil {
				e.log.Warn("complaint_begin_failed", "session_id", st.req.SessionID, "error", err)
			}
		}
		rec.AddImage(st.imageRef, st.text, e.now())
	case intent.ProductSearch:
		query := st.text
		if strings.TrimSpace(query) == "" {
			query = "visually similar products"
		}
		st.search = e.search(ctx, st, retrieval.KindProduct, query)
	}
	return false, TurnResponse{}
}

// invokeFirstPass makes the primary model call and parses its decision.
func (e *Engine) invokeFirstPass(ctx context.Context, st *turnState) {
	messages := e.buildMessages(st, "")
	resp, err := e.invoke(ctx, st, messages, "pass 1")
	if err != nil {
		st.dec = decision.SafeFallback("")
		return
	}
	d, perr := decision.Parse(resp.Text)
	if perr != nil {
		e.log.Warn("decision_parse_failed", "session_id", st.req.SessionID, "error", perr)
	}
	st.dec = d

	if d.ComplaintContext != nil {
		rec := st.sess.ComplaintRecord()
		mc := complaint.ModelContext{
			IsComplaint:    d.ComplaintContext.IsComplaint,
			ComplaintType:  d.ComplaintContext.ComplaintType,
			OrderNumber:    d.ComplaintContext.OrderNumber,
			DeliveryDate:   d.ComplaintContext.DeliveryDate,
			AwaitingImages: d.ComplaintContext.AwaitingImages,
			ReadyForTicket: d.ComplaintContext.ReadyForTicket,
		}
		if err := rec.Apply(mc, e.now()); err != nil {
			e.log.Warn("complaint_apply_failed", "session_id", st.req.SessionID, "error", err)
		}
		if st.imageRef != "" {
			rec.AddImage(st.imageRef, st.text, e.now())
		}
	}
}

// validateTemporal recomputes the model's date arithmetic and overrides the
// response when the model asserted a pass the numbers do not support.
func (e *Engine) validateTemporal(st *turnState) {
	dv := st.dec.DateValidation
	if dv == nil {
		return
	}
	check := e.validator.Check(*dv)
	if !check.Checked {
		e.log.Debug("date_validation_skipped", "session_id", st.req.SessionID, "current", dv.CurrentDate, "comparison", dv.ComparisonDate)
		return
	}
	if check.Valid {
		return
	}
	e.obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventValidatorOverride, Time: e.now(),
		Tags: map[string]string{metrics.TagSessionID: st.req.SessionID},
		Fields: map[string]any{
			"error_type":       check.ErrorType,
			"claimed_days":     dv.DaysElapsed,
			"corrected_days":   check.Corrected.DaysElapsed,
			"claimed_verdict":  dv.ValidationPassed,
			"corrected_verdict": check.Corrected.ValidationPassed,
		},
	})
	e.log.Warn("date_validation_override",
		"session_id", st.req.SessionID,
		"error_type", check.ErrorType,
		"claimed_days", dv.DaysElapsed,
		"corrected_days", check.Corrected.DaysElapsed)

	// A corrected pass means the model got the numbers wrong but the request
	// is still within the window; the flow continues on the corrected facts.
	if check.Corrected.ValidationPassed {
		st.dec.DateValidation = &check.Corrected
		return
	}

	st.dec.Response = temporal.RejectionMessage(
		check.Corrected.PolicyType,
		check.Corrected.DaysElapsed,
		check.Corrected.ThresholdDays,
		st.sess.Language,
	)
	st.dec.FunctionCallNeeded = false
	st.dec.KnowledgeSearchNeeded = false
	st.dec.ProductSearchNeeded = false
	st.overridden = true

	rec := st.sess.ComplaintRecord()
	if rec.Active() {
		if err := rec.Transition(complaint.StateRejectedByPolicy, "policy window exceeded"); err == nil {
			rec.Clear("policy rejection")
		}
	}
}

// dispatchFunction runs the model-requested function under the guard, with
// complaint-held order number and evidence images injected when missing.
func (e *Engine) dispatchFunction(ctx context.Context, st *turnState) {
	if !st.dec.FunctionCallNeeded || st.dec.FunctionName == "" || e.dispatcher == nil {
		return
	}
	args := make(map[string]any, len(st.dec.FunctionArgs)+2)
	for k, v := range st.dec.FunctionArgs {
		args[k] = v
	}
	rec := st.sess.ComplaintRecord()
	if strings.EqualFold(st.dec.FunctionName, dispatch.FuncCreateTicket) && rec.Active() {
		if _, ok := args["order_no"]; !ok && rec.OrderNumber != "" {
			args["order_no"] = rec.OrderNumber
		}
		if _, ok := args["image_urls"]; !ok && len(rec.Images) > 0 {
			args["image_urls"] = rec.ImageRefs()
		}
		if rec.State != complaint.StateReadyForTicket {
			if err := rec.Transition(complaint.StateReadyForTicket, "ticket function requested"); err != nil {
				e.log.Warn("complaint_transition_failed", "session_id", st.req.SessionID, "error", err)
			}
		}
	}

	call := e.dispatcher.Dispatch(ctx, st.dec.FunctionName, args)
	st.calls = append(st.calls, call)
	st.led.Add(ledger.OpFunctionCall, 0, call.Name)
	e.obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventFunctionDone, Time: e.now(),
		Tags: map[string]string{metrics.TagSessionID: st.req.SessionID, metrics.TagOperation: call.Name}})

	switch call.Status {
	case dispatch.StatusOK:
		if strings.EqualFold(call.Name, dispatch.FuncCreateTicket) && rec.Active() {
			if err := rec.Transition(complaint.StateComplete, "ticket created"); err == nil {
				rec.Clear("ticket created")
			}
		}
	case dispatch.StatusError, dispatch.StatusTimeout:
		// Raw integration errors never reach the user. Complaint state is
		// kept so the user can retry the ticket.
		st.dec.Response = apologyMessage(st.sess.Language)
	}
}

// retrieveRequested runs the searches the first pass asked for.
func (e *Engine) retrieveRequested(ctx context.Context, st *turnState) {
	if !st.dec.KnowledgeSearchNeeded && !st.dec.ProductSearchNeeded {
		return
	}
	query := st.dec.SearchQuery
	if strings.TrimSpace(query) == "" {
		query = st.text
	}
	kind := retrieval.KindKnowledge
	if st.dec.ProductSearchNeeded {
		kind = retrieval.KindProduct
	}
	result := e.search(ctx, st, kind, query)
	st.search = mergeSearch(st.search, result)
}

// search runs one retrieval call; failures degrade to an empty result.
func (e *Engine) search(ctx context.Context, st *turnState, kind retrieval.Kind, query string) retrieval.SearchResult {
	if e.retrieval == nil {
		return retrieval.SearchResult{}
	}
	result, err := e.retrieval.Search(ctx, retrieval.SearchRequest{
		KnowledgeBaseID: st.agent.KnowledgeBaseID,
		Query:           query,
		TopK:            5,
		Kind:            kind,
	})
	if err != nil {
		e.log.Warn("retrieval_failed", "session_id", st.req.SessionID, "kind", kind, "error", err)
		return retrieval.SearchResult{}
	}
	op := ledger.OpKnowledgeSearch
	if kind == retrieval.KindProduct {
		op = ledger.OpProductSearch
	}
	st.led.Add(op, result.Cost, query)
	e.obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventRetrievalDone, Time: e.now(), Value: result.Cost,
		Tags: map[string]string{metrics.TagSessionID: st.req.SessionID, metrics.TagOperation: string(kind)}})
	return result
}

// invokeSecondPass re-calls the model only when new facts arrived. This
// bounds the turn to two full passes.
func (e *Engine) invokeSecondPass(ctx context.Context, st *turnState) {
	executed := false
	var functionOutput, functionName string
	for _, c := range st.calls {
		if c.Executed() {
			executed = true
			functionOutput = c.Output
			functionName = c.Name
		}
	}
	newSearch := st.dec.WantsSecondPass() && !st.search.Empty()
	if !executed && !newSearch {
		return
	}

	evidence := buildEvidence(functionName, functionOutput, st.search)
	messages := e.buildMessages(st, evidence)
	resp, err := e.invoke(ctx, st, messages, "pass 2")
	if err != nil {
		return
	}
	d, perr := decision.Parse(resp.Text)
	if perr != nil {
		e.log.Warn("decision_parse_failed", "session_id", st.req.SessionID, "pass", 2, "error", perr)
	}
	if d.Response != "" {
		st.dec.Response = d.Response
	}
	st.dec.ConversationComplete = st.dec.ConversationComplete || d.ConversationComplete
	st.dec.UserWantsToEnd = st.dec.UserWantsToEnd || d.UserWantsToEnd
	st.dec.AgentTransfer = st.dec.AgentTransfer || d.AgentTransfer
}

// invoke performs one model call with retry, records its cost, and returns
// the raw response.
func (e *Engine) invoke(ctx context.Context, st *turnState, messages []llm.Message, detail string) (llm.Response, error) {
	resp, err := llm.Retry(ctx, e.retryCfg, func(ctx context.Context) (llm.Response, error) {
		return e.adapter.Generate(ctx, llm.Request{
			Messages:    messages,
			JSONMode:    true,
			Temperature: 0.3,
			MaxTokens:   1024,
		})
	})
	if err != nil {
		e.log.Error("llm_generate_failed", "session_id", st.req.SessionID, "detail", detail, "error", err)
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
	}
	cost := llm.CostOf(resp.Usage, e.prices)
	st.led.Add(ledger.OpLLMCall, cost, detail)
	e.obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventLLMDone, Time: e.now(), Value: cost,
		Tags: map[string]string{metrics.TagSessionID: st.req.SessionID, metrics.TagOperation: detail}})
	return resp, nil
}

// buildMessages assembles the conversation for a model pass.
func (e *Engine) buildMessages(st *turnState, evidence string) []llm.Message {
	var functions []string
	if e.dispatcher != nil {
		functions = e.dispatcher.Names()
	}
	imageNote := ""
	if st.imageRef != "" {
		imageNote = "The customer attached an image with this message."
	}
	system := buildSystemPrompt(promptContext{
		Agent:     st.agent,
		Now:       e.now(),
		Complaint: st.sess.Complaint,
		Search:    st.search,
		Functions: functions,
		ImageNote: imageNote,
	})

	messages := []llm.Message{{Role: llm.RoleSystem, Content: system}}
	for _, m := range e.recentTurns(st.req.SessionID) {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	user := llm.Message{Role: llm.RoleUser, Content: st.text, ImageURL: st.imageRef}
	if user.Content == "" && user.ImageURL != "" {
		user.Content = "(image attached)"
	}
	messages = append(messages, user)
	if evidence != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: evidence})
	}
	return messages
}

func (e *Engine) recentTurns(sessionID string) []intent.Turn {
	if e.msgs == nil {
		return nil
	}
	history := e.msgs.Recent(sessionID, 6)
	turns := make([]intent.Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, intent.Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}

// respondDirect short-circuits the turn with a deterministic message.
func (e *Engine) respondDirect(ctx context.Context, st *turnState, text string, closed bool) (TurnResponse, error) {
	st.dec = decision.Decision{Response: text, ConversationComplete: closed}
	return e.finalize(ctx, st)
}

// finalize guarantees a non-empty response, persists the turn, and builds
// the caller-facing result.
func (e *Engine) finalize(ctx context.Context, st *turnState) (TurnResponse, error) {
	text := strings.TrimSpace(st.dec.Response)
	if text == "" {
		text = e.fallbackResponse(ctx, st)
	}

	closed := st.dec.ConversationComplete || st.dec.UserWantsToEnd
	if closed && !containsFarewell(text) {
		line := st.agent.ClosingLine
		if line == "" {
			line = defaultClosingLine(st.sess.Language)
		}
		text = strings.TrimSpace(text + " " + line)
	}

	total := st.led.Total()
	var userMsgID string
	if e.msgs != nil {
		userID, err := e.msgs.Append(ctx, st.req.SessionID, llm.RoleUser, st.req.Text, 0, map[string]any{"image_ref": st.imageRef})
		if err == nil {
			userMsgID = userID
		}
		if _, err := e.msgs.Append(ctx, st.req.SessionID, llm.RoleAssistant, text, total, nil); err != nil {
			e.log.Warn("message_append_failed", "session_id", st.req.SessionID, "error", err)
		}
	}

	st.sess.MessageCount += 2
	st.sess.TotalCost += total
	st.sess.UpdatedAt = e.now()
	if err := e.sessions.Save(ctx, st.sess); err != nil {
		return TurnResponse{}, err
	}

	// Enrichment starts only after the turn's Save so the worker's cost
	// merge can never race this write. The worker also takes the session
	// lock, which this goroutine still holds until ProcessTurn returns.
	if e.msgs != nil && userMsgID != "" && st.req.Text != "" {
		e.msgs.EnqueueEnrichment(userMsgID, st.req.SessionID, st.req.Text)
	}

	e.obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventTurnOut, Time: e.now(), Value: total,
		Tags: map[string]string{metrics.TagSessionID: st.req.SessionID, metrics.TagAgentID: st.agent.ID}})

	return TurnResponse{
		SessionID:         st.req.SessionID,
		Response:          ResponseBody{Text: text},
		AgentTransfer:     st.dec.AgentTransfer,
		InteractionClosed: closed,
		Sources:           st.search.Sources,
		Images:            st.search.Images,
		Products:          st.search.Products,
		FunctionCalls:     st.calls,
		Cost:              total,
		CostBreakdown:     st.led.Breakdown(),
	}, nil
}

// fallbackResponse applies the deterministic cascade that guarantees the
// pipeline never returns an empty message.
func (e *Engine) fallbackResponse(ctx context.Context, st *turnState) string {
	// An executed function whose summary the model swallowed. Raw
	// payloads never reach the user; unformattable output falls through.
	for _, c := range st.calls {
		if c.Executed() && c.Output != "" {
			if msg := functionReply(c.Name, c.Output, st.sess.Language); msg != "" {
				return msg
			}
		}
	}
	// The model populated lookup arguments without writing a response.
	if orderNo := stringField(st.dec.FunctionArgs, "order_number"); orderNo != "" {
		if out := e.lookupOrder(ctx, st, orderNo); out != "" {
			return out
		}
	}
	if kind := intent.DetectTrivial(st.req.Text); kind != intent.TrivialNone {
		return trivialReply(kind, st.sess.Language)
	}
	if orderNo := intent.DetectOrderIdentifier(st.req.Text); orderNo != "" {
		if out := e.lookupOrder(ctx, st, orderNo); out != "" {
			return out
		}
	}
	return clarificationMessage(st.sess.Language)
}

func (e *Engine) lookupOrder(ctx context.Context, st *turnState, orderNo string) string {
	if e.dispatcher == nil {
		return ""
	}
	call := e.dispatcher.Dispatch(ctx, dispatch.FuncOrderStatus, map[string]any{"order_number": orderNo})
	st.calls = append(st.calls, call)
	st.led.Add(ledger.OpFunctionCall, 0, call.Name)
	if !call.Executed() {
		return ""
	}
	return orderReply(call.Output, orderNo, st.sess.Language)
}

func containsFarewell(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range farewellMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func mergeSearch(a, b retrieval.SearchResult) retrieval.SearchResult {
	return retrieval.SearchResult{
		Texts:    append(a.Texts, b.Texts...),
		Images:   append(a.Images, b.Images...),
		Products: append(a.Products, b.Products...),
		Sources:  append(a.Sources, b.Sources...),
		Cost:     a.Cost + b.Cost,
	}
}

func stringField(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	s, _ := args[key].(string)
	return s
}
