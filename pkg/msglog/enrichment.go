package msglog

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/niaga/pkg/errorsx"
	"github.com/harunnryd/niaga/pkg/llm"
	"github.com/harunnryd/niaga/pkg/metrics"
	"github.com/harunnryd/niaga/pkg/priority"
	"github.com/harunnryd/niaga/pkg/session"
)

// Enrichment is the post-response analysis of a message.
type Enrichment struct {
	Sentiment   string  `json:"sentiment,omitempty"`
	Intent      string  `json:"intent,omitempty"`
	Translation string  `json:"translation,omitempty"`
	Cost        float64 `json:"cost"`
}

// Enricher analyzes message content after the reply has been sent.
type Enricher interface {
	Enrich(ctx context.Context, content string) (Enrichment, error)
}

// Task is a queued enrichment unit.
type Task struct {
	MessageID string
	SessionID string
	Content   string
}

type costMerge struct {
	SessionID string
	Cost      float64
}

// MetaSetter lets the worker attach enrichment output to stored messages.
type MetaSetter interface {
	SetMeta(messageID string, meta map[string]any)
}

// EnrichmentWorker runs enrichment detached from the response path.
// Analyses enter at low priority; the resulting session cost merges enter
// at high priority so running totals converge first. The contract is
// eventually applied, never blocks, never throws into the caller.
type EnrichmentWorker struct {
	queue    *priority.PriorityQueue
	enricher Enricher
	store    session.Store
	locker   *session.Locker
	meta     MetaSetter
	obs      metrics.Observer
	log      *slog.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
	once     sync.Once
}

type WorkerOptions struct {
	Buffer  int
	Workers int
	Timeout time.Duration

	// Locker must be the same instance the turn pipeline locks with,
	// so a cost merge can never land inside another writer's
	// load-mutate-save window.
	Locker *session.Locker
}

func NewEnrichmentWorker(enricher Enricher, store session.Store, obs metrics.Observer, log *slog.Logger, opts WorkerOptions) *EnrichmentWorker {
	if opts.Buffer <= 0 {
		opts.Buffer = 128
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	if opts.Locker == nil {
		opts.Locker = session.NewLocker()
	}
	w := &EnrichmentWorker{
		queue:    priority.New(opts.Buffer, opts.Buffer, 3),
		enricher: enricher,
		store:    store,
		locker:   opts.Locker,
		obs:      obs,
		log:      log,
		timeout:  opts.Timeout,
	}
	for i := 0; i < opts.Workers; i++ {
		w.wg.Add(1)
		go w.loop()
	}
	return w
}

// SetMetaSetter wires the message log after construction (the log also
// depends on the worker).
func (w *EnrichmentWorker) SetMetaSetter(meta MetaSetter) {
	w.meta = meta
}

// Enqueue never blocks; a full queue drops the task and records the drop.
func (w *EnrichmentWorker) Enqueue(task Task) {
	if w == nil {
		return
	}
	if !w.queue.TryPushLow(task) {
		w.log.Warn("enrichment_queue_full", "message_id", task.MessageID)
		w.obs.RecordEvent(metrics.MetricsEvent{
			Name: metrics.EventEnrichmentDrop,
			Time: time.Now(),
			Tags: map[string]string{metrics.TagSessionID: task.SessionID},
		})
	}
}

// Close drains the queue and stops the workers.
func (w *EnrichmentWorker) Close() {
	w.once.Do(func() {
		w.queue.Close()
		w.wg.Wait()
	})
}

func (w *EnrichmentWorker) loop() {
	defer w.wg.Done()
	for {
		item, ok := w.queue.Pop()
		if !ok {
			return
		}
		switch v := item.(type) {
		case Task:
			w.run(v)
		case costMerge:
			w.merge(v)
		}
	}
}

func (w *EnrichmentWorker) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("enrichment_panic", "message_id", task.MessageID, "panic", r)
		}
	}()
	if w.enricher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	result, err := w.enricher.Enrich(ctx, task.Content)
	if err != nil {
		w.log.Warn("enrichment_failed", "message_id", task.MessageID, "error", err)
		return
	}
	if w.meta != nil {
		w.meta.SetMeta(task.MessageID, map[string]any{
			"sentiment":   result.Sentiment,
			"intent":      result.Intent,
			"translation": result.Translation,
		})
	}
	if result.Cost > 0 {
		if !w.queue.TryPushHigh(costMerge{SessionID: task.SessionID, Cost: result.Cost}) {
			w.merge(costMerge{SessionID: task.SessionID, Cost: result.Cost})
		}
	}
	w.obs.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventEnrichmentDone,
		Time:  time.Now(),
		Value: result.Cost,
		Tags:  map[string]string{metrics.TagSessionID: task.SessionID},
	})
}

// merge folds an enrichment cost into the session running total. The
// load-mutate-save runs under the session lock shared with the turn
// pipeline, so a turn in flight finishes its own Save first.
func (w *EnrichmentWorker) merge(m costMerge) {
	if w.store == nil {
		return
	}
	release := w.locker.Acquire(m.SessionID)
	defer release()
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	s, err := w.store.Get(ctx, m.SessionID)
	if err != nil {
		w.log.Warn("enrichment_cost_merge_failed", "session_id", m.SessionID, "error", err)
		return
	}
	s.TotalCost += m.Cost
	if err := w.store.Save(ctx, s); err != nil {
		w.log.Warn("enrichment_cost_save_failed", "session_id", m.SessionID, "error", err)
	}
}

// LLMEnricher performs sentiment/intent/translation analysis with a small
// JSON-only model call.
type LLMEnricher struct {
	Adapter llm.Adapter
	Prices  llm.PriceTable
}

const enrichPrompt = `Analyze the customer message. Reply with only JSON:
{"sentiment": "positive"|"neutral"|"negative", "intent": "<short label>", "translation": "<english translation or empty>"}`

func (e *LLMEnricher) Enrich(ctx context.Context, content string) (Enrichment, error) {
	resp, err := e.Adapter.Generate(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: enrichPrompt},
			{Role: llm.RoleUser, Content: content},
		},
		JSONMode:    true,
		Temperature: 0,
		MaxTokens:   128,
	})
	if err != nil {
		return Enrichment{}, errorsx.Wrap(err, errorsx.ReasonEnrichment)
	}
	var out Enrichment
	cleaned := strings.TrimSpace(resp.Text)
	if i := strings.Index(cleaned, "{"); i >= 0 {
		if j := strings.LastIndex(cleaned, "}"); j > i {
			cleaned = cleaned[i : j+1]
		}
	}
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return Enrichment{}, errorsx.Wrap(err, errorsx.ReasonEnrichment)
	}
	out.Cost = llm.CostOf(resp.Usage, e.Prices)
	return out, nil
}

// StaticEnricher returns a fixed enrichment; used by tests and examples.
type StaticEnricher struct {
	Result Enrichment
	Err    error
}

func (s *StaticEnricher) Enrich(ctx context.Context, content string) (Enrichment, error) {
	if s.Err != nil {
		return Enrichment{}, s.Err
	}
	return s.Result, nil
}
