package niaga

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harunnryd/niaga/pkg/commerce"
	"github.com/harunnryd/niaga/pkg/configutil"
	"github.com/harunnryd/niaga/pkg/dispatch"
	"github.com/harunnryd/niaga/pkg/intent"
	"github.com/harunnryd/niaga/pkg/llm"
	"github.com/harunnryd/niaga/pkg/logging"
	"github.com/harunnryd/niaga/pkg/metrics"
	"github.com/harunnryd/niaga/pkg/msglog"
	"github.com/harunnryd/niaga/pkg/pipeline"
	"github.com/harunnryd/niaga/pkg/redact"
	"github.com/harunnryd/niaga/pkg/retrieval"
	"github.com/harunnryd/niaga/pkg/session"
	"github.com/harunnryd/niaga/pkg/transports"
	transportmock "github.com/harunnryd/niaga/pkg/transports/mock"
	transporttwilio "github.com/harunnryd/niaga/pkg/transports/twilio"
	transportwebchat "github.com/harunnryd/niaga/pkg/transports/webchat"
)

// Engine assembles the configured stack and pumps transport messages
// through the turn pipeline.
type Engine struct {
	cfg       Config
	log       *slog.Logger
	transport transports.Transport
	pipe      *pipeline.Engine
	msgs      *msglog.MemoryLog
	worker    *msglog.EnrichmentWorker
	asyncObs  *metrics.AsyncObserver
	costs     *metrics.CostSummary
	artifacts *os.File
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// EngineOptions lets callers swap collaborators; unset fields are built
// from Config.
type EngineOptions struct {
	Config     Config
	Providers  *ProviderRegistry
	Transport  transports.Transport
	Retrieval  retrieval.Service
	Commerce   commerce.Integration
	TicketSink dispatch.TicketSink
	Sessions   session.Store
	Observer   metrics.Observer
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	log := logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	redact.SetEnabled(cfg.Privacy.RedactPII)

	providers := opts.Providers
	if providers == nil {
		providers = DefaultProviders()
	}
	adapter, err := providers.BuildLLM(cfg.Vendors.LLM.Provider, cfg)
	if err != nil {
		return nil, fmt.Errorf("build llm: %w", err)
	}

	retrievalSvc := opts.Retrieval
	if retrievalSvc == nil && cfg.Retrieval.Endpoint != "" {
		retrievalSvc = retrieval.NewHTTPService(cfg.Retrieval.Endpoint, cfg.Retrieval.APIKey)
	}
	commerceSvc := opts.Commerce
	if commerceSvc == nil && cfg.Commerce.Endpoint != "" {
		commerceSvc = commerce.NewHTTPIntegration(cfg.Commerce.Endpoint, cfg.Commerce.APIKey)
	}

	registry := dispatch.NewRegistry()
	if commerceSvc != nil {
		registry.Register(dispatch.OrderStatusFunction(commerceSvc))
	}
	sink := opts.TicketSink
	if sink == nil {
		sink = &logTicketSink{log: log}
	}
	registry.Register(dispatch.CreateTicketFunction(sink))
	for _, fn := range cfg.Tools.Functions {
		registry.Register(dispatch.NewHTTPFunction(fn, nil))
	}
	dispatcher := dispatch.NewDispatcher(registry, dispatch.Options{
		Timeout: time.Duration(cfg.Tools.TimeoutMS) * time.Millisecond,
		Retries: cfg.Tools.Retries,
		Backoff: time.Duration(cfg.Tools.RetryBackoffMS) * time.Millisecond,
	}, log)

	store := opts.Sessions
	if store == nil {
		store = session.NewMemoryStore()
	}
	// One locker shared by the turn pipeline and the enrichment worker;
	// every session write in the process goes through it.
	locker := session.NewLocker()

	prices := llm.PriceTable{
		PromptPer1K:     cfg.Pricing.PromptPer1K,
		CompletionPer1K: cfg.Pricing.CompletionPer1K,
	}

	e := &Engine{cfg: cfg}
	e.costs = metrics.NewCostSummary()
	observers := []metrics.Observer{metrics.NewLoggerObserver(log), e.costs}
	if opts.Observer != nil {
		observers = append(observers, opts.Observer)
	}
	if cfg.Observability.ArtifactsDir != "" {
		if err := os.MkdirAll(cfg.Observability.ArtifactsDir, 0o755); err == nil {
			f, ferr := os.Create(filepath.Join(cfg.Observability.ArtifactsDir, "events.jsonl"))
			if ferr == nil {
				e.artifacts = f
				observers = append(observers, metrics.NewJSONLObserver(f))
			}
		}
	}
	e.asyncObs = metrics.NewAsyncObserver(metrics.NewMultiObserver(observers...), cfg.Observability.AsyncBuffer)

	var worker *msglog.EnrichmentWorker
	if cfg.Enrichment.Enabled {
		worker = msglog.NewEnrichmentWorker(
			&msglog.LLMEnricher{Adapter: adapter, Prices: prices},
			store, e.asyncObs, log,
			msglog.WorkerOptions{
				Buffer:  cfg.Enrichment.Buffer,
				Workers: cfg.Enrichment.Workers,
				Timeout: time.Duration(cfg.Enrichment.TimeoutMS) * time.Millisecond,
				Locker:  locker,
			},
		)
	}
	msgs := msglog.NewMemoryLog(worker)
	if worker != nil {
		worker.SetMetaSetter(msgs)
	}

	agents := pipeline.NewAgentRegistry()
	for _, a := range cfg.Agents {
		agents.Register(a)
	}

	transport := opts.Transport
	if transport == nil {
		transport, err = buildTransport(cfg.Transports)
		if err != nil {
			return nil, err
		}
	}

	e.log = log
	e.transport = transport
	e.msgs = msgs
	e.worker = worker
	e.pipe = pipeline.NewEngine(pipeline.Options{
		Adapter:    adapter,
		Classifier: intent.NewClassifier(adapter, log),
		Agents:     agents,
		Sessions:   store,
		Retrieval:  retrievalSvc,
		Dispatcher: dispatcher,
		MsgLog:     msgs,
		Observer:   e.asyncObs,
		Prices:     prices,
		Logger:     log,
		Locker:     locker,
	})
	return e, nil
}

// Pipeline exposes the turn engine for embedding callers.
func (e *Engine) Pipeline() *pipeline.Engine { return e.pipe }

// Costs exposes the per-session running cost summaries.
func (e *Engine) Costs() *metrics.CostSummary { return e.costs }

// Start brings up the transport and begins serving turns.
func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, e.cancel = context.WithCancel(ctx)
	if err := e.transport.Start(ctx); err != nil {
		return err
	}
	if reporter, ok := e.transport.(transports.ReadyReporter); ok {
		fields := []any{"transport", e.transport.Name()}
		for k, v := range reporter.ReadyFields() {
			fields = append(fields, k, v)
		}
		e.log.Info("transport_ready", fields...)
	}
	e.wg.Add(1)
	go e.serve(ctx)
	return nil
}

// serve pumps inbound messages through the pipeline. Turns for different
// sessions run concurrently; the pipeline serializes per session.
func (e *Engine) serve(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-e.transport.Recv():
			if !ok {
				return
			}
			e.wg.Add(1)
			go func(msg transports.InboundMessage) {
				defer e.wg.Done()
				e.handle(ctx, msg)
			}(msg)
		}
	}
}

func (e *Engine) handle(ctx context.Context, msg transports.InboundMessage) {
	resp, err := e.pipe.ProcessTurn(ctx, pipeline.TurnRequest{
		SessionID: msg.SessionID,
		AgentID:   msg.AgentID,
		Text:      msg.Text,
		ImageRef:  msg.ImageRef,
		Channel:   msg.Channel,
	})
	if err != nil {
		e.log.Error("turn_failed", "session_id", msg.SessionID, "error", err)
		return
	}
	out := transports.OutboundMessage{
		SessionID: resp.SessionID,
		To:        msg.From,
		Text:      resp.Response.Text,
		Channel:   msg.Channel,
	}
	if err := e.transport.Send(out); err != nil {
		e.log.Error("send_failed", "session_id", msg.SessionID, "error", err)
	}
}

// Stop shuts the engine down, draining enrichment and metrics queues.
func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	err := e.transport.Stop()
	e.wg.Wait()
	if e.worker != nil {
		e.worker.Close()
	}
	e.asyncObs.Close()
	if e.artifacts != nil {
		_ = e.artifacts.Close()
	}
	return err
}

type logTicketSink struct {
	log *slog.Logger
}

func (s *logTicketSink) CreateTicket(ctx context.Context, t dispatch.Ticket) (string, error) {
	s.log.Info("ticket_created", "ticket_id", t.ID, "order_no", t.OrderNo, "type", t.Type, "images", len(t.ImageURLs))
	return t.ID, nil
}

func buildTransport(cfg TransportsConfig) (transports.Transport, error) {
	switch cfg.Provider {
	case "twilio", "whatsapp":
		var settings transporttwilio.Config
		if err := configutil.DecodeSettings(cfg.Settings, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.AccountSID, "transports.settings.account_sid"); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.AuthToken, "transports.settings.auth_token"); err != nil {
			return nil, err
		}
		return transporttwilio.New(settings), nil
	case "webchat":
		var settings transportwebchat.Config
		if err := configutil.DecodeSettings(cfg.Settings, &settings); err != nil {
			return nil, err
		}
		return transportwebchat.New(settings), nil
	case "mock", "":
		return transportmock.New(), nil
	default:
		return nil, fmt.Errorf("transport provider not registered: %s", cfg.Provider)
	}
}
