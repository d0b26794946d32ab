package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/niaga/pkg/errorsx"
	"github.com/harunnryd/niaga/pkg/resilience"
)

// Handler executes a function and returns a textual result for the model.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Function is an executable unit the model may request by name.
type Function struct {
	Name        string
	Description string
	Schema      Schema
	Handler     Handler
}

// Status values recorded per call.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// CallResult is the per-call record added to the turn's function log.
type CallResult struct {
	Name    string         `json:"name"`
	Args    map[string]any `json:"args,omitempty"`
	Output  string         `json:"output,omitempty"`
	Status  string         `json:"status"`
	Error   string         `json:"error,omitempty"`
	Missing []string       `json:"missing,omitempty"`
}

// Skipped reports whether the guard blocked execution.
func (r CallResult) Skipped() bool { return r.Status == StatusSkipped }

// Executed reports whether the handler ran successfully.
func (r CallResult) Executed() bool { return r.Status == StatusOK }

type Options struct {
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// Dispatcher validates and executes requested function calls under a
// bounded timeout. One function failure never aborts the turn.
type Dispatcher struct {
	registry *Registry
	opts     Options
	log      *slog.Logger
}

func NewDispatcher(registry *Registry, opts Options, log *slog.Logger) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 200 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{registry: registry, opts: opts, log: log}
}

// Names lists the registered function names.
func (d *Dispatcher) Names() []string {
	return d.registry.Names()
}

// Dispatch runs the named function when its argument guard passes.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) CallResult {
	fn, ok := d.registry.Lookup(name)
	if !ok {
		d.log.Warn("function_unknown", "name", name)
		return CallResult{Name: name, Args: args, Status: StatusError, Error: "unknown function"}
	}
	guard := Guard(fn.Schema, args)
	if guard.Skip {
		err := errorsx.Newf(errorsx.ReasonFunctionSkipped, "guard blocked %s: missing %s", name, strings.Join(guard.Missing, ", "))
		d.log.Info("function_skipped", "name", name, "missing", guard.Missing)
		return CallResult{Name: name, Args: args, Status: StatusSkipped, Error: err.Error(), Missing: guard.Missing}
	}

	callCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	var output string
	policy := resilience.NewRetryPolicy(d.opts.Retries, d.opts.Backoff)
	err := policy.DoContext(callCtx, func(c context.Context) error {
		var callErr error
		output, callErr = fn.Handler(c, args)
		return callErr
	})
	if err != nil {
		status := StatusError
		if errors.Is(err, context.DeadlineExceeded) {
			status = StatusTimeout
			err = errorsx.Wrap(err, errorsx.ReasonFunctionTimeout)
		} else {
			err = errorsx.Wrap(err, errorsx.ReasonFunctionExec)
		}
		d.log.Error("function_failed", "name", name, "status", status, "error", err)
		return CallResult{Name: name, Args: args, Status: status, Error: err.Error()}
	}
	return CallResult{Name: name, Args: args, Output: output, Status: StatusOK}
}
