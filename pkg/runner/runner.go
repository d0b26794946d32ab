package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dimiro1/banner"
)

type State int

const (
	StateNew State = iota
	StateRunning
	StateDraining
	StateStopped
)

// Service is anything with a start/stop lifecycle; the assistant engine
// satisfies it.
type Service interface {
	Start(ctx context.Context) error
	Stop() error
}

type Hooks struct {
	OnStart func()
	OnStop  func()
}

const EngineVersion = "dev"

func PrintBanner() {
	tpl := "{{ .Title \"NIAGA\" \"\" 0 }}\nVersion: " + EngineVersion + "\n"
	banner.Init(os.Stdout, true, true, bytes.NewBufferString(tpl))
}

// Runner serves a Service until the context is canceled or a SIGINT/SIGTERM
// arrives, then drains it under a timeout.
type Runner struct {
	service Service
	hooks   Hooks
	timeout time.Duration
	state   int32
	stopped chan struct{}
}

func New(service Service, hooks Hooks, drainTimeout time.Duration) *Runner {
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}
	return &Runner{
		service: service,
		hooks:   hooks,
		timeout: drainTimeout,
		stopped: make(chan struct{}),
	}
}

func (r *Runner) State() State {
	return State(atomic.LoadInt32(&r.state))
}

// Run blocks until shutdown completes.
func (r *Runner) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&r.state, int32(StateNew), int32(StateRunning)) {
		return errors.New("runner already started")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	PrintBanner()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := r.service.Start(ctx); err != nil {
		atomic.StoreInt32(&r.state, int32(StateStopped))
		return err
	}
	if r.hooks.OnStart != nil {
		r.hooks.OnStart()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-ctx.Done():
	case <-sig:
	case <-r.stopped:
	}
	return r.drain()
}

// Stop triggers shutdown from another goroutine.
func (r *Runner) Stop() error {
	select {
	case <-r.stopped:
	default:
		close(r.stopped)
	}
	return nil
}

func (r *Runner) drain() error {
	atomic.StoreInt32(&r.state, int32(StateDraining))
	defer atomic.StoreInt32(&r.state, int32(StateStopped))

	done := make(chan error, 1)
	go func() { done <- r.service.Stop() }()

	var err error
	select {
	case err = <-done:
	case <-time.After(r.timeout):
		err = errors.New("drain timeout")
	}
	if r.hooks.OnStop != nil {
		r.hooks.OnStop()
	}
	return err
}
