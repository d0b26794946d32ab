package metrics

import (
	"sync"
	"sync/atomic"
)

// AsyncObserver keeps event recording off the turn path. Events queue
// on a bounded channel and a single goroutine feeds the sink; when the
// buffer is full the event is dropped and counted rather than blocking
// a turn.
type AsyncObserver struct {
	sink    Observer
	events  chan MetricsEvent
	dropped atomic.Int64
	closing atomic.Bool
	stop    sync.Once
	wg      sync.WaitGroup
}

func NewAsyncObserver(sink Observer, buffer int) *AsyncObserver {
	if buffer <= 0 {
		buffer = 256
	}
	a := &AsyncObserver{
		sink:   sink,
		events: make(chan MetricsEvent, buffer),
	}
	a.wg.Add(1)
	go a.pump()
	return a
}

func (a *AsyncObserver) RecordEvent(ev MetricsEvent) {
	if a == nil || a.closing.Load() {
		return
	}
	select {
	case a.events <- ev:
	default:
		a.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded on a full buffer.
func (a *AsyncObserver) Dropped() int64 {
	return a.dropped.Load()
}

// Close drains queued events into the sink and stops the pump.
func (a *AsyncObserver) Close() {
	if a == nil {
		return
	}
	a.stop.Do(func() {
		a.closing.Store(true)
		close(a.events)
		a.wg.Wait()
	})
}

func (a *AsyncObserver) pump() {
	defer a.wg.Done()
	for ev := range a.events {
		a.sink.RecordEvent(ev)
	}
}
