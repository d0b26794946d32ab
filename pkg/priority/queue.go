package priority

import (
	"sync/atomic"
	"time"
)

type Stats struct {
	HighPush int64
	LowPush  int64
	HighPop  int64
	LowPop   int64
}

type Queue interface {
	TryPushHigh(f any) bool
	TryPushLow(f any) bool
	Pop() (any, bool)
	Close()
	Stats() Stats
}

// PriorityQueue is a two-level queue with bounded capacity. High-priority
// items (session cost merges) always win over low-priority ones
// (enrichment analyses) subject to the fairness ratio.
type PriorityQueue struct {
	high       chan any
	low        chan any
	done       chan struct{}
	closed     atomic.Bool
	fairness   int
	highStreak int64
	highPush   int64
	lowPush    int64
	highPop    int64
	lowPop     int64
}

func New(highCap, lowCap, fairness int) *PriorityQueue {
	if fairness <= 0 {
		fairness = 3
	}
	return &PriorityQueue{
		high:     make(chan any, highCap),
		low:      make(chan any, lowCap),
		done:     make(chan struct{}),
		fairness: fairness,
	}
}

func (q *PriorityQueue) TryPushHigh(f any) bool {
	if q.closed.Load() {
		return false
	}
	select {
	case q.high <- f:
		atomic.AddInt64(&q.highPush, 1)
		return true
	default:
		return false
	}
}

func (q *PriorityQueue) TryPushLow(f any) bool {
	if q.closed.Load() {
		return false
	}
	select {
	case q.low <- f:
		atomic.AddInt64(&q.lowPush, 1)
		return true
	default:
		return false
	}
}

// Pop blocks until an item is available or the queue is closed and drained.
func (q *PriorityQueue) Pop() (any, bool) {
	for {
		// After fairness consecutive high pops, offer the low lane a
		// turn so a busy high lane cannot starve it indefinitely.
		if atomic.LoadInt64(&q.highStreak) >= int64(q.fairness) {
			select {
			case f := <-q.low:
				return q.popped(f, false)
			default:
			}
		}
		select {
		case f := <-q.high:
			return q.popped(f, true)
		default:
		}
		select {
		case f := <-q.low:
			return q.popped(f, false)
		default:
		}
		select {
		case <-q.done:
			// drain leftovers before reporting empty
			select {
			case f := <-q.high:
				return q.popped(f, true)
			case f := <-q.low:
				return q.popped(f, false)
			default:
				return nil, false
			}
		case <-time.After(time.Millisecond):
		}
	}
}

func (q *PriorityQueue) popped(f any, high bool) (any, bool) {
	if high {
		atomic.AddInt64(&q.highPop, 1)
		atomic.AddInt64(&q.highStreak, 1)
	} else {
		atomic.AddInt64(&q.lowPop, 1)
		atomic.StoreInt64(&q.highStreak, 0)
	}
	return f, true
}

// Close stops accepting new items; Pop drains what remains.
func (q *PriorityQueue) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.done)
	}
}

func (q *PriorityQueue) Stats() Stats {
	return Stats{
		HighPush: atomic.LoadInt64(&q.highPush),
		LowPush:  atomic.LoadInt64(&q.lowPush),
		HighPop:  atomic.LoadInt64(&q.highPop),
		LowPop:   atomic.LoadInt64(&q.lowPop),
	}
}
