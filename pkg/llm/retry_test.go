package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	resp, err := Retry(context.Background(), RetryConfig{
		MaxAttempts: 3,
		Sleep:       func(time.Duration) {},
	}, func(context.Context) (Response, error) {
		calls++
		if calls < 3 {
			return Response{}, errors.New("transient")
		}
		return Response{Text: "ok"}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "ok" || calls != 3 {
		t.Fatalf("resp=%q calls=%d", resp.Text, calls)
	}
}

func TestRetryStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Retry(ctx, RetryConfig{
		MaxAttempts: 5,
		Sleep:       func(time.Duration) { cancel() },
	}, func(context.Context) (Response, error) {
		calls++
		return Response{}, errors.New("transient")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call after cancel, got %d", calls)
	}
}

func TestRetryRespectsNonRetryable(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{
		MaxAttempts: 4,
		Sleep:       func(time.Duration) {},
		IsRetryable: func(error) bool { return false },
	}, func(context.Context) (Response, error) {
		calls++
		return Response{}, errors.New("fatal")
	})
	if err == nil || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestRetryDelayCapsAtMax(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}.withDefaults()
	var slept []time.Duration
	cfg.Sleep = func(d time.Duration) { slept = append(slept, d) }
	_, _ = Retry(context.Background(), cfg, func(context.Context) (Response, error) {
		return Response{}, errors.New("transient")
	})
	if len(slept) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(slept))
	}
	if slept[1] > 300*time.Millisecond {
		t.Fatalf("delay exceeded cap: %v", slept[1])
	}
}
