package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestState_TransientBackoff(t *testing.T) {
	policy := Policy{
		MaxAttempts:    4,
		BaseDelay:      2 * time.Second,
		RateLimitDelay: 30 * time.Second,
		Multiplier:     2.0,
		MaxDelay:       120 * time.Second,
	}
	state := policy.NewState()

	delay, ok := state.Next(Transient)
	if !ok || delay != 2*time.Second {
		t.Errorf("attempt 1: got (%v, %v), want (2s, true)", delay, ok)
	}

	delay, ok = state.Next(Transient)
	if !ok || delay != 4*time.Second {
		t.Errorf("attempt 2: got (%v, %v), want (4s, true)", delay, ok)
	}

	delay, ok = state.Next(Transient)
	if !ok || delay != 8*time.Second {
		t.Errorf("attempt 3: got (%v, %v), want (8s, true)", delay, ok)
	}

	// Budget spent.
	if _, ok = state.Next(Transient); ok {
		t.Error("attempt 4: expected ok=false")
	}
}

func TestState_RateLimitedUsesLongerDelay(t *testing.T) {
	state := DefaultPolicy().NewState()

	delay, ok := state.Next(RateLimited)
	if !ok || delay != 30*time.Second {
		t.Errorf("got (%v, %v), want (30s, true)", delay, ok)
	}

	delay, ok = state.Next(RateLimited)
	if !ok || delay != 60*time.Second {
		t.Errorf("got (%v, %v), want (60s, true)", delay, ok)
	}
}

func TestState_FatalStopsImmediately(t *testing.T) {
	state := DefaultPolicy().NewState()

	if _, ok := state.Next(Fatal); ok {
		t.Error("fatal class should not retry")
	}
	if state.Attempt() != 0 {
		t.Errorf("fatal should not consume attempts, got %d", state.Attempt())
	}
}

func TestState_MaxDelayCap(t *testing.T) {
	policy := Policy{MaxAttempts: 10, BaseDelay: time.Second, RateLimitDelay: time.Minute, Multiplier: 10, MaxDelay: 5 * time.Second}
	state := policy.NewState()

	state.Next(Transient)
	delay, ok := state.Next(Transient)
	if !ok || delay != 5*time.Second {
		t.Errorf("got (%v, %v), want capped (5s, true)", delay, ok)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want ErrorClass
	}{
		{200, None},
		{429, RateLimited},
		{500, Transient},
		{503, Transient},
		{400, Fatal},
		{404, Fatal},
	}

	for _, tt := range tests {
		if got := ClassifyStatus(tt.code); got != tt.want {
			t.Errorf("ClassifyStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	policy := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, RateLimitDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond}

	calls := 0
	err := Do(context.Background(), policy, func(context.Context) (ErrorClass, error) {
		calls++
		if calls < 3 {
			return Transient, errors.New("flaky")
		}
		return None, nil
	})

	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_GivesUpAfterBudget(t *testing.T) {
	policy := Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, RateLimitDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond}

	sentinel := errors.New("still failing")
	calls := 0
	err := Do(context.Background(), policy, func(context.Context) (ErrorClass, error) {
		calls++
		return Transient, sentinel
	})

	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	policy := Policy{MaxAttempts: 3, BaseDelay: time.Hour, RateLimitDelay: time.Hour, Multiplier: 1, MaxDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, policy, func(context.Context) (ErrorClass, error) {
		return Transient, errors.New("fail")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
