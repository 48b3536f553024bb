// Package retry implements a small backoff state machine. Rate-limited
// failures back off on a longer ladder than ordinary transient ones, since a
// provider telling us to slow down needs more than a couple of seconds.
package retry

import (
	"context"
	"net/http"
	"time"
)

// ErrorClass categorizes a failed attempt.
type ErrorClass int

const (
	// None means the attempt succeeded.
	None ErrorClass = iota
	// Transient covers network hiccups and 5xx responses.
	Transient
	// RateLimited covers 429 responses.
	RateLimited
	// Fatal stops retrying immediately (4xx other than 429, bad input).
	Fatal
)

// Policy configures backoff behavior.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	RateLimitDelay time.Duration
	Multiplier     float64
	MaxDelay       time.Duration
}

// DefaultPolicy matches the upstream providers' observed behavior: three
// attempts, 2s base, 30s on rate limits, doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      2 * time.Second,
		RateLimitDelay: 30 * time.Second,
		Multiplier:     2.0,
		MaxDelay:       120 * time.Second,
	}
}

// State tracks attempts against a Policy.
type State struct {
	policy  Policy
	attempt int
}

// NewState starts a fresh attempt sequence.
func (p Policy) NewState() *State {
	return &State{policy: p}
}

// Attempt returns the number of failed attempts recorded so far.
func (s *State) Attempt() int {
	return s.attempt
}

// Next records a failed attempt of the given class and returns the delay
// before the next try. ok=false means give up: the class was Fatal, the
// attempt budget is spent, or the attempt succeeded (None).
func (s *State) Next(class ErrorClass) (delay time.Duration, ok bool) {
	if class == None || class == Fatal {
		return 0, false
	}

	s.attempt++
	if s.attempt >= s.policy.MaxAttempts {
		return 0, false
	}

	base := s.policy.BaseDelay
	if class == RateLimited {
		base = s.policy.RateLimitDelay
	}

	delay = base
	for i := 1; i < s.attempt; i++ {
		delay = time.Duration(float64(delay) * s.policy.Multiplier)
	}
	if s.policy.MaxDelay > 0 && delay > s.policy.MaxDelay {
		delay = s.policy.MaxDelay
	}

	return delay, true
}

// ClassifyStatus maps an HTTP status code to an error class.
func ClassifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusOK:
		return None
	case code == http.StatusTooManyRequests:
		return RateLimited
	case code >= 500:
		return Transient
	default:
		return Fatal
	}
}

// Do runs op under the policy, sleeping between attempts. op reports the
// class of its failure; a None class returns op's error as-is (normally nil).
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) (ErrorClass, error)) error {
	state := policy.NewState()

	for {
		class, err := op(ctx)
		if class == None {
			return err
		}

		delay, ok := state.Next(class)
		if !ok {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
