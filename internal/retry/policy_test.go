package retry

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/compulim/remotebuild/internal/config"
)

// TestDefaultPolicy verifies the baseline default values.
func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Mode != config.RetryBackoffLinear {
		t.Fatalf("expected linear default mode got %s", p.Mode)
	}
	if p.MaxRetries != 0 {
		t.Fatalf("expected no retries by default got %d", p.MaxRetries)
	}
	if p.Allows(0) {
		t.Fatalf("default policy must not allow a retry")
	}
}

// TestNewPolicyOverrides checks override precedence and clamping when initial > max.
func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 5*time.Second, 2*time.Second, 5)
	if p.Initial != 2*time.Second {
		t.Fatalf("expected clamped initial 2s got %v", p.Initial)
	}
	if p.Mode != config.RetryBackoffFixed {
		t.Fatalf("expected fixed mode got %s", p.Mode)
	}
	if !p.Allows(4) || p.Allows(5) {
		t.Fatalf("expected exactly 5 retries to be allowed")
	}
}

// TestDelayModes ensures fixed, linear, exponential behave and respect cap.
func TestDelayModes(t *testing.T) {
	fixed := NewPolicy(config.RetryBackoffFixed, 100*time.Millisecond, 500*time.Millisecond, 3)
	for i := 1; i <= 3; i++ {
		if d := fixed.Delay(i); d != 100*time.Millisecond {
			t.Fatalf("fixed attempt %d expected 100ms got %v", i, d)
		}
	}

	linear := NewPolicy(config.RetryBackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 5)
	cases := []struct {
		attempt int
		want    time.Duration
	}{{1, 100 * time.Millisecond}, {2, 200 * time.Millisecond}, {3, 250 * time.Millisecond}, {4, 250 * time.Millisecond}}
	for _, c := range cases {
		if got := linear.Delay(c.attempt); got != c.want {
			t.Fatalf("linear attempt %d expected %v got %v", c.attempt, c.want, got)
		}
	}

	exp := NewPolicy(config.RetryBackoffExponential, 50*time.Millisecond, 160*time.Millisecond, 5)
	expCases := []struct {
		attempt int
		want    time.Duration
	}{{1, 50 * time.Millisecond}, {2, 100 * time.Millisecond}, {3, 160 * time.Millisecond}, {4, 160 * time.Millisecond}}
	for _, c := range expCases {
		if got := exp.Delay(c.attempt); got != c.want {
			t.Fatalf("exp attempt %d expected %v got %v", c.attempt, c.want, got)
		}
	}

	if d := linear.Delay(0); d != 0 {
		t.Fatalf("attempt 0 expected 0 got %v", d)
	}
}

func TestDelayLargeRetryCountsStayAtMax(t *testing.T) {
	tests := []struct {
		name string
		p    Policy
	}{
		{"exponential", NewPolicy(config.RetryBackoffExponential, time.Second, 30*time.Second, 100)},
		{"exponential huge max", NewPolicy(config.RetryBackoffExponential, time.Nanosecond, time.Duration(math.MaxInt64), 100)},
		{"linear", NewPolicy(config.RetryBackoffLinear, time.Second, 30*time.Second, 100)},
		{"linear huge initial", NewPolicy(config.RetryBackoffLinear, time.Hour*24*365, time.Duration(math.MaxInt64), 100)},
	}
	for _, tt := range tests {
		for _, attempt := range []int{300, 1 << 20, math.MaxInt32} {
			got := tt.p.Delay(attempt)
			if got != tt.p.Max {
				t.Fatalf("%s attempt %d expected %v got %v", tt.name, attempt, tt.p.Max, got)
			}
		}
	}
}

func TestFromConfig(t *testing.T) {
	p := FromConfig(config.RetryConfig{
		Attempts: 2,
		Backoff:  "Exponential",
		Initial:  config.Duration(20 * time.Millisecond),
		Max:      config.Duration(time.Second),
	})
	if p.Mode != config.RetryBackoffExponential || p.MaxRetries != 2 || p.Initial != 20*time.Millisecond {
		t.Fatalf("unexpected policy %+v", p)
	}
}

func TestWaitUsesClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := NewPolicy(config.RetryBackoffFixed, time.Second, time.Second, 1)

	done := make(chan error, 1)
	go func() { done <- p.Wait(context.Background(), clock, 1) }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("waiter never blocked: %v", err)
	}
	clock.Advance(time.Second)
	if err := <-done; err != nil {
		t.Fatalf("unexpected wait error: %v", err)
	}
}

func TestWaitHonoursCancellation(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Hour, time.Hour, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx, clockwork.NewFakeClock(), 1); err == nil {
		t.Fatal("expected context error")
	}
}

func TestValidate(t *testing.T) {
	if err := (Policy{Initial: 0, Max: time.Second}).Validate(); err == nil {
		t.Fatalf("expected error for zero initial")
	}
	if err := (Policy{Initial: time.Second, Max: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero max")
	}
	if err := (Policy{Initial: time.Second, Max: time.Second, MaxRetries: -1}).Validate(); err == nil {
		t.Fatalf("expected error for negative retries")
	}
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
