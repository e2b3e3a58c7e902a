package retry

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/arblift/stylusctl/internal/testutil/testlog"
)

func TestNextDelayGrowsAndCaps(t *testing.T) {
	testlog.Start(t)
	cfg := Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     400 * time.Millisecond,
		Multiplier:   2.0,
	}
	if d := NextDelay(cfg, 1, nil); d != 100*time.Millisecond {
		t.Fatalf("attempt 1: %v", d)
	}
	if d := NextDelay(cfg, 2, nil); d != 200*time.Millisecond {
		t.Fatalf("attempt 2: %v", d)
	}
	if d := NextDelay(cfg, 10, nil); d != 400*time.Millisecond {
		t.Fatalf("attempt 10 should cap at MaxDelay: %v", d)
	}
}

func TestNextDelayZeroInitial(t *testing.T) {
	testlog.Start(t)
	if d := NextDelay(Config{Multiplier: 2.0}, 3, nil); d != 0 {
		t.Fatalf("expected 0 delay, got %v", d)
	}
}

func TestNextDelayJitterSpreads(t *testing.T) {
	testlog.Start(t)
	cfg := Config{InitialDelay: 100 * time.Millisecond, Multiplier: 1.0, Jitter: true}
	rng := rand.New(rand.NewSource(1))

	base := 100 * time.Millisecond
	prev := time.Duration(-1)
	varied := false
	for i := 0; i < 32; i++ {
		d := NextDelay(cfg, 2, rng)
		if d < base/2 || d > base*3/2 {
			t.Fatalf("jittered delay outside [base/2, 3*base/2): %v", d)
		}
		if prev >= 0 && d != prev {
			varied = true
		}
		prev = d
	}
	if !varied {
		t.Fatalf("jittered delays never varied")
	}
}

func TestDoJitteredDelayHonorsLowerBound(t *testing.T) {
	testlog.Start(t)
	transient := errors.New("transient")
	cfg := Config{InitialDelay: 20 * time.Millisecond, Multiplier: 1.0, Jitter: true, MaxAttempts: 2}

	start := time.Now()
	err := Do(context.Background(), cfg, func(context.Context) error {
		return transient
	}, func(err error) bool { return true })
	if !errors.Is(err, transient) {
		t.Fatalf("expected transient after exhaustion, got %v", err)
	}
	// One jittered sleep, at least InitialDelay/2.
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("jittered delay below the lower bound: %v", elapsed)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	testlog.Start(t)
	permanent := errors.New("permanent")
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 5}, func(context.Context) error {
		calls++
		return permanent
	}, func(err error) bool { return false })
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("expected single attempt with permanent error, got calls=%d err=%v", calls, err)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	testlog.Start(t)
	transient := errors.New("transient")
	calls := 0
	err := Do(context.Background(), Config{InitialDelay: time.Millisecond, Multiplier: 1.0, MaxAttempts: 5}, func(context.Context) error {
		calls++
		if calls < 3 {
			return transient
		}
		return nil
	}, func(err error) bool { return errors.Is(err, transient) })
	if err != nil || calls != 3 {
		t.Fatalf("expected success on attempt 3, got calls=%d err=%v", calls, err)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	testlog.Start(t)
	transient := errors.New("transient")
	calls := 0
	err := Do(context.Background(), Config{InitialDelay: time.Millisecond, Multiplier: 1.0, MaxAttempts: 3}, func(context.Context) error {
		calls++
		return transient
	}, func(err error) bool { return true })
	if !errors.Is(err, transient) || calls != 3 {
		t.Fatalf("expected 3 attempts, got calls=%d err=%v", calls, err)
	}
}

func TestDoHonorsContext(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, Config{InitialDelay: time.Second, Multiplier: 1.0, MaxAttempts: 3}, func(context.Context) error {
		return errors.New("transient")
	}, func(err error) bool { return true })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
