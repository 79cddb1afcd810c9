package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Do() error = %v, want wrapped %v", err, boom)
	}
	if attempts != 4 { // initial try + 3 retries
		t.Errorf("attempts = %d, want 4", attempts)
	}
}

func TestDoStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(), func() error {
		t.Error("fn ran after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}
