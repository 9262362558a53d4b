package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTimeUntilReadyInitiallyZero(t *testing.T) {
	l := New(50 * time.Millisecond)
	if d := l.TimeUntilReady(); d != 0 {
		t.Fatalf("expected the first slot to be immediately ready, got %s", d)
	}
}

func TestTimeUntilReadyAfterWaitIsPositive(t *testing.T) {
	l := New(50 * time.Millisecond)

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("second Wait: %v", err)
	}

	if d := l.TimeUntilReady(); d <= 0 {
		t.Fatalf("expected a positive delay after consuming the burst, got %s", d)
	}
}

func TestTimeUntilReadyNeverNegative(t *testing.T) {
	l := New(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if d := l.TimeUntilReady(); d < 0 {
		t.Fatalf("TimeUntilReady must never report a negative delay, got %s", d)
	}
}

func TestNewClampsNonPositiveInterval(t *testing.T) {
	l := New(0)
	if l.rl == nil {
		t.Fatal("expected a usable limiter even with a zero interval")
	}
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	l := New(time.Hour)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected Wait to return an error once the context deadline is exceeded")
	}
}
