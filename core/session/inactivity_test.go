package session

import (
	"context"
	"testing"
	"time"
)

func expectEvent(t *testing.T, timer *InactivityTimer, want InactivityEvent, within time.Duration) {
	t.Helper()

	select {
	case got := <-timer.Events():
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	case <-time.After(within):
		t.Fatalf("expected %s within %s", want, within)
	}
}

func TestInactivityTimerWarnsThenTimesOut(t *testing.T) {
	timer := NewInactivityTimer(60*time.Millisecond, 30*time.Millisecond)
	timer.Start(context.Background())
	defer timer.Stop()

	start := time.Now()
	expectEvent(t, timer, InactivityWarning, time.Second)
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("warning fired too early after %s", elapsed)
	}
	expectEvent(t, timer, InactivityTimeout, time.Second)
	if elapsed := time.Since(start); elapsed < 55*time.Millisecond {
		t.Fatalf("timeout fired too early after %s", elapsed)
	}
}

func TestInactivityTimerResetPostponesDeadlines(t *testing.T) {
	timer := NewInactivityTimer(100*time.Millisecond, 0)
	timer.Start(context.Background())
	defer timer.Stop()

	for range 4 {
		time.Sleep(40 * time.Millisecond)
		timer.Reset()
	}
	select {
	case event := <-timer.Events():
		t.Fatalf("expected resets to postpone the timeout, got %s", event)
	default:
	}

	expectEvent(t, timer, InactivityTimeout, time.Second)
}

func TestInactivityTimerStop(t *testing.T) {
	timer := NewInactivityTimer(time.Hour, time.Minute)
	timer.Start(context.Background())
	timer.Stop()
	timer.Stop()

	select {
	case <-timer.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected timer to stop")
	}
}
