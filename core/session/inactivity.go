package session

import (
	"context"
	"sync"
	"time"
)

type InactivityEvent int

const (
	InactivityWarning InactivityEvent = iota
	InactivityTimeout
)

func (e InactivityEvent) String() string {
	switch e {
	case InactivityWarning:
		return "warning"
	case InactivityTimeout:
		return "timeout"
	}
	return "unknown"
}

// InactivityTimer raises a warning and then a timeout when no user activity
// was reported for a while. The warning fires warningLead before the timeout;
// a lead of zero, or one not shorter than the timeout, disables it.
type InactivityTimer struct {
	timeout     time.Duration
	warningLead time.Duration

	events chan InactivityEvent
	reset  chan struct{}

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewInactivityTimer(timeout, warningLead time.Duration) *InactivityTimer {
	return &InactivityTimer{
		timeout:     timeout,
		warningLead: warningLead,
		events:      make(chan InactivityEvent, 1),
		reset:       make(chan struct{}, 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (t *InactivityTimer) Events() <-chan InactivityEvent { return t.events }

// Start runs the timer until ctx is done or Stop is called.
func (t *InactivityTimer) Start(ctx context.Context) {
	go t.run(ctx)
}

// Reset restarts both deadlines from now.
func (t *InactivityTimer) Reset() {
	select {
	case t.reset <- struct{}{}:
	default:
	}
}

func (t *InactivityTimer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// Done is closed once the timer goroutine exited.
func (t *InactivityTimer) Done() <-chan struct{} { return t.done }

func (t *InactivityTimer) hasWarning() bool {
	return t.warningLead > 0 && t.warningLead < t.timeout
}

func (t *InactivityTimer) firstDeadline() time.Duration {
	if t.hasWarning() {
		return t.timeout - t.warningLead
	}
	return t.timeout
}

func (t *InactivityTimer) run(ctx context.Context) {
	defer close(t.done)
	if t.timeout <= 0 {
		<-t.stop
		return
	}

	timer := time.NewTimer(t.firstDeadline())
	defer timer.Stop()
	warned := !t.hasWarning()
	expired := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-t.reset:
			timer.Reset(t.firstDeadline())
			warned = !t.hasWarning()
			expired = false
		case <-timer.C:
			if expired {
				continue
			}
			event := InactivityTimeout
			if !warned {
				event = InactivityWarning
				warned = true
				timer.Reset(t.warningLead)
			} else {
				expired = true
			}
			// a pending event is replaced by the newer one
			select {
			case <-t.events:
			default:
			}
			t.events <- event
		}
	}
}
