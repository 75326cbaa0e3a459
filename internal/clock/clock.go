package clock

import "time"

// Clock abstracts the time operations the supervisor needs.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d has
	// elapsed. If d <= 0 the channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// NewTimer returns a Timer firing once after d. Stop it when the
	// caller stops waiting so the pending timer is released.
	NewTimer(d time.Duration) *Timer

	// Sleep pauses the current goroutine for at least d.
	Sleep(d time.Duration)
}

// Timer is a one-shot timer. Read the event from C.
type Timer struct {
	// C delivers the fire time. Buffered with capacity 1.
	C <-chan time.Time

	stopFunc func() bool
}

// Stop prevents the Timer from firing. It returns true if the call stops
// the timer, false if it already fired or was stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }
