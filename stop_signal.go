package restarter

import (
	"context"
	"sync"
	"time"

	"vawter.tech/stopper"

	"github.com/axondata/go-svcrestarter/internal/clock"
)

// DefaultStopGrace is how long workers started through StopSignal.Go may keep
// running after Stop before their context is cancelled.
const DefaultStopGrace = 30 * time.Second

// StopResult reports whether a wait ended because a stop was requested
type StopResult bool

const (
	// NotStopped means the wait ran its full timeout
	NotStopped StopResult = false
	// Stopped means a stop was requested before or during the wait
	Stopped StopResult = true
)

// WantsToStop reports whether the caller should wind down
func (r StopResult) WantsToStop() bool {
	return bool(r)
}

// TimedOut reports whether the wait ran its full timeout
func (r StopResult) TimedOut() bool {
	return !bool(r)
}

// StopSignal is the per-run cancellation flag shared between the control
// bridge and the supervision worker. Stop may be called from any goroutine,
// any number of times; once set the flag never resets and every Wait on the
// same instance returns Stopped immediately.
//
// A nil *StopSignal is valid: Wait then sleeps for the full timeout and
// always reports NotStopped, since nothing can request a stop.
type StopSignal struct {
	sctx  *stopper.Context
	clock clock.Clock
	grace time.Duration
	once  sync.Once

	mu  sync.Mutex
	err error // first worker error
}

// StopOption configures a StopSignal
type StopOption func(*StopSignal)

// WithStopGrace sets the grace period handed to the underlying stopper
func WithStopGrace(d time.Duration) StopOption {
	return func(s *StopSignal) {
		s.grace = d
	}
}

// withStopClock injects the clock used for timed waits
func withStopClock(c clock.Clock) StopOption {
	return func(s *StopSignal) {
		s.clock = c
	}
}

// NewStopSignal creates a fresh signal for one supervision run. Cancelling
// ctx counts as a stop request.
func NewStopSignal(ctx context.Context, opts ...StopOption) *StopSignal {
	s := &StopSignal{
		sctx:  stopper.WithContext(ctx),
		clock: clock.Real(),
		grace: DefaultStopGrace,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stop requests a stop and wakes every current and future waiter. It does
// not block, so it is safe to call from an OS control callback.
func (s *StopSignal) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.sctx.Stop(s.grace)
	})
}

// Stopping returns a channel that is closed once a stop has been requested.
// On a nil signal the channel is never closed.
func (s *StopSignal) Stopping() <-chan struct{} {
	if s == nil {
		return nil
	}
	return s.sctx.Stopping()
}

// IsStopping reports whether a stop has been requested
func (s *StopSignal) IsStopping() bool {
	if s == nil {
		return false
	}
	select {
	case <-s.sctx.Stopping():
		return true
	case <-s.sctx.Done():
		return true
	default:
		return false
	}
}

// Wait blocks until a stop is requested or timeout elapses, whichever comes
// first. It returns Stopped without blocking if a stop was already requested.
func (s *StopSignal) Wait(timeout time.Duration) StopResult {
	if s == nil {
		return waitOn(nil, clock.Real(), timeout)
	}
	return waitOn(s, s.clock, timeout)
}

// waitOn is the shared wait path. The nil-signal case sleeps on c so tests
// can drive it with a fake clock.
func waitOn(s *StopSignal, c clock.Clock, timeout time.Duration) StopResult {
	if s == nil {
		c.Sleep(timeout)
		return NotStopped
	}
	if s.IsStopping() {
		return Stopped
	}

	timer := c.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.sctx.Stopping():
		return Stopped
	case <-s.sctx.Done():
		return Stopped
	case <-timer.C:
		// A stop racing the timer still wins.
		if s.IsStopping() {
			return Stopped
		}
		return NotStopped
	}
}

// Go runs fn as the worker of this run. When fn returns, the signal is
// stopped so Done can complete. It returns false if the signal was already
// stopped and fn was not started.
func (s *StopSignal) Go(fn func(ctx context.Context) error) bool {
	return s.sctx.Go(func(sctx *stopper.Context) error {
		defer s.Stop()
		err := fn(sctx)
		if err != nil {
			s.mu.Lock()
			if s.err == nil {
				s.err = err
			}
			s.mu.Unlock()
		}
		return err
	})
}

// Done waits for the worker started by Go and returns its error. Only
// worker errors are reported; the stopper's own shutdown result is not.
func (s *StopSignal) Done() error {
	_ = s.sctx.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
