// Package clock provides the injectable time source used by the stop signal
// and the supervision loop.
//
// Production code uses Real(). Tests use Fake(), which only moves when
// Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go loop.Run(ctx)          // loop sleeps on c
//	c.WaitForTimers(1)        // wait for the loop to register its sleep
//	c.Advance(2 * time.Second) // fire it deterministically
package clock
