//go:build !windows

package restarter

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// RunManaged runs fn as a managed process. SIGTERM and SIGINT are
// forwarded into the run's stop signal; other signals keep their default
// behavior.
func RunManaged(_ string, fn ManagedFunc, onFatal FatalFunc) error {
	sig := NewStopSignal(context.Background())

	notify := make(chan os.Signal, 1)
	signal.Notify(notify, syscall.SIGTERM, os.Interrupt)
	defer signal.Stop(notify)

	go func() {
		select {
		case <-notify:
			sig.Stop()
		case <-sig.Stopping():
		}
	}()

	sig.Go(func(context.Context) error {
		return fn(sig)
	})

	if err := sig.Done(); err != nil {
		if onFatal != nil {
			onFatal(err)
		}
		return err
	}
	return nil
}
