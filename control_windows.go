//go:build windows

package restarter

import (
	"context"
	"fmt"

	"golang.org/x/sys/windows/svc"
)

const acceptedControls = svc.AcceptStop | svc.AcceptShutdown

// RunManaged hands the process to the service control dispatcher and runs
// fn as the service body. Stop and shutdown requests are forwarded into the
// run's stop signal; every other request is acknowledged and ignored.
// It returns once the service has been reported stopped.
func RunManaged(name string, fn ManagedFunc, onFatal FatalFunc) error {
	h := &serviceHandler{fn: fn, onFatal: onFatal}
	if err := svc.Run(name, h); err != nil {
		return fmt.Errorf("%w: %w", ErrControlBridge, err)
	}
	return h.err
}

type serviceHandler struct {
	fn      ManagedFunc
	onFatal FatalFunc
	err     error
}

// Execute runs on the dispatcher's service thread. The worker gets its own
// goroutine so this one only relays control requests.
func (h *serviceHandler) Execute(_ []string, requests <-chan svc.ChangeRequest, changes chan<- svc.Status) (bool, uint32) {
	changes <- svc.Status{State: svc.StartPending}

	sig := NewStopSignal(context.Background())
	sig.Go(func(context.Context) error {
		return h.fn(sig)
	})

	done := make(chan error, 1)
	go func() { done <- sig.Done() }()

	changes <- svc.Status{State: svc.Running, Accepts: acceptedControls}

	for {
		select {
		case err := <-done:
			if err != nil {
				h.err = err
				if h.onFatal != nil {
					h.onFatal(err)
				}
				return true, 1
			}
			changes <- svc.Status{State: svc.StopPending}
			return false, 0

		case req := <-requests:
			switch req.Cmd {
			case svc.Interrogate:
				changes <- req.CurrentStatus
			case svc.Stop, svc.Shutdown:
				sig.Stop()
				changes <- svc.Status{State: svc.StopPending}
			}
		}
	}
}
