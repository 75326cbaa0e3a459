//go:build !windows

package restarter

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sys/unix"
)

// send writes a single control byte to the service's control socket or
// FIFO. A FIFO without a reader (supervise not running yet) is retried on
// an exponential schedule; anything else fails at once.
func (s *superviseService) send(ctx context.Context, op Operation, cmd byte) error {
	controlPath := filepath.Join(s.dir, SuperviseDir, ControlFile)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.m.BackoffMin
	b.MaxInterval = s.m.BackoffMax
	b.MaxElapsedTime = 0

	var retries uint64
	if s.m.MaxAttempts > 1 {
		retries = uint64(s.m.MaxAttempts - 1)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := s.writeControl(controlPath, cmd)
		if err == nil {
			return nil
		}
		if !retryableControlError(err) {
			return backoff.Permanent(err)
		}
		s.m.logger.Debug("control not ready, retrying",
			"service", s.name, "op", op.String(), "attempt", attempt, "error", err)
		return err
	}, policy)
	if err == nil {
		return nil
	}

	if retryableControlError(err) {
		err = errors.Join(ErrControlNotReady, err)
	}
	return &OpError{Op: op, Service: s.name, Err: err}
}

// writeControl tries the socket first (runit built with socket control),
// then the FIFO every flavor creates.
func (s *superviseService) writeControl(controlPath string, cmd byte) error {
	conn, err := net.DialTimeout("unix", controlPath, s.m.DialTimeout)
	if err == nil {
		defer func() { _ = conn.Close() }()
		if s.m.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(s.m.WriteTimeout))
		}
		_, err = conn.Write([]byte{cmd})
		return err
	}

	file, err := os.OpenFile(controlPath, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	_, err = file.Write([]byte{cmd})
	return err
}

// retryableControlError reports errors caused by supervise not listening yet
func retryableControlError(err error) bool {
	return errors.Is(err, syscall.ENXIO) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, os.ErrNotExist)
}
