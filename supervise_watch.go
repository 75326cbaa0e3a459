//go:build !windows

package restarter

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// watchDebounce coalesces the burst of writes supervise makes per transition
const watchDebounce = 25 * time.Millisecond

// WaitState blocks until the service reaches one of targets or ctx ends.
// The supervise directory is watched for status rewrites; the status is
// checked once up front so an already-satisfied wait returns at once.
func (s *superviseService) WaitState(ctx context.Context, targets ...ServiceState) (ServiceState, error) {
	if err := s.require(OpWait, AccessQueryStatus); err != nil {
		return StateUnknown, err
	}

	superviseDir := filepath.Join(s.dir, SuperviseDir)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return StateUnknown, &OpError{Op: OpWait, Service: s.name, Err: err}
	}
	if err := watcher.Add(superviseDir); err != nil {
		_ = watcher.Close()
		return StateUnknown, &OpError{Op: OpWait, Service: s.name, Err: err}
	}

	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() { _ = watcher.Close() })

	// results carries the matching state or a terminal error
	type result struct {
		state ServiceState
		err   error
	}
	results := make(chan result, 1)

	check := func() bool {
		st, err := s.status()
		if err != nil {
			results <- result{StateUnknown, err}
			return true
		}
		if state := st.State(); stateIn(state, targets) {
			results <- result{state, nil}
			return true
		}
		return false
	}

	sctx.Go(func(sctx *stopper.Context) error {
		if check() {
			return nil
		}

		var debounce <-chan time.Time
		for {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Base(event.Name) == StatusFile &&
					event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce = time.After(watchDebounce)
				}

			case <-debounce:
				debounce = nil
				if check() {
					return nil
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				results <- result{StateUnknown, &OpError{Op: OpWait, Service: s.name, Err: err}}
				return nil
			}
		}
	})

	defer func() {
		sctx.Stop(100 * time.Millisecond)
		_ = sctx.Wait()
	}()

	select {
	case r := <-results:
		return r.state, r.err
	case <-ctx.Done():
		return StateUnknown, &OpError{Op: OpWait, Service: s.name, Err: ctx.Err()}
	}
}
