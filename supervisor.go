package restarter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/rs/xid"

	"github.com/axondata/go-svcrestarter/internal/clock"
)

// Phase is a state of the supervision loop
type Phase int

const (
	// PhaseStarting is entered once, before the optional initial delay
	PhaseStarting Phase = iota
	// PhaseCheckingConfig reads the watch list and interval
	PhaseCheckingConfig
	// PhaseEnsuringServices queries and starts watched services
	PhaseEnsuringServices
	// PhaseSleeping waits for the next cycle
	PhaseSleeping
	// PhaseTerminated is final
	PhaseTerminated
)

// Phase string constants
const (
	phaseStartingStr         = "starting"
	phaseCheckingConfigStr   = "checking_config"
	phaseEnsuringServicesStr = "ensuring_services"
	phaseSleepingStr         = "sleeping"
	phaseTerminatedStr       = "terminated"
	phaseUnknownStr          = "unknown"
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return phaseStartingStr
	case PhaseCheckingConfig:
		return phaseCheckingConfigStr
	case PhaseEnsuringServices:
		return phaseEnsuringServicesStr
	case PhaseSleeping:
		return phaseSleepingStr
	case PhaseTerminated:
		return phaseTerminatedStr
	default:
		return phaseUnknownStr
	}
}

// Supervisor keeps the services listed in its Parameters key running
type Supervisor struct {
	name    string
	keyPath string
	store   ConfigStore
	manager ServiceManager

	stop   *StopSignal
	logger *slog.Logger
	clock  clock.Clock
	hook   func(Phase)
}

// SupervisorOption configures a Supervisor
type SupervisorOption func(*Supervisor)

// WithStopSignal lets sig interrupt the loop's waits. Without it the loop
// sleeps unconditionally and only ends on error.
func WithStopSignal(sig *StopSignal) SupervisorOption {
	return func(s *Supervisor) {
		s.stop = sig
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		s.logger = l
	}
}

// WithPhaseHook calls fn on every phase transition, on the loop goroutine
func WithPhaseHook(fn func(Phase)) SupervisorOption {
	return func(s *Supervisor) {
		s.hook = fn
	}
}

// withClock replaces the clock used for waits without a stop signal
func withClock(c clock.Clock) SupervisorOption {
	return func(s *Supervisor) {
		s.clock = c
	}
}

// NewSupervisor creates a supervisor for the instance called name. Its
// configuration is read from ParametersKeyPath(name) in store.
func NewSupervisor(name string, store ConfigStore, manager ServiceManager, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		name:    name,
		keyPath: ParametersKeyPath(name),
		store:   store,
		manager: manager,
		logger:  slog.Default(),
		clock:   clock.Real(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// cycleConfig is what one cycle reads from the store
type cycleConfig struct {
	services []string
	interval time.Duration
}

// Run executes the supervision loop until a stop is requested, returning
// nil, or until a configuration or service manager call fails, returning
// that error. There is no retry: the caller is expected to exit.
//
// Manager calls are not cancellable; ctx only carries values to them.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	logger := s.logger.With("run_id", xid.New().String(), "instance", s.name)
	defer s.enter(PhaseTerminated)

	s.enter(PhaseStarting)
	logger.Info("supervisor starting", "key", s.keyPath)

	initial, ok, err := s.readInitialDelay()
	if err != nil {
		logger.Error("reading initial delay failed", "key", s.keyPath, "value", ValueInitialSleep, "error", err)
		return err
	}
	if ok {
		logger.Debug("initial delay", "delay", initial)
		if s.wait(initial).WantsToStop() {
			logger.Info("stop requested during initial delay")
			return nil
		}
	}

	for {
		s.enter(PhaseCheckingConfig)
		cfg, err := s.readConfig()
		if err != nil {
			logger.Error("reading configuration failed", "key", s.keyPath, "error", err)
			return err
		}

		s.enter(PhaseEnsuringServices)
		if err := s.ensureServices(ctx, logger, cfg.services); err != nil {
			logger.Error("ensuring services failed", "error", err)
			return err
		}

		s.enter(PhaseSleeping)
		logger.Debug("sleeping", "interval", cfg.interval)
		if s.wait(cfg.interval).WantsToStop() {
			logger.Info("stop requested, supervisor terminating")
			return nil
		}
	}
}

func (s *Supervisor) enter(p Phase) {
	if s.hook != nil {
		s.hook(p)
	}
}

func (s *Supervisor) wait(d time.Duration) StopResult {
	return waitOn(s.stop, s.clock, d)
}

// openKey opens the parameters key for read; callers must close it
func (s *Supervisor) openKey() (ConfigKey, error) {
	k, err := s.store.OpenKey(s.keyPath, KeyRead)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.keyPath, err)
	}
	return k, nil
}

func (s *Supervisor) readInitialDelay() (time.Duration, bool, error) {
	k, err := s.openKey()
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = k.Close() }()

	ms, ok, err := ReadIntegerOptional(k, ValueInitialSleep)
	if err != nil || !ok {
		return 0, false, err
	}
	return millis(ms), true, nil
}

// readConfig reads everything a cycle needs before any manager call
func (s *Supervisor) readConfig() (cycleConfig, error) {
	k, err := s.openKey()
	if err != nil {
		return cycleConfig{}, err
	}
	defer func() { _ = k.Close() }()

	services, err := ReadStringList(k, ValueServicesExpectedRunning)
	if err != nil {
		return cycleConfig{}, err
	}
	ms, err := ReadInteger(k, ValueSleepDuration)
	if err != nil {
		return cycleConfig{}, err
	}
	return cycleConfig{services: services, interval: millis(ms)}, nil
}

// ensureServices starts every listed service found stopped, in list order.
// Duplicates are processed once per occurrence.
func (s *Supervisor) ensureServices(ctx context.Context, logger *slog.Logger, services []string) error {
	conn, err := s.manager.Connect(ctx, ManagerConnect)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	for _, name := range services {
		if err := s.ensureService(ctx, logger, conn, name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) ensureService(ctx context.Context, logger *slog.Logger, conn ManagerConn, name string) error {
	svc, err := conn.OpenService(ctx, name, AccessQueryStatus|AccessStart)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	state, err := svc.State(ctx)
	if err != nil {
		return err
	}
	if state != StateStopped {
		logger.Debug("service state", "service", name, "state", state)
		return nil
	}

	logger.Info("starting stopped service", "service", name)
	return svc.Start(ctx)
}

// millis converts a configured millisecond count, saturating on overflow
func millis(ms uint64) time.Duration {
	if ms > uint64(math.MaxInt64/int64(time.Millisecond)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ms) * time.Millisecond
}
