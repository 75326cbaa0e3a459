//go:build !windows

package restarter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Supervise backend defaults
const (
	// DefaultDialTimeout is the timeout for control socket connections
	DefaultDialTimeout = 2 * time.Second
	// DefaultWriteTimeout is the timeout for control writes
	DefaultWriteTimeout = 1 * time.Second
	// DefaultBackoffMin is the first retry delay for control writes
	DefaultBackoffMin = 10 * time.Millisecond
	// DefaultBackoffMax caps the retry delay for control writes
	DefaultBackoffMax = 1 * time.Second
	// DefaultMaxAttempts bounds control write attempts
	DefaultMaxAttempts = 10
)

// SuperviseManager drives services supervised by runit, daemontools or s6
// through their supervise directories, without shelling out to sv, svc or
// s6-svc.
type SuperviseManager struct {
	// Flavor selects the status record format
	Flavor SuperviseFlavor
	// ScanDir is the directory the supervision tree scans for services
	ScanDir string
	// DefinitionDir holds service directories created by CreateService.
	// They are linked into ScanDir. Empty means create them in ScanDir.
	DefinitionDir string

	// DialTimeout is the timeout for establishing control socket connections
	DialTimeout time.Duration
	// WriteTimeout is the timeout for writing control commands
	WriteTimeout time.Duration
	// BackoffMin is the minimum duration between retry attempts
	BackoffMin time.Duration
	// BackoffMax is the maximum duration between retry attempts
	BackoffMax time.Duration
	// MaxAttempts is the maximum number of control write attempts
	MaxAttempts int

	logger *slog.Logger
}

// SuperviseOption configures a SuperviseManager
type SuperviseOption func(*SuperviseManager)

// WithDefinitionDir sets where CreateService writes service directories
func WithDefinitionDir(dir string) SuperviseOption {
	return func(m *SuperviseManager) {
		m.DefinitionDir = dir
	}
}

// WithControlBackoff sets the retry schedule for control writes
func WithControlBackoff(minBackoff, maxBackoff time.Duration, maxAttempts int) SuperviseOption {
	return func(m *SuperviseManager) {
		m.BackoffMin = minBackoff
		m.BackoffMax = maxBackoff
		m.MaxAttempts = maxAttempts
	}
}

// WithSuperviseLogger sets the logger for control retries
func WithSuperviseLogger(l *slog.Logger) SuperviseOption {
	return func(m *SuperviseManager) {
		m.logger = l
	}
}

// NewSuperviseManager creates a manager for services under scanDir
func NewSuperviseManager(flavor SuperviseFlavor, scanDir string, opts ...SuperviseOption) *SuperviseManager {
	m := &SuperviseManager{
		Flavor:       flavor,
		ScanDir:      scanDir,
		DialTimeout:  DefaultDialTimeout,
		WriteTimeout: DefaultWriteTimeout,
		BackoffMin:   DefaultBackoffMin,
		BackoffMax:   DefaultBackoffMax,
		MaxAttempts:  DefaultMaxAttempts,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect checks that the scan directory exists
func (m *SuperviseManager) Connect(_ context.Context, access ManagerAccess) (ManagerConn, error) {
	fi, err := os.Stat(m.ScanDir)
	if err != nil {
		return nil, &OpError{Op: OpConnect, Err: err}
	}
	if !fi.IsDir() {
		return nil, &OpError{Op: OpConnect, Err: fmt.Errorf("scan dir %s is not a directory", m.ScanDir)}
	}
	return &superviseConn{m: m, access: access}, nil
}

type superviseConn struct {
	m      *SuperviseManager
	access ManagerAccess
}

func (c *superviseConn) OpenService(_ context.Context, name string, access ServiceAccess) (Service, error) {
	if err := validateSegment(name); err != nil {
		return nil, &OpError{Op: OpOpen, Service: name, Err: err}
	}

	dir := filepath.Join(c.m.ScanDir, name)
	if _, err := os.Stat(dir); err != nil {
		return nil, &OpError{Op: OpOpen, Service: name, Err: err}
	}
	// deleting a service that never got picked up by the scanner is allowed
	if access&^AccessDelete != 0 {
		if _, err := os.Stat(filepath.Join(dir, SuperviseDir)); errors.Is(err, fs.ErrNotExist) {
			return nil, &OpError{Op: OpOpen, Service: name, Err: ErrNotSupervised}
		}
	}

	return &superviseService{m: c.m, name: name, dir: dir, access: access}, nil
}

func (c *superviseConn) CreateService(ctx context.Context, cfg ServiceConfig) (Service, error) {
	if c.access&ManagerCreateService == 0 {
		return nil, &OpError{Op: OpCreate, Service: cfg.Name, Err: fs.ErrPermission}
	}

	defDir := c.m.DefinitionDir
	if defDir == "" {
		defDir = c.m.ScanDir
	}
	def := DefinitionFromConfig(defDir, c.m.Flavor, cfg)
	if err := def.Build(); err != nil {
		return nil, &OpError{Op: OpCreate, Service: cfg.Name, Err: err}
	}

	link := filepath.Join(c.m.ScanDir, cfg.Name)
	if def.Path() != link {
		if err := os.Symlink(def.Path(), link); err != nil && !errors.Is(err, fs.ErrExist) {
			return nil, &OpError{Op: OpCreate, Service: cfg.Name, Err: err}
		}
	}

	return &superviseService{
		m:      c.m,
		name:   cfg.Name,
		dir:    link,
		access: AccessQueryStatus | AccessStart | AccessStop | AccessDelete,
	}, nil
}

func (c *superviseConn) Close() error {
	return nil
}

type superviseService struct {
	m      *SuperviseManager
	name   string
	dir    string
	access ServiceAccess
}

func (s *superviseService) Name() string {
	return s.name
}

func (s *superviseService) require(op Operation, right ServiceAccess) error {
	if s.access&right == 0 {
		return &OpError{Op: op, Service: s.name, Err: fmt.Errorf("%w: handle lacks %s access", fs.ErrPermission, right)}
	}
	return nil
}

func (s *superviseService) status() (SuperviseStatus, error) {
	statusPath := filepath.Join(s.dir, SuperviseDir, StatusFile)

	file, err := os.Open(statusPath)
	if err != nil {
		return SuperviseStatus{}, &OpError{Op: OpQuery, Service: s.name, Err: err}
	}
	defer func() { _ = file.Close() }()

	buf := make([]byte, maxStatusSize)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return SuperviseStatus{}, &OpError{Op: OpQuery, Service: s.name, Err: err}
	}

	st, err := ParseSuperviseStatus(s.m.Flavor, buf[:n])
	if err != nil {
		return SuperviseStatus{}, &OpError{Op: OpQuery, Service: s.name, Err: err}
	}
	return st, nil
}

func (s *superviseService) State(_ context.Context) (ServiceState, error) {
	if err := s.require(OpQuery, AccessQueryStatus); err != nil {
		return StateUnknown, err
	}
	st, err := s.status()
	if err != nil {
		return StateUnknown, err
	}
	return st.State(), nil
}

// Start sends "up". Supervised programs take their arguments from the run
// script, so args are not forwarded.
func (s *superviseService) Start(ctx context.Context, _ ...string) error {
	if err := s.require(OpStart, AccessStart); err != nil {
		return err
	}
	return s.send(ctx, OpStart, controlUp)
}

func (s *superviseService) Stop(ctx context.Context) error {
	if err := s.require(OpStop, AccessStop); err != nil {
		return err
	}
	return s.send(ctx, OpStop, controlDown)
}

// Delete unlinks the service from the scan directory, tells its supervise
// process to exit and removes the definition.
func (s *superviseService) Delete(ctx context.Context) error {
	if err := s.require(OpDelete, AccessDelete); err != nil {
		return err
	}

	target, err := filepath.EvalSymlinks(s.dir)
	if err != nil {
		return &OpError{Op: OpDelete, Service: s.name, Err: err}
	}

	if _, err := os.Stat(filepath.Join(s.dir, SuperviseDir, ControlFile)); err == nil {
		if err := s.send(ctx, OpDelete, controlExit); err != nil {
			s.m.logger.Warn("supervise exit not delivered", "service", s.name, "error", err)
		}
	}

	if fi, err := os.Lstat(s.dir); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
		if err := os.Remove(s.dir); err != nil {
			return &OpError{Op: OpDelete, Service: s.name, Err: err}
		}
	}
	if err := os.RemoveAll(target); err != nil {
		return &OpError{Op: OpDelete, Service: s.name, Err: err}
	}
	return nil
}

func (s *superviseService) Close() error {
	return nil
}

var _ StateWaiter = (*superviseService)(nil)
