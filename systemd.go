//go:build linux

package restarter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Systemd backend defaults
const (
	// DefaultUnitDir is where CreateService writes unit files
	DefaultUnitDir = "/etc/systemd/system"
	// DefaultSystemctlTimeout bounds a single systemctl invocation
	DefaultSystemctlTimeout = 30 * time.Second

	systemdPollInterval = 100 * time.Millisecond
)

// SystemdManager controls systemd units through systemctl
type SystemdManager struct {
	// UnitDir is where unit files are created
	UnitDir string
	// SystemctlPath is the path to the systemctl binary
	SystemctlPath string
	// Timeout bounds each systemctl invocation
	Timeout time.Duration

	// run executes systemctl; replaced in tests
	run func(ctx context.Context, args ...string) (string, error)
}

// NewSystemdManager creates a manager writing unit files to unitDir
func NewSystemdManager(unitDir string) *SystemdManager {
	if unitDir == "" {
		unitDir = DefaultUnitDir
	}
	m := &SystemdManager{
		UnitDir:       unitDir,
		SystemctlPath: "systemctl",
		Timeout:       DefaultSystemctlTimeout,
	}
	m.run = m.execSystemctl
	return m
}

// execSystemctl runs systemctl and returns its stdout
func (m *SystemdManager) execSystemctl(ctx context.Context, args ...string) (string, error) {
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, m.SystemctlPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("systemctl %s: %w (stderr: %s)", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Connect verifies systemctl can reach the system manager
func (m *SystemdManager) Connect(ctx context.Context, access ManagerAccess) (ManagerConn, error) {
	if _, err := m.run(ctx, "show", "--property=Version", "--value"); err != nil {
		return nil, &OpError{Op: OpConnect, Err: err}
	}
	return &systemdConn{m: m, access: access}, nil
}

type systemdConn struct {
	m      *SystemdManager
	access ManagerAccess
}

func unitName(name string) string {
	if strings.HasSuffix(name, ".service") {
		return name
	}
	return name + ".service"
}

func (c *systemdConn) OpenService(ctx context.Context, name string, access ServiceAccess) (Service, error) {
	props, err := c.m.show(ctx, name, "LoadState")
	if err != nil {
		return nil, &OpError{Op: OpOpen, Service: name, Err: err}
	}
	if props["LoadState"] == "not-found" {
		return nil, &OpError{Op: OpOpen, Service: name, Err: fs.ErrNotExist}
	}
	return &systemdService{m: c.m, name: name, access: access}, nil
}

func (c *systemdConn) CreateService(ctx context.Context, cfg ServiceConfig) (Service, error) {
	if c.access&ManagerCreateService == 0 {
		return nil, &OpError{Op: OpCreate, Service: cfg.Name, Err: fs.ErrPermission}
	}

	unit, err := systemdUnit(cfg)
	if err != nil {
		return nil, &OpError{Op: OpCreate, Service: cfg.Name, Err: err}
	}
	path := filepath.Join(c.m.UnitDir, unitName(cfg.Name))
	if err := writeFileAtomic(path, []byte(unit), FileMode); err != nil {
		return nil, &OpError{Op: OpCreate, Service: cfg.Name, Err: err}
	}
	if _, err := c.m.run(ctx, "daemon-reload"); err != nil {
		return nil, &OpError{Op: OpCreate, Service: cfg.Name, Err: err}
	}
	if cfg.StartType == StartAutomatic {
		if _, err := c.m.run(ctx, "enable", unitName(cfg.Name)); err != nil {
			return nil, &OpError{Op: OpCreate, Service: cfg.Name, Err: err}
		}
	}

	return &systemdService{
		m:      c.m,
		name:   cfg.Name,
		access: AccessQueryStatus | AccessStart | AccessStop | AccessDelete,
	}, nil
}

func (c *systemdConn) Close() error {
	return nil
}

// systemdUnit renders the unit file for cfg
func systemdUnit(cfg ServiceConfig) (string, error) {
	if cfg.Executable == "" {
		return "", errors.New("command not specified")
	}
	description := cfg.Description
	if description == "" {
		description = cfg.DisplayName
	}
	if description == "" {
		description = cfg.Name + " service"
	}

	execStart := []string{systemdQuote(cfg.Executable)}
	for _, arg := range cfg.Args {
		execStart = append(execStart, systemdQuote(arg))
	}

	var unit strings.Builder
	unit.WriteString("[Unit]\n")
	fmt.Fprintf(&unit, "Description=%s\n", description)
	unit.WriteString("After=network.target\n\n")

	unit.WriteString("[Service]\n")
	unit.WriteString("Type=simple\n")
	fmt.Fprintf(&unit, "ExecStart=%s\n", strings.Join(execStart, " "))
	unit.WriteString("KillMode=mixed\n")
	unit.WriteString("KillSignal=SIGTERM\n")
	unit.WriteString("TimeoutStopSec=10\n\n")

	unit.WriteString("[Install]\n")
	unit.WriteString("WantedBy=multi-user.target\n")
	return unit.String(), nil
}

// systemdQuote quotes a word for ExecStart
func systemdQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"'\\;$%") {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "%", "%%")
	s = strings.ReplaceAll(s, "$", "$$")
	return `"` + s + `"`
}

// show returns the requested unit properties
func (m *SystemdManager) show(ctx context.Context, name string, props ...string) (map[string]string, error) {
	args := []string{"show", "--no-page"}
	for _, p := range props {
		args = append(args, "--property="+p)
	}
	args = append(args, unitName(name))

	output, err := m.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseSystemdProperties(output), nil
}

// parseSystemdProperties parses key=value lines from systemctl show
func parseSystemdProperties(output string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		props[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return props
}

// systemdState maps ActiveState onto the service state model
func systemdState(activeState string) ServiceState {
	switch activeState {
	case "active", "reloading":
		return StateRunning
	case "activating":
		return StateStartPending
	case "deactivating":
		return StateStopPending
	case "inactive", "failed":
		return StateStopped
	default:
		return StateUnknown
	}
}

type systemdService struct {
	m      *SystemdManager
	name   string
	access ServiceAccess
}

func (s *systemdService) Name() string {
	return s.name
}

func (s *systemdService) require(op Operation, right ServiceAccess) error {
	if s.access&right == 0 {
		return &OpError{Op: op, Service: s.name, Err: fmt.Errorf("%w: handle lacks %s access", fs.ErrPermission, right)}
	}
	return nil
}

func (s *systemdService) State(ctx context.Context) (ServiceState, error) {
	if err := s.require(OpQuery, AccessQueryStatus); err != nil {
		return StateUnknown, err
	}
	props, err := s.m.show(ctx, s.name, "ActiveState", "SubState")
	if err != nil {
		return StateUnknown, &OpError{Op: OpQuery, Service: s.name, Err: err}
	}
	return systemdState(props["ActiveState"]), nil
}

// Start runs "systemctl start". Units take their arguments from ExecStart,
// so args are not forwarded.
func (s *systemdService) Start(ctx context.Context, _ ...string) error {
	if err := s.require(OpStart, AccessStart); err != nil {
		return err
	}
	// --no-block matches the asynchronous start of other managers
	if _, err := s.m.run(ctx, "start", "--no-block", unitName(s.name)); err != nil {
		return &OpError{Op: OpStart, Service: s.name, Err: err}
	}
	return nil
}

func (s *systemdService) Stop(ctx context.Context) error {
	if err := s.require(OpStop, AccessStop); err != nil {
		return err
	}
	if _, err := s.m.run(ctx, "stop", "--no-block", unitName(s.name)); err != nil {
		return &OpError{Op: OpStop, Service: s.name, Err: err}
	}
	return nil
}

// Delete disables the unit, removes its file from UnitDir and reloads
func (s *systemdService) Delete(ctx context.Context) error {
	if err := s.require(OpDelete, AccessDelete); err != nil {
		return err
	}
	unit := unitName(s.name)

	// a unit that was never enabled fails to disable; that is fine
	_, _ = s.m.run(ctx, "disable", unit)

	if err := os.Remove(filepath.Join(s.m.UnitDir, unit)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &OpError{Op: OpDelete, Service: s.name, Err: err}
	}
	if _, err := s.m.run(ctx, "daemon-reload"); err != nil {
		return &OpError{Op: OpDelete, Service: s.name, Err: err}
	}
	return nil
}

// WaitState polls ActiveState until it maps to one of targets
func (s *systemdService) WaitState(ctx context.Context, targets ...ServiceState) (ServiceState, error) {
	ticker := time.NewTicker(systemdPollInterval)
	defer ticker.Stop()

	for {
		state, err := s.State(ctx)
		if err != nil {
			return StateUnknown, err
		}
		if stateIn(state, targets) {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return StateUnknown, &OpError{Op: OpWait, Service: s.name, Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func (s *systemdService) Close() error {
	return nil
}

var _ StateWaiter = (*systemdService)(nil)
