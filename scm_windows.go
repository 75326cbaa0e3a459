//go:build windows

package restarter

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

// accessDelete is the standard DELETE right
const accessDelete = 0x00010000

const scmPollInterval = 250 * time.Millisecond

// SCMManager is the Windows Service Control Manager on the local machine.
// Handles are opened with only the rights the caller asks for, so querying
// and starting services does not require administrator rights.
type SCMManager struct{}

// NewSCMManager returns the local SCM
func NewSCMManager() *SCMManager {
	return &SCMManager{}
}

// Connect opens the SCM database
func (SCMManager) Connect(_ context.Context, access ManagerAccess) (ManagerConn, error) {
	var rights uint32
	if access&ManagerConnect != 0 {
		rights |= windows.SC_MANAGER_CONNECT
	}
	if access&ManagerCreateService != 0 {
		rights |= windows.SC_MANAGER_CONNECT | windows.SC_MANAGER_CREATE_SERVICE
	}

	h, err := windows.OpenSCManager(nil, nil, rights)
	if err != nil {
		return nil, &OpError{Op: OpConnect, Err: err}
	}
	return &scmConn{m: &mgr.Mgr{Handle: h}}, nil
}

type scmConn struct {
	m *mgr.Mgr
}

func (c *scmConn) OpenService(_ context.Context, name string, access ServiceAccess) (Service, error) {
	pname, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, &OpError{Op: OpOpen, Service: name, Err: err}
	}

	h, err := windows.OpenService(c.m.Handle, pname, serviceRights(access))
	if err != nil {
		return nil, &OpError{Op: OpOpen, Service: name, Err: err}
	}
	return &scmService{s: &mgr.Service{Name: name, Handle: h}}, nil
}

func serviceRights(access ServiceAccess) uint32 {
	var rights uint32
	if access&AccessQueryStatus != 0 {
		rights |= windows.SERVICE_QUERY_STATUS
	}
	if access&AccessStart != 0 {
		rights |= windows.SERVICE_START
	}
	if access&AccessStop != 0 {
		rights |= windows.SERVICE_STOP
	}
	if access&AccessDelete != 0 {
		rights |= accessDelete
	}
	return rights
}

// CreateService installs an own-process service
func (c *scmConn) CreateService(_ context.Context, cfg ServiceConfig) (Service, error) {
	displayName := cfg.DisplayName
	if displayName == "" {
		displayName = cfg.Name
	}

	s, err := c.m.CreateService(cfg.Name, cfg.Executable, mgr.Config{
		ServiceType:  windows.SERVICE_WIN32_OWN_PROCESS,
		StartType:    scmStartType(cfg.StartType),
		ErrorControl: scmErrorControl(cfg.ErrorControl),
		DisplayName:  displayName,
		Description:  cfg.Description,
	}, cfg.Args...)
	if err != nil {
		return nil, &OpError{Op: OpCreate, Service: cfg.Name, Err: err}
	}
	return &scmService{s: s}, nil
}

func scmStartType(t StartType) uint32 {
	switch t {
	case StartAutomatic:
		return mgr.StartAutomatic
	case StartDisabled:
		return mgr.StartDisabled
	default:
		return mgr.StartManual
	}
}

func scmErrorControl(e ErrorControl) uint32 {
	switch e {
	case ErrorIgnore:
		return mgr.ErrorIgnore
	case ErrorSevere:
		return mgr.ErrorSevere
	case ErrorCritical:
		return mgr.ErrorCritical
	default:
		return mgr.ErrorNormal
	}
}

func (c *scmConn) Close() error {
	return c.m.Disconnect()
}

type scmService struct {
	s *mgr.Service
}

func (s *scmService) Name() string {
	return s.s.Name
}

func (s *scmService) State(_ context.Context) (ServiceState, error) {
	st, err := s.s.Query()
	if err != nil {
		return StateUnknown, &OpError{Op: OpQuery, Service: s.s.Name, Err: err}
	}
	return scmState(st.State), nil
}

func scmState(st svc.State) ServiceState {
	switch st {
	case svc.Stopped:
		return StateStopped
	case svc.StartPending:
		return StateStartPending
	case svc.StopPending:
		return StateStopPending
	case svc.Running:
		return StateRunning
	case svc.ContinuePending:
		return StateContinuePending
	case svc.PausePending:
		return StatePausePending
	case svc.Paused:
		return StatePaused
	default:
		return StateUnknown
	}
}

func (s *scmService) Start(_ context.Context, args ...string) error {
	if err := s.s.Start(args...); err != nil {
		return &OpError{Op: OpStart, Service: s.s.Name, Err: err}
	}
	return nil
}

func (s *scmService) Stop(_ context.Context) error {
	if _, err := s.s.Control(svc.Stop); err != nil {
		return &OpError{Op: OpStop, Service: s.s.Name, Err: err}
	}
	return nil
}

func (s *scmService) Delete(_ context.Context) error {
	if err := s.s.Delete(); err != nil {
		return &OpError{Op: OpDelete, Service: s.s.Name, Err: err}
	}
	return nil
}

// WaitState polls the SCM until the service reaches one of targets
func (s *scmService) WaitState(ctx context.Context, targets ...ServiceState) (ServiceState, error) {
	ticker := time.NewTicker(scmPollInterval)
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
			return StateUnknown, &OpError{Op: OpWait, Service: s.s.Name, Err: fmt.Errorf("waiting for %v: %w", targets, ctx.Err())}
		case <-ticker.C:
		}
	}
}

func (s *scmService) Close() error {
	return s.s.Close()
}

var _ StateWaiter = (*scmService)(nil)
