package restarter

import (
	"context"
	"strings"
)

// Operation names a service manager call, for error reporting
type Operation int

const (
	// OpUnknown represents an unknown operation
	OpUnknown Operation = iota
	// OpConnect opens a connection to the service manager
	OpConnect
	// OpOpen opens a handle to a named service
	OpOpen
	// OpQuery reads the current state of a service
	OpQuery
	// OpStart asks the manager to start a service
	OpStart
	// OpStop asks the manager to stop a service
	OpStop
	// OpDelete removes a service definition
	OpDelete
	// OpCreate installs a service definition
	OpCreate
	// OpWait blocks until a service reaches a target state
	OpWait
)

// Operation string constants
const (
	opUnknownStr = "unknown"
	opConnectStr = "connect"
	opOpenStr    = "open"
	opQueryStr   = "query"
	opStartStr   = "start"
	opStopStr    = "stop"
	opDeleteStr  = "delete"
	opCreateStr  = "create"
	opWaitStr    = "wait"
)

// String returns the string representation of an Operation
func (op Operation) String() string {
	switch op {
	case OpConnect:
		return opConnectStr
	case OpOpen:
		return opOpenStr
	case OpQuery:
		return opQueryStr
	case OpStart:
		return opStartStr
	case OpStop:
		return opStopStr
	case OpDelete:
		return opDeleteStr
	case OpCreate:
		return opCreateStr
	case OpWait:
		return opWaitStr
	default:
		return opUnknownStr
	}
}

// ServiceState is the lifecycle state a service manager reports for a service
type ServiceState int

const (
	// StateUnknown indicates the state could not be determined
	StateUnknown ServiceState = iota
	// StateStopped indicates the service is not running
	StateStopped
	// StateStartPending indicates the service is starting
	StateStartPending
	// StateStopPending indicates the service is stopping
	StateStopPending
	// StateRunning indicates the service is running
	StateRunning
	// StateContinuePending indicates the service is resuming from pause
	StateContinuePending
	// StatePausePending indicates the service is pausing
	StatePausePending
	// StatePaused indicates the service is paused
	StatePaused
)

// ServiceState string constants
const (
	stateUnknownStr         = "unknown"
	stateStoppedStr         = "stopped"
	stateStartPendingStr    = "start_pending"
	stateStopPendingStr     = "stop_pending"
	stateRunningStr         = "running"
	stateContinuePendingStr = "continue_pending"
	statePausePendingStr    = "pause_pending"
	statePausedStr          = "paused"
)

// String returns the string representation of the state
func (s ServiceState) String() string {
	switch s {
	case StateStopped:
		return stateStoppedStr
	case StateStartPending:
		return stateStartPendingStr
	case StateStopPending:
		return stateStopPendingStr
	case StateRunning:
		return stateRunningStr
	case StateContinuePending:
		return stateContinuePendingStr
	case StatePausePending:
		return statePausePendingStr
	case StatePaused:
		return statePausedStr
	default:
		return stateUnknownStr
	}
}

// ServiceAccess is the set of rights requested when opening a service.
// Managers only grant what is asked for.
type ServiceAccess uint32

const (
	// AccessQueryStatus allows State
	AccessQueryStatus ServiceAccess = 1 << iota
	// AccessStart allows Start
	AccessStart
	// AccessStop allows Stop
	AccessStop
	// AccessDelete allows Delete
	AccessDelete
)

// String lists the granted rights joined by "|"
func (a ServiceAccess) String() string {
	var parts []string
	if a&AccessQueryStatus != 0 {
		parts = append(parts, "query_status")
	}
	if a&AccessStart != 0 {
		parts = append(parts, "start")
	}
	if a&AccessStop != 0 {
		parts = append(parts, "stop")
	}
	if a&AccessDelete != 0 {
		parts = append(parts, "delete")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ManagerAccess is the set of rights requested when connecting
type ManagerAccess uint32

const (
	// ManagerConnect allows opening existing services
	ManagerConnect ManagerAccess = 1 << iota
	// ManagerCreateService allows CreateService
	ManagerCreateService
)

// StartType controls when a created service is started
type StartType int

const (
	// StartDemand starts the service only when asked
	StartDemand StartType = iota
	// StartAutomatic starts the service at boot
	StartAutomatic
	// StartDisabled prevents the service from starting
	StartDisabled
)

// ErrorControl controls how boot reacts when a created service fails to start
type ErrorControl int

const (
	// ErrorNormal logs the failure and continues booting
	ErrorNormal ErrorControl = iota
	// ErrorIgnore ignores the failure
	ErrorIgnore
	// ErrorSevere falls back to the last known good configuration
	ErrorSevere
	// ErrorCritical fails the boot
	ErrorCritical
)

// ServiceConfig describes a service to install
type ServiceConfig struct {
	// Name is the service name
	Name string
	// DisplayName is the human-readable name; defaults to Name
	DisplayName string
	// Description is an optional longer description
	Description string
	// Executable is the absolute path of the program to run
	Executable string
	// Args are passed to Executable
	Args []string
	// StartType controls automatic start
	StartType StartType
	// ErrorControl controls boot failure handling
	ErrorControl ErrorControl
}

// ServiceManager is the OS facility that owns service lifecycles
type ServiceManager interface {
	// Connect opens a connection to the local manager
	Connect(ctx context.Context, access ManagerAccess) (ManagerConn, error)
}

// ManagerConn is an open connection to a service manager. It owns the
// underlying handle until Close.
type ManagerConn interface {
	// OpenService opens the named service with the requested rights
	OpenService(ctx context.Context, name string, access ServiceAccess) (Service, error)
	// CreateService installs a new service and returns a handle to it
	CreateService(ctx context.Context, cfg ServiceConfig) (Service, error)
	// Close releases the connection
	Close() error
}

// Service is an open handle to one service. It owns the underlying handle
// until Close.
type Service interface {
	// Name returns the service name
	Name() string
	// State queries the current state
	State(ctx context.Context) (ServiceState, error)
	// Start asks the manager to start the service, passing args to it
	Start(ctx context.Context, args ...string) error
	// Stop asks the manager to stop the service
	Stop(ctx context.Context) error
	// Delete removes the service definition
	Delete(ctx context.Context) error
	// Close releases the handle
	Close() error
}

// StateWaiter is implemented by services that can block until they reach a
// state without polling.
type StateWaiter interface {
	// WaitState returns the first observed state among targets
	WaitState(ctx context.Context, targets ...ServiceState) (ServiceState, error)
}

func stateIn(s ServiceState, targets []ServiceState) bool {
	for _, t := range targets {
		if s == t {
			return true
		}
	}
	return false
}
