package restarter

// ManagedFunc is the body of a managed run. It receives the run's stop
// signal, which the control bridge stops when the OS asks the process to
// end, and returns nil after an orderly stop.
type ManagedFunc func(sig *StopSignal) error

// FatalFunc handles an error returned by a managed run. It runs before the
// bridge reports the run as stopped and is expected not to return when the
// OS should observe an unexpected termination.
type FatalFunc func(err error)
