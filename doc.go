// Package restarter keeps a configured list of OS services running.
//
// A Supervisor reads its watch list and polling interval from a
// ConfigStore key on every cycle and starts, through a ServiceManager, any
// listed service it finds stopped:
//
//	store := restarter.NewDirStore("/etc/svcrestarter")
//	manager := restarter.NewSuperviseManager(restarter.FlavorRunit, "/etc/service")
//
//	sig := restarter.NewStopSignal(ctx)
//	sup := restarter.NewSupervisor("watcher", store, manager,
//	    restarter.WithStopSignal(sig),
//	)
//	err := sup.Run(ctx)
//
// The values read from ParametersKeyPath(name) are:
//
//   - InitialSleepDurationMilliseconds: optional integer, waited once before the first cycle
//   - ServicesExpectedRunning: required multi-string, checked in order
//   - SleepDurationMilliseconds: required integer, the wait between cycles
//
// Any read or service manager failure ends Run with that error; the caller
// is expected to exit and let the OS service manager restart it.
//
// # Values
//
// Configuration values use the registry's typed encoding on every
// platform: Decode and Encode convert between raw payloads and the Value
// variants. On Windows the RegistryStore reads HKEY_LOCAL_MACHINE directly;
// elsewhere a DirStore keeps the same payloads in files.
//
// # Service managers
//
// The SCM backend drives the Windows Service Control Manager. On Unix the
// supervise backend controls runit, daemontools and s6 trees through their
// supervise/control and supervise/status files, and the systemd backend
// goes through systemctl. All of them implement ServiceManager; most
// also implement StateWaiter.
//
// # Stopping
//
// A StopSignal interrupts the supervisor's waits. RunManaged connects it to
// the OS: service control Stop and Shutdown requests on Windows, SIGTERM
// and SIGINT elsewhere. Without a stop signal the waits are plain sleeps.
package restarter
