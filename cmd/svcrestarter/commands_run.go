package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	restarter "github.com/axondata/go-svcrestarter"
	"github.com/axondata/go-svcrestarter/internal/logging"
)

func buildRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run [SERVICENAME]",
		Short: "Supervise in the foreground, logging to stderr",
		Long: `Run the supervision loop in the foreground. There is no stop signal in this
mode: the loop sleeps through its waits and only ends on a fatal error.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runForeground(cmd, serviceNameArg(args))
		},
	}
}

func buildServiceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "service [SERVICENAME]",
		Short: "Supervise as a managed service",
		Long: `Run the supervision loop under the OS service manager. Stop requests end the
loop at its next wait. Logs go to the file named by the LogPath value of
the Parameters key, at the LogLevel given there.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runManaged(cmd, serviceNameArg(args))
		},
	}
}

func (a *app) runForeground(cmd *cobra.Command, name string) error {
	store, err := a.settings.OpenStore()
	if err != nil {
		return err
	}
	manager, err := a.settings.OpenManager(restarter.ManagerOptions{Logger: a.logger})
	if err != nil {
		return err
	}

	sup := restarter.NewSupervisor(name, store, manager, restarter.WithLogger(a.logger))
	return sup.Run(cmd.Context())
}

func (a *app) runManaged(cmd *cobra.Command, name string) error {
	store, err := a.settings.OpenStore()
	if err != nil {
		return err
	}

	logger, closer, err := logging.FromStore(store, restarter.ParametersKeyPath(name))
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() { _ = closer.Close() }()

	manager, err := a.settings.OpenManager(restarter.ManagerOptions{Logger: logger})
	if err != nil {
		logger.Error("opening service manager failed", "error", err)
		return err
	}

	ctx := cmd.Context()
	run := func(sig *restarter.StopSignal) error {
		sup := restarter.NewSupervisor(name, store, manager,
			restarter.WithStopSignal(sig),
			restarter.WithLogger(logger),
		)
		return sup.Run(ctx)
	}

	// The OS must see an unexpected exit, so the run is never reported as
	// stopped after a failure.
	fatal := func(err error) {
		logger.Error("supervisor failed, exiting", "instance", name, "error", err)
		_ = closer.Close()
		os.Exit(1)
	}

	return restarter.RunManaged(name, run, fatal)
}
