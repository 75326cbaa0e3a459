package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	restarter "github.com/axondata/go-svcrestarter"
)

const defaultWaitTimeout = 30 * time.Second

func buildStartCmd(a *app) *cobra.Command {
	var (
		wait    bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "start [SERVICENAME]",
		Short: "Ask the service manager to start the supervisor service",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := serviceNameArg(args)
			access := restarter.AccessStart
			if wait {
				access |= restarter.AccessQueryStatus
			}
			return a.withService(cmd.Context(), name, access, func(ctx context.Context, svc restarter.Service) error {
				if err := svc.Start(ctx, name); err != nil {
					return err
				}
				a.logger.Info("start requested", "service", name)
				if !wait {
					return nil
				}
				return waitFor(ctx, svc, timeout, restarter.StateRunning)
			})
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait until the service is running")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultWaitTimeout, "how long --wait waits")
	return cmd
}

func buildStopCmd(a *app) *cobra.Command {
	var (
		wait    bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stop [SERVICENAME]",
		Short: "Ask the service manager to stop the supervisor service",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := serviceNameArg(args)
			access := restarter.AccessStop
			if wait {
				access |= restarter.AccessQueryStatus
			}
			return a.withService(cmd.Context(), name, access, func(ctx context.Context, svc restarter.Service) error {
				if err := svc.Stop(ctx); err != nil {
					return err
				}
				a.logger.Info("stop requested", "service", name)
				if !wait {
					return nil
				}
				return waitFor(ctx, svc, timeout, restarter.StateStopped)
			})
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait until the service is stopped")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultWaitTimeout, "how long --wait waits")
	return cmd
}

func buildInstallCmd(a *app) *cobra.Command {
	var (
		displayName string
		description string
	)
	cmd := &cobra.Command{
		Use:   "install [SERVICENAME]",
		Short: "Register this executable as a demand-start service",
		Long: `Register this executable with the service manager. The service runs
"svcrestarter service SERVICENAME" and must be started explicitly.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("locate executable: %w", err)
			}
			cfg := installConfig(serviceNameArg(args), exe, a.configPath)
			if displayName != "" {
				cfg.DisplayName = displayName
			}
			cfg.Description = description
			return a.install(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&displayName, "display-name", "", "display name (defaults to SERVICENAME)")
	cmd.Flags().StringVar(&description, "description", "", "service description")
	return cmd
}

// installConfig describes the service that runs exe in managed mode
func installConfig(name, exe, configPath string) restarter.ServiceConfig {
	args := []string{"service", name}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return restarter.ServiceConfig{
		Name:         name,
		DisplayName:  name,
		Executable:   exe,
		Args:         args,
		StartType:    restarter.StartDemand,
		ErrorControl: restarter.ErrorNormal,
	}
}

func (a *app) install(ctx context.Context, cfg restarter.ServiceConfig) error {
	manager, err := a.settings.OpenManager(restarter.ManagerOptions{Logger: a.logger})
	if err != nil {
		return err
	}
	conn, err := manager.Connect(ctx, restarter.ManagerConnect|restarter.ManagerCreateService)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	svc, err := conn.CreateService(ctx, cfg)
	if err != nil {
		return err
	}
	a.logger.Info("service installed", "service", cfg.Name, "executable", cfg.Executable)
	return svc.Close()
}

func buildDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [SERVICENAME]",
		Short: "Stop the supervisor service if needed and unregister it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := serviceNameArg(args)
			access := restarter.AccessQueryStatus | restarter.AccessStop | restarter.AccessDelete
			return a.withService(cmd.Context(), name, access, func(ctx context.Context, svc restarter.Service) error {
				return deleteService(ctx, a, svc)
			})
		},
	}
}

// deleteService stops svc unless it is already stopped, then deletes it
func deleteService(ctx context.Context, a *app, svc restarter.Service) error {
	state, err := svc.State(ctx)
	if err != nil {
		return err
	}
	if state != restarter.StateStopped {
		a.logger.Info("stopping service before delete", "service", svc.Name(), "state", state)
		if err := svc.Stop(ctx); err != nil {
			return err
		}
	}
	if err := svc.Delete(ctx); err != nil {
		return err
	}
	a.logger.Info("service deleted", "service", svc.Name())
	return nil
}

// withService connects to the configured manager, opens name with access
// and runs fn, releasing both handles afterwards
func (a *app) withService(ctx context.Context, name string, access restarter.ServiceAccess, fn func(context.Context, restarter.Service) error) error {
	manager, err := a.settings.OpenManager(restarter.ManagerOptions{Logger: a.logger})
	if err != nil {
		return err
	}
	conn, err := manager.Connect(ctx, restarter.ManagerConnect)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	svc, err := conn.OpenService(ctx, name, access)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	return fn(ctx, svc)
}

var errWaitUnsupported = errors.New("service manager cannot wait for state changes")

func waitFor(ctx context.Context, svc restarter.Service, timeout time.Duration, target restarter.ServiceState) error {
	waiter, ok := svc.(restarter.StateWaiter)
	if !ok {
		return errWaitUnsupported
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := waiter.WaitState(ctx, target); err != nil {
		return err
	}
	return nil
}
