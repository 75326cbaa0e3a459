// Package main is the svcrestarter executable. It keeps the services named
// in its Parameters key running and manages its own registration with the
// service manager.
//
// # Usage
//
//	svcrestarter [MODE [SERVICENAME]]
//
// MODE is one of run (the default), service, start, stop, install and
// delete. SERVICENAME defaults to the executable's file name without its
// extension, so a renamed copy supervises under its own name.
//
// Configuration for a supervisor named NAME is read from
//
//	SYSTEM\CurrentControlSet\Services\NAME\Parameters
//
// in the configured store: ServicesExpectedRunning (multi-string),
// SleepDurationMilliseconds (integer) and the optional
// InitialSleepDurationMilliseconds, LogPath and LogLevel.
//
// # Environment Variables
//
//   - SVCRESTARTER_CONFIG: settings file (YAML)
//   - SVCRESTARTER_STORE_BACKEND, SVCRESTARTER_STORE_ROOT
//   - SVCRESTARTER_MANAGER_BACKEND, SVCRESTARTER_MANAGER_SCAN_DIR,
//     SVCRESTARTER_MANAGER_DEFINITION_DIR, SVCRESTARTER_MANAGER_UNIT_DIR
//   - SVCRESTARTER_LOG_LEVEL
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	restarter "github.com/axondata/go-svcrestarter"
	"github.com/axondata/go-svcrestarter/internal/logging"
	"github.com/axondata/go-svcrestarter/internal/settings"
)

// Build information, set with -ldflags "-X main.commit=..."
var (
	commit = "none"
	date   = "unknown"
)

const envConfig = settings.EnvPrefix + "CONFIG"

func main() {
	slog.SetDefault(logging.Console(slog.LevelInfo))

	if err := buildRootCmd(&app{}).Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// app carries what PersistentPreRunE loads for every command
type app struct {
	settings *settings.Settings
	logger   *slog.Logger

	// configPath is the settings file actually used, empty for none
	configPath string
}

// load reads the settings and installs the console logger
func (a *app) load(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString(settings.FlagConfig)
	if err != nil {
		return err
	}
	if path == "" {
		path = os.Getenv(envConfig)
	}

	s, err := settings.Load(path, cmd.Flags())
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(s.Log.Level)
	if err != nil {
		return err
	}

	a.settings = s
	a.configPath = path
	a.logger = logging.Console(level)
	slog.SetDefault(a.logger)
	return nil
}

func buildRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "svcrestarter [MODE [SERVICENAME]]",
		Short: "Keep a list of services running",
		Long: `svcrestarter periodically checks the services listed in its Parameters key
and starts any that are stopped. Without a mode it runs in the foreground
under its own executable name.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", restarter.Version, commit, date),
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runForeground(cmd, defaultServiceName())
		},
	}
	settings.BindFlags(root.PersistentFlags())

	root.AddCommand(
		buildRunCmd(a),
		buildServiceCmd(a),
		buildStartCmd(a),
		buildStopCmd(a),
		buildInstallCmd(a),
		buildDeleteCmd(a),
		buildParamCmd(a),
	)
	return root
}
