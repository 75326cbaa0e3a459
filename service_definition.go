package restarter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File modes for generated service directories
const (
	// DirMode is the mode for created directories
	DirMode = 0o755
	// FileMode is the mode for created data files
	FileMode = 0o644
	// ExecMode is the mode for generated scripts
	ExecMode = 0o755
)

// ServiceDefinition describes a supervise service directory: a run script,
// an optional env directory, an optional down marker and an optional log
// service. Build writes it atomically file by file.
type ServiceDefinition struct {
	// Name is the service name and directory name
	Name string
	// Dir is the parent directory the service directory is created in
	Dir string
	// Flavor selects the env and logger helpers used by the scripts
	Flavor SuperviseFlavor
	// Cmd is the program and arguments to exec
	Cmd []string
	// Cwd is the working directory for the program
	Cwd string
	// Env is written to an env directory read by the flavor's envdir tool
	Env map[string]string
	// Down leaves the service stopped until explicitly started
	Down bool
	// Log adds a log service rotating output in log/main
	Log *LogDefinition
}

// LogDefinition configures the log service of a supervise directory
type LogDefinition struct {
	// Size is the maximum size of the current log file in bytes
	Size int64
	// Num is the number of rotated files to keep
	Num int
}

// DefinitionFromConfig turns an install request into a definition
func DefinitionFromConfig(dir string, flavor SuperviseFlavor, cfg ServiceConfig) *ServiceDefinition {
	cmd := append([]string{cfg.Executable}, cfg.Args...)
	return &ServiceDefinition{
		Name:   cfg.Name,
		Dir:    dir,
		Flavor: flavor,
		Cmd:    cmd,
		Down:   cfg.StartType != StartAutomatic,
		Log:    &LogDefinition{Size: 1000000, Num: 10},
	}
}

// Path returns the service directory the definition builds
func (d *ServiceDefinition) Path() string {
	return filepath.Join(d.Dir, d.Name)
}

// Build creates the service directory structure and scripts
func (d *ServiceDefinition) Build() error {
	if d.Dir == "" {
		return errors.New("service directory not specified")
	}
	if err := validateSegment(d.Name); err != nil {
		return fmt.Errorf("service name: %w", err)
	}
	if len(d.Cmd) == 0 || d.Cmd[0] == "" {
		return errors.New("command not specified")
	}

	serviceDir := d.Path()
	if err := os.MkdirAll(serviceDir, DirMode); err != nil {
		return fmt.Errorf("creating service directory: %w", err)
	}

	if len(d.Env) > 0 {
		envDir := filepath.Join(serviceDir, "env")
		if err := os.MkdirAll(envDir, DirMode); err != nil {
			return fmt.Errorf("creating env directory: %w", err)
		}
		for key, value := range d.Env {
			if err := validateSegment(key); err != nil {
				return fmt.Errorf("env name: %w", err)
			}
			if err := writeFileAtomic(filepath.Join(envDir, key), []byte(value), FileMode); err != nil {
				return fmt.Errorf("writing env file %s: %w", key, err)
			}
		}
	}

	downFile := filepath.Join(serviceDir, "down")
	if d.Down {
		if err := writeFileAtomic(downFile, nil, FileMode); err != nil {
			return fmt.Errorf("writing down file: %w", err)
		}
	} else if err := os.Remove(downFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing down file: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(serviceDir, "run"), []byte(d.runScript()), ExecMode); err != nil {
		return fmt.Errorf("writing run script: %w", err)
	}

	if d.Log != nil {
		mainDir := filepath.Join(serviceDir, "log", "main")
		if err := os.MkdirAll(mainDir, DirMode); err != nil {
			return fmt.Errorf("creating log/main directory: %w", err)
		}
		if err := writeFileAtomic(filepath.Join(serviceDir, "log", "run"), []byte(d.logRunScript()), ExecMode); err != nil {
			return fmt.Errorf("writing log/run script: %w", err)
		}
		if d.Flavor == FlavorRunit {
			if err := writeFileAtomic(filepath.Join(mainDir, "config"), []byte(d.Log.svlogdConfig()), FileMode); err != nil {
				return fmt.Errorf("writing svlogd config: %w", err)
			}
		}
	}

	return nil
}

// envDirCommand returns the flavor's tool for loading an env directory
func (d *ServiceDefinition) envDirCommand() []string {
	switch d.Flavor {
	case FlavorDaemontools:
		return []string{"envdir", "./env"}
	case FlavorS6:
		return []string{"s6-envdir", "./env"}
	default:
		return []string{"chpst", "-e", "./env"}
	}
}

func (d *ServiceDefinition) runScript() string {
	lines := []string{"#!/bin/sh", "exec 2>&1"}
	if d.Cwd != "" {
		lines = append(lines, "cd "+shellQuote(d.Cwd))
	}

	var parts []string
	if len(d.Env) > 0 {
		parts = append(parts, d.envDirCommand()...)
	}
	for _, arg := range d.Cmd {
		parts = append(parts, shellQuote(arg))
	}
	lines = append(lines, "exec "+strings.Join(parts, " "))

	return strings.Join(lines, "\n") + "\n"
}

func (d *ServiceDefinition) logRunScript() string {
	var args []string
	switch d.Flavor {
	case FlavorDaemontools:
		args = append(args, "multilog", "t")
		args = append(args, d.Log.rotationArgs()...)
		args = append(args, "./main")
	case FlavorS6:
		args = append(args, "s6-log", "T")
		args = append(args, d.Log.rotationArgs()...)
		args = append(args, "./main")
	default:
		// svlogd reads its rotation settings from main/config
		args = append(args, "svlogd", "-tt", "./main")
	}
	return "#!/bin/sh\nexec " + strings.Join(args, " ") + "\n"
}

// rotationArgs are the s/n directives shared by multilog and s6-log
func (l *LogDefinition) rotationArgs() []string {
	var args []string
	if l.Size > 0 {
		args = append(args, fmt.Sprintf("s%d", l.Size))
	}
	if l.Num > 0 {
		args = append(args, fmt.Sprintf("n%d", l.Num))
	}
	return args
}

// svlogdConfig renders main/config for runit's svlogd
func (l *LogDefinition) svlogdConfig() string {
	lines := l.rotationArgs()
	sort.Strings(lines)
	return strings.Join(lines, "\n") + "\n"
}

// shellQuote escapes a string for safe use in shell scripts
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	const specialChars = " \t\n'\"\\$`!*?[](){}<>|&;~#="
	if !strings.ContainsAny(s, specialChars) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
