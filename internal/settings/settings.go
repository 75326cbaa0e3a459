// Package settings loads the process settings of the svcrestarter
// executable: which config store and service manager to use and where they
// live. Sources are layered, later ones winning: built-in platform
// defaults, an optional YAML file, SVCRESTARTER_* environment variables and
// command line flags.
package settings

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/spf13/pflag"

	restarter "github.com/axondata/go-svcrestarter"
	"github.com/axondata/go-svcrestarter/internal/logging"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "SVCRESTARTER_"

// Setting keys
const (
	KeyStoreBackend          = "store.backend"
	KeyStoreRoot             = "store.root"
	KeyManagerBackend        = "manager.backend"
	KeyManagerScanDir        = "manager.scan_dir"
	KeyManagerDefinitionDir  = "manager.definition_dir"
	KeyManagerUnitDir        = "manager.unit_dir"
	KeyLogLevel              = "log.level"
	keyDelim                 = "."
	defaultConsoleLevelValue = "info"
)

// Flag names bound by BindFlags
const (
	FlagConfig        = "config"
	FlagStore         = "store"
	FlagStoreRoot     = "store-root"
	FlagManager       = "manager"
	FlagScanDir       = "scan-dir"
	FlagDefinitionDir = "definition-dir"
	FlagUnitDir       = "unit-dir"
	FlagLogLevel      = "log-level"
)

// flagKeys maps flag names onto setting keys; flags not listed are not settings
var flagKeys = map[string]string{
	FlagStore:         KeyStoreBackend,
	FlagStoreRoot:     KeyStoreRoot,
	FlagManager:       KeyManagerBackend,
	FlagScanDir:       KeyManagerScanDir,
	FlagDefinitionDir: KeyManagerDefinitionDir,
	FlagUnitDir:       KeyManagerUnitDir,
	FlagLogLevel:      KeyLogLevel,
}

// envKeys maps lowercased variable names, prefix stripped, onto setting keys
var envKeys = map[string]string{
	"store_backend":          KeyStoreBackend,
	"store_root":             KeyStoreRoot,
	"manager_backend":        KeyManagerBackend,
	"manager_scan_dir":       KeyManagerScanDir,
	"manager_definition_dir": KeyManagerDefinitionDir,
	"manager_unit_dir":       KeyManagerUnitDir,
	"log_level":              KeyLogLevel,
}

// Settings is the loaded process configuration
type Settings struct {
	Store   Store   `koanf:"store"`
	Manager Manager `koanf:"manager"`
	Log     Log     `koanf:"log"`
}

// Store selects the config store
type Store struct {
	Backend string `koanf:"backend"`
	Root    string `koanf:"root"`
}

// Manager selects the service manager
type Manager struct {
	Backend       string `koanf:"backend"`
	ScanDir       string `koanf:"scan_dir"`
	DefinitionDir string `koanf:"definition_dir"`
	UnitDir       string `koanf:"unit_dir"`
}

// Log holds the console log settings
type Log struct {
	Level string `koanf:"level"`
}

// BindFlags registers the settings flags on fs. Defaults are left empty;
// Load only takes a flag's value when it was set.
func BindFlags(fs *pflag.FlagSet) {
	fs.String(FlagConfig, "", "settings file (YAML)")
	fs.String(FlagStore, "", "config store backend: registry or dir")
	fs.String(FlagStoreRoot, "", "root directory of the dir config store")
	fs.String(FlagManager, "", "service manager: scm, runit, daemontools, s6 or systemd")
	fs.String(FlagScanDir, "", "scan directory of the supervision tree")
	fs.String(FlagDefinitionDir, "", "directory new supervised services are created in")
	fs.String(FlagUnitDir, "", "directory systemd unit files are created in")
	fs.String(FlagLogLevel, "", "console log level: trace, debug, info, warn or error")
}

// Load layers defaults, the file at path (skipped when empty), the
// environment and the flags in fs (skipped when nil)
func Load(path string, fs *pflag.FlagSet) (*Settings, error) {
	k := koanf.New(keyDelim)

	if err := k.Load(confmap.Provider(defaults(), keyDelim), nil); err != nil {
		return nil, fmt.Errorf("failed to load default settings: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, keyDelim, envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to read settings from environment: %w", err)
	}

	if fs != nil {
		if err := k.Load(posflag.ProviderWithValue(fs, keyDelim, k, flagKey), nil); err != nil {
			return nil, fmt.Errorf("failed to read settings from flags: %w", err)
		}
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func envKey(name string) string {
	return envKeys[strings.ToLower(strings.TrimPrefix(name, EnvPrefix))]
}

func flagKey(name, value string) (string, interface{}) {
	return flagKeys[name], value
}

// Validate checks that every named backend and level is known
func (s *Settings) Validate() error {
	if _, err := restarter.ParseStoreType(s.Store.Backend); err != nil {
		return fmt.Errorf("%s: %w", KeyStoreBackend, err)
	}
	if _, err := restarter.ParseManagerType(s.Manager.Backend); err != nil {
		return fmt.Errorf("%s: %w", KeyManagerBackend, err)
	}
	if _, err := logging.ParseLevel(s.Log.Level); err != nil {
		return fmt.Errorf("%s: %w", KeyLogLevel, err)
	}
	return nil
}

// OpenStore creates the configured config store
func (s *Settings) OpenStore() (restarter.ConfigStore, error) {
	t, err := restarter.ParseStoreType(s.Store.Backend)
	if err != nil {
		return nil, err
	}
	return restarter.NewConfigStore(t, s.Store.Root)
}

// OpenManager creates the configured service manager
func (s *Settings) OpenManager(opts restarter.ManagerOptions) (restarter.ServiceManager, error) {
	t, err := restarter.ParseManagerType(s.Manager.Backend)
	if err != nil {
		return nil, err
	}
	opts.ScanDir = s.Manager.ScanDir
	opts.DefinitionDir = s.Manager.DefinitionDir
	opts.UnitDir = s.Manager.UnitDir
	return restarter.NewServiceManager(t, opts)
}
