package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load("", newFlags(t))
	require.NoError(t, err)

	d := defaults()
	assert.Equal(t, d[KeyStoreBackend], s.Store.Backend)
	assert.Equal(t, d[KeyStoreRoot], s.Store.Root)
	assert.Equal(t, d[KeyManagerBackend], s.Manager.Backend)
	assert.Equal(t, d[KeyManagerScanDir], s.Manager.ScanDir)
	assert.Equal(t, "info", s.Log.Level)
}

func TestLoadLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: dir
  root: /srv/config
manager:
  backend: daemontools
  scan_dir: /service
log:
  level: warn
`), 0o644))

	t.Setenv("SVCRESTARTER_MANAGER_SCAN_DIR", "/run/service")
	t.Setenv("SVCRESTARTER_UNRELATED", "ignored")

	s, err := Load(path, newFlags(t, "--log-level=debug"))
	require.NoError(t, err)

	want := Store{Backend: "dir", Root: "/srv/config"}
	if diff := cmp.Diff(want, s.Store); diff != "" {
		t.Errorf("store settings mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "daemontools", s.Manager.Backend)
	assert.Equal(t, "/run/service", s.Manager.ScanDir, "environment overrides file")
	assert.Equal(t, "debug", s.Log.Level, "flag overrides file")
}

func TestLoadUnchangedFlagsKeepLowerLayers(t *testing.T) {
	t.Setenv("SVCRESTARTER_STORE_ROOT", "/from/env")

	s, err := Load("", newFlags(t, "--manager=s6"))
	require.NoError(t, err)
	assert.Equal(t, "/from/env", s.Store.Root)
	assert.Equal(t, "s6", s.Manager.Backend)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	_, err := Load("", newFlags(t, "--manager=upstart"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyManagerBackend)

	_, err = Load("", newFlags(t, "--store=ini"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyStoreBackend)

	_, err = Load("", newFlags(t, "--log-level=loud"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyLogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, KeyManagerDefinitionDir, envKey("SVCRESTARTER_MANAGER_DEFINITION_DIR"))
	assert.Equal(t, KeyLogLevel, envKey("SVCRESTARTER_LOG_LEVEL"))
	assert.Empty(t, envKey("SVCRESTARTER_PATH"))
}

func TestOpenStoreDir(t *testing.T) {
	s := &Settings{Store: Store{Backend: "dir", Root: t.TempDir()}}
	store, err := s.OpenStore()
	require.NoError(t, err)
	assert.NotNil(t, store)
}
