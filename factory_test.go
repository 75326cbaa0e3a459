package restarter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerTypeRoundTrip(t *testing.T) {
	for _, mt := range []ManagerType{ManagerSCM, ManagerRunit, ManagerDaemontools, ManagerS6, ManagerSystemd} {
		got, err := ParseManagerType(mt.String())
		require.NoError(t, err)
		assert.Equal(t, mt, got)
	}

	got, err := ParseManagerType("  RUNIT ")
	require.NoError(t, err)
	assert.Equal(t, ManagerRunit, got)

	_, err = ParseManagerType("upstart")
	assert.Error(t, err)
	assert.Equal(t, "unknown", ManagerType(99).String())
}

func TestStoreTypeRoundTrip(t *testing.T) {
	for _, st := range []StoreType{StoreRegistry, StoreDir} {
		got, err := ParseStoreType(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}

	_, err := ParseStoreType("etcd")
	assert.Error(t, err)
	assert.Equal(t, "unknown", StoreUnknown.String())
}

func TestNewServiceManagerErrors(t *testing.T) {
	_, err := NewServiceManager(ManagerUnknown, ManagerOptions{})
	assert.Error(t, err)

	_, err = NewServiceManager(ManagerRunit, ManagerOptions{})
	assert.ErrorContains(t, err, "scan directory")
}

func TestNewServiceManagerAvailable(t *testing.T) {
	for _, mt := range availableManagers() {
		t.Run(mt.String(), func(t *testing.T) {
			m, err := NewServiceManager(mt, ManagerOptions{ScanDir: t.TempDir()})
			require.NoError(t, err)
			assert.NotNil(t, m)
		})
	}
}

func TestNewConfigStore(t *testing.T) {
	_, err := NewConfigStore(StoreDir, "")
	assert.Error(t, err)

	_, err = NewConfigStore(StoreUnknown, "/tmp")
	assert.Error(t, err)

	store, err := NewConfigStore(StoreDir, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &DirStore{}, store)
}

func TestGetVersion(t *testing.T) {
	info := GetVersion()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, availableManagers(), info.Managers)
	assert.Contains(t, info.Stores, StoreDir)
}
