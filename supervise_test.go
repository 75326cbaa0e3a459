//go:build linux

package restarter

import (
	"context"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// mockSupervise is a fake supervise directory for one service
type mockSupervise struct {
	t      *testing.T
	dir    string
	flavor SuperviseFlavor
}

func newMockSupervise(t *testing.T, scanDir, name string, flavor SuperviseFlavor) *mockSupervise {
	t.Helper()
	m := &mockSupervise{t: t, dir: filepath.Join(scanDir, name), flavor: flavor}
	require.NoError(t, os.MkdirAll(filepath.Join(m.dir, SuperviseDir), 0o755))
	m.setStatus(0, false)
	return m
}

func (m *mockSupervise) path(name string) string {
	return filepath.Join(m.dir, SuperviseDir, name)
}

// setStatus writes a status record with the given pid and want-up flag
func (m *mockSupervise) setStatus(pid uint32, wantUp bool) {
	m.t.Helper()
	want := byte('d')
	if wantUp {
		want = 'u'
	}

	var data []byte
	switch m.flavor {
	case FlavorDaemontools:
		data = daemontoolsRecord(pid, want, false)
	case FlavorS6:
		var flags byte
		if wantUp {
			flags = s6FlagWantUp
		}
		data = s6Record(uint64(pid), flags)
	default:
		state := byte(runitStateDown)
		if pid != 0 {
			state = runitStateRun
		}
		data = runitRecord(pid, want, false, state)
	}

	tmp := m.path(StatusFile + ".new")
	require.NoError(m.t, os.WriteFile(tmp, data, 0o644))
	require.NoError(m.t, os.Rename(tmp, m.path(StatusFile)))
}

// fifo creates the control FIFO and returns a channel of the bytes written
// to it. The test holds the FIFO open so writers find a reader.
func (m *mockSupervise) fifo() <-chan byte {
	m.t.Helper()
	require.NoError(m.t, unix.Mkfifo(m.path(ControlFile), 0o600))
	f, err := os.OpenFile(m.path(ControlFile), os.O_RDWR, 0)
	require.NoError(m.t, err)
	m.t.Cleanup(func() { _ = f.Close() })

	out := make(chan byte, 16)
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := f.Read(buf); err != nil {
				return
			}
			out <- buf[0]
		}
	}()
	return out
}

// socket serves the control file as a unix socket
func (m *mockSupervise) socket() <-chan byte {
	m.t.Helper()
	ln, err := net.Listen("unix", m.path(ControlFile))
	require.NoError(m.t, err)
	m.t.Cleanup(func() { _ = ln.Close() })

	out := make(chan byte, 16)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			buf := make([]byte, 1)
			if n, _ := conn.Read(buf); n == 1 {
				out <- buf[0]
			}
			_ = conn.Close()
		}
	}()
	return out
}

func receive(t *testing.T, ch <-chan byte) byte {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("no control byte received")
		return 0
	}
}

func newTestSuperviseManager(t *testing.T, flavor SuperviseFlavor, scanDir string, opts ...SuperviseOption) *SuperviseManager {
	t.Helper()
	opts = append([]SuperviseOption{
		WithSuperviseLogger(slog.New(slog.DiscardHandler)),
		WithControlBackoff(time.Millisecond, 5*time.Millisecond, 3),
	}, opts...)
	return NewSuperviseManager(flavor, scanDir, opts...)
}

func openSupervised(t *testing.T, m *SuperviseManager, name string, access ServiceAccess) Service {
	t.Helper()
	conn, err := m.Connect(t.Context(), ManagerConnect)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	svc, err := conn.OpenService(t.Context(), name, access)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestSuperviseState(t *testing.T) {
	for _, flavor := range []SuperviseFlavor{FlavorRunit, FlavorDaemontools, FlavorS6} {
		t.Run(flavor.String(), func(t *testing.T) {
			scanDir := t.TempDir()
			mock := newMockSupervise(t, scanDir, "web", flavor)
			m := newTestSuperviseManager(t, flavor, scanDir)
			svc := openSupervised(t, m, "web", AccessQueryStatus)

			state, err := svc.State(t.Context())
			require.NoError(t, err)
			assert.Equal(t, StateStopped, state)

			mock.setStatus(1234, true)
			state, err = svc.State(t.Context())
			require.NoError(t, err)
			assert.Equal(t, StateRunning, state)

			mock.setStatus(1234, false)
			state, err = svc.State(t.Context())
			require.NoError(t, err)
			assert.Equal(t, StateStopPending, state)
		})
	}
}

func TestSuperviseConnectMissingScanDir(t *testing.T) {
	m := newTestSuperviseManager(t, FlavorRunit, filepath.Join(t.TempDir(), "absent"))
	_, err := m.Connect(t.Context(), ManagerConnect)
	assert.ErrorIs(t, err, ErrServiceManager)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestSuperviseOpenService(t *testing.T) {
	scanDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(scanDir, "fresh"), 0o755))
	m := newTestSuperviseManager(t, FlavorRunit, scanDir)

	conn, err := m.Connect(t.Context(), ManagerConnect)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	_, err = conn.OpenService(t.Context(), "missing", AccessQueryStatus)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = conn.OpenService(t.Context(), "fresh", AccessQueryStatus|AccessStart)
	assert.ErrorIs(t, err, ErrNotSupervised)

	svc, err := conn.OpenService(t.Context(), "fresh", AccessDelete)
	require.NoError(t, err)
	assert.Equal(t, "fresh", svc.Name())

	_, err = conn.OpenService(t.Context(), "../etc", AccessQueryStatus)
	assert.Error(t, err)
}

func TestSuperviseAccessChecked(t *testing.T) {
	scanDir := t.TempDir()
	newMockSupervise(t, scanDir, "web", FlavorRunit)
	m := newTestSuperviseManager(t, FlavorRunit, scanDir)
	svc := openSupervised(t, m, "web", AccessStart)

	_, err := svc.State(t.Context())
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.ErrorIs(t, svc.Stop(t.Context()), fs.ErrPermission)
	assert.ErrorIs(t, svc.Delete(t.Context()), fs.ErrPermission)
}

func TestSuperviseControlFIFO(t *testing.T) {
	scanDir := t.TempDir()
	mock := newMockSupervise(t, scanDir, "web", FlavorRunit)
	control := mock.fifo()
	m := newTestSuperviseManager(t, FlavorRunit, scanDir)
	svc := openSupervised(t, m, "web", AccessStart|AccessStop)

	require.NoError(t, svc.Start(t.Context(), "ignored"))
	assert.Equal(t, byte('u'), receive(t, control))

	require.NoError(t, svc.Stop(t.Context()))
	assert.Equal(t, byte('d'), receive(t, control))
}

func TestSuperviseControlSocket(t *testing.T) {
	scanDir := t.TempDir()
	mock := newMockSupervise(t, scanDir, "web", FlavorRunit)
	control := mock.socket()
	m := newTestSuperviseManager(t, FlavorRunit, scanDir)
	svc := openSupervised(t, m, "web", AccessStart)

	require.NoError(t, svc.Start(t.Context()))
	assert.Equal(t, byte('u'), receive(t, control))
}

func TestSuperviseControlNotReady(t *testing.T) {
	scanDir := t.TempDir()
	mock := newMockSupervise(t, scanDir, "web", FlavorRunit)
	// a FIFO nobody reads from
	require.NoError(t, unix.Mkfifo(mock.path(ControlFile), 0o600))

	m := newTestSuperviseManager(t, FlavorRunit, scanDir)
	svc := openSupervised(t, m, "web", AccessStart)

	err := svc.Start(t.Context())
	assert.ErrorIs(t, err, ErrControlNotReady)
	assert.ErrorIs(t, err, ErrServiceManager)
}

func TestSuperviseWaitState(t *testing.T) {
	scanDir := t.TempDir()
	mock := newMockSupervise(t, scanDir, "web", FlavorRunit)
	m := newTestSuperviseManager(t, FlavorRunit, scanDir)
	svc := openSupervised(t, m, "web", AccessQueryStatus)
	waiter, ok := svc.(StateWaiter)
	require.True(t, ok)

	// already satisfied
	state, err := waiter.WaitState(t.Context(), StateStopped)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, state)

	go func() {
		time.Sleep(50 * time.Millisecond)
		mock.setStatus(42, true)
	}()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	state, err = waiter.WaitState(ctx, StateRunning)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, state)
}

func TestSuperviseWaitStateTimeout(t *testing.T) {
	scanDir := t.TempDir()
	newMockSupervise(t, scanDir, "web", FlavorRunit)
	m := newTestSuperviseManager(t, FlavorRunit, scanDir)
	svc := openSupervised(t, m, "web", AccessQueryStatus)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	_, err := svc.(StateWaiter).WaitState(ctx, StateRunning)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSuperviseCreateAndDelete(t *testing.T) {
	scanDir := t.TempDir()
	defDir := t.TempDir()
	m := newTestSuperviseManager(t, FlavorRunit, scanDir, WithDefinitionDir(defDir))

	conn, err := m.Connect(t.Context(), ManagerConnect)
	require.NoError(t, err)
	_, err = conn.CreateService(t.Context(), ServiceConfig{Name: "watcher", Executable: "/usr/bin/svcrestarter"})
	assert.ErrorIs(t, err, fs.ErrPermission, "create needs ManagerCreateService")
	require.NoError(t, conn.Close())

	conn, err = m.Connect(t.Context(), ManagerConnect|ManagerCreateService)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	svc, err := conn.CreateService(t.Context(), ServiceConfig{
		Name:       "watcher",
		Executable: "/usr/bin/svcrestarter",
		Args:       []string{"service", "watcher"},
		StartType:  StartDemand,
	})
	require.NoError(t, err)

	target, err := os.Readlink(filepath.Join(scanDir, "watcher"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(defDir, "watcher"), target)

	run, err := os.ReadFile(filepath.Join(defDir, "watcher", "run"))
	require.NoError(t, err)
	assert.Contains(t, string(run), "exec /usr/bin/svcrestarter service watcher")
	assert.FileExists(t, filepath.Join(defDir, "watcher", "down"))

	require.NoError(t, svc.Delete(t.Context()))
	assert.NoFileExists(t, filepath.Join(scanDir, "watcher"))
	assert.NoDirExists(t, filepath.Join(defDir, "watcher"))
}
