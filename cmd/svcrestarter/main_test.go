package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	restarter "github.com/axondata/go-svcrestarter"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd(&app{})
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	for _, name := range []string{"run", "service", "start", "stop", "install", "delete", "param"} {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestExecutableStem(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/usr/local/bin/svcrestarter", "svcrestarter"},
		{"/opt/watch/watcher.exe", "watcher"},
		{"relative/archive.tar.gz", "archive.tar"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := executableStem(tt.path); got != tt.want {
			t.Errorf("executableStem(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestServiceNameArg(t *testing.T) {
	assert.Equal(t, "alpha", serviceNameArg([]string{"alpha"}))
	assert.Equal(t, defaultServiceName(), serviceNameArg(nil))
}

func TestRootRejectsUnknownMode(t *testing.T) {
	cmd := buildRootCmd(&app{})
	cmd.SetArgs([]string{"restart"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	assert.Error(t, cmd.Execute())
}

func TestInstallConfig(t *testing.T) {
	got := installConfig("watcher", "/usr/bin/svcrestarter", "")
	want := restarter.ServiceConfig{
		Name:         "watcher",
		DisplayName:  "watcher",
		Executable:   "/usr/bin/svcrestarter",
		Args:         []string{"service", "watcher"},
		StartType:    restarter.StartDemand,
		ErrorControl: restarter.ErrorNormal,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("installConfig mismatch (-want +got):\n%s", diff)
	}

	got = installConfig("watcher", "/usr/bin/svcrestarter", "/etc/svcrestarter.yaml")
	assert.Equal(t, []string{"service", "watcher", "--config", "/etc/svcrestarter.yaml"}, got.Args)
}

// execParam runs "param ..." against a dir store rooted at root
func execParam(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := buildRootCmd(&app{})
	cmd.SetArgs(append([]string{"param", "--store=dir", "--store-root=" + root, "--log-level=error", "-s", "watcher"}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func TestParamSetGetDelete(t *testing.T) {
	root := t.TempDir()

	_, err := execParam(t, root, "set", "ServicesExpectedRunning", "multi_sz", "Spooler", "W32Time")
	require.NoError(t, err)
	_, err = execParam(t, root, "set", "SleepDurationMilliseconds", "dword", "0x7D0")
	require.NoError(t, err)

	out, err := execParam(t, root, "get", "ServicesExpectedRunning")
	require.NoError(t, err)
	assert.Equal(t, "ServicesExpectedRunning\tmulti_sz\t[\"Spooler\", \"W32Time\"]\n", out)

	out, err = execParam(t, root, "get")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "SleepDurationMilliseconds\tdword\t2000 "))

	_, err = execParam(t, root, "delete", "SleepDurationMilliseconds", "Missing")
	var multi *restarter.MultiError
	require.ErrorAs(t, err, &multi)
	assert.Len(t, multi.Errors, 1)
	assert.ErrorIs(t, err, restarter.ErrValueNotFound)

	_, err = execParam(t, root, "get", "SleepDurationMilliseconds")
	assert.ErrorIs(t, err, restarter.ErrValueNotFound)
}

func TestParamSetRejectsInvalidList(t *testing.T) {
	root := t.TempDir()
	_, err := execParam(t, root, "set", "ServicesExpectedRunning", "multi_sz", "a", "", "b")
	assert.ErrorIs(t, err, restarter.ErrInvalidListElement)

	_, err = execParam(t, root, "get", "ServicesExpectedRunning")
	assert.Error(t, err)
}

func TestParamListTypes(t *testing.T) {
	out, err := execParam(t, t.TempDir(), "list-types")
	require.NoError(t, err)
	assert.Contains(t, out, "7\tmulti_sz\n")
	assert.Contains(t, out, "11\tqword\n")
}

type fakeService struct {
	state   restarter.ServiceState
	calls   []string
	stopErr error
}

func (f *fakeService) Name() string { return "watcher" }

func (f *fakeService) State(context.Context) (restarter.ServiceState, error) {
	f.calls = append(f.calls, "state")
	return f.state, nil
}

func (f *fakeService) Start(context.Context, ...string) error {
	f.calls = append(f.calls, "start")
	return nil
}

func (f *fakeService) Stop(context.Context) error {
	f.calls = append(f.calls, "stop")
	return f.stopErr
}

func (f *fakeService) Delete(context.Context) error {
	f.calls = append(f.calls, "delete")
	return nil
}

func (f *fakeService) Close() error { return nil }

func TestDeleteService(t *testing.T) {
	a := &app{logger: slog.New(slog.DiscardHandler)}

	running := &fakeService{state: restarter.StateRunning}
	require.NoError(t, deleteService(t.Context(), a, running))
	assert.Equal(t, []string{"state", "stop", "delete"}, running.calls)

	stopped := &fakeService{state: restarter.StateStopped}
	require.NoError(t, deleteService(t.Context(), a, stopped))
	assert.Equal(t, []string{"state", "delete"}, stopped.calls)

	failing := &fakeService{state: restarter.StatePaused, stopErr: assert.AnError}
	assert.ErrorIs(t, deleteService(t.Context(), a, failing), assert.AnError)
	assert.Equal(t, []string{"state", "stop"}, failing.calls)
}

func TestWaitForUnsupported(t *testing.T) {
	err := waitFor(t.Context(), &fakeService{}, 0, restarter.StateRunning)
	assert.ErrorIs(t, err, errWaitUnsupported)
}
