package restarter

import (
	"encoding/binary"
	"testing"
	"time"
)

var statusSince = time.Unix(1700000000, 0)

func putTAI(data []byte, t time.Time) {
	binary.BigEndian.PutUint64(data, tai64Offset+uint64(t.Unix()))
}

func runitRecord(pid uint32, want byte, paused bool, state byte) []byte {
	data := make([]byte, runitStatusSize)
	putTAI(data, statusSince)
	binary.LittleEndian.PutUint32(data[runitPIDStart:], pid)
	if paused {
		data[runitPausedFlag] = 1
	}
	data[runitWantFlag] = want
	data[runitStateByte] = state
	return data
}

func daemontoolsRecord(pid uint32, want byte, paused bool) []byte {
	data := make([]byte, daemontoolsStatusSize)
	putTAI(data, statusSince)
	binary.LittleEndian.PutUint32(data[daemontoolsPIDStart:], pid)
	if paused {
		data[daemontoolsPausedFlag] = 1
	}
	data[daemontoolsWantFlag] = want
	return data
}

func s6Record(pid uint64, flags byte) []byte {
	data := make([]byte, s6StatusSizeCurrent)
	putTAI(data, statusSince)
	binary.BigEndian.PutUint64(data[s6PIDStartCurrent:], pid)
	data[s6FlagsByteCurrent] = flags
	return data
}

func s6RecordPre220(pid uint32, flags byte) []byte {
	data := make([]byte, s6StatusSizePre220)
	putTAI(data, statusSince)
	binary.BigEndian.PutUint32(data[s6PIDStartPre220:], pid)
	data[s6FlagsBytePre220] = flags
	return data
}

func TestParseSuperviseStatus(t *testing.T) {
	tests := []struct {
		name      string
		flavor    SuperviseFlavor
		data      []byte
		wantState ServiceState
		wantPID   int
	}{
		{"runit down", FlavorRunit, runitRecord(0, 'd', false, runitStateDown), StateStopped, 0},
		{"runit stale pid", FlavorRunit, runitRecord(4321, 'u', false, runitStateDown), StateStopped, 0},
		{"runit running", FlavorRunit, runitRecord(1234, 'u', false, runitStateRun), StateRunning, 1234},
		{"runit paused", FlavorRunit, runitRecord(1234, 'u', true, runitStateRun), StatePaused, 1234},
		{"runit stopping", FlavorRunit, runitRecord(1234, 'd', false, runitStateRun), StateStopPending, 1234},
		{"runit finishing", FlavorRunit, runitRecord(1234, 'u', false, runitStateFinish), StateStopPending, 1234},
		{"daemontools down", FlavorDaemontools, daemontoolsRecord(0, 'u', false), StateStopped, 0},
		{"daemontools running", FlavorDaemontools, daemontoolsRecord(99, 'u', false), StateRunning, 99},
		{"daemontools paused", FlavorDaemontools, daemontoolsRecord(99, 'u', true), StatePaused, 99},
		{"s6 down", FlavorS6, s6Record(0, s6FlagWantUp), StateStopped, 0},
		{"s6 running ready", FlavorS6, s6Record(77, s6FlagWantUp|s6FlagReady), StateRunning, 77},
		{"s6 finishing", FlavorS6, s6Record(77, s6FlagWantUp|s6FlagFinishing), StateStopPending, 77},
		{"s6 want down", FlavorS6, s6Record(77, 0), StateStopPending, 77},
		{"s6 pre-2.20 running", FlavorS6, s6RecordPre220(55, 0), StateRunning, 55},
		{"s6 pre-2.20 down", FlavorS6, s6RecordPre220(0, s6Pre220FlagNormallyUp), StateStopped, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := ParseSuperviseStatus(tt.flavor, tt.data)
			if err != nil {
				t.Fatalf("ParseSuperviseStatus() error = %v", err)
			}
			if got := st.State(); got != tt.wantState {
				t.Errorf("State() = %v, want %v", got, tt.wantState)
			}
			if st.PID != tt.wantPID {
				t.Errorf("PID = %d, want %d", st.PID, tt.wantPID)
			}
			if !st.Since.Equal(statusSince) {
				t.Errorf("Since = %v, want %v", st.Since, statusSince)
			}
		})
	}
}

func TestParseSuperviseStatusWrongSize(t *testing.T) {
	tests := []struct {
		flavor SuperviseFlavor
		size   int
	}{
		{FlavorRunit, 18},
		{FlavorRunit, 0},
		{FlavorDaemontools, 20},
		{FlavorS6, 20},
		{FlavorS6, 44},
	}
	for _, tt := range tests {
		if _, err := ParseSuperviseStatus(tt.flavor, make([]byte, tt.size)); err == nil {
			t.Errorf("%s with %d bytes: expected error", tt.flavor, tt.size)
		}
	}
}

func TestTAITimeZero(t *testing.T) {
	data := make([]byte, runitStatusSize)
	st, err := ParseSuperviseStatus(FlavorRunit, data)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Since.IsZero() {
		t.Errorf("Since = %v, want zero", st.Since)
	}
}
