package restarter

import (
	"errors"
	"strings"
)

// Value names read from a service's Parameters key
const (
	// ValueInitialSleep is the optional delay before the first cycle, in milliseconds
	ValueInitialSleep = "InitialSleepDurationMilliseconds"
	// ValueServicesExpectedRunning is the required watch list
	ValueServicesExpectedRunning = "ServicesExpectedRunning"
	// ValueSleepDuration is the required interval between cycles, in milliseconds
	ValueSleepDuration = "SleepDurationMilliseconds"
	// ValueLogPath is the optional managed-mode log destination
	ValueLogPath = "LogPath"
	// ValueLogLevel is the optional managed-mode log verbosity (1 = error .. 5 = trace)
	ValueLogLevel = "LogLevel"
)

const (
	servicesKeyPrefix   = `SYSTEM\CurrentControlSet\Services`
	parametersKeySuffix = "Parameters"
	keyPathSeparator    = `\`
)

// KeyAccess selects the rights requested when opening a key
type KeyAccess uint8

const (
	// KeyRead allows ReadValue and ValueNames
	KeyRead KeyAccess = 1 << iota
	// KeyWrite allows WriteValue and DeleteValue, creating the key if needed
	KeyWrite
)

// ConfigStore is the hierarchical key/value store the supervisor reads its
// configuration from.
type ConfigStore interface {
	// OpenKey opens the key at path. Opening a missing key for read fails with
	// an error matching ErrKeyNotFound; KeyWrite creates it.
	OpenKey(path string, access KeyAccess) (ConfigKey, error)
}

// ConfigKey is an open key. It owns the underlying handle until Close.
type ConfigKey interface {
	// ReadValue decodes the named value. A missing value matches ErrValueNotFound.
	ReadValue(name string) (Value, error)
	// WriteValue encodes v and stores it under name, replacing any previous value
	WriteValue(name string, v Value) error
	// DeleteValue removes the named value
	DeleteValue(name string) error
	// ValueNames lists the value names under the key in sorted order
	ValueNames() ([]string, error)
	// Close releases the key
	Close() error
}

// ParametersKeyPath returns the key holding the configuration of the named
// supervisor instance.
func ParametersKeyPath(name string) string {
	return JoinKeyPath(servicesKeyPrefix, name, parametersKeySuffix)
}

// JoinKeyPath joins key path segments with a backslash
func JoinKeyPath(segments ...string) string {
	return strings.Join(segments, keyPathSeparator)
}

// SplitKeyPath splits a key path into its non-empty segments. Both slash
// styles are accepted.
func SplitKeyPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool {
		return r == '\\' || r == '/'
	})
}

// ReadValueOptional reads the named value, reporting absence as ok == false
// rather than as an error.
func ReadValueOptional(k ConfigKey, name string) (v Value, ok bool, err error) {
	v, err = k.ReadValue(name)
	if errors.Is(err, ErrValueNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// ReadInteger reads a required integer value. DWORD, big-endian DWORD and
// QWORD are all accepted.
func ReadInteger(k ConfigKey, name string) (uint64, error) {
	v, err := k.ReadValue(name)
	if err != nil {
		return 0, err
	}
	return integerOf(name, v)
}

// ReadIntegerOptional is ReadInteger with absence reported as ok == false
func ReadIntegerOptional(k ConfigKey, name string) (n uint64, ok bool, err error) {
	v, ok, err := ReadValueOptional(k, name)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err = integerOf(name, v)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// ReadStringList reads a required multi-string value
func ReadStringList(k ConfigKey, name string) ([]string, error) {
	v, err := k.ReadValue(name)
	if err != nil {
		return nil, err
	}
	list, ok := v.(MultiStringValue)
	if !ok {
		return nil, &ValueError{Name: name, Type: v.Type(), Err: ErrUnexpectedValueType}
	}
	return []string(list), nil
}

func integerOf(name string, v Value) (uint64, error) {
	n, ok := IntegerValue(v)
	if !ok {
		return 0, &ValueError{Name: name, Type: v.Type(), Err: ErrUnexpectedValueType}
	}
	return n, nil
}
