//go:build windows

package restarter

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sys/windows/registry"
)

// RegistryStore is the ConfigStore backed by a registry hive
type RegistryStore struct {
	// Root is the predefined key paths are resolved against
	Root registry.Key
}

// NewRegistryStore returns a store rooted at HKEY_LOCAL_MACHINE
func NewRegistryStore() *RegistryStore {
	return &RegistryStore{Root: registry.LOCAL_MACHINE}
}

// OpenKey opens path below the store root
func (s *RegistryStore) OpenKey(path string, access KeyAccess) (ConfigKey, error) {
	path = JoinKeyPath(SplitKeyPath(path)...)

	var (
		k   registry.Key
		err error
	)
	if access&KeyWrite != 0 {
		k, _, err = registry.CreateKey(s.Root, path, registryAccess(access))
	} else {
		k, err = registry.OpenKey(s.Root, path, registryAccess(access))
	}
	if errors.Is(err, registry.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("open key %q: %w", path, err)
	}
	return &registryKey{path: path, key: k}, nil
}

func registryAccess(access KeyAccess) uint32 {
	var a uint32
	if access&KeyRead != 0 {
		a |= registry.QUERY_VALUE
	}
	if access&KeyWrite != 0 {
		a |= registry.SET_VALUE | registry.QUERY_VALUE
	}
	return a
}

type registryKey struct {
	path string
	key  registry.Key
}

func (k *registryKey) ReadValue(name string) (Value, error) {
	data, t, err := k.readRaw(name)
	if errors.Is(err, registry.ErrNotExist) {
		return nil, &ValueError{Key: k.path, Name: name, Err: ErrValueNotFound}
	}
	if err != nil {
		return nil, &ValueError{Key: k.path, Name: name, Err: err}
	}

	v, err := Decode(t, data)
	if err != nil {
		return nil, &ValueError{Key: k.path, Name: name, Type: t, Err: err}
	}
	return v, nil
}

// readRaw fetches the payload and tag without interpretation. The value can
// grow between the size probe and the read, so short buffers are retried.
func (k *registryKey) readRaw(name string) ([]byte, ValueType, error) {
	n, _, err := k.key.GetValue(name, nil)
	if err != nil {
		return nil, 0, err
	}
	for {
		buf := make([]byte, n)
		m, t, err := k.key.GetValue(name, buf)
		if errors.Is(err, registry.ErrShortBuffer) {
			n = m
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		return buf[:m], ValueType(t), nil
	}
}

func (k *registryKey) WriteValue(name string, v Value) error {
	// strict encoding rules apply regardless of which setter stores the value
	if _, err := Encode(v); err != nil {
		return &ValueError{Key: k.path, Name: name, Err: err}
	}

	var err error
	switch x := v.(type) {
	case StringValue:
		err = k.key.SetStringValue(name, string(x))
	case ExpandStringValue:
		err = k.key.SetExpandStringValue(name, x.Unexpanded)
	case BinaryValue:
		err = k.key.SetBinaryValue(name, x)
	case DWordValue:
		err = k.key.SetDWordValue(name, uint32(x))
	case QWordValue:
		err = k.key.SetQWordValue(name, uint64(x))
	case MultiStringValue:
		err = k.key.SetStringsValue(name, x)
	default:
		err = fmt.Errorf("%w: writing %s values to the registry", ErrUnsupported, v.Type())
	}
	if err != nil {
		return &ValueError{Key: k.path, Name: name, Type: v.Type(), Err: err}
	}
	return nil
}

func (k *registryKey) DeleteValue(name string) error {
	err := k.key.DeleteValue(name)
	if errors.Is(err, registry.ErrNotExist) {
		return &ValueError{Key: k.path, Name: name, Err: ErrValueNotFound}
	}
	if err != nil {
		return &ValueError{Key: k.path, Name: name, Err: err}
	}
	return nil
}

func (k *registryKey) ValueNames() ([]string, error) {
	names, err := k.key.ReadValueNames(-1)
	if err != nil {
		return nil, fmt.Errorf("list key %q: %w", k.path, err)
	}
	sort.Strings(names)
	return names, nil
}

func (k *registryKey) Close() error {
	return k.key.Close()
}
