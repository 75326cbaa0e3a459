package restarter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File and directory modes used by DirStore
const (
	dirStoreDirMode  os.FileMode = 0o755
	dirStoreFileMode os.FileMode = 0o644
)

// dirStoreTagSize is the length of the type tag prefixed to every value file
const dirStoreTagSize = 4

// DirStore is a ConfigStore kept in a directory tree. Each key path segment
// is a directory under Root and each value is a file holding a 4-byte
// little-endian type tag followed by the raw payload, in the same encoding
// the registry uses.
type DirStore struct {
	// Root is the directory the key hierarchy starts at
	Root string

	// Expander expands expandable strings on read; nil selects DefaultExpander
	Expander Expander
}

// NewDirStore creates a store rooted at root
func NewDirStore(root string) *DirStore {
	return &DirStore{Root: root}
}

// OpenKey opens the key directory for path
func (s *DirStore) OpenKey(path string, access KeyAccess) (ConfigKey, error) {
	segments := SplitKeyPath(path)
	for _, seg := range segments {
		if err := validateSegment(seg); err != nil {
			return nil, fmt.Errorf("key %q: %w", path, err)
		}
	}

	dir := filepath.Join(append([]string{s.Root}, segments...)...)
	if access&KeyWrite != 0 {
		if err := os.MkdirAll(dir, dirStoreDirMode); err != nil {
			return nil, fmt.Errorf("create key %q: %w", path, err)
		}
	}

	fi, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("open key %q: %w", path, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a key", ErrKeyNotFound, path)
	}

	expander := s.Expander
	if expander == nil {
		expander = DefaultExpander()
	}
	return &dirKey{path: JoinKeyPath(segments...), dir: dir, access: access, expander: expander}, nil
}

type dirKey struct {
	path     string
	dir      string
	access   KeyAccess
	expander Expander
	closed   bool
}

func (k *dirKey) valueFile(name string) (string, error) {
	if k.closed {
		return "", fmt.Errorf("key %q: %w", k.path, fs.ErrClosed)
	}
	if err := validateSegment(name); err != nil {
		return "", &ValueError{Key: k.path, Name: name, Err: err}
	}
	return filepath.Join(k.dir, name), nil
}

func (k *dirKey) ReadValue(name string) (Value, error) {
	file, err := k.valueFile(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &ValueError{Key: k.path, Name: name, Err: ErrValueNotFound}
	}
	if err != nil {
		return nil, &ValueError{Key: k.path, Name: name, Err: err}
	}
	if len(data) < dirStoreTagSize {
		return nil, &ValueError{Key: k.path, Name: name, Err: fmt.Errorf("%w: missing type tag", ErrMalformedValue)}
	}

	t := ValueType(binary.LittleEndian.Uint32(data))
	v, err := Decode(t, data[dirStoreTagSize:], WithExpander(k.expander))
	if err != nil {
		return nil, &ValueError{Key: k.path, Name: name, Type: t, Err: err}
	}
	return v, nil
}

func (k *dirKey) WriteValue(name string, v Value) error {
	file, err := k.valueFile(name)
	if err != nil {
		return err
	}
	if k.access&KeyWrite == 0 {
		return &ValueError{Key: k.path, Name: name, Err: fs.ErrPermission}
	}

	payload, err := Encode(v)
	if err != nil {
		return &ValueError{Key: k.path, Name: name, Err: err}
	}
	data := make([]byte, 0, dirStoreTagSize+len(payload))
	data = binary.LittleEndian.AppendUint32(data, uint32(v.Type()))
	data = append(data, payload...)

	if err := writeFileAtomic(file, data, dirStoreFileMode); err != nil {
		return &ValueError{Key: k.path, Name: name, Type: v.Type(), Err: err}
	}
	return nil
}

func (k *dirKey) DeleteValue(name string) error {
	file, err := k.valueFile(name)
	if err != nil {
		return err
	}
	if k.access&KeyWrite == 0 {
		return &ValueError{Key: k.path, Name: name, Err: fs.ErrPermission}
	}

	err = os.Remove(file)
	if errors.Is(err, fs.ErrNotExist) {
		return &ValueError{Key: k.path, Name: name, Err: ErrValueNotFound}
	}
	if err != nil {
		return &ValueError{Key: k.path, Name: name, Err: err}
	}
	return nil
}

func (k *dirKey) ValueNames() ([]string, error) {
	if k.closed {
		return nil, fmt.Errorf("key %q: %w", k.path, fs.ErrClosed)
	}
	entries, err := os.ReadDir(k.dir)
	if err != nil {
		return nil, fmt.Errorf("list key %q: %w", k.path, err)
	}

	var names []string
	for _, e := range entries {
		// skip subkeys and leftover temp files
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (k *dirKey) Close() error {
	k.closed = true
	return nil
}

// validateSegment rejects names that would escape the key directory
func validateSegment(name string) error {
	switch {
	case name == "":
		return errors.New("empty name")
	case name == "." || name == "..":
		return fmt.Errorf("invalid name %q", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("name %q contains a path separator", name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("name %q starts with a dot", name)
	}
	return nil
}
