package restarter

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"sync"
)

// memStore is an in-memory ConfigStore
type memStore struct {
	mu   sync.Mutex
	keys map[string]map[string]Value
	open int
}

func newMemStore() *memStore {
	return &memStore{keys: make(map[string]map[string]Value)}
}

// set writes a value, creating the key
func (s *memStore) set(path, name string, v Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[path] == nil {
		s.keys[path] = make(map[string]Value)
	}
	s.keys[path][name] = v
}

func (s *memStore) remove(path, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys[path], name)
}

func (s *memStore) openKeys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *memStore) OpenKey(path string, access KeyAccess) (ConfigKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[path]; !ok {
		if access&KeyWrite == 0 {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, path)
		}
		s.keys[path] = make(map[string]Value)
	}
	s.open++
	return &memKey{store: s, path: path}, nil
}

type memKey struct {
	store  *memStore
	path   string
	closed bool
}

func (k *memKey) ReadValue(name string) (Value, error) {
	k.store.mu.Lock()
	defer k.store.mu.Unlock()
	v, ok := k.store.keys[k.path][name]
	if !ok {
		return nil, &ValueError{Key: k.path, Name: name, Err: ErrValueNotFound}
	}
	return v, nil
}

func (k *memKey) WriteValue(name string, v Value) error {
	if _, err := Encode(v); err != nil {
		return &ValueError{Key: k.path, Name: name, Err: err}
	}
	k.store.set(k.path, name, v)
	return nil
}

func (k *memKey) DeleteValue(name string) error {
	k.store.remove(k.path, name)
	return nil
}

func (k *memKey) ValueNames() ([]string, error) {
	k.store.mu.Lock()
	defer k.store.mu.Unlock()
	var names []string
	for name := range k.store.keys[k.path] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (k *memKey) Close() error {
	k.store.mu.Lock()
	defer k.store.mu.Unlock()
	if !k.closed {
		k.closed = true
		k.store.open--
	}
	return nil
}

// fakeManager is a ServiceManager over an in-memory service table that
// records every call
type fakeManager struct {
	mu       sync.Mutex
	states   map[string]ServiceState
	calls    []string
	open     int
	failOn   map[string]error
	sticky   bool // Start leaves the state unchanged
	lastArgs []string
}

func newFakeManager(states map[string]ServiceState) *fakeManager {
	return &fakeManager{states: states, failOn: make(map[string]error)}
}

func (m *fakeManager) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.failOn[call]
}

func (m *fakeManager) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *fakeManager) openHandles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *fakeManager) Connect(_ context.Context, _ ManagerAccess) (ManagerConn, error) {
	if err := m.record("connect"); err != nil {
		return nil, &OpError{Op: OpConnect, Err: err}
	}
	m.mu.Lock()
	m.open++
	m.mu.Unlock()
	return &fakeConn{m: m}, nil
}

type fakeConn struct {
	m *fakeManager
}

func (c *fakeConn) OpenService(_ context.Context, name string, access ServiceAccess) (Service, error) {
	if err := c.m.record("open " + name); err != nil {
		return nil, &OpError{Op: OpOpen, Service: name, Err: err}
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if _, ok := c.m.states[name]; !ok {
		return nil, &OpError{Op: OpOpen, Service: name, Err: fs.ErrNotExist}
	}
	c.m.open++
	return &fakeService{m: c.m, name: name, access: access}, nil
}

func (c *fakeConn) CreateService(_ context.Context, cfg ServiceConfig) (Service, error) {
	if err := c.m.record("create " + cfg.Name); err != nil {
		return nil, &OpError{Op: OpCreate, Service: cfg.Name, Err: err}
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.m.states[cfg.Name] = StateStopped
	c.m.open++
	return &fakeService{m: c.m, name: cfg.Name, access: AccessQueryStatus | AccessStart | AccessStop | AccessDelete}, nil
}

func (c *fakeConn) Close() error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.m.open--
	return nil
}

type fakeService struct {
	m      *fakeManager
	name   string
	access ServiceAccess
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) State(_ context.Context) (ServiceState, error) {
	if s.access&AccessQueryStatus == 0 {
		return StateUnknown, &OpError{Op: OpQuery, Service: s.name, Err: fs.ErrPermission}
	}
	if err := s.m.record("state " + s.name); err != nil {
		return StateUnknown, &OpError{Op: OpQuery, Service: s.name, Err: err}
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.m.states[s.name], nil
}

func (s *fakeService) Start(_ context.Context, args ...string) error {
	if s.access&AccessStart == 0 {
		return &OpError{Op: OpStart, Service: s.name, Err: fs.ErrPermission}
	}
	if err := s.m.record("start " + s.name); err != nil {
		return &OpError{Op: OpStart, Service: s.name, Err: err}
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.lastArgs = args
	if !s.m.sticky {
		s.m.states[s.name] = StateRunning
	}
	return nil
}

func (s *fakeService) Stop(_ context.Context) error {
	if err := s.m.record("stop " + s.name); err != nil {
		return &OpError{Op: OpStop, Service: s.name, Err: err}
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.states[s.name] = StateStopped
	return nil
}

func (s *fakeService) Delete(_ context.Context) error {
	if err := s.m.record("delete " + s.name); err != nil {
		return &OpError{Op: OpDelete, Service: s.name, Err: err}
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.states, s.name)
	return nil
}

func (s *fakeService) Close() error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.open--
	return nil
}
