package objects

import (
	"fmt"
	"sync"
)

// Store is the registry of configured checkables, keyed by full name.
// Registration validates; the runtime core never sees invalid objects.
type Store struct {
	mu    sync.RWMutex
	byName map[string]*Checkable
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{byName: make(map[string]*Checkable)}
}

// Register validates and adds a checkable. A service's owning host must be
// registered first.
func (s *Store) Register(c *Checkable) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	name := c.FullName()
	if _, ok := s.byName[name]; ok {
		return fmt.Errorf("checkable %s already registered", name)
	}
	if c.Kind == KindService {
		if _, ok := s.byName[c.HostName]; !ok {
			return fmt.Errorf("checkable %s: host %s not registered", name, c.HostName)
		}
	}
	s.byName[name] = c
	return nil
}

// Unregister removes a checkable; a host takes its services with it.
func (s *Store) Unregister(c *Checkable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byName, c.FullName())
	if c.Kind == KindHost {
		for _, svc := range c.services {
			delete(s.byName, svc.FullName())
		}
	} else if c.host != nil {
		delete(c.host.services, c.ShortName)
	}
}

// Get returns a checkable by full name ("host" or "host!service").
func (s *Store) Get(name string) *Checkable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byName[name]
}

// GetHost returns a host by name.
func (s *Store) GetHost(name string) *Checkable {
	c := s.Get(name)
	if c == nil || c.Kind != KindHost {
		return nil
	}
	return c
}

// GetService returns a service by host and short name.
func (s *Store) GetService(hostName, shortName string) *Checkable {
	c := s.Get(hostName + "!" + shortName)
	if c == nil || c.Kind != KindService {
		return nil
	}
	return c
}

// All returns a snapshot of every registered checkable.
func (s *Store) All() []*Checkable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Checkable, 0, len(s.byName))
	for _, c := range s.byName {
		out = append(out, c)
	}
	return out
}

// Len returns the number of registered checkables.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byName)
}
