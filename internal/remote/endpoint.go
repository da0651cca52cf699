// Package remote tracks peer endpoints that can execute checks on our
// behalf, and the message shape exchanged with them.
package remote

import (
	"fmt"
	"sync"
	"time"
)

// Sender transmits one encoded message to the peer. The transport supplies
// it when the connection comes up.
type Sender func(msg []byte) error

// Endpoint is one remote peer. Connection state and heartbeat are mutated
// by the transport; the executor and the stale-agent sweep read them.
type Endpoint struct {
	mu sync.Mutex

	Name string

	connected     bool
	syncing       bool
	lastHeartbeat time.Time
	send          Sender
}

// NewEndpoint creates a disconnected endpoint.
func NewEndpoint(name string) *Endpoint {
	return &Endpoint{Name: name}
}

// Connected reports whether a transport session is established.
func (e *Endpoint) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

// SetConnected marks the session up or down. Going down drops the sender.
func (e *Endpoint) SetConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	if !v {
		e.send = nil
	}
	e.mu.Unlock()
}

// Syncing reports whether the peer is still replaying its backlog; results
// from a syncing peer are deferred rather than failed.
func (e *Endpoint) Syncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncing
}

// SetSyncing flips the backlog-replay flag.
func (e *Endpoint) SetSyncing(v bool) {
	e.mu.Lock()
	e.syncing = v
	e.mu.Unlock()
}

// Heartbeat records that the peer was seen alive at now.
func (e *Endpoint) Heartbeat(now time.Time) {
	e.mu.Lock()
	e.lastHeartbeat = now
	e.mu.Unlock()
}

// LastHeartbeat returns the last time the peer was seen alive.
func (e *Endpoint) LastHeartbeat() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastHeartbeat
}

// SetSender installs the transport's send hook and marks the session up.
func (e *Endpoint) SetSender(s Sender) {
	e.mu.Lock()
	e.send = s
	e.connected = s != nil
	e.mu.Unlock()
}

// Send encodes and transmits msg. Fails when disconnected.
func (e *Endpoint) Send(msg *Message) error {
	e.mu.Lock()
	send := e.send
	e.mu.Unlock()
	if send == nil {
		return fmt.Errorf("endpoint %s: not connected", e.Name)
	}
	raw, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("endpoint %s: encode: %w", e.Name, err)
	}
	return send(raw)
}

// Registry is the set of known endpoints plus the local node's identity.
type Registry struct {
	mu        sync.Mutex
	endpoints map[string]*Endpoint
	localName string
}

// NewRegistry creates a registry for the named local node.
func NewRegistry(localName string) *Registry {
	return &Registry{
		endpoints: make(map[string]*Endpoint),
		localName: localName,
	}
}

// LocalName returns the local node's endpoint name.
func (r *Registry) LocalName() string { return r.localName }

// Register adds an endpoint, replacing any previous entry with the name.
func (r *Registry) Register(e *Endpoint) {
	r.mu.Lock()
	r.endpoints[e.Name] = e
	r.mu.Unlock()
}

// Get returns the endpoint by name, nil if unknown.
func (r *Registry) Get(name string) *Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endpoints[name]
}

// All returns a snapshot of the registered endpoints.
func (r *Registry) All() []*Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Endpoint, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		out = append(out, e)
	}
	return out
}
