// Package mem provides an in-process transport hub. Endpoints attached to
// the same hub form one broadcast domain; a settable link filter turns the
// full mesh into an arbitrary topology, which is how tests build multi-hop
// networks deterministically.
package mem

import (
	"errors"
	"sync"

	"github.com/fevzifiratt/ceng797-term-project/pkg/transport"
)

// LinkFilter reports whether a frame from one address reaches another.
// A nil filter means every endpoint hears every other one.
type LinkFilter func(from, to string) bool

// Hub is a shared medium connecting endpoints.
type Hub struct {
	mu     sync.Mutex
	eps    map[string]*Endpoint
	filter LinkFilter
}

func NewHub() *Hub { return &Hub{eps: make(map[string]*Endpoint)} }

// SetLinkFilter installs f; passing nil restores full connectivity.
func (h *Hub) SetLinkFilter(f LinkFilter) {
	h.mu.Lock()
	h.filter = f
	h.mu.Unlock()
}

// Attach registers an endpoint under addr, replacing any previous one.
func (h *Hub) Attach(addr string) *Endpoint {
	e := &Endpoint{hub: h, addr: addr}
	h.mu.Lock()
	h.eps[addr] = e
	h.mu.Unlock()
	return e
}

// Endpoint is one attached transport.
type Endpoint struct {
	hub  *Hub
	addr string

	mu      sync.Mutex
	handler transport.Handler
	closed  bool
}

func (e *Endpoint) Start(hnd transport.Handler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("mem: endpoint closed")
	}
	e.handler = hnd
	return nil
}

func (e *Endpoint) LocalAddr() string { return e.addr }

func (e *Endpoint) Send(frame []byte, to string) error {
	e.hub.mu.Lock()
	dst := e.hub.eps[to]
	filter := e.hub.filter
	e.hub.mu.Unlock()
	// Unknown or filtered destinations drop silently: best-effort medium.
	if dst == nil || (filter != nil && !filter(e.addr, to)) {
		return nil
	}
	dst.deliver(frame, e.addr)
	return nil
}

func (e *Endpoint) Broadcast(frame []byte) error {
	e.hub.mu.Lock()
	targets := make([]*Endpoint, 0, len(e.hub.eps))
	filter := e.hub.filter
	for addr, ep := range e.hub.eps {
		if addr == e.addr {
			continue
		}
		if filter != nil && !filter(e.addr, addr) {
			continue
		}
		targets = append(targets, ep)
	}
	e.hub.mu.Unlock()
	for _, ep := range targets {
		ep.deliver(frame, e.addr)
	}
	return nil
}

func (e *Endpoint) Close() error {
	e.mu.Lock()
	e.closed = true
	e.handler = nil
	e.mu.Unlock()
	e.hub.mu.Lock()
	if e.hub.eps[e.addr] == e {
		delete(e.hub.eps, e.addr)
	}
	e.hub.mu.Unlock()
	return nil
}

func (e *Endpoint) deliver(frame []byte, from string) {
	e.mu.Lock()
	hnd := e.handler
	e.mu.Unlock()
	if hnd == nil {
		return
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	hnd(cp, from)
}
