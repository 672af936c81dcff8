package arp

import (
	"sync"
)

// DefaultServeMux is the default ServeMux used by Server.  When the Handle
// and HandleFunc functions are called, handlers are applied to
// DefaultServeMux.
var DefaultServeMux = NewServeMux()

// ServeMux is an ARP packet multiplexer, which implements Handler.  ServeMux
// matches handlers based on their Operation, so that a Responder can be
// registered for requests only while replies are passed to some other
// handler, or dropped.
type ServeMux struct {
	mu sync.RWMutex
	m  map[Operation]Handler
}

// NewServeMux creates a new ServeMux which is ready to accept Handlers.
func NewServeMux() *ServeMux {
	return &ServeMux{
		m: make(map[Operation]Handler),
	}
}

// ServeARP implements Handler for ServeMux, and serves an ARP packet using
// the appropriate handler for an input Request's Operation.  If no Handler
// is registered for the Operation, the packet is dropped.
func (mux *ServeMux) ServeARP(w ResponseSender, r *Request) {
	h, ok := mux.Handler(r.Operation)
	if !ok {
		return
	}

	h.ServeARP(w, r)
}

// Handler returns the Handler registered for op, if any.
func (mux *ServeMux) Handler(op Operation) (Handler, bool) {
	mux.mu.RLock()
	defer mux.mu.RUnlock()

	h, ok := mux.m[op]
	return h, ok
}

// Handle registers a Operation and Handler with a ServeMux, so that
// future packets with that Operation will invoke the Handler.
func (mux *ServeMux) Handle(op Operation, handler Handler) {
	mux.mu.Lock()
	mux.m[op] = handler
	mux.mu.Unlock()
}

// Handle registers a Operation and Handler with the DefaultServeMux,
// so that future packets with that Operation will invoke the Handler.
func Handle(op Operation, handler Handler) {
	DefaultServeMux.Handle(op, handler)
}

// HandleFunc registers a Operation and function as a HandlerFunc with a
// ServeMux, so that future packets with that Operation will invoke the
// HandlerFunc.
func (mux *ServeMux) HandleFunc(op Operation, handler func(ResponseSender, *Request)) {
	mux.Handle(op, HandlerFunc(handler))
}

// HandleFunc registers a Operation and function as a HandlerFunc with the
// DefaultServeMux, so that future packets with that Operation will invoke
// the HandlerFunc.
func HandleFunc(op Operation, handler func(ResponseSender, *Request)) {
	DefaultServeMux.HandleFunc(op, handler)
}
