// Package eventbus provides a synchronous in-process publish/subscribe
// registry keyed by a closed set of event kinds.
package eventbus

import (
	"context"
	"reflect"
	"sync"

	"github.com/fd1az/wallet-hub/internal/logger"
)

// Handler receives the payload published for an event kind.
type Handler func(payload any)

type registration struct {
	id      uintptr
	handler Handler
}

// Bus dispatches payloads to handlers registered per event kind. Dispatch
// is synchronous and in registration order; a panicking handler does not
// prevent later handlers from running.
type Bus[K comparable] struct {
	mu        sync.RWMutex
	listeners map[K][]registration
	logger    logger.LoggerInterface
}

// New creates an empty bus. The logger records handler panics; it may be nil.
func New[K comparable](log logger.LoggerInterface) *Bus[K] {
	return &Bus[K]{
		listeners: make(map[K][]registration),
		logger:    log,
	}
}

// On registers a handler for the given kind. Handlers are deduplicated by
// function identity: registering the same function twice is a no-op.
func (b *Bus[K]) On(kind K, h Handler) {
	if h == nil {
		return
	}
	id := reflect.ValueOf(h).Pointer()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, reg := range b.listeners[kind] {
		if reg.id == id {
			return
		}
	}
	b.listeners[kind] = append(b.listeners[kind], registration{id: id, handler: h})
}

// Off removes one handler by function identity.
func (b *Bus[K]) Off(kind K, h Handler) {
	if h == nil {
		return
	}
	id := reflect.ValueOf(h).Pointer()

	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.listeners[kind]
	for i, reg := range regs {
		if reg.id == id {
			b.listeners[kind] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// Clear removes all handlers for the given kinds, or every handler when no
// kind is given.
func (b *Bus[K]) Clear(kinds ...K) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(kinds) == 0 {
		b.listeners = make(map[K][]registration)
		return
	}
	for _, kind := range kinds {
		delete(b.listeners, kind)
	}
}

// Len returns the number of handlers registered for a kind.
func (b *Bus[K]) Len(kind K) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[kind])
}

// Emit synchronously invokes every handler registered for kind, in
// registration order. Handler panics are isolated and logged.
func (b *Bus[K]) Emit(kind K, payload any) {
	b.mu.RLock()
	regs := make([]registration, len(b.listeners[kind]))
	copy(regs, b.listeners[kind])
	b.mu.RUnlock()

	for _, reg := range regs {
		b.invoke(kind, reg.handler, payload)
	}
}

func (b *Bus[K]) invoke(kind K, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Error(context.Background(), "event handler panicked",
				"event", kind, "panic", r)
		}
	}()
	h(payload)
}
