// Package eventbus routes domain events from Kafka to in-process handlers.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/md-rashed-zaman/staffsync/libs/events"
	"github.com/md-rashed-zaman/staffsync/libs/metrics"
)

// Handler applies one event. env carries delivery metadata (id, version,
// occurred_at) and evt the decoded variant.
type Handler func(ctx context.Context, env events.Envelope, evt events.Event) error

// Registry maps event types to an ordered list of handlers. It is safe for
// concurrent use; registration normally happens once at startup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[events.Type][]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[events.Type][]Handler)}
}

// Register appends h to the handlers for t. Handlers run in registration order.
func (r *Registry) Register(t events.Type, h Handler) {
	if h == nil {
		panic(fmt.Sprintf("eventbus: nil handler for %s", t))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = append(r.handlers[t], h)
}

// Types lists every event type with at least one handler, sorted.
func (r *Registry) Types() []events.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]events.Type, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Dispatch decodes env once and runs every handler registered for its type.
// An event with no handlers is a no-op. All handlers run even when one fails;
// their errors are joined.
func (r *Registry) Dispatch(ctx context.Context, env events.Envelope) error {
	r.mu.RLock()
	handlers := append([]Handler(nil), r.handlers[env.EventType]...)
	r.mu.RUnlock()

	if len(handlers) == 0 {
		metrics.EventsDispatched.WithLabelValues(string(env.EventType), "ignored").Inc()
		return nil
	}

	evt, err := env.Decode()
	if err != nil {
		metrics.EventsDispatched.WithLabelValues(string(env.EventType), "malformed").Inc()
		return err
	}

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, env, evt); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		metrics.EventsDispatched.WithLabelValues(string(env.EventType), "failed").Inc()
		return err
	}
	metrics.EventsDispatched.WithLabelValues(string(env.EventType), "ok").Inc()
	return nil
}
