// Package bus implements the Input Fusion Bus (C4): a synchronous,
// single-threaded demultiplexer that merges events from independently
// registered sources and fans them out to subscribers in registration
// order. It is not a queue — there is no buffering and no background
// goroutine.
package bus

import (
	"sync"

	"github.com/sonetlumiere/vj/pkg/event"
	"github.com/sonetlumiere/vj/pkg/logger"
)

// Handler receives one event. A handler that panics or is otherwise unable
// to process the event must not block delivery to sibling subscribers; the
// bus recovers from handler panics and logs them.
type Handler func(event.Event)

type subscription struct {
	name    string
	handler Handler
}

// Bus is the Input Fusion Bus. The zero value is not usable; use New.
type Bus struct {
	mu sync.Mutex

	sources map[string]struct{}

	byKind   map[event.Kind][]subscription
	wildcard []subscription
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{
		sources: make(map[string]struct{}),
		byKind:  make(map[event.Kind][]subscription),
	}
}

// RegisterSource records that a named input source is live. Source
// lifetime is owned by the caller; RegisterSource is bookkeeping only and
// does not itself wire any delivery path.
func (b *Bus) RegisterSource(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources[name] = struct{}{}
}

// UnregisterSource stops tracking a source. It does not free any resources
// owned by the caller, and does not remove subscriptions registered under
// that name — callers that subscribed under a source name should call
// Unsubscribe themselves.
func (b *Bus) UnregisterSource(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sources, name)
}

// Subscribe registers handler to receive events of the given kind, in
// registration order relative to other subscribers of the same kind. name
// identifies the subscriber for later Unsubscribe calls.
func (b *Bus) Subscribe(kind event.Kind, name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byKind[kind] = append(b.byKind[kind], subscription{name: name, handler: handler})
}

// SubscribeAll registers a wildcard handler invoked for every event kind,
// after kind-specific subscribers have run.
func (b *Bus) SubscribeAll(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = append(b.wildcard, subscription{name: name, handler: handler})
}

// Unsubscribe removes every subscription (kind-specific and wildcard)
// registered under name.
func (b *Bus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for kind, subs := range b.byKind {
		b.byKind[kind] = removeByName(subs, name)
	}
	b.wildcard = removeByName(b.wildcard, name)
}

func removeByName(subs []subscription, name string) []subscription {
	out := subs[:0]
	for _, s := range subs {
		if s.name != name {
			out = append(out, s)
		}
	}
	return out
}

// Publish fans ev out synchronously, in registration order, to the
// kind-specific subscribers first and then the wildcard subscribers. A
// handler that panics is recovered and logged; it does not stop delivery to
// the remaining subscribers.
func (b *Bus) Publish(ev event.Event) {
	b.mu.Lock()
	kindSubs := append([]subscription(nil), b.byKind[ev.Kind]...)
	wildcardSubs := append([]subscription(nil), b.wildcard...)
	b.mu.Unlock()

	for _, s := range kindSubs {
		dispatch(s, ev)
	}
	for _, s := range wildcardSubs {
		dispatch(s, ev)
	}
}

func dispatch(s subscription, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.GetLogger().Error("bus handler panicked", "subscriber", s.name, "kind", ev.Kind.String(), "panic", r)
		}
	}()
	s.handler(ev)
}
