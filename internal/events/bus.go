// Package events implements the in-process dispatcher behind sdk.Bus.
package events

import (
	"errors"
	"fmt"
	"sync"

	"github.com/luminaview/lumina/pkg/sdk"
	"go.uber.org/zap"
)

var _ sdk.Bus = (*Bus)(nil)

// Bus routes events to globally subscribed handlers and, for targeted
// events, to the handlers registered for the target component. Handlers are
// snapshotted under the read lock and invoked after it is released, so a
// handler may publish or subscribe reentrantly.
type Bus struct {
	mu        sync.RWMutex
	handlers  map[string][]sdk.Handler            // event type -> global handlers
	component map[string]map[string][]sdk.Handler // component id -> event type -> handlers
	allSubs   []allEntry
	nextID    uint64

	log *zap.Logger
}

type allEntry struct {
	id uint64
	h  sdk.Handler
}

// NewBus creates an empty bus.
func NewBus(log *zap.Logger) *Bus {
	return &Bus{
		handlers:  make(map[string][]sdk.Handler),
		component: make(map[string]map[string][]sdk.Handler),
		log:       log,
	}
}

func (b *Bus) Subscribe(eventType string, h sdk.Handler) {
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
	b.mu.Unlock()
}

func (b *Bus) SubscribeComponent(componentID, eventType string, h sdk.Handler) {
	b.mu.Lock()
	m := b.component[componentID]
	if m == nil {
		m = make(map[string][]sdk.Handler)
		b.component[componentID] = m
	}
	m[eventType] = append(m[eventType], h)
	b.mu.Unlock()
}

// SubscribeAll registers h for every event. The returned function removes
// exactly this registration.
func (b *Bus) SubscribeAll(h sdk.Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.allSubs = append(b.allSubs, allEntry{id: id, h: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, e := range b.allSubs {
			if e.id == id {
				b.allSubs = append(b.allSubs[:i], b.allSubs[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) Publish(eventType string, data any) error {
	return b.dispatch(sdk.EventPayload{Type: eventType, Data: data})
}

func (b *Bus) PublishFrom(source, eventType string, data any) error {
	return b.dispatch(sdk.EventPayload{Type: eventType, Data: data, Source: source})
}

func (b *Bus) PublishTo(target, eventType string, data any) error {
	return b.dispatch(sdk.EventPayload{Type: eventType, Data: data, Target: target})
}

func (b *Bus) PublishBetween(source, target, eventType string, data any) error {
	return b.dispatch(sdk.EventPayload{Type: eventType, Data: data, Source: source, Target: target})
}

func (b *Bus) UnsubscribeComponent(componentID string) {
	b.mu.Lock()
	delete(b.component, componentID)
	b.mu.Unlock()
}

func (b *Bus) ClearAllHandlers() {
	b.mu.Lock()
	b.handlers = make(map[string][]sdk.Handler)
	b.component = make(map[string]map[string][]sdk.Handler)
	b.allSubs = nil
	b.mu.Unlock()
}

// dispatch delivers the payload to every matching handler even when earlier
// ones fail, then returns the joined failures.
func (b *Bus) dispatch(p sdk.EventPayload) error {
	b.mu.RLock()
	global := make([]sdk.Handler, len(b.handlers[p.Type]))
	copy(global, b.handlers[p.Type])
	var targeted []sdk.Handler
	if p.Target != "" {
		if m := b.component[p.Target]; m != nil {
			targeted = make([]sdk.Handler, len(m[p.Type]))
			copy(targeted, m[p.Type])
		}
	}
	all := make([]allEntry, len(b.allSubs))
	copy(all, b.allSubs)
	b.mu.RUnlock()

	var errs []error
	for _, h := range global {
		if err := h(p); err != nil {
			errs = append(errs, fmt.Errorf("global handler: %w", err))
		}
	}
	for _, h := range targeted {
		if err := h(p); err != nil {
			errs = append(errs, fmt.Errorf("component handler for %s: %w", p.Target, err))
		}
	}
	for _, e := range all {
		if err := e.h(p); err != nil {
			errs = append(errs, fmt.Errorf("catch-all handler: %w", err))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	err := errors.Join(errs...)
	b.log.Debug("event dispatched with handler failures",
		zap.String("event_type", p.Type),
		zap.Int("failed", len(errs)),
		zap.Error(err),
	)
	return err
}
