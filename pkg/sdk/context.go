package sdk

import (
	"fmt"
	"sync"
)

// Context is the shared environment handed to every plugin at initialize
// time. The shared-data store has its own lock, independent from the bus and
// the registry, so shared-data access never contends with lifecycle
// operations.
type Context struct {
	bus Bus

	mu     sync.Mutex
	shared map[string]any
}

// NewContext creates a context bound to the given bus.
func NewContext(bus Bus) *Context {
	return &Context{bus: bus, shared: make(map[string]any)}
}

// Bus returns the process-wide event bus.
func (c *Context) Bus() Bus { return c.bus }

// SetSharedData stores value under key, overwriting any prior value.
func (c *Context) SetSharedData(key string, value any) {
	c.mu.Lock()
	c.shared[key] = value
	c.mu.Unlock()
}

func (c *Context) sharedData(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.shared[key]
	return v, ok
}

// SharedData retrieves the value stored under key as type T. A missing key
// returns ok=false with a nil error. A value of a different type returns an
// error naming the stored type, never a zero value masquerading as data.
func SharedData[T any](c *Context, key string) (T, bool, error) {
	var zero T
	v, ok := c.sharedData(key)
	if !ok {
		return zero, false, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false, fmt.Errorf("shared data %q holds %T, not %T", key, v, zero)
	}
	return typed, true, nil
}
