package sdk

// EventPayload is the unit of delivery on the event bus. Once dispatched it
// must be treated as immutable by handlers.
type EventPayload struct {
	// Type is the event name, e.g. "plugin:activated".
	Type string `json:"event_type"`
	// Data carries arbitrary structured event data.
	Data any `json:"data"`
	// Source identifies the emitting component, empty for anonymous events.
	Source string `json:"source,omitempty"`
	// Target addresses a specific component. Empty means broadcast only.
	Target string `json:"target,omitempty"`
}

// Handler processes a single event. A returned error does not stop delivery
// to other handlers; the bus aggregates failures after the fan-out.
type Handler func(EventPayload) error

// Bus is the publish/subscribe contract shared by the host and plugins.
type Bus interface {
	// Subscribe registers a handler for every event of the given type.
	Subscribe(eventType string, h Handler)
	// SubscribeComponent registers a handler that only fires for events of
	// the given type addressed to componentID.
	SubscribeComponent(componentID, eventType string, h Handler)
	// SubscribeAll registers a handler for every event regardless of type.
	SubscribeAll(h Handler) (unsubscribe func())

	// Publish broadcasts an event with no source or target.
	Publish(eventType string, data any) error
	// PublishFrom broadcasts an event attributed to source.
	PublishFrom(source, eventType string, data any) error
	// PublishTo broadcasts an event and additionally delivers it to the
	// handlers registered for target.
	PublishTo(target, eventType string, data any) error
	// PublishBetween combines PublishFrom and PublishTo.
	PublishBetween(source, target, eventType string, data any) error

	// UnsubscribeComponent drops every handler registered for componentID.
	UnsubscribeComponent(componentID string)
	// ClearAllHandlers drops every registered handler.
	ClearAllHandlers()
}
