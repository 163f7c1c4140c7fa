// Package sdk provides the public types every Lumina plugin is built
// against: the plugin contract, the event bus interface and the shared
// plugin context.
package sdk

// Descriptor is the immutable identity and metadata of a plugin.
type Descriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Author      string `json:"author"`
}

// Plugin is implemented by every plugin variant. Lifecycle callbacks are
// invoked while the registry holds the plugin's entry exclusively, so they
// must be fast and non-blocking.
type Plugin interface {
	// ID returns the plugin's unique identifier.
	ID() string
	// Descriptor returns the plugin's metadata.
	Descriptor() Descriptor
	// Initialize hands the plugin its shared context. The context stays
	// valid for the plugin's whole life.
	Initialize(ctx *Context) error
	// Activate turns the plugin on.
	Activate() error
	// Deactivate turns the plugin off. It may be activated again later.
	Deactivate() error
}

// Configurable is implemented by plugins that expose runtime configuration.
// The registry reports an empty config and treats updates as no-ops for
// plugins without it.
type Configurable interface {
	Config() (map[string]any, error)
	UpdateConfig(cfg map[string]any) error
}

// FrontendProvider is implemented by plugins that ship a static front-end
// asset.
type FrontendProvider interface {
	FrontendCode() string
}

// NamedHandler is one externally callable entry point of a plugin.
type NamedHandler struct {
	Name    string
	Handler func(args map[string]any) (map[string]any, error)
}

// APIProvider is implemented by plugins that expose named entry points for
// the command layer to route front-end calls into.
type APIProvider interface {
	APIHandlers() []NamedHandler
}
