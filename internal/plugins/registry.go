// Package plugins owns every plugin instance and drives the lifecycle state
// machine: Registered -> Initialized -> Active -> Inactive, with Error as a
// terminal state recorded when a lifecycle callback fails.
package plugins

import (
	"fmt"
	"sync"

	"github.com/luminaview/lumina/pkg/sdk"
	"go.uber.org/zap"
)

type entry struct {
	plugin sdk.Plugin
	state  State
	err    string   // non-empty iff state == StateError
	deps   []string // reserved, always empty today
	flag   string   // feature flag gating this plugin, empty when unflagged
}

// Registry is the single owner of all plugin instances. The set of enabled
// feature flags is fixed at construction and immutable for the process's
// lifetime. Bus events are published only after the registry lock is
// released, so handlers may query the registry without deadlocking.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	bus      sdk.Bus
	ctx      *sdk.Context
	features map[string]struct{}
	log      *zap.Logger

	pathsMu        sync.Mutex
	discoveryPaths []string
}

// New creates a registry with the given enabled feature flags and a fresh
// shared context bound to bus.
func New(bus sdk.Bus, log *zap.Logger, features []string) *Registry {
	set := make(map[string]struct{}, len(features))
	for _, f := range features {
		set[f] = struct{}{}
	}
	return &Registry{
		entries:  make(map[string]*entry),
		bus:      bus,
		ctx:      sdk.NewContext(bus),
		features: set,
		log:      log,
	}
}

// Context returns the shared context handed to plugins at initialize time.
func (r *Registry) Context() *sdk.Context { return r.ctx }

func (r *Registry) featureEnabled(flag string) bool {
	if flag == "" {
		return true
	}
	_, ok := r.features[flag]
	return ok
}

// lookup returns the entry for id, enforcing the feature gate. Callers must
// hold r.mu.
func (r *Registry) lookup(id string) (*entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("plugin %q: %w", id, ErrNotFound)
	}
	if !r.featureEnabled(e.flag) {
		return nil, fmt.Errorf("plugin %q gated by flag %q: %w", id, e.flag, ErrFeatureDisabled)
	}
	return e, nil
}

// Register inserts a plugin in Registered state. A non-empty featureFlag
// must be in the enabled set or the registration is rejected.
func (r *Registry) Register(p sdk.Plugin, featureFlag string) error {
	id := p.ID()
	if !r.featureEnabled(featureFlag) {
		return fmt.Errorf("plugin %q gated by flag %q: %w", id, featureFlag, ErrFeatureDisabled)
	}

	r.mu.Lock()
	if _, ok := r.entries[id]; ok {
		r.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", id, ErrAlreadyExists)
	}
	r.entries[id] = &entry{
		plugin: p,
		state:  StateRegistered,
		flag:   featureFlag,
	}
	r.mu.Unlock()

	_ = r.bus.Publish("plugin:registered", map[string]any{"plugin_id": id})
	r.log.Info("plugin registered",
		zap.String("plugin", id),
		zap.String("version", p.Descriptor().Version),
	)
	return nil
}

// Initialize runs the plugin's Initialize callback. Already Initialized or
// Active plugins are a successful no-op; an Error-state plugin cannot be
// initialized.
func (r *Registry) Initialize(id string) error {
	deps, err := r.dependencies(id)
	if err != nil {
		return err
	}
	for _, dep := range deps {
		if err := r.Initialize(dep); err != nil {
			return fmt.Errorf("dependency %q of plugin %q: %w", dep, id, ErrDependencyNotFound)
		}
	}

	r.mu.Lock()
	e, err := r.lookup(id)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	switch e.state {
	case StateInitialized, StateActive:
		r.mu.Unlock()
		return nil
	case StateError:
		r.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", id, ErrErrorState)
	}
	callErr := e.plugin.Initialize(r.ctx)
	if callErr != nil {
		e.state = StateError
		e.err = callErr.Error()
	} else {
		e.state = StateInitialized
		e.err = ""
	}
	r.mu.Unlock()

	if callErr != nil {
		r.publishError(id, callErr.Error(), "initialize")
		r.log.Error("plugin initialize failed", zap.String("plugin", id), zap.Error(callErr))
		return fmt.Errorf("plugin %q: %w: %v", id, ErrInitialization, callErr)
	}
	_ = r.bus.Publish("plugin:initialized", map[string]any{"plugin_id": id})
	r.log.Info("plugin initialized", zap.String("plugin", id))
	return nil
}

// Activate runs the plugin's Activate callback, initializing first when the
// plugin is still only Registered. An already Active plugin is a successful
// no-op; an Error-state plugin cannot be activated and the stored message is
// surfaced.
func (r *Registry) Activate(id string) error {
	st, err := r.State(id)
	if err != nil {
		return err
	}
	switch st {
	case StateActive:
		return nil
	case StateError:
		msg, _ := r.PluginError(id)
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Errorf("plugin %q: %w: %s", id, ErrErrorState, msg)
	case StateRegistered:
		if err := r.Initialize(id); err != nil {
			return err
		}
	}

	r.mu.Lock()
	e, err := r.lookup(id)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	callErr := e.plugin.Activate()
	if callErr != nil {
		e.state = StateError
		e.err = callErr.Error()
	} else {
		e.state = StateActive
		e.err = ""
	}
	r.mu.Unlock()

	if callErr != nil {
		r.publishError(id, callErr.Error(), "activate")
		r.log.Error("plugin activate failed", zap.String("plugin", id), zap.Error(callErr))
		return fmt.Errorf("failed to activate plugin %q: %v", id, callErr)
	}
	_ = r.bus.Publish("plugin:activated", map[string]any{"plugin_id": id})
	r.log.Info("plugin activated", zap.String("plugin", id))
	return nil
}

// Deactivate runs the plugin's Deactivate callback. Anything but an Active
// plugin is a successful no-op and the callback is not invoked.
func (r *Registry) Deactivate(id string) error {
	st, err := r.State(id)
	if err != nil {
		return err
	}
	if st != StateActive {
		return nil
	}

	r.mu.Lock()
	e, err := r.lookup(id)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	callErr := e.plugin.Deactivate()
	if callErr != nil {
		e.state = StateError
		e.err = callErr.Error()
	} else {
		e.state = StateInactive
		e.err = ""
	}
	r.mu.Unlock()

	if callErr != nil {
		r.publishError(id, callErr.Error(), "deactivate")
		r.log.Error("plugin deactivate failed", zap.String("plugin", id), zap.Error(callErr))
		return fmt.Errorf("failed to deactivate plugin %q: %v", id, callErr)
	}
	_ = r.bus.Publish("plugin:deactivated", map[string]any{"plugin_id": id})
	r.log.Info("plugin deactivated", zap.String("plugin", id))
	return nil
}

// Unregister removes the plugin's entry, deactivating it first when Active.
func (r *Registry) Unregister(id string) error {
	st, err := r.State(id)
	if err != nil {
		return err
	}
	if st == StateActive {
		if err := r.Deactivate(id); err != nil {
			return err
		}
	}

	r.mu.Lock()
	if _, ok := r.entries[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", id, ErrNotFound)
	}
	delete(r.entries, id)
	r.mu.Unlock()

	_ = r.bus.Publish("plugin:unregistered", map[string]any{"plugin_id": id})
	r.log.Info("plugin unregistered", zap.String("plugin", id))
	return nil
}

// State returns the plugin's current lifecycle state.
func (r *Registry) State(id string) (State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	return e.state, nil
}

// PluginError returns the recorded error message, empty unless the plugin
// is in Error state.
func (r *Registry) PluginError(id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.lookup(id)
	if err != nil {
		return "", err
	}
	return e.err, nil
}

func (r *Registry) dependencies(id string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), e.deps...), nil
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// IDs returns every registered plugin id.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// ActiveIDs returns the ids of all Active plugins.
func (r *Registry) ActiveIDs() []string {
	return r.IDsInState(StateActive)
}

// IDsInState returns the ids of all plugins in the given state.
func (r *Registry) IDsInState(st State) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, e := range r.entries {
		if e.state == st {
			ids = append(ids, id)
		}
	}
	return ids
}

// Descriptor returns the plugin's metadata.
func (r *Registry) Descriptor(id string) (sdk.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.lookup(id)
	if err != nil {
		return sdk.Descriptor{}, err
	}
	return e.plugin.Descriptor(), nil
}

// Descriptors returns the metadata of every registered plugin.
func (r *Registry) Descriptors() []sdk.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descs := make([]sdk.Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		descs = append(descs, e.plugin.Descriptor())
	}
	return descs
}

// Config returns the plugin's configuration, an empty object for plugins
// without one.
func (r *Registry) Config(id string) (map[string]any, error) {
	r.mu.RLock()
	e, err := r.lookup(id)
	if err != nil {
		r.mu.RUnlock()
		return nil, err
	}
	c, ok := e.plugin.(sdk.Configurable)
	if !ok {
		r.mu.RUnlock()
		return map[string]any{}, nil
	}
	cfg, cfgErr := c.Config()
	r.mu.RUnlock()
	if cfgErr != nil {
		return nil, fmt.Errorf("failed to get config of plugin %q: %v", id, cfgErr)
	}
	return cfg, nil
}

// UpdateConfig forwards a configuration update to the plugin, a no-op for
// plugins without configuration.
func (r *Registry) UpdateConfig(id string, cfg map[string]any) error {
	r.mu.Lock()
	e, err := r.lookup(id)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	c, ok := e.plugin.(sdk.Configurable)
	if !ok {
		r.mu.Unlock()
		return nil
	}
	updErr := c.UpdateConfig(cfg)
	r.mu.Unlock()
	if updErr != nil {
		return fmt.Errorf("failed to update config of plugin %q: %v", id, updErr)
	}
	return nil
}

// FrontendCode returns the plugin's static front-end asset, empty when the
// plugin ships none.
func (r *Registry) FrontendCode(id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.lookup(id)
	if err != nil {
		return "", err
	}
	fp, ok := e.plugin.(sdk.FrontendProvider)
	if !ok {
		return "", nil
	}
	return fp.FrontendCode(), nil
}

// CallHandler routes an externally originated call to the named entry point
// of an Active plugin. The handler's result or error is returned verbatim.
func (r *Registry) CallHandler(id, name string, args map[string]any) (map[string]any, error) {
	r.mu.RLock()
	e, err := r.lookup(id)
	if err != nil {
		r.mu.RUnlock()
		return nil, err
	}
	if e.state != StateActive {
		r.mu.RUnlock()
		return nil, fmt.Errorf("plugin %q is not active", id)
	}
	p := e.plugin
	r.mu.RUnlock()

	ap, ok := p.(sdk.APIProvider)
	if !ok {
		return nil, fmt.Errorf("plugin %q exposes no API handlers", id)
	}
	for _, h := range ap.APIHandlers() {
		if h.Name == name {
			return h.Handler(args)
		}
	}
	return nil, fmt.Errorf("plugin %q has no handler %q", id, name)
}

// Shutdown deactivates every Active plugin. Called at process exit.
func (r *Registry) Shutdown() {
	for _, id := range r.ActiveIDs() {
		if err := r.Deactivate(id); err != nil {
			r.log.Warn("plugin deactivate failed during shutdown",
				zap.String("plugin", id),
				zap.Error(err),
			)
		}
	}
}

// AddDiscoveryPath records a directory to search for external plugins.
func (r *Registry) AddDiscoveryPath(path string) {
	r.pathsMu.Lock()
	defer r.pathsMu.Unlock()
	for _, p := range r.discoveryPaths {
		if p == path {
			return
		}
	}
	r.discoveryPaths = append(r.discoveryPaths, path)
}

// Discover scans the recorded paths for loadable plugins. Loading plugins
// from external libraries is not implemented, so every scan yields an empty
// list; built-in plugins are registered in code instead.
func (r *Registry) Discover() []string {
	r.pathsMu.Lock()
	defer r.pathsMu.Unlock()
	for _, p := range r.discoveryPaths {
		r.log.Debug("scanning discovery path", zap.String("path", p))
	}
	return nil
}

func (r *Registry) publishError(id, msg, operation string) {
	_ = r.bus.Publish("plugin:error", map[string]any{
		"plugin_id": id,
		"error":     msg,
		"operation": operation,
	})
}
