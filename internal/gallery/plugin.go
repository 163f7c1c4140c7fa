// Package gallery implements the built-in thumbnail viewer plugin.
package gallery

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luminaview/lumina/internal/scanner"
	"github.com/luminaview/lumina/pkg/sdk"
)

// SharedResourceKey is where the plugin publishes its current resource
// config in the shared-data store, for other plugins to pick up.
const SharedResourceKey = "gallery:resources"

var (
	_ sdk.Plugin           = (*Plugin)(nil)
	_ sdk.Configurable     = (*Plugin)(nil)
	_ sdk.FrontendProvider = (*Plugin)(nil)
	_ sdk.APIProvider      = (*Plugin)(nil)
)

type state struct {
	viewMode      string
	thumbnailSize int
	showLabels    bool
	currentIndex  int
	currentDir    string
}

// Plugin holds its state behind its own lock, independent from the
// registry's, so internal bookkeeping never blocks registry-wide queries.
type Plugin struct {
	desc sdk.Descriptor

	mu    sync.Mutex
	state state
	ctx   *sdk.Context
}

// New creates the gallery plugin with its default view settings.
func New() *Plugin {
	return &Plugin{
		desc: sdk.Descriptor{
			ID:          "gallery",
			Name:        "Gallery",
			Version:     "0.1.0",
			Description: "Flexible thumbnail and popup viewer",
			Author:      "Lumina",
		},
		state: state{
			viewMode:      "grid",
			thumbnailSize: 150,
			showLabels:    true,
		},
	}
}

func (p *Plugin) ID() string                 { return p.desc.ID }
func (p *Plugin) Descriptor() sdk.Descriptor { return p.desc }

func (p *Plugin) Initialize(ctx *sdk.Context) error {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
	p.emit("gallery:initialized")
	return nil
}

func (p *Plugin) Activate() error {
	p.emit("gallery:activated")
	return nil
}

func (p *Plugin) Deactivate() error {
	p.emit("gallery:deactivated")
	return nil
}

// emit publishes a lifecycle marker; handler failures are not the plugin's
// problem.
func (p *Plugin) emit(eventType string) {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	if ctx == nil {
		return
	}
	_ = ctx.Bus().PublishFrom(p.desc.ID, eventType, map[string]any{
		"timestamp": time.Now().Unix(),
	})
}

func (p *Plugin) Config() (map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]any{
		"viewMode":         p.state.viewMode,
		"thumbnailSize":    p.state.thumbnailSize,
		"showLabels":       p.state.showLabels,
		"currentIndex":     p.state.currentIndex,
		"currentDirectory": p.state.currentDir,
	}, nil
}

func (p *Plugin) UpdateConfig(cfg map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if mode, ok := cfg["viewMode"].(string); ok {
		p.state.viewMode = mode
	}
	if size, ok := intValue(cfg["thumbnailSize"]); ok {
		p.state.thumbnailSize = size
	}
	if labels, ok := cfg["showLabels"].(bool); ok {
		p.state.showLabels = labels
	}
	if dir, ok := cfg["currentDirectory"].(string); ok {
		p.state.currentDir = dir
	}
	return nil
}

func (p *Plugin) APIHandlers() []sdk.NamedHandler {
	return []sdk.NamedHandler{
		{Name: "set_thumbnail_size", Handler: p.handleSetThumbnailSize},
		{Name: "set_view_mode", Handler: p.handleSetViewMode},
		{Name: "toggle_labels", Handler: p.handleToggleLabels},
		{Name: "set_directory", Handler: p.handleSetDirectory},
	}
}

func (p *Plugin) handleSetThumbnailSize(args map[string]any) (map[string]any, error) {
	size, ok := intValue(args["size"])
	if !ok {
		return nil, errors.New("invalid size parameter")
	}
	if size < 50 {
		size = 50
	}
	if size > 300 {
		size = 300
	}
	p.mu.Lock()
	p.state.thumbnailSize = size
	p.mu.Unlock()
	return map[string]any{"success": true, "size": size}, nil
}

func (p *Plugin) handleSetViewMode(args map[string]any) (map[string]any, error) {
	mode, ok := args["mode"].(string)
	if !ok {
		return nil, errors.New("invalid mode parameter")
	}
	if mode != "grid" && mode != "list" && mode != "detail" {
		return nil, fmt.Errorf("invalid view mode: %s", mode)
	}
	p.mu.Lock()
	p.state.viewMode = mode
	p.mu.Unlock()
	return map[string]any{"success": true}, nil
}

func (p *Plugin) handleToggleLabels(map[string]any) (map[string]any, error) {
	p.mu.Lock()
	p.state.showLabels = !p.state.showLabels
	show := p.state.showLabels
	p.mu.Unlock()
	return map[string]any{"success": true, "showLabels": show}, nil
}

func (p *Plugin) handleSetDirectory(args map[string]any) (map[string]any, error) {
	dir, ok := args["path"].(string)
	if !ok || dir == "" {
		return nil, errors.New("invalid path parameter")
	}

	p.mu.Lock()
	p.state.currentDir = dir
	p.state.currentIndex = 0
	ctx := p.ctx
	p.mu.Unlock()

	// Publish the directory as a resource config so other plugins can
	// resolve the same image set.
	if ctx != nil {
		ctx.SetSharedData(SharedResourceKey, scanner.Config{
			ID:      "gallery-current",
			Name:    "Gallery Current Directory",
			Filters: scanner.Filter{Include: []string{dir}},
		})
	}
	return map[string]any{"success": true}, nil
}

// intValue accepts both native ints and the float64 values JSON decoding
// produces.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
