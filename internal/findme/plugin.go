// Package findme implements the built-in image-hunting game plugin.
package findme

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luminaview/lumina/pkg/sdk"
)

var (
	_ sdk.Plugin           = (*Plugin)(nil)
	_ sdk.Configurable     = (*Plugin)(nil)
	_ sdk.FrontendProvider = (*Plugin)(nil)
	_ sdk.APIProvider      = (*Plugin)(nil)
)

type state struct {
	difficulty string
	score      int
	timeLimit  int
	gameState  string // ready, in_progress, finished
}

// Plugin keeps its game state behind its own lock, independent from the
// registry's.
type Plugin struct {
	desc sdk.Descriptor

	mu    sync.Mutex
	state state
	ctx   *sdk.Context
}

// New creates the findme plugin ready for an easy game.
func New() *Plugin {
	return &Plugin{
		desc: sdk.Descriptor{
			ID:          "findme",
			Name:        "FindMe Game",
			Version:     "0.1.0",
			Description: "Find the matching image against the clock",
			Author:      "Lumina",
		},
		state: state{
			difficulty: "easy",
			timeLimit:  60,
			gameState:  "ready",
		},
	}
}

func (p *Plugin) ID() string                 { return p.desc.ID }
func (p *Plugin) Descriptor() sdk.Descriptor { return p.desc }

func (p *Plugin) Initialize(ctx *sdk.Context) error {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
	p.emit("findme:initialized")
	return nil
}

func (p *Plugin) Activate() error {
	p.emit("findme:activated")
	return nil
}

func (p *Plugin) Deactivate() error {
	p.emit("findme:deactivated")
	return nil
}

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
		"difficulty": p.state.difficulty,
		"timeLimit":  p.state.timeLimit,
		"gameState":  p.state.gameState,
	}, nil
}

func (p *Plugin) UpdateConfig(cfg map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := cfg["difficulty"].(string); ok {
		p.state.difficulty = d
	}
	switch t := cfg["timeLimit"].(type) {
	case int:
		p.state.timeLimit = t
	case float64:
		p.state.timeLimit = int(t)
	}
	return nil
}

func (p *Plugin) APIHandlers() []sdk.NamedHandler {
	return []sdk.NamedHandler{
		{Name: "start_game", Handler: p.handleStartGame},
		{Name: "end_game", Handler: p.handleEndGame},
		{Name: "set_difficulty", Handler: p.handleSetDifficulty},
	}
}

func (p *Plugin) handleStartGame(map[string]any) (map[string]any, error) {
	p.mu.Lock()
	p.state.gameState = "in_progress"
	p.state.score = 0
	p.mu.Unlock()
	return map[string]any{"success": true, "message": "Game started"}, nil
}

func (p *Plugin) handleEndGame(map[string]any) (map[string]any, error) {
	p.mu.Lock()
	p.state.gameState = "finished"
	score := p.state.score
	p.mu.Unlock()
	return map[string]any{"success": true, "score": score}, nil
}

func (p *Plugin) handleSetDifficulty(args map[string]any) (map[string]any, error) {
	difficulty, ok := args["difficulty"].(string)
	if !ok {
		return nil, errors.New("no difficulty provided")
	}
	if difficulty != "easy" && difficulty != "medium" && difficulty != "hard" {
		return nil, fmt.Errorf("invalid difficulty: %s", difficulty)
	}
	p.mu.Lock()
	p.state.difficulty = difficulty
	p.mu.Unlock()
	return map[string]any{"success": true, "difficulty": difficulty}, nil
}

const frontendCode = `(function () {
  const plugin = "findme";

  window.lumina.registerPanel(plugin, {
    start() {
      return window.lumina.invoke(plugin, "start_game", {});
    },
    finish() {
      return window.lumina.invoke(plugin, "end_game", {});
    },
    setDifficulty(level) {
      return window.lumina.invoke(plugin, "set_difficulty", { difficulty: level });
    },
  });
})();
`

func (p *Plugin) FrontendCode() string { return frontendCode }
