package plugins

import (
	"errors"
	"strings"
	"testing"

	"github.com/luminaview/lumina/internal/events"
	"github.com/luminaview/lumina/pkg/sdk"
	"go.uber.org/zap"
)

// testPlugin is a minimal plugin with configurable callback failures.
type testPlugin struct {
	id            string
	initErr       error
	activateErr   error
	deactivateErr error

	initCalls       int
	activateCalls   int
	deactivateCalls int
	ctx             *sdk.Context
}

func newTestPlugin(id string) *testPlugin {
	return &testPlugin{id: id}
}

func (p *testPlugin) ID() string { return p.id }

func (p *testPlugin) Descriptor() sdk.Descriptor {
	return sdk.Descriptor{
		ID:          p.id,
		Name:        "Test Plugin " + p.id,
		Version:     "1.0.0",
		Description: "test plugin",
		Author:      "tests",
	}
}

func (p *testPlugin) Initialize(ctx *sdk.Context) error {
	p.initCalls++
	p.ctx = ctx
	return p.initErr
}

func (p *testPlugin) Activate() error {
	p.activateCalls++
	return p.activateErr
}

func (p *testPlugin) Deactivate() error {
	p.deactivateCalls++
	return p.deactivateErr
}

// configPlugin adds the Configurable and APIProvider capabilities.
type configPlugin struct {
	testPlugin
	cfg map[string]any
}

func newConfigPlugin(id string) *configPlugin {
	return &configPlugin{
		testPlugin: testPlugin{id: id},
		cfg:        map[string]any{"mode": "grid"},
	}
}

func (p *configPlugin) Config() (map[string]any, error) { return p.cfg, nil }

func (p *configPlugin) UpdateConfig(cfg map[string]any) error {
	for k, v := range cfg {
		p.cfg[k] = v
	}
	return nil
}

func (p *configPlugin) APIHandlers() []sdk.NamedHandler {
	return []sdk.NamedHandler{
		{
			Name: "echo",
			Handler: func(args map[string]any) (map[string]any, error) {
				return map[string]any{"echo": args["msg"]}, nil
			},
		},
	}
}

func newRegistry(t *testing.T, features ...string) (*Registry, *events.Bus) {
	t.Helper()
	bus := events.NewBus(zap.NewNop())
	return New(bus, zap.NewNop(), features), bus
}

func TestRegisterDuplicateID(t *testing.T) {
	r, _ := newRegistry(t)

	if err := r.Register(newTestPlugin("p"), ""); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := r.Register(newTestPlugin("p"), "")
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second Register = %v, want ErrAlreadyExists", err)
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

func TestRegisterEmitsEvent(t *testing.T) {
	r, bus := newRegistry(t)

	var gotID string
	bus.Subscribe("plugin:registered", func(p sdk.EventPayload) error {
		data := p.Data.(map[string]any)
		gotID = data["plugin_id"].(string)
		return nil
	})

	if err := r.Register(newTestPlugin("p"), ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if gotID != "p" {
		t.Errorf("plugin:registered carried id %q, want p", gotID)
	}
}

func TestActivateAutoInitializes(t *testing.T) {
	r, bus := newRegistry(t)

	var order []string
	bus.SubscribeAll(func(p sdk.EventPayload) error {
		order = append(order, p.Type)
		return nil
	})

	p := newTestPlugin("p")
	if err := r.Register(p, ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Activate("p"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	st, err := r.State("p")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if st != StateActive {
		t.Errorf("state = %v, want active", st)
	}
	if p.initCalls != 1 || p.activateCalls != 1 {
		t.Errorf("init=%d activate=%d, want 1/1", p.initCalls, p.activateCalls)
	}

	want := []string{"plugin:registered", "plugin:initialized", "plugin:activated"}
	if len(order) != len(want) {
		t.Fatalf("events = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("events = %v, want %v", order, want)
		}
	}
}

func TestActivateIsIdempotent(t *testing.T) {
	r, _ := newRegistry(t)

	p := newTestPlugin("p")
	_ = r.Register(p, "")
	if err := r.Activate("p"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := r.Activate("p"); err != nil {
		t.Fatalf("second Activate: %v", err)
	}
	if p.activateCalls != 1 {
		t.Errorf("Activate callback ran %d times, want 1", p.activateCalls)
	}
}

func TestDeactivateNonActiveIsNoOp(t *testing.T) {
	r, _ := newRegistry(t)

	p := newTestPlugin("p")
	_ = r.Register(p, "")

	if err := r.Deactivate("p"); err != nil {
		t.Fatalf("Deactivate on registered plugin: %v", err)
	}
	if p.deactivateCalls != 0 {
		t.Errorf("Deactivate callback ran %d times, want 0", p.deactivateCalls)
	}
	st, _ := r.State("p")
	if st != StateRegistered {
		t.Errorf("state = %v, want registered", st)
	}
}

func TestReactivation(t *testing.T) {
	r, _ := newRegistry(t)

	p := newTestPlugin("p")
	_ = r.Register(p, "")
	_ = r.Activate("p")
	if err := r.Deactivate("p"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	st, _ := r.State("p")
	if st != StateInactive {
		t.Fatalf("state after deactivate = %v, want inactive", st)
	}

	if err := r.Activate("p"); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	st, _ = r.State("p")
	if st != StateActive {
		t.Errorf("state after reactivate = %v, want active", st)
	}
	if p.activateCalls != 2 {
		t.Errorf("Activate callback ran %d times, want 2", p.activateCalls)
	}
}

func TestUnregisterActiveDeactivatesFirst(t *testing.T) {
	r, _ := newRegistry(t)

	p := newTestPlugin("p")
	_ = r.Register(p, "")
	_ = r.Activate("p")

	if err := r.Unregister("p"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if p.deactivateCalls != 1 {
		t.Errorf("Deactivate callback ran %d times, want 1", p.deactivateCalls)
	}
	if _, err := r.State("p"); !errors.Is(err, ErrNotFound) {
		t.Errorf("State after unregister = %v, want ErrNotFound", err)
	}
	if r.Count() != 0 {
		t.Errorf("Count = %d, want 0", r.Count())
	}
}

func TestUnregisterUnknownPlugin(t *testing.T) {
	r, _ := newRegistry(t)
	if err := r.Unregister("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Unregister = %v, want ErrNotFound", err)
	}
}

func TestInitializeFailureEntersErrorState(t *testing.T) {
	r, bus := newRegistry(t)

	var errEvent map[string]any
	bus.Subscribe("plugin:error", func(p sdk.EventPayload) error {
		errEvent = p.Data.(map[string]any)
		return nil
	})

	p := newTestPlugin("p")
	p.initErr = errors.New("disk on fire")
	_ = r.Register(p, "")

	err := r.Initialize("p")
	if !errors.Is(err, ErrInitialization) {
		t.Fatalf("Initialize = %v, want ErrInitialization", err)
	}

	st, _ := r.State("p")
	if st != StateError {
		t.Errorf("state = %v, want error", st)
	}
	msg, _ := r.PluginError("p")
	if msg != "disk on fire" {
		t.Errorf("stored error = %q", msg)
	}
	if errEvent == nil {
		t.Fatal("plugin:error not published")
	}
	if errEvent["operation"] != "initialize" {
		t.Errorf("operation = %v, want initialize", errEvent["operation"])
	}
	if errEvent["error"] != "disk on fire" {
		t.Errorf("event error = %v", errEvent["error"])
	}
}

func TestActivateErrorStateSurfacesStoredMessage(t *testing.T) {
	r, _ := newRegistry(t)

	p := newTestPlugin("p")
	p.initErr = errors.New("disk on fire")
	_ = r.Register(p, "")
	_ = r.Initialize("p")

	err := r.Activate("p")
	if !errors.Is(err, ErrErrorState) {
		t.Fatalf("Activate = %v, want ErrErrorState", err)
	}
	if !strings.Contains(err.Error(), "disk on fire") {
		t.Errorf("error does not surface stored message: %q", err.Error())
	}
	if p.activateCalls != 0 {
		t.Errorf("Activate callback ran on an error-state plugin")
	}
}

func TestActivateFailureEntersErrorState(t *testing.T) {
	r, bus := newRegistry(t)

	var operation string
	bus.Subscribe("plugin:error", func(p sdk.EventPayload) error {
		operation = p.Data.(map[string]any)["operation"].(string)
		return nil
	})

	p := newTestPlugin("p")
	p.activateErr = errors.New("no gpu")
	_ = r.Register(p, "")

	if err := r.Activate("p"); err == nil {
		t.Fatal("Activate should fail")
	}
	st, _ := r.State("p")
	if st != StateError {
		t.Errorf("state = %v, want error", st)
	}
	if operation != "activate" {
		t.Errorf("plugin:error operation = %q, want activate", operation)
	}
}

func TestDeactivateFailureEntersErrorState(t *testing.T) {
	r, _ := newRegistry(t)

	p := newTestPlugin("p")
	p.deactivateErr = errors.New("stuck")
	_ = r.Register(p, "")
	_ = r.Activate("p")

	if err := r.Deactivate("p"); err == nil {
		t.Fatal("Deactivate should fail")
	}
	st, _ := r.State("p")
	if st != StateError {
		t.Errorf("state = %v, want error", st)
	}
	msg, _ := r.PluginError("p")
	if msg != "stuck" {
		t.Errorf("stored error = %q", msg)
	}
}

func TestInitializeErrorStateRejected(t *testing.T) {
	r, _ := newRegistry(t)

	p := newTestPlugin("p")
	p.initErr = errors.New("nope")
	_ = r.Register(p, "")
	_ = r.Initialize("p")

	p.initErr = nil // the plugin would succeed now, but Error is terminal
	if err := r.Initialize("p"); !errors.Is(err, ErrErrorState) {
		t.Errorf("Initialize = %v, want ErrErrorState", err)
	}
}

func TestFeatureFlagGating(t *testing.T) {
	r, _ := newRegistry(t, "gallery")

	if err := r.Register(newTestPlugin("g"), "gallery"); err != nil {
		t.Fatalf("Register with enabled flag: %v", err)
	}

	err := r.Register(newTestPlugin("f"), "findme")
	if !errors.Is(err, ErrFeatureDisabled) {
		t.Fatalf("Register with disabled flag = %v, want ErrFeatureDisabled", err)
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

func TestUnflaggedPluginAlwaysAllowed(t *testing.T) {
	r, _ := newRegistry(t) // no features enabled at all
	if err := r.Register(newTestPlugin("p"), ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func TestQueries(t *testing.T) {
	r, _ := newRegistry(t)

	_ = r.Register(newTestPlugin("a"), "")
	_ = r.Register(newTestPlugin("b"), "")
	_ = r.Register(newTestPlugin("c"), "")
	_ = r.Activate("b")

	if r.Count() != 3 {
		t.Errorf("Count = %d, want 3", r.Count())
	}
	if got := len(r.IDs()); got != 3 {
		t.Errorf("len(IDs) = %d, want 3", got)
	}
	active := r.ActiveIDs()
	if len(active) != 1 || active[0] != "b" {
		t.Errorf("ActiveIDs = %v, want [b]", active)
	}
	registered := r.IDsInState(StateRegistered)
	if len(registered) != 2 {
		t.Errorf("IDsInState(registered) = %v, want 2 entries", registered)
	}

	desc, err := r.Descriptor("a")
	if err != nil {
		t.Fatalf("Descriptor: %v", err)
	}
	if desc.ID != "a" {
		t.Errorf("descriptor id = %q", desc.ID)
	}
	if got := len(r.Descriptors()); got != 3 {
		t.Errorf("len(Descriptors) = %d, want 3", got)
	}

	if _, err := r.State("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("State(ghost) = %v, want ErrNotFound", err)
	}
}

func TestConfigDelegation(t *testing.T) {
	r, _ := newRegistry(t)

	_ = r.Register(newConfigPlugin("c"), "")

	cfg, err := r.Config("c")
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if cfg["mode"] != "grid" {
		t.Errorf("config mode = %v, want grid", cfg["mode"])
	}

	if err := r.UpdateConfig("c", map[string]any{"mode": "list"}); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	cfg, _ = r.Config("c")
	if cfg["mode"] != "list" {
		t.Errorf("config mode after update = %v, want list", cfg["mode"])
	}
}

func TestConfigDefaultsForPlainPlugin(t *testing.T) {
	r, _ := newRegistry(t)

	_ = r.Register(newTestPlugin("p"), "")

	cfg, err := r.Config("p")
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if len(cfg) != 0 {
		t.Errorf("config = %v, want empty object", cfg)
	}
	if err := r.UpdateConfig("p", map[string]any{"x": 1}); err != nil {
		t.Errorf("UpdateConfig on plain plugin: %v", err)
	}
}

func TestCallHandler(t *testing.T) {
	r, _ := newRegistry(t)

	_ = r.Register(newConfigPlugin("c"), "")
	_ = r.Activate("c")

	out, err := r.CallHandler("c", "echo", map[string]any{"msg": "hi"})
	if err != nil {
		t.Fatalf("CallHandler: %v", err)
	}
	if out["echo"] != "hi" {
		t.Errorf("result = %v", out)
	}

	if _, err := r.CallHandler("c", "missing", nil); err == nil {
		t.Error("unknown handler name should fail")
	}
}

func TestCallHandlerRequiresActive(t *testing.T) {
	r, _ := newRegistry(t)

	_ = r.Register(newConfigPlugin("c"), "")

	if _, err := r.CallHandler("c", "echo", nil); err == nil {
		t.Error("CallHandler on a non-active plugin should fail")
	}
}

func TestSharedContextHandedToPlugins(t *testing.T) {
	r, _ := newRegistry(t)

	a := newTestPlugin("a")
	b := newTestPlugin("b")
	_ = r.Register(a, "")
	_ = r.Register(b, "")
	_ = r.Initialize("a")
	_ = r.Initialize("b")

	if a.ctx == nil || a.ctx != b.ctx {
		t.Fatal("plugins must share the same context instance")
	}

	a.ctx.SetSharedData("who", "a")
	v, ok, err := sdk.SharedData[string](b.ctx, "who")
	if err != nil || !ok || v != "a" {
		t.Errorf("shared data not visible across plugins: %q %v %v", v, ok, err)
	}
}

func TestShutdownDeactivatesActivePlugins(t *testing.T) {
	r, _ := newRegistry(t)

	a := newTestPlugin("a")
	b := newTestPlugin("b")
	_ = r.Register(a, "")
	_ = r.Register(b, "")
	_ = r.Activate("a")

	r.Shutdown()

	if a.deactivateCalls != 1 {
		t.Errorf("active plugin not deactivated on shutdown")
	}
	if b.deactivateCalls != 0 {
		t.Errorf("inactive plugin deactivated on shutdown")
	}
}

func TestDiscoverIsEmptyStub(t *testing.T) {
	r, _ := newRegistry(t)

	r.AddDiscoveryPath("/tmp/plugins")
	r.AddDiscoveryPath("/tmp/plugins") // duplicates are ignored

	if got := r.Discover(); len(got) != 0 {
		t.Errorf("Discover = %v, want empty", got)
	}
}
