package lua

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"coach-event-generator/internal/core"
	"coach-event-generator/internal/logger"
	"coach-event-generator/internal/protocol"

	lua "github.com/yuin/gopher-lua"
)

type fakeGenerator struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (g *fakeGenerator) Send(_ context.Context, in core.Intent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.lines = append(g.lines, protocol.Encode(in).Line())
	return nil
}

func (g *fakeGenerator) SendRandom(ctx context.Context) (core.Intent, error) {
	in := core.Fire{Cabin: 2}
	return in, g.Send(ctx, in)
}

func (g *fakeGenerator) sent() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.lines...)
}

func newTestEngine(t *testing.T, gen Generator) *Engine {
	t.Helper()
	e := NewEngine(gen, t.TempDir(), 10, core.NewEventBus(), logger.Nop())
	t.Cleanup(e.Stop)
	return e
}

func run(e *Engine, code string) error {
	return e.execute(context.Background(), "test", func(L *lua.LState) error { return L.DoString(code) })
}

func TestScriptSendsCommands(t *testing.T) {
	gen := &fakeGenerator{}
	e := newTestEngine(t, gen)

	err := run(e, `
		light(0, true)
		light(1, "OFF")
		temp(2, 22)
		emergency(3)
		fire(7)
		power_low()
		chain_pull()
		status()
		send("LIGHT 9 ON")
		assert(random_event() == "FIRE 2")
	`)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}

	want := []string{
		"LIGHT 0 ON", "LIGHT 1 OFF", "TEMP 2 22", "EMERGENCY 3", "FIRE 7",
		"POWER LOW", "CHAIN PULL", "STATUS", "LIGHT 9 ON", "FIRE 2",
	}
	if got := gen.sent(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestScriptRejectsBadArguments(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"cabin too high", "light(10, true)", "cabin out of range"},
		{"negative cabin", "fire(-1)", "cabin out of range"},
		{"temperature too low", "temp(0, 17)", "temperature out of range"},
		{"light state", `light(0, "maybe")`, "ON"},
		{"unknown line", `send("DANCE 1")`, "unknown command"},
		{"line out of range", `send("EMERGENCY 10")`, "cabin out of range"},
		{"negative sleep", "sleep(-5)", "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			e := newTestEngine(t, gen)

			err := run(e, tt.code)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("got %v, want error containing %q", err, tt.want)
			}
			if len(gen.sent()) != 0 {
				t.Fatalf("rejected call still sent %q", gen.sent())
			}
		})
	}
}

func TestScriptSeesLinkFailures(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("link down")}
	e := newTestEngine(t, gen)

	err := run(e, `
		local ok, msg = light(0, true)
		assert(ok == false, "expected failure")
		assert(msg == "link down", msg)
		local line, rmsg = random_event()
		assert(line == nil and rmsg == "link down")
		assert(status() == false)
	`)
	if err != nil {
		t.Fatalf("script should keep running after a failed send: %v", err)
	}
}

func TestCancelledScriptStopsQuietly(t *testing.T) {
	gen := &fakeGenerator{}
	e := newTestEngine(t, gen)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- e.execute(ctx, "loop", func(L *lua.LState) error {
			return L.DoString(`while not should_stop() do status() sleep(5) end`)
		})
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cancellation is not a failure: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("script did not stop")
	}
	if len(gen.sent()) == 0 {
		t.Fatal("loop never ran")
	}
}

func TestExecutePublishesScriptState(t *testing.T) {
	bus := core.NewEventBus()
	sub := bus.Subscribe(core.ScriptChangedEvent)
	e := NewEngine(&fakeGenerator{}, t.TempDir(), 10, bus, logger.Nop())
	defer e.Stop()

	if err := run(e, "status()"); err != nil {
		t.Fatal(err)
	}

	var running []string
	for i := 0; i < 2; i++ {
		ev := <-sub
		running = append(running, ev.Payload.(core.RunPayload).Running)
	}
	if !reflect.DeepEqual(running, []string{"test", ""}) {
		t.Fatalf("got %q", running)
	}
}

func TestRunScriptFromFile(t *testing.T) {
	gen := &fakeGenerator{}
	bus := core.NewEventBus()
	sub := bus.Subscribe(core.ScriptChangedEvent)
	dir := t.TempDir()
	e := NewEngine(gen, dir, 10, bus, logger.Nop())
	defer e.Stop()

	if err := e.SaveScriptCode("drill.lua", `emergency(4) chain_pull()`); err != nil {
		t.Fatal(err)
	}
	if err := e.RunScript("drill.lua"); err != nil {
		t.Fatal(err)
	}

	// started, then finished
	for i := 0; i < 2; i++ {
		select {
		case <-sub:
		case <-time.After(2 * time.Second):
			t.Fatal("script did not finish")
		}
	}
	if got := gen.sent(); !reflect.DeepEqual(got, []string{"EMERGENCY 4", "CHAIN PULL"}) {
		t.Fatalf("got %q", got)
	}
}

func TestScriptFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scenarios")
	e := NewEngine(&fakeGenerator{}, dir, 10, nil, logger.Nop())
	defer e.Stop()

	list, err := e.GetScriptList()
	if err != nil || len(list) != 0 {
		t.Fatalf("missing dir should list nothing: %v %v", list, err)
	}

	for _, name := range []string{"b.lua", "a.lua"} {
		if err := e.SaveScriptCode(name, "status()"); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	list, _ = e.GetScriptList()
	if !reflect.DeepEqual(list, []string{"a.lua", "b.lua"}) {
		t.Fatalf("list = %q", list)
	}

	code, err := e.GetScriptCode("a.lua")
	if err != nil || code != "status()" {
		t.Fatalf("code = %q, %v", code, err)
	}

	if err := e.DeleteScript("a.lua"); err != nil {
		t.Fatal(err)
	}
	list, _ = e.GetScriptList()
	if !reflect.DeepEqual(list, []string{"b.lua"}) {
		t.Fatalf("after delete: %q", list)
	}
}

func TestScriptNamesAreSanitized(t *testing.T) {
	e := NewEngine(&fakeGenerator{}, t.TempDir(), 10, nil, logger.Nop())
	defer e.Stop()

	for _, name := range []string{"../evil.lua", "dir/x.lua", "script.txt", ".lua", ""} {
		if err := e.RunScript(name); err == nil {
			t.Errorf("%q accepted", name)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	e := NewEngine(&fakeGenerator{}, t.TempDir(), 10, nil, logger.Nop())
	e.Stop()
	e.Stop()

	if err := e.ExecuteString("status()"); !errors.Is(err, ErrEngineStopped) {
		t.Fatalf("got %v, want ErrEngineStopped", err)
	}
	e.StopCurrentScript()
}
