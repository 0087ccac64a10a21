// Package lua runs user-written scenario scripts against the generator.
package lua

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"coach-event-generator/internal/core"
	"coach-event-generator/internal/logger"

	lua "github.com/yuin/gopher-lua"
)

// ErrEngineStopped is returned for requests made after Stop.
var ErrEngineStopped = errors.New("script engine stopped")

// Generator is what scripts drive. Each call is one queued command.
type Generator interface {
	Send(ctx context.Context, in core.Intent) error
	SendRandom(ctx context.Context) (core.Intent, error)
}

type cmdType int

const (
	cmdRunFile cmdType = iota
	cmdRunString
	cmdStop
)

type engineCmd struct {
	kind cmdType
	name string
	code string
}

// Engine runs at most one script at a time on a single worker goroutine.
// Starting a script stops the one currently running.
type Engine struct {
	gen        Generator
	scriptsDir string
	cabins     int
	eventBus   *core.EventBus
	log        *logger.Logger

	cmdChan  chan engineCmd
	mu       sync.Mutex
	stopped  bool
	loopDone chan struct{}
}

// NewEngine creates an engine and starts its worker.
func NewEngine(gen Generator, scriptsDir string, cabins int, eb *core.EventBus, log *logger.Logger) *Engine {
	e := &Engine{
		gen:        gen,
		scriptsDir: scriptsDir,
		cabins:     cabins,
		eventBus:   eb,
		log:        log,
		cmdChan:    make(chan engineCmd, 10),
		loopDone:   make(chan struct{}),
	}

	go e.runLoop()

	return e
}

func (e *Engine) runLoop() {
	defer close(e.loopDone)

	var currentCancel context.CancelFunc
	var scriptDone chan struct{}

	stopCurrent := func() {
		if currentCancel == nil {
			return
		}
		currentCancel()
		select {
		case <-scriptDone:
		case <-time.After(2 * time.Second):
			e.log.Warnw("[Lua] Timeout waiting for script to stop")
		}
		currentCancel = nil
		scriptDone = nil
	}
	defer stopCurrent()

	for cmd := range e.cmdChan {
		stopCurrent()

		if cmd.kind == cmdStop {
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		currentCancel = cancel
		scriptDone = make(chan struct{})

		go func(cmd engineCmd, ctx context.Context, done chan struct{}) {
			defer close(done)
			var err error
			switch cmd.kind {
			case cmdRunFile:
				err = e.execute(ctx, cmd.name, func(L *lua.LState) error { return L.DoFile(cmd.code) })
			case cmdRunString:
				err = e.execute(ctx, cmd.name, func(L *lua.LState) error { return L.DoString(cmd.code) })
			}
			if err != nil {
				e.log.Warnw("[Lua] Script failed", "script", cmd.name, "err", err)
			}
		}(cmd, ctx, scriptDone)
	}
}

func (e *Engine) enqueue(cmd engineCmd) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrEngineStopped
	}
	select {
	case e.cmdChan <- cmd:
		return nil
	default:
		return errors.New("script engine busy")
	}
}

// RunScript starts the named script from the scripts directory.
func (e *Engine) RunScript(name string) error {
	path, err := e.GetScriptPath(name)
	if err != nil {
		return err
	}
	return e.enqueue(engineCmd{kind: cmdRunFile, name: name, code: path})
}

// ExecuteString runs a one-off chunk of Lua.
func (e *Engine) ExecuteString(code string) error {
	return e.enqueue(engineCmd{kind: cmdRunString, name: "inline", code: code})
}

// StopCurrentScript cancels the running script, if any.
func (e *Engine) StopCurrentScript() {
	if err := e.enqueue(engineCmd{kind: cmdStop}); err != nil {
		e.log.Debugw("[Lua] Could not queue stop", "err", err)
	}
}

// Stop cancels any running script and shuts the worker down.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.cmdChan)
	e.mu.Unlock()

	<-e.loopDone
}

// execute runs one script in a fresh state bound to ctx.
func (e *Engine) execute(ctx context.Context, name string, executor func(*lua.LState) error) error {
	e.log.Infow("[Lua] Starting script", "script", name)
	e.publish(name)

	defer func() {
		e.log.Infow("[Lua] Script finished", "script", name)
		e.publish("")
	}()

	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)
	e.registerGoFunctions(L, ctx)

	if err := executor(L); err != nil {
		if ctx.Err() != nil {
			e.log.Infow("[Lua] Script cancelled", "script", name)
			return nil
		}
		return fmt.Errorf("script '%s': %w", name, err)
	}
	return nil
}

func (e *Engine) publish(running string) {
	if e.eventBus == nil {
		return
	}
	e.eventBus.Publish(core.Event{
		Type:    core.ScriptChangedEvent,
		Payload: core.RunPayload{Running: running},
	})
}
