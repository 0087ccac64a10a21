package lua

import (
	"context"
	"time"

	"coach-event-generator/internal/core"
	"coach-event-generator/internal/protocol"

	lua "github.com/yuin/gopher-lua"
)

// registerGoFunctions exposes the generator to a Lua state. Every command
// function returns true, or false and a message when the link refused it.
// Bad arguments raise a Lua error and end the script.
func (e *Engine) registerGoFunctions(L *lua.LState, ctx context.Context) {
	L.SetGlobal("light", L.NewFunction(func(L *lua.LState) int {
		cabin := e.checkCabin(L, 1)
		return e.send(L, ctx, core.Light{Cabin: cabin, State: checkLightState(L, 2)})
	}))
	L.SetGlobal("temp", L.NewFunction(func(L *lua.LState) int {
		cabin := e.checkCabin(L, 1)
		value := L.CheckInt(2)
		if err := core.CheckTemperature(value); err != nil {
			L.ArgError(2, err.Error())
		}
		return e.send(L, ctx, core.Temperature{Cabin: cabin, Value: value})
	}))
	L.SetGlobal("emergency", L.NewFunction(func(L *lua.LState) int {
		return e.send(L, ctx, core.Emergency{Cabin: e.checkCabin(L, 1)})
	}))
	L.SetGlobal("fire", L.NewFunction(func(L *lua.LState) int {
		return e.send(L, ctx, core.Fire{Cabin: e.checkCabin(L, 1)})
	}))
	L.SetGlobal("power_low", L.NewFunction(func(L *lua.LState) int {
		return e.send(L, ctx, core.PowerLow{})
	}))
	L.SetGlobal("chain_pull", L.NewFunction(func(L *lua.LState) int {
		return e.send(L, ctx, core.ChainPull{})
	}))
	L.SetGlobal("status", L.NewFunction(func(L *lua.LState) int {
		return e.send(L, ctx, core.StatusRequest{})
	}))
	L.SetGlobal("send", L.NewFunction(func(L *lua.LState) int {
		in, err := protocol.Parse(L.CheckString(1))
		if err == nil {
			err = core.Validate(in, e.cabins)
		}
		if err != nil {
			L.ArgError(1, err.Error())
		}
		return e.send(L, ctx, in)
	}))
	L.SetGlobal("random_event", L.NewFunction(func(L *lua.LState) int {
		in, err := e.gen.SendRandom(ctx)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LString(protocol.Encode(in).Line()))
		return 1
	}))

	L.SetGlobal("sleep", L.NewFunction(func(L *lua.LState) int {
		ms := L.CheckInt(1)
		if ms < 0 {
			L.ArgError(1, "duration must not be negative")
		}
		t := time.NewTimer(time.Duration(ms) * time.Millisecond)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
		return 0
	}))
	L.SetGlobal("should_stop", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(ctx.Err() != nil))
		return 1
	}))
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		e.log.Infow("[Lua] print", "msg", L.ToString(1))
		return 0
	}))
}

func (e *Engine) send(L *lua.LState, ctx context.Context, in core.Intent) int {
	if err := e.gen.Send(ctx, in); err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

func (e *Engine) checkCabin(L *lua.LState, n int) core.CabinID {
	c := core.CabinID(L.CheckInt(n))
	if err := core.CheckCabin(c, e.cabins); err != nil {
		L.ArgError(n, err.Error())
	}
	return c
}

// checkLightState accepts a boolean or the strings "ON" and "OFF".
func checkLightState(L *lua.LState, n int) core.LightState {
	switch v := L.Get(n).(type) {
	case lua.LBool:
		return core.LightState(v)
	case lua.LString:
		switch string(v) {
		case "ON":
			return core.LightOn
		case "OFF":
			return core.LightOff
		}
	}
	L.ArgError(n, "expected boolean or \"ON\"/\"OFF\"")
	return core.LightOff
}
