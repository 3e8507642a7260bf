package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type listener struct{ name string }

func TestEventBusRegisterRejectsDuplicates(t *testing.T) {
	bus := NewEventBus()
	l := &listener{"a"}

	assert.True(t, bus.Register(EVENT_CODE_BACKEND_CHANGED, l, func(EventContext) bool { return false }))
	assert.False(t, bus.Register(EVENT_CODE_BACKEND_CHANGED, l, func(EventContext) bool { return false }))
	assert.Equal(t, 1, bus.Count(EVENT_CODE_BACKEND_CHANGED))

	// same listener on another code is fine
	assert.True(t, bus.Register(EVENT_CODE_VR_SERVICE_CHANGED, l, func(EventContext) bool { return false }))
}

func TestEventBusFireOrderAndHandled(t *testing.T) {
	bus := NewEventBus()
	var calls []string

	a, b, c := &listener{"a"}, &listener{"b"}, &listener{"c"}
	bus.Register(EVENT_CODE_RESIZED, a, func(ctx EventContext) bool {
		calls = append(calls, "a")
		return false
	})
	bus.Register(EVENT_CODE_RESIZED, b, func(ctx EventContext) bool {
		calls = append(calls, "b")
		return true
	})
	bus.Register(EVENT_CODE_RESIZED, c, func(ctx EventContext) bool {
		calls = append(calls, "c")
		return false
	})

	handled := bus.Fire(EVENT_CODE_RESIZED, &SystemEvent{WindowWidth: 10, WindowHeight: 10})
	assert.True(t, handled)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestEventBusUnregister(t *testing.T) {
	bus := NewEventBus()
	a, b := &listener{"a"}, &listener{"b"}
	fired := 0
	cb := func(EventContext) bool { fired++; return false }

	bus.Register(EVENT_CODE_TECHNIQUE_RELOADED, a, cb)
	bus.Register(EVENT_CODE_TECHNIQUE_RELOADED, b, cb)

	assert.True(t, bus.Unregister(EVENT_CODE_TECHNIQUE_RELOADED, a))
	assert.False(t, bus.Unregister(EVENT_CODE_TECHNIQUE_RELOADED, a))
	assert.False(t, bus.IsRegistered(EVENT_CODE_TECHNIQUE_RELOADED, a))
	assert.True(t, bus.IsRegistered(EVENT_CODE_TECHNIQUE_RELOADED, b))

	bus.Fire(EVENT_CODE_TECHNIQUE_RELOADED, "blur")
	assert.Equal(t, 1, fired)
}

func TestEventBusHandlerMayUnregisterItself(t *testing.T) {
	bus := NewEventBus()
	a := &listener{"a"}
	fired := 0
	bus.Register(EVENT_CODE_BACKEND_CHANGED, a, func(EventContext) bool {
		fired++
		bus.Unregister(EVENT_CODE_BACKEND_CHANGED, a)
		return false
	})

	bus.Fire(EVENT_CODE_BACKEND_CHANGED, nil)
	bus.Fire(EVENT_CODE_BACKEND_CHANGED, nil)
	assert.Equal(t, 1, fired)
}

func TestEventBusesAreIsolated(t *testing.T) {
	first, second := NewEventBus(), NewEventBus()
	fired := false
	first.Register(EVENT_CODE_BACKEND_CHANGED, &listener{}, func(EventContext) bool { fired = true; return false })

	second.Fire(EVENT_CODE_BACKEND_CHANGED, nil)
	assert.False(t, fired)
}

func TestInputFiresOnChangeOnly(t *testing.T) {
	bus := NewEventBus()
	in := NewInput(bus)
	var pressed []KeyCode
	bus.Register(EVENT_CODE_KEY_PRESSED, in, func(ctx EventContext) bool {
		pressed = append(pressed, ctx.Data.(*KeyEvent).KeyCode)
		return false
	})

	in.ProcessKey(KEY_V, true)
	in.ProcessKey(KEY_V, true)
	assert.Equal(t, []KeyCode{KEY_V}, pressed)
	assert.True(t, in.IsKeyDown(KEY_V))

	in.Update()
	in.ProcessKey(KEY_V, false)
	assert.True(t, in.KeyReleased(KEY_V))
}

func TestMetricsFPS(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < 70; i++ {
		m.Update(1.0 / 60.0)
	}
	assert.InDelta(t, 60, m.FPS(), 1)
	assert.InDelta(t, 16.66, m.FrameTime(), 0.1)
	assert.Equal(t, uint64(70), m.FrameNumber())
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLogLevel("DEBUG"))
	assert.Equal(t, WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, InfoLevel, ParseLogLevel("nonsense"))
}
