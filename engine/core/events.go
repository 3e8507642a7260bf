package core

import "sync"

// EventContext carries the code of the fired event and an optional payload.
type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Keyboard key pressed.
	/* Context usage:
	 * key := context.Data.(*KeyEvent)
	 */
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	// Keyboard key released.
	/* Context usage:
	 * key := context.Data.(*KeyEvent)
	 */
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * se := context.Data.(*SystemEvent)
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// The active rendering backend was replaced.
	/* Context usage:
	 * previous and current backends are passed as the sender and Data.
	 */
	EVENT_CODE_BACKEND_CHANGED SystemEventCode = 0x10

	// A VR service was attached, detached or replaced.
	EVENT_CODE_VR_SERVICE_CHANGED SystemEventCode = 0x11

	// A technique was recompiled from disk.
	/* Context usage:
	 * name := context.Data.(string)
	 */
	EVENT_CODE_TECHNIQUE_RELOADED SystemEventCode = 0x12

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type KeyEvent struct {
	KeyCode KeyCode
	Pressed bool
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

// Should return true if handled.
type FnOnEvent func(context EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus is an owned registry of subscribers. Every engine context holds its
// own bus, so two contexts never see each other's notifications.
type EventBus struct {
	mu         sync.Mutex
	registered map[SystemEventCode][]*registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[SystemEventCode][]*registeredEvent),
	}
}

/**
 * Register to listen for when events are sent with the provided code. Events with duplicate
 * listeners will not be registered again and will cause this to return false.
 * @param code The event code to listen for.
 * @param listener A pointer to a listener instance.
 * @param onEvent The callback to be invoked when the event code is fired.
 * @returns true if the event is successfully registered; otherwise false.
 */
func (b *EventBus) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if onEvent == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.registered[code] {
		if e.listener == listener {
			LogDebug("listener already registered for event code %d", code)
			return false
		}
	}
	b.registered[code] = append(b.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

/**
 * Unregister from listening for when events are sent with the provided code. If no matching
 * registration is found, this function returns false.
 */
func (b *EventBus) Unregister(code SystemEventCode, listener interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// IsRegistered reports whether the listener currently subscribes to code.
func (b *EventBus) IsRegistered(code SystemEventCode, listener interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.registered[code] {
		if e.listener == listener {
			return true
		}
	}
	return false
}

// Count returns the number of subscribers for code.
func (b *EventBus) Count(code SystemEventCode) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.registered[code])
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 * Callbacks run on the caller's goroutine, outside the bus lock, so a handler may
 * register or unregister listeners while being notified.
 * @returns true if handled, otherwise false.
 */
func (b *EventBus) Fire(code SystemEventCode, data interface{}) bool {
	b.mu.Lock()
	events := make([]*registeredEvent, len(b.registered[code]))
	copy(events, b.registered[code])
	b.mu.Unlock()

	context := EventContext{Type: code, Data: data}
	for _, e := range events {
		if e.callback(context) {
			return true
		}
	}
	return false
}

// Clear drops every subscription.
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registered = make(map[SystemEventCode][]*registeredEvent)
}
