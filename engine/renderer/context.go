package renderer

import (
	"errors"
	"sync"

	"github.com/spaghettifunk/anima-fx/engine/containers"
	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// Backend is the lighting model currently drawing the scene.
type Backend interface {
	Kind() metadata.BackendKind
	Name() string
}

// BackendChange is the payload of EVENT_CODE_BACKEND_CHANGED.
type BackendChange struct {
	Previous Backend
	Current  Backend
}

// VRServiceChange is the payload of EVENT_CODE_VR_SERVICE_CHANGED.
type VRServiceChange struct {
	Previous VRService
	Current  VRService
}

type requestKind uint8

const (
	requestBackend requestKind = iota
	requestVRService
	requestTechniqueReload
	requestResize
)

type request struct {
	kind      requestKind
	backend   Backend
	vr        VRService
	technique string
	width     uint32
	height    uint32
}

const DEFAULT_REQUEST_QUEUE_SIZE int = 64

type ContextConfig struct {
	/** @brief How many pending requests can wait for the next Drain. */
	RequestQueueSize int
}

/**
 * @brief Context is the engine state every rendering subsystem shares: the
 * device, the active backend and VR service, the subscriber lists and the
 * queue of pending requests.
 *
 * Requests may come from any goroutine. They are applied, and subscribers are
 * notified, only by Drain on the render thread, so every strategy rebuild or
 * buffer recreation completes before the next frame draws.
 */
type Context struct {
	device Device
	bus    *core.EventBus

	mu       sync.Mutex
	requests *containers.RingQueue[request]

	backend Backend
	vr      VRService
}

func NewContext(device Device, config *ContextConfig) *Context {
	size := DEFAULT_REQUEST_QUEUE_SIZE
	if config != nil && config.RequestQueueSize > 0 {
		size = config.RequestQueueSize
	}
	return &Context{
		device:   device,
		bus:      core.NewEventBus(),
		requests: containers.NewRingQueue[request](size),
	}
}

func (c *Context) Device() Device {
	return c.device
}

// Events exposes the context bus for subsystems that need raw event codes
// (input, quit, resize).
func (c *Context) Events() *core.EventBus {
	return c.bus
}

func (c *Context) Backend() Backend {
	return c.backend
}

func (c *Context) VRService() VRService {
	return c.vr
}

// OutputSize is the resolution offscreen rendering runs at: the VR service's
// per-eye size when one is attached, the back buffer size otherwise.
func (c *Context) OutputSize() (uint32, uint32) {
	back := c.device.BackBuffer()
	if c.vr != nil {
		return c.vr.OutputSize(back)
	}
	return back.Width, back.Height
}

// OutputDesc is OutputSize with the back buffer format and sample count.
func (c *Context) OutputDesc() metadata.BufferDesc {
	desc := c.device.BackBuffer()
	desc.Width, desc.Height = c.OutputSize()
	desc.Name = ""
	return desc
}

func (c *Context) enqueue(r request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requests.Enqueue(r); err != nil {
		if errors.Is(err, containers.ErrQueueFull) {
			return core.ErrRequestQueueFull
		}
		return err
	}
	return nil
}

// RequestBackend schedules a backend swap for the next Drain. Safe to call
// from any goroutine.
func (c *Context) RequestBackend(backend Backend) error {
	return c.enqueue(request{kind: requestBackend, backend: backend})
}

// RequestVRService schedules attaching (or, with nil, detaching) a VR service.
func (c *Context) RequestVRService(vr VRService) error {
	return c.enqueue(request{kind: requestVRService, vr: vr})
}

// RequestTechniqueReload schedules a technique reload notification.
func (c *Context) RequestTechniqueReload(name string) error {
	return c.enqueue(request{kind: requestTechniqueReload, technique: name})
}

// RequestResize schedules a back buffer resize.
func (c *Context) RequestResize(width, height uint32) error {
	return c.enqueue(request{kind: requestResize, width: width, height: height})
}

// Pending returns the number of requests waiting for Drain.
func (c *Context) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests.Len()
}

/**
 * @brief Applies every request queued before the call, in order, notifying
 * subscribers synchronously. Requests queued by subscribers while draining
 * wait for the next Drain. Must be called on the render thread.
 * @returns the number of requests applied.
 */
func (c *Context) Drain() int {
	c.mu.Lock()
	n := c.requests.Len()
	batch := make([]request, 0, n)
	for i := 0; i < n; i++ {
		r, err := c.requests.Dequeue()
		if err != nil {
			break
		}
		batch = append(batch, r)
	}
	c.mu.Unlock()

	for _, r := range batch {
		switch r.kind {
		case requestBackend:
			c.SetBackend(r.backend)
		case requestVRService:
			c.SetVRService(r.vr)
		case requestTechniqueReload:
			c.NotifyTechniqueReloaded(r.technique)
		case requestResize:
			c.Resize(r.width, r.height)
		}
	}
	return len(batch)
}

// SetBackend swaps the backend immediately and notifies subscribers. Setting
// the same backend again still notifies; subscribers are idempotent.
func (c *Context) SetBackend(backend Backend) {
	previous := c.backend
	c.backend = backend
	if backend != nil {
		core.LogDebug("rendering backend set to `%s`", backend.Name())
	}
	c.bus.Fire(core.EVENT_CODE_BACKEND_CHANGED, &BackendChange{Previous: previous, Current: backend})
}

// SetVRService attaches or detaches a VR service immediately and notifies
// subscribers.
func (c *Context) SetVRService(vr VRService) {
	previous := c.vr
	c.vr = vr
	w, h := c.OutputSize()
	core.LogDebug("output size is now %dx%d", w, h)
	c.bus.Fire(core.EVENT_CODE_VR_SERVICE_CHANGED, &VRServiceChange{Previous: previous, Current: vr})
}

func (c *Context) NotifyTechniqueReloaded(name string) {
	c.bus.Fire(core.EVENT_CODE_TECHNIQUE_RELOADED, name)
}

// Resize resizes the device back buffer and notifies subscribers.
func (c *Context) Resize(width, height uint32) {
	if err := c.device.Resize(width, height); err != nil {
		core.LogError("failed to resize the back buffer to %dx%d: %s", width, height, err)
		return
	}
	c.bus.Fire(core.EVENT_CODE_RESIZED, &core.SystemEvent{WindowWidth: width, WindowHeight: height})
}

// OnBackendChanged registers fn for backend swaps. The listener identifies
// the subscription; registering the same listener twice is rejected.
func (c *Context) OnBackendChanged(listener interface{}, fn func(Backend)) bool {
	return c.bus.Register(core.EVENT_CODE_BACKEND_CHANGED, listener, func(ctx core.EventContext) bool {
		change, _ := ctx.Data.(*BackendChange)
		if change == nil {
			fn(nil)
			return false
		}
		fn(change.Current)
		return false
	})
}

// OnVRServiceChanged registers fn for VR attach/detach.
func (c *Context) OnVRServiceChanged(listener interface{}, fn func(VRService)) bool {
	return c.bus.Register(core.EVENT_CODE_VR_SERVICE_CHANGED, listener, func(ctx core.EventContext) bool {
		change, _ := ctx.Data.(*VRServiceChange)
		if change == nil {
			fn(nil)
			return false
		}
		fn(change.Current)
		return false
	})
}

// OnOutputSizeChanged registers fn for anything that changes OutputSize: VR
// changes and back buffer resizes.
func (c *Context) OnOutputSizeChanged(listener interface{}, fn func(width, height uint32)) bool {
	cb := func(core.EventContext) bool {
		w, h := c.OutputSize()
		fn(w, h)
		return false
	}
	ok := c.bus.Register(core.EVENT_CODE_VR_SERVICE_CHANGED, listener, cb)
	if !ok {
		return false
	}
	if !c.bus.Register(core.EVENT_CODE_RESIZED, listener, cb) {
		c.bus.Unregister(core.EVENT_CODE_VR_SERVICE_CHANGED, listener)
		return false
	}
	return true
}

// OnTechniqueReloaded registers fn for technique reloads.
func (c *Context) OnTechniqueReloaded(listener interface{}, fn func(name string)) bool {
	return c.bus.Register(core.EVENT_CODE_TECHNIQUE_RELOADED, listener, func(ctx core.EventContext) bool {
		name, _ := ctx.Data.(string)
		fn(name)
		return false
	})
}

func (c *Context) UnsubscribeBackendChanged(listener interface{}) bool {
	return c.bus.Unregister(core.EVENT_CODE_BACKEND_CHANGED, listener)
}

func (c *Context) UnsubscribeVRServiceChanged(listener interface{}) bool {
	return c.bus.Unregister(core.EVENT_CODE_VR_SERVICE_CHANGED, listener)
}

func (c *Context) UnsubscribeOutputSizeChanged(listener interface{}) bool {
	a := c.bus.Unregister(core.EVENT_CODE_VR_SERVICE_CHANGED, listener)
	b := c.bus.Unregister(core.EVENT_CODE_RESIZED, listener)
	return a || b
}

func (c *Context) UnsubscribeTechniqueReloaded(listener interface{}) bool {
	return c.bus.Unregister(core.EVENT_CODE_TECHNIQUE_RELOADED, listener)
}

// IsSubscribed reports whether listener currently receives backend changes.
func (c *Context) IsSubscribed(listener interface{}) bool {
	return c.bus.IsRegistered(core.EVENT_CODE_BACKEND_CHANGED, listener)
}
