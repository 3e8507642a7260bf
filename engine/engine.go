package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/platform"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/headless"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-fx/engine/renderer/postprocess"
	"github.com/spaghettifunk/anima-fx/engine/renderer/views"
	"github.com/spaghettifunk/anima-fx/engine/renderer/vulkan"
	"github.com/spaghettifunk/anima-fx/engine/renderer/webgpu"
	"github.com/spaghettifunk/anima-fx/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	config        *EngineConfig
	running       atomic.Bool
	isSuspended   bool
	platform      *platform.Platform
	device        renderer.Device
	systemManager *systems.SystemManager
	input         *core.Input
	width         uint32
	height        uint32
	clock         *core.Clock
	metrics       *core.Metrics
	lastTime      float64

	scene *views.Scene
	frame renderer.Frame
	// passTypes remembers the type each configured pass was built from.
	passTypes map[string]string
}

func New(g *Game) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("func New - game is nil")
	}
	if g.Config == nil {
		g.Config = DefaultEngineConfig()
	}
	if err := g.Config.Validate(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	core.SetLogLevel(core.ParseLogLevel(g.Config.Application.LogLevel))

	e := &Engine{
		currentStage: EngineStageBooting,
		gameInstance: g,
		config:       g.Config,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		width:        g.Config.Application.StartWidth,
		height:       g.Config.Application.StartHeight,
		passTypes:    make(map[string]string),
	}
	g.Engine = e
	if g.FnBoot != nil {
		if err := g.FnBoot(); err != nil {
			return nil, err
		}
	}
	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageBootComplete {
		return core.ErrAlreadyInitialized
	}
	e.currentStage = EngineStageInitializing
	app := e.config.Application

	device := e.gameInstance.Device
	if device == nil && !strings.EqualFold(e.config.Renderer.Device, DEVICE_HEADLESS) {
		e.platform = platform.New()
		if err := e.platform.Startup(app.Name, app.StartPosX, app.StartPosY, app.StartWidth, app.StartHeight); err != nil {
			return err
		}
		e.platform.OnResize = e.onWindowResized
		if w, h := e.platform.FramebufferSize(); w > 0 && h > 0 {
			e.width, e.height = w, h
		}
	}
	if device == nil {
		var err error
		if device, err = e.createDevice(); err != nil {
			return err
		}
	}
	e.device = device
	core.LogInfo("rendering with the %s device at %dx%d", device.Name(), e.width, e.height)

	sm, err := systems.NewSystemManager(device, e.config.systemManagerConfig())
	if err != nil {
		return err
	}
	e.systemManager = sm
	ctx := sm.RendererSystem().Context()

	e.input = core.NewInput(ctx.Events())
	if e.platform != nil {
		e.platform.OnKey = e.input.ProcessKey
	}
	ctx.Events().Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	ctx.Events().Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)

	if err := sm.Initialize(); err != nil {
		return err
	}
	pipeline := sm.RendererSystem().Pipeline()
	for _, pc := range e.config.Passes {
		if err := e.addPass(pc); err != nil {
			return err
		}
	}
	// A pass that cannot initialize is disabled; the rest still run.
	if err := pipeline.Initialize(); err != nil {
		core.LogWarn("some passes were disabled: %s", err)
	}
	if e.config.Renderer.VR {
		ctx.SetVRService(renderer.NewSideBySide())
	}

	e.scene = views.NewScene()
	e.gameInstance.SystemManager = sm
	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) createDevice() (renderer.Device, error) {
	r := e.config.Renderer
	switch strings.ToLower(r.Device) {
	case DEVICE_VULKAN:
		d, err := vulkan.New(vulkan.Config{
			Width:    e.width,
			Height:   e.height,
			Format:   r.PixelFormat,
			AppName:  e.config.Application.Name,
			Debug:    r.Debug,
			ProcAddr: e.platform.VulkanProcAddr(),
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	case DEVICE_WEBGPU:
		d, err := webgpu.New(webgpu.Config{
			Width:   e.width,
			Height:  e.height,
			Format:  r.PixelFormat,
			Surface: e.platform.SurfaceDescriptor(),
			VSync:   r.VSync,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return headless.New(headless.Config{
			Width:   e.width,
			Height:  e.height,
			Format:  r.PixelFormat,
			Samples: r.Samples,
		}), nil
	}
}

// addPass builds a pass from its configuration and adds it to the pipeline.
func (e *Engine) addPass(pc metadata.PassConfig) error {
	pass, err := postprocess.NewPassFromConfig(pc)
	if err != nil {
		return err
	}
	e.bindFont(pass)
	if err := e.systemManager.RendererSystem().Pipeline().Add(pass); err != nil {
		return err
	}
	e.passTypes[pass.Name()] = pc.Type
	return nil
}

func (e *Engine) bindFont(pass postprocess.Pass) {
	overlay, ok := pass.(*postprocess.DebugOverlay)
	if !ok || overlay.Font != nil {
		return
	}
	name := overlay.FontName
	if name == "" && len(e.config.Fonts) > 0 {
		name = e.config.Fonts[0].Name
	}
	overlay.Font = e.systemManager.FontSystem().Acquire(name)
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return core.ErrNotInitialized
	}
	e.currentStage = EngineStageRunning
	e.running.Store(true)
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	maxFrames := e.config.Application.MaxFrames
	for e.running.Load() {
		if e.platform != nil && !e.platform.PumpMessages() {
			e.running.Store(false)
			break
		}
		if e.isSuspended {
			e.platform.Sleep(100)
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("game update failed, shutting down: %s", err)
				e.running.Store(false)
				break
			}
		}
		if err := e.RenderFrame(delta); err != nil {
			core.LogError("frame %d failed: %s", e.frame.Number, err)
			if errors.Is(err, core.ErrDisposed) {
				e.running.Store(false)
				break
			}
		}

		// Input state is copied last so this frame's transitions were visible
		// to the update and render above.
		e.input.Update()
		e.lastTime = currentTime

		if maxFrames > 0 && e.metrics.FrameNumber() >= maxFrames {
			e.running.Store(false)
		}
	}
	return nil
}

/**
 * @brief Draws one frame: queued backend, VR and technique reload requests
 * are applied, the game fills the scene, the active view draws it, the
 * post-process pipeline runs over it and the device ends the frame.
 */
func (e *Engine) RenderFrame(delta float64) error {
	if e.currentStage != EngineStageInitialized && e.currentStage != EngineStageRunning {
		return core.ErrNotInitialized
	}
	start := time.Now()
	rs := e.systemManager.RendererSystem()

	// Job results land before requests are applied, so a preload finishing
	// this frame is visible to a backend swap requested this frame.
	e.systemManager.Update()
	rs.Context().Drain()

	e.frame.Number = e.metrics.FrameNumber()
	e.frame.DeltaTime = delta
	e.frame.Time = e.clock.Elapsed()
	e.frame.FPS = e.metrics.FPS()
	e.frame.PerEye = false
	e.frame.Eye = 0

	if e.gameInstance.FnRender != nil {
		if err := e.gameInstance.FnRender(&e.frame, e.scene); err != nil {
			return err
		}
	}
	err := rs.DrawFrame(&e.frame, e.systemManager.RenderViewSystem().Active(), e.scene)
	e.metrics.Update(time.Since(start).Seconds())
	return err
}

// Quit stops Run after the current frame. Safe to call from any goroutine.
func (e *Engine) Quit() {
	e.running.Store(false)
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.running.Store(false)

	var errs error
	if e.gameInstance.FnShutdown != nil {
		errs = errors.Join(errs, e.gameInstance.FnShutdown())
	}
	if e.systemManager != nil {
		ctx := e.systemManager.RendererSystem().Context()
		ctx.Events().Unregister(core.EVENT_CODE_APPLICATION_QUIT, e)
		ctx.Events().Unregister(core.EVENT_CODE_KEY_PRESSED, e)
		errs = errors.Join(errs, e.systemManager.Shutdown())
	} else if e.device != nil {
		errs = errors.Join(errs, e.device.Shutdown())
	}
	if e.platform != nil {
		errs = errors.Join(errs, e.platform.Shutdown())
	}
	return errs
}

// GetFramebufferSize returns the width and height (in this order) of the
// application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Config() *EngineConfig {
	return e.config
}

func (e *Engine) Device() renderer.Device {
	return e.device
}

func (e *Engine) Context() *renderer.Context {
	return e.systemManager.RendererSystem().Context()
}

func (e *Engine) Pipeline() *postprocess.Pipeline {
	return e.systemManager.RendererSystem().Pipeline()
}

func (e *Engine) Input() *core.Input {
	return e.input
}

func (e *Engine) Metrics() *core.Metrics {
	return e.metrics
}

// ActivateBackend queues a swap to the backend of kind for the next frame.
func (e *Engine) ActivateBackend(kind metadata.BackendKind) error {
	return e.systemManager.RenderViewSystem().Activate(kind)
}

// ToggleVR queues attaching the side-by-side VR service, or detaching the
// current one.
func (e *Engine) ToggleVR() error {
	ctx := e.Context()
	if ctx.VRService() != nil {
		return ctx.RequestVRService(nil)
	}
	return ctx.RequestVRService(renderer.NewSideBySide())
}

// TogglePass flips the enabled flag of the pass at index in execution order.
func (e *Engine) TogglePass(index int) (postprocess.Pass, bool) {
	passes := e.Pipeline().Passes()
	if index < 0 || index >= len(passes) {
		return nil, false
	}
	p := passes[index]
	p.SetEnabled(!p.Enabled())
	return p, true
}

/**
 * @brief Re-reads the configuration file and applies what can change while
 * running: the log level, pass tunables, priorities and enabled flags, added
 * and removed passes, the backend and the VR service. The device and the
 * window keep their settings.
 */
func (e *Engine) ReloadConfig() error {
	if e.config.Path() == "" {
		return fmt.Errorf("func ReloadConfig - the configuration was not loaded from a file")
	}
	if e.systemManager == nil {
		return core.ErrNotInitialized
	}
	config, err := LoadEngineConfig(e.config.Path())
	if err != nil {
		return err
	}
	if !strings.EqualFold(config.Renderer.Device, e.config.Renderer.Device) {
		core.LogWarn("device changes need a restart, keeping `%s`", e.config.Renderer.Device)
	}
	core.SetLogLevel(core.ParseLogLevel(config.Application.LogLevel))

	pipeline := e.Pipeline()
	var errs []error
	keep := make(map[string]struct{}, len(config.Passes))
	for _, pc := range config.Passes {
		name := pc.InstanceName()
		keep[name] = struct{}{}
		if pass := pipeline.Get(name); pass != nil && e.passTypes[name] == pc.Type {
			errs = append(errs, applyPassConfig(pass, pc))
			e.bindFont(pass)
			continue
		}
		pipeline.Remove(name)
		errs = append(errs, e.addPass(pc))
	}
	for _, p := range pipeline.Passes() {
		if _, ok := keep[p.Name()]; !ok {
			pipeline.Remove(p.Name())
			delete(e.passTypes, p.Name())
		}
	}
	pipeline.Sort()

	if config.Renderer.Backend != e.config.Renderer.Backend {
		errs = append(errs, e.ActivateBackend(config.Renderer.Backend))
	}
	if config.Renderer.VR != (e.Context().VRService() != nil) {
		errs = append(errs, e.ToggleVR())
	}
	config.Renderer.Device = e.config.Renderer.Device
	e.config = config
	e.gameInstance.Config = config
	core.LogInfo("configuration reloaded from %s", config.Path())
	return errors.Join(errs...)
}

func applyPassConfig(pass postprocess.Pass, pc metadata.PassConfig) error {
	keys := make([]string, 0, len(pc.Params))
	for k := range pc.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var errs []error
	for _, k := range keys {
		errs = append(errs, pass.SetParam(k, pc.Params[k]))
	}
	pass.SetPriority(pc.Priority)
	pass.SetEnabled(pc.IsEnabled())
	return errors.Join(errs...)
}

func (e *Engine) onEvent(context core.EventContext) bool {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.running.Store(false)
	}
	return false
}

func (e *Engine) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	if ke.KeyCode == core.KEY_ESCAPE {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.Context().Events().Fire(core.EVENT_CODE_APPLICATION_QUIT, nil)
		// Block anything else from processing this.
		return true
	}
	return false
}

func (e *Engine) onWindowResized(width, height uint32) {
	if width == e.width && height == e.height {
		return
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	if err := e.systemManager.RendererSystem().OnResize(width, height); err != nil {
		core.LogError(err.Error())
	}
}
