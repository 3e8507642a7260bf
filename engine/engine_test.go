package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/headless"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-fx/engine/renderer/views"
)

const shippedConfig = "../assets/config/engine.toml"

func testConfig(t *testing.T) *EngineConfig {
	t.Helper()
	config, err := LoadEngineConfig(shippedConfig)
	require.NoError(t, err)
	config.Renderer.Device = DEVICE_HEADLESS
	config.Application.StartWidth = 32
	config.Application.StartHeight = 16
	config.Assets.Root = "../assets"
	config.Assets.Watch = false
	return config
}

// newTestEngine boots a headless engine whose scene holds one stone plane.
func newTestEngine(t *testing.T, config *EngineConfig) (*Engine, *headless.Device) {
	t.Helper()
	device := headless.New(headless.Config{
		Width:  config.Application.StartWidth,
		Height: config.Application.StartHeight,
	})
	g := &Game{Config: config, Device: device}
	g.FnRender = func(frame *renderer.Frame, scene *views.Scene) error {
		if len(scene.Renderables) > 0 {
			return nil
		}
		m, err := g.SystemManager.MaterialSystem().Acquire("stone")
		if err != nil {
			return err
		}
		plane, err := g.SystemManager.GeometrySystem().AcquirePlane("floor", -1, -1, 2, 2, 1, 1)
		if err != nil {
			return err
		}
		scene.Add(views.NewRenderable(m, plane))
		return nil
	}

	e, err := New(g)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	t.Cleanup(func() { e.Shutdown() })
	return e, device
}

func drawnTechniques(device *headless.Device) map[string]int {
	out := make(map[string]int)
	for _, d := range device.Draws() {
		out[d.Technique]++
	}
	return out
}

func TestLoadShippedConfig(t *testing.T) {
	config, err := LoadEngineConfig(shippedConfig)
	require.NoError(t, err)

	assert.Equal(t, DEVICE_WEBGPU, config.Renderer.Device)
	assert.Equal(t, metadata.BACKEND_KIND_FORWARD, config.Renderer.Backend)
	assert.Equal(t, shippedConfig, config.Path())
	require.Len(t, config.Fonts, 1)
	assert.Equal(t, "mono", config.Fonts[0].Name)

	types := make([]string, 0, len(config.Passes))
	for _, p := range config.Passes {
		types = append(types, p.Type)
	}
	assert.Equal(t, []string{"ao", "fog", "bloom", "blur", "tonemap", "colorgrade", "antialias", "overlay"}, types)
	assert.False(t, config.Passes[3].IsEnabled())
}

func TestConfigValidation(t *testing.T) {
	config := DefaultEngineConfig()
	config.Renderer.Device = "opengl"
	config.Application.StartWidth = 0
	config.Passes = []metadata.PassConfig{{Type: "blur"}, {Type: "blur"}}

	err := config.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidDimensions)
	assert.Contains(t, err.Error(), "opengl")
	assert.Contains(t, err.Error(), "declared twice")

	_, err = New(&Game{Config: config})
	assert.Error(t, err)
}

func TestLifecycleStages(t *testing.T) {
	config := DefaultEngineConfig()
	config.Assets.Root = "../assets"
	g := &Game{Config: config, Device: headless.New(headless.Config{Width: 8, Height: 8})}
	booted := false
	g.FnBoot = func() error {
		booted = true
		return nil
	}

	e, err := New(g)
	require.NoError(t, err)
	assert.True(t, booted)
	assert.Same(t, e, g.Engine)
	assert.Equal(t, EngineStageBootComplete, e.Stage())
	assert.ErrorIs(t, e.RenderFrame(0), core.ErrNotInitialized)
	assert.ErrorIs(t, e.Run(), core.ErrNotInitialized)

	require.NoError(t, e.Initialize())
	assert.Equal(t, EngineStageInitialized, e.Stage())
	assert.NotNil(t, g.SystemManager)
	assert.ErrorIs(t, e.Initialize(), core.ErrAlreadyInitialized)

	require.NoError(t, e.Shutdown())
	assert.Equal(t, EngineStageShuttingDown, e.Stage())
	assert.NoError(t, e.Shutdown())
}

func TestRenderFrameRunsViewAndPipeline(t *testing.T) {
	e, device := newTestEngine(t, testConfig(t))
	assert.Len(t, e.Pipeline().Passes(), 8)

	require.NoError(t, e.RenderFrame(0.016))
	assert.Equal(t, uint64(1), device.Frames())
	assert.Equal(t, uint64(1), e.Metrics().FrameNumber())

	drawn := drawnTechniques(device)
	for _, name := range []string{"forward_basic", "ao", "fog", "bright_extract", "tonemap", "colorgrade", "fxaa", "present"} {
		assert.Positive(t, drawn[name], name)
	}
	assert.False(t, e.Pipeline().Get("blur").Enabled())

	// every temporary buffer is back in the pool after the frame
	assert.Zero(t, e.systemManager.RendererSystem().Pool().Stats().Active)
}

func TestActivateBackendAppliesNextFrame(t *testing.T) {
	e, device := newTestEngine(t, testConfig(t))
	require.NoError(t, e.RenderFrame(0.016))
	assert.Equal(t, "forward", e.Context().Backend().Name())

	require.NoError(t, e.ActivateBackend(metadata.BACKEND_KIND_DEFERRED))
	assert.Equal(t, "forward", e.Context().Backend().Name())

	device.ResetDraws()
	require.NoError(t, e.RenderFrame(0.016))
	assert.Equal(t, "deferred", e.Context().Backend().Name())

	drawn := drawnTechniques(device)
	assert.Positive(t, drawn["deferred_basic"])
	assert.Positive(t, drawn["deferred_resolve"])
	assert.Zero(t, drawn["forward_basic"])
}

func TestToggleVRDrawsPerEye(t *testing.T) {
	e, device := newTestEngine(t, testConfig(t))

	require.NoError(t, e.ToggleVR())
	assert.Nil(t, e.Context().VRService())
	device.ResetDraws()
	require.NoError(t, e.RenderFrame(0.016))
	require.NotNil(t, e.Context().VRService())

	var viewports []metadata.Viewport
	for _, d := range device.Draws() {
		if d.Technique == "present" {
			viewports = append(viewports, d.Viewport)
		}
	}
	require.Len(t, viewports, 2)
	assert.NotEqual(t, viewports[0], viewports[1])
	assert.Equal(t, 2, drawnTechniques(device)["tonemap"])

	require.NoError(t, e.ToggleVR())
	require.NoError(t, e.RenderFrame(0.016))
	assert.Nil(t, e.Context().VRService())
}

func TestTogglePass(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(t))

	p, ok := e.TogglePass(0)
	require.True(t, ok)
	assert.Equal(t, "ao", p.Name())
	assert.False(t, p.Enabled())

	p, ok = e.TogglePass(0)
	require.True(t, ok)
	assert.True(t, p.Enabled())

	_, ok = e.TogglePass(42)
	assert.False(t, ok)
	_, ok = e.TogglePass(-1)
	assert.False(t, ok)
}

const reloadBefore = `
[renderer]
device = "headless"

[[passes]]
type = "tonemap"
priority = 40

[[passes]]
type = "bloom"
priority = 30
`

const reloadAfter = `
[renderer]
device = "vulkan"
backend = "light_pre_pass"

[[passes]]
type = "tonemap"
priority = 40
[passes.params]
operator = "filmic"

[[passes]]
type = "fog"
priority = 5

[[passes]]
type = "blur"
name = "soft"
priority = 50
enabled = false
`

func TestReloadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(reloadBefore), 0o644))
	config, err := LoadEngineConfig(path)
	require.NoError(t, err)
	config.Assets.Root = "../assets"
	config.Application.StartWidth = 16
	config.Application.StartHeight = 16

	e, _ := newTestEngine(t, config)
	require.NotNil(t, e.Pipeline().Get("bloom"))

	require.NoError(t, os.WriteFile(path, []byte(reloadAfter), 0o644))
	require.NoError(t, e.ReloadConfig())

	names := []string{}
	for _, p := range e.Pipeline().Passes() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"fog", "tonemap", "soft"}, names)
	assert.Nil(t, e.Pipeline().Get("bloom"))
	assert.False(t, e.Pipeline().Get("soft").Enabled())
	// the device is fixed for the life of the engine
	assert.Equal(t, DEVICE_HEADLESS, e.Config().Renderer.Device)

	require.NoError(t, e.RenderFrame(0.016))
	assert.Equal(t, "light_pre_pass", e.Context().Backend().Name())
}

func TestReloadConfigNeedsAFile(t *testing.T) {
	config := DefaultEngineConfig()
	config.Assets.Root = "../assets"
	e, _ := newTestEngine(t, config)
	assert.Error(t, e.ReloadConfig())
}

func TestRunStopsAfterMaxFrames(t *testing.T) {
	config := testConfig(t)
	config.Application.MaxFrames = 3
	e, device := newTestEngine(t, config)

	require.NoError(t, e.Run())
	assert.Equal(t, uint64(3), e.Metrics().FrameNumber())
	assert.Equal(t, uint64(3), device.Frames())
}

func TestEscapeQuitsRun(t *testing.T) {
	config := testConfig(t)
	config.Application.MaxFrames = 100
	e, device := newTestEngine(t, config)

	updates := 0
	e.gameInstance.FnUpdate = func(deltaTime float64) error {
		updates++
		if updates == 2 {
			e.Input().ProcessKey(core.KEY_ESCAPE, true)
		}
		return nil
	}
	require.NoError(t, e.Run())
	assert.Equal(t, 2, updates)
	assert.Equal(t, uint64(2), device.Frames())
}
