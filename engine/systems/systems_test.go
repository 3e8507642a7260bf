package systems

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-fx/engine/assets"
	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/headless"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-fx/engine/renderer/views"
)

var materialParams = []string{"base_color", "tiling_offset", "material_params", "light"}

var testTechniques = map[string]struct {
	kernel string
	params []string
}{
	"clear":                {"passthrough", []string{"color"}},
	"present":              {"copy", nil},
	"forward_basic":        {"material", materialParams},
	"forward_water":        {"water", materialParams},
	"deferred_basic":       {"gbuffer", materialParams},
	"deferred_resolve":     {"deferred_resolve", []string{"light", "ambient"}},
	"light_accum":          {"light_accum", []string{"light"}},
	"light_pre_pass_basic": {"lpp_material", materialParams},
	"stereo_basic":         {"material", materialParams},
}

func techniqueTOML(name, kernel string, params []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "name = %q\nkernel = %q\ninputs = 2\n", name, kernel)
	if name == "forward_basic" {
		b.WriteString("shader = \"shaders/material.wgsl\"\n")
	}
	for i, p := range params {
		fmt.Fprintf(&b, "\n[[parameters]]\nname = %q\nslot = %d\n", p, i)
	}
	return b.String()
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func newAssetRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for name, tc := range testTechniques {
		writeFile(t, filepath.Join(root, "techniques", name+".toml"), techniqueTOML(name, tc.kernel, tc.params))
	}
	writeFile(t, filepath.Join(root, "shaders", "material.wgsl"), "@fragment fn fs_main() {}")
	writeFile(t, filepath.Join(root, "materials", "stone.toml"), "kind = \"basic\"\nauto_release = true\n\n[textures]\ndiffuse = \"stone.png\"\n")
	writeFile(t, filepath.Join(root, "materials", "pond.toml"), "kind = \"water\"\nbase_color = [0.2, 0.4, 1.0, 0.5]\n")

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = 200
		if i%4 == 3 {
			img.Pix[i] = 255
		}
	}
	img.SetRGBA(1, 1, color.RGBA{10, 20, 30, 255})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "textures"), 0o755))
	f, err := os.Create(filepath.Join(root, "textures", "stone.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return root
}

type harness struct {
	device *headless.Device
	am     *assets.AssetManager
	rs     *RendererSystem
	ss     *ShaderSystem
	ts     *TextureSystem
	ms     *MaterialSystem
	rvs    *RenderViewSystem
}

func newHarness(t *testing.T, root string, watch bool) *harness {
	t.Helper()
	h := &harness{device: headless.New(headless.Config{Width: 8, Height: 8})}
	h.am = assets.NewAssetManager(root)
	require.NoError(t, h.am.Initialize(watch))
	t.Cleanup(func() { h.am.Close() })

	var err error
	h.rs, err = NewRendererSystem(h.device, &RendererSystemConfig{})
	require.NoError(t, err)
	h.ss, err = NewShaderSystem(&ShaderSystemConfig{MaxTechniqueCount: 64}, h.rs.Context(), h.am)
	require.NoError(t, err)
	require.NoError(t, h.rs.Initialize(h.ss))
	h.ts, err = NewTextureSystem(&TextureSystemConfig{MaxTextureCount: 8}, h.device, h.am)
	require.NoError(t, err)
	require.NoError(t, h.ts.Initialize())
	h.rvs, err = NewRenderViewSystem(RenderViewSystemConfig{DefaultBackend: metadata.BACKEND_KIND_FORWARD}, h.rs.Context(), h.ss)
	require.NoError(t, err)
	require.NoError(t, h.rvs.Initialize())
	h.ms, err = NewMaterialSystem(&MaterialSystemConfig{MaxMaterialCount: 8}, h.rs.Context(), h.am, h.ss, h.ts)
	require.NoError(t, err)
	require.NoError(t, h.ms.Initialize())
	return h
}

func TestJobCallbacksRunOnUpdate(t *testing.T) {
	js, err := NewJobSystem(2, 4)
	require.NoError(t, err)

	var completed, failed atomic.Int32
	for i := 0; i < 6; i++ {
		i := i
		require.NoError(t, js.Submit(metadata.JobTask{
			InputParams: i,
			OnStart: func(params interface{}) (interface{}, error) {
				if params.(int)%3 == 0 {
					return nil, errors.New("boom")
				}
				return params.(int) * 2, nil
			},
			OnComplete: func(result interface{}) { completed.Add(1) },
			OnFailure:  func(err error) { failed.Add(1) },
		}))
	}
	assert.Equal(t, int32(0), completed.Load()+failed.Load())

	assert.Equal(t, 6, js.Wait())
	assert.Equal(t, int32(4), completed.Load())
	assert.Equal(t, int32(2), failed.Load())

	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())
	assert.ErrorIs(t, js.Submit(metadata.JobTask{OnStart: func(interface{}) (interface{}, error) { return nil, nil }}), ErrJobSystemShutdown)
}

func TestJobSystemRejectsBadConfig(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestShaderSystemCachesTechniques(t *testing.T) {
	h := newHarness(t, newAssetRoot(t), false)

	a, err := h.ss.Technique("forward_basic")
	require.NoError(t, err)
	b, err := h.ss.Technique("forward_basic")
	require.NoError(t, err)
	assert.Same(t, a, b)
	_, ok := a.Parameter("material_params")
	assert.True(t, ok)

	_, err = h.ss.Technique("nope")
	assert.ErrorIs(t, err, core.ErrTechniqueNotFound)
}

func TestShaderSystemReloadRecreatesAndRebuilds(t *testing.T) {
	h := newHarness(t, newAssetRoot(t), false)
	stone, err := h.ms.Acquire("stone")
	require.NoError(t, err)
	before := stone.Strategy().Technique()
	rebuilds := stone.Rebuilds()

	require.NoError(t, h.ss.Reload("forward_basic"))
	assert.Same(t, before, stone.Strategy().Technique(), "nothing changes before the drain")

	h.rs.Context().Drain()
	assert.Equal(t, rebuilds+1, stone.Rebuilds())
	require.NotNil(t, stone.Strategy())
	assert.NotSame(t, before, stone.Strategy().Technique())
}

func TestShaderSourceChangeTriggersReload(t *testing.T) {
	root := newAssetRoot(t)
	h := newHarness(t, root, true)
	stone, err := h.ms.Acquire("stone")
	require.NoError(t, err)
	rebuilds := stone.Rebuilds()

	writeFile(t, filepath.Join(root, "shaders", "material.wgsl"), "@fragment fn fs_main() { }")
	require.Eventually(t, func() bool {
		return h.rs.Context().Pending() > 0
	}, 5*time.Second, 10*time.Millisecond)

	h.rs.Context().Drain()
	assert.Greater(t, stone.Rebuilds(), rebuilds)
	assert.NotNil(t, stone.Strategy())
}

func TestPreloadCreatesOnWait(t *testing.T) {
	h := newHarness(t, newAssetRoot(t), false)
	js, err := NewJobSystem(2, 8)
	require.NoError(t, err)
	defer js.Shutdown()

	require.NoError(t, h.ss.Preload(js, []string{"deferred_basic", "missing"}))
	require.NoError(t, h.ms.Preload(js, []string{"pond"}))
	assert.NotContains(t, h.ss.Loaded(), "deferred_basic")
	assert.Nil(t, h.ms.Get("pond"))

	js.Wait()
	assert.Contains(t, h.ss.Loaded(), "deferred_basic")
	assert.NotContains(t, h.ss.Loaded(), "missing")
	require.NotNil(t, h.ms.Get("pond"))
	assert.True(t, h.ms.Get("pond").HasTransparency)
}

func TestTextureSystemLoadsAndFallsBack(t *testing.T) {
	h := newHarness(t, newAssetRoot(t), false)

	tex, err := h.ts.Texture("stone.png")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), tex.Desc().Width)
	assert.False(t, h.ts.HasTransparency("stone.png"))

	missing, err := h.ts.Texture("missing.png")
	require.NoError(t, err)
	assert.Same(t, h.ts.GetDefaultTexture(), missing)
}

func TestTextureAutoRelease(t *testing.T) {
	h := newHarness(t, newAssetRoot(t), false)
	live := h.device.LiveBuffers()

	_, err := h.ts.Acquire("stone.png", true)
	require.NoError(t, err)
	_, err = h.ts.Acquire("stone.png", true)
	require.NoError(t, err)
	assert.Equal(t, live+1, h.device.LiveBuffers())

	h.ts.Release("stone.png")
	assert.Equal(t, live+1, h.device.LiveBuffers())
	h.ts.Release("stone.png")
	assert.Equal(t, live, h.device.LiveBuffers())
	assert.NotContains(t, h.ts.Loaded(), "stone.png")

	h.ts.Release("stone.png")
}

func TestMaterialSystemFollowsBackend(t *testing.T) {
	h := newHarness(t, newAssetRoot(t), false)
	pond, err := h.ms.Acquire("pond")
	require.NoError(t, err)
	require.NotNil(t, pond.Strategy())
	assert.Equal(t, "forward_water", pond.Strategy().Technique().Name())

	require.NoError(t, h.rvs.Activate(metadata.BACKEND_KIND_DEFERRED))
	assert.NotNil(t, pond.Strategy(), "the swap waits for the drain")
	h.rs.Context().Drain()
	assert.Nil(t, pond.Strategy())
	assert.Equal(t, metadata.BACKEND_KIND_DEFERRED, h.rvs.Active().Kind())

	require.NoError(t, h.rvs.Activate(metadata.BACKEND_KIND_FORWARD))
	h.rs.Context().Drain()
	assert.NotNil(t, pond.Strategy())
}

func TestMaterialReferenceCounting(t *testing.T) {
	h := newHarness(t, newAssetRoot(t), false)
	a, err := h.ms.Acquire("stone")
	require.NoError(t, err)
	b, err := h.ms.Acquire("stone")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Len(t, h.ms.Materials(), 1)

	h.ms.Release("stone")
	assert.True(t, a.Loaded())
	h.ms.Release("stone")
	assert.False(t, a.Loaded())
	assert.Nil(t, h.ms.Get("stone"))

	def, err := h.ms.Acquire(metadata.DefaultMaterialName)
	require.NoError(t, err)
	assert.Same(t, h.ms.GetDefault(), def)
	_, err = h.ms.Acquire("missing")
	assert.Error(t, err)
}

func TestRenderViewSystemActivate(t *testing.T) {
	h := newHarness(t, newAssetRoot(t), false)
	assert.Len(t, h.rvs.Kinds(), 4)
	assert.Equal(t, metadata.BACKEND_KIND_FORWARD, h.rvs.Active().Kind())

	assert.Error(t, h.rvs.Activate(metadata.BACKEND_KIND_MAX))
	require.NoError(t, h.rvs.Activate(metadata.BACKEND_KIND_STEREO))
	assert.Equal(t, metadata.BACKEND_KIND_FORWARD, h.rvs.Active().Kind())
	h.rs.Context().Drain()
	assert.Equal(t, metadata.BACKEND_KIND_STEREO, h.rvs.Active().Kind())
}

func sceneWith(t *testing.T, h *harness, name string) *views.Scene {
	t.Helper()
	m, err := h.ms.Acquire(name)
	require.NoError(t, err)
	g, err := h.device.CreateGeometry("plane", GeneratePlane(-1, -1, 2, 2, 1, 1))
	require.NoError(t, err)
	scene := views.NewScene()
	scene.Add(views.NewRenderable(m, g))
	return scene
}

func TestDrawFramePresents(t *testing.T) {
	h := newHarness(t, newAssetRoot(t), false)
	scene := sceneWith(t, h, "stone")

	require.NoError(t, h.rs.DrawFrame(&renderer.Frame{Number: 1}, h.rvs.Active(), scene))
	assert.Equal(t, uint64(1), h.rs.FrameNumber)
	assert.Equal(t, uint64(1), h.device.Frames())

	back := h.device.BackBufferTarget().(*headless.Buffer)
	assert.Equal(t, []string{"clear", "forward_basic", "present"}, back.Lineage())
	assert.Equal(t, uint32(8), h.rs.SceneBuffer().Desc().Width)
}

func TestDrawFramePerEyeUnderVR(t *testing.T) {
	h := newHarness(t, newAssetRoot(t), false)
	scene := sceneWith(t, h, "stone")
	require.NoError(t, h.rs.DrawFrame(&renderer.Frame{Number: 1}, h.rvs.Active(), scene))
	first := h.rs.SceneBuffer()

	require.NoError(t, h.rs.Context().RequestVRService(renderer.NewSideBySide()))
	h.device.ResetDraws()
	require.NoError(t, h.rs.DrawFrame(&renderer.Frame{Number: 2}, h.rvs.Active(), scene))

	assert.NotSame(t, first, h.rs.SceneBuffer())
	assert.Equal(t, uint32(4), h.rs.SceneBuffer().Desc().Width)
	assert.True(t, first.(*headless.Buffer).Destroyed())

	var presents []metadata.Viewport
	for _, d := range h.device.Draws() {
		if d.Technique == PresentTechnique {
			presents = append(presents, d.Viewport)
		}
	}
	assert.Equal(t, []metadata.Viewport{
		{X: 0, Y: 0, Width: 4, Height: 8},
		{X: 4, Y: 0, Width: 4, Height: 8},
	}, presents)
}

func TestDrawFrameRequiresInitialize(t *testing.T) {
	rs, err := NewRendererSystem(headless.New(headless.Config{Width: 4, Height: 4}), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, rs.DrawFrame(&renderer.Frame{}, nil, nil), core.ErrNotInitialized)

	_, err = NewRendererSystem(nil, nil)
	assert.ErrorIs(t, err, core.ErrUnsupportedDevice)
}

func TestGeometrySystemReferences(t *testing.T) {
	gs, err := NewGeometrySystem(&GeometrySystemConfig{MaxGeometryCount: 2}, headless.New(headless.Config{Width: 4, Height: 4}))
	require.NoError(t, err)

	a, err := gs.AcquirePlane("floor", -1, -1, 2, 1, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), a.VertexCount())
	b, err := gs.AcquirePlane("floor", 0, 0, 1, 1, 1, 1)
	require.NoError(t, err)
	assert.Same(t, a, b)

	gs.Release("floor")
	assert.Equal(t, 1, gs.Count())
	gs.Release("floor")
	assert.Equal(t, 0, gs.Count())

	v := GeneratePlane(-1, -1, 2, 2, 4, 2)
	assert.Equal(t, float32(4), v[1].Texcoord.X)
	assert.Equal(t, float32(2), v[0].Texcoord.Y)
}

func TestSystemManagerLifecycle(t *testing.T) {
	root := newAssetRoot(t)
	sm, err := NewSystemManager(headless.New(headless.Config{Width: 8, Height: 8}), &SystemManagerConfig{
		AssetRoot:         root,
		DefaultBackend:    metadata.BACKEND_KIND_LIGHT_PRE_PASS,
		PreloadTechniques: []string{"light_accum", "light_pre_pass_basic"},
		PreloadMaterials:  []string{"stone", "pond"},
	})
	require.NoError(t, err)
	require.NoError(t, sm.Initialize())

	assert.Equal(t, metadata.BACKEND_KIND_LIGHT_PRE_PASS, sm.RenderViewSystem().Active().Kind())
	assert.Len(t, sm.MaterialSystem().Materials(), 2)
	assert.NotNil(t, sm.MaterialSystem().Get("stone").Strategy())
	assert.Nil(t, sm.MaterialSystem().Get("pond").Strategy(), "water has no light pre-pass strategy")
	assert.Contains(t, sm.ShaderSystem().Loaded(), "light_accum")

	sm.Update()
	require.NoError(t, sm.Shutdown())
	assert.Empty(t, sm.MaterialSystem().Materials())
}
