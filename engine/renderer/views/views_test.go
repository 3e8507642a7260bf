package views

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/headless"
	"github.com/spaghettifunk/anima-fx/engine/renderer/materials"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-fx/engine/renderer/postprocess"
)

type fixture struct {
	device  *headless.Device
	ctx     *renderer.Context
	library *headless.Library
	quad    renderer.Geometry
	target  renderer.ColorBuffer
}

func newFixture(t *testing.T, width, height uint32) *fixture {
	t.Helper()
	d := headless.New(headless.Config{Width: width, Height: height})
	g, err := d.CreateGeometry("quad", postprocess.QuadVertices)
	require.NoError(t, err)
	target, err := d.CreateColorBuffer(metadata.BufferDesc{Width: width, Height: height, Name: "scene"})
	require.NoError(t, err)
	return &fixture{
		device:  d,
		ctx:     renderer.NewContext(d, nil),
		library: headless.NewLibrary(d),
		quad:    g,
		target:  target,
	}
}

func (f *fixture) material(t *testing.T, name string, kind metadata.MaterialKind, alpha float32) *materials.Material {
	t.Helper()
	m := materials.NewMaterial(&metadata.MaterialConfig{
		Name:      name,
		Kind:      kind,
		BaseColor: [4]float32{1, 1, 1, alpha},
	})
	require.NoError(t, m.LoadContent(f.ctx, f.library, nil))
	return m
}

func (f *fixture) techniques() []string {
	var out []string
	for _, r := range f.device.Draws() {
		out = append(out, r.Technique)
	}
	return out
}

func TestForwardDrawsOpaqueThenTransparent(t *testing.T) {
	f := newFixture(t, 4, 4)
	view, err := NewForward(f.ctx, f.library)
	require.NoError(t, err)
	f.ctx.SetBackend(view)

	scene := NewScene()
	scene.Add(NewRenderable(f.material(t, "glass", metadata.MATERIAL_KIND_UNLIT, 0.5), f.quad))
	scene.Add(NewRenderable(f.material(t, "rock", metadata.MATERIAL_KIND_BASIC, 1), f.quad))
	scene.Add(NewRenderable(f.material(t, "lava", metadata.MATERIAL_KIND_LAVA, 1), f.quad))

	require.NoError(t, view.DrawScene(&renderer.Frame{Time: 2}, scene, f.target))
	assert.Equal(t, []string{"clear", "forward_basic", "forward_lava", "forward_unlit"}, f.techniques())
	assert.Equal(t, DrawStats{Drawn: 3}, view.Stats())

	draws := f.device.Draws()
	// unlit declares no light parameter
	assert.Equal(t, [4]float32{}, draws[3].Params.Slot(3))
	assert.Equal(t, [4]float32{1, 1, 1, 1}, draws[1].Params.Slot(3))
	assert.Equal(t, float32(2), draws[2].Params.Slot(2)[0])
}

func TestDeferredSkipsUnsupportedMaterials(t *testing.T) {
	f := newFixture(t, 4, 4)
	view, err := NewDeferred(f.ctx, f.library)
	require.NoError(t, err)
	f.ctx.SetBackend(view)

	scene := NewScene()
	scene.Add(NewRenderable(f.material(t, "rock", metadata.MATERIAL_KIND_BASIC, 1), f.quad))
	scene.Add(NewRenderable(f.material(t, "lake", metadata.MATERIAL_KIND_WATER, 1), f.quad))

	require.NoError(t, view.DrawScene(&renderer.Frame{}, scene, f.target))
	assert.Equal(t, []string{"clear", "deferred_basic", "deferred_resolve"}, f.techniques())
	assert.Equal(t, DrawStats{Drawn: 1, Skipped: 1}, view.Stats())

	resolve := f.device.Draws()[2]
	require.NotNil(t, view.GBuffer())
	assert.Equal(t, []string{view.GBuffer().Name()}, resolve.Inputs)
	assert.Equal(t, "scene", resolve.Output)
}

func TestDeferredGBufferFollowsVR(t *testing.T) {
	f := newFixture(t, 8, 4)
	view, err := NewDeferred(f.ctx, f.library)
	require.NoError(t, err)
	f.ctx.SetBackend(view)
	require.NoError(t, view.DrawScene(&renderer.Frame{}, NewScene(), f.target))

	old := view.GBuffer()
	require.Equal(t, uint32(8), old.Desc().Width)
	f.ctx.SetVRService(renderer.NewSideBySide())
	assert.True(t, old.(*headless.Buffer).Destroyed())
	assert.Equal(t, uint32(4), view.GBuffer().Desc().Width)

	view.Dispose()
	assert.Nil(t, view.GBuffer())
	f.ctx.SetVRService(nil)
	assert.Nil(t, view.GBuffer())
}

func TestLightPrePassBindsLightBuffer(t *testing.T) {
	f := newFixture(t, 4, 4)
	view, err := NewLightPrePass(f.ctx, f.library)
	require.NoError(t, err)
	f.ctx.SetBackend(view)

	scene := NewScene()
	scene.Add(NewRenderable(f.material(t, "lake", metadata.MATERIAL_KIND_WATER, 1), f.quad))
	scene.Add(NewRenderable(f.material(t, "lava", metadata.MATERIAL_KIND_LAVA, 1), f.quad))
	require.NoError(t, view.DrawScene(&renderer.Frame{}, scene, f.target))

	assert.Equal(t, []string{"light_accum", "clear", "light_pre_pass_water"}, f.techniques())
	water := f.device.Draws()[2]
	require.NotNil(t, view.LightBuffer())
	assert.Equal(t, []string{view.LightBuffer().Name()}, water.Inputs)
	assert.Equal(t, DrawStats{Drawn: 1, Skipped: 1}, view.Stats())
}

func TestStereoDrawsBothEyes(t *testing.T) {
	f := newFixture(t, 8, 4)
	view, err := NewStereo(f.ctx, f.library)
	require.NoError(t, err)
	f.ctx.SetBackend(view)

	scene := NewScene()
	scene.Add(NewRenderable(f.material(t, "rock", metadata.MATERIAL_KIND_BASIC, 1), f.quad))
	require.NoError(t, view.DrawScene(&renderer.Frame{}, scene, f.target))

	var viewports []metadata.Viewport
	for _, r := range f.device.Draws() {
		if strings.HasPrefix(r.Technique, "stereo_") {
			viewports = append(viewports, r.Viewport)
		}
	}
	assert.Equal(t, []metadata.Viewport{
		{X: 0, Y: 0, Width: 4, Height: 4},
		{X: 4, Y: 0, Width: 4, Height: 4},
	}, viewports)
	assert.Equal(t, "stereo", view.Name())
}

func TestBackendSwapRebuildsMaterials(t *testing.T) {
	f := newFixture(t, 4, 4)
	fwd, err := NewForward(f.ctx, f.library)
	require.NoError(t, err)
	def, err := NewDeferred(f.ctx, f.library)
	require.NoError(t, err)

	f.ctx.SetBackend(fwd)
	m := f.material(t, "lake", metadata.MATERIAL_KIND_WATER, 1)
	require.NotNil(t, m.Strategy())

	require.NoError(t, f.ctx.RequestBackend(def))
	assert.NotNil(t, m.Strategy())
	f.ctx.Drain()
	assert.Nil(t, m.Strategy())

	require.NoError(t, f.ctx.RequestBackend(fwd))
	f.ctx.Drain()
	require.NotNil(t, m.Strategy())
	assert.Equal(t, metadata.BACKEND_KIND_FORWARD, m.Strategy().Backend())
}
