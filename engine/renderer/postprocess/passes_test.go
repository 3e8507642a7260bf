package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/headless"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

func TestBlurPingPongs(t *testing.T) {
	h := newHarness(t, 8, 8)
	blur := NewBlur("", 0)
	blur.Iterations = 3
	require.NoError(t, h.pipeline.Add(blur))
	require.NoError(t, h.pipeline.Initialize())

	require.NoError(t, h.pipeline.Run(&renderer.Frame{}, h.scene))
	records := h.draws(blurTechnique)
	require.Len(t, records, 6)
	for i, r := range records {
		dir := r.Params.Slot(0)
		if i%2 == 0 {
			assert.Equal(t, float32(1), dir[0], "draw %d should be horizontal", i)
		} else {
			assert.Equal(t, float32(1), dir[1], "draw %d should be vertical", i)
		}
		assert.NotContains(t, r.Inputs, r.Output)
	}
	assert.Equal(t, 0, h.pool.Stats().Active)
	assert.Equal(t, 2, h.pool.Stats().Entries)
}

func TestBlurDownsample(t *testing.T) {
	h := newHarness(t, 8, 8)
	blur := NewBlur("", 0)
	require.NoError(t, blur.SetParam("downsample", int64(2)))
	require.NoError(t, h.pipeline.Add(blur))

	require.NoError(t, h.pipeline.Run(&renderer.Frame{}, h.scene))
	for _, r := range h.draws(blurTechnique) {
		assert.Equal(t, metadata.Viewport{Width: 4, Height: 4}, r.Viewport)
	}
}

func TestBloomReusesPoolOnNextFrame(t *testing.T) {
	h := newHarness(t, 16, 16)
	bloom := NewBloom("", 0)
	bloom.Levels = 3
	require.NoError(t, h.pipeline.Add(bloom))

	require.NoError(t, h.pipeline.Run(&renderer.Frame{Number: 1}, h.scene))
	first := h.pool.Stats()
	assert.Equal(t, 0, first.Active)
	assert.Len(t, h.draws(brightExtractTechnique), 1)
	assert.Len(t, h.draws(bloomDownsampleTechnique), 2)

	require.NoError(t, h.pipeline.Run(&renderer.Frame{Number: 2}, h.scene))
	second := h.pool.Stats()
	assert.Equal(t, first.Allocations, second.Allocations)
	assert.Equal(t, first.Entries, second.Entries)
	assert.Greater(t, second.Reuses, first.Reuses)
}

func TestBloomReleasesEveryBuffer(t *testing.T) {
	for _, levels := range []int{1, 3} {
		h := newHarness(t, 16, 16)
		bloom := NewBloom("", 0)
		bloom.Levels = levels
		require.NoError(t, h.pipeline.Add(bloom))
		require.NoError(t, h.pipeline.Initialize())

		require.NoError(t, bloom.Draw(&renderer.Frame{}, h.scene))
		stats := h.pool.Stats()
		assert.Zero(t, stats.Active, "levels %d", levels)

		// a second draw in the same frame reuses every tier
		require.NoError(t, bloom.Draw(&renderer.Frame{}, h.scene))
		assert.Equal(t, stats.Entries, h.pool.Stats().Entries, "levels %d", levels)
		assert.Zero(t, h.pool.Stats().Active, "levels %d", levels)
	}
}

func TestBloomReleasesBuffersOnFailure(t *testing.T) {
	h := newHarness(t, 16, 16)
	bloom := NewBloom("", 0)
	require.NoError(t, h.pipeline.Add(bloom))
	require.NoError(t, h.pipeline.Initialize())

	// the upsample chain fails on its first composite draw
	composite, err := h.library.Technique(compositeTechnique)
	require.NoError(t, err)
	h.device.DestroyTechnique(composite)
	assert.Error(t, bloom.Draw(&renderer.Frame{}, h.scene))
	assert.Zero(t, h.pool.Stats().Active)
}

func TestBloomAddsLight(t *testing.T) {
	h := newHarness(t, 8, 8)
	fill, err := h.library.Technique("passthrough")
	require.NoError(t, err)
	params := fill.Defaults()
	params.SetArray(0, [4]float32{1, 1, 1, 1})
	require.NoError(t, h.pipeline.PassContext().Quad.Draw(fill, &params, h.scene))

	bloom := NewBloom("", 0)
	bloom.Threshold = 0.5
	require.NoError(t, h.pipeline.Add(bloom))
	require.NoError(t, h.pipeline.Run(&renderer.Frame{}, h.scene))

	px := h.scene.(*headless.Buffer).At(4, 4)
	assert.Equal(t, float32(1), px[0])
	assert.Equal(t, compositeTechnique, last(h.scene.(*headless.Buffer).Lineage()))
}

func last(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

func TestAmbientOcclusionFollowsOutputSize(t *testing.T) {
	h := newHarness(t, 32, 16)
	ao := NewAmbientOcclusion("", 0)
	require.NoError(t, h.pipeline.Add(ao))
	require.NoError(t, h.pipeline.Run(&renderer.Frame{}, h.scene))

	old := ao.Occlusion()
	require.NotNil(t, old)
	assert.Equal(t, uint32(32), old.Desc().Width)
	before := h.device.LiveBuffers()

	h.ctx.SetVRService(renderer.NewSideBySide())
	now := ao.Occlusion()
	require.NotNil(t, now)
	assert.Equal(t, uint32(16), now.Desc().Width)
	assert.Equal(t, uint32(16), now.Desc().Height)
	assert.True(t, old.(*headless.Buffer).Destroyed())
	assert.Equal(t, before, h.device.LiveBuffers())
}

func TestAmbientOcclusionKernelIsSeeded(t *testing.T) {
	a := NewAmbientOcclusion("a", 0)
	b := NewAmbientOcclusion("b", 0)
	a.buildKernel()
	b.buildKernel()
	assert.Equal(t, a.kernel, b.kernel)

	b.Seed = 7
	b.buildKernel()
	assert.NotEqual(t, a.kernel, b.kernel)
}

func TestTemporalAntiAliasHistory(t *testing.T) {
	h := newHarness(t, 8, 8)
	aa := NewAntiAlias("", 0)
	require.NoError(t, aa.SetParam("mode", "temporal"))
	require.NoError(t, h.pipeline.Add(aa))

	require.NoError(t, h.pipeline.Run(&renderer.Frame{Number: 1}, h.scene))
	assert.Empty(t, h.draws(temporalTechnique))
	require.NotNil(t, aa.History())

	require.NoError(t, h.pipeline.Run(&renderer.Frame{Number: 2}, h.scene))
	assert.Len(t, h.draws(temporalTechnique), 1)

	old := aa.History()
	h.ctx.SetVRService(renderer.NewSideBySide())
	assert.True(t, old.(*headless.Buffer).Destroyed())
	assert.Equal(t, uint32(4), aa.History().Desc().Width)

	// history restarts after recreation
	h.device.ResetDraws()
	require.NoError(t, h.pipeline.Run(&renderer.Frame{Number: 3}, h.scene))
	assert.Empty(t, h.draws(temporalTechnique))
}

func TestTemporalAntiAliasKeepsHistoryPerEye(t *testing.T) {
	h := newHarness(t, 8, 8)
	h.ctx.SetVRService(renderer.NewSideBySide())
	aa := NewAntiAlias("", 0)
	require.NoError(t, aa.SetParam("mode", "temporal"))
	require.NoError(t, h.pipeline.Add(aa))

	runEyes := func(number uint64) {
		for eye := 0; eye < 2; eye++ {
			require.NoError(t, h.pipeline.Run(&renderer.Frame{Number: number, PerEye: true, Eye: eye}, h.scene))
		}
	}
	runEyes(1)
	left, right := aa.EyeHistory(0), aa.EyeHistory(1)
	require.NotNil(t, left)
	require.NotNil(t, right)
	assert.NotEqual(t, left.Name(), right.Name())
	assert.Empty(t, h.draws(temporalTechnique))

	runEyes(2)
	draws := h.draws(temporalTechnique)
	require.Len(t, draws, 2)
	assert.Contains(t, draws[0].Inputs, left.Name())
	assert.NotContains(t, draws[0].Inputs, right.Name())
	assert.Contains(t, draws[1].Inputs, right.Name())
	assert.NotContains(t, draws[1].Inputs, left.Name())
}

func TestFXAADrawsOnce(t *testing.T) {
	h := newHarness(t, 8, 8)
	aa := NewAntiAlias("", 0)
	require.NoError(t, h.pipeline.Add(aa))
	require.NoError(t, h.pipeline.Run(&renderer.Frame{}, h.scene))
	assert.Len(t, h.draws(fxaaTechnique), 1)
	assert.Nil(t, aa.History())
}

func TestFogAndGradeParameters(t *testing.T) {
	h := newHarness(t, 4, 4)
	fog := NewFog("", 0)
	require.NoError(t, fog.SetParam("mode", "exp2"))
	require.NoError(t, fog.SetParam("density", 2.5))
	require.NoError(t, fog.SetParam("color", []interface{}{1.0, 0.0, 0.0, 1.0}))
	grade := NewColorGrade("", 1)
	require.NoError(t, grade.SetParam("sepia", 1.0))
	tone := NewTonemap("", 2)
	require.NoError(t, tone.SetParam("operator", "aces"))
	for _, p := range []Pass{fog, grade, tone} {
		require.NoError(t, h.pipeline.Add(p))
	}
	require.NoError(t, h.pipeline.Run(&renderer.Frame{}, h.scene))

	f := h.draws(fogTechnique)
	require.Len(t, f, 1)
	assert.Equal(t, [4]float32{2, 2.5, 0, 1}, f[0].Params.Slot(0))
	assert.Equal(t, [4]float32{1, 0, 0, 1}, f[0].Params.Slot(1))

	g := h.draws(colorGradeTechnique)
	require.Len(t, g, 1)
	assert.Equal(t, float32(1), g[0].Params.Slot(0)[1])

	tm := h.draws(tonemapTechnique)
	require.Len(t, tm, 1)
	assert.Equal(t, float32(TonemapACES), tm[0].Params.Slot(0)[2])

	assert.Equal(t, []string{fogTechnique, colorGradeTechnique, tonemapTechnique}, h.scene.(*headless.Buffer).Lineage())

	assert.Error(t, fog.SetParam("mode", "thick"))
	assert.Error(t, fog.SetParam("density", "lots"))
	assert.Error(t, fog.SetParam("nope", 1))
}

func TestOverlayWithoutFontDisablesItself(t *testing.T) {
	h := newHarness(t, 4, 4)
	overlay := NewDebugOverlay("", 100)
	require.NoError(t, h.pipeline.Add(overlay))
	require.NoError(t, h.pipeline.Initialize())
	assert.False(t, overlay.Enabled())
	require.NoError(t, h.pipeline.Run(&renderer.Frame{}, h.scene))
	assert.Empty(t, h.draws(glyphTechnique))
	assert.Nil(t, LayoutText(nil, "fps", 0, 0, 1, 4, 4))
}

func TestNewPassFromConfig(t *testing.T) {
	disabled := false
	p, err := NewPassFromConfig(metadata.PassConfig{
		Type:     "bloom",
		Name:     "glow",
		Priority: 30,
		Enabled:  &disabled,
		Params: map[string]interface{}{
			"threshold": 0.6,
			"levels":    int64(4),
		},
	})
	require.NoError(t, err)
	bloom, ok := p.(*Bloom)
	require.True(t, ok)
	assert.Equal(t, "glow", bloom.Name())
	assert.Equal(t, 30, bloom.Priority())
	assert.False(t, bloom.Enabled())
	assert.InDelta(t, 0.6, bloom.Threshold, 1e-6)
	assert.Equal(t, 4, bloom.Levels)

	_, err = NewPassFromConfig(metadata.PassConfig{Type: "lens_flare"})
	assert.Error(t, err)
	_, err = NewPassFromConfig(metadata.PassConfig{Type: "blur", Params: map[string]interface{}{"iterations": "many"}})
	assert.Error(t, err)
	_, err = NewPassFromConfig(metadata.PassConfig{})
	assert.Error(t, err)

	RegisterPassType("custom", func(name string, priority int) Pass { return NewFog(name, priority) })
	assert.Contains(t, PassTypes(), "custom")
	p, err = NewPassFromConfig(metadata.PassConfig{Type: "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Name())
}
