package postprocess

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/headless"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-fx/engine/renderer/targets"
)

type harness struct {
	device   *headless.Device
	ctx      *renderer.Context
	library  *headless.Library
	pool     *targets.Pool
	pipeline *Pipeline
	scene    renderer.ColorBuffer
}

func newHarness(t *testing.T, width, height uint32) *harness {
	t.Helper()
	d := headless.New(headless.Config{Width: width, Height: height})
	ctx := renderer.NewContext(d, nil)
	lib := headless.NewLibrary(d)
	pool := targets.NewPool(d, targets.PoolConfig{})
	p, err := NewPipeline(ctx, lib, pool)
	require.NoError(t, err)
	scene, err := d.CreateColorBuffer(metadata.BufferDesc{Width: width, Height: height, Name: "scene"})
	require.NoError(t, err)
	return &harness{device: d, ctx: ctx, library: lib, pool: pool, pipeline: p, scene: scene}
}

func (h *harness) draws(technique string) []headless.DrawRecord {
	var out []headless.DrawRecord
	for _, r := range h.device.Draws() {
		if r.Technique == technique {
			out = append(out, r)
		}
	}
	return out
}

// stubPass filters the scene with a technique named after the pass.
type stubPass struct {
	BasePass
	log  *[]string
	fail bool
}

func newStub(name string, priority int, log *[]string) *stubPass {
	return &stubPass{BasePass: NewBasePass(name, priority), log: log}
}

func (s *stubPass) Draw(frame *renderer.Frame, scene renderer.ColorBuffer) error {
	if err := s.Ready(); err != nil {
		return err
	}
	*s.log = append(*s.log, s.Name())
	if s.fail {
		return errors.New("stub failure")
	}
	t, err := s.Technique(s.Name())
	if err != nil {
		return err
	}
	return s.Filter(t, nil, scene)
}

func TestPipelineRunsByPriority(t *testing.T) {
	h := newHarness(t, 4, 4)
	var log []string
	require.NoError(t, h.pipeline.Add(newStub("p10", 10, &log)))
	require.NoError(t, h.pipeline.Add(newStub("p5", 5, &log)))
	require.NoError(t, h.pipeline.Add(newStub("p20", 20, &log)))
	require.NoError(t, h.pipeline.Initialize())

	require.NoError(t, h.pipeline.Run(&renderer.Frame{}, h.scene))
	assert.Equal(t, []string{"p5", "p10", "p20"}, log)
}

func TestPipelineKeepsInsertionOrderForEqualPriorities(t *testing.T) {
	h := newHarness(t, 4, 4)
	var log []string
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, h.pipeline.Add(newStub(name, 1, &log)))
	}
	require.NoError(t, h.pipeline.Add(newStub("first", 0, &log)))

	h.pipeline.Get("a").SetPriority(2)
	h.pipeline.Sort()
	h.pipeline.Get("a").SetPriority(1)
	h.pipeline.Sort()

	var names []string
	for _, p := range h.pipeline.Passes() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"first", "a", "b", "c"}, names)
}

func TestDisabledPassIsSkipped(t *testing.T) {
	h := newHarness(t, 4, 4)
	var log []string
	middle := newStub("p2", 2, &log)
	require.NoError(t, h.pipeline.Add(newStub("p1", 1, &log)))
	require.NoError(t, h.pipeline.Add(middle))
	require.NoError(t, h.pipeline.Add(newStub("p3", 3, &log)))
	require.NoError(t, h.pipeline.Initialize())
	middle.SetEnabled(false)
	assert.Equal(t, PassStateDisabled, middle.State())

	require.NoError(t, h.pipeline.Run(&renderer.Frame{}, h.scene))
	assert.Equal(t, []string{"p1", "p3"}, log)
	assert.Equal(t, []string{"p1", "p3"}, h.scene.(*headless.Buffer).Lineage())
	assert.Empty(t, h.draws("p2"))
	assert.Equal(t, RunStats{Executed: 2, Skipped: 1}, h.pipeline.Stats())

	middle.SetEnabled(true)
	log = nil
	require.NoError(t, h.pipeline.Run(&renderer.Frame{}, h.scene))
	assert.Equal(t, []string{"p1", "p2", "p3"}, log)
}

func TestRunReleasesPoolEvenOnFailure(t *testing.T) {
	h := newHarness(t, 4, 4)
	var log []string
	broken := newStub("broken", 1, &log)
	broken.fail = true
	require.NoError(t, h.pipeline.Add(newStub("ok", 0, &log)))
	require.NoError(t, h.pipeline.Add(broken))
	require.NoError(t, h.pipeline.Add(newStub("after", 2, &log)))

	// checked out by someone outside the passes
	_, err := h.pool.GetTemporary(4, 4)
	require.NoError(t, err)

	err = h.pipeline.Run(&renderer.Frame{}, h.scene)
	assert.Error(t, err)
	assert.Equal(t, []string{"ok", "broken", "after"}, log)
	assert.Equal(t, 0, h.pool.Stats().Active)
	assert.Equal(t, RunStats{Executed: 2, Failed: 1}, h.pipeline.Stats())
}

func TestAddAfterInitializeInitializesPass(t *testing.T) {
	h := newHarness(t, 4, 4)
	require.NoError(t, h.pipeline.Initialize())
	var log []string
	late := newStub("late", 0, &log)
	require.NoError(t, h.pipeline.Add(late))
	assert.Equal(t, PassStateEnabled, late.State())

	assert.Error(t, h.pipeline.Add(newStub("late", 1, &log)))
}

func TestRemoveDisposesPass(t *testing.T) {
	h := newHarness(t, 4, 4)
	var log []string
	p := newStub("gone", 0, &log)
	require.NoError(t, h.pipeline.Add(p))
	require.NoError(t, h.pipeline.Initialize())

	assert.True(t, h.pipeline.Remove("gone"))
	assert.False(t, h.pipeline.Remove("gone"))
	assert.Equal(t, PassStateDisposed, p.State())
	assert.Nil(t, h.pipeline.Get("gone"))
}

func TestPassStateMachine(t *testing.T) {
	h := newHarness(t, 4, 4)
	var log []string
	p := newStub("stub", 0, &log)
	assert.Equal(t, PassStateUninitialized, p.State())
	assert.ErrorIs(t, p.Draw(&renderer.Frame{}, h.scene), core.ErrNotInitialized)

	p.SetEnabled(false)
	require.NoError(t, p.Initialize(h.pipeline.PassContext()))
	assert.Equal(t, PassStateDisabled, p.State())
	assert.ErrorIs(t, p.Initialize(h.pipeline.PassContext()), core.ErrAlreadyInitialized)

	p.SetEnabled(true)
	assert.Equal(t, PassStateEnabled, p.State())

	require.NoError(t, p.Dispose())
	require.NoError(t, p.Dispose())
	assert.Equal(t, PassStateDisposed, p.State())
	assert.False(t, p.Enabled())
	p.SetEnabled(true)
	assert.Equal(t, PassStateDisposed, p.State())
	assert.ErrorIs(t, p.Initialize(h.pipeline.PassContext()), core.ErrDisposed)
	assert.ErrorIs(t, p.Draw(&renderer.Frame{}, h.scene), core.ErrDisposed)
}

func TestTechniqueIsReloadedAfterNotification(t *testing.T) {
	h := newHarness(t, 4, 4)
	blur := NewBlur("", 0)
	require.NoError(t, h.pipeline.Add(blur))
	require.NoError(t, h.pipeline.Initialize())
	require.NoError(t, h.pipeline.Run(&renderer.Frame{}, h.scene))
	assert.Equal(t, 1, h.library.Loads(blurTechnique))

	h.library.Reload(blurTechnique)
	require.NoError(t, h.ctx.RequestTechniqueReload(blurTechnique))
	h.ctx.Drain()

	require.NoError(t, h.pipeline.Run(&renderer.Frame{}, h.scene))
	assert.Equal(t, 2, h.library.Loads(blurTechnique))
}

func TestPipelineDispose(t *testing.T) {
	h := newHarness(t, 4, 4)
	ao := NewAmbientOcclusion("", 0)
	require.NoError(t, h.pipeline.Add(ao))
	require.NoError(t, h.pipeline.Run(&renderer.Frame{}, h.scene))
	require.NotNil(t, ao.Occlusion())

	h.pipeline.Dispose()
	assert.Equal(t, PassStateDisposed, ao.State())
	assert.True(t, ao.Occlusion() == nil || ao.Occlusion().(*headless.Buffer).Destroyed())
	assert.ErrorIs(t, h.pipeline.Run(&renderer.Frame{}, h.scene), core.ErrDisposed)
	assert.ErrorIs(t, h.pipeline.Add(NewFog("", 0)), core.ErrDisposed)
}
