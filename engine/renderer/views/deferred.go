package views

import (
	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-fx/engine/renderer/targets"
)

/**
 * @brief Deferred writes opaque surfaces into a geometry buffer at output
 * resolution and lights them in one resolve draw. Transparent materials are
 * drawn over the resolved image afterwards.
 */
type Deferred struct {
	base
	gbuffer *targets.Persistent
}

func NewDeferred(ctx *renderer.Context, loader renderer.TechniqueLoader) (*Deferred, error) {
	b, err := newBase(metadata.BACKEND_KIND_DEFERRED, ctx, loader)
	if err != nil {
		return nil, err
	}
	d := &Deferred{base: b}
	d.gbuffer = targets.NewPersistent(ctx.Device(), "gbuffer-albedo", ctx.OutputSize)
	ctx.OnOutputSizeChanged(d, func(width, height uint32) {
		if d.gbuffer.Current() == nil {
			return
		}
		if err := d.gbuffer.Recreate(); err != nil {
			core.LogError("failed to recreate the geometry buffer at %dx%d: %s", width, height, err)
		}
	})
	return d, nil
}

// GBuffer returns the albedo buffer, nil before the first frame.
func (d *Deferred) GBuffer() renderer.ColorBuffer {
	return d.gbuffer.Current()
}

func (d *Deferred) DrawScene(frame *renderer.Frame, scene *Scene, target renderer.ColorBuffer) error {
	d.stats = DrawStats{}
	albedo, err := d.gbuffer.Acquire()
	if err != nil {
		return err
	}
	d.gbuffer.Use()
	defer d.gbuffer.Done()

	if err := d.clear(albedo, metadata.Viewport{}, [4]float32{}); err != nil {
		return err
	}
	if err := d.drawRenderables(frame, scene, albedo, metadata.Viewport{}, opaque, nil); err != nil {
		return err
	}

	resolve, err := d.loader.Technique(resolveTechnique)
	if err != nil {
		return err
	}
	cmd := d.quad.Command(resolve)
	cmd.Output = target
	cmd.Inputs[0] = albedo
	cmd.Clear = true
	cmd.ClearColor = scene.ClearColor
	cmd.Params.SetVec4(renderer.ParameterOrInvalid(resolve, "light"), scene.Light)
	cmd.Params.SetFloat(renderer.ParameterOrInvalid(resolve, "ambient"), scene.Ambient)
	if err := d.quad.Submit(cmd); err != nil {
		return err
	}
	return d.drawRenderables(frame, scene, target, metadata.Viewport{}, transparent, nil)
}

func (d *Deferred) Dispose() {
	d.ctx.UnsubscribeOutputSizeChanged(d)
	d.gbuffer.Dispose()
	d.base.Dispose()
}
