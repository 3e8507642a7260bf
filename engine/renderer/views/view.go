package views

import (
	"fmt"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-fx/engine/renderer/postprocess"
)

const (
	clearTechnique   = "clear"
	resolveTechnique = "deferred_resolve"
	lightTechnique   = "light_accum"
)

// View is a rendering backend: the lighting model the scene is drawn with.
type View interface {
	renderer.Backend
	DrawScene(frame *renderer.Frame, scene *Scene, target renderer.ColorBuffer) error
	Dispose()
}

// DrawStats counts what the last DrawScene did.
type DrawStats struct {
	Drawn   int
	Skipped int
}

// base holds what every view draws with.
type base struct {
	kind   metadata.BackendKind
	ctx    *renderer.Context
	loader renderer.TechniqueLoader
	quad   *postprocess.Quad
	cmd    renderer.DrawCommand
	stats  DrawStats
}

func newBase(kind metadata.BackendKind, ctx *renderer.Context, loader renderer.TechniqueLoader) (base, error) {
	if ctx == nil || loader == nil {
		return base{}, fmt.Errorf("view `%s` needs a context and a technique loader", kind)
	}
	q, err := postprocess.NewQuad(ctx.Device())
	if err != nil {
		return base{}, err
	}
	return base{kind: kind, ctx: ctx, loader: loader, quad: q}, nil
}

func (b *base) Kind() metadata.BackendKind {
	return b.kind
}

func (b *base) Name() string {
	return b.kind.String()
}

func (b *base) Stats() DrawStats {
	return b.stats
}

// clear fills viewport of target with color.
func (b *base) clear(target renderer.ColorBuffer, viewport metadata.Viewport, color [4]float32) error {
	t, err := b.loader.Technique(clearTechnique)
	if err != nil {
		return err
	}
	cmd := b.quad.Command(t)
	cmd.Output = target
	cmd.Viewport = viewport
	cmd.Clear = true
	cmd.ClearColor.X, cmd.ClearColor.Y, cmd.ClearColor.Z, cmd.ClearColor.W = color[0], color[1], color[2], color[3]
	cmd.Params.SetArray(renderer.ParameterOrInvalid(t, "color"), color)
	return b.quad.Submit(cmd)
}

// drawRenderables draws every renderable the material lets through. keep
// filters the list; lightBuffer, when set, is bound as input 1.
func (b *base) drawRenderables(frame *renderer.Frame, scene *Scene, target renderer.ColorBuffer, viewport metadata.Viewport, keep func(*Renderable) bool, lightBuffer renderer.ColorBuffer) error {
	device := b.ctx.Device()
	for _, r := range scene.drawOrder() {
		if keep != nil && !keep(r) {
			continue
		}
		if frame != nil {
			r.Material.SetTime(float32(frame.Time))
		}
		b.cmd.Reset(nil)
		if !r.Material.Draw(&b.cmd) {
			b.stats.Skipped++
			continue
		}
		b.cmd.Geometry = r.Geometry
		b.cmd.Output = target
		b.cmd.Transform = r.Model
		b.cmd.Viewport = viewport
		b.cmd.Params.SetVec4(renderer.ParameterOrInvalid(b.cmd.Technique, "light"), scene.Light)
		if lightBuffer != nil {
			b.cmd.Inputs[1] = lightBuffer
		}
		if err := device.Draw(&b.cmd); err != nil {
			core.LogError("view `%s` failed to draw material `%s`: %s", b.kind, r.Material.Name, err)
			b.stats.Skipped++
			continue
		}
		b.stats.Drawn++
	}
	return nil
}

func (b *base) Dispose() {
	b.quad.Dispose()
}

func opaque(r *Renderable) bool {
	return !r.Material.HasTransparency
}

func transparent(r *Renderable) bool {
	return r.Material.HasTransparency
}
