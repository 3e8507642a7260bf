package views

import (
	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-fx/engine/renderer/targets"
)

/**
 * @brief LightPrePass accumulates lighting into a buffer first, then draws
 * each material once, sampling the light buffer in screen space.
 */
type LightPrePass struct {
	base
	light *targets.Persistent
}

func NewLightPrePass(ctx *renderer.Context, loader renderer.TechniqueLoader) (*LightPrePass, error) {
	b, err := newBase(metadata.BACKEND_KIND_LIGHT_PRE_PASS, ctx, loader)
	if err != nil {
		return nil, err
	}
	l := &LightPrePass{base: b}
	l.light = targets.NewPersistent(ctx.Device(), "light-buffer", ctx.OutputSize)
	ctx.OnOutputSizeChanged(l, func(width, height uint32) {
		if l.light.Current() == nil {
			return
		}
		if err := l.light.Recreate(); err != nil {
			core.LogError("failed to recreate the light buffer at %dx%d: %s", width, height, err)
		}
	})
	return l, nil
}

// LightBuffer returns the accumulated light, nil before the first frame.
func (l *LightPrePass) LightBuffer() renderer.ColorBuffer {
	return l.light.Current()
}

func (l *LightPrePass) DrawScene(frame *renderer.Frame, scene *Scene, target renderer.ColorBuffer) error {
	l.stats = DrawStats{}
	buf, err := l.light.Acquire()
	if err != nil {
		return err
	}
	l.light.Use()
	defer l.light.Done()

	accum, err := l.loader.Technique(lightTechnique)
	if err != nil {
		return err
	}
	cmd := l.quad.Command(accum)
	cmd.Output = buf
	cmd.Clear = true
	light := scene.Light
	light.X += scene.Ambient
	light.Y += scene.Ambient
	light.Z += scene.Ambient
	cmd.Params.SetVec4(renderer.ParameterOrInvalid(accum, "light"), light)
	if err := l.quad.Submit(cmd); err != nil {
		return err
	}

	if err := l.clear(target, metadata.Viewport{}, scene.ClearColor.Array()); err != nil {
		return err
	}
	return l.drawRenderables(frame, scene, target, metadata.Viewport{}, nil, buf)
}

func (l *LightPrePass) Dispose() {
	l.ctx.UnsubscribeOutputSizeChanged(l)
	l.light.Dispose()
	l.base.Dispose()
}
