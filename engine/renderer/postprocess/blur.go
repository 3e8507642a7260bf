package postprocess

import (
	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
)

const blurTechnique = "blur"

/** @brief Separable gaussian blur of the whole scene. */
type Blur struct {
	BasePass
	/** @brief Horizontal plus vertical passes to run. */
	Iterations int
	/** @brief Tap spacing in texels. */
	Radius float32
	/** @brief Divides the working resolution. 1 blurs at full size. */
	Downsample uint32

	direction renderer.ParameterHandle
}

func NewBlur(name string, priority int) *Blur {
	if name == "" {
		name = "blur"
	}
	return &Blur{
		BasePass:   NewBasePass(name, priority),
		Iterations: 1,
		Radius:     1,
		Downsample: 1,
	}
}

func (b *Blur) Initialize(ctx *PassContext) error {
	if err := b.BasePass.Initialize(ctx); err != nil {
		return err
	}
	t, err := b.Technique(blurTechnique)
	if err != nil {
		return err
	}
	b.direction = renderer.ParameterOrInvalid(t, "direction")
	return nil
}

func (b *Blur) SetParam(name string, value interface{}) error {
	switch name {
	case "iterations":
		v, err := intParam(b.name, name, value)
		if err != nil {
			return err
		}
		b.Iterations = math.Max(v, 1)
	case "radius":
		v, err := floatParam(b.name, name, value)
		if err != nil {
			return err
		}
		b.Radius = v
	case "downsample":
		v, err := intParam(b.name, name, value)
		if err != nil {
			return err
		}
		b.Downsample = uint32(math.Max(v, 1))
	default:
		return b.BasePass.SetParam(name, value)
	}
	return nil
}

func (b *Blur) Draw(frame *renderer.Frame, scene renderer.ColorBuffer) error {
	if err := b.Ready(); err != nil {
		return err
	}
	t, err := b.Technique(blurTechnique)
	if err != nil {
		return err
	}
	d := scene.Desc()
	down := math.Max(b.Downsample, 1)
	w, h := math.Max(d.Width/down, 1), math.Max(d.Height/down, 1)

	out, err := blurChain(b.ctx, t, b.direction, scene, w, h, math.Max(b.Iterations, 1), b.Radius)
	if err != nil {
		return err
	}
	defer b.ctx.Pool.ReleaseTemporary(out)
	return b.ctx.Device().Copy(out, scene)
}

// blurChain blurs src into a pool buffer of w x h with iterations horizontal
// and vertical passes. The returned buffer is checked out; the scratch buffer
// is released.
func blurChain(ctx *PassContext, t renderer.Technique, direction renderer.ParameterHandle, src renderer.ColorBuffer, w, h uint32, iterations int, radius float32) (renderer.ColorBuffer, error) {
	ping, err := ctx.Pool.GetTemporary(w, h)
	if err != nil {
		return nil, err
	}
	pong, err := ctx.Pool.GetTemporary(w, h)
	if err != nil {
		ctx.Pool.ReleaseTemporary(ping)
		return nil, err
	}
	defer ctx.Pool.ReleaseTemporary(ping)

	params := t.Defaults()
	in := src
	for i := 0; i < iterations; i++ {
		params.SetArray(direction, [4]float32{1, 0, radius, 0})
		if err := ctx.Quad.Draw(t, &params, ping, in); err != nil {
			ctx.Pool.ReleaseTemporary(pong)
			return nil, err
		}
		params.SetArray(direction, [4]float32{0, 1, radius, 0})
		if err := ctx.Quad.Draw(t, &params, pong, ping); err != nil {
			ctx.Pool.ReleaseTemporary(pong)
			return nil, err
		}
		in = pong
	}
	return pong, nil
}
