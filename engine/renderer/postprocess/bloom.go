package postprocess

import (
	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/targets"
)

const (
	brightExtractTechnique   = "bright_extract"
	bloomDownsampleTechnique = "bloom_downsample"
	compositeTechnique       = "composite"
	MAX_BLOOM_LEVELS         = 6
)

/**
 * @brief Bloom extracts the bright parts of the scene at half resolution,
 * blurs them over a chain of smaller levels, accumulates the chain back up
 * and adds the result to the scene.
 */
type Bloom struct {
	BasePass
	Threshold float32
	Intensity float32
	/** @brief Number of chain levels, each half the size of the previous one. */
	Levels int
	Radius float32

	threshold renderer.ParameterHandle
	direction renderer.ParameterHandle
	intensity renderer.ParameterHandle
}

func NewBloom(name string, priority int) *Bloom {
	if name == "" {
		name = "bloom"
	}
	return &Bloom{
		BasePass:  NewBasePass(name, priority),
		Threshold: 0.8,
		Intensity: 1,
		Levels:    3,
		Radius:    1,
	}
}

func (b *Bloom) Initialize(ctx *PassContext) error {
	if err := b.BasePass.Initialize(ctx); err != nil {
		return err
	}
	for _, name := range []string{brightExtractTechnique, bloomDownsampleTechnique, compositeTechnique, blurTechnique} {
		t, err := b.Technique(name)
		if err != nil {
			return err
		}
		switch name {
		case brightExtractTechnique:
			b.threshold = renderer.ParameterOrInvalid(t, "threshold")
		case compositeTechnique:
			b.intensity = renderer.ParameterOrInvalid(t, "intensity")
		case blurTechnique:
			b.direction = renderer.ParameterOrInvalid(t, "direction")
		}
	}
	return nil
}

func (b *Bloom) SetParam(name string, value interface{}) error {
	switch name {
	case "threshold", "intensity", "radius":
		v, err := floatParam(b.name, name, value)
		if err != nil {
			return err
		}
		switch name {
		case "threshold":
			b.Threshold = v
		case "intensity":
			b.Intensity = v
		default:
			b.Radius = v
		}
	case "levels":
		v, err := intParam(b.name, name, value)
		if err != nil {
			return err
		}
		b.Levels = math.Clamp(v, 1, MAX_BLOOM_LEVELS)
	default:
		return b.BasePass.SetParam(name, value)
	}
	return nil
}

func (b *Bloom) Draw(frame *renderer.Frame, scene renderer.ColorBuffer) error {
	if err := b.Ready(); err != nil {
		return err
	}
	extract, err := b.Technique(brightExtractTechnique)
	if err != nil {
		return err
	}
	downsample, err := b.Technique(bloomDownsampleTechnique)
	if err != nil {
		return err
	}
	composite, err := b.Technique(compositeTechnique)
	if err != nil {
		return err
	}
	blur, err := b.Technique(blurTechnique)
	if err != nil {
		return err
	}
	pool := b.ctx.Pool
	quad := b.ctx.Quad

	d := scene.Desc()
	w, h := math.HalveDimension(d.Width), math.HalveDimension(d.Height)
	levels := math.Clamp(b.Levels, 1, MAX_BLOOM_LEVELS)

	// chain holds every buffer this pass has checked out and not yet released
	chain := make([]renderer.ColorBuffer, 0, levels)
	defer func() {
		releaseTemporaries(pool, chain)
	}()

	bright, err := pool.GetTemporary(w, h)
	if err != nil {
		return err
	}
	chain = append(chain, bright)
	params := extract.Defaults()
	params.SetFloat(b.threshold, b.Threshold)
	if err := quad.Draw(extract, &params, bright, scene); err != nil {
		return err
	}

	for i := 1; i < levels; i++ {
		w, h = math.HalveDimension(w), math.HalveDimension(h)
		next, err := pool.GetTemporary(w, h)
		if err != nil {
			return err
		}
		chain = append(chain, next)
		if err := quad.Draw(downsample, nil, next, chain[i-1]); err != nil {
			return err
		}
	}

	for i, level := range chain {
		ld := level.Desc()
		blurred, err := blurChain(b.ctx, blur, b.direction, level, ld.Width, ld.Height, 1, b.Radius)
		if err != nil {
			return err
		}
		pool.ReleaseTemporary(level)
		chain[i] = blurred
	}

	params = composite.Defaults()
	params.SetFloat(b.intensity, 1)
	for i := len(chain) - 1; i > 0; i-- {
		ud := chain[i-1].Desc()
		up, err := pool.GetTemporary(ud.Width, ud.Height)
		if err != nil {
			return err
		}
		if err := quad.Draw(composite, &params, up, chain[i-1], chain[i]); err != nil {
			pool.ReleaseTemporary(up)
			return err
		}
		pool.ReleaseTemporary(chain[i-1])
		pool.ReleaseTemporary(chain[i])
		chain[i-1] = up
		chain = chain[:i]
	}

	params.SetFloat(b.intensity, b.Intensity)
	return b.Filter(composite, &params, scene, chain[0])
}

func releaseTemporaries(pool *targets.Pool, buffers []renderer.ColorBuffer) {
	for _, buf := range buffers {
		pool.ReleaseTemporary(buf)
	}
}
