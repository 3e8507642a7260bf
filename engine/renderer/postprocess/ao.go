package postprocess

import (
	"fmt"

	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/targets"
)

const (
	aoTechnique          = "ao"
	aoCompositeTechnique = "ao_composite"
	MAX_AO_SAMPLES       = 12
	DEFAULT_AO_SEED      = 0x5eed
)

type AOMode uint8

const (
	AOModeSSAO AOMode = iota
	AOModeObscurance
)

func ParseAOMode(s string) (AOMode, error) {
	switch s {
	case "ssao", "":
		return AOModeSSAO, nil
	case "obscurance":
		return AOModeObscurance, nil
	}
	return AOModeSSAO, fmt.Errorf("unknown ambient occlusion mode `%s`", s)
}

/**
 * @brief Screen-space ambient occlusion. The occlusion term is computed into
 * a persistent buffer at output resolution, blurred, then multiplied into the
 * scene.
 */
type AmbientOcclusion struct {
	BasePass
	Mode AOMode
	/** @brief Sample radius in texels. */
	Radius     float32
	Intensity  float32
	Samples    int
	BlurPasses int
	/** @brief Seeds the sample kernel. Equal seeds give equal kernels. */
	Seed uint64

	occlusion *targets.Persistent
	kernel    [MAX_AO_SAMPLES / 2][4]float32
	built     int
	builtSeed uint64

	settings  renderer.ParameterHandle
	samples   [MAX_AO_SAMPLES / 2]renderer.ParameterHandle
	direction renderer.ParameterHandle
}

func NewAmbientOcclusion(name string, priority int) *AmbientOcclusion {
	if name == "" {
		name = "ao"
	}
	return &AmbientOcclusion{
		BasePass:   NewBasePass(name, priority),
		Radius:     4,
		Intensity:  1,
		Samples:    8,
		BlurPasses: 1,
		Seed:       DEFAULT_AO_SEED,
	}
}

func (a *AmbientOcclusion) Initialize(ctx *PassContext) error {
	if err := a.BasePass.Initialize(ctx); err != nil {
		return err
	}
	t, err := a.Technique(aoTechnique)
	if err != nil {
		return err
	}
	a.settings = renderer.ParameterOrInvalid(t, "settings")
	for i := range a.samples {
		a.samples[i] = renderer.ParameterOrInvalid(t, fmt.Sprintf("kernel%d", i))
	}
	if _, err := a.Technique(aoCompositeTechnique); err != nil {
		return err
	}
	bt, err := a.Technique(blurTechnique)
	if err != nil {
		return err
	}
	a.direction = renderer.ParameterOrInvalid(bt, "direction")
	a.occlusion = a.NewPersistent("occlusion", 1)
	a.buildKernel()
	return nil
}

// Occlusion returns the persistent occlusion buffer, nil before the first draw.
func (a *AmbientOcclusion) Occlusion() renderer.ColorBuffer {
	if a.occlusion == nil {
		return nil
	}
	return a.occlusion.Current()
}

// buildKernel packs two xy offsets per parameter slot.
func (a *AmbientOcclusion) buildKernel() {
	n := math.Clamp(a.Samples, 0, MAX_AO_SAMPLES)
	a.kernel = [MAX_AO_SAMPLES / 2][4]float32{}
	for i, s := range math.NewRandom(a.Seed).HemisphereKernel(n, 1) {
		slot := &a.kernel[i/2]
		if i%2 == 0 {
			slot[0], slot[1] = s.X, s.Y
		} else {
			slot[2], slot[3] = s.X, s.Y
		}
	}
	a.built = n
	a.builtSeed = a.Seed
}

func (a *AmbientOcclusion) SetParam(name string, value interface{}) error {
	switch name {
	case "mode":
		s, err := stringParam(a.name, name, value)
		if err != nil {
			return err
		}
		m, err := ParseAOMode(s)
		if err != nil {
			return err
		}
		a.Mode = m
	case "radius", "intensity":
		v, err := floatParam(a.name, name, value)
		if err != nil {
			return err
		}
		if name == "radius" {
			a.Radius = v
		} else {
			a.Intensity = v
		}
	case "samples", "blur_passes", "seed":
		v, err := intParam(a.name, name, value)
		if err != nil {
			return err
		}
		switch name {
		case "samples":
			a.Samples = math.Clamp(v, 1, MAX_AO_SAMPLES)
		case "blur_passes":
			a.BlurPasses = math.Max(v, 0)
		default:
			a.Seed = uint64(v)
		}
	default:
		return a.BasePass.SetParam(name, value)
	}
	return nil
}

func (a *AmbientOcclusion) Draw(frame *renderer.Frame, scene renderer.ColorBuffer) error {
	if err := a.Ready(); err != nil {
		return err
	}
	ao, err := a.Technique(aoTechnique)
	if err != nil {
		return err
	}
	composite, err := a.Technique(aoCompositeTechnique)
	if err != nil {
		return err
	}
	blur, err := a.Technique(blurTechnique)
	if err != nil {
		return err
	}
	if a.built != math.Clamp(a.Samples, 0, MAX_AO_SAMPLES) || a.builtSeed != a.Seed {
		a.buildKernel()
	}

	buf, err := a.occlusion.Acquire()
	if err != nil {
		return err
	}
	a.occlusion.Use()
	defer a.occlusion.Done()

	params := ao.Defaults()
	params.SetArray(a.settings, [4]float32{a.Radius, a.Intensity, float32(a.built), float32(a.Mode)})
	for i, h := range a.samples {
		params.SetArray(h, a.kernel[i])
	}
	if err := a.ctx.Quad.Draw(ao, &params, buf, scene); err != nil {
		return err
	}

	if a.BlurPasses > 0 {
		d := buf.Desc()
		blurred, err := blurChain(a.ctx, blur, a.direction, buf, d.Width, d.Height, a.BlurPasses, 1)
		if err != nil {
			return err
		}
		err = a.ctx.Device().Copy(blurred, buf)
		a.ctx.Pool.ReleaseTemporary(blurred)
		if err != nil {
			return err
		}
	}
	return a.Filter(composite, nil, scene, buf)
}
