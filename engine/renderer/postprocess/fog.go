package postprocess

import (
	"fmt"

	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

const fogTechnique = "fog"

type FogMode uint8

const (
	FogModeLinear FogMode = iota
	FogModeExp
	FogModeExp2
)

func ParseFogMode(s string) (FogMode, error) {
	switch s {
	case "linear", "":
		return FogModeLinear, nil
	case "exp":
		return FogModeExp, nil
	case "exp2":
		return FogModeExp2, nil
	}
	return FogModeLinear, fmt.Errorf("unknown fog mode `%s`", s)
}

// Fog blends the scene toward Color with distance. Without a depth buffer the
// distance is taken from the screen height, top being farthest.
type Fog struct {
	BasePass
	Mode    FogMode
	Density float32
	Start   float32
	End     float32
	Color   [4]float32
	// Depth is sampled as input 1 when set.
	Depth renderer.ColorBuffer

	settings renderer.ParameterHandle
	color    renderer.ParameterHandle
}

func NewFog(name string, priority int) *Fog {
	if name == "" {
		name = "fog"
	}
	return &Fog{
		BasePass: NewBasePass(name, priority),
		Density:  1,
		Start:    0,
		End:      1,
		Color:    [4]float32{0.5, 0.6, 0.7, 1},
	}
}

func (f *Fog) Initialize(ctx *PassContext) error {
	if err := f.BasePass.Initialize(ctx); err != nil {
		return err
	}
	t, err := f.Technique(fogTechnique)
	if err != nil {
		return err
	}
	f.settings = renderer.ParameterOrInvalid(t, "settings")
	f.color = renderer.ParameterOrInvalid(t, "color")
	return nil
}

func (f *Fog) SetParam(name string, value interface{}) error {
	switch name {
	case "mode":
		s, err := stringParam(f.name, name, value)
		if err != nil {
			return err
		}
		if f.Mode, err = ParseFogMode(s); err != nil {
			return err
		}
	case "density", "start", "end":
		v, err := floatParam(f.name, name, value)
		if err != nil {
			return err
		}
		switch name {
		case "density":
			f.Density = v
		case "start":
			f.Start = v
		default:
			f.End = v
		}
	case "color":
		c, ok := metadata.AsColor(value, f.Color)
		if !ok {
			return paramTypeError(f.name, name, value)
		}
		f.Color = c
	default:
		return f.BasePass.SetParam(name, value)
	}
	return nil
}

func (f *Fog) Draw(frame *renderer.Frame, scene renderer.ColorBuffer) error {
	if err := f.Ready(); err != nil {
		return err
	}
	t, err := f.Technique(fogTechnique)
	if err != nil {
		return err
	}
	params := t.Defaults()
	params.SetArray(f.settings, [4]float32{float32(f.Mode), f.Density, f.Start, f.End})
	params.SetArray(f.color, f.Color)
	if f.Depth != nil {
		return f.Filter(t, &params, scene, f.Depth)
	}
	return f.Filter(t, &params, scene)
}
