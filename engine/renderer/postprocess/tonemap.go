package postprocess

import (
	"fmt"

	"github.com/spaghettifunk/anima-fx/engine/renderer"
)

const tonemapTechnique = "tonemap"

type TonemapOperator uint8

const (
	TonemapReinhard TonemapOperator = iota
	TonemapACES
	TonemapFilmic
)

func ParseTonemapOperator(s string) (TonemapOperator, error) {
	switch s {
	case "reinhard", "":
		return TonemapReinhard, nil
	case "aces":
		return TonemapACES, nil
	case "filmic":
		return TonemapFilmic, nil
	}
	return TonemapReinhard, fmt.Errorf("unknown tonemap operator `%s`", s)
}

type Tonemap struct {
	BasePass
	Operator TonemapOperator
	Exposure float32
	Gamma    float32

	settings renderer.ParameterHandle
}

func NewTonemap(name string, priority int) *Tonemap {
	if name == "" {
		name = "tonemap"
	}
	return &Tonemap{
		BasePass: NewBasePass(name, priority),
		Exposure: 1,
		Gamma:    2.2,
	}
}

func (t *Tonemap) Initialize(ctx *PassContext) error {
	if err := t.BasePass.Initialize(ctx); err != nil {
		return err
	}
	tech, err := t.Technique(tonemapTechnique)
	if err != nil {
		return err
	}
	t.settings = renderer.ParameterOrInvalid(tech, "settings")
	return nil
}

func (t *Tonemap) SetParam(name string, value interface{}) error {
	switch name {
	case "operator":
		s, err := stringParam(t.name, name, value)
		if err != nil {
			return err
		}
		if t.Operator, err = ParseTonemapOperator(s); err != nil {
			return err
		}
	case "exposure":
		v, err := floatParam(t.name, name, value)
		if err != nil {
			return err
		}
		t.Exposure = v
	case "gamma":
		v, err := floatParam(t.name, name, value)
		if err != nil {
			return err
		}
		t.Gamma = v
	default:
		return t.BasePass.SetParam(name, value)
	}
	return nil
}

func (t *Tonemap) Draw(frame *renderer.Frame, scene renderer.ColorBuffer) error {
	if err := t.Ready(); err != nil {
		return err
	}
	tech, err := t.Technique(tonemapTechnique)
	if err != nil {
		return err
	}
	params := tech.Defaults()
	params.SetArray(t.settings, [4]float32{t.Exposure, t.Gamma, float32(t.Operator), 0})
	return t.Filter(tech, &params, scene)
}
