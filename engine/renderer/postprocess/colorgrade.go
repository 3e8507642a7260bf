package postprocess

import (
	"github.com/spaghettifunk/anima-fx/engine/renderer"
)

const colorGradeTechnique = "colorgrade"

// ColorGrade applies the classic color filters. Weights are blend factors in
// [0, 1]; zero disables a filter.
type ColorGrade struct {
	BasePass
	Grayscale float32
	Sepia     float32
	Invert    float32
	Vignette  float32

	Contrast       float32
	Saturation     float32
	Brightness     float32
	VignetteRadius float32

	weights renderer.ParameterHandle
	grading renderer.ParameterHandle
}

func NewColorGrade(name string, priority int) *ColorGrade {
	if name == "" {
		name = "colorgrade"
	}
	return &ColorGrade{
		BasePass:       NewBasePass(name, priority),
		Contrast:       1,
		Saturation:     1,
		VignetteRadius: 0.75,
	}
}

func (c *ColorGrade) Initialize(ctx *PassContext) error {
	if err := c.BasePass.Initialize(ctx); err != nil {
		return err
	}
	t, err := c.Technique(colorGradeTechnique)
	if err != nil {
		return err
	}
	c.weights = renderer.ParameterOrInvalid(t, "weights")
	c.grading = renderer.ParameterOrInvalid(t, "grading")
	return nil
}

func (c *ColorGrade) field(name string) *float32 {
	switch name {
	case "grayscale":
		return &c.Grayscale
	case "sepia":
		return &c.Sepia
	case "invert":
		return &c.Invert
	case "vignette":
		return &c.Vignette
	case "contrast":
		return &c.Contrast
	case "saturation":
		return &c.Saturation
	case "brightness":
		return &c.Brightness
	case "vignette_radius":
		return &c.VignetteRadius
	}
	return nil
}

func (c *ColorGrade) SetParam(name string, value interface{}) error {
	f := c.field(name)
	if f == nil {
		return c.BasePass.SetParam(name, value)
	}
	v, err := floatParam(c.name, name, value)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func (c *ColorGrade) Draw(frame *renderer.Frame, scene renderer.ColorBuffer) error {
	if err := c.Ready(); err != nil {
		return err
	}
	t, err := c.Technique(colorGradeTechnique)
	if err != nil {
		return err
	}
	params := t.Defaults()
	params.SetArray(c.weights, [4]float32{c.Grayscale, c.Sepia, c.Invert, c.Vignette})
	params.SetArray(c.grading, [4]float32{c.Contrast, c.Saturation, c.Brightness, c.VignetteRadius})
	return c.Filter(t, &params, scene)
}
