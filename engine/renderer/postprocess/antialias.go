package postprocess

import (
	"fmt"

	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/targets"
)

const (
	fxaaTechnique     = "fxaa"
	temporalTechnique = "temporal_resolve"
)

type AntiAliasMode uint8

const (
	AntiAliasFXAA AntiAliasMode = iota
	AntiAliasTemporal
)

func ParseAntiAliasMode(s string) (AntiAliasMode, error) {
	switch s {
	case "fxaa", "":
		return AntiAliasFXAA, nil
	case "temporal", "taa":
		return AntiAliasTemporal, nil
	}
	return AntiAliasFXAA, fmt.Errorf("unknown anti-aliasing mode `%s`", s)
}

/**
 * @brief AntiAlias smooths edges either with a single FXAA filter or by
 * blending the frame with an accumulated history. Each eye keeps its own
 * history buffer, recreated and restarted from the current frame whenever
 * the output size changes.
 */
type AntiAlias struct {
	BasePass
	Mode          AntiAliasMode
	EdgeThreshold float32
	/** @brief History weight for temporal mode, in [0, 1). */
	Feedback float32

	// indexed by eye, eye 0 outside VR
	histories   []*targets.Persistent
	generations []uint32

	threshold renderer.ParameterHandle
	feedback  renderer.ParameterHandle
}

func NewAntiAlias(name string, priority int) *AntiAlias {
	if name == "" {
		name = "antialias"
	}
	return &AntiAlias{
		BasePass:      NewBasePass(name, priority),
		EdgeThreshold: 0.125,
		Feedback:      0.9,
	}
}

func (a *AntiAlias) Initialize(ctx *PassContext) error {
	if err := a.BasePass.Initialize(ctx); err != nil {
		return err
	}
	fx, err := a.Technique(fxaaTechnique)
	if err != nil {
		return err
	}
	a.threshold = renderer.ParameterOrInvalid(fx, "threshold")
	tr, err := a.Technique(temporalTechnique)
	if err != nil {
		return err
	}
	a.feedback = renderer.ParameterOrInvalid(tr, "feedback")
	a.histories, a.generations = nil, nil
	a.historyFor(0)
	return nil
}

// History returns the temporal history buffer of the first eye, nil until
// temporal mode drew.
func (a *AntiAlias) History() renderer.ColorBuffer {
	return a.EyeHistory(0)
}

// EyeHistory returns the temporal history buffer of eye, nil until temporal
// mode drew that eye.
func (a *AntiAlias) EyeHistory(eye int) renderer.ColorBuffer {
	if eye < 0 || eye >= len(a.histories) {
		return nil
	}
	return a.histories[eye].Current()
}

func (a *AntiAlias) historyFor(eye int) *targets.Persistent {
	for len(a.histories) <= eye {
		name := "history"
		if n := len(a.histories); n > 0 {
			name = fmt.Sprintf("history-eye%d", n)
		}
		a.histories = append(a.histories, a.NewPersistent(name, 1))
		a.generations = append(a.generations, 0)
	}
	return a.histories[eye]
}

func (a *AntiAlias) SetParam(name string, value interface{}) error {
	switch name {
	case "mode":
		s, err := stringParam(a.name, name, value)
		if err != nil {
			return err
		}
		if a.Mode, err = ParseAntiAliasMode(s); err != nil {
			return err
		}
	case "threshold":
		v, err := floatParam(a.name, name, value)
		if err != nil {
			return err
		}
		a.EdgeThreshold = v
	case "feedback":
		v, err := floatParam(a.name, name, value)
		if err != nil {
			return err
		}
		a.Feedback = v
	default:
		return a.BasePass.SetParam(name, value)
	}
	return nil
}

func (a *AntiAlias) Draw(frame *renderer.Frame, scene renderer.ColorBuffer) error {
	if err := a.Ready(); err != nil {
		return err
	}
	if a.Mode == AntiAliasTemporal {
		eye := 0
		if frame != nil && frame.PerEye {
			eye = frame.Eye
		}
		return a.drawTemporal(eye, scene)
	}
	t, err := a.Technique(fxaaTechnique)
	if err != nil {
		return err
	}
	params := t.Defaults()
	params.SetFloat(a.threshold, a.EdgeThreshold)
	return a.Filter(t, &params, scene)
}

func (a *AntiAlias) drawTemporal(eye int, scene renderer.ColorBuffer) error {
	t, err := a.Technique(temporalTechnique)
	if err != nil {
		return err
	}
	if eye < 0 {
		eye = 0
	}
	p := a.historyFor(eye)
	history, err := p.Acquire()
	if err != nil {
		return err
	}
	device := a.ctx.Device()
	if p.Generation() != a.generations[eye] {
		// fresh history: start accumulating from this frame
		a.generations[eye] = p.Generation()
		return device.Copy(scene, history)
	}

	p.Use()
	defer p.Done()
	params := t.Defaults()
	params.SetFloat(a.feedback, a.Feedback)
	if err := a.Filter(t, &params, scene, history); err != nil {
		return err
	}
	return device.Copy(scene, history)
}
