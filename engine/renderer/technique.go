package renderer

import (
	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// ParameterHandle is a resolved parameter slot.
type ParameterHandle int

// InvalidParameter is returned for unknown parameter names. Writes through it
// are ignored.
const InvalidParameter ParameterHandle = -1

// Parameters is the fixed-size uniform block every technique receives.
type Parameters struct {
	Values [metadata.MAX_TECHNIQUE_PARAMETERS][4]float32
}

func (p *Parameters) valid(h ParameterHandle) bool {
	return h >= 0 && int(h) < metadata.MAX_TECHNIQUE_PARAMETERS
}

func (p *Parameters) SetVec4(h ParameterHandle, v math.Vec4) {
	if p.valid(h) {
		p.Values[h] = v.Array()
	}
}

func (p *Parameters) SetArray(h ParameterHandle, v [4]float32) {
	if p.valid(h) {
		p.Values[h] = v
	}
}

// SetFloat writes x and leaves the rest of the slot untouched.
func (p *Parameters) SetFloat(h ParameterHandle, f float32) {
	if p.valid(h) {
		p.Values[h][0] = f
	}
}

func (p *Parameters) SetVec2(h ParameterHandle, x, y float32) {
	if p.valid(h) {
		p.Values[h][0] = x
		p.Values[h][1] = y
	}
}

func (p *Parameters) Get(h ParameterHandle) [4]float32 {
	if p.valid(h) {
		return p.Values[h]
	}
	return [4]float32{}
}

// Slot reads a parameter by raw slot index.
func (p *Parameters) Slot(i int) [4]float32 {
	return p.Get(ParameterHandle(i))
}

// TechniqueInfo carries the device independent part of a technique: its
// configuration, the name to slot table and the default block. Devices embed it.
type TechniqueInfo struct {
	config   *metadata.TechniqueConfig
	slots    map[string]ParameterHandle
	defaults Parameters
}

func NewTechniqueInfo(config *metadata.TechniqueConfig) (*TechniqueInfo, error) {
	if err := config.Normalize(); err != nil {
		return nil, err
	}
	info := &TechniqueInfo{
		config: config,
		slots:  make(map[string]ParameterHandle, len(config.Parameters)),
	}
	for _, p := range config.Parameters {
		h := ParameterHandle(p.Slot)
		info.slots[p.Name] = h
		info.defaults.Values[h] = p.Default
	}
	return info, nil
}

func (t *TechniqueInfo) Name() string {
	return t.config.Name
}

func (t *TechniqueInfo) Config() *metadata.TechniqueConfig {
	return t.config
}

func (t *TechniqueInfo) Parameter(name string) (ParameterHandle, bool) {
	h, ok := t.slots[name]
	if !ok {
		return InvalidParameter, false
	}
	return h, true
}

func (t *TechniqueInfo) Defaults() Parameters {
	return t.defaults
}

// ParameterOrInvalid is a convenience for caching handles of optional parameters.
func ParameterOrInvalid(t Technique, name string) ParameterHandle {
	if t == nil {
		return InvalidParameter
	}
	h, ok := t.Parameter(name)
	if !ok {
		return InvalidParameter
	}
	return h
}

// UniformBlockSize is the byte size of Parameters plus the transform matrix,
// which is the uniform layout every WGSL technique declares.
const UniformBlockSize = metadata.MAX_TECHNIQUE_PARAMETERS*16 + 64

// PackUniforms writes the parameter block followed by the transform into dst.
func PackUniforms(dst []float32, params *Parameters, transform *math.Mat4) []float32 {
	dst = dst[:0]
	for i := range params.Values {
		dst = append(dst, params.Values[i][:]...)
	}
	return append(dst, transform.Data[:]...)
}
