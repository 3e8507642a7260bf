package materials

import (
	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// Strategy is the backend specific half of a material: the technique it
// draws with and how material data maps onto that technique's parameters.
type Strategy interface {
	Backend() metadata.BackendKind
	Technique() renderer.Technique
	// Apply writes the material parameters into params.
	Apply(params *renderer.Parameters)
	// Bind prepares cmd: technique, parameters and texture inputs. Geometry,
	// output and transform are left to the caller.
	Bind(cmd *renderer.DrawCommand)
	Dispose()
}

// ShaderStrategy is the strategy of every built-in kind.
type ShaderStrategy struct {
	backend   metadata.BackendKind
	material  *Material
	technique renderer.Technique
	diffuse   renderer.ColorBuffer
	disposed  bool

	baseColor      renderer.ParameterHandle
	tilingOffset   renderer.ParameterHandle
	materialParams renderer.ParameterHandle
}

// NewShaderStrategy loads the `<backend>_<kind>` technique and resolves the
// diffuse texture. A missing texture is logged and drawn as base color only.
func NewShaderStrategy(material *Material, backend metadata.BackendKind, loader renderer.TechniqueLoader, textures renderer.TextureSource) (Strategy, error) {
	t, err := loader.Technique(TechniqueName(backend, material.Kind))
	if err != nil {
		return nil, err
	}
	s := &ShaderStrategy{
		backend:        backend,
		material:       material,
		technique:      t,
		baseColor:      renderer.ParameterOrInvalid(t, "base_color"),
		tilingOffset:   renderer.ParameterOrInvalid(t, "tiling_offset"),
		materialParams: renderer.ParameterOrInvalid(t, "material_params"),
	}
	if name, ok := material.Textures[DiffuseSlot]; ok && name != "" && textures != nil {
		tex, err := textures.Texture(name)
		if err != nil {
			core.LogWarn("material `%s` could not load texture `%s`: %s", material.Name, name, err)
		} else {
			s.diffuse = tex
		}
	}
	return s, nil
}

func (s *ShaderStrategy) Backend() metadata.BackendKind {
	return s.backend
}

func (s *ShaderStrategy) Technique() renderer.Technique {
	return s.technique
}

func (s *ShaderStrategy) Apply(params *renderer.Parameters) {
	m := s.material
	params.SetVec4(s.baseColor, m.BaseColor)
	params.SetArray(s.tilingOffset, [4]float32{m.Tiling.X, m.Tiling.Y, m.Offset.X, m.Offset.Y})

	switch m.Kind {
	case metadata.MATERIAL_KIND_LAVA:
		params.SetArray(s.materialParams, [4]float32{
			m.time,
			m.Property("glow", 1),
			m.Property("flow_speed", 0.1),
			0,
		})
	case metadata.MATERIAL_KIND_WATER:
		params.SetArray(s.materialParams, [4]float32{
			m.time,
			m.Property("wave_amplitude", 0.02),
			m.Property("wave_frequency", 12),
			0,
		})
	}
}

func (s *ShaderStrategy) Bind(cmd *renderer.DrawCommand) {
	if s.disposed {
		return
	}
	cmd.Technique = s.technique
	cmd.Params = s.technique.Defaults()
	s.Apply(&cmd.Params)
	cmd.Inputs[0] = s.diffuse
}

// Dispose drops the references. Techniques and textures are shared and owned
// by their systems.
func (s *ShaderStrategy) Dispose() {
	s.disposed = true
	s.technique = nil
	s.diffuse = nil
}
