package materials

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// DiffuseSlot is the texture slot sampled as input 0.
const DiffuseSlot = "diffuse"

/**
 * @brief Material is the backend independent description of a surface. The
 * strategy that actually draws it is rebuilt every time the rendering backend
 * changes; under a backend the material kind has no strategy for, the
 * material is simply not drawn.
 */
type Material struct {
	ID              uuid.UUID
	Name            string
	Kind            metadata.MaterialKind
	BaseColor       math.Vec4
	Textures        map[string]string
	Tiling          math.Vec2
	Offset          math.Vec2
	HasTransparency bool
	AutoRelease     bool
	Properties      map[string]float32

	registry *Registry
	ctx      *renderer.Context
	loader   renderer.TechniqueLoader
	textures renderer.TextureSource

	strategy Strategy
	time     float32
	rebuilds int
}

func NewMaterial(config *metadata.MaterialConfig) *Material {
	cfg := *config
	cfg.Normalize()
	m := &Material{
		ID:              uuid.New(),
		Name:            cfg.Name,
		Kind:            cfg.Kind,
		BaseColor:       cfg.BaseColorVec(),
		Textures:        make(map[string]string, len(cfg.Textures)),
		Tiling:          math.NewVec2(cfg.Tiling[0], cfg.Tiling[1]),
		Offset:          math.NewVec2(cfg.Offset[0], cfg.Offset[1]),
		HasTransparency: cfg.Transparent || cfg.BaseColor[3] < 1,
		AutoRelease:     cfg.AutoRelease,
		Properties:      make(map[string]float32, len(cfg.Properties)),
		registry:        DefaultRegistry(),
	}
	for k, v := range cfg.Textures {
		m.Textures[k] = v
	}
	for k, v := range cfg.Properties {
		m.Properties[k] = v
	}
	return m
}

// WithRegistry replaces the default registry. Call before LoadContent.
func (m *Material) WithRegistry(registry *Registry) *Material {
	if registry != nil {
		m.registry = registry
	}
	return m
}

// Property returns a kind specific property or def.
func (m *Material) Property(name string, def float32) float32 {
	if v, ok := m.Properties[name]; ok {
		return v
	}
	return def
}

// SetTime feeds the animation clock of animated kinds, in seconds.
func (m *Material) SetTime(seconds float32) {
	m.time = seconds
}

// Strategy returns the current strategy, nil when the material can not be
// drawn under the current backend.
func (m *Material) Strategy() Strategy {
	return m.strategy
}

// Rebuilds counts strategy rebuilds since the material was created.
func (m *Material) Rebuilds() int {
	return m.rebuilds
}

func (m *Material) Loaded() bool {
	return m.ctx != nil
}

/**
 * @brief Subscribes to backend changes and technique reloads, then builds the
 * strategy for the current backend. Calling it again only rebuilds.
 */
func (m *Material) LoadContent(ctx *renderer.Context, loader renderer.TechniqueLoader, textures renderer.TextureSource) error {
	if ctx == nil || loader == nil {
		return fmt.Errorf("func LoadContent - material `%s` needs a context and a technique loader", m.Name)
	}
	if m.ctx != nil && m.ctx != ctx {
		return fmt.Errorf("func LoadContent - material `%s` is %w with another context", m.Name, core.ErrAlreadyInitialized)
	}
	m.ctx = ctx
	m.loader = loader
	m.textures = textures

	ctx.OnBackendChanged(m, m.SetupShaderMaterial)
	ctx.OnTechniqueReloaded(m, func(name string) {
		if m.usesTechnique(ctx.Backend(), name) {
			m.SetupShaderMaterial(ctx.Backend())
		}
	})
	m.SetupShaderMaterial(ctx.Backend())
	return nil
}

// usesTechnique reports whether a reload of name concerns the strategy. A
// material whose factory failed is retried when its own technique reloads.
func (m *Material) usesTechnique(backend renderer.Backend, name string) bool {
	if m.strategy != nil {
		return m.strategy.Technique() != nil && m.strategy.Technique().Name() == name
	}
	if backend == nil || m.registry.Lookup(m.Kind, backend.Kind()) == nil {
		return false
	}
	return name == TechniqueName(backend.Kind(), m.Kind)
}

/**
 * @brief Rebuilds the strategy for backend. The previous strategy is disposed
 * first. Without a factory for the pair, or with a nil backend, the strategy
 * stays nil and nothing is logged; that is how a material opts out of a
 * backend.
 */
func (m *Material) SetupShaderMaterial(backend renderer.Backend) {
	if m.strategy != nil {
		m.strategy.Dispose()
		m.strategy = nil
	}
	m.rebuilds++
	if backend == nil || m.loader == nil {
		return
	}
	factory := m.registry.Lookup(m.Kind, backend.Kind())
	if factory == nil {
		return
	}
	s, err := factory(m, backend.Kind(), m.loader, m.textures)
	if err != nil {
		core.LogError("material `%s` failed to build its `%s` strategy: %s", m.Name, backend.Kind(), err)
		return
	}
	m.strategy = s
}

// Unload unsubscribes and disposes the strategy. The material can be loaded again.
func (m *Material) Unload() {
	if m.ctx != nil {
		m.ctx.UnsubscribeBackendChanged(m)
		m.ctx.UnsubscribeTechniqueReloaded(m)
	}
	if m.strategy != nil {
		m.strategy.Dispose()
		m.strategy = nil
	}
	m.ctx = nil
	m.loader = nil
	m.textures = nil
}

/**
 * @brief Binds the material into cmd. Returns false, leaving cmd untouched,
 * when there is nothing to draw: no strategy, or a strategy built for a
 * backend other than the active one.
 */
func (m *Material) Draw(cmd *renderer.DrawCommand) bool {
	s := m.strategy
	if s == nil {
		return false
	}
	if m.ctx != nil {
		if b := m.ctx.Backend(); b != nil && b.Kind() != s.Backend() {
			core.LogWarn("material `%s` strategy was built for `%s` but `%s` is active", m.Name, s.Backend(), b.Kind())
			return false
		}
	}
	s.Bind(cmd)
	return cmd.Technique != nil
}
