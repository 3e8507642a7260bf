package views

import (
	"sort"

	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/materials"
)

// Renderable is one material drawn over one geometry.
type Renderable struct {
	Material *materials.Material
	Geometry renderer.Geometry
	// Model transforms the geometry positions, which are in clip space.
	Model math.Mat4
}

func NewRenderable(material *materials.Material, geometry renderer.Geometry) *Renderable {
	return &Renderable{
		Material: material,
		Geometry: geometry,
		Model:    math.NewMat4Identity(),
	}
}

/** @brief Scene is what a view draws in one frame. */
type Scene struct {
	Renderables []*Renderable
	/** @brief rgb plus intensity of the single directional light. */
	Light math.Vec4
	/** @brief Ambient term added by lighting backends. */
	Ambient    float32
	ClearColor math.Vec4
}

func NewScene() *Scene {
	return &Scene{
		Light:      math.NewVec4(1, 1, 1, 1),
		Ambient:    0.1,
		ClearColor: math.NewVec4(0, 0, 0, 1),
	}
}

func (s *Scene) Add(r *Renderable) {
	s.Renderables = append(s.Renderables, r)
}

// drawOrder returns opaque renderables first, then transparent ones, each
// group in insertion order.
func (s *Scene) drawOrder() []*Renderable {
	out := make([]*Renderable, 0, len(s.Renderables))
	for _, r := range s.Renderables {
		if r != nil && r.Material != nil && r.Geometry != nil {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return !out[i].Material.HasTransparency && out[j].Material.HasTransparency
	})
	return out
}
