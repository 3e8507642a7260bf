package metadata

import "github.com/spaghettifunk/anima-fx/engine/math"

/** @brief The name of the default material. */
const DefaultMaterialName string = "default"

/** @brief Identifies a family of materials sharing shader logic (basic, lava, water...). */
type MaterialKind string

const (
	MATERIAL_KIND_BASIC MaterialKind = "basic"
	MATERIAL_KIND_LAVA  MaterialKind = "lava"
	MATERIAL_KIND_WATER MaterialKind = "water"
	MATERIAL_KIND_UNLIT MaterialKind = "unlit"
)

/**
 * @brief Material configuration typically loaded from
 * a file or created in code to load a material from.
 */
type MaterialConfig struct {
	/** @brief The name of the material. */
	Name string `toml:"name"`
	/** @brief The material kind, used to pick a shader strategy per backend. */
	Kind MaterialKind `toml:"kind"`
	/** @brief Indicates if the material should be automatically released when no references to it remain. */
	AutoRelease bool `toml:"auto_release"`
	/** @brief The base colour of the material. */
	BaseColor [4]float32 `toml:"base_color"`
	/** @brief Named texture slots (diffuse, normal, noise...) to texture names. */
	Textures map[string]string `toml:"textures"`
	/** @brief Texture coordinate tiling. */
	Tiling [2]float32 `toml:"tiling"`
	/** @brief Texture coordinate offset. */
	Offset [2]float32 `toml:"offset"`
	/** @brief Forces the transparent draw list. */
	Transparent bool `toml:"transparent"`
	/** @brief Kind-specific scalar properties (flow speed, wave height...). */
	Properties map[string]float32 `toml:"properties"`
}

func (c *MaterialConfig) BaseColorVec() math.Vec4 {
	return math.NewVec4(c.BaseColor[0], c.BaseColor[1], c.BaseColor[2], c.BaseColor[3])
}

// Normalize fills in defaults for fields a descriptor may omit.
func (c *MaterialConfig) Normalize() {
	if c.Kind == "" {
		c.Kind = MATERIAL_KIND_BASIC
	}
	if c.BaseColor == [4]float32{} {
		c.BaseColor = [4]float32{1, 1, 1, 1}
	}
	if c.Tiling == [2]float32{} {
		c.Tiling = [2]float32{1, 1}
	}
}
