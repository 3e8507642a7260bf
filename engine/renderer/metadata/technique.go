package metadata

import (
	"fmt"
	"strings"
)

const (
	/** @brief The number of vec4 parameter slots every technique exposes. */
	MAX_TECHNIQUE_PARAMETERS int = 8
	/** @brief The number of sampled inputs a single draw may bind. */
	MAX_TECHNIQUE_INPUTS int = 4
	/** @brief The default vertex entry point name. */
	DEFAULT_VERTEX_ENTRY string = "vs_main"
	/** @brief The default fragment entry point name. */
	DEFAULT_FRAGMENT_ENTRY string = "fs_main"
)

/** @brief How a technique's output is combined with the destination. */
type BlendMode int

const (
	BLEND_MODE_NONE BlendMode = iota
	BLEND_MODE_ALPHA
	BLEND_MODE_ADDITIVE
	BLEND_MODE_MULTIPLY
)

func (b BlendMode) String() string {
	switch b {
	case BLEND_MODE_ALPHA:
		return "alpha"
	case BLEND_MODE_ADDITIVE:
		return "additive"
	case BLEND_MODE_MULTIPLY:
		return "multiply"
	default:
		return "none"
	}
}

func (b BlendMode) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *BlendMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "none", "opaque":
		*b = BLEND_MODE_NONE
	case "alpha":
		*b = BLEND_MODE_ALPHA
	case "additive", "add":
		*b = BLEND_MODE_ADDITIVE
	case "multiply":
		*b = BLEND_MODE_MULTIPLY
	default:
		return fmt.Errorf("unknown blend mode `%s`", string(text))
	}
	return nil
}

/**
 * @brief A single named parameter of a technique, bound to one vec4 slot
 * of the parameter block.
 */
type ParameterConfig struct {
	/** @brief The parameter name used by the lookup. */
	Name string `toml:"name"`
	/** @brief The vec4 slot in the parameter block, 0..MAX_TECHNIQUE_PARAMETERS-1. */
	Slot int `toml:"slot"`
	/** @brief The value written when a draw does not set the parameter. */
	Default [4]float32 `toml:"default"`
}

/**
 * @brief Technique configuration, typically loaded from
 * assets/techniques/<name>.toml. A technique is one compiled shader program
 * plus the fixed-function state it is drawn with.
 */
type TechniqueConfig struct {
	/** @brief The technique name. */
	Name string `toml:"name"`
	/** @brief The WGSL source file, relative to the asset root. */
	Shader string `toml:"shader"`
	/** @brief Vertex stage entry point. */
	VertexEntry string `toml:"vertex_entry"`
	/** @brief Fragment stage entry point. */
	FragmentEntry string `toml:"fragment_entry"`
	/** @brief The blend state. */
	Blend BlendMode `toml:"blend"`
	/** @brief The number of sampled inputs the shader declares. */
	Inputs int `toml:"inputs"`
	/** @brief Input sampling filter. */
	Filter string `toml:"filter"`
	/** @brief The parameters exposed by the technique. */
	Parameters []ParameterConfig `toml:"parameters"`
	/** @brief The CPU kernel the software device emulates this technique with. */
	Kernel string `toml:"kernel"`
}

// Normalize fills in defaults and validates slot indices.
func (c *TechniqueConfig) Normalize() error {
	if c.Name == "" {
		return fmt.Errorf("technique has no name")
	}
	if c.VertexEntry == "" {
		c.VertexEntry = DEFAULT_VERTEX_ENTRY
	}
	if c.FragmentEntry == "" {
		c.FragmentEntry = DEFAULT_FRAGMENT_ENTRY
	}
	if c.Inputs < 0 || c.Inputs > MAX_TECHNIQUE_INPUTS {
		return fmt.Errorf("technique `%s` declares %d inputs, max is %d", c.Name, c.Inputs, MAX_TECHNIQUE_INPUTS)
	}
	seen := make(map[int]string, len(c.Parameters))
	for _, p := range c.Parameters {
		if p.Slot < 0 || p.Slot >= MAX_TECHNIQUE_PARAMETERS {
			return fmt.Errorf("technique `%s` parameter `%s` uses slot %d out of range", c.Name, p.Name, p.Slot)
		}
		if other, ok := seen[p.Slot]; ok {
			return fmt.Errorf("technique `%s` parameters `%s` and `%s` share slot %d", c.Name, other, p.Name, p.Slot)
		}
		seen[p.Slot] = p.Name
	}
	if c.Kernel == "" {
		c.Kernel = c.Name
	}
	return nil
}

// FilterMode returns the sampling filter for the technique inputs.
func (c *TechniqueConfig) FilterMode() TextureFilter {
	if strings.EqualFold(c.Filter, "nearest") {
		return TextureFilterModeNearest
	}
	return TextureFilterModeLinear
}

// Parameter returns the configuration of the named parameter.
func (c *TechniqueConfig) Parameter(name string) (ParameterConfig, bool) {
	for _, p := range c.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterConfig{}, false
}
