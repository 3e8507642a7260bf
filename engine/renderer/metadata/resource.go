package metadata

import "path/filepath"

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief Not an asset the engine knows how to load. */
	ResourceTypeNone ResourceType = iota
	/** @brief Text resource type. */
	ResourceTypeText
	/** @brief Binary resource type (precompiled SPIR-V). */
	ResourceTypeBinary
	/** @brief Image resource type. */
	ResourceTypeImage
	/** @brief Material descriptor resource type. */
	ResourceTypeMaterial
	/** @brief Shader source resource type (WGSL). */
	ResourceTypeShader
	/** @brief Technique descriptor resource type. */
	ResourceTypeTechnique
	/** @brief Bitmap font resource type. */
	ResourceTypeBitmapFont
	/** @brief Engine configuration resource type. */
	ResourceTypeConfig
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeText:
		return "text"
	case ResourceTypeBinary:
		return "binary"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeMaterial:
		return "material"
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeTechnique:
		return "technique"
	case ResourceTypeBitmapFont:
		return "bitmap_font"
	case ResourceTypeConfig:
		return "config"
	default:
		return "none"
	}
}

/** @brief The directory, relative to the asset root, holding each resource type. */
func (t ResourceType) Dir() string {
	switch t {
	case ResourceTypeImage:
		return "textures"
	case ResourceTypeMaterial:
		return "materials"
	case ResourceTypeShader, ResourceTypeBinary:
		return "shaders"
	case ResourceTypeTechnique:
		return "techniques"
	case ResourceTypeBitmapFont:
		return "fonts"
	case ResourceTypeConfig:
		return "config"
	default:
		return ""
	}
}

// ResourceTypeFor classifies a file by its location and extension. TOML files
// are told apart by the directory they live in.
func ResourceTypeFor(path string) ResourceType {
	switch filepath.Ext(path) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff":
		return ResourceTypeImage
	case ".wgsl":
		return ResourceTypeShader
	case ".spv":
		return ResourceTypeBinary
	case ".fnt":
		return ResourceTypeBitmapFont
	case ".txt":
		return ResourceTypeText
	case ".toml":
		switch filepath.Base(filepath.Dir(path)) {
		case "techniques":
			return ResourceTypeTechnique
		case "materials":
			return ResourceTypeMaterial
		case "config":
			return ResourceTypeConfig
		}
	}
	return ResourceTypeNone
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The resource type. */
	Type ResourceType
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data. */
	Data interface{}
}

/** @brief The data a technique resource decodes to. */
type TechniqueResourceData struct {
	Config *TechniqueConfig
	/** @brief The shader source referenced by the descriptor, nil when it has none. */
	Source []byte
}
