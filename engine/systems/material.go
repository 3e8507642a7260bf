package systems

import (
	"fmt"
	"sort"

	"github.com/spaghettifunk/anima-fx/engine/assets"
	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/materials"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

type MaterialSystemConfig struct {
	/** @brief The maximum number of materials that can be loaded at once. */
	MaxMaterialCount int
	/** @brief The strategy table. Defaults to the built-in registry. */
	Registry *materials.Registry
}

type materialReference struct {
	material       *materials.Material
	referenceCount uint64
}

/**
 * @brief MaterialSystem creates materials from the descriptors under
 * assets/materials and loads their content against the engine context, so
 * every live material follows backend swaps.
 */
type MaterialSystem struct {
	Config *MaterialSystemConfig

	ctx          *renderer.Context
	assetManager *assets.AssetManager
	shaders      renderer.TechniqueLoader
	textures     renderer.TextureSource

	defaultMaterial *materials.Material
	materials       map[string]*materialReference
}

func NewMaterialSystem(config *MaterialSystemConfig, ctx *renderer.Context, am *assets.AssetManager, shaders renderer.TechniqueLoader, textures renderer.TextureSource) (*MaterialSystem, error) {
	if config.MaxMaterialCount == 0 {
		err := fmt.Errorf("func NewMaterialSystem - config.MaxMaterialCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	if config.Registry == nil {
		config.Registry = materials.DefaultRegistry()
	}
	return &MaterialSystem{
		Config:       config,
		ctx:          ctx,
		assetManager: am,
		shaders:      shaders,
		textures:     textures,
		materials:    make(map[string]*materialReference),
	}, nil
}

// Initialize creates the default material.
func (ms *MaterialSystem) Initialize() error {
	m := materials.NewMaterial(&metadata.MaterialConfig{
		Name: metadata.DefaultMaterialName,
		Kind: metadata.MATERIAL_KIND_BASIC,
	}).WithRegistry(ms.Config.Registry)
	if err := m.LoadContent(ms.ctx, ms.shaders, ms.textures); err != nil {
		return err
	}
	ms.defaultMaterial = m
	return nil
}

func (ms *MaterialSystem) GetDefault() *materials.Material {
	return ms.defaultMaterial
}

// Acquire returns the named material, loading its descriptor on first use,
// and takes a reference.
func (ms *MaterialSystem) Acquire(name string) (*materials.Material, error) {
	if name == metadata.DefaultMaterialName {
		return ms.defaultMaterial, nil
	}
	if ref, ok := ms.materials[name]; ok {
		ref.referenceCount++
		return ref.material, nil
	}
	res, err := ms.assetManager.LoadAsset(name, metadata.ResourceTypeMaterial, nil)
	if err != nil {
		return nil, fmt.Errorf("func MaterialSystem Acquire - %w", err)
	}
	defer ms.assetManager.UnloadAsset(res)
	cfg := res.Data.(*metadata.MaterialConfig)
	cfg.Name = name
	return ms.AcquireFromConfig(cfg)
}

// AcquireFromConfig creates a material from cfg, or takes a reference on the
// existing material with the same name.
func (ms *MaterialSystem) AcquireFromConfig(cfg *metadata.MaterialConfig) (*materials.Material, error) {
	if cfg == nil || cfg.Name == "" {
		return nil, fmt.Errorf("func MaterialSystem AcquireFromConfig - material has no name")
	}
	if ref, ok := ms.materials[cfg.Name]; ok {
		ref.referenceCount++
		return ref.material, nil
	}
	if len(ms.materials) >= ms.Config.MaxMaterialCount {
		return nil, fmt.Errorf("func MaterialSystem Acquire - cannot load `%s`, %d materials already loaded", cfg.Name, len(ms.materials))
	}
	m := materials.NewMaterial(cfg).WithRegistry(ms.Config.Registry)
	if err := m.LoadContent(ms.ctx, ms.shaders, ms.textures); err != nil {
		return nil, err
	}
	ms.materials[cfg.Name] = &materialReference{material: m, referenceCount: 1}
	return m, nil
}

// Release drops a reference. Auto-release materials are unloaded with the
// last reference.
func (ms *MaterialSystem) Release(name string) {
	ref, ok := ms.materials[name]
	if !ok {
		if name != metadata.DefaultMaterialName {
			core.LogWarn("func MaterialSystem Release - unknown material `%s`", name)
		}
		return
	}
	if ref.referenceCount > 0 {
		ref.referenceCount--
	}
	if ref.referenceCount == 0 && ref.material.AutoRelease {
		ref.material.Unload()
		delete(ms.materials, name)
	}
}

// Get returns a loaded material without taking a reference.
func (ms *MaterialSystem) Get(name string) *materials.Material {
	if ref, ok := ms.materials[name]; ok {
		return ref.material
	}
	return nil
}

// Materials returns the loaded materials sorted by name, default excluded.
func (ms *MaterialSystem) Materials() []*materials.Material {
	out := make([]*materials.Material, 0, len(ms.materials))
	for _, ref := range ms.materials {
		out = append(out, ref.material)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

/**
 * @brief Reads the named descriptors on the job system's workers. The
 * materials are created, holding one reference, when the jobs complete.
 */
func (ms *MaterialSystem) Preload(js *JobSystem, names []string) error {
	for _, name := range names {
		name := name
		err := js.Submit(metadata.JobTask{
			InputParams: name,
			OnStart: func(params interface{}) (interface{}, error) {
				return ms.assetManager.LoadAsset(params.(string), metadata.ResourceTypeMaterial, nil)
			},
			OnComplete: func(result interface{}) {
				res := result.(*metadata.Resource)
				defer ms.assetManager.UnloadAsset(res)
				if _, ok := ms.materials[name]; ok {
					return
				}
				cfg := res.Data.(*metadata.MaterialConfig)
				cfg.Name = name
				if _, err := ms.AcquireFromConfig(cfg); err != nil {
					core.LogError("preloading material `%s` failed: %s", name, err.Error())
				}
			},
			OnFailure: func(err error) {
				core.LogWarn("preloading material `%s` failed: %s", name, err.Error())
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (ms *MaterialSystem) Shutdown() error {
	for name, ref := range ms.materials {
		ref.material.Unload()
		delete(ms.materials, name)
	}
	if ms.defaultMaterial != nil {
		ms.defaultMaterial.Unload()
		ms.defaultMaterial = nil
	}
	return nil
}
