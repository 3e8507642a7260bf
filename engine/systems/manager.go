package systems

import (
	"errors"

	"github.com/spaghettifunk/anima-fx/engine/assets"
	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

type SystemManagerConfig struct {
	AssetRoot  string
	WatchAsset bool
	// Workers is the size of the job system pool.
	Workers           int
	Renderer          RendererSystemConfig
	DefaultBackend    metadata.BackendKind
	Fonts             []metadata.BitmapFontConfig
	PreloadTechniques []string
	PreloadMaterials  []string
}

type SystemManager struct {
	assetManager     *assets.AssetManager
	jobSystem        *JobSystem
	rendererSystem   *RendererSystem
	shaderSystem     *ShaderSystem
	textureSystem    *TextureSystem
	geometrySystem   *GeometrySystem
	materialSystem   *MaterialSystem
	fontSystem       *FontSystem
	renderViewSystem *RenderViewSystem

	config *SystemManagerConfig
}

func NewSystemManager(device renderer.Device, config *SystemManagerConfig) (*SystemManager, error) {
	if config.Workers <= 0 {
		config.Workers = 2
	}
	am := assets.NewAssetManager(config.AssetRoot)

	js, err := NewJobSystem(config.Workers, 64)
	if err != nil {
		return nil, err
	}
	rs, err := NewRendererSystem(device, &config.Renderer)
	if err != nil {
		return nil, err
	}
	ctx := rs.Context()
	ss, err := NewShaderSystem(&ShaderSystemConfig{
		MaxTechniqueCount: 256,
	}, ctx, am)
	if err != nil {
		return nil, err
	}
	ts, err := NewTextureSystem(&TextureSystemConfig{
		MaxTextureCount: 256,
	}, device, am)
	if err != nil {
		return nil, err
	}
	gs, err := NewGeometrySystem(&GeometrySystemConfig{
		MaxGeometryCount: 1024,
	}, device)
	if err != nil {
		return nil, err
	}
	ms, err := NewMaterialSystem(&MaterialSystemConfig{
		MaxMaterialCount: 256,
	}, ctx, am, ss, ts)
	if err != nil {
		return nil, err
	}
	fs, err := NewFontSystem(&FontSystemConfig{
		BitmapFontConfigs:  config.Fonts,
		MaxBitmapFontCount: 8,
	}, device, am)
	if err != nil {
		return nil, err
	}
	rvs, err := NewRenderViewSystem(RenderViewSystemConfig{
		DefaultBackend: config.DefaultBackend,
	}, ctx, ss)
	if err != nil {
		return nil, err
	}
	return &SystemManager{
		assetManager:     am,
		jobSystem:        js,
		rendererSystem:   rs,
		shaderSystem:     ss,
		textureSystem:    ts,
		geometrySystem:   gs,
		materialSystem:   ms,
		fontSystem:       fs,
		renderViewSystem: rvs,
		config:           config,
	}, nil
}

// Initialize brings every system up in dependency order and preloads the
// configured techniques and materials on the job system.
func (sm *SystemManager) Initialize() error {
	if err := sm.assetManager.Initialize(sm.config.WatchAsset); err != nil {
		return err
	}
	if err := sm.rendererSystem.Initialize(sm.shaderSystem); err != nil {
		return err
	}
	if err := sm.textureSystem.Initialize(); err != nil {
		return err
	}
	if err := sm.fontSystem.Initialize(); err != nil {
		return err
	}
	if err := sm.renderViewSystem.Initialize(); err != nil {
		return err
	}
	if err := sm.materialSystem.Initialize(); err != nil {
		return err
	}
	if err := sm.shaderSystem.Preload(sm.jobSystem, sm.config.PreloadTechniques); err != nil {
		return err
	}
	if err := sm.materialSystem.Preload(sm.jobSystem, sm.config.PreloadMaterials); err != nil {
		return err
	}
	n := sm.jobSystem.Wait()
	core.LogDebug("system manager initialized, %d preload jobs completed", n)
	return nil
}

// Update runs once per frame on the render thread.
func (sm *SystemManager) Update() {
	sm.jobSystem.Update()
}

func (sm *SystemManager) AssetManager() *assets.AssetManager { return sm.assetManager }
func (sm *SystemManager) JobSystem() *JobSystem              { return sm.jobSystem }
func (sm *SystemManager) RendererSystem() *RendererSystem    { return sm.rendererSystem }
func (sm *SystemManager) ShaderSystem() *ShaderSystem        { return sm.shaderSystem }
func (sm *SystemManager) TextureSystem() *TextureSystem      { return sm.textureSystem }
func (sm *SystemManager) GeometrySystem() *GeometrySystem    { return sm.geometrySystem }
func (sm *SystemManager) MaterialSystem() *MaterialSystem    { return sm.materialSystem }
func (sm *SystemManager) FontSystem() *FontSystem            { return sm.fontSystem }
func (sm *SystemManager) RenderViewSystem() *RenderViewSystem {
	return sm.renderViewSystem
}

// Shutdown stops every system in reverse dependency order. Errors are
// collected; every system is shut down regardless.
func (sm *SystemManager) Shutdown() error {
	var errs error
	collect := func(err error) {
		errs = errors.Join(errs, err)
	}
	collect(sm.assetManager.Close())
	collect(sm.jobSystem.Shutdown())
	collect(sm.materialSystem.Shutdown())
	collect(sm.renderViewSystem.Shutdown())
	collect(sm.fontSystem.Shutdown())
	collect(sm.geometrySystem.Shutdown())
	collect(sm.textureSystem.Shutdown())
	collect(sm.shaderSystem.Shutdown())
	collect(sm.rendererSystem.Shutdown())
	return errs
}
