package systems

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spaghettifunk/anima-fx/engine/assets"
	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

type ShaderSystemConfig struct {
	/** @brief The maximum number of techniques that can be loaded at once. */
	MaxTechniqueCount int
}

/**
 * @brief ShaderSystem loads technique descriptors and their WGSL sources
 * through the asset manager and creates them on the device. Techniques are
 * cached by name. When the asset manager reports a change to a descriptor or
 * a shader source, the affected techniques are marked stale and a reload is
 * requested on the context; the next lookup recreates them.
 */
type ShaderSystem struct {
	Config *ShaderSystemConfig

	ctx          *renderer.Context
	assetManager *assets.AssetManager

	techniques map[string]renderer.Technique
	mu         sync.Mutex
	// shader source path, relative to the asset root, to the techniques using it
	users map[string]map[string]struct{}
	stale map[string]struct{}
}

func NewShaderSystem(config *ShaderSystemConfig, ctx *renderer.Context, am *assets.AssetManager) (*ShaderSystem, error) {
	if config.MaxTechniqueCount == 0 {
		err := fmt.Errorf("func NewShaderSystem - config.MaxTechniqueCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	if ctx == nil || am == nil {
		return nil, fmt.Errorf("func NewShaderSystem - context and asset manager are required")
	}
	ss := &ShaderSystem{
		Config:       config,
		ctx:          ctx,
		assetManager: am,
		techniques:   make(map[string]renderer.Technique),
		users:        make(map[string]map[string]struct{}),
		stale:        make(map[string]struct{}),
	}
	am.OnChange(ss.onAssetChanged)
	return ss, nil
}

// Technique returns the named technique, loading it on first use.
func (ss *ShaderSystem) Technique(name string) (renderer.Technique, error) {
	ss.mu.Lock()
	_, isStale := ss.stale[name]
	delete(ss.stale, name)
	ss.mu.Unlock()

	if t, ok := ss.techniques[name]; ok {
		if !isStale {
			return t, nil
		}
		core.LogInfo("reloading technique `%s`", name)
		ss.ctx.Device().DestroyTechnique(t)
		delete(ss.techniques, name)
	}
	if len(ss.techniques) >= ss.Config.MaxTechniqueCount {
		return nil, fmt.Errorf("func Technique - cannot load `%s`, %d techniques already loaded", name, len(ss.techniques))
	}

	res, err := ss.assetManager.LoadAsset(name, metadata.ResourceTypeTechnique, nil)
	if err != nil {
		return nil, fmt.Errorf("func Technique - %w `%s`: %s", core.ErrTechniqueNotFound, name, err.Error())
	}
	defer ss.assetManager.UnloadAsset(res)
	return ss.create(name, res.Data.(*metadata.TechniqueResourceData))
}

func (ss *ShaderSystem) create(name string, data *metadata.TechniqueResourceData) (renderer.Technique, error) {
	cfg := data.Config
	if cfg.Name != name {
		core.LogWarn("technique descriptor `%s` names itself `%s`", name, cfg.Name)
		cfg.Name = name
	}
	t, err := ss.ctx.Device().CreateTechnique(cfg, data.Source)
	if err != nil {
		return nil, fmt.Errorf("func Technique - create `%s`: %w", name, err)
	}
	ss.techniques[name] = t
	if cfg.Shader != "" {
		key := filepath.ToSlash(filepath.Clean(cfg.Shader))
		ss.mu.Lock()
		defer ss.mu.Unlock()
		if ss.users[key] == nil {
			ss.users[key] = make(map[string]struct{})
		}
		ss.users[key][name] = struct{}{}
	}
	return t, nil
}

// Loaded lists the cached technique names, sorted.
func (ss *ShaderSystem) Loaded() []string {
	names := make([]string, 0, len(ss.techniques))
	for n := range ss.techniques {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

/**
 * @brief Reads the descriptors of names on the job system's workers and
 * creates the techniques once the jobs complete. Failures are logged; the
 * technique is then loaded on first use instead.
 */
func (ss *ShaderSystem) Preload(js *JobSystem, names []string) error {
	for _, name := range names {
		name := name
		err := js.Submit(metadata.JobTask{
			InputParams: name,
			OnStart: func(params interface{}) (interface{}, error) {
				return ss.assetManager.LoadAsset(params.(string), metadata.ResourceTypeTechnique, nil)
			},
			OnComplete: func(result interface{}) {
				res := result.(*metadata.Resource)
				defer ss.assetManager.UnloadAsset(res)
				if _, ok := ss.techniques[name]; ok {
					return
				}
				if _, err := ss.create(name, res.Data.(*metadata.TechniqueResourceData)); err != nil {
					core.LogError(err.Error())
				}
			},
			OnFailure: func(err error) {
				core.LogWarn("preloading technique `%s` failed: %s", name, err.Error())
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

/**
 * @brief Marks the technique stale and asks the context to announce the
 * reload. Safe to call from any goroutine.
 */
func (ss *ShaderSystem) Reload(name string) error {
	ss.mu.Lock()
	ss.stale[name] = struct{}{}
	ss.mu.Unlock()
	return ss.ctx.RequestTechniqueReload(name)
}

// onAssetChanged runs on the asset watcher goroutine.
func (ss *ShaderSystem) onAssetChanged(info assets.AssetInfo) {
	switch info.Type {
	case metadata.ResourceTypeTechnique:
		if err := ss.Reload(info.Name); err != nil {
			core.LogWarn("technique `%s` changed but the reload was not queued: %s", info.Name, err.Error())
		}
	case metadata.ResourceTypeShader:
		rel, err := filepath.Rel(ss.assetManager.Root(), info.Path)
		if err != nil {
			return
		}
		for _, name := range ss.usersOf(filepath.ToSlash(rel)) {
			if err := ss.Reload(name); err != nil {
				core.LogWarn("shader `%s` changed but `%s` was not queued: %s", rel, name, err.Error())
			}
		}
	}
}

func (ss *ShaderSystem) usersOf(shader string) []string {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	var names []string
	for n := range ss.users[shader] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (ss *ShaderSystem) Shutdown() error {
	for name, t := range ss.techniques {
		ss.ctx.Device().DestroyTechnique(t)
		delete(ss.techniques, name)
	}
	return nil
}

var _ renderer.TechniqueLoader = (*ShaderSystem)(nil)
