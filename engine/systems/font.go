package systems

import (
	"fmt"
	"sort"

	"github.com/spaghettifunk/anima-fx/engine/assets"
	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-fx/engine/renderer/postprocess"
)

type FontSystemConfig struct {
	BitmapFontConfigs  []metadata.BitmapFontConfig
	MaxBitmapFontCount int
}

/**
 * @brief FontSystem loads AngelCode bitmap fonts and uploads their first
 * page as the glyph atlas the debug overlay draws with.
 */
type FontSystem struct {
	Config *FontSystemConfig

	device       renderer.Device
	assetManager *assets.AssetManager
	fonts        map[string]*postprocess.Font
}

func NewFontSystem(config *FontSystemConfig, device renderer.Device, am *assets.AssetManager) (*FontSystem, error) {
	if config.MaxBitmapFontCount == 0 {
		err := fmt.Errorf("func NewFontSystem - config.MaxBitmapFontCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &FontSystem{
		Config:       config,
		device:       device,
		assetManager: am,
		fonts:        make(map[string]*postprocess.Font),
	}, nil
}

// Initialize loads the configured fonts. A font that fails to load is logged
// and skipped.
func (fs *FontSystem) Initialize() error {
	for _, cfg := range fs.Config.BitmapFontConfigs {
		if _, err := fs.LoadBitmapFont(cfg); err != nil {
			core.LogWarn("func FontSystem Initialize - font `%s`: %s", cfg.Name, err.Error())
		}
	}
	return nil
}

func (fs *FontSystem) LoadBitmapFont(config metadata.BitmapFontConfig) (*postprocess.Font, error) {
	if f, ok := fs.fonts[config.Name]; ok {
		return f, nil
	}
	if len(fs.fonts) >= fs.Config.MaxBitmapFontCount {
		return nil, fmt.Errorf("func LoadBitmapFont - %d fonts already loaded", len(fs.fonts))
	}
	resourceName := config.ResourceName
	if resourceName == "" {
		resourceName = config.Name
	}
	res, err := fs.assetManager.LoadAsset(resourceName, metadata.ResourceTypeBitmapFont, nil)
	if err != nil {
		return nil, err
	}
	defer fs.assetManager.UnloadAsset(res)

	data := res.Data.(*metadata.BitmapFontResourceData)
	ids := make([]int, 0, len(data.Pages))
	for id := range data.Pages {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	if len(ids) > 1 {
		core.LogWarn("font `%s` has %d pages, only page %d is used", config.Name, len(ids), ids[0])
	}
	atlas, err := fs.device.CreateTexture(fmt.Sprintf("%s-atlas", config.Name), data.Page(ids[0]))
	if err != nil {
		return nil, err
	}
	f := &postprocess.Font{
		Name:       config.Name,
		Descriptor: data.Descriptor,
		Atlas:      atlas,
	}
	fs.fonts[config.Name] = f
	return f, nil
}

// Acquire returns a loaded font, nil if there is none with that name.
func (fs *FontSystem) Acquire(name string) *postprocess.Font {
	return fs.fonts[name]
}

func (fs *FontSystem) Shutdown() error {
	for name, f := range fs.fonts {
		if f.Atlas != nil {
			fs.device.DestroyColorBuffer(f.Atlas)
		}
		delete(fs.fonts, name)
	}
	return nil
}
