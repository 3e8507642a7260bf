package systems

import (
	"fmt"
	"image"
	"sort"

	"github.com/spaghettifunk/anima-fx/engine/assets"
	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

type TextureSystemConfig struct {
	/** @brief The maximum number of textures that can be loaded at once. */
	MaxTextureCount int
}

type textureReference struct {
	buffer          renderer.ColorBuffer
	referenceCount  uint64
	autoRelease     bool
	hasTransparency bool
}

/**
 * @brief TextureSystem uploads images from assets/textures and hands them out
 * by name. A texture that fails to load is replaced by the default
 * checkerboard so a material keeps drawing.
 */
type TextureSystem struct {
	Config *TextureSystemConfig

	device       renderer.Device
	assetManager *assets.AssetManager

	defaultTexture renderer.ColorBuffer
	// Hashtable for texture lookups.
	registeredTextureTable map[string]*textureReference
}

func NewTextureSystem(config *TextureSystemConfig, device renderer.Device, am *assets.AssetManager) (*TextureSystem, error) {
	if config.MaxTextureCount == 0 {
		err := fmt.Errorf("func NewTextureSystem - config.MaxTextureCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &TextureSystem{
		Config:                 config,
		device:                 device,
		assetManager:           am,
		registeredTextureTable: make(map[string]*textureReference),
	}, nil
}

// Initialize creates the default texture.
func (ts *TextureSystem) Initialize() error {
	t, err := ts.device.CreateTexture(metadata.DEFAULT_TEXTURE_NAME, metadata.DefaultTextureImage())
	if err != nil {
		return fmt.Errorf("func TextureSystem Initialize - default texture: %w", err)
	}
	ts.defaultTexture = t
	return nil
}

func (ts *TextureSystem) GetDefaultTexture() renderer.ColorBuffer {
	return ts.defaultTexture
}

// Texture returns the named texture, loading it on first use. It does not
// take a reference.
func (ts *TextureSystem) Texture(name string) (renderer.ColorBuffer, error) {
	if name == metadata.DEFAULT_TEXTURE_NAME || name == metadata.DEFAULT_DIFFUSE_TEXTURE_NAME {
		return ts.defaultTexture, nil
	}
	ref, err := ts.reference(name)
	if err != nil {
		return nil, err
	}
	return ref.buffer, nil
}

// Acquire returns the named texture and increments its reference count.
func (ts *TextureSystem) Acquire(name string, autoRelease bool) (renderer.ColorBuffer, error) {
	if name == metadata.DEFAULT_TEXTURE_NAME {
		core.LogWarn("func texture system Acquire called for default texture. Use GetDefaultTexture for texture 'default'")
		return ts.defaultTexture, nil
	}
	ref, err := ts.reference(name)
	if err != nil {
		return nil, err
	}
	if ref.referenceCount == 0 {
		ref.autoRelease = autoRelease
	}
	ref.referenceCount++
	return ref.buffer, nil
}

// Release drops a reference. Auto-release textures are destroyed when the
// last reference goes away.
func (ts *TextureSystem) Release(name string) {
	ref, ok := ts.registeredTextureTable[name]
	if !ok {
		core.LogWarn("func texture system Release called for unknown texture `%s`", name)
		return
	}
	if ref.referenceCount == 0 {
		core.LogWarn("func texture system Release called for `%s` with no references", name)
		return
	}
	ref.referenceCount--
	if ref.referenceCount == 0 && ref.autoRelease {
		ts.destroy(name, ref)
	}
}

// HasTransparency reports whether the loaded texture has non-opaque pixels.
func (ts *TextureSystem) HasTransparency(name string) bool {
	ref, ok := ts.registeredTextureTable[name]
	return ok && ref.hasTransparency
}

// Loaded lists the loaded texture names, sorted.
func (ts *TextureSystem) Loaded() []string {
	names := make([]string, 0, len(ts.registeredTextureTable))
	for n := range ts.registeredTextureTable {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (ts *TextureSystem) reference(name string) (*textureReference, error) {
	if ref, ok := ts.registeredTextureTable[name]; ok {
		return ref, nil
	}
	if len(ts.registeredTextureTable) >= ts.Config.MaxTextureCount {
		return nil, fmt.Errorf("func texture system - cannot load `%s`, %d textures already loaded", name, len(ts.registeredTextureTable))
	}

	ref := &textureReference{}
	res, err := ts.assetManager.LoadAsset(name, metadata.ResourceTypeImage, nil)
	if err != nil {
		if ts.defaultTexture == nil {
			return nil, err
		}
		core.LogWarn("texture `%s` could not be loaded, using the default texture: %s", name, err.Error())
		ref.buffer = ts.defaultTexture
		ts.registeredTextureTable[name] = ref
		return ref, nil
	}
	defer ts.assetManager.UnloadAsset(res)

	img := res.Data.(image.Image)
	buf, err := ts.device.CreateTexture(name, img)
	if err != nil {
		return nil, fmt.Errorf("func texture system - upload `%s`: %w", name, err)
	}
	ref.buffer = buf
	ref.hasTransparency = metadata.HasTransparency(img)
	ts.registeredTextureTable[name] = ref
	return ref, nil
}

func (ts *TextureSystem) destroy(name string, ref *textureReference) {
	if ref.buffer != nil && ref.buffer != ts.defaultTexture {
		ts.device.DestroyColorBuffer(ref.buffer)
	}
	delete(ts.registeredTextureTable, name)
}

func (ts *TextureSystem) Shutdown() error {
	for name, ref := range ts.registeredTextureTable {
		ts.destroy(name, ref)
	}
	if ts.defaultTexture != nil {
		ts.device.DestroyColorBuffer(ts.defaultTexture)
		ts.defaultTexture = nil
	}
	return nil
}

var _ renderer.TextureSource = (*TextureSystem)(nil)
