package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/anima-fx/engine/assets/loaders"
	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// Loader turns one file into a resource. `params` lets a loader take extra
// per-call options.
type Loader interface {
	Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error)
	Unload(*metadata.Resource) error
}

type AssetInfo struct {
	Path       string
	Name       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

// ChangeHandler is called from the watcher goroutine whenever an indexed
// asset is created or written. Handlers must only queue work.
type ChangeHandler func(info AssetInfo)

type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader

	handlers []ChangeHandler

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager(root string) *AssetManager {
	return &AssetManager{
		root:    filepath.Clean(root),
		assets:  make(map[string]AssetInfo),
		loaders: make(map[metadata.ResourceType]Loader),
	}
}

// Initialize indexes every file under the asset root and registers the
// built-in loaders. With watch set, file changes are reported to the
// registered change handlers until Close.
func (am *AssetManager) Initialize(watch bool) error {
	if _, err := os.Stat(am.root); err != nil {
		return fmt.Errorf("func Initialize - asset root: %w", err)
	}

	am.RegisterLoader(metadata.ResourceTypeTechnique, &loaders.TechniqueLoader{ResourcePath: am.root})
	am.RegisterLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	am.RegisterLoader(metadata.ResourceTypeBinary, &loaders.BinaryLoader{})
	am.RegisterLoader(metadata.ResourceTypeMaterial, &loaders.MaterialLoader{})
	am.RegisterLoader(metadata.ResourceTypeImage, &loaders.TextureLoader{})
	am.RegisterLoader(metadata.ResourceTypeBitmapFont, &loaders.BitmapFontLoader{})
	am.RegisterLoader(metadata.ResourceTypeConfig, &loaders.ConfigLoader{})

	if !watch {
		return am.index(am.root)
	}

	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	am.fsnotify = fsWatch
	am.done = make(chan struct{})
	am.stopped = make(chan struct{})
	if err := am.watchRecursive(am.root, false); err != nil {
		fsWatch.Close()
		am.fsnotify = nil
		return err
	}
	go am.start()
	return nil
}

// Root is the asset directory.
func (am *AssetManager) Root() string {
	return am.root
}

// Watching reports whether file changes are being observed.
func (am *AssetManager) Watching() bool {
	return am.fsnotify != nil && !am.isClosed
}

// RegisterLoader sets the loader for an asset type, replacing any previous one.
func (am *AssetManager) RegisterLoader(assetType metadata.ResourceType, loader Loader) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.loaders[assetType] = loader
}

// OnChange adds a change handler.
func (am *AssetManager) OnChange(handler ChangeHandler) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.handlers = append(am.handlers, handler)
}

// Path returns the location of a named asset of the given type. Names without
// an extension get the default extension of their type.
func (am *AssetManager) Path(name string, resourceType metadata.ResourceType) string {
	if filepath.Ext(name) == "" {
		name += defaultExtension(resourceType)
	}
	return filepath.Join(am.root, resourceType.Dir(), name)
}

// LoadAsset loads a named asset using the loader registered for its type.
func (am *AssetManager) LoadAsset(name string, resourceType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	if resourceType == metadata.ResourceTypeNone {
		return nil, fmt.Errorf("func LoadAsset - unknown resource type for `%s`", name)
	}
	path := am.Path(name, resourceType)

	am.mutex.RLock()
	_, exists := am.assets[path]
	loader, loaderExists := am.loaders[resourceType]
	am.mutex.RUnlock()

	if !exists {
		// created after the index was built and before a watch event arrived
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("func LoadAsset - asset not found: %s", path)
		}
	}
	if !loaderExists {
		return nil, fmt.Errorf("func LoadAsset - no loader registered for asset type: %s", resourceType)
	}

	res, err := loader.Load(path, resourceType, params)
	if err != nil {
		return nil, fmt.Errorf("func LoadAsset - `%s`: %w", path, err)
	}
	res.Type = resourceType
	if res.Name == "" {
		res.Name = assetName(path)
	}

	am.mutex.Lock()
	am.assets[path] = AssetInfo{
		Path:       path,
		Name:       res.Name,
		Type:       resourceType,
		LastLoaded: time.Now(),
	}
	am.mutex.Unlock()
	return res, nil
}

func (am *AssetManager) UnloadAsset(asset *metadata.Resource) error {
	if asset == nil {
		return nil
	}
	am.mutex.RLock()
	loader, ok := am.loaders[asset.Type]
	am.mutex.RUnlock()
	if !ok {
		return fmt.Errorf("func UnloadAsset - no loader registered for asset type: %s", asset.Type)
	}
	return loader.Unload(asset)
}

// Assets lists the names of the indexed assets of a type, sorted.
func (am *AssetManager) Assets(resourceType metadata.ResourceType) []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	var names []string
	for _, a := range am.assets {
		if a.Type == resourceType {
			names = append(names, a.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Close stops watching. It is safe to call more than once.
func (am *AssetManager) Close() error {
	if am.fsnotify == nil || am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	<-am.stopped
	return nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name, false); err != nil {
						core.LogWarn("assets: cannot watch `%s`: %s", e.Name, err.Error())
					}
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if info, ok := am.handleFileEvent(e.Name); ok {
					am.notify(info)
				}
			}
			// a removed path may have been a directory; fsnotify drops its
			// watch on its own, so only the index needs updating
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("assets: watcher error: %s", err.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) notify(info AssetInfo) {
	am.mutex.RLock()
	handlers := make([]ChangeHandler, len(am.handlers))
	copy(handlers, am.handlers)
	am.mutex.RUnlock()

	core.LogDebug("assets: `%s` changed (%s)", info.Name, info.Type)
	for _, h := range handlers {
		h(info)
	}
}

func (am *AssetManager) index(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			am.handleFileEvent(walkPath)
		}
		return nil
	})
}

// watchRecursive adds all directories under the given one to the watch list
// and indexes the files found along the way.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	if am.isClosed {
		return errors.New("assets: watcher already closed")
	}
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) (AssetInfo, bool) {
	path = filepath.Clean(path)
	assetType := metadata.ResourceTypeFor(path)
	if assetType == metadata.ResourceTypeNone {
		return AssetInfo{}, false
	}
	info := AssetInfo{
		Path: path,
		Name: assetName(path),
		Type: assetType,
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	if prev, ok := am.assets[path]; ok {
		info.LastLoaded = prev.LastLoaded
	}
	am.assets[path] = info
	return info, true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, filepath.Clean(path))
}

func assetName(path string) string {
	base := filepath.Base(path)
	switch metadata.ResourceTypeFor(path) {
	case metadata.ResourceTypeImage:
		return base
	default:
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
}

func defaultExtension(t metadata.ResourceType) string {
	switch t {
	case metadata.ResourceTypeTechnique, metadata.ResourceTypeMaterial, metadata.ResourceTypeConfig:
		return ".toml"
	case metadata.ResourceTypeShader:
		return ".wgsl"
	case metadata.ResourceTypeBinary:
		return ".spv"
	case metadata.ResourceTypeBitmapFont:
		return ".fnt"
	case metadata.ResourceTypeImage:
		return ".png"
	default:
		return ""
	}
}
