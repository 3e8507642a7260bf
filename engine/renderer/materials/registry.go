package materials

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// Factory builds the strategy drawing material under backend.
type Factory func(material *Material, backend metadata.BackendKind, loader renderer.TechniqueLoader, textures renderer.TextureSource) (Strategy, error)

type registryKey struct {
	kind    metadata.MaterialKind
	backend metadata.BackendKind
}

/**
 * @brief Registry maps (material kind, backend kind) pairs to strategy
 * factories. A pair without a factory means the material is not drawn under
 * that backend.
 */
type Registry struct {
	mu        sync.RWMutex
	factories map[registryKey]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[registryKey]Factory)}
}

func (r *Registry) Register(kind metadata.MaterialKind, backend metadata.BackendKind, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if factory == nil {
		delete(r.factories, registryKey{kind, backend})
		return
	}
	r.factories[registryKey{kind, backend}] = factory
}

// Lookup returns nil for unregistered pairs.
func (r *Registry) Lookup(kind metadata.MaterialKind, backend metadata.BackendKind) Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factories[registryKey{kind, backend}]
}

// Backends lists the backends kind can be drawn under.
func (r *Registry) Backends(kind metadata.MaterialKind) []metadata.BackendKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []metadata.BackendKind
	for k := range r.factories {
		if k.kind == kind {
			out = append(out, k.backend)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TechniqueName is the technique a built-in strategy loads, `<backend>_<kind>`.
func TechniqueName(backend metadata.BackendKind, kind metadata.MaterialKind) string {
	return fmt.Sprintf("%s_%s", backend, kind)
}

// NewBuiltinRegistry returns a registry holding the built-in material kinds.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	builtins := map[metadata.MaterialKind][]metadata.BackendKind{
		metadata.MATERIAL_KIND_BASIC: {
			metadata.BACKEND_KIND_FORWARD,
			metadata.BACKEND_KIND_DEFERRED,
			metadata.BACKEND_KIND_LIGHT_PRE_PASS,
			metadata.BACKEND_KIND_STEREO,
		},
		metadata.MATERIAL_KIND_LAVA: {
			metadata.BACKEND_KIND_FORWARD,
			metadata.BACKEND_KIND_DEFERRED,
			metadata.BACKEND_KIND_STEREO,
		},
		// water relies on the light buffer or forward lighting; it has no
		// deferred variant
		metadata.MATERIAL_KIND_WATER: {
			metadata.BACKEND_KIND_FORWARD,
			metadata.BACKEND_KIND_LIGHT_PRE_PASS,
		},
		metadata.MATERIAL_KIND_UNLIT: {
			metadata.BACKEND_KIND_FORWARD,
			metadata.BACKEND_KIND_STEREO,
		},
	}
	for kind, backends := range builtins {
		for _, b := range backends {
			r.Register(kind, b, NewShaderStrategy)
		}
	}
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry is the registry materials use unless given another one.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewBuiltinRegistry()
	})
	return defaultRegistry
}
