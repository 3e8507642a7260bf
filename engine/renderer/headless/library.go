package headless

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

func params(names ...string) []metadata.ParameterConfig {
	out := make([]metadata.ParameterConfig, len(names))
	for i, n := range names {
		out[i] = metadata.ParameterConfig{Name: n, Slot: i}
	}
	return out
}

var (
	materialParameters = params("base_color", "tiling_offset", "material_params", "light")
	// unlit techniques declare no light, so light writes are dropped
	unlitParameters = params("base_color", "tiling_offset")
)

// kernelParameters mirrors the parameter blocks declared by the shipped
// technique files, so techniques built by Library resolve the same names.
var kernelParameters = map[string][]metadata.ParameterConfig{
	"passthrough":      params("color"),
	"copy":             nil,
	"material":         materialParameters,
	"lava":             materialParameters,
	"water":            materialParameters,
	"gbuffer":          materialParameters,
	"lpp_material":     materialParameters,
	"deferred_resolve": params("light", "ambient"),
	"light_accum":      params("light"),
	"blur":             params("direction"),
	"bright_extract":   params("threshold"),
	"composite":        params("intensity"),
	"ao":               params("settings", "kernel0", "kernel1", "kernel2", "kernel3", "kernel4", "kernel5"),
	"ao_composite":     nil,
	"fog":              params("settings", "color"),
	"tonemap":          params("settings"),
	"colorgrade":       params("weights", "grading"),
	"fxaa":             params("threshold"),
	"temporal_resolve": params("feedback"),
	"glyph":            params("color"),
}

// kernelFor maps a technique name to the kernel emulating it. Material
// techniques follow the `<backend>_<kind>` naming.
func kernelFor(name string) string {
	if _, ok := kernelParameters[name]; ok {
		return name
	}
	switch name {
	case "bloom_downsample", "present":
		return "copy"
	}
	for _, b := range []metadata.BackendKind{
		metadata.BACKEND_KIND_LIGHT_PRE_PASS,
		metadata.BACKEND_KIND_FORWARD,
		metadata.BACKEND_KIND_DEFERRED,
		metadata.BACKEND_KIND_STEREO,
	} {
		kind, ok := strings.CutPrefix(name, b.String()+"_")
		if !ok {
			continue
		}
		switch b {
		case metadata.BACKEND_KIND_DEFERRED:
			return "gbuffer"
		case metadata.BACKEND_KIND_LIGHT_PRE_PASS:
			return "lpp_material"
		}
		switch metadata.MaterialKind(kind) {
		case metadata.MATERIAL_KIND_LAVA:
			return "lava"
		case metadata.MATERIAL_KIND_WATER:
			return "water"
		}
		return "material"
	}
	return "passthrough"
}

/**
 * @brief Library is a TechniqueLoader for the headless device. Techniques are
 * built on first use from the kernel matching their name, unless a config was
 * added explicitly.
 */
type Library struct {
	device *Device

	mu         sync.Mutex
	configs    map[string]metadata.TechniqueConfig
	techniques map[string]renderer.Technique
	loads      map[string]int
}

func NewLibrary(device *Device) *Library {
	return &Library{
		device:     device,
		configs:    make(map[string]metadata.TechniqueConfig),
		techniques: make(map[string]renderer.Technique),
		loads:      make(map[string]int),
	}
}

// Add registers an explicit config, replacing the derived one.
func (l *Library) Add(config metadata.TechniqueConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.configs[config.Name] = config
}

func (l *Library) Technique(name string) (renderer.Technique, error) {
	if name == "" {
		return nil, fmt.Errorf("headless: empty technique name")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.techniques[name]; ok {
		return t, nil
	}
	cfg, ok := l.configs[name]
	if !ok {
		kernel := kernelFor(name)
		cfg = metadata.TechniqueConfig{
			Name:       name,
			Kernel:     kernel,
			Parameters: kernelParameters[kernel],
		}
		if strings.HasSuffix(name, "_"+string(metadata.MATERIAL_KIND_UNLIT)) {
			cfg.Parameters = unlitParameters
		}
		if kernel == "glyph" {
			cfg.Blend = metadata.BLEND_MODE_ALPHA
		}
	}
	t, err := l.device.CreateTechnique(&cfg, nil)
	if err != nil {
		return nil, err
	}
	l.techniques[name] = t
	l.loads[name]++
	return t, nil
}

// Reload destroys the cached technique; the next lookup builds a new one.
func (l *Library) Reload(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.techniques[name]; ok {
		l.device.DestroyTechnique(t)
		delete(l.techniques, name)
	}
}

// Loads returns how many times name was built.
func (l *Library) Loads(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads[name]
}

var _ renderer.TechniqueLoader = (*Library)(nil)
