package postprocess

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// PassFactory builds a pass with its name and priority.
type PassFactory func(name string, priority int) Pass

var (
	passTypesMu sync.RWMutex
	passTypes   = map[string]PassFactory{
		"blur":       func(n string, p int) Pass { return NewBlur(n, p) },
		"bloom":      func(n string, p int) Pass { return NewBloom(n, p) },
		"ao":         func(n string, p int) Pass { return NewAmbientOcclusion(n, p) },
		"fog":        func(n string, p int) Pass { return NewFog(n, p) },
		"tonemap":    func(n string, p int) Pass { return NewTonemap(n, p) },
		"colorgrade": func(n string, p int) Pass { return NewColorGrade(n, p) },
		"antialias":  func(n string, p int) Pass { return NewAntiAlias(n, p) },
		"overlay":    func(n string, p int) Pass { return NewDebugOverlay(n, p) },
	}
)

// RegisterPassType adds or replaces a pass type usable from configuration.
func RegisterPassType(kind string, factory PassFactory) {
	passTypesMu.Lock()
	defer passTypesMu.Unlock()
	passTypes[kind] = factory
}

// PassTypes lists the registered types, sorted.
func PassTypes() []string {
	passTypesMu.RLock()
	defer passTypesMu.RUnlock()
	out := make([]string, 0, len(passTypes))
	for k := range passTypes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NewPassFromConfig builds a pass from a [[passes]] table and applies its params.
func NewPassFromConfig(config metadata.PassConfig) (Pass, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	passTypesMu.RLock()
	factory, ok := passTypes[config.Type]
	passTypesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("func NewPassFromConfig - unknown pass type `%s`", config.Type)
	}
	pass := factory(config.InstanceName(), config.Priority)

	keys := make([]string, 0, len(config.Params))
	for k := range config.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := pass.SetParam(k, config.Params[k]); err != nil {
			return nil, err
		}
	}
	pass.SetEnabled(config.IsEnabled())
	return pass, nil
}
