package postprocess

import (
	"fmt"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-fx/engine/renderer/targets"
)

type PassState uint8

const (
	// Pass is constructed but holds no resources
	PassStateUninitialized PassState = iota
	// Pass resources are being set up
	PassStateInitialized
	// Pass is drawn every frame
	PassStateEnabled
	// Pass keeps its resources but is skipped
	PassStateDisabled
	// Pass released everything and can not be used again
	PassStateDisposed
)

func (s PassState) String() string {
	switch s {
	case PassStateUninitialized:
		return "uninitialized"
	case PassStateInitialized:
		return "initialized"
	case PassStateEnabled:
		return "enabled"
	case PassStateDisabled:
		return "disabled"
	case PassStateDisposed:
		return "disposed"
	}
	return "unknown"
}

// Pass is one full-screen effect of the post-process pipeline. Draw reads the
// scene buffer and leaves its result in it.
type Pass interface {
	Name() string
	Priority() int
	SetPriority(priority int)
	Enabled() bool
	SetEnabled(enabled bool)
	State() PassState
	Initialize(ctx *PassContext) error
	Draw(frame *renderer.Frame, scene renderer.ColorBuffer) error
	Dispose() error
	// SetParam sets a tunable by its configuration name.
	SetParam(name string, value interface{}) error
}

// PassContext is what passes draw with.
type PassContext struct {
	Context    *renderer.Context
	Techniques renderer.TechniqueLoader
	Pool       *targets.Pool
	Quad       *Quad
}

func (c *PassContext) Device() renderer.Device {
	return c.Context.Device()
}

/**
 * @brief BasePass implements the lifecycle every pass shares: the state
 * machine, technique lookups cached until the technique is reloaded, and the
 * persistent buffers the pass owns, which are recreated whenever the output
 * size changes. Concrete passes embed it.
 */
type BasePass struct {
	name     string
	priority int
	enabled  bool
	state    PassState

	ctx        *PassContext
	techniques map[string]renderer.Technique
	persistent []*targets.Persistent

	// onResize runs after persistent buffers were recreated.
	onResize func(width, height uint32)
}

func NewBasePass(name string, priority int) BasePass {
	return BasePass{
		name:     name,
		priority: priority,
		enabled:  true,
		state:    PassStateUninitialized,
	}
}

func (b *BasePass) Name() string {
	return b.name
}

func (b *BasePass) Priority() int {
	return b.priority
}

// SetPriority changes the order key. The pipeline must be re-sorted.
func (b *BasePass) SetPriority(priority int) {
	b.priority = priority
}

func (b *BasePass) Enabled() bool {
	return b.enabled && b.state != PassStateDisposed
}

func (b *BasePass) SetEnabled(enabled bool) {
	switch b.state {
	case PassStateDisposed:
		core.LogWarn("pass `%s` is disposed, ignoring enable change", b.name)
		return
	case PassStateUninitialized:
		b.enabled = enabled
		return
	}
	b.enabled = enabled
	if enabled {
		b.state = PassStateEnabled
	} else {
		b.state = PassStateDisabled
	}
}

func (b *BasePass) State() PassState {
	return b.state
}

// Context returns the context the pass was initialized with.
func (b *BasePass) Context() *PassContext {
	return b.ctx
}

func (b *BasePass) Initialize(ctx *PassContext) error {
	switch b.state {
	case PassStateDisposed:
		return fmt.Errorf("pass `%s` %w", b.name, core.ErrDisposed)
	case PassStateUninitialized:
	default:
		return fmt.Errorf("pass `%s` %w", b.name, core.ErrAlreadyInitialized)
	}
	if ctx == nil || ctx.Context == nil || ctx.Techniques == nil || ctx.Pool == nil || ctx.Quad == nil {
		return fmt.Errorf("func Initialize - pass `%s` got an incomplete context", b.name)
	}
	b.ctx = ctx
	b.techniques = make(map[string]renderer.Technique)
	b.state = PassStateInitialized

	ctx.Context.OnTechniqueReloaded(b, func(name string) {
		delete(b.techniques, name)
	})
	ctx.Context.OnOutputSizeChanged(b, b.outputSizeChanged)

	b.SetEnabled(b.enabled)
	return nil
}

func (b *BasePass) outputSizeChanged(width, height uint32) {
	for _, p := range b.persistent {
		if p.Current() == nil {
			continue
		}
		if err := p.Recreate(); err != nil {
			core.LogError("pass `%s` failed to recreate `%s` at %dx%d: %s", b.name, p.Name(), width, height, err)
		}
	}
	if b.onResize != nil {
		b.onResize(width, height)
	}
}

// Ready reports whether the pass can draw.
func (b *BasePass) Ready() error {
	switch b.state {
	case PassStateUninitialized, PassStateInitialized:
		return fmt.Errorf("pass `%s` %w", b.name, core.ErrNotInitialized)
	case PassStateDisposed:
		return fmt.Errorf("pass `%s` %w", b.name, core.ErrDisposed)
	}
	return nil
}

// Technique returns a technique by name, loading it on first use.
func (b *BasePass) Technique(name string) (renderer.Technique, error) {
	if b.ctx == nil {
		return nil, fmt.Errorf("pass `%s` %w", b.name, core.ErrNotInitialized)
	}
	if t, ok := b.techniques[name]; ok {
		return t, nil
	}
	t, err := b.ctx.Techniques.Technique(name)
	if err != nil {
		return nil, fmt.Errorf("pass `%s`: %w", b.name, err)
	}
	b.techniques[name] = t
	return t, nil
}

// NewPersistent creates a buffer owned by the pass, sized at scale times the
// output size and recreated when the output size changes.
func (b *BasePass) NewPersistent(name string, scale float32) *targets.Persistent {
	ctx := b.ctx.Context
	p := targets.NewPersistent(ctx.Device(), fmt.Sprintf("%s-%s", b.name, name), func() (uint32, uint32) {
		w, h := ctx.OutputSize()
		return scaled(w, scale), scaled(h, scale)
	})
	b.persistent = append(b.persistent, p)
	return p
}

// Filter draws technique over the scene into a temporary buffer and copies the
// result back. The scene is input 0, extra inputs follow.
func (b *BasePass) Filter(technique renderer.Technique, params *renderer.Parameters, scene renderer.ColorBuffer, extra ...renderer.ColorBuffer) error {
	d := scene.Desc()
	tmp, err := b.ctx.Pool.GetTemporary(d.Width, d.Height)
	if err != nil {
		return err
	}
	defer b.ctx.Pool.ReleaseTemporary(tmp)

	inputs := make([]renderer.ColorBuffer, 0, 1+len(extra))
	inputs = append(inputs, scene)
	inputs = append(inputs, extra...)
	if err := b.ctx.Quad.Draw(technique, params, tmp, inputs...); err != nil {
		return err
	}
	return b.ctx.Device().Copy(tmp, scene)
}

// SetParam handles the tunables every pass has.
func (b *BasePass) SetParam(name string, value interface{}) error {
	switch name {
	case "enabled":
		v, ok := value.(bool)
		if !ok {
			return paramTypeError(b.name, name, value)
		}
		b.SetEnabled(v)
	case "priority":
		v, ok := metadata.AsInt(value)
		if !ok {
			return paramTypeError(b.name, name, value)
		}
		b.priority = v
	default:
		return fmt.Errorf("pass `%s` has no parameter `%s`", b.name, name)
	}
	return nil
}

func (b *BasePass) Dispose() error {
	if b.state == PassStateDisposed {
		return nil
	}
	if b.ctx != nil {
		b.ctx.Context.UnsubscribeTechniqueReloaded(b)
		b.ctx.Context.UnsubscribeOutputSizeChanged(b)
	}
	for _, p := range b.persistent {
		p.Dispose()
	}
	b.persistent = nil
	b.techniques = nil
	b.state = PassStateDisposed
	return nil
}

func paramTypeError(pass, name string, value interface{}) error {
	return fmt.Errorf("pass `%s` parameter `%s` has unexpected type %T", pass, name, value)
}

func floatParam(pass, name string, value interface{}) (float32, error) {
	v, ok := metadata.AsFloat(value)
	if !ok {
		return 0, paramTypeError(pass, name, value)
	}
	return v, nil
}

func intParam(pass, name string, value interface{}) (int, error) {
	v, ok := metadata.AsInt(value)
	if !ok {
		return 0, paramTypeError(pass, name, value)
	}
	return v, nil
}

func stringParam(pass, name string, value interface{}) (string, error) {
	v, ok := value.(string)
	if !ok {
		return "", paramTypeError(pass, name, value)
	}
	return v, nil
}

func scaled(v uint32, scale float32) uint32 {
	if scale <= 0 || scale == 1 {
		return v
	}
	s := uint32(float32(v) * scale)
	if s == 0 {
		s = 1
	}
	return s
}
