package postprocess

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/targets"
)

// RunStats describes the last Run.
type RunStats struct {
	Executed int
	Skipped  int
	Failed   int
}

type slot struct {
	pass Pass
	seq  uint64
}

/**
 * @brief Pipeline runs post-process passes over the scene buffer in priority
 * order. Lower priorities run first; equal priorities run in the order they
 * were added. Disabled passes are skipped, so the next enabled pass reads the
 * output of the previous enabled one. Every temporary buffer is returned to
 * the pool when Run ends.
 */
type Pipeline struct {
	ctx         *PassContext
	slots       []slot
	seq         uint64
	initialized bool
	disposed    bool
	stats       RunStats
}

func NewPipeline(ctx *renderer.Context, loader renderer.TechniqueLoader, pool *targets.Pool) (*Pipeline, error) {
	if ctx == nil || loader == nil || pool == nil {
		return nil, fmt.Errorf("func NewPipeline - context, technique loader and pool are required")
	}
	quad, err := NewQuad(ctx.Device())
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		ctx: &PassContext{
			Context:    ctx,
			Techniques: loader,
			Pool:       pool,
			Quad:       quad,
		},
	}, nil
}

func (p *Pipeline) PassContext() *PassContext {
	return p.ctx
}

// Add inserts a pass. Names must be unique. When the pipeline is already
// initialized the pass is initialized here.
func (p *Pipeline) Add(pass Pass) error {
	if p.disposed {
		return fmt.Errorf("pipeline %w", core.ErrDisposed)
	}
	if pass == nil {
		return fmt.Errorf("func Add - pass is nil")
	}
	if p.Get(pass.Name()) != nil {
		return fmt.Errorf("func Add - a pass named `%s` already exists", pass.Name())
	}
	if p.initialized && pass.State() == PassStateUninitialized {
		if err := pass.Initialize(p.ctx); err != nil {
			return err
		}
	}
	p.seq++
	p.slots = append(p.slots, slot{pass: pass, seq: p.seq})
	p.Sort()
	return nil
}

// Remove disposes and removes the named pass.
func (p *Pipeline) Remove(name string) bool {
	for i, s := range p.slots {
		if s.pass.Name() != name {
			continue
		}
		if err := s.pass.Dispose(); err != nil {
			core.LogError("failed to dispose pass `%s`: %s", name, err)
		}
		p.slots = append(p.slots[:i], p.slots[i+1:]...)
		return true
	}
	return false
}

func (p *Pipeline) Get(name string) Pass {
	for _, s := range p.slots {
		if s.pass.Name() == name {
			return s.pass
		}
	}
	return nil
}

// Passes returns the passes in execution order.
func (p *Pipeline) Passes() []Pass {
	out := make([]Pass, len(p.slots))
	for i, s := range p.slots {
		out[i] = s.pass
	}
	return out
}

// Sort restores execution order after priorities changed.
func (p *Pipeline) Sort() {
	sort.SliceStable(p.slots, func(i, j int) bool {
		a, b := p.slots[i], p.slots[j]
		if a.pass.Priority() != b.pass.Priority() {
			return a.pass.Priority() < b.pass.Priority()
		}
		return a.seq < b.seq
	})
}

// Initialize initializes every pass that is not yet initialized. A pass that
// fails is disabled and the error is returned once all passes were tried.
func (p *Pipeline) Initialize() error {
	if p.disposed {
		return fmt.Errorf("pipeline %w", core.ErrDisposed)
	}
	var errs []error
	for _, s := range p.slots {
		if s.pass.State() != PassStateUninitialized {
			continue
		}
		if err := s.pass.Initialize(p.ctx); err != nil {
			core.LogError("failed to initialize pass `%s`: %s", s.pass.Name(), err)
			s.pass.SetEnabled(false)
			errs = append(errs, err)
		}
	}
	p.initialized = true
	return errors.Join(errs...)
}

/**
 * @brief Runs every enabled pass over scene. A failing pass is logged and the
 * frame continues with the next one. The pool is released when Run returns,
 * failed or not.
 */
func (p *Pipeline) Run(frame *renderer.Frame, scene renderer.ColorBuffer) error {
	defer p.ctx.Pool.ReleaseAll()

	if p.disposed {
		return fmt.Errorf("pipeline %w", core.ErrDisposed)
	}
	if scene == nil {
		return fmt.Errorf("func Run - scene buffer is nil")
	}
	stats := RunStats{}
	var errs []error
	for _, s := range p.slots {
		if !s.pass.Enabled() {
			stats.Skipped++
			continue
		}
		if s.pass.State() == PassStateUninitialized {
			if err := s.pass.Initialize(p.ctx); err != nil {
				core.LogError("failed to initialize pass `%s`: %s", s.pass.Name(), err)
				s.pass.SetEnabled(false)
				stats.Failed++
				errs = append(errs, err)
				continue
			}
		}
		if err := s.pass.Draw(frame, scene); err != nil {
			core.LogError("pass `%s` failed: %s", s.pass.Name(), err)
			stats.Failed++
			errs = append(errs, err)
			continue
		}
		stats.Executed++
	}
	p.stats = stats
	return errors.Join(errs...)
}

func (p *Pipeline) Stats() RunStats {
	return p.stats
}

// Dispose disposes every pass and the quad. The pool belongs to the caller.
func (p *Pipeline) Dispose() {
	if p.disposed {
		return
	}
	for _, s := range p.slots {
		if err := s.pass.Dispose(); err != nil {
			core.LogError("failed to dispose pass `%s`: %s", s.pass.Name(), err)
		}
	}
	p.slots = nil
	p.ctx.Quad.Dispose()
	p.disposed = true
}
