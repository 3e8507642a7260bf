package systems

import (
	"fmt"
	"sort"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-fx/engine/renderer/views"
)

type RenderViewSystemConfig struct {
	/** @brief The backend active after Initialize. */
	DefaultBackend metadata.BackendKind
}

/**
 * @brief RenderViewSystem owns one view per backend kind. Activating a kind
 * only queues the swap on the context; it happens at the start of the next
 * frame.
 */
type RenderViewSystem struct {
	Config RenderViewSystemConfig

	ctx   *renderer.Context
	views map[metadata.BackendKind]views.View
}

// NewRenderViewSystem creates the built-in forward, deferred, light pre-pass
// and stereo views.
func NewRenderViewSystem(config RenderViewSystemConfig, ctx *renderer.Context, loader renderer.TechniqueLoader) (*RenderViewSystem, error) {
	rvs := &RenderViewSystem{
		Config: config,
		ctx:    ctx,
		views:  make(map[metadata.BackendKind]views.View),
	}
	forward, err := views.NewForward(ctx, loader)
	if err != nil {
		return nil, err
	}
	deferred, err := views.NewDeferred(ctx, loader)
	if err != nil {
		return nil, err
	}
	lpp, err := views.NewLightPrePass(ctx, loader)
	if err != nil {
		return nil, err
	}
	stereo, err := views.NewStereo(ctx, loader)
	if err != nil {
		return nil, err
	}
	for _, v := range []views.View{forward, deferred, lpp, stereo} {
		rvs.Register(v)
	}
	return rvs, nil
}

// Initialize makes the default backend current immediately, notifying every
// subscriber.
func (rvs *RenderViewSystem) Initialize() error {
	v := rvs.Get(rvs.Config.DefaultBackend)
	if v == nil {
		return fmt.Errorf("func RenderViewSystem Initialize - no view for backend `%s`", rvs.Config.DefaultBackend)
	}
	rvs.ctx.SetBackend(v)
	return nil
}

// Register adds a view, replacing and disposing the one of the same kind.
func (rvs *RenderViewSystem) Register(view views.View) {
	if old, ok := rvs.views[view.Kind()]; ok && old != view {
		if rvs.ctx.Backend() == renderer.Backend(old) {
			core.LogWarn("replacing the active view `%s`", old.Name())
		}
		old.Dispose()
	}
	rvs.views[view.Kind()] = view
}

func (rvs *RenderViewSystem) Get(kind metadata.BackendKind) views.View {
	return rvs.views[kind]
}

// Active returns the view of the current backend.
func (rvs *RenderViewSystem) Active() views.View {
	v, _ := rvs.ctx.Backend().(views.View)
	return v
}

// Activate queues a swap to the view of kind. Safe to call from any goroutine.
func (rvs *RenderViewSystem) Activate(kind metadata.BackendKind) error {
	v := rvs.Get(kind)
	if v == nil {
		return fmt.Errorf("func RenderViewSystem Activate - no view for backend `%s`", kind)
	}
	return rvs.ctx.RequestBackend(v)
}

// Kinds lists the registered backend kinds in order.
func (rvs *RenderViewSystem) Kinds() []metadata.BackendKind {
	kinds := make([]metadata.BackendKind, 0, len(rvs.views))
	for k := range rvs.views {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (rvs *RenderViewSystem) Shutdown() error {
	for kind, v := range rvs.views {
		v.Dispose()
		delete(rvs.views, kind)
	}
	return nil
}
