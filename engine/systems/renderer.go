package systems

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-fx/engine/renderer/postprocess"
	"github.com/spaghettifunk/anima-fx/engine/renderer/targets"
	"github.com/spaghettifunk/anima-fx/engine/renderer/views"
)

/** @brief The technique that copies the final image into the back buffer. */
const PresentTechnique string = "present"

type RendererSystemConfig struct {
	Pool    targets.PoolConfig
	Context renderer.ContextConfig
}

/**
 * @brief RendererSystem owns the engine context, the offscreen pool, the
 * post-process pipeline and the scene color buffer, and draws one frame:
 * pending requests are applied, the active view draws the scene, the
 * pipeline runs over it and the result is presented.
 */
type RendererSystem struct {
	device   renderer.Device
	ctx      *renderer.Context
	pool     *targets.Pool
	pipeline *postprocess.Pipeline
	loader   renderer.TechniqueLoader

	// The scene color buffer, sized to the context output size.
	scene *targets.Persistent

	FrameNumber uint64
	initialized bool
}

func NewRendererSystem(device renderer.Device, config *RendererSystemConfig) (*RendererSystem, error) {
	if device == nil {
		return nil, fmt.Errorf("func NewRendererSystem - %w: no device", core.ErrUnsupportedDevice)
	}
	if config == nil {
		config = &RendererSystemConfig{}
	}
	ctx := renderer.NewContext(device, &config.Context)
	return &RendererSystem{
		device: device,
		ctx:    ctx,
		pool:   targets.NewPool(device, config.Pool),
	}, nil
}

// Initialize creates the pipeline and the scene buffer. loader resolves every
// technique the renderer, views and passes use.
func (r *RendererSystem) Initialize(loader renderer.TechniqueLoader) error {
	if r.initialized {
		return core.ErrAlreadyInitialized
	}
	p, err := postprocess.NewPipeline(r.ctx, loader, r.pool)
	if err != nil {
		return err
	}
	r.pipeline = p
	r.loader = loader
	r.scene = targets.NewPersistent(r.device, "scene", r.ctx.OutputSize)
	r.ctx.OnOutputSizeChanged(r, func(width, height uint32) {
		if err := r.scene.Recreate(); err != nil {
			core.LogError("failed to recreate the scene buffer at %dx%d: %s", width, height, err)
		}
	})
	r.initialized = true
	return nil
}

func (r *RendererSystem) Device() renderer.Device {
	return r.device
}

func (r *RendererSystem) Context() *renderer.Context {
	return r.ctx
}

func (r *RendererSystem) Pool() *targets.Pool {
	return r.pool
}

func (r *RendererSystem) Pipeline() *postprocess.Pipeline {
	return r.pipeline
}

// SceneBuffer returns the scene color buffer, nil before the first frame.
func (r *RendererSystem) SceneBuffer() renderer.ColorBuffer {
	if r.scene == nil {
		return nil
	}
	return r.scene.Current()
}

// OnResize queues a back buffer resize for the next frame.
func (r *RendererSystem) OnResize(width, height uint32) error {
	return r.ctx.RequestResize(width, height)
}

/**
 * @brief Draws one frame with view. Pending requests are applied first, so a
 * backend swap, VR change or technique reload requested before this call is
 * complete before anything is drawn. With a VR service attached the scene is
 * drawn and post-processed once per eye at the per-eye size.
 */
func (r *RendererSystem) DrawFrame(frame *renderer.Frame, view views.View, scene *views.Scene) error {
	if !r.initialized {
		return core.ErrNotInitialized
	}
	r.ctx.Drain()

	if err := r.device.BeginFrame(); err != nil {
		return err
	}
	errs := r.drawFrame(frame, view, scene)
	if err := r.device.EndFrame(); err != nil {
		errs = errors.Join(errs, err)
	}
	r.FrameNumber++
	return errs
}

func (r *RendererSystem) drawFrame(frame *renderer.Frame, view views.View, scene *views.Scene) error {
	buf, err := r.scene.Acquire()
	if err != nil {
		return err
	}
	r.scene.Use()
	defer r.scene.Done()

	back := r.device.BackBufferTarget()
	vr := r.ctx.VRService()
	if vr == nil {
		if err := r.drawEye(frame, view, scene, buf); err != nil {
			return err
		}
		return r.present(buf, back, metadata.Viewport{})
	}

	bd := back.Desc()
	eyeFrame := *frame
	eyeFrame.PerEye = true
	var errs error
	for eye := 0; eye < vr.Eyes(); eye++ {
		eyeFrame.Eye = eye
		if err := r.drawEye(&eyeFrame, view, scene, buf); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		if err := r.present(buf, back, vr.EyeViewport(eye, bd.Width, bd.Height)); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

func (r *RendererSystem) drawEye(frame *renderer.Frame, view views.View, scene *views.Scene, buf renderer.ColorBuffer) error {
	if view != nil && scene != nil {
		if err := view.DrawScene(frame, scene, buf); err != nil {
			return fmt.Errorf("view `%s`: %w", view.Name(), err)
		}
	}
	return r.pipeline.Run(frame, buf)
}

func (r *RendererSystem) present(src, back renderer.ColorBuffer, vp metadata.Viewport) error {
	t, err := r.loader.Technique(PresentTechnique)
	if err != nil {
		if vp.IsZero() {
			return r.device.Copy(src, back)
		}
		return err
	}
	return r.pipeline.PassContext().Quad.DrawViewport(t, nil, back, vp, src)
}

func (r *RendererSystem) Shutdown() error {
	if r.pipeline != nil {
		r.pipeline.Dispose()
	}
	if r.scene != nil {
		r.ctx.UnsubscribeOutputSizeChanged(r)
		r.scene.Dispose()
	}
	r.pool.Dispose()
	r.initialized = false
	return r.device.Shutdown()
}
