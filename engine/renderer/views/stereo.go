package views

import (
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// Stereo draws the scene once per eye into side by side viewports of the
// target, using the attached VR service's layout. When the frame is already
// drawn per eye it fills the whole target for that eye.
type Stereo struct {
	base
	fallback renderer.VRService
}

func NewStereo(ctx *renderer.Context, loader renderer.TechniqueLoader) (*Stereo, error) {
	b, err := newBase(metadata.BACKEND_KIND_STEREO, ctx, loader)
	if err != nil {
		return nil, err
	}
	return &Stereo{base: b, fallback: renderer.NewSideBySide()}, nil
}

func (s *Stereo) DrawScene(frame *renderer.Frame, scene *Scene, target renderer.ColorBuffer) error {
	s.stats = DrawStats{}
	if frame != nil && frame.PerEye {
		if err := s.clear(target, metadata.Viewport{}, scene.ClearColor.Array()); err != nil {
			return err
		}
		return s.drawRenderables(frame, scene, target, metadata.Viewport{}, nil, nil)
	}
	vr := s.ctx.VRService()
	if vr == nil {
		vr = s.fallback
	}
	d := target.Desc()
	for eye := 0; eye < vr.Eyes(); eye++ {
		vp := vr.EyeViewport(eye, d.Width, d.Height)
		if err := s.clear(target, vp, scene.ClearColor.Array()); err != nil {
			return err
		}
		if err := s.drawRenderables(frame, scene, target, vp, nil, nil); err != nil {
			return err
		}
	}
	return nil
}
