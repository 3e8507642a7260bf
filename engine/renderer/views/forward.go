package views

import (
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// Forward lights every material in its own draw.
type Forward struct {
	base
}

func NewForward(ctx *renderer.Context, loader renderer.TechniqueLoader) (*Forward, error) {
	b, err := newBase(metadata.BACKEND_KIND_FORWARD, ctx, loader)
	if err != nil {
		return nil, err
	}
	return &Forward{base: b}, nil
}

func (f *Forward) DrawScene(frame *renderer.Frame, scene *Scene, target renderer.ColorBuffer) error {
	f.stats = DrawStats{}
	if err := f.clear(target, metadata.Viewport{}, scene.ClearColor.Array()); err != nil {
		return err
	}
	return f.drawRenderables(frame, scene, target, metadata.Viewport{}, nil, nil)
}
