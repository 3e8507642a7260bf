package renderer

import (
	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// VRService describes an attached head-mounted display. While one is active,
// offscreen rendering happens at the size it reports instead of the back
// buffer size.
type VRService interface {
	Name() string
	Eyes() int
	OutputSize(back metadata.BufferDesc) (uint32, uint32)
	// EyeViewport returns the region of a presentation target of the given
	// size that the eye occupies.
	EyeViewport(eye int, width, height uint32) metadata.Viewport
}

// SideBySide splits the back buffer into two horizontal halves, one per eye.
type SideBySide struct {
	// EyeWidth and EyeHeight override the derived per-eye size when non-zero.
	EyeWidth  uint32
	EyeHeight uint32
}

func NewSideBySide() *SideBySide {
	return &SideBySide{}
}

func (s *SideBySide) Name() string {
	return "side_by_side"
}

func (s *SideBySide) Eyes() int {
	return 2
}

func (s *SideBySide) OutputSize(back metadata.BufferDesc) (uint32, uint32) {
	w := math.HalveDimension(back.Width)
	h := back.Height
	if s.EyeWidth != 0 {
		w = s.EyeWidth
	}
	if s.EyeHeight != 0 {
		h = s.EyeHeight
	}
	return w, h
}

func (s *SideBySide) EyeViewport(eye int, width, height uint32) metadata.Viewport {
	half := math.HalveDimension(width)
	vp := metadata.Viewport{Width: half, Height: height}
	if eye > 0 {
		vp.X = half
		vp.Width = width - half
	}
	return vp
}
