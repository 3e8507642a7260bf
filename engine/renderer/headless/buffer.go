package headless

import (
	"image"
	"image/color"

	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// Buffer is a CPU color buffer. Pixels are stored as 8-bit RGBA.
type Buffer struct {
	desc      metadata.BufferDesc
	img       *image.RGBA
	lineage   []string
	destroyed bool
	texture   bool
}

func newBuffer(desc metadata.BufferDesc) *Buffer {
	return &Buffer{
		desc: desc,
		img:  image.NewRGBA(image.Rect(0, 0, int(desc.Width), int(desc.Height))),
	}
}

func (b *Buffer) Name() string {
	return b.desc.Name
}

func (b *Buffer) Desc() metadata.BufferDesc {
	return b.desc
}

// Image exposes the pixels for readback.
func (b *Buffer) Image() *image.RGBA {
	return b.img
}

// Lineage lists the techniques that produced the current content, oldest first.
func (b *Buffer) Lineage() []string {
	out := make([]string, len(b.lineage))
	copy(out, b.lineage)
	return out
}

func (b *Buffer) Destroyed() bool {
	return b.destroyed
}

// At returns the pixel at x, y as normalized floats.
func (b *Buffer) At(x, y int) [4]float32 {
	c := b.img.RGBAAt(x, y)
	return [4]float32{
		float32(c.R) / 255,
		float32(c.G) / 255,
		float32(c.B) / 255,
		float32(c.A) / 255,
	}
}

func (b *Buffer) set(x, y int, v [4]float32) {
	b.img.SetRGBA(x, y, color.RGBA{
		R: toByte(v[0]),
		G: toByte(v[1]),
		B: toByte(v[2]),
		A: toByte(v[3]),
	})
}

// sample reads the buffer at normalized coordinates, clamped to the edge.
func (b *Buffer) sample(u, v float32, filter metadata.TextureFilter) [4]float32 {
	w, h := int(b.desc.Width), int(b.desc.Height)
	if w == 0 || h == 0 {
		return [4]float32{}
	}
	fx := u*float32(w) - 0.5
	fy := v*float32(h) - 0.5
	if filter == metadata.TextureFilterModeNearest {
		return b.At(clampInt(int(fx+0.5), 0, w-1), clampInt(int(fy+0.5), 0, h-1))
	}

	x0 := floor(fx)
	y0 := floor(fy)
	tx := fx - float32(x0)
	ty := fy - float32(y0)
	x1 := clampInt(x0+1, 0, w-1)
	y1 := clampInt(y0+1, 0, h-1)
	x0 = clampInt(x0, 0, w-1)
	y0 = clampInt(y0, 0, h-1)

	c00 := b.At(x0, y0)
	c10 := b.At(x1, y0)
	c01 := b.At(x0, y1)
	c11 := b.At(x1, y1)
	var out [4]float32
	for i := 0; i < 4; i++ {
		top := c00[i] + (c10[i]-c00[i])*tx
		bottom := c01[i] + (c11[i]-c01[i])*tx
		out[i] = top + (bottom-top)*ty
	}
	return out
}

func toByte(f float32) uint8 {
	if f <= 0 {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return uint8(f*255 + 0.5)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func floor(f float32) int {
	i := int(f)
	if f < 0 && float32(i) != f {
		i--
	}
	return i
}
