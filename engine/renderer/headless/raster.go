package headless

import (
	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// Fragment is what a kernel sees for one covered pixel.
type Fragment struct {
	// UV is the interpolated vertex texture coordinate.
	UV math.Vec2
	// ScreenUV is the pixel center relative to the viewport, in [0, 1].
	ScreenUV math.Vec2
	// OutputSize is the viewport size in pixels.
	OutputSize [2]uint32
	Params     *renderer.Parameters

	inputs [metadata.MAX_TECHNIQUE_INPUTS]*Buffer
	filter metadata.TextureFilter
	dest   *Buffer
	px, py int
}

// Sample reads input slot at u, v. Unbound inputs read as transparent black.
func (f *Fragment) Sample(slot int, u, v float32) [4]float32 {
	if slot < 0 || slot >= len(f.inputs) || f.inputs[slot] == nil {
		return [4]float32{}
	}
	return f.inputs[slot].sample(u, v, f.filter)
}

func (f *Fragment) HasInput(slot int) bool {
	return slot >= 0 && slot < len(f.inputs) && f.inputs[slot] != nil
}

// InputTexel is the size of one texel of the input, in uv units.
func (f *Fragment) InputTexel(slot int) (float32, float32) {
	if !f.HasInput(slot) {
		return 0, 0
	}
	d := f.inputs[slot].desc
	return 1 / float32(d.Width), 1 / float32(d.Height)
}

// Param returns a parameter slot.
func (f *Fragment) Param(slot int) [4]float32 {
	return f.Params.Slot(slot)
}

// Dest returns the current value of the output pixel.
func (f *Fragment) Dest() [4]float32 {
	return f.dest.At(f.px, f.py)
}

type screenVertex struct {
	x, y float32
	uv   math.Vec2
}

func edge(a, b screenVertex, px, py float32) float32 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// owns decides which of two triangles sharing an edge covers pixels lying
// exactly on it, so blended draws never touch a pixel twice.
func owns(a, b screenVertex) bool {
	dy := b.y - a.y
	return dy > 0 || (dy == 0 && b.x > a.x)
}

func clearViewport(out *Buffer, vp metadata.Viewport, c [4]float32) {
	x1 := clampInt(int(vp.X+vp.Width), 0, int(out.desc.Width))
	y1 := clampInt(int(vp.Y+vp.Height), 0, int(out.desc.Height))
	for y := int(vp.Y); y < y1; y++ {
		for x := int(vp.X); x < x1; x++ {
			out.set(x, y, c)
		}
	}
	out.lineage = out.lineage[:0]
}

// rasterize draws a triangle list. Positions are in normalized device
// coordinates with +y up, mapped onto the viewport.
func rasterize(out *Buffer, vp metadata.Viewport, vertices []math.Vertex2D, transform *math.Mat4, blend metadata.BlendMode, k Kernel, frag *Fragment) {
	toScreen := func(v math.Vertex2D) screenVertex {
		p := transform.TransformPoint(v.Position)
		return screenVertex{
			x:  float32(vp.X) + (p.X*0.5+0.5)*float32(vp.Width),
			y:  float32(vp.Y) + (0.5-p.Y*0.5)*float32(vp.Height),
			uv: v.Texcoord,
		}
	}

	minX, minY := int(vp.X), int(vp.Y)
	maxX := clampInt(int(vp.X+vp.Width), 0, int(out.desc.Width)) - 1
	maxY := clampInt(int(vp.Y+vp.Height), 0, int(out.desc.Height)) - 1

	for i := 0; i+2 < len(vertices); i += 3 {
		v0, v1, v2 := toScreen(vertices[i]), toScreen(vertices[i+1]), toScreen(vertices[i+2])
		area := edge(v0, v1, v2.x, v2.y)
		if area == 0 {
			continue
		}
		if area < 0 {
			v1, v2 = v2, v1
			area = -area
		}

		bx0 := clampInt(floor(min3(v0.x, v1.x, v2.x)), minX, maxX)
		bx1 := clampInt(floor(max3(v0.x, v1.x, v2.x)), minX, maxX)
		by0 := clampInt(floor(min3(v0.y, v1.y, v2.y)), minY, maxY)
		by1 := clampInt(floor(max3(v0.y, v1.y, v2.y)), minY, maxY)

		for y := by0; y <= by1; y++ {
			for x := bx0; x <= bx1; x++ {
				px, py := float32(x)+0.5, float32(y)+0.5
				w0 := edge(v1, v2, px, py)
				w1 := edge(v2, v0, px, py)
				w2 := edge(v0, v1, px, py)
				if !inside(w0, v1, v2) || !inside(w1, v2, v0) || !inside(w2, v0, v1) {
					continue
				}
				l0, l1, l2 := w0/area, w1/area, w2/area
				frag.UV = math.Vec2{
					X: l0*v0.uv.X + l1*v1.uv.X + l2*v2.uv.X,
					Y: l0*v0.uv.Y + l1*v1.uv.Y + l2*v2.uv.Y,
				}
				frag.ScreenUV = math.Vec2{
					X: (px - float32(vp.X)) / float32(vp.Width),
					Y: (py - float32(vp.Y)) / float32(vp.Height),
				}
				frag.px, frag.py = x, y
				src := k(frag)
				out.set(x, y, blendPixel(blend, src, out.At(x, y)))
			}
		}
	}
}

func inside(w float32, a, b screenVertex) bool {
	return w > 0 || (w == 0 && owns(a, b))
}

func blendPixel(mode metadata.BlendMode, src, dst [4]float32) [4]float32 {
	switch mode {
	case metadata.BLEND_MODE_ALPHA:
		a := src[3]
		return [4]float32{
			src[0]*a + dst[0]*(1-a),
			src[1]*a + dst[1]*(1-a),
			src[2]*a + dst[2]*(1-a),
			a + dst[3]*(1-a),
		}
	case metadata.BLEND_MODE_ADDITIVE:
		return [4]float32{dst[0] + src[0], dst[1] + src[1], dst[2] + src[2], dst[3]}
	case metadata.BLEND_MODE_MULTIPLY:
		return [4]float32{dst[0] * src[0], dst[1] * src[1], dst[2] * src[2], dst[3]}
	default:
		return src
	}
}

func min3(a, b, c float32) float32 {
	return min(a, min(b, c))
}

func max3(a, b, c float32) float32 {
	return max(a, max(b, c))
}
