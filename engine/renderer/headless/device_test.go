package headless

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

var quad = []math.Vertex2D{
	{Position: math.NewVec2(-1, -1), Texcoord: math.NewVec2(0, 1)},
	{Position: math.NewVec2(1, -1), Texcoord: math.NewVec2(1, 1)},
	{Position: math.NewVec2(1, 1), Texcoord: math.NewVec2(1, 0)},
	{Position: math.NewVec2(-1, -1), Texcoord: math.NewVec2(0, 1)},
	{Position: math.NewVec2(1, 1), Texcoord: math.NewVec2(1, 0)},
	{Position: math.NewVec2(-1, 1), Texcoord: math.NewVec2(0, 0)},
}

func newTechnique(t *testing.T, d *Device, name, kernel string, blend metadata.BlendMode) renderer.Technique {
	t.Helper()
	tech, err := d.CreateTechnique(&metadata.TechniqueConfig{
		Name:   name,
		Kernel: kernel,
		Blend:  blend,
		Parameters: []metadata.ParameterConfig{
			{Name: "color", Slot: 0, Default: [4]float32{1, 0, 0, 1}},
		},
	}, nil)
	require.NoError(t, err)
	return tech
}

func TestDrawFillsWholeOutput(t *testing.T) {
	d := New(Config{Width: 8, Height: 8})
	geom, err := d.CreateGeometry("quad", quad)
	require.NoError(t, err)
	out, err := d.CreateColorBuffer(metadata.BufferDesc{Width: 8, Height: 8, Name: "out"})
	require.NoError(t, err)

	tech := newTechnique(t, d, "fill", "passthrough", metadata.BLEND_MODE_NONE)
	var cmd renderer.DrawCommand
	cmd.Reset(tech)
	cmd.Geometry = geom
	cmd.Output = out
	require.NoError(t, d.Draw(&cmd))

	img := out.(*Buffer).Image()
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(x, y), "pixel %d,%d", x, y)
		}
	}
	assert.Equal(t, []string{"fill"}, out.(*Buffer).Lineage())
}

func TestAdditiveQuadTouchesEachPixelOnce(t *testing.T) {
	d := New(Config{Width: 6, Height: 6})
	geom, _ := d.CreateGeometry("quad", quad)
	out, _ := d.CreateColorBuffer(metadata.BufferDesc{Width: 6, Height: 6})

	tech := newTechnique(t, d, "add", "passthrough", metadata.BLEND_MODE_ADDITIVE)
	var cmd renderer.DrawCommand
	cmd.Reset(tech)
	cmd.Params.SetArray(0, [4]float32{0.2, 0.2, 0.2, 1})
	cmd.Geometry = geom
	cmd.Output = out
	cmd.Clear = true
	require.NoError(t, d.Draw(&cmd))

	img := out.(*Buffer).Image()
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			assert.Equal(t, uint8(51), img.RGBAAt(x, y).R, "pixel %d,%d", x, y)
		}
	}
}

func TestViewportRestrictsDraw(t *testing.T) {
	d := New(Config{Width: 8, Height: 4})
	geom, _ := d.CreateGeometry("quad", quad)
	out, _ := d.CreateColorBuffer(metadata.BufferDesc{Width: 8, Height: 4})
	tech := newTechnique(t, d, "fill", "passthrough", metadata.BLEND_MODE_NONE)

	var cmd renderer.DrawCommand
	cmd.Reset(tech)
	cmd.Geometry = geom
	cmd.Output = out
	cmd.Viewport = metadata.Viewport{X: 4, Y: 0, Width: 4, Height: 4}
	require.NoError(t, d.Draw(&cmd))

	img := out.(*Buffer).Image()
	assert.Equal(t, uint8(0), img.RGBAAt(1, 1).R)
	assert.Equal(t, uint8(255), img.RGBAAt(5, 1).R)
}

func TestLineageFollowsFirstInput(t *testing.T) {
	d := New(Config{Width: 4, Height: 4})
	geom, _ := d.CreateGeometry("quad", quad)
	a, _ := d.CreateColorBuffer(metadata.BufferDesc{Width: 4, Height: 4, Name: "a"})
	b, _ := d.CreateColorBuffer(metadata.BufferDesc{Width: 4, Height: 4, Name: "b"})
	first := newTechnique(t, d, "first", "passthrough", metadata.BLEND_MODE_NONE)
	second := newTechnique(t, d, "second", "passthrough", metadata.BLEND_MODE_NONE)

	var cmd renderer.DrawCommand
	cmd.Reset(first)
	cmd.Geometry, cmd.Output, cmd.Clear = geom, a, true
	require.NoError(t, d.Draw(&cmd))

	cmd.Reset(second)
	cmd.Geometry, cmd.Output = geom, b
	cmd.Inputs[0] = a
	require.NoError(t, d.Draw(&cmd))
	assert.Equal(t, []string{"first", "second"}, b.(*Buffer).Lineage())

	require.NoError(t, d.Copy(b, a))
	assert.Equal(t, []string{"first", "second"}, a.(*Buffer).Lineage())

	records := d.Draws()
	require.Len(t, records, 2)
	assert.Equal(t, []string{"a"}, records[1].Inputs)
	assert.Equal(t, "b", records[1].Output)
}

func TestDestroyedBuffersAreRejected(t *testing.T) {
	d := New(Config{Width: 4, Height: 4})
	buf, err := d.CreateColorBuffer(metadata.BufferDesc{Width: 4, Height: 4})
	require.NoError(t, err)
	assert.Equal(t, 1, d.LiveBuffers())

	d.DestroyColorBuffer(buf)
	d.DestroyColorBuffer(buf)
	assert.Equal(t, 0, d.LiveBuffers())
	created, destroyed := d.Counters()
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, destroyed)

	other, _ := d.CreateColorBuffer(metadata.BufferDesc{Width: 4, Height: 4})
	assert.ErrorIs(t, d.Copy(buf, other), core.ErrDisposed)

	_, err = d.CreateColorBuffer(metadata.BufferDesc{Width: 0, Height: 4})
	assert.ErrorIs(t, err, core.ErrInvalidDimensions)
}

func TestSamplingReadsTexture(t *testing.T) {
	d := New(Config{Width: 2, Height: 2})
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{0, 0, 255, 255})
	img.SetRGBA(1, 0, color.RGBA{0, 255, 0, 255})
	tex, err := d.CreateTexture("stripes", img)
	require.NoError(t, err)

	b := tex.(*Buffer)
	left := b.sample(0.25, 0.5, metadata.TextureFilterModeNearest)
	right := b.sample(0.75, 0.5, metadata.TextureFilterModeNearest)
	assert.Equal(t, float32(1), left[2])
	assert.Equal(t, float32(1), right[1])
}

func TestFrameBracketing(t *testing.T) {
	d := New(Config{Width: 2, Height: 2})
	require.NoError(t, d.BeginFrame())
	assert.Error(t, d.BeginFrame())
	require.NoError(t, d.EndFrame())
	assert.Error(t, d.EndFrame())
	assert.Equal(t, uint64(1), d.Frames())
}
