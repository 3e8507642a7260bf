package postprocess

import (
	"fmt"

	"github.com/fzipp/bmfont"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

const glyphTechnique = "glyph"

// Font is a bitmap font with its first page uploaded as the atlas.
type Font struct {
	Name       string
	Descriptor *bmfont.Descriptor
	Atlas      renderer.ColorBuffer
}

/**
 * @brief Lays text out as glyph quads, 6 vertices per visible glyph.
 * Positions are in clip space for a target of width x height pixels with the
 * pen starting at x, y (top-left origin); texture coordinates address the atlas.
 */
func LayoutText(desc *bmfont.Descriptor, text string, x, y, scale float32, width, height uint32) []math.Vertex2D {
	if desc == nil || width == 0 || height == 0 {
		return nil
	}
	if scale <= 0 {
		scale = 1
	}
	atlasW := float32(desc.Common.ScaleW)
	atlasH := float32(desc.Common.ScaleH)
	if atlasW == 0 || atlasH == 0 {
		return nil
	}
	toClipX := func(px float32) float32 { return px/float32(width)*2 - 1 }
	toClipY := func(py float32) float32 { return 1 - py/float32(height)*2 }

	vertices := make([]math.Vertex2D, 0, len(text)*6)
	penX, penY := x, y
	var prev rune
	for _, r := range text {
		if r == '\n' {
			penX = x
			penY += float32(desc.Common.LineHeight) * scale
			prev = 0
			continue
		}
		g, ok := desc.Chars[r]
		if !ok {
			prev = 0
			continue
		}
		if prev != 0 {
			if k, ok := desc.Kerning[bmfont.CharPair{First: prev, Second: r}]; ok {
				penX += float32(k.Amount) * scale
			}
		}
		if g.Width > 0 && g.Height > 0 {
			x0 := toClipX(penX + float32(g.XOffset)*scale)
			x1 := toClipX(penX + float32(g.XOffset+g.Width)*scale)
			y0 := toClipY(penY + float32(g.YOffset)*scale)
			y1 := toClipY(penY + float32(g.YOffset+g.Height)*scale)
			u0 := float32(g.X) / atlasW
			u1 := float32(g.X+g.Width) / atlasW
			v0 := float32(g.Y) / atlasH
			v1 := float32(g.Y+g.Height) / atlasH
			// y0 is the glyph top, so it pairs with v0.
			vertices = append(vertices,
				math.Vertex2D{Position: math.NewVec2(x0, y1), Texcoord: math.NewVec2(u0, v1)},
				math.Vertex2D{Position: math.NewVec2(x1, y1), Texcoord: math.NewVec2(u1, v1)},
				math.Vertex2D{Position: math.NewVec2(x1, y0), Texcoord: math.NewVec2(u1, v0)},
				math.Vertex2D{Position: math.NewVec2(x0, y1), Texcoord: math.NewVec2(u0, v1)},
				math.Vertex2D{Position: math.NewVec2(x1, y0), Texcoord: math.NewVec2(u1, v0)},
				math.Vertex2D{Position: math.NewVec2(x0, y0), Texcoord: math.NewVec2(u0, v0)},
			)
		}
		penX += float32(g.XAdvance) * scale
		prev = r
	}
	return vertices
}

type textKey struct {
	text          string
	width, height uint32
}

/**
 * @brief DebugOverlay prints the active backend and frame rate over the
 * scene. Without a font it disables itself.
 */
type DebugOverlay struct {
	BasePass
	Font *Font
	// FontName is the font system name the owner resolves Font from.
	FontName string
	Color    [4]float32
	Scale    float32
	// X and Y are the pen origin in pixels from the top-left corner.
	X, Y float32
	// Text overrides the default backend and FPS line.
	Text func(frame *renderer.Frame) string

	geometry renderer.Geometry
	key      textKey
	color    renderer.ParameterHandle
}

func NewDebugOverlay(name string, priority int) *DebugOverlay {
	if name == "" {
		name = "overlay"
	}
	return &DebugOverlay{
		BasePass: NewBasePass(name, priority),
		Color:    [4]float32{1, 1, 1, 1},
		Scale:    1,
		X:        8,
		Y:        8,
	}
}

func (o *DebugOverlay) Initialize(ctx *PassContext) error {
	if err := o.BasePass.Initialize(ctx); err != nil {
		return err
	}
	if o.Font == nil || o.Font.Descriptor == nil || o.Font.Atlas == nil {
		core.LogWarn("pass `%s` has no font, disabling it", o.name)
		o.SetEnabled(false)
		return nil
	}
	t, err := o.Technique(glyphTechnique)
	if err != nil {
		return err
	}
	o.color = renderer.ParameterOrInvalid(t, "color")
	return nil
}

func (o *DebugOverlay) SetParam(name string, value interface{}) error {
	switch name {
	case "scale", "x", "y":
		v, err := floatParam(o.name, name, value)
		if err != nil {
			return err
		}
		switch name {
		case "scale":
			o.Scale = v
		case "x":
			o.X = v
		default:
			o.Y = v
		}
	case "font":
		v, ok := value.(string)
		if !ok {
			return paramTypeError(o.name, name, value)
		}
		o.FontName = v
	case "color":
		c, ok := metadata.AsColor(value, o.Color)
		if !ok {
			return paramTypeError(o.name, name, value)
		}
		o.Color = c
	default:
		return o.BasePass.SetParam(name, value)
	}
	return nil
}

func (o *DebugOverlay) text(frame *renderer.Frame) string {
	if o.Text != nil {
		return o.Text(frame)
	}
	backend := "none"
	if b := o.ctx.Context.Backend(); b != nil {
		backend = b.Name()
	}
	fps := 0.0
	if frame != nil {
		fps = frame.FPS
	}
	return fmt.Sprintf("%s %.0f fps", backend, fps)
}

func (o *DebugOverlay) Draw(frame *renderer.Frame, scene renderer.ColorBuffer) error {
	if err := o.Ready(); err != nil {
		return err
	}
	if o.Font == nil {
		o.SetEnabled(false)
		return nil
	}
	t, err := o.Technique(glyphTechnique)
	if err != nil {
		return err
	}
	d := scene.Desc()
	key := textKey{text: o.text(frame), width: d.Width, height: d.Height}
	if o.geometry == nil || key != o.key {
		if err := o.rebuild(key); err != nil {
			return err
		}
	}
	if o.geometry == nil {
		return nil
	}
	cmd := o.ctx.Quad.Command(t)
	cmd.Geometry = o.geometry
	cmd.Output = scene
	cmd.Inputs[0] = o.Font.Atlas
	cmd.Params.SetArray(o.color, o.Color)
	return o.ctx.Quad.Submit(cmd)
}

func (o *DebugOverlay) rebuild(key textKey) error {
	device := o.ctx.Device()
	if o.geometry != nil {
		device.DestroyGeometry(o.geometry)
		o.geometry = nil
	}
	o.key = key
	vertices := LayoutText(o.Font.Descriptor, key.text, o.X, o.Y, o.Scale, key.width, key.height)
	if len(vertices) == 0 {
		return nil
	}
	g, err := device.CreateGeometry(fmt.Sprintf("%s-text", o.name), vertices)
	if err != nil {
		return err
	}
	o.geometry = g
	return nil
}

func (o *DebugOverlay) Dispose() error {
	if o.geometry != nil && o.ctx != nil {
		o.ctx.Device().DestroyGeometry(o.geometry)
		o.geometry = nil
	}
	return o.BasePass.Dispose()
}
