package postprocess

import (
	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// QuadVertices are two triangles covering clip space. Texture coordinates put
// v=0 at the top.
var QuadVertices = []math.Vertex2D{
	{Position: math.NewVec2(-1, -1), Texcoord: math.NewVec2(0, 1)},
	{Position: math.NewVec2(1, -1), Texcoord: math.NewVec2(1, 1)},
	{Position: math.NewVec2(1, 1), Texcoord: math.NewVec2(1, 0)},
	{Position: math.NewVec2(-1, -1), Texcoord: math.NewVec2(0, 1)},
	{Position: math.NewVec2(1, 1), Texcoord: math.NewVec2(1, 0)},
	{Position: math.NewVec2(-1, 1), Texcoord: math.NewVec2(0, 0)},
}

/**
 * @brief Quad draws a full-screen quad with a technique. The geometry is
 * uploaded once and the draw command is reused between calls.
 */
type Quad struct {
	device   renderer.Device
	geometry renderer.Geometry
	cmd      renderer.DrawCommand
}

func NewQuad(device renderer.Device) (*Quad, error) {
	g, err := device.CreateGeometry("fullscreen_quad", QuadVertices)
	if err != nil {
		return nil, err
	}
	return &Quad{device: device, geometry: g}, nil
}

func (q *Quad) Geometry() renderer.Geometry {
	return q.geometry
}

// Draw renders technique into output. A nil params uses the technique defaults.
func (q *Quad) Draw(technique renderer.Technique, params *renderer.Parameters, output renderer.ColorBuffer, inputs ...renderer.ColorBuffer) error {
	return q.DrawViewport(technique, params, output, metadata.Viewport{}, inputs...)
}

// DrawViewport renders into a region of output. A zero viewport covers all of it.
func (q *Quad) DrawViewport(technique renderer.Technique, params *renderer.Parameters, output renderer.ColorBuffer, viewport metadata.Viewport, inputs ...renderer.ColorBuffer) error {
	q.cmd.Reset(technique)
	if params != nil {
		q.cmd.Params = *params
	}
	q.cmd.Geometry = q.geometry
	q.cmd.Output = output
	q.cmd.Viewport = viewport
	for i, in := range inputs {
		if i >= metadata.MAX_TECHNIQUE_INPUTS {
			break
		}
		q.cmd.Inputs[i] = in
	}
	return q.device.Draw(&q.cmd)
}

// Command exposes the reusable command for callers that need a transform or
// blending with a clear. Geometry is set; everything else starts from Reset.
func (q *Quad) Command(technique renderer.Technique) *renderer.DrawCommand {
	q.cmd.Reset(technique)
	q.cmd.Geometry = q.geometry
	return &q.cmd
}

// Submit draws a command obtained from Command.
func (q *Quad) Submit(cmd *renderer.DrawCommand) error {
	return q.device.Draw(cmd)
}

func (q *Quad) Dispose() {
	if q.geometry != nil {
		q.device.DestroyGeometry(q.geometry)
		q.geometry = nil
	}
}
