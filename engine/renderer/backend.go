package renderer

import (
	"fmt"
	"image"

	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// ColorBuffer is a GPU color target that can also be sampled.
type ColorBuffer interface {
	Name() string
	Desc() metadata.BufferDesc
}

// Geometry is an uploaded vertex list drawn as a triangle list.
type Geometry interface {
	Name() string
	VertexCount() uint32
}

// Technique is a compiled shader program plus its fixed-function state.
type Technique interface {
	Name() string
	Config() *metadata.TechniqueConfig
	// Parameter resolves a parameter name to its slot. Callers cache the
	// handle; lookups by name are not meant for the per-frame path.
	Parameter(name string) (ParameterHandle, bool)
	// Defaults returns the parameter block with every declared default applied.
	Defaults() Parameters
}

// Device is the GPU abstraction every backend, pass and material draws
// through. Implementations: headless (software), vulkan, webgpu.
type Device interface {
	Name() string
	// BackBuffer describes the primary back buffer. Offscreen buffers inherit
	// its pixel format and sample count.
	BackBuffer() metadata.BufferDesc
	// BackBufferTarget returns the buffer presented at EndFrame.
	BackBufferTarget() ColorBuffer
	Resize(width, height uint32) error

	CreateColorBuffer(desc metadata.BufferDesc) (ColorBuffer, error)
	DestroyColorBuffer(buffer ColorBuffer)
	CreateTexture(name string, img image.Image) (ColorBuffer, error)

	CreateTechnique(config *metadata.TechniqueConfig, source []byte) (Technique, error)
	DestroyTechnique(technique Technique)

	CreateGeometry(name string, vertices []math.Vertex2D) (Geometry, error)
	DestroyGeometry(geometry Geometry)

	Draw(cmd *DrawCommand) error
	// Copy blits src into dst, scaling when the sizes differ.
	Copy(src, dst ColorBuffer) error

	BeginFrame() error
	EndFrame() error
	Shutdown() error
}

/**
 * @brief A single draw: one technique, one geometry, up to
 * MAX_TECHNIQUE_INPUTS sampled inputs, one output.
 */
type DrawCommand struct {
	Technique Technique
	Geometry  Geometry
	Inputs    [metadata.MAX_TECHNIQUE_INPUTS]ColorBuffer
	Output    ColorBuffer
	/** @brief The output region. A zero viewport covers the whole output. */
	Viewport metadata.Viewport
	Params   Parameters
	/** @brief Applied to geometry positions, which are in normalized device coordinates. */
	Transform math.Mat4
	/** @brief Clears the viewport to ClearColor before drawing. */
	Clear      bool
	ClearColor math.Vec4
}

// Reset prepares the command for reuse with the given technique. Parameters
// start from the technique defaults.
func (c *DrawCommand) Reset(technique Technique) {
	*c = DrawCommand{
		Technique: technique,
		Transform: math.NewMat4Identity(),
	}
	if technique != nil {
		c.Params = technique.Defaults()
	}
}

// InputCount returns the number of bound inputs.
func (c *DrawCommand) InputCount() int {
	n := 0
	for _, in := range c.Inputs {
		if in != nil {
			n++
		}
	}
	return n
}

// Validate checks what every device requires before recording a draw.
func (c *DrawCommand) Validate() error {
	if c.Technique == nil {
		return fmt.Errorf("draw command has no technique")
	}
	if c.Geometry == nil {
		return fmt.Errorf("draw command `%s` has no geometry", c.Technique.Name())
	}
	if c.Output == nil {
		return fmt.Errorf("draw command `%s` has no output", c.Technique.Name())
	}
	for _, in := range c.Inputs {
		if in != nil && in == c.Output {
			return fmt.Errorf("draw command `%s` samples its own output `%s`", c.Technique.Name(), in.Name())
		}
	}
	return nil
}

// ViewportFor resolves the command viewport against its output.
func (c *DrawCommand) ViewportFor() metadata.Viewport {
	if !c.Viewport.IsZero() {
		return c.Viewport
	}
	d := c.Output.Desc()
	return metadata.Viewport{Width: d.Width, Height: d.Height}
}
