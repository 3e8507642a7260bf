package vulkan

import (
	"fmt"
	"unsafe"

	"github.com/spaghettifunk/anima-fx/engine/math"
)

/**
 * @brief Uploaded vertex data. Geometry is drawn as a non-indexed triangle
 * list straight from a host visible buffer.
 */
type VulkanGeometry struct {
	name        string
	vertexCount uint32
	buffer      *VulkanBuffer
}

func (g *VulkanGeometry) Name() string {
	return g.name
}

func (g *VulkanGeometry) VertexCount() uint32 {
	return g.vertexCount
}

func GeometryCreate(context *VulkanContext, name string, vertices []math.Vertex2D) (*VulkanGeometry, error) {
	if len(vertices) == 0 {
		return nil, fmt.Errorf("func GeometryCreate - geometry `%s` has no vertices", name)
	}
	size := uint64(len(vertices)) * vertex2DStride
	buffer, err := BufferCreate(context, size, vkBufferUsageVertex)
	if err != nil {
		return nil, err
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), size)
	if err := buffer.Write(0, data); err != nil {
		buffer.Destroy(context)
		return nil, err
	}
	return &VulkanGeometry{
		name:        name,
		vertexCount: uint32(len(vertices)),
		buffer:      buffer,
	}, nil
}

func (g *VulkanGeometry) Destroy(context *VulkanContext) {
	if g.buffer != nil {
		g.buffer.Destroy(context)
		g.buffer = nil
	}
}
