package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

const (
	vkBufferUsageVertex  = vk.BufferUsageVertexBufferBit
	vkBufferUsageUniform = vk.BufferUsageUniformBufferBit
	vkBufferUsageStaging = vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit
)

/**
 * @brief A host visible Vulkan buffer. Vertex data, uniforms and staging
 * uploads all live in host visible memory; the device only draws small
 * full screen geometry.
 */
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
	Usage  vk.BufferUsageFlagBits

	mapped unsafe.Pointer
}

func BufferCreate(context *VulkanContext, size uint64, usage vk.BufferUsageFlagBits) (*VulkanBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("func BufferCreate - size must be > 0")
	}
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if err := vkError("vkCreateBuffer", vk.CreateBuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &requirements)
	requirements.Deref()

	index := context.FindMemoryIndex(requirements.MemoryTypeBits,
		uint32(vk.MemoryPropertyHostVisibleBit)|uint32(vk.MemoryPropertyHostCoherentBit))
	if index < 0 {
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		return nil, fmt.Errorf("func BufferCreate - no host visible memory type")
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(index),
	}
	var memory vk.DeviceMemory
	if err := vkError("vkAllocateMemory", vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory)); err != nil {
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		return nil, err
	}
	if err := vkError("vkBindBufferMemory", vk.BindBufferMemory(context.Device.LogicalDevice, handle, memory, 0)); err != nil {
		vk.FreeMemory(context.Device.LogicalDevice, memory, context.Allocator)
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		return nil, err
	}

	b := &VulkanBuffer{
		Handle: handle,
		Memory: memory,
		Size:   size,
		Usage:  usage,
	}
	if err := vkError("vkMapMemory", vk.MapMemory(context.Device.LogicalDevice, memory, 0, vk.DeviceSize(size), 0, &b.mapped)); err != nil {
		b.Destroy(context)
		return nil, err
	}
	return b, nil
}

// Write copies data into the buffer at offset.
func (b *VulkanBuffer) Write(offset uint64, data []byte) error {
	if offset+uint64(len(data)) > b.Size {
		return fmt.Errorf("func Buffer Write - %d bytes at %d overflow a %d byte buffer", len(data), offset, b.Size)
	}
	vk.Memcopy(unsafe.Add(b.mapped, uintptr(offset)), data)
	return nil
}

// Read copies size bytes starting at offset out of the buffer.
func (b *VulkanBuffer) Read(offset, size uint64) []byte {
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(unsafe.Add(b.mapped, uintptr(offset))), size))
	return out
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	if b.mapped != nil {
		vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
		b.mapped = nil
	}
	if b.Handle != nil {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = nil
	}
	if b.Memory != nil {
		vk.FreeMemory(context.Device.LogicalDevice, b.Memory, context.Allocator)
		b.Memory = nil
	}
}

// float32Bytes reinterprets a float slice as bytes without copying.
func float32Bytes(f []float32) []byte {
	if len(f) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&f[0])), len(f)*4)
}
