package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

/**
 * @brief A 2D color image with its memory and view. Layout tracks the layout
 * the last recorded command left the image in.
 */
type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
	Format vk.Format
	Layout vk.ImageLayout
}

var colorSubresourceRange = vk.ImageSubresourceRange{
	AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
	BaseMipLevel:   0,
	LevelCount:     1,
	BaseArrayLayer: 0,
	LayerCount:     1,
}

var colorSubresourceLayers = vk.ImageSubresourceLayers{
	AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
	MipLevel:       0,
	BaseArrayLayer: 0,
	LayerCount:     1,
}

func ImageCreate(context *VulkanContext, width, height uint32, format vk.Format, usage vk.ImageUsageFlagBits) (*VulkanImage, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("func ImageCreate - invalid size %dx%d", width, height)
	}
	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	img := &VulkanImage{
		Width:  width,
		Height: height,
		Format: format,
		Layout: vk.ImageLayoutUndefined,
	}
	device := context.Device.LogicalDevice
	if err := vkError("vkCreateImage", vk.CreateImage(device, &createInfo, context.Allocator, &img.Handle)); err != nil {
		return nil, err
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, img.Handle, &requirements)
	requirements.Deref()
	index := context.FindMemoryIndex(requirements.MemoryTypeBits, uint32(vk.MemoryPropertyDeviceLocalBit))
	if index < 0 {
		img.Destroy(context)
		return nil, fmt.Errorf("func ImageCreate - required memory type not found, image not valid")
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(index),
	}
	if err := vkError("vkAllocateMemory", vk.AllocateMemory(device, &allocateInfo, context.Allocator, &img.Memory)); err != nil {
		img.Destroy(context)
		return nil, err
	}
	if err := vkError("vkBindImageMemory", vk.BindImageMemory(device, img.Handle, img.Memory, 0)); err != nil {
		img.Destroy(context)
		return nil, err
	}

	viewInfo := vk.ImageViewCreateInfo{
		SType:            vk.StructureTypeImageViewCreateInfo,
		Image:            img.Handle,
		ViewType:         vk.ImageViewType2d,
		Format:           format,
		SubresourceRange: colorSubresourceRange,
	}
	if err := vkError("vkCreateImageView", vk.CreateImageView(device, &viewInfo, context.Allocator, &img.View)); err != nil {
		img.Destroy(context)
		return nil, err
	}
	return img, nil
}

func layoutAccess(layout vk.ImageLayout) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch layout {
	case vk.ImageLayoutColorAttachmentOptimal:
		return vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	case vk.ImageLayoutShaderReadOnlyOptimal:
		return vk.AccessFlags(vk.AccessShaderReadBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	case vk.ImageLayoutTransferSrcOptimal:
		return vk.AccessFlags(vk.AccessTransferReadBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutTransferDstOptimal:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	default:
		return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
}

// TransitionLayout records a barrier moving the image into newLayout. It is a
// no-op when the image already is in that layout.
func (img *VulkanImage) TransitionLayout(cb *VulkanCommandBuffer, newLayout vk.ImageLayout) {
	if img.Layout == newLayout {
		return
	}
	srcAccess, srcStage := layoutAccess(img.Layout)
	dstAccess, dstStage := layoutAccess(newLayout)
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           img.Layout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.Handle,
		SubresourceRange:    colorSubresourceRange,
	}
	vk.CmdPipelineBarrier(cb.Handle, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	img.Layout = newLayout
}

// CopyFromBuffer records an upload of tightly packed texels from buffer.
func (img *VulkanImage) CopyFromBuffer(cb *VulkanCommandBuffer, buffer *VulkanBuffer) {
	img.TransitionLayout(cb, vk.ImageLayoutTransferDstOptimal)
	region := vk.BufferImageCopy{
		ImageSubresource: colorSubresourceLayers,
		ImageExtent:      vk.Extent3D{Width: img.Width, Height: img.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(cb.Handle, buffer.Handle, img.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

// CopyToBuffer records a readback of the whole image into buffer.
func (img *VulkanImage) CopyToBuffer(cb *VulkanCommandBuffer, buffer *VulkanBuffer) {
	img.TransitionLayout(cb, vk.ImageLayoutTransferSrcOptimal)
	region := vk.BufferImageCopy{
		ImageSubresource: colorSubresourceLayers,
		ImageExtent:      vk.Extent3D{Width: img.Width, Height: img.Height, Depth: 1},
	}
	vk.CmdCopyImageToBuffer(cb.Handle, img.Handle, vk.ImageLayoutTransferSrcOptimal, buffer.Handle, 1, []vk.BufferImageCopy{region})
}

// BlitTo records a scaled copy of the whole image into dst.
func (img *VulkanImage) BlitTo(cb *VulkanCommandBuffer, dst *VulkanImage, filter vk.Filter) {
	img.TransitionLayout(cb, vk.ImageLayoutTransferSrcOptimal)
	dst.TransitionLayout(cb, vk.ImageLayoutTransferDstOptimal)
	blit := vk.ImageBlit{
		SrcSubresource: colorSubresourceLayers,
		SrcOffsets:     [2]vk.Offset3D{{}, {X: int32(img.Width), Y: int32(img.Height), Z: 1}},
		DstSubresource: colorSubresourceLayers,
		DstOffsets:     [2]vk.Offset3D{{}, {X: int32(dst.Width), Y: int32(dst.Height), Z: 1}},
	}
	vk.CmdBlitImage(cb.Handle, img.Handle, vk.ImageLayoutTransferSrcOptimal, dst.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageBlit{blit}, filter)
}

func (img *VulkanImage) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if img.View != nil {
		vk.DestroyImageView(device, img.View, context.Allocator)
		img.View = nil
	}
	if img.Handle != nil {
		vk.DestroyImage(device, img.Handle, context.Allocator)
		img.Handle = nil
	}
	if img.Memory != nil {
		vk.FreeMemory(device, img.Memory, context.Allocator)
		img.Memory = nil
	}
}
