package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanFramebuffer struct {
	Handle     vk.Framebuffer
	Width      uint32
	Height     uint32
	Renderpass *VulkanRenderpass
}

// FramebufferCreate wraps a single color attachment for renderpass.
func FramebufferCreate(context *VulkanContext, renderpass *VulkanRenderpass, image *VulkanImage) (*VulkanFramebuffer, error) {
	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: 1,
		PAttachments:    []vk.ImageView{image.View},
		Width:           image.Width,
		Height:          image.Height,
		Layers:          1,
	}
	var handle vk.Framebuffer
	if err := vkError("vkCreateFramebuffer", vk.CreateFramebuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	return &VulkanFramebuffer{
		Handle:     handle,
		Width:      image.Width,
		Height:     image.Height,
		Renderpass: renderpass,
	}, nil
}

func (vfb *VulkanFramebuffer) Destroy(context *VulkanContext) {
	if vfb.Handle != nil {
		vk.DestroyFramebuffer(context.Device.LogicalDevice, vfb.Handle, context.Allocator)
		vfb.Handle = nil
	}
	vfb.Renderpass = nil
}
