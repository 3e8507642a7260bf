package vulkan

import (
	"fmt"

	"github.com/gogpu/naga"
	vk "github.com/goki/vulkan"
)

/**
 * @brief A compiled WGSL module and the stages built from its entry points.
 */
type VulkanShaderModule struct {
	Handle vk.ShaderModule
	Stages []vk.PipelineShaderStageCreateInfo
}

// CompileWGSL translates WGSL into SPIR-V words.
func CompileWGSL(source []byte) ([]uint32, error) {
	spirvBytes, err := naga.Compile(string(source))
	if err != nil {
		return nil, fmt.Errorf("func CompileWGSL - failed to compile shader: %w", err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("func CompileWGSL - SPIR-V size %d is not a multiple of 4", len(spirvBytes))
	}
	// SPIR-V words are little-endian.
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}

// NewShaderModule compiles source and prepares the vertex and fragment stages
// from the named entry points.
func NewShaderModule(context *VulkanContext, source []byte, vertexEntry, fragmentEntry string) (*VulkanShaderModule, error) {
	code, err := CompileWGSL(source)
	if err != nil {
		return nil, err
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}
	var handle vk.ShaderModule
	if err := vkError("vkCreateShaderModule", vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	return &VulkanShaderModule{
		Handle: handle,
		Stages: []vk.PipelineShaderStageCreateInfo{
			{
				SType:  vk.StructureTypePipelineShaderStageCreateInfo,
				Stage:  vk.ShaderStageVertexBit,
				Module: handle,
				PName:  VulkanSafeString(vertexEntry),
			},
			{
				SType:  vk.StructureTypePipelineShaderStageCreateInfo,
				Stage:  vk.ShaderStageFragmentBit,
				Module: handle,
				PName:  VulkanSafeString(fragmentEntry),
			},
		},
	}, nil
}

func (m *VulkanShaderModule) Destroy(context *VulkanContext) {
	if m.Handle != nil {
		vk.DestroyShaderModule(context.Device.LogicalDevice, m.Handle, context.Allocator)
		m.Handle = nil
	}
	m.Stages = nil
}
