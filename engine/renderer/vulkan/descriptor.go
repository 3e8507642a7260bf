package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// Binding numbers match the group 0 layout every technique shader declares.
const (
	SAMPLER_BINDING    uint32 = metadata.MAX_TECHNIQUE_INPUTS
	UNIFORM_BINDING    uint32 = metadata.MAX_TECHNIQUE_INPUTS + 1
	BINDING_COUNT             = metadata.MAX_TECHNIQUE_INPUTS + 2
	MAX_SETS_PER_FRAME        = 1024
)

// DescriptorSetLayoutCreate declares the texture, sampler and uniform bindings.
func DescriptorSetLayoutCreate(context *VulkanContext) (vk.DescriptorSetLayout, error) {
	stages := vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	bindings := make([]vk.DescriptorSetLayoutBinding, 0, BINDING_COUNT)
	for i := uint32(0); i < metadata.MAX_TECHNIQUE_INPUTS; i++ {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         i,
			DescriptorType:  vk.DescriptorTypeSampledImage,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		})
	}
	bindings = append(bindings,
		vk.DescriptorSetLayoutBinding{
			Binding:         SAMPLER_BINDING,
			DescriptorType:  vk.DescriptorTypeSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
		vk.DescriptorSetLayoutBinding{
			Binding:         UNIFORM_BINDING,
			DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
			DescriptorCount: 1,
			StageFlags:      stages,
		},
	)
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if err := vkError("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &createInfo, context.Allocator, &layout)); err != nil {
		return nil, err
	}
	return layout, nil
}

/**
 * @brief A descriptor pool sized for one frame worth of draws. It is reset
 * wholesale once the frame fence signals.
 */
type VulkanDescriptorPool struct {
	Handle    vk.DescriptorPool
	Layout    vk.DescriptorSetLayout
	Allocated uint32
}

func DescriptorPoolCreate(context *VulkanContext, layout vk.DescriptorSetLayout) (*VulkanDescriptorPool, error) {
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: MAX_SETS_PER_FRAME * metadata.MAX_TECHNIQUE_INPUTS},
		{Type: vk.DescriptorTypeSampler, DescriptorCount: MAX_SETS_PER_FRAME},
		{Type: vk.DescriptorTypeUniformBufferDynamic, DescriptorCount: MAX_SETS_PER_FRAME},
	}
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       MAX_SETS_PER_FRAME,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var handle vk.DescriptorPool
	if err := vkError("vkCreateDescriptorPool", vk.CreateDescriptorPool(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	return &VulkanDescriptorPool{
		Handle: handle,
		Layout: layout,
	}, nil
}

// Full reports whether another set can be allocated this frame.
func (p *VulkanDescriptorPool) Full() bool {
	return p.Allocated >= MAX_SETS_PER_FRAME
}

func (p *VulkanDescriptorPool) Allocate(context *VulkanContext) (vk.DescriptorSet, error) {
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.Handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{p.Layout},
	}
	var set vk.DescriptorSet
	if err := vkError("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocateInfo, &set)); err != nil {
		return nil, err
	}
	p.Allocated++
	return set, nil
}

func (p *VulkanDescriptorPool) Reset(context *VulkanContext) error {
	if err := vkError("vkResetDescriptorPool", vk.ResetDescriptorPool(context.Device.LogicalDevice, p.Handle, 0)); err != nil {
		return err
	}
	p.Allocated = 0
	return nil
}

func (p *VulkanDescriptorPool) Destroy(context *VulkanContext) {
	if p.Handle != nil {
		vk.DestroyDescriptorPool(context.Device.LogicalDevice, p.Handle, context.Allocator)
		p.Handle = nil
	}
}

// WriteDrawSet points set at the draw inputs, the sampler and the uniform ring.
func WriteDrawSet(context *VulkanContext, set vk.DescriptorSet, views [metadata.MAX_TECHNIQUE_INPUTS]vk.ImageView, sampler vk.Sampler, uniforms *VulkanBuffer, blockSize uint64) {
	writes := make([]vk.WriteDescriptorSet, 0, BINDING_COUNT)
	for i, view := range views {
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      uint32(i),
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeSampledImage,
			PImageInfo: []vk.DescriptorImageInfo{{
				ImageView:   view,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}},
		})
	}
	writes = append(writes,
		vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      SAMPLER_BINDING,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeSampler,
			PImageInfo:      []vk.DescriptorImageInfo{{Sampler: sampler}},
		},
		vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      UNIFORM_BINDING,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: uniforms.Handle,
				Offset: 0,
				Range:  vk.DeviceSize(blockSize),
			}},
		},
	)
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
}

// SamplerCreate builds a clamp-to-edge sampler with the given filter.
func SamplerCreate(context *VulkanContext, filter vk.Filter) (vk.Sampler, error) {
	createInfo := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapMode:   vk.SamplerMipmapModeNearest,
		AddressModeU: vk.SamplerAddressModeClampToEdge,
		AddressModeV: vk.SamplerAddressModeClampToEdge,
		AddressModeW: vk.SamplerAddressModeClampToEdge,
		MaxLod:       0,
		BorderColor:  vk.BorderColorFloatOpaqueBlack,
	}
	var sampler vk.Sampler
	if err := vkError("vkCreateSampler", vk.CreateSampler(context.Device.LogicalDevice, &createInfo, context.Allocator, &sampler)); err != nil {
		return nil, err
	}
	return sampler, nil
}
