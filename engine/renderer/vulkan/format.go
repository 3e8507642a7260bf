package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

func vulkanFormat(format metadata.PixelFormat) vk.Format {
	switch format {
	case metadata.PIXEL_FORMAT_RGBA8_SRGB:
		return vk.FormatR8g8b8a8Srgb
	case metadata.PIXEL_FORMAT_BGRA8:
		return vk.FormatB8g8r8a8Unorm
	case metadata.PIXEL_FORMAT_RGBA16F:
		return vk.FormatR16g16b16a16Sfloat
	default:
		return vk.FormatR8g8b8a8Unorm
	}
}

func vulkanFilter(filter metadata.TextureFilter) vk.Filter {
	if filter == metadata.TextureFilterModeNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

const colorWriteAll = vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
	vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit)

// blendAttachment maps a technique blend mode onto fixed-function blending.
func blendAttachment(mode metadata.BlendMode) vk.PipelineColorBlendAttachmentState {
	state := vk.PipelineColorBlendAttachmentState{
		BlendEnable:    vk.True,
		ColorBlendOp:   vk.BlendOpAdd,
		AlphaBlendOp:   vk.BlendOpAdd,
		ColorWriteMask: colorWriteAll,
	}
	switch mode {
	case metadata.BLEND_MODE_ALPHA:
		state.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		state.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		state.SrcAlphaBlendFactor = vk.BlendFactorOne
		state.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
	case metadata.BLEND_MODE_ADDITIVE:
		state.SrcColorBlendFactor = vk.BlendFactorOne
		state.DstColorBlendFactor = vk.BlendFactorOne
		state.SrcAlphaBlendFactor = vk.BlendFactorOne
		state.DstAlphaBlendFactor = vk.BlendFactorOne
	case metadata.BLEND_MODE_MULTIPLY:
		state.SrcColorBlendFactor = vk.BlendFactorDstColor
		state.DstColorBlendFactor = vk.BlendFactorZero
		state.SrcAlphaBlendFactor = vk.BlendFactorDstAlpha
		state.DstAlphaBlendFactor = vk.BlendFactorZero
	default:
		state.BlendEnable = vk.False
		state.SrcColorBlendFactor = vk.BlendFactorOne
		state.DstColorBlendFactor = vk.BlendFactorZero
		state.SrcAlphaBlendFactor = vk.BlendFactorOne
		state.DstAlphaBlendFactor = vk.BlendFactorZero
	}
	return state
}
