package webgpu

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

func textureFormat(format metadata.PixelFormat) wgpu.TextureFormat {
	switch format {
	case metadata.PIXEL_FORMAT_RGBA8_SRGB:
		return wgpu.TextureFormatRGBA8UnormSrgb
	case metadata.PIXEL_FORMAT_BGRA8:
		return wgpu.TextureFormatBGRA8Unorm
	case metadata.PIXEL_FORMAT_RGBA16F:
		return wgpu.TextureFormatRGBA16Float
	default:
		return wgpu.TextureFormatRGBA8Unorm
	}
}

func filterMode(filter metadata.TextureFilter) wgpu.FilterMode {
	if filter == metadata.TextureFilterModeNearest {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}

// blendState maps a technique blend mode; nil means blending is off.
func blendState(mode metadata.BlendMode) *wgpu.BlendState {
	component := func(src, dst wgpu.BlendFactor) wgpu.BlendComponent {
		return wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: src,
			DstFactor: dst,
		}
	}
	switch mode {
	case metadata.BLEND_MODE_ALPHA:
		return &wgpu.BlendState{
			Color: component(wgpu.BlendFactorSrcAlpha, wgpu.BlendFactorOneMinusSrcAlpha),
			Alpha: component(wgpu.BlendFactorOne, wgpu.BlendFactorOneMinusSrcAlpha),
		}
	case metadata.BLEND_MODE_ADDITIVE:
		return &wgpu.BlendState{
			Color: component(wgpu.BlendFactorOne, wgpu.BlendFactorOne),
			Alpha: component(wgpu.BlendFactorOne, wgpu.BlendFactorOne),
		}
	case metadata.BLEND_MODE_MULTIPLY:
		return &wgpu.BlendState{
			Color: component(wgpu.BlendFactorDst, wgpu.BlendFactorZero),
			Alpha: component(wgpu.BlendFactorDstAlpha, wgpu.BlendFactorZero),
		}
	default:
		return nil
	}
}

// vertex2DLayout describes math.Vertex2D: a vec2 position then a vec2 texcoord.
var vertex2DLayout = wgpu.VertexBufferLayout{
	ArrayStride: 16,
	StepMode:    wgpu.VertexStepModeVertex,
	Attributes: []wgpu.VertexAttribute{
		{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
		{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
	},
}
