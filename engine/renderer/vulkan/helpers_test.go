package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

func TestFlippedViewport(t *testing.T) {
	vp := flippedViewport(metadata.Viewport{X: 4, Y: 2, Width: 8, Height: 6})
	assert.Equal(t, float32(4), vp.X)
	assert.Equal(t, float32(8), vp.Y)
	assert.Equal(t, float32(8), vp.Width)
	assert.Equal(t, float32(-6), vp.Height)
	assert.Equal(t, float32(1), vp.MaxDepth)

	sc := scissorFor(metadata.Viewport{X: 4, Y: 2, Width: 8, Height: 6})
	assert.Equal(t, int32(4), sc.Offset.X)
	assert.Equal(t, int32(2), sc.Offset.Y)
	assert.Equal(t, uint32(8), sc.Extent.Width)
	assert.Equal(t, uint32(6), sc.Extent.Height)
}

func TestBlendAttachment(t *testing.T) {
	none := blendAttachment(metadata.BLEND_MODE_NONE)
	assert.Equal(t, vk.Bool32(vk.False), none.BlendEnable)

	add := blendAttachment(metadata.BLEND_MODE_ADDITIVE)
	assert.Equal(t, vk.Bool32(vk.True), add.BlendEnable)
	assert.Equal(t, vk.BlendFactorOne, add.SrcColorBlendFactor)
	assert.Equal(t, vk.BlendFactorOne, add.DstColorBlendFactor)

	alpha := blendAttachment(metadata.BLEND_MODE_ALPHA)
	assert.Equal(t, vk.BlendFactorSrcAlpha, alpha.SrcColorBlendFactor)
	assert.Equal(t, vk.BlendFactorOneMinusSrcAlpha, alpha.DstColorBlendFactor)

	mul := blendAttachment(metadata.BLEND_MODE_MULTIPLY)
	assert.Equal(t, vk.BlendFactorDstColor, mul.SrcColorBlendFactor)
	assert.Equal(t, vk.BlendFactorZero, mul.DstColorBlendFactor)
	assert.Equal(t, colorWriteAll, mul.ColorWriteMask)
}

func TestFormatMapping(t *testing.T) {
	assert.Equal(t, vk.FormatR8g8b8a8Unorm, vulkanFormat(metadata.PIXEL_FORMAT_RGBA8))
	assert.Equal(t, vk.FormatR8g8b8a8Srgb, vulkanFormat(metadata.PIXEL_FORMAT_RGBA8_SRGB))
	assert.Equal(t, vk.FormatB8g8r8a8Unorm, vulkanFormat(metadata.PIXEL_FORMAT_BGRA8))
	assert.Equal(t, vk.FormatR16g16b16a16Sfloat, vulkanFormat(metadata.PIXEL_FORMAT_RGBA16F))
	assert.Equal(t, vk.FilterNearest, vulkanFilter(metadata.TextureFilterModeNearest))
	assert.Equal(t, vk.FilterLinear, vulkanFilter(metadata.TextureFilterModeLinear))
}

func TestSwizzleBGRA(t *testing.T) {
	pix := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	swizzleBGRA(pix)
	assert.Equal(t, []byte{3, 2, 1, 4, 7, 6, 5, 8}, pix)
}

func TestStringHelpers(t *testing.T) {
	assert.Equal(t, 3, FindFirstZeroInByteArray([]byte{'a', 'b', 'c', 0, 'd'}))
	assert.Equal(t, 2, FindFirstZeroInByteArray([]byte{'a', 'b'}))
	assert.Equal(t, "main\x00", VulkanSafeString("main"))
	assert.True(t, VulkanResultIsSuccess(vk.Success))
	assert.False(t, VulkanResultIsSuccess(vk.ErrorDeviceLost))
	assert.Error(t, vkError("vkTest", vk.ErrorOutOfHostMemory))
	assert.NoError(t, vkError("vkTest", vk.Success))
}

func TestCompileWGSLRejectsGarbage(t *testing.T) {
	_, err := CompileWGSL([]byte("this is not wgsl"))
	assert.Error(t, err)
}
