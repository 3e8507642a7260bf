package webgpu

import (
	"strings"
	"testing"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

func TestTextureFormat(t *testing.T) {
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, textureFormat(metadata.PIXEL_FORMAT_RGBA8))
	assert.Equal(t, wgpu.TextureFormatRGBA8UnormSrgb, textureFormat(metadata.PIXEL_FORMAT_RGBA8_SRGB))
	assert.Equal(t, wgpu.TextureFormatBGRA8Unorm, textureFormat(metadata.PIXEL_FORMAT_BGRA8))
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, textureFormat(metadata.PIXEL_FORMAT_RGBA16F))

	assert.Equal(t, wgpu.FilterModeNearest, filterMode(metadata.TextureFilterModeNearest))
	assert.Equal(t, wgpu.FilterModeLinear, filterMode(metadata.TextureFilterModeLinear))
}

func TestBlendState(t *testing.T) {
	assert.Nil(t, blendState(metadata.BLEND_MODE_NONE))

	add := blendState(metadata.BLEND_MODE_ADDITIVE)
	require.NotNil(t, add)
	assert.Equal(t, wgpu.BlendFactorOne, add.Color.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorOne, add.Color.DstFactor)

	alpha := blendState(metadata.BLEND_MODE_ALPHA)
	require.NotNil(t, alpha)
	assert.Equal(t, wgpu.BlendFactorSrcAlpha, alpha.Color.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorOneMinusSrcAlpha, alpha.Color.DstFactor)

	mul := blendState(metadata.BLEND_MODE_MULTIPLY)
	require.NotNil(t, mul)
	assert.Equal(t, wgpu.BlendFactorDst, mul.Color.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorZero, mul.Color.DstFactor)
}

func TestVertexLayoutMatchesVertex2D(t *testing.T) {
	assert.Equal(t, uint64(unsafe.Sizeof(math.Vertex2D{})), vertex2DLayout.ArrayStride)
	require.Len(t, vertex2DLayout.Attributes, 2)
	assert.Equal(t, uint64(unsafe.Offsetof(math.Vertex2D{}.Texcoord)), vertex2DLayout.Attributes[1].Offset)
}

func TestFullScreenQuad(t *testing.T) {
	quad := fullScreenQuad()
	require.Len(t, quad, 6)
	for _, v := range quad {
		assert.True(t, v.Position.X == -1 || v.Position.X == 1)
		assert.True(t, v.Position.Y == -1 || v.Position.Y == 1)
		// Top of clip space samples the top row of the texture.
		assert.Equal(t, (1-v.Position.Y)/2, v.Texcoord.Y)
	}
}

func TestUtilityShaderEntries(t *testing.T) {
	for _, entry := range []string{"fn vs_main", "fn fs_blit", "fn fs_fill", "@binding(5)"} {
		assert.True(t, strings.Contains(utilityShader, entry), entry)
	}
}
