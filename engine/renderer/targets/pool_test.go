package targets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer/headless"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

func newDevice() *headless.Device {
	return headless.New(headless.Config{Width: 64, Height: 32, Format: metadata.PIXEL_FORMAT_RGBA8_SRGB, Samples: 1})
}

func TestPoolReuse(t *testing.T) {
	for _, indexed := range []bool{false, true} {
		d := newDevice()
		p := NewPool(d, PoolConfig{Indexed: indexed})

		a, err := p.GetTemporary(512, 512)
		require.NoError(t, err)
		p.ReleaseTemporary(a)
		b, err := p.GetTemporary(512, 512)
		require.NoError(t, err)
		assert.Same(t, a, b, "indexed=%v", indexed)

		c, err := p.GetTemporary(256, 256)
		require.NoError(t, err)
		assert.NotSame(t, a, c)
		assert.Equal(t, 2, p.Len())
		assert.Equal(t, PoolStats{Entries: 2, Active: 2, Allocations: 2, Reuses: 1}, p.Stats())
	}
}

func TestPoolExactSizeOnly(t *testing.T) {
	d := newDevice()
	p := NewPool(d, PoolConfig{})

	a, _ := p.GetTemporary(512, 512)
	p.ReleaseTemporary(a)
	b, _ := p.GetTemporary(512, 256)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, p.Len())
}

func TestPoolInheritsBackBufferFormat(t *testing.T) {
	d := newDevice()
	p := NewPool(d, PoolConfig{})
	buf, err := p.GetTemporary(16, 8)
	require.NoError(t, err)
	desc := buf.Desc()
	assert.Equal(t, metadata.PIXEL_FORMAT_RGBA8_SRGB, desc.Format)
	assert.Equal(t, uint32(1), desc.Samples)
	assert.Equal(t, uint32(16), desc.Width)
	assert.Equal(t, uint32(8), desc.Height)
}

func TestPoolReleaseAllSafety(t *testing.T) {
	d := newDevice()
	p := NewPool(d, PoolConfig{})

	first := make(map[interface{}]bool)
	for i := 0; i < 3; i++ {
		buf, err := p.GetTemporary(128, 128)
		require.NoError(t, err)
		first[buf] = true
	}
	assert.Equal(t, 3, p.Stats().Active)

	p.ReleaseAll()
	assert.Equal(t, 0, p.Stats().Active)

	for i := 0; i < 3; i++ {
		buf, err := p.GetTemporary(128, 128)
		require.NoError(t, err)
		assert.True(t, first[buf], "expected a reused buffer")
	}
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, 3, d.LiveBuffers())
}

func TestPoolReleaseUnknownIsNoop(t *testing.T) {
	d := newDevice()
	p := NewPool(d, PoolConfig{})
	a, _ := p.GetTemporary(32, 32)

	foreign, err := d.CreateColorBuffer(metadata.BufferDesc{Width: 32, Height: 32})
	require.NoError(t, err)
	p.ReleaseTemporary(foreign)
	p.ReleaseTemporary(nil)
	assert.True(t, p.IsCheckedOut(a))
	assert.False(t, p.Owns(foreign))

	// double release only warns
	p.ReleaseTemporary(a)
	p.ReleaseTemporary(a)
	assert.False(t, p.IsCheckedOut(a))
	assert.Equal(t, 1, p.Len())
}

func TestPoolInvalidDimensions(t *testing.T) {
	p := NewPool(newDevice(), PoolConfig{})
	_, err := p.GetTemporary(0, 10)
	assert.ErrorIs(t, err, core.ErrInvalidDimensions)
	assert.Equal(t, 0, p.Len())
}

func TestPoolDispose(t *testing.T) {
	d := newDevice()
	p := NewPool(d, PoolConfig{WarnEntries: 2})
	_, _ = p.GetTemporary(8, 8)
	b, _ := p.GetTemporary(16, 16)
	p.ReleaseTemporary(b)
	assert.Equal(t, 2, d.LiveBuffers())

	p.Dispose()
	assert.Equal(t, 0, d.LiveBuffers())
	assert.Equal(t, 0, p.Len())
	_, err := p.GetTemporary(8, 8)
	assert.ErrorIs(t, err, core.ErrDisposed)
}

func TestPoolGrowsWithChangingSizes(t *testing.T) {
	p := NewPool(newDevice(), PoolConfig{Indexed: true, WarnEntries: 4})
	for i := uint32(1); i <= 6; i++ {
		buf, err := p.GetTemporary(i, i)
		require.NoError(t, err)
		p.ReleaseTemporary(buf)
	}
	assert.Equal(t, 6, p.Len())
}
