package targets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/headless"
)

func TestPersistentResolutionChange(t *testing.T) {
	d := headless.New(headless.Config{Width: 1920, Height: 1080})
	ctx := renderer.NewContext(d, nil)
	p := NewPersistent(d, "history", ctx.OutputSize)

	old, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, uint32(1920), old.Desc().Width)

	ctx.OnOutputSizeChanged(p, func(w, h uint32) {
		require.NoError(t, p.Recreate())
	})
	ctx.SetVRService(renderer.NewSideBySide())

	cur, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, uint32(960), cur.Desc().Width)
	assert.Equal(t, uint32(1080), cur.Desc().Height)
	assert.True(t, old.(*headless.Buffer).Destroyed())
	assert.Equal(t, 1, d.LiveBuffers())
}

func TestPersistentRecreateIsIdempotent(t *testing.T) {
	d := headless.New(headless.Config{Width: 64, Height: 64})
	p := NewPersistent(d, "ao", func() (uint32, uint32) { return 32, 32 })

	_, err := p.Acquire()
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Recreate())
	}
	assert.Equal(t, 1, d.LiveBuffers())
	assert.Equal(t, uint32(4), p.Generation())

	p.Dispose()
	assert.Equal(t, 0, d.LiveBuffers())
	_, err = p.Acquire()
	assert.ErrorIs(t, err, core.ErrDisposed)
}

func TestPersistentDeferredDestroyWhileBorrowed(t *testing.T) {
	d := headless.New(headless.Config{Width: 64, Height: 64})
	p := NewPersistent(d, "gbuffer", func() (uint32, uint32) { return 16, 16 })

	old, err := p.Acquire()
	require.NoError(t, err)
	p.Use()
	require.NoError(t, p.Recreate())

	assert.False(t, old.(*headless.Buffer).Destroyed())
	assert.Equal(t, 2, d.LiveBuffers())

	p.Done()
	assert.True(t, old.(*headless.Buffer).Destroyed())
	assert.Equal(t, 1, d.LiveBuffers())
}
