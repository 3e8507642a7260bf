package renderer

import (
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// nullDevice only tracks the back buffer size.
type nullDevice struct {
	back metadata.BufferDesc
}

func (d *nullDevice) Name() string                        { return "null" }
func (d *nullDevice) BackBuffer() metadata.BufferDesc     { return d.back }
func (d *nullDevice) BackBufferTarget() ColorBuffer       { return nil }
func (d *nullDevice) DestroyColorBuffer(ColorBuffer)      {}
func (d *nullDevice) DestroyTechnique(Technique)          {}
func (d *nullDevice) DestroyGeometry(Geometry)            {}
func (d *nullDevice) Draw(*DrawCommand) error             { return nil }
func (d *nullDevice) Copy(ColorBuffer, ColorBuffer) error { return nil }
func (d *nullDevice) BeginFrame() error                   { return nil }
func (d *nullDevice) EndFrame() error                     { return nil }
func (d *nullDevice) Shutdown() error                     { return nil }

func (d *nullDevice) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return core.ErrInvalidDimensions
	}
	d.back.Width, d.back.Height = width, height
	return nil
}

func (d *nullDevice) CreateColorBuffer(metadata.BufferDesc) (ColorBuffer, error) {
	return nil, core.ErrUnsupportedDevice
}

func (d *nullDevice) CreateTexture(string, image.Image) (ColorBuffer, error) {
	return nil, core.ErrUnsupportedDevice
}

func (d *nullDevice) CreateTechnique(*metadata.TechniqueConfig, []byte) (Technique, error) {
	return nil, core.ErrUnsupportedDevice
}

func (d *nullDevice) CreateGeometry(string, []math.Vertex2D) (Geometry, error) {
	return nil, core.ErrUnsupportedDevice
}

type namedBackend struct {
	kind metadata.BackendKind
}

func (b *namedBackend) Kind() metadata.BackendKind { return b.kind }
func (b *namedBackend) Name() string               { return b.kind.String() }

func newContext(size int) *Context {
	return NewContext(&nullDevice{back: metadata.BufferDesc{Width: 1920, Height: 1080}}, &ContextConfig{RequestQueueSize: size})
}

func TestRequestsApplyOnlyOnDrain(t *testing.T) {
	ctx := newContext(16)
	forward := &namedBackend{metadata.BACKEND_KIND_FORWARD}
	deferred := &namedBackend{metadata.BACKEND_KIND_DEFERRED}

	var seen []metadata.BackendKind
	require.True(t, ctx.OnBackendChanged("listener", func(b Backend) {
		seen = append(seen, b.Kind())
	}))
	assert.False(t, ctx.OnBackendChanged("listener", func(Backend) {}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, ctx.RequestBackend(forward))
		assert.NoError(t, ctx.RequestBackend(deferred))
	}()
	wg.Wait()

	assert.Empty(t, seen)
	assert.Nil(t, ctx.Backend())
	assert.Equal(t, 2, ctx.Pending())

	assert.Equal(t, 2, ctx.Drain())
	assert.Equal(t, []metadata.BackendKind{metadata.BACKEND_KIND_FORWARD, metadata.BACKEND_KIND_DEFERRED}, seen)
	assert.Equal(t, deferred, ctx.Backend())
	assert.Equal(t, 0, ctx.Drain())
}

func TestRequestsQueuedWhileDrainingWait(t *testing.T) {
	ctx := newContext(4)
	forward := &namedBackend{metadata.BACKEND_KIND_FORWARD}
	calls := 0
	ctx.OnBackendChanged("requeue", func(Backend) {
		calls++
		if calls == 1 {
			assert.NoError(t, ctx.RequestBackend(forward))
		}
	})
	require.NoError(t, ctx.RequestBackend(forward))
	assert.Equal(t, 1, ctx.Drain())
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, ctx.Pending())
	assert.Equal(t, 1, ctx.Drain())
	assert.Equal(t, 2, calls)
}

func TestRequestQueueFull(t *testing.T) {
	ctx := newContext(2)
	require.NoError(t, ctx.RequestTechniqueReload("a"))
	require.NoError(t, ctx.RequestTechniqueReload("b"))
	assert.ErrorIs(t, ctx.RequestTechniqueReload("c"), core.ErrRequestQueueFull)

	var reloaded []string
	ctx.OnTechniqueReloaded("shader", func(name string) { reloaded = append(reloaded, name) })
	ctx.Drain()
	assert.Equal(t, []string{"a", "b"}, reloaded)
}

func TestOutputSizeFollowsVRAndResize(t *testing.T) {
	ctx := newContext(8)
	var sizes [][2]uint32
	require.True(t, ctx.OnOutputSizeChanged("pass", func(w, h uint32) {
		sizes = append(sizes, [2]uint32{w, h})
	}))

	w, h := ctx.OutputSize()
	assert.Equal(t, [2]uint32{1920, 1080}, [2]uint32{w, h})

	require.NoError(t, ctx.RequestVRService(NewSideBySide()))
	require.NoError(t, ctx.RequestResize(1280, 720))
	require.NoError(t, ctx.RequestVRService(nil))
	ctx.Drain()

	assert.Equal(t, [][2]uint32{{960, 1080}, {640, 720}, {1280, 720}}, sizes)
	assert.Equal(t, uint32(1280), ctx.OutputDesc().Width)

	assert.True(t, ctx.UnsubscribeOutputSizeChanged("pass"))
	ctx.Resize(800, 600)
	assert.Len(t, sizes, 3)

	// invalid sizes are logged and dropped
	ctx.Resize(0, 600)
	assert.Equal(t, uint32(800), ctx.Device().BackBuffer().Width)
}

func TestSameBackendStillNotifies(t *testing.T) {
	ctx := newContext(8)
	forward := &namedBackend{metadata.BACKEND_KIND_FORWARD}
	n := 0
	ctx.OnBackendChanged("m", func(Backend) { n++ })
	for i := 0; i < 3; i++ {
		ctx.SetBackend(forward)
	}
	assert.Equal(t, 3, n)
	assert.True(t, ctx.IsSubscribed("m"))
	assert.True(t, ctx.UnsubscribeBackendChanged("m"))
	assert.False(t, ctx.IsSubscribed("m"))
}

func TestParametersAndDrawCommand(t *testing.T) {
	info, err := NewTechniqueInfo(&metadata.TechniqueConfig{
		Name: "tint",
		Parameters: []metadata.ParameterConfig{
			{Name: "color", Slot: 2, Default: [4]float32{1, 0, 0, 1}},
		},
	})
	require.NoError(t, err)
	h, ok := info.Parameter("color")
	require.True(t, ok)
	assert.Equal(t, ParameterHandle(2), h)
	assert.Equal(t, InvalidParameter, ParameterOrInvalid(info, "missing"))

	var cmd DrawCommand
	cmd.Reset(info)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, cmd.Params.Get(h))
	cmd.Params.SetFloat(InvalidParameter, 3)
	cmd.Params.SetVec2(h, 0.5, 0.25)
	assert.Equal(t, [4]float32{0.5, 0.25, 0, 1}, cmd.Params.Slot(2))
	assert.Error(t, cmd.Validate())

	packed := PackUniforms(nil, &cmd.Params, &cmd.Transform)
	assert.Len(t, packed, UniformBlockSize/4)
	assert.Equal(t, float32(1), packed[metadata.MAX_TECHNIQUE_PARAMETERS*4])
}
