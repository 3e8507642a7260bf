package webgpu

import (
	"errors"
	"fmt"
	"image"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"golang.org/x/image/draw"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

const (
	// uniformSlotSize is the default minUniformBufferOffsetAlignment.
	uniformSlotSize  uint64 = 256
	uniformSlotCount uint64 = 1024

	samplerBinding = metadata.MAX_TECHNIQUE_INPUTS
	uniformBinding = metadata.MAX_TECHNIQUE_INPUTS + 1
)

type Config struct {
	Width  uint32
	Height uint32
	Format metadata.PixelFormat
	// Surface is presented to at EndFrame. Nil renders offscreen only.
	Surface              *wgpu.SurfaceDescriptor
	ForceFallbackAdapter bool
	VSync                bool
}

/**
 * @brief A texture usable as render attachment, sampled input and copy
 * source or destination.
 */
type ColorBuffer struct {
	desc      metadata.BufferDesc
	format    wgpu.TextureFormat
	texture   *wgpu.Texture
	view      *wgpu.TextureView
	destroyed bool
}

func (b *ColorBuffer) Name() string {
	return b.desc.Name
}

func (b *ColorBuffer) Desc() metadata.BufferDesc {
	return b.desc
}

func (b *ColorBuffer) release() {
	if b.view != nil {
		b.view.Release()
		b.view = nil
	}
	if b.texture != nil {
		b.texture.Release()
		b.texture = nil
	}
}

type Technique struct {
	*renderer.TechniqueInfo
	module    *wgpu.ShaderModule
	pipelines map[wgpu.TextureFormat]*wgpu.RenderPipeline
}

func (t *Technique) release() {
	for format, p := range t.pipelines {
		p.Release()
		delete(t.pipelines, format)
	}
	if t.module != nil {
		t.module.Release()
		t.module = nil
	}
}

type Geometry struct {
	name        string
	vertexCount uint32
	buffer      *wgpu.Buffer
}

func (g *Geometry) Name() string {
	return g.name
}

func (g *Geometry) VertexCount() uint32 {
	return g.vertexCount
}

/**
 * @brief Device is a WebGPU renderer.Device. Every draw is its own render
 * pass on a frame command encoder that is submitted at EndFrame. With a
 * surface, EndFrame also blits the back buffer onto the swapchain and presents.
 */
type Device struct {
	config Config

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode
	alphaMode     wgpu.CompositeAlphaMode

	bindLayout     *wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	samplers       map[wgpu.FilterMode]*wgpu.Sampler
	uniforms       *wgpu.Buffer
	uniformOffset  uint64

	back  *ColorBuffer
	dummy *ColorBuffer
	quad  *Geometry
	blit  *Technique
	fill  *Technique

	encoder    *wgpu.CommandEncoder
	bindGroups []*wgpu.BindGroup
	deferred   []func()
	inFrame    bool
	frames     uint64
	scratch    []float32
	shutdown   bool
}

func New(config Config) (*Device, error) {
	if config.Width == 0 || config.Height == 0 {
		return nil, fmt.Errorf("func webgpu.New - %w: %dx%d", core.ErrInvalidDimensions, config.Width, config.Height)
	}
	d := &Device{
		config:      config,
		samplers:    make(map[wgpu.FilterMode]*wgpu.Sampler, 2),
		presentMode: wgpu.PresentModeImmediate,
		scratch:     make([]float32, 0, renderer.UniformBlockSize/4),
	}
	if config.VSync {
		d.presentMode = wgpu.PresentModeFifo
	}
	if err := d.initialize(); err != nil {
		_ = d.Shutdown()
		return nil, err
	}
	return d, nil
}

func (d *Device) initialize() error {
	d.instance = wgpu.CreateInstance(nil)
	if d.instance == nil {
		return fmt.Errorf("func initialize - %w: no WebGPU instance", core.ErrUnsupportedDevice)
	}
	if d.config.Surface != nil {
		d.surface = d.instance.CreateSurface(d.config.Surface)
	}
	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.config.ForceFallbackAdapter,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		return fmt.Errorf("func initialize - %w: %s", core.ErrUnsupportedDevice, err)
	}
	d.adapter = adapter
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "anima-fx device"})
	if err != nil {
		return fmt.Errorf("func initialize - %w: %s", core.ErrUnsupportedDevice, err)
	}
	d.device = device
	d.queue = device.GetQueue()

	if err := d.createLayouts(); err != nil {
		return err
	}
	if d.uniforms, err = d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "uniform ring",
		Size:  uniformSlotSize * uniformSlotCount,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	}); err != nil {
		return err
	}
	for _, mode := range []wgpu.FilterMode{wgpu.FilterModeNearest, wgpu.FilterModeLinear} {
		sampler, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
			AddressModeU:  wgpu.AddressModeClampToEdge,
			AddressModeV:  wgpu.AddressModeClampToEdge,
			AddressModeW:  wgpu.AddressModeClampToEdge,
			MagFilter:     mode,
			MinFilter:     mode,
			MipmapFilter:  wgpu.MipmapFilterModeNearest,
			LodMinClamp:   0,
			LodMaxClamp:   32,
			MaxAnisotropy: 1,
		})
		if err != nil {
			return err
		}
		d.samplers[mode] = sampler
	}

	if d.back, err = d.newColorBuffer(d.backDesc(d.config.Width, d.config.Height)); err != nil {
		return err
	}
	white := image.NewRGBA(image.Rect(0, 0, 1, 1))
	copy(white.Pix, []byte{255, 255, 255, 255})
	dummy, err := d.CreateTexture("webgpu-dummy", white)
	if err != nil {
		return err
	}
	d.dummy = dummy.(*ColorBuffer)
	quad, err := d.CreateGeometry("webgpu-quad", fullScreenQuad())
	if err != nil {
		return err
	}
	d.quad = quad.(*Geometry)
	if d.blit, err = d.utilityTechnique("webgpu-blit", "fs_blit"); err != nil {
		return err
	}
	if d.fill, err = d.utilityTechnique("webgpu-fill", "fs_fill"); err != nil {
		return err
	}
	if d.surface != nil {
		d.configureSurface(d.config.Width, d.config.Height)
	}
	core.LogInfo("WebGPU device ready, back buffer %s", d.back.desc)
	return nil
}

func fullScreenQuad() []math.Vertex2D {
	return []math.Vertex2D{
		{Position: math.NewVec2(-1, -1), Texcoord: math.NewVec2(0, 1)},
		{Position: math.NewVec2(1, -1), Texcoord: math.NewVec2(1, 1)},
		{Position: math.NewVec2(1, 1), Texcoord: math.NewVec2(1, 0)},
		{Position: math.NewVec2(-1, -1), Texcoord: math.NewVec2(0, 1)},
		{Position: math.NewVec2(1, 1), Texcoord: math.NewVec2(1, 0)},
		{Position: math.NewVec2(-1, 1), Texcoord: math.NewVec2(0, 0)},
	}
}

func (d *Device) createLayouts() error {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, metadata.MAX_TECHNIQUE_INPUTS+2)
	for i := 0; i < metadata.MAX_TECHNIQUE_INPUTS; i++ {
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: wgpu.ShaderStageFragment,
		}
		entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		entries = append(entries, entry)
	}
	sampler := wgpu.BindGroupLayoutEntry{
		Binding:    samplerBinding,
		Visibility: wgpu.ShaderStageFragment,
	}
	sampler.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	uniform := wgpu.BindGroupLayoutEntry{
		Binding:    uniformBinding,
		Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
	}
	uniform.Buffer.Type = wgpu.BufferBindingTypeUniform
	uniform.Buffer.HasDynamicOffset = true
	uniform.Buffer.MinBindingSize = renderer.UniformBlockSize
	entries = append(entries, sampler, uniform)

	layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "technique bind group layout",
		Entries: entries,
	})
	if err != nil {
		return err
	}
	d.bindLayout = layout
	d.pipelineLayout, err = d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "technique pipeline layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	return err
}

func (d *Device) utilityTechnique(name, fragment string) (*Technique, error) {
	t, err := d.CreateTechnique(&metadata.TechniqueConfig{
		Name:          name,
		FragmentEntry: fragment,
		Filter:        "linear",
		Parameters: []metadata.ParameterConfig{
			{Name: "color", Slot: 0},
		},
	}, []byte(utilityShader))
	if err != nil {
		return nil, err
	}
	return t.(*Technique), nil
}

func (d *Device) configureSurface(width, height uint32) {
	capabilities := d.surface.GetCapabilities(d.adapter)
	d.surfaceFormat = capabilities.Formats[0]
	d.alphaMode = capabilities.AlphaModes[0]
	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       width,
		Height:      height,
		PresentMode: d.presentMode,
		AlphaMode:   d.alphaMode,
	})
}

func (d *Device) backDesc(width, height uint32) metadata.BufferDesc {
	return metadata.BufferDesc{
		Width:   width,
		Height:  height,
		Format:  d.config.Format,
		Samples: 1,
		Name:    "webgpu-backbuffer",
	}
}

func (d *Device) Name() string {
	return "webgpu"
}

func (d *Device) BackBuffer() metadata.BufferDesc {
	return d.back.desc
}

func (d *Device) BackBufferTarget() renderer.ColorBuffer {
	return d.back
}

func (d *Device) Frames() uint64 {
	return d.frames
}

func (d *Device) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("func Resize - %w: %dx%d", core.ErrInvalidDimensions, width, height)
	}
	if d.back.desc.SameSize(width, height) {
		return nil
	}
	back, err := d.newColorBuffer(d.backDesc(width, height))
	if err != nil {
		return err
	}
	old := d.back
	d.back = back
	d.releaseBuffer(old)
	if d.surface != nil {
		d.configureSurface(width, height)
	}
	return nil
}

func (d *Device) newColorBuffer(desc metadata.BufferDesc) (*ColorBuffer, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("func CreateColorBuffer - %w: %dx%d", core.ErrInvalidDimensions, desc.Width, desc.Height)
	}
	if desc.Samples == 0 {
		desc.Samples = 1
	}
	format := textureFormat(desc.Format)
	texture, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Name,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage: wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding |
			wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, err
	}
	return &ColorBuffer{
		desc:    desc,
		format:  format,
		texture: texture,
		view:    view,
	}, nil
}

func (d *Device) CreateColorBuffer(desc metadata.BufferDesc) (renderer.ColorBuffer, error) {
	b, err := d.newColorBuffer(desc)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (d *Device) DestroyColorBuffer(buffer renderer.ColorBuffer) {
	b, ok := buffer.(*ColorBuffer)
	if !ok || b == nil || b.destroyed {
		return
	}
	if b == d.back || b == d.dummy {
		core.LogWarn("refusing to destroy device owned buffer `%s`", b.desc.Name)
		return
	}
	d.releaseBuffer(b)
}

func (d *Device) releaseBuffer(b *ColorBuffer) {
	b.destroyed = true
	d.later(b.release)
}

// later runs fn once the open encoder, which may still reference the
// resource, has been submitted.
func (d *Device) later(fn func()) {
	if d.encoder != nil {
		d.deferred = append(d.deferred, fn)
		return
	}
	fn()
}

func (d *Device) CreateTexture(name string, img image.Image) (renderer.ColorBuffer, error) {
	if img == nil {
		return nil, fmt.Errorf("func CreateTexture - texture `%s` has no image", name)
	}
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	b, err := d.newColorBuffer(metadata.BufferDesc{
		Width:   uint32(bounds.Dx()),
		Height:  uint32(bounds.Dy()),
		Format:  metadata.PIXEL_FORMAT_RGBA8,
		Samples: 1,
		Name:    name,
	})
	if err != nil {
		return nil, err
	}
	size := wgpu.Extent3D{Width: b.desc.Width, Height: b.desc.Height, DepthOrArrayLayers: 1}
	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  b.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		rgba.Pix,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  b.desc.Width * 4,
			RowsPerImage: b.desc.Height,
		},
		&size,
	)
	return b, nil
}

func (d *Device) CreateTechnique(config *metadata.TechniqueConfig, source []byte) (renderer.Technique, error) {
	info, err := renderer.NewTechniqueInfo(config)
	if err != nil {
		return nil, err
	}
	if len(source) == 0 {
		return nil, fmt.Errorf("func CreateTechnique - technique `%s` has no shader source", config.Name)
	}
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: config.Name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: string(source),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("func CreateTechnique - technique `%s`: %w", config.Name, err)
	}
	t := &Technique{
		TechniqueInfo: info,
		module:        module,
		pipelines:     make(map[wgpu.TextureFormat]*wgpu.RenderPipeline),
	}
	if _, err := d.pipeline(t, textureFormat(d.config.Format)); err != nil {
		t.release()
		return nil, fmt.Errorf("func CreateTechnique - technique `%s`: %w", config.Name, err)
	}
	return t, nil
}

func (d *Device) pipeline(t *Technique, format wgpu.TextureFormat) (*wgpu.RenderPipeline, error) {
	if p, ok := t.pipelines[format]; ok {
		return p, nil
	}
	cfg := t.Config()
	p, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  cfg.Name + " Render Pipeline",
		Layout: d.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     t.module,
			EntryPoint: cfg.VertexEntry,
			Buffers:    []wgpu.VertexBufferLayout{vertex2DLayout},
		},
		Fragment: &wgpu.FragmentState{
			Module:     t.module,
			EntryPoint: cfg.FragmentEntry,
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				Blend:     blendState(cfg.Blend),
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}
	t.pipelines[format] = p
	return p, nil
}

func (d *Device) DestroyTechnique(technique renderer.Technique) {
	t, ok := technique.(*Technique)
	if !ok || t == nil || t == d.blit || t == d.fill {
		return
	}
	d.later(t.release)
}

func (d *Device) CreateGeometry(name string, vertices []math.Vertex2D) (renderer.Geometry, error) {
	if len(vertices) == 0 {
		return nil, fmt.Errorf("func CreateGeometry - geometry `%s` has no vertices", name)
	}
	size := uint64(len(vertices)) * uint64(vertex2DLayout.ArrayStride)
	buffer, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: name + " Vertex Buffer",
		Size:  size,
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), size)
	d.queue.WriteBuffer(buffer, 0, data)
	return &Geometry{
		name:        name,
		vertexCount: uint32(len(vertices)),
		buffer:      buffer,
	}, nil
}

func (d *Device) DestroyGeometry(geometry renderer.Geometry) {
	g, ok := geometry.(*Geometry)
	if !ok || g == nil || g == d.quad || g.buffer == nil {
		return
	}
	buffer := g.buffer
	g.buffer = nil
	d.later(buffer.Release)
}

func (d *Device) colorBuffer(buffer renderer.ColorBuffer) (*ColorBuffer, error) {
	b, ok := buffer.(*ColorBuffer)
	if !ok || b == nil {
		return nil, fmt.Errorf("buffer is not a webgpu color buffer")
	}
	if b.destroyed {
		return nil, fmt.Errorf("buffer `%s` %w", b.desc.Name, core.ErrDisposed)
	}
	return b, nil
}

func (d *Device) begin() error {
	if d.shutdown {
		return core.ErrDisposed
	}
	if d.encoder != nil {
		return nil
	}
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	d.encoder = encoder
	return nil
}

// flush submits the open encoder and releases what waited on it.
func (d *Device) flush() error {
	if d.encoder == nil {
		return nil
	}
	encoder := d.encoder
	d.encoder = nil
	commandBuffer, err := encoder.Finish(nil)
	if err == nil {
		d.queue.Submit(commandBuffer)
		commandBuffer.Release()
	}
	encoder.Release()
	for _, bg := range d.bindGroups {
		bg.Release()
	}
	d.bindGroups = d.bindGroups[:0]
	for _, fn := range d.deferred {
		fn()
	}
	d.deferred = d.deferred[:0]
	d.uniformOffset = 0
	return err
}

func (d *Device) BeginFrame() error {
	if d.inFrame {
		return fmt.Errorf("func BeginFrame - frame %d already begun", d.frames)
	}
	if err := d.begin(); err != nil {
		return err
	}
	d.inFrame = true
	return nil
}

func (d *Device) EndFrame() error {
	if !d.inFrame {
		return fmt.Errorf("func EndFrame - no frame begun")
	}
	d.inFrame = false
	var err error
	if d.surface != nil {
		err = d.present()
	}
	err = errors.Join(err, d.flush())
	if err == nil {
		d.frames++
	}
	return err
}

// present blits the back buffer onto the current swapchain texture.
func (d *Device) present() error {
	surfaceTexture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	defer surfaceTexture.Release()
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return err
	}
	target := &ColorBuffer{
		desc:    d.back.desc,
		format:  d.surfaceFormat,
		texture: surfaceTexture,
		view:    view,
	}
	target.desc.Name = "webgpu-surface"
	if err := d.blitTo(d.back, target, metadata.Viewport{}); err != nil {
		view.Release()
		return err
	}
	flushErr := d.flush()
	view.Release()
	if flushErr != nil {
		return flushErr
	}
	d.surface.Present()
	return nil
}

func (d *Device) blitTo(src, dst *ColorBuffer, vp metadata.Viewport) error {
	var cmd renderer.DrawCommand
	cmd.Reset(d.blit)
	cmd.Geometry = d.quad
	cmd.Output = dst
	cmd.Inputs[0] = src
	cmd.Viewport = vp
	return d.draw(&cmd, dst)
}

// writeUniforms stages the command block into the next ring slot. Queue
// writes land before the encoder that references them is submitted.
func (d *Device) writeUniforms(cmd *renderer.DrawCommand) uint32 {
	d.scratch = renderer.PackUniforms(d.scratch, &cmd.Params, &cmd.Transform)
	offset := d.uniformOffset
	data := unsafe.Slice((*byte)(unsafe.Pointer(&d.scratch[0])), len(d.scratch)*4)
	d.queue.WriteBuffer(d.uniforms, offset, data)
	d.uniformOffset += uniformSlotSize
	return uint32(offset)
}

func (d *Device) Draw(cmd *renderer.DrawCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	out, err := d.colorBuffer(cmd.Output)
	if err != nil {
		return err
	}
	return d.draw(cmd, out)
}

func (d *Device) draw(cmd *renderer.DrawCommand, out *ColorBuffer) error {
	t, ok := cmd.Technique.(*Technique)
	if !ok {
		return fmt.Errorf("func Draw - technique `%s` was not created by the webgpu device", cmd.Technique.Name())
	}
	g, ok := cmd.Geometry.(*Geometry)
	if !ok || g.buffer == nil {
		return fmt.Errorf("func Draw - geometry `%s` is not a live webgpu geometry", cmd.Geometry.Name())
	}
	entries := make([]wgpu.BindGroupEntry, 0, metadata.MAX_TECHNIQUE_INPUTS+2)
	for i, in := range cmd.Inputs {
		view := d.dummy.view
		if in != nil {
			b, err := d.colorBuffer(in)
			if err != nil {
				return err
			}
			view = b.view
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(i), TextureView: view})
	}

	if err := d.begin(); err != nil {
		return err
	}
	if d.uniformOffset+uniformSlotSize > uniformSlotSize*uniformSlotCount {
		if err := d.flush(); err != nil {
			return err
		}
		if err := d.begin(); err != nil {
			return err
		}
	}
	pipeline, err := d.pipeline(t, out.format)
	if err != nil {
		return err
	}
	offset := d.writeUniforms(cmd)
	entries = append(entries,
		wgpu.BindGroupEntry{Binding: samplerBinding, Sampler: d.samplers[filterMode(t.Config().FilterMode())]},
		wgpu.BindGroupEntry{Binding: uniformBinding, Buffer: d.uniforms, Offset: 0, Size: renderer.UniformBlockSize},
	)
	bindGroup, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   t.Name() + " Bind Group",
		Layout:  d.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return err
	}
	d.bindGroups = append(d.bindGroups, bindGroup)

	vp := cmd.ViewportFor()
	full := vp.X == 0 && vp.Y == 0 && out.desc.SameSize(vp.Width, vp.Height)
	if cmd.Clear && !full {
		if err := d.clearRect(out, vp, cmd.ClearColor); err != nil {
			return err
		}
	}
	attachment := wgpu.RenderPassColorAttachment{
		View:    out.view,
		LoadOp:  wgpu.LoadOpLoad,
		StoreOp: wgpu.StoreOpStore,
	}
	if cmd.Clear && full {
		c := cmd.ClearColor
		attachment.LoadOp = wgpu.LoadOpClear
		attachment.ClearValue = wgpu.Color{R: float64(c.X), G: float64(c.Y), B: float64(c.Z), A: float64(c.W)}
	}
	pass := d.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{attachment},
	})
	pass.SetViewport(float32(vp.X), float32(vp.Y), float32(vp.Width), float32(vp.Height), 0, 1)
	pass.SetScissorRect(vp.X, vp.Y, vp.Width, vp.Height)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bindGroup, []uint32{offset})
	pass.SetVertexBuffer(0, g.buffer, 0, wgpu.WholeSize)
	pass.Draw(g.vertexCount, 1, 0, 0)
	pass.End()
	pass.Release()
	return nil
}

// clearRect fills a viewport that does not cover the whole output.
func (d *Device) clearRect(out *ColorBuffer, vp metadata.Viewport, color math.Vec4) error {
	var cmd renderer.DrawCommand
	cmd.Reset(d.fill)
	cmd.Geometry = d.quad
	cmd.Output = out
	cmd.Viewport = vp
	cmd.Params.SetVec4(0, color)
	return d.draw(&cmd, out)
}

func (d *Device) Copy(src, dst renderer.ColorBuffer) error {
	s, err := d.colorBuffer(src)
	if err != nil {
		return err
	}
	t, err := d.colorBuffer(dst)
	if err != nil {
		return err
	}
	if s == t {
		return nil
	}
	if s.format != t.format || !s.desc.SameSize(t.desc.Width, t.desc.Height) {
		return d.blitTo(s, t, metadata.Viewport{})
	}
	if err := d.begin(); err != nil {
		return err
	}
	size := wgpu.Extent3D{Width: s.desc.Width, Height: s.desc.Height, DepthOrArrayLayers: 1}
	d.encoder.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{Texture: s.texture, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyTexture{Texture: t.texture, Aspect: wgpu.TextureAspectAll},
		&size,
	)
	return nil
}

func (d *Device) Shutdown() error {
	if d.shutdown {
		return nil
	}
	err := d.flush()
	d.shutdown = true
	for _, t := range []*Technique{d.blit, d.fill} {
		if t != nil {
			t.release()
		}
	}
	if d.quad != nil && d.quad.buffer != nil {
		d.quad.buffer.Release()
	}
	for _, b := range []*ColorBuffer{d.back, d.dummy} {
		if b != nil {
			b.release()
		}
	}
	for mode, s := range d.samplers {
		s.Release()
		delete(d.samplers, mode)
	}
	if d.uniforms != nil {
		d.uniforms.Release()
	}
	if d.pipelineLayout != nil {
		d.pipelineLayout.Release()
	}
	if d.bindLayout != nil {
		d.bindLayout.Release()
	}
	if d.queue != nil {
		d.queue.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.surface != nil {
		d.surface.Release()
	}
	if d.instance != nil {
		d.instance.Release()
	}
	core.LogInfo("WebGPU device shut down")
	return err
}
