package vulkan

import (
	"errors"
	"fmt"
	"image"
	"unsafe"

	vk "github.com/goki/vulkan"
	"golang.org/x/image/draw"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

const (
	// UNIFORM_SLOT_SIZE is the largest minUniformBufferOffsetAlignment the
	// Vulkan API allows, so every slot offset is valid on any device.
	UNIFORM_SLOT_SIZE uint64 = 256
	fenceTimeoutNs           = uint64(5_000_000_000)
)

type Config struct {
	Width   uint32
	Height  uint32
	Format  metadata.PixelFormat
	AppName string
	Debug   bool
	// ProcAddr is vkGetInstanceProcAddr from the windowing layer. Nil loads
	// the system Vulkan library.
	ProcAddr unsafe.Pointer
}

/**
 * @brief A color image that is both a render target and a sampled input.
 */
type ColorBuffer struct {
	desc        metadata.BufferDesc
	image       *VulkanImage
	framebuffer *VulkanFramebuffer
	destroyed   bool
}

func (b *ColorBuffer) Name() string {
	return b.desc.Name
}

func (b *ColorBuffer) Desc() metadata.BufferDesc {
	return b.desc
}

/**
 * @brief A compiled technique. Pipelines are built per output format the
 * first time the technique draws into it.
 */
type Technique struct {
	*renderer.TechniqueInfo
	module    *VulkanShaderModule
	pipelines map[vk.Format]*VulkanPipeline
}

/**
 * @brief Device is an offscreen Vulkan renderer.Device. Commands for a frame
 * are recorded into one command buffer and submitted at EndFrame, which waits
 * on the frame fence. Destruction of resources the open frame may reference is
 * deferred until that wait.
 */
type Device struct {
	config  Config
	context *VulkanContext

	back  *ColorBuffer
	dummy *ColorBuffer

	renderpasses   map[vk.Format]*VulkanRenderpass
	setLayout      vk.DescriptorSetLayout
	pipelineLayout vk.PipelineLayout
	descriptors    *VulkanDescriptorPool
	uniforms       *VulkanBuffer
	uniformOffset  uint64
	samplers       map[vk.Filter]vk.Sampler

	cmd       *VulkanCommandBuffer
	fence     *VulkanFence
	recording bool
	inFrame   bool
	frames    uint64

	buffers    map[*ColorBuffer]struct{}
	techniques map[*Technique]struct{}
	geometries map[*VulkanGeometry]struct{}
	deferred   []func()
	scratch    []float32
	shutdown   bool
}

func New(config Config) (*Device, error) {
	if config.Width == 0 || config.Height == 0 {
		return nil, fmt.Errorf("func vulkan.New - %w: %dx%d", core.ErrInvalidDimensions, config.Width, config.Height)
	}
	if config.AppName == "" {
		config.AppName = "anima-fx"
	}
	if err := loadVulkan(config.ProcAddr); err != nil {
		return nil, err
	}
	d := &Device{
		config:       config,
		context:      &VulkanContext{Device: &VulkanDevice{GraphicsQueueIndex: -1}},
		renderpasses: make(map[vk.Format]*VulkanRenderpass),
		samplers:     make(map[vk.Filter]vk.Sampler, 2),
		buffers:      make(map[*ColorBuffer]struct{}),
		techniques:   make(map[*Technique]struct{}),
		geometries:   make(map[*VulkanGeometry]struct{}),
		scratch:      make([]float32, 0, renderer.UniformBlockSize/4),
	}
	if err := d.initialize(); err != nil {
		_ = d.Shutdown()
		return nil, err
	}
	return d, nil
}

func (d *Device) initialize() error {
	var err error
	if err = InstanceCreate(d.context, d.config.AppName, d.config.Debug); err != nil {
		return err
	}
	if err = DeviceCreate(d.context); err != nil {
		return err
	}
	if d.setLayout, err = DescriptorSetLayoutCreate(d.context); err != nil {
		return err
	}
	if d.pipelineLayout, err = PipelineLayoutCreate(d.context, d.setLayout); err != nil {
		return err
	}
	if d.descriptors, err = DescriptorPoolCreate(d.context, d.setLayout); err != nil {
		return err
	}
	if d.uniforms, err = BufferCreate(d.context, UNIFORM_SLOT_SIZE*MAX_SETS_PER_FRAME, vkBufferUsageUniform); err != nil {
		return err
	}
	for _, filter := range []vk.Filter{vk.FilterNearest, vk.FilterLinear} {
		sampler, err := SamplerCreate(d.context, filter)
		if err != nil {
			return err
		}
		d.samplers[filter] = sampler
	}
	if d.cmd, err = NewVulkanCommandBuffer(d.context, d.context.Device.GraphicsCommandPool, true); err != nil {
		return err
	}
	if d.fence, err = NewFence(d.context, true); err != nil {
		return err
	}

	back, err := d.newColorBuffer(d.backDesc(d.config.Width, d.config.Height))
	if err != nil {
		return err
	}
	d.back = back

	white := image.NewRGBA(image.Rect(0, 0, 1, 1))
	copy(white.Pix, []byte{255, 255, 255, 255})
	dummy, err := d.CreateTexture("vulkan-dummy", white)
	if err != nil {
		return err
	}
	d.dummy = dummy.(*ColorBuffer)
	core.LogInfo("Vulkan device ready, back buffer %s", d.back.desc)
	return nil
}

func (d *Device) backDesc(width, height uint32) metadata.BufferDesc {
	return metadata.BufferDesc{
		Width:   width,
		Height:  height,
		Format:  d.config.Format,
		Samples: 1,
		Name:    "vulkan-backbuffer",
	}
}

func (d *Device) Name() string {
	return "vulkan"
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

// Resize recreates the back buffer. The old one is freed once the open frame
// has been submitted.
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
	d.release(old)
	return nil
}

func (d *Device) renderpass(format vk.Format) (*VulkanRenderpass, error) {
	if rp, ok := d.renderpasses[format]; ok {
		return rp, nil
	}
	rp, err := RenderpassCreate(d.context, format)
	if err != nil {
		return nil, err
	}
	d.renderpasses[format] = rp
	return rp, nil
}

func (d *Device) newColorBuffer(desc metadata.BufferDesc) (*ColorBuffer, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("func CreateColorBuffer - %w: %dx%d", core.ErrInvalidDimensions, desc.Width, desc.Height)
	}
	if desc.Samples == 0 {
		desc.Samples = 1
	}
	format := vulkanFormat(desc.Format)
	usage := vk.ImageUsageColorAttachmentBit | vk.ImageUsageSampledBit | vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit
	img, err := ImageCreate(d.context, desc.Width, desc.Height, format, usage)
	if err != nil {
		return nil, err
	}
	rp, err := d.renderpass(format)
	if err != nil {
		img.Destroy(d.context)
		return nil, err
	}
	fb, err := FramebufferCreate(d.context, rp, img)
	if err != nil {
		img.Destroy(d.context)
		return nil, err
	}
	b := &ColorBuffer{
		desc:        desc,
		image:       img,
		framebuffer: fb,
	}
	d.buffers[b] = struct{}{}
	return b, nil
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
	d.release(b)
}

// release marks the buffer destroyed now and frees its GPU objects once no
// recorded command can reference them.
func (d *Device) release(b *ColorBuffer) {
	b.destroyed = true
	delete(d.buffers, b)
	d.later(func() {
		b.framebuffer.Destroy(d.context)
		b.image.Destroy(d.context)
	})
}

func (d *Device) later(fn func()) {
	if d.recording {
		d.deferred = append(d.deferred, fn)
		return
	}
	fn()
}

// CreateTexture uploads img as an RGBA8 buffer through a staging copy.
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
	staging, err := BufferCreate(d.context, uint64(len(rgba.Pix)), vkBufferUsageStaging)
	if err != nil {
		d.release(b)
		return nil, err
	}
	defer staging.Destroy(d.context)
	if err := staging.Write(0, rgba.Pix); err != nil {
		d.release(b)
		return nil, err
	}

	pool := d.context.Device.GraphicsCommandPool
	cb, err := AllocateAndBeginSingleUse(d.context, pool)
	if err != nil {
		d.release(b)
		return nil, err
	}
	b.image.CopyFromBuffer(cb, staging)
	b.image.TransitionLayout(cb, vk.ImageLayoutShaderReadOnlyOptimal)
	if err := cb.EndSingleUse(d.context, pool, d.context.Device.GraphicsQueue); err != nil {
		d.release(b)
		return nil, err
	}
	return b, nil
}

// ReadPixels copies an 8 bit buffer back to the host, flushing the open frame.
func (d *Device) ReadPixels(buffer renderer.ColorBuffer) (*image.RGBA, error) {
	b, err := d.colorBuffer(buffer)
	if err != nil {
		return nil, err
	}
	if b.desc.Format == metadata.PIXEL_FORMAT_RGBA16F {
		return nil, fmt.Errorf("func ReadPixels - buffer `%s` is %s, only 8 bit formats can be read", b.desc.Name, b.desc.Format)
	}
	if err := d.flush(); err != nil {
		return nil, err
	}
	size := uint64(b.desc.Width) * uint64(b.desc.Height) * 4
	staging, err := BufferCreate(d.context, size, vkBufferUsageStaging)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(d.context)

	pool := d.context.Device.GraphicsCommandPool
	cb, err := AllocateAndBeginSingleUse(d.context, pool)
	if err != nil {
		return nil, err
	}
	b.image.CopyToBuffer(cb, staging)
	if err := cb.EndSingleUse(d.context, pool, d.context.Device.GraphicsQueue); err != nil {
		return nil, err
	}
	out := image.NewRGBA(image.Rect(0, 0, int(b.desc.Width), int(b.desc.Height)))
	copy(out.Pix, staging.Read(0, size))
	if b.desc.Format == metadata.PIXEL_FORMAT_BGRA8 {
		swizzleBGRA(out.Pix)
	}
	return out, nil
}

func swizzleBGRA(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}

func (d *Device) CreateTechnique(config *metadata.TechniqueConfig, source []byte) (renderer.Technique, error) {
	info, err := renderer.NewTechniqueInfo(config)
	if err != nil {
		return nil, err
	}
	if len(source) == 0 {
		return nil, fmt.Errorf("func CreateTechnique - technique `%s` has no shader source", config.Name)
	}
	module, err := NewShaderModule(d.context, source, config.VertexEntry, config.FragmentEntry)
	if err != nil {
		return nil, fmt.Errorf("func CreateTechnique - technique `%s`: %w", config.Name, err)
	}
	t := &Technique{
		TechniqueInfo: info,
		module:        module,
		pipelines:     make(map[vk.Format]*VulkanPipeline),
	}
	// Build against the back buffer format up front so shader errors surface here.
	if _, err := d.pipeline(t, vulkanFormat(d.config.Format)); err != nil {
		module.Destroy(d.context)
		return nil, fmt.Errorf("func CreateTechnique - technique `%s`: %w", config.Name, err)
	}
	d.techniques[t] = struct{}{}
	return t, nil
}

func (d *Device) pipeline(t *Technique, format vk.Format) (*VulkanPipeline, error) {
	if p, ok := t.pipelines[format]; ok {
		return p, nil
	}
	rp, err := d.renderpass(format)
	if err != nil {
		return nil, err
	}
	p, err := NewGraphicsPipeline(d.context, &VulkanPipelineConfig{
		Renderpass: rp,
		Layout:     d.pipelineLayout,
		Stages:     t.module.Stages,
		Blend:      t.Config().Blend,
	})
	if err != nil {
		return nil, err
	}
	t.pipelines[format] = p
	return p, nil
}

func (d *Device) DestroyTechnique(technique renderer.Technique) {
	t, ok := technique.(*Technique)
	if !ok || t == nil {
		return
	}
	if _, live := d.techniques[t]; !live {
		return
	}
	delete(d.techniques, t)
	d.later(func() { d.destroyTechnique(t) })
}

func (d *Device) destroyTechnique(t *Technique) {
	for format, p := range t.pipelines {
		if err := p.Destroy(d.context); err != nil {
			core.LogError("failed to destroy pipeline of `%s`: %s", t.Name(), err)
		}
		delete(t.pipelines, format)
	}
	t.module.Destroy(d.context)
}

func (d *Device) CreateGeometry(name string, vertices []math.Vertex2D) (renderer.Geometry, error) {
	g, err := GeometryCreate(d.context, name, vertices)
	if err != nil {
		return nil, err
	}
	d.geometries[g] = struct{}{}
	return g, nil
}

func (d *Device) DestroyGeometry(geometry renderer.Geometry) {
	g, ok := geometry.(*VulkanGeometry)
	if !ok || g == nil {
		return
	}
	if _, live := d.geometries[g]; !live {
		return
	}
	delete(d.geometries, g)
	d.later(func() { g.Destroy(d.context) })
}

func (d *Device) colorBuffer(buffer renderer.ColorBuffer) (*ColorBuffer, error) {
	b, ok := buffer.(*ColorBuffer)
	if !ok || b == nil {
		return nil, fmt.Errorf("buffer is not a vulkan color buffer")
	}
	if b.destroyed {
		return nil, fmt.Errorf("buffer `%s` %w", b.desc.Name, core.ErrDisposed)
	}
	return b, nil
}

// begin opens the frame command buffer if nothing is recording yet.
func (d *Device) begin() error {
	if d.shutdown {
		return core.ErrDisposed
	}
	if d.recording {
		return nil
	}
	if !d.fence.FenceWait(d.context, fenceTimeoutNs) {
		return fmt.Errorf("func begin - timed out waiting for the previous submission")
	}
	if err := d.cmd.Reset(); err != nil {
		return err
	}
	if err := d.cmd.Begin(true, false, false); err != nil {
		return err
	}
	d.recording = true
	return nil
}

// flush submits what has been recorded and waits for it to finish.
func (d *Device) flush() error {
	if !d.recording {
		return nil
	}
	d.recording = false
	if err := d.fence.FenceReset(d.context); err != nil {
		return err
	}
	err := d.cmd.Submit(d.context.Device.GraphicsQueue, d.fence.Handle)
	if err == nil && !d.fence.FenceWait(d.context, fenceTimeoutNs) {
		err = fmt.Errorf("func flush - timed out waiting for the frame fence")
	}
	if err != nil {
		// Nothing can be known about the queue; wait it out before freeing.
		vk.QueueWaitIdle(d.context.Device.GraphicsQueue)
	}
	for _, fn := range d.deferred {
		fn()
	}
	d.deferred = d.deferred[:0]
	d.uniformOffset = 0
	if resetErr := d.descriptors.Reset(d.context); resetErr != nil {
		err = errors.Join(err, resetErr)
	}
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
	if err := d.flush(); err != nil {
		return err
	}
	d.frames++
	return nil
}

// writeUniforms packs the command block into the next ring slot and returns
// its offset.
func (d *Device) writeUniforms(cmd *renderer.DrawCommand) (uint64, error) {
	d.scratch = renderer.PackUniforms(d.scratch, &cmd.Params, &cmd.Transform)
	offset := d.uniformOffset
	if err := d.uniforms.Write(offset, float32Bytes(d.scratch)); err != nil {
		return 0, err
	}
	d.uniformOffset += UNIFORM_SLOT_SIZE
	return offset, nil
}

// ringFull reports whether another draw fits in this submission.
func (d *Device) ringFull() bool {
	return d.descriptors.Full() || d.uniformOffset+UNIFORM_SLOT_SIZE > d.uniforms.Size
}

func (d *Device) Draw(cmd *renderer.DrawCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	t, ok := cmd.Technique.(*Technique)
	if !ok {
		return fmt.Errorf("func Draw - technique `%s` was not created by the vulkan device", cmd.Technique.Name())
	}
	g, ok := cmd.Geometry.(*VulkanGeometry)
	if !ok || g.buffer == nil {
		return fmt.Errorf("func Draw - geometry `%s` is not a live vulkan geometry", cmd.Geometry.Name())
	}
	out, err := d.colorBuffer(cmd.Output)
	if err != nil {
		return err
	}
	var views [metadata.MAX_TECHNIQUE_INPUTS]vk.ImageView
	var inputs [metadata.MAX_TECHNIQUE_INPUTS]*ColorBuffer
	for i, in := range cmd.Inputs {
		if in == nil {
			views[i] = d.dummy.image.View
			continue
		}
		b, err := d.colorBuffer(in)
		if err != nil {
			return err
		}
		inputs[i] = b
		views[i] = b.image.View
	}

	if err := d.begin(); err != nil {
		return err
	}
	if d.ringFull() {
		if err := d.flush(); err != nil {
			return err
		}
		if err := d.begin(); err != nil {
			return err
		}
	}
	pipeline, err := d.pipeline(t, out.image.Format)
	if err != nil {
		return err
	}
	offset, err := d.writeUniforms(cmd)
	if err != nil {
		return err
	}
	set, err := d.descriptors.Allocate(d.context)
	if err != nil {
		return err
	}
	sampler := d.samplers[vulkanFilter(t.Config().FilterMode())]
	WriteDrawSet(d.context, set, views, sampler, d.uniforms, uint64(renderer.UniformBlockSize))

	for _, b := range inputs {
		if b != nil {
			b.image.TransitionLayout(d.cmd, vk.ImageLayoutShaderReadOnlyOptimal)
		}
	}
	d.dummy.image.TransitionLayout(d.cmd, vk.ImageLayoutShaderReadOnlyOptimal)
	out.image.TransitionLayout(d.cmd, vk.ImageLayoutColorAttachmentOptimal)

	rp := out.framebuffer.Renderpass
	rp.RenderpassBegin(d.cmd, out.framebuffer)
	vp := cmd.ViewportFor()
	vk.CmdSetViewport(d.cmd.Handle, 0, 1, []vk.Viewport{flippedViewport(vp)})
	vk.CmdSetScissor(d.cmd.Handle, 0, 1, []vk.Rect2D{scissorFor(vp)})
	if cmd.Clear {
		c := cmd.ClearColor
		ClearRect(d.cmd, scissorFor(vp), [4]float32{c.X, c.Y, c.Z, c.W})
	}
	pipeline.Bind(d.cmd, vk.PipelineBindPointGraphics)
	vk.CmdBindDescriptorSets(d.cmd.Handle, vk.PipelineBindPointGraphics, d.pipelineLayout, 0, 1, []vk.DescriptorSet{set}, 1, []uint32{uint32(offset)})
	vk.CmdBindVertexBuffers(d.cmd.Handle, 0, 1, []vk.Buffer{g.buffer.Handle}, []vk.DeviceSize{0})
	vk.CmdDraw(d.cmd.Handle, g.vertexCount, 1, 0, 0)
	rp.RenderpassEnd(d.cmd)
	return nil
}

// flippedViewport turns a top-left origin viewport into a Vulkan viewport
// with a negative height, so clip space y points up like in WGSL.
func flippedViewport(vp metadata.Viewport) vk.Viewport {
	return vk.Viewport{
		X:        float32(vp.X),
		Y:        float32(vp.Y + vp.Height),
		Width:    float32(vp.Width),
		Height:   -float32(vp.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
}

func scissorFor(vp metadata.Viewport) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: int32(vp.X), Y: int32(vp.Y)},
		Extent: vk.Extent2D{Width: vp.Width, Height: vp.Height},
	}
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
	if err := d.begin(); err != nil {
		return err
	}
	s.image.BlitTo(d.cmd, t.image, vk.FilterLinear)
	return nil
}

func (d *Device) Shutdown() error {
	if d.shutdown {
		return nil
	}
	var err error
	if d.cmd != nil {
		err = d.flush()
	}
	d.shutdown = true
	if dev := d.context.Device; dev != nil && dev.LogicalDevice != nil {
		vk.DeviceWaitIdle(dev.LogicalDevice)

		for t := range d.techniques {
			d.destroyTechnique(t)
		}
		d.techniques = nil
		for g := range d.geometries {
			g.Destroy(d.context)
		}
		d.geometries = nil
		for b := range d.buffers {
			b.destroyed = true
			b.framebuffer.Destroy(d.context)
			b.image.Destroy(d.context)
		}
		d.buffers = nil
		for format, rp := range d.renderpasses {
			rp.RenderpassDestroy(d.context)
			delete(d.renderpasses, format)
		}
		for filter, sampler := range d.samplers {
			vk.DestroySampler(dev.LogicalDevice, sampler, d.context.Allocator)
			delete(d.samplers, filter)
		}
		if d.uniforms != nil {
			d.uniforms.Destroy(d.context)
		}
		if d.descriptors != nil {
			d.descriptors.Destroy(d.context)
		}
		PipelineLayoutDestroy(d.context, d.pipelineLayout)
		if d.setLayout != nil {
			vk.DestroyDescriptorSetLayout(dev.LogicalDevice, d.setLayout, d.context.Allocator)
		}
		if d.fence != nil {
			d.fence.FenceDestroy(d.context)
		}
		if d.cmd != nil {
			d.cmd.Free(d.context, dev.GraphicsCommandPool)
		}
	}
	DeviceDestroy(d.context)
	InstanceDestroy(d.context)
	core.LogInfo("Vulkan device shut down")
	return err
}
