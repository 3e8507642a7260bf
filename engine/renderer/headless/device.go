package headless

import (
	"fmt"
	"image"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

type Config struct {
	Width   uint32
	Height  uint32
	Format  metadata.PixelFormat
	Samples uint32
}

// DrawRecord is one entry of the draw log.
type DrawRecord struct {
	Technique string
	Inputs    []string
	Output    string
	Viewport  metadata.Viewport
	Params    renderer.Parameters
}

type technique struct {
	*renderer.TechniqueInfo
	kernel    Kernel
	source    []byte
	destroyed bool
}

type geometry struct {
	name     string
	vertices []math.Vertex2D
}

func (g *geometry) Name() string {
	return g.name
}

func (g *geometry) VertexCount() uint32 {
	return uint32(len(g.vertices))
}

/**
 * @brief Device renders on the CPU. It is used by the tests and by CI runs
 * where no GPU is available. Techniques are emulated by CPU kernels chosen by
 * the technique's `kernel` name.
 */
type Device struct {
	mu sync.Mutex

	back    metadata.BufferDesc
	backBuf *Buffer

	kernels map[string]Kernel
	live    map[*Buffer]struct{}

	created   int
	destroyed int
	draws     []DrawRecord
	recording bool
	frame     uint64
	inFrame   bool
}

func New(config Config) *Device {
	if config.Samples == 0 {
		config.Samples = 1
	}
	d := &Device{
		back: metadata.BufferDesc{
			Width:   config.Width,
			Height:  config.Height,
			Format:  config.Format,
			Samples: config.Samples,
			Name:    "backbuffer",
		},
		kernels:   builtinKernels(),
		live:      make(map[*Buffer]struct{}),
		recording: true,
	}
	d.backBuf = newBuffer(d.back)
	return d
}

func (d *Device) Name() string {
	return "headless"
}

func (d *Device) BackBuffer() metadata.BufferDesc {
	return d.back
}

func (d *Device) BackBufferTarget() renderer.ColorBuffer {
	return d.backBuf
}

func (d *Device) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return core.ErrInvalidDimensions
	}
	d.back.Width = width
	d.back.Height = height
	d.backBuf = newBuffer(d.back)
	return nil
}

// RegisterKernel adds or replaces the CPU emulation of a technique.
func (d *Device) RegisterKernel(name string, k Kernel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kernels[name] = k
}

func (d *Device) CreateColorBuffer(desc metadata.BufferDesc) (renderer.ColorBuffer, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("headless: %w: %dx%d", core.ErrInvalidDimensions, desc.Width, desc.Height)
	}
	if desc.Samples == 0 {
		desc.Samples = 1
	}
	if desc.Name == "" {
		desc.Name = uuid.New().String()
	}
	b := newBuffer(desc)

	d.mu.Lock()
	d.live[b] = struct{}{}
	d.created++
	d.mu.Unlock()
	return b, nil
}

func (d *Device) DestroyColorBuffer(buffer renderer.ColorBuffer) {
	b, ok := buffer.(*Buffer)
	if !ok || b == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.live[b]; !ok {
		core.LogWarn("headless: destroying unknown or already destroyed buffer `%s`", b.Name())
		return
	}
	delete(d.live, b)
	b.destroyed = true
	d.destroyed++
}

func (d *Device) CreateTexture(name string, img image.Image) (renderer.ColorBuffer, error) {
	bounds := img.Bounds()
	buf, err := d.CreateColorBuffer(metadata.BufferDesc{
		Width:   uint32(bounds.Dx()),
		Height:  uint32(bounds.Dy()),
		Format:  metadata.PIXEL_FORMAT_RGBA8,
		Samples: 1,
		Name:    name,
	})
	if err != nil {
		return nil, err
	}
	b := buf.(*Buffer)
	draw.Draw(b.img, b.img.Bounds(), img, bounds.Min, draw.Src)
	b.texture = true
	b.lineage = []string{"texture:" + name}
	return b, nil
}

func (d *Device) CreateTechnique(config *metadata.TechniqueConfig, source []byte) (renderer.Technique, error) {
	info, err := renderer.NewTechniqueInfo(config)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	k, ok := d.kernels[config.Kernel]
	d.mu.Unlock()
	if !ok {
		core.LogDebug("headless: no kernel `%s` for technique `%s`, using passthrough", config.Kernel, config.Name)
		k = kernelPassthrough
	}
	return &technique{TechniqueInfo: info, kernel: k, source: source}, nil
}

func (d *Device) DestroyTechnique(t renderer.Technique) {
	if tt, ok := t.(*technique); ok {
		tt.destroyed = true
	}
}

func (d *Device) CreateGeometry(name string, vertices []math.Vertex2D) (renderer.Geometry, error) {
	if len(vertices) == 0 || len(vertices)%3 != 0 {
		return nil, fmt.Errorf("headless: geometry `%s` needs a multiple of 3 vertices, got %d", name, len(vertices))
	}
	v := make([]math.Vertex2D, len(vertices))
	copy(v, vertices)
	return &geometry{name: name, vertices: v}, nil
}

func (d *Device) DestroyGeometry(g renderer.Geometry) {}

func (d *Device) Draw(cmd *renderer.DrawCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	t, ok := cmd.Technique.(*technique)
	if !ok {
		return fmt.Errorf("headless: technique `%s` was not created by this device", cmd.Technique.Name())
	}
	if t.destroyed {
		return fmt.Errorf("headless: technique `%s` %w", t.Name(), core.ErrDisposed)
	}
	g, ok := cmd.Geometry.(*geometry)
	if !ok {
		return fmt.Errorf("headless: geometry `%s` was not created by this device", cmd.Geometry.Name())
	}
	out, err := d.buffer(cmd.Output)
	if err != nil {
		return err
	}
	var inputs [metadata.MAX_TECHNIQUE_INPUTS]*Buffer
	for i, in := range cmd.Inputs {
		if in == nil {
			continue
		}
		if inputs[i], err = d.buffer(in); err != nil {
			return err
		}
	}

	vp := cmd.ViewportFor()
	if cmd.Clear {
		clearViewport(out, vp, cmd.ClearColor.Array())
	}

	frag := &Fragment{
		Params:     &cmd.Params,
		inputs:     inputs,
		filter:     t.Config().FilterMode(),
		OutputSize: [2]uint32{vp.Width, vp.Height},
		dest:       out,
	}
	rasterize(out, vp, g.vertices, &cmd.Transform, t.Config().Blend, t.kernel, frag)

	out.lineage = d.lineageFor(cmd, inputs, out, t)
	if d.recording {
		rec := DrawRecord{
			Technique: t.Name(),
			Output:    out.Name(),
			Viewport:  vp,
			Params:    cmd.Params,
		}
		for _, in := range inputs {
			if in != nil {
				rec.Inputs = append(rec.Inputs, in.Name())
			}
		}
		d.mu.Lock()
		d.draws = append(d.draws, rec)
		d.mu.Unlock()
	}
	return nil
}

func (d *Device) lineageFor(cmd *renderer.DrawCommand, inputs [metadata.MAX_TECHNIQUE_INPUTS]*Buffer, out *Buffer, t *technique) []string {
	var base []string
	switch {
	case inputs[0] != nil && !inputs[0].texture:
		base = inputs[0].lineage
	case !cmd.Clear:
		base = out.lineage
	}
	lineage := make([]string, 0, len(base)+1)
	lineage = append(lineage, base...)
	return append(lineage, t.Name())
}

func (d *Device) Copy(src, dst renderer.ColorBuffer) error {
	s, err := d.buffer(src)
	if err != nil {
		return err
	}
	t, err := d.buffer(dst)
	if err != nil {
		return err
	}
	if s == t {
		return nil
	}
	if s.img.Bounds().Eq(t.img.Bounds()) {
		copy(t.img.Pix, s.img.Pix)
	} else {
		draw.BiLinear.Scale(t.img, t.img.Bounds(), s.img, s.img.Bounds(), draw.Src, nil)
	}
	t.lineage = append([]string(nil), s.lineage...)
	return nil
}

// CopyToViewport blits src into a region of dst. Used to present stereo eyes.
func (d *Device) CopyToViewport(src, dst renderer.ColorBuffer, vp metadata.Viewport) error {
	s, err := d.buffer(src)
	if err != nil {
		return err
	}
	t, err := d.buffer(dst)
	if err != nil {
		return err
	}
	rect := image.Rect(int(vp.X), int(vp.Y), int(vp.X+vp.Width), int(vp.Y+vp.Height))
	draw.BiLinear.Scale(t.img, rect, s.img, s.img.Bounds(), draw.Src, nil)
	return nil
}

func (d *Device) buffer(cb renderer.ColorBuffer) (*Buffer, error) {
	b, ok := cb.(*Buffer)
	if !ok || b == nil {
		return nil, fmt.Errorf("headless: buffer was not created by this device")
	}
	if b.destroyed {
		return nil, fmt.Errorf("headless: buffer `%s` %w", b.Name(), core.ErrDisposed)
	}
	return b, nil
}

func (d *Device) BeginFrame() error {
	if d.inFrame {
		return fmt.Errorf("headless: BeginFrame called twice")
	}
	d.inFrame = true
	return nil
}

func (d *Device) EndFrame() error {
	if !d.inFrame {
		return fmt.Errorf("headless: EndFrame called without BeginFrame")
	}
	d.inFrame = false
	d.frame++
	return nil
}

func (d *Device) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := len(d.live); n > 0 {
		core.LogDebug("headless: %d buffers still alive at shutdown", n)
	}
	return nil
}

// LiveBuffers is the number of created and not yet destroyed buffers.
func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// Counters returns the total number of buffer creations and destructions.
func (d *Device) Counters() (created, destroyed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created, d.destroyed
}

// Draws returns a copy of the draw log.
func (d *Device) Draws() []DrawRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DrawRecord, len(d.draws))
	copy(out, d.draws)
	return out
}

func (d *Device) ResetDraws() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draws = d.draws[:0]
}

// Frames is the number of completed frames.
func (d *Device) Frames() uint64 {
	return d.frame
}

var _ renderer.Device = (*Device)(nil)
