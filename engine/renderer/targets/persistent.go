package targets

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// SizeFunc returns the size a persistent buffer should currently have.
type SizeFunc func() (uint32, uint32)

/**
 * @brief Persistent is a buffer owned by one pass that survives across frames
 * (history, occlusion, geometry buffers). It is created lazily and recreated
 * at a new size when the output size changes.
 */
type Persistent struct {
	device renderer.Device
	name   string
	size   SizeFunc
	format *metadata.PixelFormat

	buffer   renderer.ColorBuffer
	borrows  int
	zombie   renderer.ColorBuffer
	disposed bool
	// generation increments on every (re)creation so owners can reset history.
	generation uint32
}

func NewPersistent(device renderer.Device, name string, size SizeFunc) *Persistent {
	return &Persistent{
		device: device,
		name:   name,
		size:   size,
	}
}

// WithFormat overrides the back buffer format.
func (p *Persistent) WithFormat(format metadata.PixelFormat) *Persistent {
	p.format = &format
	return p
}

func (p *Persistent) Name() string {
	return p.name
}

// Acquire returns the buffer, creating it at the current size if needed.
func (p *Persistent) Acquire() (renderer.ColorBuffer, error) {
	if p.disposed {
		return nil, fmt.Errorf("persistent buffer `%s` %w", p.name, core.ErrDisposed)
	}
	if p.buffer != nil {
		return p.buffer, nil
	}
	return p.create()
}

// Current returns the buffer without creating it.
func (p *Persistent) Current() renderer.ColorBuffer {
	return p.buffer
}

func (p *Persistent) Generation() uint32 {
	return p.generation
}

func (p *Persistent) create() (renderer.ColorBuffer, error) {
	w, h := p.size()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("persistent buffer `%s` %w: %dx%d", p.name, core.ErrInvalidDimensions, w, h)
	}
	back := p.device.BackBuffer()
	desc := metadata.BufferDesc{
		Width:   w,
		Height:  h,
		Format:  back.Format,
		Samples: back.Samples,
		Name:    fmt.Sprintf("%s-%s", p.name, uuid.New().String()),
	}
	if p.format != nil {
		desc.Format = *p.format
	}
	buf, err := p.device.CreateColorBuffer(desc)
	if err != nil {
		return nil, err
	}
	p.buffer = buf
	p.generation++
	return buf, nil
}

/**
 * @brief Destroys the current buffer and allocates a new one at the current
 * size. Calling it repeatedly with an unchanged size still leaves exactly one
 * live buffer.
 */
func (p *Persistent) Recreate() error {
	if p.disposed {
		return nil
	}
	p.release()
	_, err := p.create()
	return err
}

// Invalidate destroys the current buffer; the next Acquire creates it again.
func (p *Persistent) Invalidate() {
	p.release()
}

func (p *Persistent) release() {
	if p.buffer == nil {
		return
	}
	if p.borrows > 0 {
		core.LogError("persistent buffer `%s` destroyed while in use, deferring", p.name)
		if p.zombie != nil {
			p.device.DestroyColorBuffer(p.zombie)
		}
		p.zombie = p.buffer
	} else {
		p.device.DestroyColorBuffer(p.buffer)
	}
	p.buffer = nil
}

// Use marks the buffer as bound for the current draw.
func (p *Persistent) Use() {
	p.borrows++
}

// Done ends a Use. Destruction deferred while the buffer was bound happens here.
func (p *Persistent) Done() {
	if p.borrows == 0 {
		return
	}
	p.borrows--
	if p.borrows == 0 && p.zombie != nil {
		p.device.DestroyColorBuffer(p.zombie)
		p.zombie = nil
	}
}

func (p *Persistent) Dispose() {
	if p.disposed {
		return
	}
	p.release()
	p.disposed = true
}
