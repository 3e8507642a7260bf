package targets

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

/** @brief The configuration for the offscreen buffer pool. */
type PoolConfig struct {
	/**
	 * @brief Keeps a (width, height) index next to the entry list so lookups
	 * skip entries of other sizes. Reuse results are identical to the linear scan.
	 */
	Indexed bool
	/** @brief Logs a warning once when the entry count reaches this value. 0 disables it. */
	WarnEntries int
}

type entry struct {
	buffer renderer.ColorBuffer
	width  uint32
	height uint32
	active bool
}

type sizeKey struct {
	width, height uint32
}

/** @brief Counters describing the pool. */
type PoolStats struct {
	Entries     int
	Active      int
	Allocations int
	Reuses      int
}

/**
 * @brief Pool hands out temporary offscreen color buffers to passes. Buffers
 * are reused only on an exact size match; formats and sample counts follow the
 * device back buffer. The pool never shrinks: entries live until Dispose.
 *
 * Not safe for concurrent use; it belongs to the render thread.
 */
type Pool struct {
	device   renderer.Device
	config   PoolConfig
	entries  []*entry
	bySize   map[sizeKey][]*entry
	byHandle map[renderer.ColorBuffer]*entry

	allocations int
	reuses      int
	warned      bool
	disposed    bool
}

func NewPool(device renderer.Device, config PoolConfig) *Pool {
	p := &Pool{
		device:   device,
		config:   config,
		byHandle: make(map[renderer.ColorBuffer]*entry),
	}
	if config.Indexed {
		p.bySize = make(map[sizeKey][]*entry)
	}
	return p
}

/**
 * @brief Returns an inactive buffer of exactly width x height, creating one
 * when none is free. The returned buffer is checked out until
 * ReleaseTemporary or ReleaseAll.
 */
func (p *Pool) GetTemporary(width, height uint32) (renderer.ColorBuffer, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("func GetTemporary - %w: %dx%d", core.ErrInvalidDimensions, width, height)
	}
	if p.disposed {
		return nil, fmt.Errorf("func GetTemporary - pool %w", core.ErrDisposed)
	}

	if e := p.findFree(width, height); e != nil {
		e.active = true
		p.reuses++
		return e.buffer, nil
	}

	back := p.device.BackBuffer()
	buf, err := p.device.CreateColorBuffer(metadata.BufferDesc{
		Width:   width,
		Height:  height,
		Format:  back.Format,
		Samples: back.Samples,
		Name:    fmt.Sprintf("pool-%dx%d-%s", width, height, uuid.New().String()),
	})
	if err != nil {
		return nil, err
	}

	e := &entry{buffer: buf, width: width, height: height, active: true}
	p.entries = append(p.entries, e)
	p.byHandle[buf] = e
	if p.bySize != nil {
		k := sizeKey{width, height}
		p.bySize[k] = append(p.bySize[k], e)
	}
	p.allocations++

	if p.config.WarnEntries > 0 && !p.warned && len(p.entries) >= p.config.WarnEntries {
		p.warned = true
		core.LogWarn("offscreen pool holds %d buffers; sizes that change every frame are never reclaimed", len(p.entries))
	}
	return buf, nil
}

func (p *Pool) findFree(width, height uint32) *entry {
	if p.bySize != nil {
		for _, e := range p.bySize[sizeKey{width, height}] {
			if !e.active {
				return e
			}
		}
		return nil
	}
	for _, e := range p.entries {
		if !e.active && e.width == width && e.height == height {
			return e
		}
	}
	return nil
}

/**
 * @brief Returns a buffer to the pool. Buffers the pool does not own are
 * ignored. Releasing an entry twice logs a warning and changes nothing.
 */
func (p *Pool) ReleaseTemporary(buffer renderer.ColorBuffer) {
	if buffer == nil {
		return
	}
	e, ok := p.byHandle[buffer]
	if !ok {
		return
	}
	if !e.active {
		core.LogWarn("offscreen buffer `%s` released twice", buffer.Name())
		return
	}
	e.active = false
}

/**
 * @brief Marks every entry inactive. Runs at the end of each frame so that
 * a pass that forgot to release cannot leak its buffer into the next frame.
 */
func (p *Pool) ReleaseAll() {
	for _, e := range p.entries {
		e.active = false
	}
}

// Owns reports whether buffer is a pool entry.
func (p *Pool) Owns(buffer renderer.ColorBuffer) bool {
	_, ok := p.byHandle[buffer]
	return ok
}

// IsCheckedOut reports whether buffer is a pool entry currently in use.
func (p *Pool) IsCheckedOut(buffer renderer.ColorBuffer) bool {
	e, ok := p.byHandle[buffer]
	return ok && e.active
}

func (p *Pool) Len() int {
	return len(p.entries)
}

func (p *Pool) Stats() PoolStats {
	s := PoolStats{
		Entries:     len(p.entries),
		Allocations: p.allocations,
		Reuses:      p.reuses,
	}
	for _, e := range p.entries {
		if e.active {
			s.Active++
		}
	}
	return s
}

/**
 * @brief Destroys every entry. Entries still checked out are destroyed too,
 * with an error logged for each.
 */
func (p *Pool) Dispose() {
	for _, e := range p.entries {
		if e.active {
			core.LogError("offscreen buffer `%s` disposed while checked out", e.buffer.Name())
		}
		p.device.DestroyColorBuffer(e.buffer)
	}
	p.entries = nil
	p.byHandle = make(map[renderer.ColorBuffer]*entry)
	if p.bySize != nil {
		p.bySize = make(map[sizeKey][]*entry)
	}
	p.disposed = true
}
