package systems

import (
	"fmt"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
)

type GeometrySystemConfig struct {
	/** @brief The maximum number of geometries that can be loaded at once. */
	MaxGeometryCount int
}

type geometryReference struct {
	geometry       renderer.Geometry
	referenceCount uint64
	autoRelease    bool
}

/** @brief GeometrySystem owns the vertex lists renderables draw. */
type GeometrySystem struct {
	Config *GeometrySystemConfig

	device     renderer.Device
	geometries map[string]*geometryReference
}

func NewGeometrySystem(config *GeometrySystemConfig, device renderer.Device) (*GeometrySystem, error) {
	if config.MaxGeometryCount == 0 {
		err := fmt.Errorf("func NewGeometrySystem - config.MaxGeometryCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &GeometrySystem{
		Config:     config,
		device:     device,
		geometries: make(map[string]*geometryReference),
	}, nil
}

// Acquire returns the named geometry, uploading vertices when it does not
// exist yet, and takes a reference.
func (gs *GeometrySystem) Acquire(name string, vertices []math.Vertex2D, autoRelease bool) (renderer.Geometry, error) {
	if ref, ok := gs.geometries[name]; ok {
		ref.referenceCount++
		return ref.geometry, nil
	}
	if len(gs.geometries) >= gs.Config.MaxGeometryCount {
		return nil, fmt.Errorf("func GeometrySystem Acquire - cannot create `%s`, %d geometries already exist", name, len(gs.geometries))
	}
	g, err := gs.device.CreateGeometry(name, vertices)
	if err != nil {
		return nil, err
	}
	gs.geometries[name] = &geometryReference{geometry: g, referenceCount: 1, autoRelease: autoRelease}
	return g, nil
}

/**
 * @brief Acquires a rectangle covering the given clip-space region, x and y
 * being its bottom-left corner. Texture coordinates are scaled by tileX and
 * tileY.
 */
func (gs *GeometrySystem) AcquirePlane(name string, x, y, width, height, tileX, tileY float32) (renderer.Geometry, error) {
	return gs.Acquire(name, GeneratePlane(x, y, width, height, tileX, tileY), true)
}

func (gs *GeometrySystem) Release(name string) {
	ref, ok := gs.geometries[name]
	if !ok {
		core.LogWarn("func GeometrySystem Release - unknown geometry `%s`", name)
		return
	}
	if ref.referenceCount > 0 {
		ref.referenceCount--
	}
	if ref.referenceCount == 0 && ref.autoRelease {
		gs.device.DestroyGeometry(ref.geometry)
		delete(gs.geometries, name)
	}
}

func (gs *GeometrySystem) Count() int {
	return len(gs.geometries)
}

func (gs *GeometrySystem) Shutdown() error {
	for name, ref := range gs.geometries {
		gs.device.DestroyGeometry(ref.geometry)
		delete(gs.geometries, name)
	}
	return nil
}

// GeneratePlane builds the two triangles of a clip-space rectangle.
func GeneratePlane(x, y, width, height, tileX, tileY float32) []math.Vertex2D {
	if tileX == 0 {
		tileX = 1
	}
	if tileY == 0 {
		tileY = 1
	}
	x1, y1 := x+width, y+height
	bl := math.Vertex2D{Position: math.NewVec2(x, y), Texcoord: math.NewVec2(0, tileY)}
	br := math.Vertex2D{Position: math.NewVec2(x1, y), Texcoord: math.NewVec2(tileX, tileY)}
	tr := math.Vertex2D{Position: math.NewVec2(x1, y1), Texcoord: math.NewVec2(tileX, 0)}
	tl := math.Vertex2D{Position: math.NewVec2(x, y1), Texcoord: math.NewVec2(0, 0)}
	return []math.Vertex2D{bl, br, tr, bl, tr, tl}
}
