package engine

import (
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/views"
	"github.com/spaghettifunk/anima-fx/engine/systems"
)

type Game struct {
	Config *EngineConfig
	// Device overrides the device named by the configuration. No window is
	// opened when it is set.
	Device renderer.Device

	// Set by the engine before FnInitialize.
	Engine        *Engine
	SystemManager *systems.SystemManager

	State        interface{}
	FnBoot       Boot
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Boot func() error
type Initialize func() error
type Update func(deltaTime float64) error

// Render fills scene for the frame about to be drawn.
type Render func(frame *renderer.Frame, scene *views.Scene) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
