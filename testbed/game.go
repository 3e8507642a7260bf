package testbed

import (
	"fmt"
	gomath "math"

	"github.com/spaghettifunk/anima-fx/engine"
	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/math"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-fx/engine/renderer/views"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	width  uint32
	height uint32

	// what the scene is built from, acquired on the first frame
	planes []plane
	built  bool
	lava   *views.Renderable
}

// plane is one material drawn on a clip space rectangle.
type plane struct {
	name     string
	material string
	x, y     float32
	w, h     float32
	tiles    float32
}

var backendKeys = map[core.KeyCode]metadata.BackendKind{
	core.KEY_F1: metadata.BACKEND_KIND_FORWARD,
	core.KEY_F2: metadata.BACKEND_KIND_DEFERRED,
	core.KEY_F3: metadata.BACKEND_KIND_LIGHT_PRE_PASS,
	core.KEY_F4: metadata.BACKEND_KIND_STEREO,
}

func NewTestGame(config *engine.EngineConfig) (*TestGame, error) {
	if config == nil {
		return nil, fmt.Errorf("func NewTestGame - config is nil")
	}
	tg := &TestGame{
		Game: &engine.Game{
			Config: config,
			State: &gameState{
				width:  config.Application.StartWidth,
				height: config.Application.StartHeight,
				planes: []plane{
					{name: "sky", material: "sky", x: -1, y: -1, w: 2, h: 2, tiles: 1},
					{name: "ground", material: "stone", x: -1, y: 0, w: 2, h: 1, tiles: 4},
					{name: "lava_pool", material: "lava", x: -0.8, y: 0.2, w: 0.7, h: 0.6, tiles: 2},
					{name: "pond", material: "pond", x: 0.1, y: 0.3, w: 0.8, h: 0.5, tiles: 3},
				},
			},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) Boot() error {
	core.LogInfo("booting testbed...")
	return nil
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	if g.SystemManager == nil {
		return fmt.Errorf("the engine is not yet initialized with all the system managers ")
	}
	g.Engine.Context().Events().Register(core.EVENT_CODE_KEY_PRESSED, g, g.onKey)
	core.LogInfo("F1-F4 switch backends, V toggles VR, 1-8 toggle passes, F5 reloads the configuration")
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	return nil
}

func (g *TestGame) Render(frame *renderer.Frame, scene *views.Scene) error {
	state := g.State.(*gameState)
	if !state.built {
		if err := g.buildScene(state, scene); err != nil {
			return err
		}
		state.built = true
	}

	// slow day cycle on the light, the lava breathes with it
	k := float32(0.75 + 0.25*gomath.Sin(frame.Time*0.5))
	scene.Light = math.NewVec4(1, 0.95*k, 0.85*k, 1)
	if state.lava != nil {
		state.lava.Model = math.NewMat4Scale(math.NewVec3(1, 1+0.02*float32(gomath.Sin(frame.Time*2)), 1))
	}
	return nil
}

func (g *TestGame) buildScene(state *gameState, scene *views.Scene) error {
	ms := g.SystemManager.MaterialSystem()
	gs := g.SystemManager.GeometrySystem()
	for _, p := range state.planes {
		m, err := ms.Acquire(p.material)
		if err != nil {
			core.LogWarn("material `%s` is unavailable, drawing `%s` with the default: %s", p.material, p.name, err)
			m = ms.GetDefault()
		}
		geom, err := gs.AcquirePlane(p.name, p.x, p.y, p.w, p.h, p.tiles, p.tiles)
		if err != nil {
			return err
		}
		r := views.NewRenderable(m, geom)
		if p.material == "lava" {
			state.lava = r
		}
		scene.Add(r)
	}
	scene.ClearColor = math.NewVec4(0.05, 0.05, 0.08, 1)
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	if g.Engine != nil && g.SystemManager != nil {
		g.Engine.Context().Events().Unregister(core.EVENT_CODE_KEY_PRESSED, g)
	}
	core.LogInfo("testbed shut down")
	return nil
}

func (g *TestGame) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		return false
	}
	if kind, ok := backendKeys[ke.KeyCode]; ok {
		if err := g.Engine.ActivateBackend(kind); err != nil {
			core.LogError(err.Error())
		}
		return true
	}
	switch {
	case ke.KeyCode == core.KEY_V:
		if err := g.Engine.ToggleVR(); err != nil {
			core.LogError(err.Error())
		}
		return true
	case ke.KeyCode == core.KEY_F5:
		if err := g.Engine.ReloadConfig(); err != nil {
			core.LogError("failed to reload the configuration: %s", err)
		}
		return true
	case ke.KeyCode >= core.KEY_1 && ke.KeyCode <= core.KEY_8:
		if p, ok := g.Engine.TogglePass(int(ke.KeyCode - core.KEY_1)); ok {
			core.LogInfo("pass `%s` enabled: %t", p.Name(), p.Enabled())
		}
		return true
	}
	return false
}
