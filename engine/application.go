package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spaghettifunk/anima-fx/engine/assets/loaders"
	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-fx/engine/renderer/targets"
	"github.com/spaghettifunk/anima-fx/engine/systems"
)

/** @brief The devices the engine can render with. */
const (
	DEVICE_HEADLESS string = "headless"
	DEVICE_VULKAN   string = "vulkan"
	DEVICE_WEBGPU   string = "webgpu"
)

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"start_pos_x"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"start_pos_y"`
	// Window starting width, if applicable.
	StartWidth uint32 `toml:"start_width"`
	// Window starting height, if applicable.
	StartHeight uint32 `toml:"start_height"`
	// The application name used in windowing, if applicable.
	Name     string `toml:"name"`
	LogLevel string `toml:"log_level"`
	// MaxFrames stops Run after that many frames. 0 runs until quit.
	MaxFrames uint64 `toml:"max_frames"`
}

type RendererConfig struct {
	/** @brief One of headless, vulkan or webgpu. */
	Device string `toml:"device"`
	/** @brief The backend active at start. */
	Backend metadata.BackendKind `toml:"backend"`
	/** @brief Attach the side-by-side VR service at start. */
	VR          bool                 `toml:"vr"`
	PixelFormat metadata.PixelFormat `toml:"pixel_format"`
	Samples     uint32               `toml:"samples"`
	/** @brief How many backend, VR and reload requests can wait for a frame. */
	RequestQueueSize int  `toml:"request_queue_size"`
	VSync            bool `toml:"vsync"`
	/** @brief Enables the Vulkan validation layer. */
	Debug bool `toml:"debug"`
}

type PoolConfig struct {
	Indexed     bool `toml:"indexed"`
	WarnEntries int  `toml:"warn_entries"`
}

type AssetsConfig struct {
	Root string `toml:"root"`
	/** @brief Reload techniques when their files change. */
	Watch   bool `toml:"watch"`
	Workers int  `toml:"workers"`
	/** @brief Techniques and materials loaded at boot on the job system. */
	PreloadTechniques []string `toml:"preload_techniques"`
	PreloadMaterials  []string `toml:"preload_materials"`
}

/**
 * @brief EngineConfig is the engine TOML file: the window, the device and
 * backend, the offscreen pool, the assets and the post-process passes in
 * the order they are declared.
 */
type EngineConfig struct {
	Application ApplicationConfig           `toml:"application"`
	Renderer    RendererConfig              `toml:"renderer"`
	Pool        PoolConfig                  `toml:"pool"`
	Assets      AssetsConfig                `toml:"assets"`
	Fonts       []metadata.BitmapFontConfig `toml:"fonts"`
	Passes      []metadata.PassConfig       `toml:"passes"`

	// path is the file the configuration was read from, if any.
	path string
}

// DefaultEngineConfig renders headless with no passes.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Application: ApplicationConfig{
			StartPosX:   100,
			StartPosY:   100,
			StartWidth:  1280,
			StartHeight: 720,
			Name:        "Anima FX",
			LogLevel:    "info",
		},
		Renderer: RendererConfig{
			Device:           DEVICE_HEADLESS,
			Backend:          metadata.BACKEND_KIND_FORWARD,
			PixelFormat:      metadata.PIXEL_FORMAT_RGBA8,
			Samples:          1,
			RequestQueueSize: 16,
		},
		Pool: PoolConfig{
			WarnEntries: 64,
		},
		Assets: AssetsConfig{
			Root:    "assets",
			Workers: 2,
		},
	}
}

// LoadEngineConfig reads path on top of the defaults.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	config := DefaultEngineConfig()
	loader := &loaders.ConfigLoader{}
	res, err := loader.Load(path, metadata.ResourceTypeConfig, config)
	if err != nil {
		return nil, fmt.Errorf("func LoadEngineConfig - %w", err)
	}
	defer loader.Unload(res)
	config.path = path
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Path returns the file the configuration was loaded from.
func (c *EngineConfig) Path() string {
	return c.path
}

func (c *EngineConfig) Validate() error {
	var errs []error
	switch strings.ToLower(c.Renderer.Device) {
	case DEVICE_HEADLESS, DEVICE_VULKAN, DEVICE_WEBGPU:
	default:
		errs = append(errs, fmt.Errorf("unknown device `%s`", c.Renderer.Device))
	}
	if c.Application.StartWidth == 0 || c.Application.StartHeight == 0 {
		errs = append(errs, fmt.Errorf("%w: %dx%d", core.ErrInvalidDimensions, c.Application.StartWidth, c.Application.StartHeight))
	}
	names := make(map[string]struct{}, len(c.Passes))
	for _, p := range c.Passes {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, ok := names[p.InstanceName()]; ok {
			errs = append(errs, fmt.Errorf("pass `%s` is declared twice", p.InstanceName()))
		}
		names[p.InstanceName()] = struct{}{}
	}
	return errors.Join(errs...)
}

func (c *EngineConfig) systemManagerConfig() *systems.SystemManagerConfig {
	return &systems.SystemManagerConfig{
		AssetRoot:  c.Assets.Root,
		WatchAsset: c.Assets.Watch,
		Workers:    c.Assets.Workers,
		Renderer: systems.RendererSystemConfig{
			Pool: targets.PoolConfig{
				Indexed:     c.Pool.Indexed,
				WarnEntries: c.Pool.WarnEntries,
			},
			Context: renderer.ContextConfig{
				RequestQueueSize: c.Renderer.RequestQueueSize,
			},
		},
		DefaultBackend:    c.Renderer.Backend,
		Fonts:             c.Fonts,
		PreloadTechniques: c.Assets.PreloadTechniques,
		PreloadMaterials:  c.Assets.PreloadMaterials,
	}
}
