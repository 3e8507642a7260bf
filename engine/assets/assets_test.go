package assets

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

const techniqueTOML = `
name = "forward_basic"
shader = "shaders/material.wgsl"
kernel = "material"
inputs = 2

[[parameters]]
name = "base_color"
slot = 0
default = [1.0, 1.0, 1.0, 1.0]
`

const materialTOML = `
kind = "lava"
base_color = [1.0, 0.5, 0.0, 1.0]

[textures]
diffuse = "lava.png"

[properties]
glow = 2.0
`

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func newAssetTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "techniques", "forward_basic.toml"), []byte(techniqueTOML))
	writeFile(t, filepath.Join(root, "shaders", "material.wgsl"), []byte("@fragment fn fs_main() {}"))
	writeFile(t, filepath.Join(root, "materials", "lava.toml"), []byte(materialTOML))

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{255, 0, 0, 128})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "textures"), 0o755))
	f, err := os.Create(filepath.Join(root, "textures", "lava.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return root
}

func TestInitializeIndexesTree(t *testing.T) {
	am := NewAssetManager(newAssetTree(t))
	require.NoError(t, am.Initialize(false))
	defer am.Close()

	assert.False(t, am.Watching())
	assert.Equal(t, []string{"forward_basic"}, am.Assets(metadata.ResourceTypeTechnique))
	assert.Equal(t, []string{"lava"}, am.Assets(metadata.ResourceTypeMaterial))
	assert.Equal(t, []string{"lava.png"}, am.Assets(metadata.ResourceTypeImage))
	assert.Equal(t, []string{"material"}, am.Assets(metadata.ResourceTypeShader))
}

func TestInitializeMissingRoot(t *testing.T) {
	am := NewAssetManager(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, am.Initialize(false))
}

func TestLoadTechniqueReadsShaderSource(t *testing.T) {
	am := NewAssetManager(newAssetTree(t))
	require.NoError(t, am.Initialize(false))

	res, err := am.LoadAsset("forward_basic", metadata.ResourceTypeTechnique, nil)
	require.NoError(t, err)
	assert.Equal(t, "forward_basic", res.Name)
	assert.Equal(t, metadata.ResourceTypeTechnique, res.Type)

	data := res.Data.(*metadata.TechniqueResourceData)
	assert.Equal(t, "material", data.Config.Kernel)
	assert.Equal(t, metadata.DEFAULT_FRAGMENT_ENTRY, data.Config.FragmentEntry)
	assert.Equal(t, "@fragment fn fs_main() {}", string(data.Source))

	require.NoError(t, am.UnloadAsset(res))
	assert.Nil(t, res.Data)
}

func TestLoadMaterialAndTexture(t *testing.T) {
	am := NewAssetManager(newAssetTree(t))
	require.NoError(t, am.Initialize(false))

	res, err := am.LoadAsset("lava", metadata.ResourceTypeMaterial, nil)
	require.NoError(t, err)
	cfg := res.Data.(*metadata.MaterialConfig)
	assert.Equal(t, "lava", cfg.Name)
	assert.Equal(t, metadata.MATERIAL_KIND_LAVA, cfg.Kind)
	assert.Equal(t, [2]float32{1, 1}, cfg.Tiling)
	assert.Equal(t, "lava.png", cfg.Textures["diffuse"])
	assert.Equal(t, float32(2), cfg.Properties["glow"])

	tex, err := am.LoadAsset("lava.png", metadata.ResourceTypeImage, nil)
	require.NoError(t, err)
	img := tex.Data.(image.Image)
	assert.Equal(t, 2, img.Bounds().Dx())
	assert.True(t, metadata.HasTransparency(img))
}

func TestLoadUnknownAsset(t *testing.T) {
	am := NewAssetManager(newAssetTree(t))
	require.NoError(t, am.Initialize(false))

	_, err := am.LoadAsset("missing", metadata.ResourceTypeTechnique, nil)
	assert.Error(t, err)
	_, err = am.LoadAsset("lava", metadata.ResourceTypeNone, nil)
	assert.Error(t, err)
}

func TestLoadAssetCreatedAfterIndex(t *testing.T) {
	root := newAssetTree(t)
	am := NewAssetManager(root)
	require.NoError(t, am.Initialize(false))

	writeFile(t, filepath.Join(root, "materials", "late.toml"), []byte(`kind = "water"`))
	res, err := am.LoadAsset("late", metadata.ResourceTypeMaterial, nil)
	require.NoError(t, err)
	assert.Equal(t, metadata.MATERIAL_KIND_WATER, res.Data.(*metadata.MaterialConfig).Kind)
	assert.Contains(t, am.Assets(metadata.ResourceTypeMaterial), "late")
}

func TestConfigLoaderDecodesIntoTarget(t *testing.T) {
	root := newAssetTree(t)
	writeFile(t, filepath.Join(root, "config", "engine.toml"), []byte("[renderer]\nbackend = \"deferred\"\n"))
	am := NewAssetManager(root)
	require.NoError(t, am.Initialize(false))

	var cfg struct {
		Renderer struct {
			Backend string `toml:"backend"`
		} `toml:"renderer"`
	}
	_, err := am.LoadAsset("engine", metadata.ResourceTypeConfig, &cfg)
	require.NoError(t, err)
	assert.Equal(t, "deferred", cfg.Renderer.Backend)
}

func TestPathAddsDefaultExtension(t *testing.T) {
	am := NewAssetManager("assets")
	assert.Equal(t, filepath.Join("assets", "techniques", "blur.toml"), am.Path("blur", metadata.ResourceTypeTechnique))
	assert.Equal(t, filepath.Join("assets", "shaders", "blur.wgsl"), am.Path("blur", metadata.ResourceTypeShader))
	assert.Equal(t, filepath.Join("assets", "textures", "a.jpg"), am.Path("a.jpg", metadata.ResourceTypeImage))
}

func TestWatchReportsChanges(t *testing.T) {
	root := newAssetTree(t)
	am := NewAssetManager(root)
	require.NoError(t, am.Initialize(true))
	defer am.Close()
	require.True(t, am.Watching())

	changes := make(chan AssetInfo, 16)
	am.OnChange(func(info AssetInfo) {
		changes <- info
	})

	writeFile(t, filepath.Join(root, "shaders", "material.wgsl"), []byte("@fragment fn fs_main() { }"))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case info := <-changes:
			if info.Name == "material" {
				assert.Equal(t, metadata.ResourceTypeShader, info.Type)
				require.NoError(t, am.Close())
				require.NoError(t, am.Close())
				assert.False(t, am.Watching())
				return
			}
		case <-deadline:
			t.Fatal("no change reported for material.wgsl")
		}
	}
}
