package metadata

import (
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTechniqueConfigDecode(t *testing.T) {
	doc := `
name = "bloom_composite"
shader = "shaders/composite.wgsl"
blend = "additive"
inputs = 2
filter = "nearest"

[[parameters]]
name = "intensity"
slot = 0
default = [1.0, 0.0, 0.0, 0.0]
`
	var cfg TechniqueConfig
	require.NoError(t, toml.Unmarshal([]byte(doc), &cfg))
	require.NoError(t, cfg.Normalize())

	assert.Equal(t, BLEND_MODE_ADDITIVE, cfg.Blend)
	assert.Equal(t, TextureFilterModeNearest, cfg.FilterMode())
	assert.Equal(t, DEFAULT_VERTEX_ENTRY, cfg.VertexEntry)
	assert.Equal(t, "bloom_composite", cfg.Kernel)
	p, ok := cfg.Parameter("intensity")
	require.True(t, ok)
	assert.Equal(t, [4]float32{1, 0, 0, 0}, p.Default)
	_, ok = cfg.Parameter("missing")
	assert.False(t, ok)
}

func TestTechniqueConfigValidation(t *testing.T) {
	assert.Error(t, (&TechniqueConfig{}).Normalize())
	assert.Error(t, (&TechniqueConfig{Name: "a", Inputs: 5}).Normalize())
	assert.Error(t, (&TechniqueConfig{Name: "a", Parameters: []ParameterConfig{{Name: "x", Slot: MAX_TECHNIQUE_PARAMETERS}}}).Normalize())
	assert.Error(t, (&TechniqueConfig{Name: "a", Parameters: []ParameterConfig{{Name: "x"}, {Name: "y"}}}).Normalize())

	var b BlendMode
	assert.Error(t, b.UnmarshalText([]byte("screen")))
}

func TestParseBackendKind(t *testing.T) {
	for in, want := range map[string]BackendKind{
		"forward":        BACKEND_KIND_FORWARD,
		"Deferred":       BACKEND_KIND_DEFERRED,
		"lpp":            BACKEND_KIND_LIGHT_PRE_PASS,
		"light_pre_pass": BACKEND_KIND_LIGHT_PRE_PASS,
		" stereo ":       BACKEND_KIND_STEREO,
	} {
		got, err := ParseBackendKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseBackendKind("raytraced")
	assert.Error(t, err)
}

func TestPixelFormatText(t *testing.T) {
	var f PixelFormat
	require.NoError(t, f.UnmarshalText([]byte("RGBA16F")))
	assert.Equal(t, PIXEL_FORMAT_RGBA16F, f)
	assert.Equal(t, uint32(8), f.BytesPerPixel())
	assert.Error(t, f.UnmarshalText([]byte("r11g11b10")))
}

func TestPassConfigAccessors(t *testing.T) {
	doc := `
type = "fog"
priority = 40
[params]
density = 2
start = 0.25
mode = "exp"
color = [0.1, 0.2, 0.3]
debug = true
`
	var cfg PassConfig
	require.NoError(t, toml.Unmarshal([]byte(doc), &cfg))
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.IsEnabled())
	assert.Equal(t, "fog", cfg.InstanceName())
	assert.Equal(t, float32(2), cfg.Float("density", 0))
	assert.Equal(t, float32(0.25), cfg.Float("start", 0))
	assert.Equal(t, 2, cfg.Int("density", 0))
	assert.Equal(t, "exp", cfg.String("mode", ""))
	assert.True(t, cfg.Bool("debug", false))
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1}, cfg.Color("color", [4]float32{0, 0, 0, 1}))
	assert.Equal(t, float32(7), cfg.Float("missing", 7))

	_, ok := AsColor([]interface{}{1.0, "red", 0.0}, [4]float32{})
	assert.False(t, ok)
	assert.Error(t, PassConfig{}.Validate())
}

func TestMaterialConfigNormalize(t *testing.T) {
	cfg := MaterialConfig{Name: "plain"}
	cfg.Normalize()
	assert.Equal(t, MATERIAL_KIND_BASIC, cfg.Kind)
	assert.Equal(t, [4]float32{1, 1, 1, 1}, cfg.BaseColor)
	assert.Equal(t, [2]float32{1, 1}, cfg.Tiling)
}
