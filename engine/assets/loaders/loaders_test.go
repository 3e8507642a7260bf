package loaders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

func TestBytesToBytecode(t *testing.T) {
	code, err := BytesToBytecode([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []uint32{SPIRV_MAGIC, 0x00010000}, code)

	_, err = BytesToBytecode([]byte{1, 2, 3})
	assert.Error(t, err)
	_, err = BytesToBytecode([]byte{1, 2, 3, 4})
	assert.Error(t, err)
}

func TestParseTechniqueNormalizes(t *testing.T) {
	cfg, err := ParseTechnique([]byte(`
name = "tonemap"
blend = "none"
inputs = 1

[[parameters]]
name = "settings"
slot = 0
`))
	require.NoError(t, err)
	assert.Equal(t, "tonemap", cfg.Kernel)
	assert.Equal(t, metadata.DEFAULT_VERTEX_ENTRY, cfg.VertexEntry)

	_, err = ParseTechnique([]byte(`
name = "broken"

[[parameters]]
name = "a"
slot = 9
`))
	assert.Error(t, err)

	_, err = ParseTechnique([]byte(`name = `))
	assert.Error(t, err)
}
