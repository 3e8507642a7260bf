package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(7, 0, 5))
	assert.Equal(t, float32(0), Clamp(float32(-1), 0, 1))
	assert.Equal(t, 0.25, Saturate(0.25))
}

func TestHalveDimension(t *testing.T) {
	assert.Equal(t, uint32(960), HalveDimension(uint32(1920)))
	assert.Equal(t, uint32(1), HalveDimension(uint32(1)))
	assert.Equal(t, 1, HalveDimension(0))
}

func TestHemisphereKernelIsDeterministic(t *testing.T) {
	a := NewRandom(42).HemisphereKernel(16, 0.5)
	b := NewRandom(42).HemisphereKernel(16, 0.5)
	assert.Equal(t, a, b)
	for _, s := range a {
		assert.GreaterOrEqual(t, s.Z, float32(0))
		assert.LessOrEqual(t, s.Length(), float32(0.5)+1e-5)
	}
}

func TestMat4TransformPoint(t *testing.T) {
	m := NewMat4Scale(NewVec3(2, 2, 1)).Mul(NewMat4Translation(NewVec3(1, -1, 0)))
	p := m.TransformPoint(NewVec2(1, 1))
	assert.True(t, p.Compare(NewVec2(3, 1), 1e-5), "got %v", p)
}
