package math

import (
	"golang.org/x/exp/rand"
)

// Random is a seeded generator. Deterministic seeds keep sample kernels
// identical between runs and devices.
type Random struct {
	rng *rand.Rand
}

func NewRandom(seed uint64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

// Float returns a value in [0, 1).
func (r *Random) Float() float32 {
	return r.rng.Float32()
}

func (r *Random) FloatInRange(min, max float32) float32 {
	return min + r.Float()*(max-min)
}

func (r *Random) IntInRange(min, max int32) int32 {
	return min + r.rng.Int31n(max-min+1)
}

/**
 * @brief Builds a hemisphere sample kernel oriented along +z. Samples are
 * scaled so that they cluster near the origin, which is what screen-space
 * occlusion expects.
 * @param count The number of samples.
 * @param radius The hemisphere radius.
 */
func (r *Random) HemisphereKernel(count int, radius float32) []Vec3 {
	kernel := make([]Vec3, count)
	for i := 0; i < count; i++ {
		s := NewVec3(
			r.FloatInRange(-1, 1),
			r.FloatInRange(-1, 1),
			r.Float(),
		).Normalized()
		s = s.Scale(r.Float())

		scale := float32(i) / float32(count)
		scale = Lerp(float32(0.1), 1.0, scale*scale)
		kernel[i] = s.Scale(scale * radius)
	}
	return kernel
}
