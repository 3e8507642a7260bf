package renderer

// Frame is the per-frame data handed to views and passes.
type Frame struct {
	Number    uint64
	DeltaTime float64
	// Time is seconds since the engine started.
	Time float64
	// FPS is the smoothed frame rate, shown by the debug overlay.
	FPS float64
	// PerEye is set while a VR service is attached and the frame is drawn
	// once per eye; Eye is then the eye being drawn.
	PerEye bool
	Eye    int
}

// TechniqueLoader resolves techniques by name. The shader system implements
// it; tests use a map backed loader.
type TechniqueLoader interface {
	Technique(name string) (Technique, error)
}

// TextureSource resolves textures by name.
type TextureSource interface {
	Texture(name string) (ColorBuffer, error)
}
