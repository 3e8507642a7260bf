package metadata

import (
	"image"
	"image/color"
)

const (
	/** @brief The default texture name. */
	DEFAULT_TEXTURE_NAME string = "default"
	/** @brief The default diffuse texture name. */
	DEFAULT_DIFFUSE_TEXTURE_NAME string = "default_DIFF"
	/** @brief The size of the generated default texture. */
	DEFAULT_TEXTURE_DIMENSION int = 16
)

// DefaultTextureImage creates the blue/white checkerboard used when a texture
// fails to load.
func DefaultTextureImage() *image.RGBA {
	n := DEFAULT_TEXTURE_DIMENSION
	img := image.NewRGBA(image.Rect(0, 0, n, n))
	white := color.RGBA{255, 255, 255, 255}
	blue := color.RGBA{0, 0, 255, 255}
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			if (row+col)%2 == 0 {
				img.SetRGBA(col, row, blue)
			} else {
				img.SetRGBA(col, row, white)
			}
		}
	}
	return img
}

// HasTransparency reports whether any pixel of img is not fully opaque.
func HasTransparency(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}
