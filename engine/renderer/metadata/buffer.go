package metadata

import (
	"fmt"
	"strings"
)

/** @brief Pixel formats a color buffer can be created with. */
type PixelFormat int

const (
	PIXEL_FORMAT_RGBA8 PixelFormat = iota
	PIXEL_FORMAT_RGBA8_SRGB
	PIXEL_FORMAT_BGRA8
	PIXEL_FORMAT_RGBA16F
)

var pixelFormatNames = map[PixelFormat]string{
	PIXEL_FORMAT_RGBA8:      "rgba8",
	PIXEL_FORMAT_RGBA8_SRGB: "rgba8_srgb",
	PIXEL_FORMAT_BGRA8:      "bgra8",
	PIXEL_FORMAT_RGBA16F:    "rgba16f",
}

func (f PixelFormat) String() string {
	if n, ok := pixelFormatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// BytesPerPixel returns the size of a single texel.
func (f PixelFormat) BytesPerPixel() uint32 {
	if f == PIXEL_FORMAT_RGBA16F {
		return 8
	}
	return 4
}

func (f PixelFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *PixelFormat) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for k, v := range pixelFormatNames {
		if v == name {
			*f = k
			return nil
		}
	}
	return fmt.Errorf("unknown pixel format `%s`", string(text))
}

/**
 * @brief Describes a color buffer: the dimensions, pixel format and
 * multisample count it is created with.
 */
type BufferDesc struct {
	/** @brief The width in pixels. */
	Width uint32
	/** @brief The height in pixels. */
	Height uint32
	/** @brief The pixel format. */
	Format PixelFormat
	/** @brief The number of samples per pixel. 1 means no multisampling. */
	Samples uint32
	/** @brief A debug name. */
	Name string
}

func (d BufferDesc) String() string {
	return fmt.Sprintf("%s %dx%d %s x%d", d.Name, d.Width, d.Height, d.Format, d.Samples)
}

// SameSize reports whether both descriptions have identical dimensions.
func (d BufferDesc) SameSize(width, height uint32) bool {
	return d.Width == width && d.Height == height
}

/** @brief Represents supported texture filtering modes. */
type TextureFilter int

const (
	/** @brief Nearest-neighbor filtering. */
	TextureFilterModeNearest TextureFilter = 0x0
	/** @brief Linear (i.e. bilinear) filtering.*/
	TextureFilterModeLinear TextureFilter = 0x1
)

type TextureRepeat int

const (
	TextureRepeatRepeat         TextureRepeat = 0x1
	TextureRepeatMirroredRepeat TextureRepeat = 0x2
	TextureRepeatClampToEdge    TextureRepeat = 0x3
)

/** @brief A viewport rectangle in pixels. A zero value means the whole output. */
type Viewport struct {
	X, Y          uint32
	Width, Height uint32
}

func (v Viewport) IsZero() bool {
	return v.Width == 0 || v.Height == 0
}
