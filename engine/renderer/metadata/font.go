package metadata

import (
	"image"

	"github.com/fzipp/bmfont"
)

/** @brief Names a bitmap font under assets/fonts. */
type BitmapFontConfig struct {
	/** @brief The font name the overlay refers to. */
	Name string `toml:"name"`
	/** @brief The .fnt file name without extension. */
	ResourceName string `toml:"resource"`
}

/**
 * @brief The data a bitmap font resource decodes to: the parsed
 * descriptor and one decoded image per page.
 */
type BitmapFontResourceData struct {
	Descriptor *bmfont.Descriptor
	Pages      map[int]image.Image
}

// Page returns the page image with the given id, nil if it was not loaded.
func (d *BitmapFontResourceData) Page(id int) image.Image {
	if d == nil {
		return nil
	}
	return d.Pages[id]
}
