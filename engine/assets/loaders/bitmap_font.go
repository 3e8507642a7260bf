package loaders

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/fzipp/bmfont"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// BitmapFontLoader reads AngelCode .fnt descriptors and their page images.
type BitmapFontLoader struct{}

func (fl *BitmapFontLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	font, err := bmfont.Load(path)
	if err != nil {
		return nil, err
	}
	desc := font.Descriptor
	if len(desc.Pages) == 0 {
		return nil, fmt.Errorf("bitmap font `%s` has no pages", path)
	}

	out := &metadata.BitmapFontResourceData{
		Descriptor: desc,
		Pages:      make(map[int]image.Image, len(desc.Pages)),
	}
	size := uint64(0)
	dir := filepath.Dir(path)
	for id, p := range desc.Pages {
		img, n, err := readPage(filepath.Join(dir, p.File))
		if err != nil {
			core.LogWarn("bitmap font `%s`: page %d: %s", desc.Info.Face, id, err.Error())
			continue
		}
		out.Pages[id] = img
		size += n
	}
	if len(out.Pages) == 0 {
		return nil, fmt.Errorf("bitmap font `%s`: no page could be loaded", path)
	}

	return &metadata.Resource{
		Name:     desc.Info.Face,
		FullPath: path,
		DataSize: size,
		Data:     out,
	}, nil
}

func (fl *BitmapFontLoader) Unload(res *metadata.Resource) error {
	if res == nil || res.Data == nil {
		return nil
	}
	if data, ok := res.Data.(*metadata.BitmapFontResourceData); ok {
		data.Pages = nil
		data.Descriptor = nil
	}
	res.Data = nil
	res.DataSize = 0
	res.FullPath = ""
	return nil
}

func readPage(path string) (image.Image, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, 0, err
	}
	b := img.Bounds()
	return img, uint64(b.Dx() * b.Dy() * 4), nil
}
