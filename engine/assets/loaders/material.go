package loaders

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

type MaterialLoader struct{}

func (ml *MaterialLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mCfg := &metadata.MaterialConfig{}
	if err := toml.Unmarshal(data, mCfg); err != nil {
		return nil, err
	}
	if mCfg.Name == "" {
		mCfg.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	mCfg.Normalize()

	return &metadata.Resource{
		Name:     mCfg.Name,
		FullPath: path,
		DataSize: uint64(len(data)),
		Data:     mCfg,
	}, nil
}

func (ml *MaterialLoader) Unload(res *metadata.Resource) error {
	if res != nil {
		res.Data = nil
	}
	return nil
}
