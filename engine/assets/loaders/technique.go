package loaders

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// TechniqueLoader reads a technique descriptor and the shader source it names.
type TechniqueLoader struct {
	ResourcePath string
}

func (tl *TechniqueLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseTechnique(data)
	if err != nil {
		return nil, fmt.Errorf("technique `%s`: %w", path, err)
	}

	out := &metadata.TechniqueResourceData{Config: cfg}
	size := uint64(len(data))
	if cfg.Shader != "" {
		src, err := os.ReadFile(filepath.Join(tl.ResourcePath, cfg.Shader))
		if err != nil {
			return nil, fmt.Errorf("technique `%s` shader: %w", cfg.Name, err)
		}
		out.Source = src
		size += uint64(len(src))
	}

	return &metadata.Resource{
		Name:     cfg.Name,
		FullPath: path,
		DataSize: size,
		Data:     out,
	}, nil
}

func (tl *TechniqueLoader) Unload(res *metadata.Resource) error {
	if res != nil {
		res.Data = nil
		res.DataSize = 0
	}
	return nil
}

// ParseTechnique decodes and normalizes a technique descriptor.
func ParseTechnique(data []byte) (*metadata.TechniqueConfig, error) {
	cfg := &metadata.TechniqueConfig{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}
