package loaders

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

// ConfigLoader decodes a TOML file into the pointer passed as params, or into
// a generic map when params is nil.
type ConfigLoader struct{}

func (cl *ConfigLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	target := params
	if target == nil {
		target = &map[string]interface{}{}
	}
	if err := toml.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("config `%s`: %w", path, err)
	}
	return &metadata.Resource{
		FullPath: path,
		DataSize: uint64(len(data)),
		Data:     target,
	}, nil
}

func (cl *ConfigLoader) Unload(res *metadata.Resource) error {
	if res != nil {
		res.Data = nil
	}
	return nil
}
