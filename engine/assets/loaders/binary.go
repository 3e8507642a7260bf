package loaders

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

/** @brief The first word of every SPIR-V module. */
const SPIRV_MAGIC uint32 = 0x07230203

// BinaryLoader reads precompiled SPIR-V into 32-bit words.
type BinaryLoader struct{}

func (bl *BinaryLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	code, err := BytesToBytecode(buf)
	if err != nil {
		return nil, fmt.Errorf("`%s`: %w", path, err)
	}

	var name string
	if p, ok := params.(map[string]string); ok {
		name = p["name"]
	}
	return &metadata.Resource{
		Name:     name,
		FullPath: path,
		DataSize: uint64(len(buf)),
		Data:     code,
	}, nil
}

func (bl *BinaryLoader) Unload(res *metadata.Resource) error {
	if res != nil {
		res.Data = nil
	}
	return nil
}

// BytesToBytecode converts a little-endian SPIR-V blob into words.
func BytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) < 4 || len(b)%4 != 0 {
		return nil, fmt.Errorf("spir-v size %d is not a positive multiple of 4", len(b))
	}
	byteCode := make([]uint32, len(b)/4)
	for i := range byteCode {
		byteCode[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	if byteCode[0] != SPIRV_MAGIC {
		return nil, fmt.Errorf("bad spir-v magic 0x%08x", byteCode[0])
	}
	return byteCode, nil
}
