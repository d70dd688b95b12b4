package catalog

import (
	"fmt"

	ggufparser "github.com/gpustack/gguf-parser-go"

	"llmed/pkg/types"
)

// Inspect reads the GGUF header of a weights file.
func Inspect(path string) (types.ModelInfo, error) {
	f, err := ggufparser.ParseGGUFFile(path)
	if err != nil {
		return types.ModelInfo{}, fmt.Errorf("parse gguf %s: %w", path, err)
	}
	meta := f.Metadata()
	info := types.ModelInfo{
		Name:         meta.Name,
		Architecture: meta.Architecture,
		Parameters:   meta.Parameters.String(),
		Quantization: meta.FileType.String(),
		Size:         meta.Size.String(),
	}
	kvs := f.Header.MetadataKV
	intKV := func(key string) int {
		found, n := kvs.Index([]string{key})
		if n == 0 {
			return 0
		}
		kv := found[key]
		switch kv.ValueType {
		case ggufparser.GGUFMetadataValueTypeUint32:
			return int(kv.ValueUint32())
		case ggufparser.GGUFMetadataValueTypeUint64:
			return int(kv.ValueUint64())
		case ggufparser.GGUFMetadataValueTypeInt32:
			return int(kv.ValueInt32())
		case ggufparser.GGUFMetadataValueTypeInt64:
			return int(kv.ValueInt64())
		}
		return 0
	}
	if info.Architecture != "" {
		info.EmbeddingLength = intKV(info.Architecture + ".embedding_length")
		info.ContextLength = intKV(info.Architecture + ".context_length")
	}
	return info, nil
}
