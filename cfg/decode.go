package cfg

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Decoder 把原始配置数据解码为通用的 map 结构
type Decoder func(data []byte) (map[string]any, error)

var decoders = map[string]Decoder{
	".yaml": DecodeYaml,
	".yml":  DecodeYaml,
	".toml": DecodeToml,
	".json": DecodeJson,
	".ini":  DecodeIni,
}

// DecoderFor 根据文件扩展名选择解码器
func DecoderFor(filename string) (Decoder, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	decoder, ok := decoders[ext]
	if !ok {
		return nil, errors.Errorf("unsupported config format %q", ext)
	}
	return decoder, nil
}

func DecodeYaml(data []byte) (map[string]any, error) {
	result := map[string]any{}
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}
	return result, nil
}

func DecodeToml(data []byte) (map[string]any, error) {
	result := map[string]any{}
	if _, err := toml.Decode(string(data), &result); err != nil {
		return nil, fmt.Errorf("failed to decode TOML: %w", err)
	}
	return result, nil
}

func DecodeJson(data []byte) (map[string]any, error) {
	result := map[string]any{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return result, nil
}

// DecodeIni 解码 INI，section 作为一级 key，默认 section 的键放在根上
func DecodeIni(data []byte) (map[string]any, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:         true,
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode INI: %w", err)
	}

	result := map[string]any{}
	for _, section := range file.Sections() {
		target := result
		if section.Name() != ini.DefaultSection {
			target = nestedMap(result, strings.Split(section.Name(), "."))
		}
		for _, key := range section.Keys() {
			target[key.Name()] = parseIniValue(key.String())
		}
	}
	return result, nil
}

func parseIniValue(value string) any {
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	return value
}

// nestedMap 沿路径查找或创建子 map，key 大小写不敏感
func nestedMap(root map[string]any, path []string) map[string]any {
	current := root
	for _, key := range path {
		var next map[string]any
		for k, v := range current {
			if strings.EqualFold(k, key) {
				if m, ok := v.(map[string]any); ok {
					next = m
				}
				break
			}
		}
		if next == nil {
			next = map[string]any{}
			current[key] = next
		}
		current = next
	}
	return current
}
