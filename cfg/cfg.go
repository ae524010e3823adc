package cfg

import (
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

type loadOptions struct {
	envPrefix string
	environ   func() []string
}

type LoadOption func(*loadOptions)

// WithEnvPrefix 用带前缀的环境变量覆盖文件配置，
// 如前缀 SQLMAP_ 时 SQLMAP_RESOLVER_TABLENAMING=plural 覆盖 resolver.tableNaming
func WithEnvPrefix(prefix string) LoadOption {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// WithEnviron 替换环境变量来源，主要用于测试
func WithEnviron(environ func() []string) LoadOption {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// Load 读取配置文件并填充 object
//
// 处理顺序：文件解码 < 环境变量覆盖 < def 默认值（只填零值）< validate 校验
func Load(filename string, object any, opts ...LoadOption) error {
	if filename == "" {
		return errors.New("filename cannot be empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", filename)
	}

	decoder, err := DecoderFor(filename)
	if err != nil {
		return err
	}

	values, err := decoder(data)
	if err != nil {
		return errors.WithMessagef(err, "failed to decode config file %s", filename)
	}

	return LoadMap(values, object, opts...)
}

// LoadMap 用已经解码的数据填充 object，流程同 Load
func LoadMap(values map[string]any, object any, opts ...LoadOption) error {
	options := &loadOptions{environ: os.Environ}
	for _, opt := range opts {
		opt(options)
	}

	if values == nil {
		values = map[string]any{}
	}
	if options.envPrefix != "" {
		overlayEnv(values, options.envPrefix, options.environ())
	}

	if err := ConvertTo(values, object); err != nil {
		return errors.WithMessage(err, "failed to convert config")
	}
	if err := SetDefaults(object); err != nil {
		return errors.WithMessage(err, "failed to set defaults")
	}
	if err := Validate(object); err != nil {
		return errors.WithMessage(err, "invalid config")
	}
	return nil
}

func overlayEnv(values map[string]any, prefix string, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		path := strings.Split(strings.ToLower(strings.TrimPrefix(key, prefix)), "_")
		if len(path) == 0 || path[0] == "" {
			continue
		}
		parent := nestedMap(values, path[:len(path)-1])
		last := path[len(path)-1]
		for k := range parent {
			if strings.EqualFold(k, last) {
				delete(parent, k)
			}
		}
		parent[last] = value
	}
}

var validate = validator.New()

// Validate 使用 validator 校验结构体，非结构体或 nil 指针直接通过
func Validate(object any) error {
	rv := reflect.ValueOf(object)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil
	}
	return validate.Struct(rv.Interface())
}
