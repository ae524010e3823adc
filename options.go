package sqlmap

import (
	"github.com/pkg/errors"

	"github.com/hatlonely/sqlmap/cache"
	"github.com/hatlonely/sqlmap/cfg"
	"github.com/hatlonely/sqlmap/dialect"
	"github.com/hatlonely/sqlmap/executor"
	"github.com/hatlonely/sqlmap/log"
	"github.com/hatlonely/sqlmap/resolver"
	"github.com/hatlonely/sqlmap/shape"
)

type CacheOptions struct {
	// Private 使用独立的缓存而不是进程级默认缓存
	Private bool `cfg:"private"`
}

// Options Mapper 配置，可以通过 LoadOptions 从配置文件加载
type Options struct {
	Dialect  dialect.Options  `cfg:"dialect"`
	Resolver resolver.Options `cfg:"resolver"`
	Cache    CacheOptions     `cfg:"cache"`
	// Schema 声明式 schema 文件，其中未声明的类型仍然通过结构体 tag 解析
	Schema string `cfg:"schema"`
	// Logger 为空时使用 log.Default()
	Logger *log.Options `cfg:"logger"`
	// Executor 数据库连接配置，未配置方言时由其驱动推断方言
	Executor *executor.SQLOptions `cfg:"executor"`
	// Observable 为执行器添加日志、指标和追踪，为空时不添加
	Observable *executor.ObservableOptions `cfg:"observable"`
}

// LoadOptions 从配置文件加载 Options，SQLMAP_ 前缀的环境变量覆盖文件中的值
func LoadOptions(filename string) (*Options, error) {
	var options Options
	if err := cfg.Load(filename, &options, cfg.WithEnvPrefix("SQLMAP_")); err != nil {
		return nil, errors.WithMessage(err, "failed to load sqlmap options")
	}
	return &options, nil
}

func NewMapperWithOptions(options *Options) (*Mapper, error) {
	if options == nil {
		options = &Options{}
	}

	dialectOptions := options.Dialect
	if dialectOptions.Name == "" && dialectOptions.Driver == "" && options.Executor != nil {
		dialectOptions.Driver = options.Executor.Driver
	}
	d, err := dialect.NewDialectWithOptions(&dialectOptions)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create dialect")
	}

	r, err := resolver.NewResolverWithOptions(&options.Resolver)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithResolver(r)}

	if options.Logger != nil {
		logger, err := log.NewLogWithOptions(options.Logger)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create logger")
		}
		opts = append(opts, WithLogger(logger.WithGroup("sqlmap")))
	}

	if options.Schema != "" {
		doc, err := shape.LoadSchema(options.Schema)
		if err != nil {
			return nil, err
		}
		schema, err := shape.NewSchema(doc, shape.NewReflect())
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithIntrospector(schema))
	}

	// 非默认的 schema 和命名策略由 NewMapper 自动使用独立缓存
	if options.Cache.Private {
		opts = append(opts, WithCache(cache.New()))
	}

	return NewMapper(d, opts...), nil
}

// NewExecutorWithOptions 按 Options.Executor 打开数据库，并按 Options.Observable 添加观测
func NewExecutorWithOptions(options *Options) (executor.Executor, error) {
	if options == nil || options.Executor == nil {
		return nil, errors.New("executor options is nil")
	}

	exec, err := executor.NewSQLWithOptions(options.Executor)
	if err != nil {
		return nil, err
	}
	if options.Observable == nil {
		return exec, nil
	}

	var logger log.Logger
	if options.Logger != nil {
		if logger, err = log.NewLogWithOptions(options.Logger); err != nil {
			_ = exec.Close()
			return nil, errors.WithMessage(err, "failed to create logger")
		}
	}
	obs, err := executor.NewObservableWithOptions(exec, logger, options.Observable)
	if err != nil {
		_ = exec.Close()
		return nil, err
	}
	return obs, nil
}
