package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hatlonely/sqlmap/cfg"
	"github.com/hatlonely/sqlmap/log"
)

type ObservableOptions struct {
	// EnableMetrics 是否启用指标收集，指标需要通过 Metrics().MustRegister 注册，未配置时启用
	EnableMetrics *bool `cfg:"enableMetrics" def:"true"`

	// EnableLogging 是否启用日志记录，未配置时启用
	EnableLogging *bool `cfg:"enableLogging" def:"true"`

	// EnableTracing 是否启用分布式追踪
	EnableTracing bool `cfg:"enableTracing" def:"false"`

	// Name 组件名称标识，用作指标名前缀、日志 component 字段和 span 的 component 属性
	Name string `cfg:"name" def:"sqlmap"`
}

// ObservableMetrics 执行器的 prometheus 指标
type ObservableMetrics struct {
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	activeOperations  *prometheus.GaugeVec
}

func NewObservableMetrics(name string) *ObservableMetrics {
	return &ObservableMetrics{
		operationCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_executions_total",
				Help: "Total number of executed statements",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_execution_duration_seconds",
				Help:    "Duration of statement executions in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"operation"},
		),
		activeOperations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: name + "_active_executions",
				Help: "Number of statements being executed",
			},
			[]string{"operation"},
		),
	}
}

func (m *ObservableMetrics) MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(m.operationCounter, m.operationDuration, m.activeOperations)
}

// Observable 装饰器，为任意 Executor 添加日志、指标和追踪
type Observable struct {
	executor Executor

	logger        log.Logger
	metrics       *ObservableMetrics
	tracer        trace.Tracer
	name          string
	enableMetrics bool
	enableLogging bool
	enableTracing bool
}

func NewObservableWithOptions(executor Executor, logger log.Logger, options *ObservableOptions) (*Observable, error) {
	if executor == nil {
		return nil, errors.New("executor is nil")
	}
	if options == nil {
		options = &ObservableOptions{}
	}
	o := *options
	if err := cfg.SetDefaults(&o); err != nil {
		return nil, errors.WithMessage(err, "failed to set observable defaults")
	}

	obs := &Observable{
		executor:      executor,
		name:          o.Name,
		enableMetrics: *o.EnableMetrics,
		enableLogging: *o.EnableLogging,
		enableTracing: o.EnableTracing,
	}

	if obs.enableLogging {
		if logger == nil {
			logger = log.Default()
		}
		obs.logger = logger.WithGroup("executor").With("component", o.Name)
	}

	if obs.enableMetrics {
		obs.metrics = NewObservableMetrics(o.Name)
	}

	if obs.enableTracing {
		obs.tracer = otel.Tracer(fmt.Sprintf("executor.%s", o.Name))
	}

	return obs, nil
}

// Metrics 返回指标，未启用时为 nil
func (obs *Observable) Metrics() *ObservableMetrics {
	return obs.metrics
}

func (obs *Observable) observe(ctx context.Context, operation string, query string, fn func(context.Context) error) error {
	start := time.Now()

	var span trace.Span
	if obs.enableTracing && obs.tracer != nil {
		ctx, span = obs.tracer.Start(ctx, fmt.Sprintf("executor.%s", operation),
			trace.WithAttributes(
				attribute.String("component", obs.name),
				attribute.String("operation", operation),
				attribute.String("db.statement", query),
			),
		)
		defer span.End()
	}

	if obs.enableMetrics && obs.metrics != nil {
		obs.metrics.activeOperations.WithLabelValues(operation).Inc()
		defer obs.metrics.activeOperations.WithLabelValues(operation).Dec()
	}

	err := fn(ctx)
	duration := time.Since(start)

	if obs.enableTracing && span != nil {
		span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if obs.enableMetrics && obs.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		obs.metrics.operationCounter.WithLabelValues(operation, status).Inc()
		obs.metrics.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}

	if obs.enableLogging && obs.logger != nil {
		if err != nil {
			obs.logger.ErrorContext(ctx, "execute failed", "operation", operation, "sql", query, "duration", duration, "error", err)
		} else {
			obs.logger.DebugContext(ctx, "execute", "operation", operation, "sql", query, "duration", duration)
		}
	}

	return err
}

func (obs *Observable) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	err := obs.observe(ctx, "execute", query, func(ctx context.Context) error {
		var err error
		result, err = obs.executor.Execute(ctx, query, args...)
		return err
	})
	return result, err
}

func (obs *Observable) ExecuteScalar(ctx context.Context, query string, args ...any) (any, error) {
	var value any
	err := obs.observe(ctx, "executeScalar", query, func(ctx context.Context) error {
		var err error
		value, err = obs.executor.ExecuteScalar(ctx, query, args...)
		return err
	})
	return value, err
}
