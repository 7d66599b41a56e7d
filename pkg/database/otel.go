package database

import (
	"context"
	stderrors "errors"
	"regexp"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var (
	// 数据库相关指标，未初始化时只做追踪
	dbQueriesTotal  metric.Int64Counter
	dbQueryDuration metric.Float64Histogram
)

func InitDatabaseMetrics(meter metric.Meter) error {
	var err error

	dbQueriesTotal, err = meter.Int64Counter(
		"db.queries.total",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return err
	}

	dbQueryDuration, err = meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	return err
}

const (
	spanKey  = "otel:span"
	startKey = "otel:start_time"
)

// 引号内的字面量统一打码，钱包地址、设备指纹、证据 key 都不进 span
var quotedLiteral = regexp.MustCompile(`'[^']*'`)

// OTELPlugin GORM OpenTelemetry 插件
type OTELPlugin struct {
	tracer trace.Tracer
	config PluginConfig
}

type PluginConfig struct {
	ServiceName   string
	EnableMetrics bool
	MaxSQLLength  int
}

func DefaultPluginConfig() PluginConfig {
	return PluginConfig{
		ServiceName:   "aurin",
		EnableMetrics: true,
		MaxSQLLength:  500,
	}
}

func NewOTELPlugin(config PluginConfig) *OTELPlugin {
	if config.ServiceName == "" {
		config.ServiceName = "aurin"
	}
	if config.MaxSQLLength <= 0 {
		config.MaxSQLLength = 500
	}

	return &OTELPlugin{
		tracer: otel.Tracer(config.ServiceName + ".gorm"),
		config: config,
	}
}

func (p *OTELPlugin) Name() string {
	return "otel_plugin"
}

// Initialize 按操作类型注册回调，操作名在注册时就确定
func (p *OTELPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	hooks := []struct {
		op       string
		register func(before, after func(*gorm.DB)) error
	}{
		{"select", func(b, a func(*gorm.DB)) error {
			if err := cb.Query().Before("gorm:query").Register("otel:before_query", b); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register("otel:after_query", a)
		}},
		{"insert", func(b, a func(*gorm.DB)) error {
			if err := cb.Create().Before("gorm:create").Register("otel:before_create", b); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register("otel:after_create", a)
		}},
		{"update", func(b, a func(*gorm.DB)) error {
			if err := cb.Update().Before("gorm:update").Register("otel:before_update", b); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register("otel:after_update", a)
		}},
		{"delete", func(b, a func(*gorm.DB)) error {
			if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", b); err != nil {
				return err
			}
			return cb.Delete().After("gorm:delete").Register("otel:after_delete", a)
		}},
		{"row", func(b, a func(*gorm.DB)) error {
			if err := cb.Row().Before("gorm:row").Register("otel:before_row", b); err != nil {
				return err
			}
			return cb.Row().After("gorm:row").Register("otel:after_row", a)
		}},
		{"raw", func(b, a func(*gorm.DB)) error {
			if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", b); err != nil {
				return err
			}
			return cb.Raw().After("gorm:raw").Register("otel:after_raw", a)
		}},
	}

	for _, h := range hooks {
		if err := h.register(p.before(h.op), p.after(h.op)); err != nil {
			return err
		}
	}
	return nil
}

func (p *OTELPlugin) before(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx, span := p.tracer.Start(db.Statement.Context, "db."+op,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemPostgreSQL,
				semconv.DBOperation(op),
			),
		)
		db.InstanceSet(startKey, time.Now())
		db.InstanceSet(spanKey, span)
		db.Statement.Context = ctx
	}
}

func (p *OTELPlugin) after(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(spanKey)
		if !ok {
			return
		}
		span, ok := v.(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		var elapsed float64
		if s, ok := db.InstanceGet(startKey); ok {
			if start, ok := s.(time.Time); ok {
				elapsed = time.Since(start).Seconds()
			}
		}

		table := db.Statement.Table
		span.SetAttributes(
			semconv.DBSQLTable(table),
			semconv.DBStatement(p.statement(db)),
			attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
		)

		status := outcome(db.Error)
		switch status {
		case "error":
			span.SetStatus(codes.Error, db.Error.Error())
			span.RecordError(db.Error)
		default:
			// 未找到和唯一索引冲突是幂等路径上的正常结果
			span.SetAttributes(attribute.String("db.outcome", status))
			span.SetStatus(codes.Ok, "")
		}

		if p.config.EnableMetrics {
			recordMetrics(db.Statement.Context, op, table, status, elapsed)
		}
	}
}

func (p *OTELPlugin) statement(db *gorm.DB) string {
	sql := quotedLiteral.ReplaceAllString(db.Statement.SQL.String(), "'***'")
	if len(sql) > p.config.MaxSQLLength {
		sql = sql[:p.config.MaxSQLLength] + "..."
	}
	return sql
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return "not_found"
	case stderrors.Is(err, gorm.ErrDuplicatedKey):
		return "duplicate"
	default:
		return "error"
	}
}

func recordMetrics(ctx context.Context, op, table, status string, elapsed float64) {
	if dbQueriesTotal == nil || dbQueryDuration == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("db.operation", op),
		attribute.String("db.table", table),
		attribute.String("db.status", status),
	)
	dbQueriesTotal.Add(ctx, 1, attrs)
	dbQueryDuration.Record(ctx, elapsed, attrs)
}

// WithDefaultOTELPlugin 使用默认配置添加 OpenTelemetry 插件
func WithDefaultOTELPlugin(db *gorm.DB, serviceName string) error {
	config := DefaultPluginConfig()
	config.ServiceName = serviceName
	return db.Use(NewOTELPlugin(config))
}
