package redis

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	// Redis 相关指标，未初始化时只做追踪
	redisCommandsTotal   metric.Int64Counter
	redisCommandDuration metric.Float64Histogram
)

func InitRedisMetrics(meter metric.Meter) error {
	var err error

	redisCommandsTotal, err = meter.Int64Counter(
		"redis.commands.total",
		metric.WithDescription("Total number of Redis commands"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return err
	}

	redisCommandDuration, err = meter.Float64Histogram(
		"redis.command.duration",
		metric.WithDescription("Redis command duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0),
	)
	return err
}

// TracingHook Redis 追踪 Hook
// 键只记录前缀之后的族名（liveproof:nonce、ratelimit、lock），nonce 和用户标识不进 span
type TracingHook struct {
	tracer trace.Tracer
	prefix string
	attrs  []attribute.KeyValue
}

func NewTracingHook(serviceName, keyPrefix string, db int) *TracingHook {
	return &TracingHook{
		tracer: otel.Tracer(serviceName + ".redis"),
		prefix: keyPrefix,
		attrs: []attribute.KeyValue{
			semconv.DBSystemRedis,
			semconv.DBRedisDBIndex(db),
		},
	}
}

func (th *TracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (th *TracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		name := cmd.Name()
		family := th.keyFamily(cmd)

		ctx, span := th.tracer.Start(ctx, "redis."+name,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(th.attrs...),
			trace.WithAttributes(
				semconv.DBOperation(name),
				attribute.String("redis.key_family", family),
			),
		)
		defer span.End()

		start := time.Now()
		err := next(ctx, cmd)
		status := finish(span, err)

		record(ctx, name, family, status, time.Since(start))
		return err
	}
}

func (th *TracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		names := make([]string, 0, len(cmds))
		for _, cmd := range cmds {
			names = append(names, cmd.Name())
		}

		ctx, span := th.tracer.Start(ctx, "redis.pipeline",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(th.attrs...),
			trace.WithAttributes(
				attribute.Int("redis.pipeline.count", len(cmds)),
				attribute.String("redis.pipeline.commands", strings.Join(names, ";")),
			),
		)
		defer span.End()

		start := time.Now()
		err := next(ctx, cmds)
		status := finish(span, err)

		record(ctx, "pipeline", "", status, time.Since(start))
		return err
	}
}

// keyFamily EVAL/EVALSHA 的第一个键在 numkeys 之后，其余命令是第一个参数
func (th *TracingHook) keyFamily(cmd redis.Cmder) string {
	args := cmd.Args()
	idx := 1
	switch cmd.Name() {
	case "eval", "evalsha", "eval_ro", "evalsha_ro":
		idx = 3
	}
	if len(args) <= idx {
		return ""
	}
	key, ok := args[idx].(string)
	if !ok {
		return ""
	}

	key = strings.TrimPrefix(key, th.prefix+":")
	parts := strings.Split(key, ":")
	switch {
	case len(parts) >= 2 && parts[0] == "liveproof":
		return parts[0] + ":" + parts[1]
	default:
		return parts[0]
	}
}

func finish(span trace.Span, err error) string {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
		return "success"
	case stderrors.Is(err, redis.Nil):
		span.SetStatus(codes.Ok, "")
		return "not_found"
	default:
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return "error"
	}
}

func record(ctx context.Context, command, family, status string, d time.Duration) {
	if redisCommandsTotal == nil || redisCommandDuration == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("redis.command", command),
		attribute.String("redis.key_family", family),
		attribute.String("redis.status", status),
	)
	redisCommandsTotal.Add(ctx, 1, attrs)
	redisCommandDuration.Record(ctx, d.Seconds(), attrs)
}
