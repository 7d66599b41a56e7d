package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics OpenTelemetry 指标集合
type OTelMetrics struct {
	// LiveProof 相关指标
	TokensIssuedTotal  metric.Int64Counter
	VerifyTotal        metric.Int64Counter
	RateLimitedTotal   metric.Int64Counter
	CheckInsTotal      metric.Int64Counter
	EvidenceBytesTotal metric.Int64Counter

	// 铸造相关指标
	MintAttemptsTotal  metric.Int64Counter
	MintDuration       metric.Float64Histogram
	TransitionsTotal   metric.Int64Counter
	SweepRedispatched  metric.Int64Counter
	SweepReconciled    metric.Int64Counter
	EvidenceSweptTotal metric.Int64Counter

	// HTTP 相关指标
	HTTPServerRequestTotal   metric.Int64Counter
	HTTPServerDuration       metric.Float64Histogram
	HTTPServerActiveRequests metric.Int64UpDownCounter
}

var (
	// 全局指标实例，未初始化时所有记录函数都是空操作
	metrics *OTelMetrics
	// meter 用于创建指标
	meter = otel.Meter("aurin")
)

// InitMetrics 初始化 OpenTelemetry 指标
func InitMetrics() error {
	m := &OTelMetrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.TokensIssuedTotal, "liveproof_tokens_issued_total", "Total number of LiveProof tokens issued", "{token}"},
		{&m.VerifyTotal, "liveproof_verify_total", "LiveProof verification attempts by outcome", "{request}"},
		{&m.RateLimitedTotal, "rate_limited_total", "Requests rejected by the rate limiter", "{request}"},
		{&m.CheckInsTotal, "checkins_total", "Check-ins by result", "{checkin}"},
		{&m.EvidenceBytesTotal, "evidence_bytes_total", "Evidence bytes stored", "By"},
		{&m.MintAttemptsTotal, "mint_attempts_total", "Ledger mint attempts by outcome", "{attempt}"},
		{&m.TransitionsTotal, "achievement_transitions_total", "Achievement state transitions by result", "{transition}"},
		{&m.SweepRedispatched, "mint_sweep_redispatched_total", "Achievements re-dispatched by the sweeper", "{achievement}"},
		{&m.SweepReconciled, "mint_sweep_reconciled_total", "Stale minting achievements failed by the sweeper", "{achievement}"},
		{&m.EvidenceSweptTotal, "evidence_swept_total", "Orphaned evidence objects deleted", "{object}"},
		{&m.HTTPServerRequestTotal, "http_server_requests_total", "Total number of HTTP requests", "{request}"},
	}

	var err error
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return err
		}
	}

	m.MintDuration, err = meter.Float64Histogram(
		"mint_duration_seconds",
		metric.WithDescription("Time spent in one ledger mint call"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 20, 30, 60, 120),
	)
	if err != nil {
		return err
	}

	m.HTTPServerDuration, err = meter.Float64Histogram(
		"http_server_duration_seconds",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	m.HTTPServerActiveRequests, err = meter.Int64UpDownCounter(
		"http_server_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	metrics = m
	return nil
}

// GetMetrics 获取全局指标实例
func GetMetrics() *OTelMetrics {
	return metrics
}

func (m *OTelMetrics) RecordMintAttempt(ctx context.Context, standard, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("standard", standard),
		attribute.String("outcome", outcome),
	)
	m.MintAttemptsTotal.Add(ctx, 1, attrs)
	m.MintDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *OTelMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	m.HTTPServerRequestTotal.Add(ctx, 1, attrs)
	m.HTTPServerDuration.Record(ctx, d.Seconds(), attrs)
}
