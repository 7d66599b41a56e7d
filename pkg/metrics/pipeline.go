package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// 以下函数在 InitMetrics 之前调用是安全的

func RecordTokenIssued(ctx context.Context) {
	if m := GetMetrics(); m != nil {
		m.TokensIssuedTotal.Add(ctx, 1)
	}
}

// RecordVerify outcome: ok / expired / replayed / invalid_signature / error
func RecordVerify(ctx context.Context, outcome string) {
	if m := GetMetrics(); m != nil {
		m.VerifyTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func RecordRateLimited(ctx context.Context, action string) {
	if m := GetMetrics(); m != nil {
		m.RateLimitedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
	}
}

func RecordCheckIn(ctx context.Context, created bool, evidenceBytes int) {
	m := GetMetrics()
	if m == nil {
		return
	}
	result := "existing"
	if created {
		result = "created"
		m.EvidenceBytesTotal.Add(ctx, int64(evidenceBytes))
	}
	m.CheckInsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func RecordMintAttempt(ctx context.Context, standard, outcome string, d time.Duration) {
	if m := GetMetrics(); m != nil {
		m.RecordMintAttempt(ctx, standard, outcome, d)
	}
}

// RecordTransition result: ok / invalid / not_found / error
func RecordTransition(ctx context.Context, op, result string) {
	if m := GetMetrics(); m != nil {
		m.TransitionsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("result", result),
		))
	}
}

func RecordSweep(ctx context.Context, redispatched, reconciled int) {
	m := GetMetrics()
	if m == nil {
		return
	}
	m.SweepRedispatched.Add(ctx, int64(redispatched))
	m.SweepReconciled.Add(ctx, int64(reconciled))
}

func RecordEvidenceSwept(ctx context.Context, n int) {
	if m := GetMetrics(); m != nil {
		m.EvidenceSweptTotal.Add(ctx, int64(n))
	}
}

func RecordHTTPRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	if m := GetMetrics(); m != nil {
		m.RecordHTTPRequest(ctx, method, route, status, d)
	}
}

func AddActiveRequest(ctx context.Context, delta int64) {
	if m := GetMetrics(); m != nil {
		m.HTTPServerActiveRequests.Add(ctx, delta)
	}
}
