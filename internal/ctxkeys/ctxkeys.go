package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	jobIDKey   contextKey = "job_id"
)

// WithTraceID 设置 TraceID（来自 HTTP 请求的 X-Request-ID）
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID 获取 TraceID
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithJobID 设置当前调度任务的 JobID，供其调用链下游的错误日志关联使用。
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey, jobID)
}

// JobID 获取当前调度任务的 JobID
func JobID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(jobIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
