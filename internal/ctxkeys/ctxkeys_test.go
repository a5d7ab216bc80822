package ctxkeys

import (
	"context"
	"testing"
)

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "req-123")
	got, ok := TraceID(ctx)
	if !ok || got != "req-123" {
		t.Fatalf("TraceID() = %q, %v; want %q, true", got, ok, "req-123")
	}
}

func TestTraceID_Absent(t *testing.T) {
	if _, ok := TraceID(context.Background()); ok {
		t.Fatal("TraceID() on a bare context should report absent")
	}
}

func TestJobID_RoundTrip(t *testing.T) {
	ctx := WithJobID(context.Background(), "update_stock_daily")
	got, ok := JobID(ctx)
	if !ok || got != "update_stock_daily" {
		t.Fatalf("JobID() = %q, %v; want %q, true", got, ok, "update_stock_daily")
	}
}

func TestJobID_Absent(t *testing.T) {
	if _, ok := JobID(context.Background()); ok {
		t.Fatal("JobID() on a bare context should report absent")
	}
}

func TestTraceIDAndJobID_Independent(t *testing.T) {
	ctx := WithTraceID(context.Background(), "req-1")
	ctx = WithJobID(ctx, "job-1")

	trace, ok := TraceID(ctx)
	if !ok || trace != "req-1" {
		t.Fatalf("TraceID() = %q, %v; want %q, true", trace, ok, "req-1")
	}
	job, ok := JobID(ctx)
	if !ok || job != "job-1" {
		t.Fatalf("JobID() = %q, %v; want %q, true", job, ok, "job-1")
	}
}
