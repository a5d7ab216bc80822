package manager

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/tradinglab/stockfetch/fetcher"
	"github.com/tradinglab/stockfetch/types"
)

// fakeProvider is a minimal DailyBarFetcher used to exercise the registry
// without any real HTTP vendor adapter.
type fakeProvider struct {
	name    fetcher.Name
	calls   int64
	failN   int64 // fail this many calls before succeeding
	barsOut []types.OHLCVBar
}

func (f *fakeProvider) Name() fetcher.Name { return f.name }

func (f *fakeProvider) FetchDailyBars(ctx context.Context, symbol, startDate, endDate string) ([]types.OHLCVBar, error) {
	n := atomic.AddInt64(&f.calls, 1)
	if n <= f.failN {
		return nil, errors.New("simulated upstream failure")
	}
	return f.barsOut, nil
}

func newTestManager(t *testing.T, reg MethodRegistration, p fetcher.Provider) *Manager {
	t.Helper()
	m := New(zap.NewNop())
	m.RegisterProvider(p)
	m.RegisterMethod(reg)
	if err := m.CompleteRegistration(); err != nil {
		t.Fatalf("CompleteRegistration() error = %v", err)
	}
	return m
}

func TestFetchDailyBars_Success(t *testing.T) {
	want := []types.OHLCVBar{{Symbol: "600000"}}
	p := &fakeProvider{name: fetcher.NameSina, barsOut: want}
	m := newTestManager(t, MethodRegistration{
		Method: MethodDailyBars, Provider: fetcher.NameSina, Weight: 1, MaxConcurrent: 5,
	}, p)

	got, err := FetchDailyBars(context.Background(), m, "600000", "2024-01-01", "2024-01-31")
	if err != nil {
		t.Fatalf("FetchDailyBars() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d bars, want %d", len(got), len(want))
	}
}

func TestFetchDailyBars_RetriesThenSucceeds(t *testing.T) {
	p := &fakeProvider{name: fetcher.NameSina, failN: 2, barsOut: []types.OHLCVBar{{Symbol: "600000"}}}
	m := newTestManager(t, MethodRegistration{
		Method: MethodDailyBars, Provider: fetcher.NameSina, Weight: 1, MaxConcurrent: 5,
	}, p)

	_, err := FetchDailyBars(context.Background(), m, "600000", "2024-01-01", "2024-01-31", WithMaxRetries(5))
	if err != nil {
		t.Fatalf("FetchDailyBars() error = %v", err)
	}
	if atomic.LoadInt64(&p.calls) != 3 {
		t.Errorf("got %d attempts, want 3 (2 failures + 1 success)", p.calls)
	}
}

func TestFetchDailyBars_ExhaustsRetries(t *testing.T) {
	p := &fakeProvider{name: fetcher.NameSina, failN: 100}
	m := newTestManager(t, MethodRegistration{
		Method: MethodDailyBars, Provider: fetcher.NameSina, Weight: 1, MaxConcurrent: 5,
	}, p)

	_, err := FetchDailyBars(context.Background(), m, "600000", "2024-01-01", "2024-01-31", WithMaxRetries(2))
	if err == nil {
		t.Fatal("expected error after exhausting retries, got nil")
	}
	var domainErr *types.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected *types.Error, got %T", err)
	}
	if domainErr.Code != types.ErrUpstreamUnavailable {
		t.Errorf("Code = %v, want %v", domainErr.Code, types.ErrUpstreamUnavailable)
	}
}

func TestChooseImplementation_AllUnhealthyFails(t *testing.T) {
	p := &fakeProvider{name: fetcher.NameSina, barsOut: []types.OHLCVBar{{Symbol: "600000"}}}
	m := newTestManager(t, MethodRegistration{
		Method: MethodDailyBars, Provider: fetcher.NameSina, Weight: 1, MaxConcurrent: 5,
	}, p)

	// Force the only binding unhealthy and recently checked, so isHealthy's
	// lazy re-probe (no HealthChecker implemented by fakeProvider) trusts the
	// stale flag instead of re-probing.
	b := m.methods[MethodDailyBars][0]
	b.healthMu.Lock()
	b.isHealthy = false
	b.lastCheckTime = time.Now()
	b.healthMu.Unlock()

	_, err := FetchDailyBars(context.Background(), m, "600000", "2024-01-01", "2024-01-31")
	if err == nil {
		t.Fatal("expected an error when every registered binding is unhealthy")
	}
	var domainErr *types.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected *types.Error, got %T", err)
	}
	if domainErr.Code != types.ErrUpstreamUnavailable {
		t.Errorf("Code = %v, want %v", domainErr.Code, types.ErrUpstreamUnavailable)
	}
	if atomic.LoadInt64(&p.calls) != 0 {
		t.Errorf("provider was called %d times, want 0: an unhealthy binding must never be invoked", p.calls)
	}
}

func TestCall_UnregisteredMethod(t *testing.T) {
	m := New(zap.NewNop())
	if err := m.CompleteRegistration(); err != nil {
		t.Fatalf("CompleteRegistration() error = %v", err)
	}

	_, err := FetchDailyBars(context.Background(), m, "600000", "2024-01-01", "2024-01-31")
	if err == nil {
		t.Fatal("expected error for a method with no registered providers")
	}
}

func TestCompleteRegistration_UnknownProvider(t *testing.T) {
	m := New(zap.NewNop())
	m.RegisterMethod(MethodRegistration{Method: MethodDailyBars, Provider: fetcher.NameSina, Weight: 1})

	if err := m.CompleteRegistration(); err == nil {
		t.Fatal("expected error when a method registration names an unregistered provider")
	}
}

func TestStat_ReflectsCallOutcomes(t *testing.T) {
	p := &fakeProvider{name: fetcher.NameSina, barsOut: []types.OHLCVBar{{Symbol: "600000"}}}
	m := newTestManager(t, MethodRegistration{
		Method: MethodDailyBars, Provider: fetcher.NameSina, Weight: 1, MaxConcurrent: 5,
	}, p)

	if _, err := FetchDailyBars(context.Background(), m, "600000", "2024-01-01", "2024-01-31"); err != nil {
		t.Fatalf("FetchDailyBars() error = %v", err)
	}

	stats := m.Stat()
	if len(stats) != 1 {
		t.Fatalf("got %d stats, want 1", len(stats))
	}
	if stats[0].CallCount != 1 {
		t.Errorf("CallCount = %d, want 1", stats[0].CallCount)
	}
	if stats[0].SuccessRate <= 0 {
		t.Errorf("SuccessRate = %v, want > 0 after a successful call", stats[0].SuccessRate)
	}
}

// recordingRecorder captures every FetchRecorder invocation for assertion.
type recordingRecorder struct {
	calls []string
}

func (r *recordingRecorder) RecordFetchCall(method, provider, status string, duration time.Duration) {
	r.calls = append(r.calls, method+":"+provider+":"+status)
}

func TestWithRecorder_ObservesOutcome(t *testing.T) {
	p := &fakeProvider{name: fetcher.NameSina, barsOut: []types.OHLCVBar{{Symbol: "600000"}}}
	m := New(zap.NewNop())
	rec := &recordingRecorder{}
	m.WithRecorder(rec)
	m.RegisterProvider(p)
	m.RegisterMethod(MethodRegistration{Method: MethodDailyBars, Provider: fetcher.NameSina, Weight: 1, MaxConcurrent: 5})
	if err := m.CompleteRegistration(); err != nil {
		t.Fatalf("CompleteRegistration() error = %v", err)
	}

	if _, err := FetchDailyBars(context.Background(), m, "600000", "2024-01-01", "2024-01-31"); err != nil {
		t.Fatalf("FetchDailyBars() error = %v", err)
	}

	if len(rec.calls) != 1 || rec.calls[0] != MethodDailyBars+":sina:success" {
		t.Errorf("recorder.calls = %v, want one %q entry", rec.calls, MethodDailyBars+":sina:success")
	}
}

func TestChooseImplementation_WeightedTowardHealthyHigherWeight(t *testing.T) {
	strong := &fakeProvider{name: fetcher.NameEastmoney, barsOut: []types.OHLCVBar{{Symbol: "600000"}}}
	weak := &fakeProvider{name: fetcher.NameSina, barsOut: []types.OHLCVBar{{Symbol: "600000"}}}

	m := New(zap.NewNop())
	m.RegisterProvider(strong)
	m.RegisterProvider(weak)
	m.RegisterMethod(MethodRegistration{Method: MethodDailyBars, Provider: fetcher.NameEastmoney, Weight: 0.9, MaxConcurrent: 5})
	m.RegisterMethod(MethodRegistration{Method: MethodDailyBars, Provider: fetcher.NameSina, Weight: 0.1, MaxConcurrent: 5})
	if err := m.CompleteRegistration(); err != nil {
		t.Fatalf("CompleteRegistration() error = %v", err)
	}

	for i := 0; i < 50; i++ {
		if _, err := FetchDailyBars(context.Background(), m, "600000", "2024-01-01", "2024-01-31"); err != nil {
			t.Fatalf("FetchDailyBars() error = %v", err)
		}
	}

	if strong.calls <= weak.calls {
		t.Errorf("expected the 0.9-weight provider to receive more calls than the 0.1-weight one: strong=%d weak=%d", strong.calls, weak.calls)
	}
}

// TestBindingSuccessRate_StaysWithinUnitBound checks, over arbitrary
// sequences of recorded successes and errors, that the EMA success rate
// never leaves [0, 1]: it is a convex combination of the previous value
// (itself in [0, 1] by induction, seeded at 1.0) and an observation of
// exactly 0 or 1, so it can never overshoot either bound.
func TestBindingSuccessRate_StaysWithinUnitBound(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		b := newBinding(MethodRegistration{Method: MethodDailyBars, Weight: 1, MaxConcurrent: 1}, &fakeProvider{name: fetcher.NameSina})

		n := rapid.IntRange(0, 200).Draw(rt, "n")
		for i := 0; i < n; i++ {
			if rapid.Bool().Draw(rt, "succeeded") {
				b.recordSuccess()
			} else {
				b.recordError()
			}
			if b.successRate < 0 || b.successRate > 1 {
				rt.Fatalf("successRate = %v out of [0,1] after %d updates", b.successRate, i+1)
			}
		}
	})
}

// TestChooseImplementation_WeightedSelectionConverges checks that, over many
// selection trials between two equally-healthy, equally-loaded bindings, the
// fraction of calls routed to each provider converges toward its share of
// the total registered weight, for arbitrary weight pairs.
func TestChooseImplementation_WeightedSelectionConverges(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		w1 := rapid.Float64Range(0.5, 5).Draw(rt, "w1")
		w2 := rapid.Float64Range(0.5, 5).Draw(rt, "w2")

		p1 := &fakeProvider{name: fetcher.NameEastmoney, barsOut: []types.OHLCVBar{{Symbol: "600000"}}}
		p2 := &fakeProvider{name: fetcher.NameSina, barsOut: []types.OHLCVBar{{Symbol: "600000"}}}

		m := New(zap.NewNop())
		m.RegisterProvider(p1)
		m.RegisterProvider(p2)
		m.RegisterMethod(MethodRegistration{Method: MethodDailyBars, Provider: fetcher.NameEastmoney, Weight: w1, MaxConcurrent: 5})
		m.RegisterMethod(MethodRegistration{Method: MethodDailyBars, Provider: fetcher.NameSina, Weight: w2, MaxConcurrent: 5})
		if err := m.CompleteRegistration(); err != nil {
			rt.Fatalf("CompleteRegistration() error = %v", err)
		}

		const trials = 400
		for i := 0; i < trials; i++ {
			if _, err := FetchDailyBars(context.Background(), m, "600000", "2024-01-01", "2024-01-31"); err != nil {
				rt.Fatalf("FetchDailyBars() error = %v", err)
			}
		}

		wantProportion := w1 / (w1 + w2)
		gotProportion := float64(p1.calls) / float64(trials)

		const tolerance = 0.2
		if diff := gotProportion - wantProportion; diff > tolerance || diff < -tolerance {
			rt.Fatalf("selection frequency %v did not converge to weight proportion %v within %v (w1=%v w2=%v)",
				gotProportion, wantProportion, tolerance, w1, w2)
		}
	})
}
