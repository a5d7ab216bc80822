package manager

import (
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/tradinglab/stockfetch/fetcher"
)

// emaAlpha is the smoothing factor for the exponential moving average used
// to track each binding's success rate: s <- (1-alpha)*s + alpha*observation.
const emaAlpha = 0.2

// MethodRegistration declares that a data source participates in a named
// method, with its routing weight and its own rate/concurrency ceilings.
type MethodRegistration struct {
	Method               string
	Provider             fetcher.Name
	Weight               float64
	MaxRequestsPerMinute int
	MaxConcurrent        int
}

// binding is the materialized, runtime state for one (method, provider) pair.
type binding struct {
	method   string
	provider fetcher.Provider
	weight   float64

	limiter *rate.Limiter
	sem     *semaphore.Weighted

	mu          sync.Mutex
	callCount   int64
	errorCount  int64
	successRate float64 // EMA, seeded at 1.0

	activeMu    sync.Mutex
	activeTasks map[uint64]struct{}
	nextToken   uint64

	healthMu      sync.Mutex
	isHealthy     bool
	lastCheckTime time.Time
}

func newBinding(reg MethodRegistration, p fetcher.Provider) *binding {
	rps := rate.Limit(float64(reg.MaxRequestsPerMinute) / 60.0)
	if reg.MaxRequestsPerMinute <= 0 {
		rps = rate.Inf
	}
	concurrency := reg.MaxConcurrent
	if concurrency <= 0 {
		concurrency = 1
	}
	return &binding{
		method:      reg.Method,
		provider:    p,
		weight:      reg.Weight,
		limiter:     rate.NewLimiter(rps, maxInt(1, reg.MaxRequestsPerMinute)),
		sem:         semaphore.NewWeighted(int64(concurrency)),
		successRate: 1.0,
		isHealthy:   true,
		activeTasks: make(map[uint64]struct{}),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// acquireToken reserves a slot in activeTasks and returns a token that must
// be released via releaseToken, regardless of how the call ends. Using a
// monotonic counter (instead of the caller goroutine's identity) means two
// concurrent calls from logically-related goroutines never collide, and a
// token is never released twice even if the call is cancelled mid-retry.
func (b *binding) acquireToken() uint64 {
	b.activeMu.Lock()
	defer b.activeMu.Unlock()
	b.nextToken++
	token := b.nextToken
	b.activeTasks[token] = struct{}{}
	return token
}

func (b *binding) releaseToken(token uint64) {
	b.activeMu.Lock()
	defer b.activeMu.Unlock()
	delete(b.activeTasks, token)
}

func (b *binding) activeCount() int {
	b.activeMu.Lock()
	defer b.activeMu.Unlock()
	return len(b.activeTasks)
}

// recordSuccess updates call bookkeeping and nudges the EMA success rate toward 1.
func (b *binding) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callCount++
	b.successRate = (1-emaAlpha)*b.successRate + emaAlpha*1.0
}

// recordError updates call bookkeeping, nudges the EMA success rate toward 0,
// and marks the binding unhealthy. The next selection round re-probes it if
// its provider implements fetcher.HealthChecker and skips it unless that
// probe succeeds; without a HealthChecker it stays skipped.
func (b *binding) recordError() {
	b.mu.Lock()
	b.callCount++
	b.errorCount++
	b.successRate = (1-emaAlpha)*b.successRate + emaAlpha*0.0
	b.mu.Unlock()

	b.healthMu.Lock()
	b.isHealthy = false
	b.lastCheckTime = time.Now()
	b.healthMu.Unlock()
}

func (b *binding) snapshot() BindingStat {
	b.mu.Lock()
	callCount, errorCount, successRate := b.callCount, b.errorCount, b.successRate
	b.mu.Unlock()

	b.healthMu.Lock()
	healthy, lastCheck := b.isHealthy, b.lastCheckTime
	b.healthMu.Unlock()

	return BindingStat{
		Method:        b.method,
		Provider:      b.provider.Name(),
		Weight:        b.weight,
		CallCount:     callCount,
		ErrorCount:    errorCount,
		SuccessRate:   successRate,
		ActiveCount:   b.activeCount(),
		IsHealthy:     healthy,
		LastCheckTime: lastCheck,
	}
}

// BindingStat is a point-in-time observability snapshot of one (method, provider) binding.
type BindingStat struct {
	Method        string
	Provider      fetcher.Name
	Weight        float64
	CallCount     int64
	ErrorCount    int64
	SuccessRate   float64
	ActiveCount   int
	IsHealthy     bool
	LastCheckTime time.Time
}
