package manager

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tradinglab/stockfetch/fetcher"
	"github.com/tradinglab/stockfetch/types"
)

// DefaultHealthCheckInterval is how long a binding is trusted after it was
// last probed before the next selection round re-checks it lazily.
const DefaultHealthCheckInterval = 300 * time.Second

// FetchRecorder receives observability signals from every Call. Satisfied by
// *metrics.Collector; a nil recorder (the default) records nothing.
type FetchRecorder interface {
	RecordFetchCall(method, provider, status string, duration time.Duration)
}

// Manager is the Provider Registry & Router: it holds every registered data
// source and every method binding, and chooses + invokes an implementation
// on each Call.
type Manager struct {
	mu        sync.RWMutex
	providers map[fetcher.Name]fetcher.Provider
	methods   map[string][]*binding
	pending   []MethodRegistration

	healthCheckInterval time.Duration
	rngMu               sync.Mutex
	rng                 *rand.Rand
	logger              *zap.Logger
	recorder            FetchRecorder
}

// New builds an empty Manager. Register providers and methods, then call
// CompleteRegistration before issuing any Call.
func New(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		providers:           make(map[fetcher.Name]fetcher.Provider),
		methods:             make(map[string][]*binding),
		healthCheckInterval: DefaultHealthCheckInterval,
		rng:                 rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:              logger,
	}
}

// WithHealthCheckInterval overrides the default 300s lazy re-check window.
func (m *Manager) WithHealthCheckInterval(d time.Duration) *Manager {
	m.healthCheckInterval = d
	return m
}

// WithRecorder attaches a FetchRecorder (typically *metrics.Collector) that
// observes every Call's outcome and latency.
func (m *Manager) WithRecorder(r FetchRecorder) *Manager {
	m.recorder = r
	return m
}

// RegisterProvider adds a data source to the registry under its own name.
// Registering the same name twice replaces the previous provider.
func (m *Manager) RegisterProvider(p fetcher.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.Name()] = p
}

// RegisterMethod queues a method->provider binding declaration. Declarations
// are not materialized until CompleteRegistration runs, mirroring the
// register-then-complete two-phase pattern the reference router uses.
func (m *Manager) RegisterMethod(reg MethodRegistration) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, reg)
	return m
}

// CompleteRegistration materializes every pending MethodRegistration into the
// method->[]binding table, failing fast if a registration names a provider
// that was never registered.
func (m *Manager) CompleteRegistration() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, reg := range m.pending {
		p, ok := m.providers[reg.Provider]
		if !ok {
			return fmt.Errorf("fetcher/manager: method %q references unregistered provider %q", reg.Method, reg.Provider)
		}
		m.methods[reg.Method] = append(m.methods[reg.Method], newBinding(reg, p))
	}
	m.pending = nil

	m.logger.Info("fetcher registry complete",
		zap.Int("providers", len(m.providers)),
		zap.Int("methods", len(m.methods)))
	return nil
}

// isHealthy lazily re-probes a binding if it is currently marked unhealthy or
// was last checked more than healthCheckInterval ago (or never); a healthy,
// recently checked binding is trusted without a probe.
func (m *Manager) isHealthy(ctx context.Context, b *binding) bool {
	b.healthMu.Lock()
	stale := time.Since(b.lastCheckTime) > m.healthCheckInterval
	healthy := b.isHealthy
	b.healthMu.Unlock()

	if healthy && !stale {
		return true
	}

	checker, ok := b.provider.(fetcher.HealthChecker)
	if !ok {
		// No probe capability: trust the last call-derived health flag as-is.
		return healthy
	}

	status, err := checker.HealthCheck(ctx)
	now := time.Now()
	ok2 := err == nil && status != nil && status.Healthy

	b.healthMu.Lock()
	b.isHealthy = ok2
	b.lastCheckTime = now
	b.healthMu.Unlock()

	return ok2
}

// chooseImplementation scores every binding registered for method and picks
// one via weighted-random draw: score = weight * successRate * loadPenalty,
// loadPenalty = 1/(1+activeCount). If every score is zero or negative (e.g.
// all weights are zero), it falls back to a uniform random choice among the
// candidates so a misconfigured weight never wedges the method entirely.
// A binding whose health check currently reports unhealthy is never selected:
// if every candidate is unhealthy, the method fails outright rather than
// routing through a known-bad source.
func (m *Manager) chooseImplementation(ctx context.Context, candidates []*binding) (*binding, error) {
	if len(candidates) == 0 {
		return nil, types.NewUpstreamUnavailableError("no data source registered for method")
	}

	healthy := make([]*binding, 0, len(candidates))
	for _, b := range candidates {
		if m.isHealthy(ctx, b) {
			healthy = append(healthy, b)
		}
	}
	if len(healthy) == 0 {
		return nil, types.NewUpstreamUnavailableError("no healthy data source available for method")
	}
	pool := healthy

	type scored struct {
		b     *binding
		score float64
	}
	scores := make([]scored, 0, len(pool))
	var total float64
	for _, b := range pool {
		b.mu.Lock()
		successRate := b.successRate
		b.mu.Unlock()
		loadPenalty := 1.0 / (1.0 + float64(b.activeCount()))
		score := b.weight * successRate * loadPenalty
		if score < 0 {
			score = 0
		}
		scores = append(scores, scored{b: b, score: score})
		total += score
	}

	if total <= 0 {
		m.rngMu.Lock()
		idx := m.rng.Intn(len(pool))
		m.rngMu.Unlock()
		return pool[idx], nil
	}

	m.rngMu.Lock()
	target := m.rng.Float64() * total
	m.rngMu.Unlock()

	var cumulative float64
	for _, s := range scores {
		cumulative += s.score
		if cumulative >= target {
			return s.b, nil
		}
	}
	return scores[len(scores)-1].b, nil
}

// Stat returns an observability snapshot of every registered binding.
func (m *Manager) Stat() []BindingStat {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []BindingStat
	for _, bindings := range m.methods {
		for _, b := range bindings {
			out = append(out, b.snapshot())
		}
	}
	return out
}

// Provider returns the registered provider by name, if any.
func (m *Manager) Provider(name fetcher.Name) (fetcher.Provider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[name]
	return p, ok
}
