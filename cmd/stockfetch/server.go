// Package main provides the StockFetch server implementation.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tradinglab/stockfetch/config"
	"github.com/tradinglab/stockfetch/fetcher"
	"github.com/tradinglab/stockfetch/fetcher/manager"
	"github.com/tradinglab/stockfetch/fetcher/providers/eastmoney"
	"github.com/tradinglab/stockfetch/fetcher/providers/sina"
	"github.com/tradinglab/stockfetch/fetcher/providers/tencent"
	"github.com/tradinglab/stockfetch/internal/cache"
	"github.com/tradinglab/stockfetch/internal/database"
	"github.com/tradinglab/stockfetch/internal/metrics"
	"github.com/tradinglab/stockfetch/internal/pool"
	"github.com/tradinglab/stockfetch/internal/server"
	"github.com/tradinglab/stockfetch/internal/tlsutil"
	"github.com/tradinglab/stockfetch/repositories"
	"github.com/tradinglab/stockfetch/services/dailybar"
	"github.com/tradinglab/stockfetch/tasks/scheduler"
	"github.com/tradinglab/stockfetch/types"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server is StockFetch's main server: it owns the fetch registry, the
// daily-bar cache service, the cron scheduler, and the two HTTP listeners
// (API and metrics).
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	dbPool *database.PoolManager
	db     *gorm.DB

	httpManager    *server.Manager
	metricsManager *server.Manager

	metricsCollector *metrics.Collector
	cacheManager     *cache.Manager

	fetchManager *manager.Manager
	barsService  *dailybar.Service
	basicRepo    *repositories.StockBasicInfoRepository
	barRepo      *repositories.DailyBarRepository
	industryRepo *repositories.StockIndustryRepository

	sched *scheduler.Scheduler

	wg sync.WaitGroup
}

// NewServer creates a new, unstarted Server. db is taken from dbPool, so
// every repository transparently benefits from the pool's connection limits,
// background health checks and transaction retry without its own reference
// to the manager.
func NewServer(cfg *config.Config, logger *zap.Logger, dbPool *database.PoolManager) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		dbPool: dbPool,
		db:     dbPool.DB(),
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start wires the fetch registry, the cache service, the scheduler, and both
// HTTP listeners, then starts them all.
func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("stockfetch", s.logger)

	if err := s.initCache(); err != nil {
		s.logger.Warn("cache unavailable, daily-bar reads will bypass Redis", zap.Error(err))
	}

	if err := s.initFetchManager(); err != nil {
		return fmt.Errorf("failed to init fetch manager: %w", err)
	}

	s.initRepositories()
	s.barsService = dailybar.New(s.fetchManager, s.barRepo, s.basicRepo, s.logger).
		WithRedisCache(s.cacheManager, s.metricsCollector)

	if s.cfg.Scheduler.Enabled {
		if err := s.initScheduler(); err != nil {
			return fmt.Errorf("failed to init scheduler: %w", err)
		}
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("scheduler_enabled", s.cfg.Scheduler.Enabled),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initCache opens the Redis-backed read-through cache in front of daily-bar reads.
func (s *Server) initCache() error {
	cacheCfg := cache.Config{
		Addr:         s.cfg.Redis.Addr,
		Password:     s.cfg.Redis.Password,
		DB:           s.cfg.Redis.DB,
		PoolSize:     s.cfg.Redis.PoolSize,
		MinIdleConns: s.cfg.Redis.MinIdleConns,
	}
	mgr, err := cache.NewManager(cacheCfg, s.logger)
	if err != nil {
		return err
	}
	s.cacheManager = mgr
	return nil
}

// initFetchManager registers every data source and method binding, then
// completes the two-phase registration.
func (s *Server) initFetchManager() error {
	httpClient := tlsutil.SecureHTTPClient(15 * time.Second)

	s.fetchManager = manager.New(s.logger).WithRecorder(s.metricsCollector)
	if s.cfg.Fetcher.HealthCheckIntervalSeconds > 0 {
		s.fetchManager = s.fetchManager.WithHealthCheckInterval(
			time.Duration(s.cfg.Fetcher.HealthCheckIntervalSeconds) * time.Second)
	}

	s.fetchManager.RegisterProvider(sina.New(httpClient, s.logger))
	s.fetchManager.RegisterProvider(eastmoney.New(httpClient, s.logger))
	s.fetchManager.RegisterProvider(tencent.New(httpClient, s.logger))

	maxRPM := 0 // unlimited unless overridden below
	registrations := []manager.MethodRegistration{
		{Method: manager.MethodDailyBars, Provider: fetcher.NameEastmoney, Weight: 0.5, MaxRequestsPerMinute: maxRPM, MaxConcurrent: 20},
		{Method: manager.MethodDailyBars, Provider: fetcher.NameSina, Weight: 0.3, MaxRequestsPerMinute: maxRPM, MaxConcurrent: 20},
		{Method: manager.MethodDailyBars, Provider: fetcher.NameTencent, Weight: 0.2, MaxRequestsPerMinute: maxRPM, MaxConcurrent: 20},
		{Method: manager.MethodBasicInfoAll, Provider: fetcher.NameEastmoney, Weight: 0.6, MaxRequestsPerMinute: maxRPM, MaxConcurrent: 5},
		{Method: manager.MethodBasicInfoAll, Provider: fetcher.NameSina, Weight: 0.4, MaxRequestsPerMinute: maxRPM, MaxConcurrent: 5},
		{Method: manager.MethodBasicInfoSingle, Provider: fetcher.NameEastmoney, Weight: 0.6, MaxRequestsPerMinute: maxRPM, MaxConcurrent: 20},
		{Method: manager.MethodBasicInfoSingle, Provider: fetcher.NameTencent, Weight: 0.4, MaxRequestsPerMinute: maxRPM, MaxConcurrent: 20},
		{Method: manager.MethodIndustryInfo, Provider: fetcher.NameEastmoney, Weight: 1.0, MaxRequestsPerMinute: maxRPM, MaxConcurrent: 5},
	}
	for _, reg := range registrations {
		if s.cfg.Fetcher.DefaultMaxRetries > 0 {
			// retries are a call-site concern (manager.WithMaxRetries); nothing to
			// set on the registration itself.
			_ = s.cfg.Fetcher.DefaultMaxRetries
		}
		s.fetchManager.RegisterMethod(reg)
	}

	return s.fetchManager.CompleteRegistration()
}

// initRepositories wires the gorm repositories used by the HTTP handlers and
// the scheduled jobs.
func (s *Server) initRepositories() {
	s.basicRepo = repositories.NewStockBasicInfoRepository(s.db)
	s.barRepo = repositories.NewDailyBarRepository(s.db)
	s.industryRepo = repositories.NewStockIndustryRepository(s.db)
}

// initScheduler registers the two built-in refresh jobs and starts the cron loop.
func (s *Server) initScheduler() error {
	store := scheduler.NewJobStore(s.db)

	poolCfg := pool.DefaultGoroutinePoolConfig()
	if s.cfg.Scheduler.ThreadPoolSize > 0 {
		poolCfg.MaxWorkers = s.cfg.Scheduler.ThreadPoolSize
	}
	threadPool := pool.NewGoroutinePool(poolCfg)

	s.sched = scheduler.New(store, threadPool, s.logger).WithRecorder(s.metricsCollector)
	if s.cfg.Scheduler.MisfireGraceSeconds > 0 {
		s.sched = s.sched.WithMisfireGrace(time.Duration(s.cfg.Scheduler.MisfireGraceSeconds) * time.Second)
	}

	ctx := context.Background()
	basicInfoFn := scheduler.NewUpdateStockBasicInfoFunc(s.fetchManager, s.basicRepo, s.logger)
	if err := s.sched.AddJob(ctx, scheduler.UpdateStockBasicInfoJob(), basicInfoFn); err != nil {
		return err
	}

	dailyFn := scheduler.NewUpdateStockDailyFunc(s.basicRepo, s.barsService, s.logger)
	if err := s.sched.AddJob(ctx, scheduler.UpdateStockDailyJob(), dailyFn); err != nil {
		return err
	}

	return s.sched.Start()
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/version", s.handleVersion)

	mux.HandleFunc("/v1/stocks", s.handleListStocks)
	mux.HandleFunc("/v1/stocks/bars", s.handleDailyBars)
	mux.HandleFunc("/v1/fetcher/stats", s.handleFetcherStats)

	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		RateLimiter(context.Background(), float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     120 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 📡 Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady checks the database (and, if configured, Redis) before
// reporting readiness — distinct from the liveness-only /health.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.dbPool.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
		return
	}
	if s.cacheManager != nil {
		if err := s.cacheManager.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "cache unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}

// handleListStocks serves GET /v1/stocks?keyword=&offset=&limit=
func (s *Server) handleListStocks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, types.NewValidationError("method not allowed"))
		return
	}
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 50
	}

	page, err := s.basicRepo.List(r.Context(), q.Get("keyword"), offset, limit)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleDailyBars serves GET /v1/stocks/bars?symbol=&start=&end=
func (s *Server) handleDailyBars(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, types.NewValidationError("method not allowed"))
		return
	}
	q := r.URL.Query()
	symbol, start, end := q.Get("symbol"), q.Get("start"), q.Get("end")
	if symbol == "" || start == "" || end == "" {
		writeAPIError(w, types.NewValidationError("symbol, start and end are required"))
		return
	}

	bars, err := s.barsService.GetDailyBars(r.Context(), symbol, start, end)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bars)
}

// handleFetcherStats serves GET /v1/fetcher/stats, reporting each
// method/provider binding's EMA success rate and active-call count, and
// feeding the same snapshot into Prometheus.
func (s *Server) handleFetcherStats(w http.ResponseWriter, r *http.Request) {
	stats := s.fetchManager.Stat()
	for _, st := range stats {
		s.metricsCollector.RecordProviderHealth(st.Method, string(st.Provider), st.SuccessRate, st.ActiveCount)
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeAPIError maps a types.Error to its configured HTTP status, falling
// back to 500 for unstructured errors.
func writeAPIError(w http.ResponseWriter, err error) {
	var domainErr *types.Error
	status := http.StatusInternalServerError
	if errors.As(err, &domainErr) {
		status = domainErr.HTTPStatus
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown blocks until a shutdown signal arrives, then runs Shutdown.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops the scheduler and both HTTP listeners in order.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	if s.sched != nil {
		if err := s.sched.Stop(ctx); err != nil {
			s.logger.Error("Scheduler shutdown error", zap.Error(err))
		}
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("Cache manager shutdown error", zap.Error(err))
		}
	}

	if s.dbPool != nil {
		if err := s.dbPool.Close(); err != nil {
			s.logger.Error("Database pool shutdown error", zap.Error(err))
		}
	}

	s.wg.Wait()

	s.logger.Info("Graceful shutdown completed")
}
