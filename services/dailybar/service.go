package dailybar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/tradinglab/stockfetch/calendar"
	"github.com/tradinglab/stockfetch/fetcher/manager"
	"github.com/tradinglab/stockfetch/internal/cache"
	"github.com/tradinglab/stockfetch/internal/pool"
	"github.com/tradinglab/stockfetch/repositories"
	"github.com/tradinglab/stockfetch/types"
)

// presentDatesPool pools the scratch present-dates set missingDays rebuilds
// on every GetDailyBars call, avoiding a fresh map allocation per request
// under concurrent symbol lookups.
var presentDatesPool = pool.NewMapPool[string, struct{}](256)

// maxConcurrentRangeFetches bounds how many missing-range fetches run at once
// against the Provider Registry & Router, independent of any one provider's
// own per-method concurrency ceiling.
const maxConcurrentRangeFetches = 50

// responseCacheTTL bounds how long a fully-resolved [symbol, start, end]
// response is trusted in Redis before GetDailyBars re-derives it from the
// durable store. Short enough that a same-day re-query after a scheduler
// refresh picks up fresh data.
const responseCacheTTL = 15 * time.Minute

// CacheRecorder receives cache hit/miss signals. Satisfied by
// *metrics.Collector; a nil recorder (the default) records nothing.
type CacheRecorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// Service is the gap-aware daily-bar cache: it serves what's cached, fetches
// only what's missing, and upserts new data back into the cache.
type Service struct {
	manager  *manager.Manager
	bars     *repositories.DailyBarRepository
	basic    *repositories.StockBasicInfoRepository
	logger   *zap.Logger
	redis    *cache.Manager
	recorder CacheRecorder
}

// New builds a Service bound to the given registry and repositories.
func New(mgr *manager.Manager, bars *repositories.DailyBarRepository, basic *repositories.StockBasicInfoRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{manager: mgr, bars: bars, basic: basic, logger: logger}
}

// WithRedisCache fronts GetDailyBars with a Redis read-through layer, keyed
// on the exact (symbol, start, end) request. A nil cache disables the layer.
func (s *Service) WithRedisCache(c *cache.Manager, recorder CacheRecorder) *Service {
	s.redis = c
	s.recorder = recorder
	return s
}

func dailyBarCacheKey(symbol, startDate, endDate string) string {
	return fmt.Sprintf("dailybar:%s:%s:%s", symbol, startDate, endDate)
}

// GetDailyBars returns bars for symbol over [startDate, endDate] (ISO dates),
// fetching and caching only the trading days the cache doesn't already have.
func (s *Service) GetDailyBars(ctx context.Context, symbol, startDate, endDate string) ([]types.OHLCVBar, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return nil, types.NewValidationError("invalid start date").WithCause(err)
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return nil, types.NewValidationError("invalid end date").WithCause(err)
	}
	if end.Before(start) {
		return nil, types.NewValidationError("end date is before start date")
	}

	if s.redis != nil {
		key := dailyBarCacheKey(symbol, startDate, endDate)
		var cached []types.OHLCVBar
		if err := s.redis.GetJSON(ctx, key, &cached); err == nil {
			if s.recorder != nil {
				s.recorder.RecordCacheHit("dailybar")
			}
			return cached, nil
		} else if !cache.IsCacheMiss(err) {
			s.logger.Warn("redis read-through lookup failed", zap.String("symbol", symbol), zap.Error(err))
		}
		if s.recorder != nil {
			s.recorder.RecordCacheMiss("dailybar")
		}
	}

	adjustedStart := start
	if info, err := s.basic.GetBySymbol(ctx, symbol); err == nil && info.ListingDate != nil && info.ListingDate.After(adjustedStart) {
		adjustedStart = *info.ListingDate
	}
	if adjustedStart.After(end) {
		return nil, nil
	}

	// ExtentAround is a cheap MIN/MAX aggregate; when it reports nothing
	// cached in range at all, skip the heavier row-level ListRange scan
	// entirely rather than running it only to get an empty result back.
	_, _, hasExtent, err := s.bars.ExtentAround(ctx, symbol, adjustedStart, end)
	if err != nil {
		return nil, err
	}
	var cached []types.OHLCVBar
	if hasExtent {
		cached, err = s.bars.ListRange(ctx, symbol, adjustedStart, end)
		if err != nil {
			return nil, err
		}
	}

	tradingDays := calendar.BusinessDays(adjustedStart, end)
	missing := missingDays(tradingDays, cached)
	if len(missing) == 0 {
		result := filterRange(cached, start, end)
		s.writeThroughCache(ctx, symbol, startDate, endDate, result)
		return result, nil
	}

	ranges := mergeConsecutiveDates(missing)
	if len(cached) == 0 {
		// Nothing cached at all: one request for the whole span beats many
		// small gap requests.
		ranges = []dateRange{{Start: adjustedStart, End: end}}
	}

	fresh := s.fetchRanges(ctx, symbol, ranges)
	combined := mergeBars(cached, fresh...)

	var newCount int
	for _, batch := range fresh {
		newCount += len(batch)
	}
	if newCount > 0 {
		if err := s.bars.UpsertBars(ctx, combined); err != nil {
			s.logger.Warn("failed to persist fetched daily bars", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	result := filterRange(combined, start, end)
	s.writeThroughCache(ctx, symbol, startDate, endDate, result)
	return result, nil
}

// writeThroughCache populates the Redis read-through layer for the exact
// request key. Failures are logged, not propagated: a cache-write failure
// must never fail a request that already has its data.
func (s *Service) writeThroughCache(ctx context.Context, symbol, startDate, endDate string, bars []types.OHLCVBar) {
	if s.redis == nil {
		return
	}
	key := dailyBarCacheKey(symbol, startDate, endDate)
	if err := s.redis.SetJSON(ctx, key, bars, responseCacheTTL); err != nil {
		s.logger.Warn("redis write-through failed", zap.String("symbol", symbol), zap.Error(err))
	}
}

// missingDays returns the subset of tradingDays that has no matching entry in cached.
func missingDays(tradingDays []time.Time, cached []types.OHLCVBar) []time.Time {
	present := presentDatesPool.Get()
	defer presentDatesPool.Put(present)

	for _, b := range cached {
		present[b.TradeDate.Format("2006-01-02")] = struct{}{}
	}
	var missing []time.Time
	for _, d := range tradingDays {
		if _, ok := present[d.Format("2006-01-02")]; !ok {
			missing = append(missing, d)
		}
	}
	return missing
}

// fetchRanges fans out one FetchDailyBars call per range, bounded by
// maxConcurrentRangeFetches. A failed range is logged and dropped
// rather than failing the whole request, matching the reference
// implementation's asyncio.gather(..., return_exceptions=True) behavior.
func (s *Service) fetchRanges(ctx context.Context, symbol string, ranges []dateRange) [][]types.OHLCVBar {
	sem := semaphore.NewWeighted(maxConcurrentRangeFetches)
	results := make([][]types.OHLCVBar, len(ranges))

	var wg sync.WaitGroup
	for i, r := range ranges {
		if err := sem.Acquire(ctx, 1); err != nil {
			s.logger.Warn("range fetch fan-out cancelled", zap.String("symbol", symbol), zap.Error(err))
			break
		}
		wg.Add(1)
		go func(i int, r dateRange) {
			defer wg.Done()
			defer sem.Release(1)

			bars, err := manager.FetchDailyBars(ctx, s.manager, symbol, r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
			if err != nil {
				s.logger.Warn("range fetch failed, dropping range",
					zap.String("symbol", symbol),
					zap.Time("range_start", r.Start),
					zap.Time("range_end", r.End),
					zap.Error(err))
				return
			}
			results[i] = bars
		}(i, r)
	}
	wg.Wait()

	return results
}
