package fetcher

import (
	"context"
	"time"

	"github.com/tradinglab/stockfetch/types"
)

// Name enumerates the data sources the registry knows how to wire up.
// These five mirror the vendors the reference implementation shipped
// adapters for; stockfetch ships concrete adapters for three of them
// (sina, eastmoney, tencent) and reserves the rest for future wiring.
type Name string

const (
	NameEastmoney Name = "eastmoney" // 东方财富
	NameLegulegu  Name = "legulegu"  // 乐咕乐股
	NameTencent   Name = "tencent"   // 腾讯
	NameSina      Name = "sina"      // 新浪
	NameXueqiu    Name = "xueqiu"    // 雪球
)

// Provider is the minimal identity contract every data source satisfies.
type Provider interface {
	Name() Name
}

// HealthStatus is a point-in-time health snapshot for one data source.
type HealthStatus struct {
	Healthy   bool
	Latency   time.Duration
	CheckedAt time.Time
	Err       error
}

// HealthChecker is implemented by data sources capable of a cheap liveness probe.
// Implementations should bound their own work with ctx and return quickly;
// the registry passes the routing call's ctx through without adding a
// timeout of its own.
type HealthChecker interface {
	Provider
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}

// DailyBarFetcher pulls OHLCV bars for one symbol over [startDate, endDate] (inclusive).
// Dates are passed as ISO-8601 (YYYY-MM-DD) strings, matching the upstream
// HTTP/API conventions of the vendors being wrapped.
type DailyBarFetcher interface {
	Provider
	FetchDailyBars(ctx context.Context, symbol, startDate, endDate string) ([]types.OHLCVBar, error)
}

// StockInfoFetcher pulls the static reference table of listed symbols.
type StockInfoFetcher interface {
	Provider
	GetAllStockBasicInfo(ctx context.Context) ([]types.StockBasicInfo, error)
	GetStockBasicInfo(ctx context.Context, exchange, symbol string) (*types.StockBasicInfo, error)
}

// StockIndustryFetcher pulls industry classification and constituent data.
type StockIndustryFetcher interface {
	Provider
	FetchIndustryInfo(ctx context.Context) ([]types.StockIndustry, error)
	FetchIndustryConstituents(ctx context.Context, industryCode string) ([]types.StockIndustryMapping, error)
}
