package manager

import (
	"context"

	"github.com/tradinglab/stockfetch/fetcher"
	"github.com/tradinglab/stockfetch/types"
)

// Method name constants shared by registration call sites and the
// convenience wrappers below.
const (
	MethodDailyBars       = "daily_bars"
	MethodBasicInfoAll    = "basic_info_all"
	MethodBasicInfoSingle = "basic_info_single"
	MethodIndustryInfo    = "industry_info"
)

// FetchDailyBars routes a daily-bar request through the registry, asserting
// the chosen provider implements fetcher.DailyBarFetcher.
func FetchDailyBars(ctx context.Context, m *Manager, symbol, startDate, endDate string, opts ...CallOption) ([]types.OHLCVBar, error) {
	return Call(ctx, m, MethodDailyBars, func(ctx context.Context, p fetcher.Provider) ([]types.OHLCVBar, error) {
		df, ok := p.(fetcher.DailyBarFetcher)
		if !ok {
			return nil, types.NewInternalError("provider does not implement DailyBarFetcher").WithSource(string(p.Name()))
		}
		return df.FetchDailyBars(ctx, symbol, startDate, endDate)
	}, opts...)
}

// FetchAllStockBasicInfo routes a bulk basic-info pull through the registry.
func FetchAllStockBasicInfo(ctx context.Context, m *Manager, opts ...CallOption) ([]types.StockBasicInfo, error) {
	return Call(ctx, m, MethodBasicInfoAll, func(ctx context.Context, p fetcher.Provider) ([]types.StockBasicInfo, error) {
		sf, ok := p.(fetcher.StockInfoFetcher)
		if !ok {
			return nil, types.NewInternalError("provider does not implement StockInfoFetcher").WithSource(string(p.Name()))
		}
		return sf.GetAllStockBasicInfo(ctx)
	}, opts...)
}

// FetchStockBasicInfo routes a single-symbol basic-info pull through the registry.
func FetchStockBasicInfo(ctx context.Context, m *Manager, exchange, symbol string, opts ...CallOption) (*types.StockBasicInfo, error) {
	return Call(ctx, m, MethodBasicInfoSingle, func(ctx context.Context, p fetcher.Provider) (*types.StockBasicInfo, error) {
		sf, ok := p.(fetcher.StockInfoFetcher)
		if !ok {
			return nil, types.NewInternalError("provider does not implement StockInfoFetcher").WithSource(string(p.Name()))
		}
		return sf.GetStockBasicInfo(ctx, exchange, symbol)
	}, opts...)
}

// FetchIndustryInfo routes an industry-classification pull through the registry.
func FetchIndustryInfo(ctx context.Context, m *Manager, opts ...CallOption) ([]types.StockIndustry, error) {
	return Call(ctx, m, MethodIndustryInfo, func(ctx context.Context, p fetcher.Provider) ([]types.StockIndustry, error) {
		sf, ok := p.(fetcher.StockIndustryFetcher)
		if !ok {
			return nil, types.NewInternalError("provider does not implement StockIndustryFetcher").WithSource(string(p.Name()))
		}
		return sf.FetchIndustryInfo(ctx)
	}, opts...)
}
