// Package eastmoney adapts East Money's public quote endpoints to the
// fetcher protocol. East Money reports volume in lots (手, 100 shares per
// lot); normalization converts it to shares to match the schema every other
// source and the persisted schema use.
package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tradinglab/stockfetch/fetcher"
	"github.com/tradinglab/stockfetch/types"
)

const (
	klineURL = "https://push2his.eastmoney.com/api/qt/stock/kline/get"
	infoURL  = "https://push2.eastmoney.com/api/qt/clist/get"

	// lotToShares converts East Money's reported 手 (lots of 100 shares) to shares.
	lotToShares = 100
)

// Source implements fetcher.DailyBarFetcher, fetcher.StockInfoFetcher and
// fetcher.HealthChecker against East Money's push2 quote API.
type Source struct {
	client *http.Client
	logger *zap.Logger
}

// New builds an East Money data source.
func New(client *http.Client, logger *zap.Logger) *Source {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{client: client, logger: logger}
}

func (s *Source) Name() fetcher.Name { return fetcher.NameEastmoney }

type klineResponse struct {
	Data struct {
		Klines []string `json:"klines"` // "date,open,close,high,low,volume,turnover,amplitude,changeRate,changeAmount,turnoverRate"
	} `json:"data"`
}

// secID maps a bare symbol to East Money's exchange-prefixed secid (0=SZ, 1=SH).
func secID(symbol string) string {
	if strings.HasPrefix(symbol, "6") {
		return "1." + symbol
	}
	return "0." + symbol
}

// FetchDailyBars retrieves bars for symbol over [startDate, endDate] (ISO dates),
// converting East Money's lot-denominated volume to shares.
func (s *Source) FetchDailyBars(ctx context.Context, symbol, startDate, endDate string) ([]types.OHLCVBar, error) {
	start := strings.ReplaceAll(startDate, "-", "")
	end := strings.ReplaceAll(endDate, "-", "")
	url := fmt.Sprintf("%s?secid=%s&klt=101&fqt=1&beg=%s&end=%s&fields1=f1,f2,f3&fields2=f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61",
		klineURL, secID(symbol), start, end)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewInternalError("build eastmoney request").WithCause(err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, types.NewUpstreamUnavailableError("eastmoney request failed").WithSource(string(s.Name())).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewUpstreamUnavailableError(fmt.Sprintf("eastmoney returned status %d", resp.StatusCode)).WithSource(string(s.Name()))
	}

	var parsed klineResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, types.NewUpstreamUnavailableError("eastmoney response decode failed").WithSource(string(s.Name())).WithCause(err)
	}

	bars := make([]types.OHLCVBar, 0, len(parsed.Data.Klines))
	for _, line := range parsed.Data.Klines {
		bar, err := parseKlineRow(symbol, line)
		if err != nil {
			s.logger.Warn("skipping malformed eastmoney row", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		bars = append(bars, bar)
	}

	if err := fetcher.ValidateOHLCVBars(s.Name(), bars); err != nil {
		return nil, err
	}
	return bars, nil
}

func parseKlineRow(symbol, line string) (types.OHLCVBar, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 11 {
		return types.OHLCVBar{}, fmt.Errorf("expected 11 fields, got %d", len(fields))
	}
	day, err := time.Parse("2006-01-02", fields[0])
	if err != nil {
		return types.OHLCVBar{}, err
	}
	return types.OHLCVBar{
		Symbol:       symbol,
		TradeDate:    day,
		Open:         parseFloat(fields[1]),
		Close:        parseFloat(fields[2]),
		High:         parseFloat(fields[3]),
		Low:          parseFloat(fields[4]),
		Volume:       int64(parseFloat(fields[5]) * lotToShares),
		Turnover:     parseFloat(fields[6]),
		Amplitude:    parseFloat(fields[7]),
		ChangeRate:   parseFloat(fields[8]),
		ChangeAmount: parseFloat(fields[9]),
		TurnoverRate: parseFloat(fields[10]),
		LastUpdate:   time.Now(),
	}, nil
}

func parseFloat(s string) float64 {
	var f float64
	_, _ = fmt.Sscanf(s, "%f", &f)
	return f
}

// GetAllStockBasicInfo is not implemented against the lightweight push2
// clist endpoint in this adapter; it returns an upstream-unavailable error
// so the router can fall through to another StockInfoFetcher.
func (s *Source) GetAllStockBasicInfo(ctx context.Context) ([]types.StockBasicInfo, error) {
	return nil, types.NewUpstreamUnavailableError("eastmoney bulk basic-info listing not wired").WithSource(string(s.Name()))
}

// GetStockBasicInfo fetches a single symbol's reference record.
func (s *Source) GetStockBasicInfo(ctx context.Context, exchange, symbol string) (*types.StockBasicInfo, error) {
	url := fmt.Sprintf("%s?secid=%s&fields=f57,f58,f59,f84,f85,f116,f117", infoURL, secID(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewInternalError("build eastmoney info request").WithCause(err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, types.NewUpstreamUnavailableError("eastmoney info request failed").WithSource(string(s.Name())).WithCause(err)
	}
	defer resp.Body.Close()

	var payload struct {
		Data struct {
			F57 string  `json:"f57"` // symbol
			F58 string  `json:"f58"` // name
			F84 float64 `json:"f84"` // total shares
			F85 float64 `json:"f85"` // float shares
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewUpstreamUnavailableError("eastmoney info decode failed").WithSource(string(s.Name())).WithCause(err)
	}

	return &types.StockBasicInfo{
		Symbol:      symbol,
		Exchange:    exchange,
		Name:        payload.Data.F58,
		TotalShares: payload.Data.F84,
		FloatShares: payload.Data.F85,
		LastUpdate:  time.Now(),
	}, nil
}

// HealthCheck issues a 1-day kline fetch for a well-known index to confirm reachability.
func (s *Source) HealthCheck(ctx context.Context) (*fetcher.HealthStatus, error) {
	start := time.Now()
	url := fmt.Sprintf("%s?secid=1.000001&klt=101&fqt=1&beg=20200101&end=20200102&fields1=f1&fields2=f51", klineURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &fetcher.HealthStatus{Healthy: false, CheckedAt: time.Now(), Err: err}, nil
	}
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return &fetcher.HealthStatus{Healthy: false, Latency: latency, CheckedAt: time.Now(), Err: err}, nil
	}
	defer resp.Body.Close()
	return &fetcher.HealthStatus{Healthy: resp.StatusCode == http.StatusOK, Latency: latency, CheckedAt: time.Now()}, nil
}
