// Package tencent adapts Tencent Finance's public quote endpoints to the
// fetcher protocol. Used as a fallback day-bar source alongside sina/eastmoney.
package tencent

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

const baseURL = "https://web.ifzq.gtimg.cn/appstock/app/fqkline/get"

// Source implements fetcher.DailyBarFetcher and fetcher.HealthChecker against
// Tencent Finance's fqkline API.
type Source struct {
	client *http.Client
	logger *zap.Logger
}

// New builds a Tencent data source.
func New(client *http.Client, logger *zap.Logger) *Source {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{client: client, logger: logger}
}

func (s *Source) Name() fetcher.Name { return fetcher.NameTencent }

func prefixedSymbol(symbol string) string {
	if strings.HasPrefix(symbol, "6") {
		return "sh" + symbol
	}
	return "sz" + symbol
}

type fqklineResponse struct {
	Data map[string]struct {
		Day [][]string `json:"day"` // [date, open, close, high, low, volume]
	} `json:"data"`
}

// FetchDailyBars retrieves bars for symbol over [startDate, endDate] (ISO dates).
func (s *Source) FetchDailyBars(ctx context.Context, symbol, startDate, endDate string) ([]types.OHLCVBar, error) {
	sym := prefixedSymbol(symbol)
	url := fmt.Sprintf("%s?param=%s,day,%s,%s,640,qfq", baseURL, sym, startDate, endDate)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewInternalError("build tencent request").WithCause(err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, types.NewUpstreamUnavailableError("tencent request failed").WithSource(string(s.Name())).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewUpstreamUnavailableError(fmt.Sprintf("tencent returned status %d", resp.StatusCode)).WithSource(string(s.Name()))
	}

	var parsed fqklineResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, types.NewUpstreamUnavailableError("tencent response decode failed").WithSource(string(s.Name())).WithCause(err)
	}

	entry, ok := parsed.Data[sym]
	if !ok {
		return nil, nil
	}

	bars := make([]types.OHLCVBar, 0, len(entry.Day))
	for _, row := range entry.Day {
		if len(row) < 6 {
			continue
		}
		day, err := time.Parse("2006-01-02", row[0])
		if err != nil {
			s.logger.Warn("skipping malformed tencent row", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		bars = append(bars, types.OHLCVBar{
			Symbol:     symbol,
			TradeDate:  day,
			Open:       parseFloat(row[1]),
			Close:      parseFloat(row[2]),
			High:       parseFloat(row[3]),
			Low:        parseFloat(row[4]),
			Volume:     int64(parseFloat(row[5])),
			LastUpdate: time.Now(),
		})
	}

	if err := fetcher.ValidateOHLCVBars(s.Name(), bars); err != nil {
		return nil, err
	}
	return bars, nil
}

func parseFloat(s string) float64 {
	var f float64
	_, _ = fmt.Sscanf(s, "%f", &f)
	return f
}

// HealthCheck issues a tiny range fetch for a well-known symbol.
func (s *Source) HealthCheck(ctx context.Context) (*fetcher.HealthStatus, error) {
	start := time.Now()
	url := fmt.Sprintf("%s?param=sh000001,day,2020-01-01,2020-01-02,1,qfq", baseURL)
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
