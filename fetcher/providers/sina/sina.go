// Package sina adapts Sina Finance's public quote endpoints to the fetcher
// protocol. Sina is used as the primary day-bar source: cheap, no auth,
// reasonable history depth.
package sina

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tradinglab/stockfetch/fetcher"
	"github.com/tradinglab/stockfetch/types"
)

const defaultBaseURL = "https://quotes.sina.cn/cn/api/jsonp_v2.php/var/CN_MarketDataService.getKLineData"

// Source implements fetcher.DailyBarFetcher and fetcher.HealthChecker against
// the Sina Finance quote API.
type Source struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

// New builds a Sina data source with the given HTTP client and logger.
// A nil client falls back to a 10s-timeout default.
func New(client *http.Client, logger *zap.Logger) *Source {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{client: client, baseURL: defaultBaseURL, logger: logger}
}

func (s *Source) Name() fetcher.Name { return fetcher.NameSina }

type sinaBar struct {
	Day    string `json:"day"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

// FetchDailyBars retrieves bars for symbol over [startDate, endDate] (ISO dates).
func (s *Source) FetchDailyBars(ctx context.Context, symbol, startDate, endDate string) ([]types.OHLCVBar, error) {
	url := fmt.Sprintf("%s?symbol=%s&scale=240&datalen=1023", s.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewInternalError("build sina request").WithCause(err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, types.NewUpstreamUnavailableError("sina request failed").WithSource(string(s.Name())).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewUpstreamUnavailableError(fmt.Sprintf("sina returned status %d", resp.StatusCode)).WithSource(string(s.Name()))
	}

	var raw []sinaBar
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, types.NewUpstreamUnavailableError("sina response decode failed").WithSource(string(s.Name())).WithCause(err)
	}

	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return nil, types.NewValidationError("invalid startDate").WithCause(err)
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return nil, types.NewValidationError("invalid endDate").WithCause(err)
	}

	bars := make([]types.OHLCVBar, 0, len(raw))
	for _, r := range raw {
		day, err := time.Parse("2006-01-02", r.Day)
		if err != nil || day.Before(start) || day.After(end) {
			continue
		}
		open, _ := strconv.ParseFloat(r.Open, 64)
		high, _ := strconv.ParseFloat(r.High, 64)
		low, _ := strconv.ParseFloat(r.Low, 64)
		closePrice, _ := strconv.ParseFloat(r.Close, 64)
		volume, _ := strconv.ParseInt(r.Volume, 10, 64)

		bars = append(bars, types.OHLCVBar{
			Symbol:     symbol,
			TradeDate:  day,
			Open:       open,
			High:       high,
			Low:        low,
			Close:      closePrice,
			Volume:     volume,
			LastUpdate: time.Now(),
		})
	}

	if err := fetcher.ValidateOHLCVBars(s.Name(), bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// HealthCheck issues a tiny request against a well-known symbol to confirm reachability.
func (s *Source) HealthCheck(ctx context.Context) (*fetcher.HealthStatus, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?symbol=sh000001&scale=240&datalen=1", s.baseURL), nil)
	if err != nil {
		return &fetcher.HealthStatus{Healthy: false, CheckedAt: time.Now(), Err: err}, nil
	}
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return &fetcher.HealthStatus{Healthy: false, Latency: latency, CheckedAt: time.Now(), Err: err}, nil
	}
	defer resp.Body.Close()
	healthy := resp.StatusCode == http.StatusOK
	return &fetcher.HealthStatus{Healthy: healthy, Latency: latency, CheckedAt: time.Now()}, nil
}
