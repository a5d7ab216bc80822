package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tradinglab/stockfetch/fetcher/manager"
	"github.com/tradinglab/stockfetch/repositories"
	"github.com/tradinglab/stockfetch/services/dailybar"
	"github.com/tradinglab/stockfetch/types"
)

// Built-in job ids, registered by cmd/stockfetch at startup.
const (
	JobUpdateStockBasicInfo = "update_stock_basic_info"
	JobUpdateStockDaily     = "update_stock_daily"
)

// UpdateStockBasicInfoJob declares the nightly full refresh of stock_basic_info.
func UpdateStockBasicInfoJob() types.Job {
	return types.Job{
		ID:         JobUpdateStockBasicInfo,
		CronExpr:   "0 0 * * *",
		Executor:   string(ExecutorAsync),
		RunOnStart: true,
		Enabled:    true,
	}
}

// UpdateStockDailyJob declares the weekday-afternoon refresh of stock_daily_data,
// timed after the China A-share market close (15:00 Asia/Shanghai, 16:00 buffer).
func UpdateStockDailyJob() types.Job {
	return types.Job{
		ID:         JobUpdateStockDaily,
		CronExpr:   "0 16 * * 1-5",
		Executor:   string(ExecutorThread),
		RunOnStart: false,
		Enabled:    true,
	}
}

// NewUpdateStockBasicInfoFunc builds the work function for JobUpdateStockBasicInfo:
// pull the full listing from the registry and upsert it.
func NewUpdateStockBasicInfoFunc(mgr *manager.Manager, repo *repositories.StockBasicInfoRepository, logger *zap.Logger) JobFunc {
	return func(ctx context.Context) error {
		infos, err := manager.FetchAllStockBasicInfo(ctx, mgr)
		if err != nil {
			return err
		}
		if err := repo.UpsertMany(ctx, infos); err != nil {
			return err
		}
		logger.Info("stock basic info refreshed", zap.Int("count", len(infos)))
		return nil
	}
}

// NewUpdateStockDailyFunc builds the work function for JobUpdateStockDaily:
// for every known symbol, refresh the last calendar year of daily bars
// through the gap-aware cache service.
func NewUpdateStockDailyFunc(basicRepo *repositories.StockBasicInfoRepository, bars *dailybar.Service, logger *zap.Logger) JobFunc {
	return func(ctx context.Context) error {
		const pageSize = 500
		end := time.Now().Format("2006-01-02")
		start := time.Now().AddDate(-1, 0, 0).Format("2006-01-02")

		offset := 0
		refreshed := 0
		for {
			page, err := basicRepo.List(ctx, "", offset, pageSize)
			if err != nil {
				return err
			}
			if len(page.Items) == 0 {
				break
			}
			for _, info := range page.Items {
				if _, err := bars.GetDailyBars(ctx, info.Symbol, start, end); err != nil {
					logger.Warn("daily bar refresh failed for symbol", zap.String("symbol", info.Symbol), zap.Error(err))
					continue
				}
				refreshed++
			}
			offset += pageSize
			if int64(offset) >= page.Total {
				break
			}
		}
		logger.Info("stock daily data refreshed", zap.Int("symbols", refreshed))
		return nil
	}
}
