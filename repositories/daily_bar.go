package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tradinglab/stockfetch/types"
)

// dailyBarConflictColumns is the business unique key for stock_daily_data:
// one row per (symbol, trade_date), id is auto-increment and excluded.
var dailyBarConflictColumns = []string{"symbol", "trade_date"}

var dailyBarUpdateColumns = []string{
	"open_price", "close_price", "high_price", "low_price",
	"volume", "turnover", "amplitude", "change_rate", "change_amount",
	"turnover_rate", "last_update",
}

// DailyBarRepository persists and queries stock_daily_data.
type DailyBarRepository struct {
	db *gorm.DB
}

// NewDailyBarRepository builds a repository bound to db.
func NewDailyBarRepository(db *gorm.DB) *DailyBarRepository {
	return &DailyBarRepository{db: db}
}

// UpsertBar writes a single bar.
func (r *DailyBarRepository) UpsertBar(ctx context.Context, bar types.OHLCVBar) error {
	row := types.BarFromRow(bar)
	return Upsert(ctx, r.db, &row, dailyBarConflictColumns, dailyBarUpdateColumns)
}

// UpsertBars batch-writes bars, deduplicating nothing: callers are expected
// to have already merged/sorted/deduped via services/dailybar.
func (r *DailyBarRepository) UpsertBars(ctx context.Context, bars []types.OHLCVBar) error {
	if len(bars) == 0 {
		return nil
	}
	rows := make([]types.StockDailyData, len(bars))
	for i, b := range bars {
		rows[i] = types.BarFromRow(b)
	}
	return UpsertMany(ctx, r.db, rows, dailyBarConflictColumns, dailyBarUpdateColumns, 1000)
}

// ListRange returns every bar for symbol with trade_date in [start, end], ordered ascending.
func (r *DailyBarRepository) ListRange(ctx context.Context, symbol string, start, end time.Time) ([]types.OHLCVBar, error) {
	var rows []types.StockDailyData
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND trade_date BETWEEN ? AND ?", symbol, start, end).
		Order("trade_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, types.NewInternalError("list daily bars failed").WithCause(err)
	}

	bars := make([]types.OHLCVBar, len(rows))
	for i, row := range rows {
		bars[i] = row.ToBar()
	}
	return bars, nil
}

// ExtentAround returns the min/max cached trade_date within [start, end] for
// symbol, used to decide whether the cache fully covers the requested range.
// ok is false when no cached rows fall in the range at all.
func (r *DailyBarRepository) ExtentAround(ctx context.Context, symbol string, start, end time.Time) (minDate, maxDate time.Time, ok bool, err error) {
	var result struct {
		MinDate *time.Time
		MaxDate *time.Time
	}
	dbErr := r.db.WithContext(ctx).Model(&types.StockDailyData{}).
		Select("MIN(trade_date) as min_date, MAX(trade_date) as max_date").
		Where("symbol = ? AND trade_date BETWEEN ? AND ?", symbol, start, end).
		Scan(&result).Error
	if dbErr != nil {
		return time.Time{}, time.Time{}, false, types.NewInternalError("extent query failed").WithCause(dbErr)
	}
	if result.MinDate == nil || result.MaxDate == nil {
		return time.Time{}, time.Time{}, false, nil
	}
	return *result.MinDate, *result.MaxDate, true, nil
}
