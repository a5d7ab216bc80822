package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/tradinglab/stockfetch/types"
)

// BacktestStatsRepository persists and queries backtest_stats. Rows are
// append-only run records, so writes are plain creates rather than upserts.
type BacktestStatsRepository struct {
	db *gorm.DB
}

// NewBacktestStatsRepository builds a repository bound to db.
func NewBacktestStatsRepository(db *gorm.DB) *BacktestStatsRepository {
	return &BacktestStatsRepository{db: db}
}

// Create persists a new backtest run summary.
func (r *BacktestStatsRepository) Create(ctx context.Context, stats *types.BacktestStats) error {
	if err := r.db.WithContext(ctx).Create(stats).Error; err != nil {
		return types.NewInternalError("create backtest stats failed").WithCause(err)
	}
	return nil
}

// ListBySymbol returns a paginated listing of runs for symbol, most recent first.
func (r *BacktestStatsRepository) ListBySymbol(ctx context.Context, symbol string, offset, limit int) (Page[types.BacktestStats], error) {
	scope := func(q *gorm.DB) *gorm.DB {
		return q.Where("symbol = ?", symbol).Order("created_at DESC")
	}
	return ListPaged[types.BacktestStats](ctx, r.db, scope, offset, limit)
}
