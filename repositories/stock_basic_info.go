package repositories

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tradinglab/stockfetch/types"
)

var basicInfoConflictColumns = []string{"symbol"}

var basicInfoUpdateColumns = []string{
	"exchange", "section", "stock_type", "name", "listing_date", "industry",
	"total_shares", "float_shares", "total_market_value", "float_market_value",
	"last_update",
}

// StockBasicInfoRepository persists and queries stock_basic_info.
type StockBasicInfoRepository struct {
	db *gorm.DB
}

// NewStockBasicInfoRepository builds a repository bound to db.
func NewStockBasicInfoRepository(db *gorm.DB) *StockBasicInfoRepository {
	return &StockBasicInfoRepository{db: db}
}

// Upsert writes a single record.
func (r *StockBasicInfoRepository) Upsert(ctx context.Context, info types.StockBasicInfo) error {
	return Upsert(ctx, r.db, &info, basicInfoConflictColumns, basicInfoUpdateColumns)
}

// UpsertMany batch-writes records.
func (r *StockBasicInfoRepository) UpsertMany(ctx context.Context, infos []types.StockBasicInfo) error {
	if len(infos) == 0 {
		return nil
	}
	return UpsertMany(ctx, r.db, infos, basicInfoConflictColumns, basicInfoUpdateColumns, 1000)
}

// GetBySymbol looks up one record by its primary key.
func (r *StockBasicInfoRepository) GetBySymbol(ctx context.Context, symbol string) (*types.StockBasicInfo, error) {
	var info types.StockBasicInfo
	err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&info).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, types.NewResourceNotFoundError("stock not found: " + symbol)
		}
		return nil, types.NewInternalError("get stock basic info failed").WithCause(err)
	}
	return &info, nil
}

// List returns a keyword-filtered, paginated listing ordered by symbol.
// keyword matches against symbol or name (case-insensitive substring).
func (r *StockBasicInfoRepository) List(ctx context.Context, keyword string, offset, limit int) (Page[types.StockBasicInfo], error) {
	scope := func(q *gorm.DB) *gorm.DB {
		if keyword == "" {
			return q.Order("symbol ASC")
		}
		like := "%" + strings.ToLower(keyword) + "%"
		return q.Where("LOWER(symbol) LIKE ? OR LOWER(name) LIKE ?", like, like).Order("symbol ASC")
	}
	return ListPaged[types.StockBasicInfo](ctx, r.db, scope, offset, limit)
}
