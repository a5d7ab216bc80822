package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/tradinglab/stockfetch/types"
)

var industryConflictColumns = []string{"industry_code"}

var industryUpdateColumns = []string{
	"name", "level", "parent_code", "component_count",
	"pe_ratio", "pe_ratio_ttm", "pb_ratio", "dividend_yield",
}

var industryMappingConflictColumns = []string{"symbol", "industry_code"}
var industryMappingUpdateColumns = []string{"is_main"}

// StockIndustryRepository persists and queries stock_industry and
// stock_industry_mapping.
type StockIndustryRepository struct {
	db *gorm.DB
}

// NewStockIndustryRepository builds a repository bound to db.
func NewStockIndustryRepository(db *gorm.DB) *StockIndustryRepository {
	return &StockIndustryRepository{db: db}
}

// UpsertIndustries batch-writes industry classification nodes.
func (r *StockIndustryRepository) UpsertIndustries(ctx context.Context, industries []types.StockIndustry) error {
	if len(industries) == 0 {
		return nil
	}
	return UpsertMany(ctx, r.db, industries, industryConflictColumns, industryUpdateColumns, 1000)
}

// UpsertMappings batch-writes symbol-to-industry links.
func (r *StockIndustryRepository) UpsertMappings(ctx context.Context, mappings []types.StockIndustryMapping) error {
	if len(mappings) == 0 {
		return nil
	}
	return UpsertMany(ctx, r.db, mappings, industryMappingConflictColumns, industryMappingUpdateColumns, 1000)
}

// ConstituentsOf returns every symbol mapped to industryCode.
func (r *StockIndustryRepository) ConstituentsOf(ctx context.Context, industryCode string) ([]types.StockIndustryMapping, error) {
	var rows []types.StockIndustryMapping
	err := r.db.WithContext(ctx).Where("industry_code = ?", industryCode).Find(&rows).Error
	if err != nil {
		return nil, types.NewInternalError("list industry constituents failed").WithCause(err)
	}
	return rows, nil
}

// Children returns the direct child nodes of parentCode in the classification tree.
func (r *StockIndustryRepository) Children(ctx context.Context, parentCode string) ([]types.StockIndustry, error) {
	var rows []types.StockIndustry
	err := r.db.WithContext(ctx).Where("parent_code = ?", parentCode).Find(&rows).Error
	if err != nil {
		return nil, types.NewInternalError("list industry children failed").WithCause(err)
	}
	return rows, nil
}
