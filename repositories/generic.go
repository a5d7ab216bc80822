package repositories

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tradinglab/stockfetch/types"
)

// Upsert inserts obj, or updates updateColumns on conflictColumns when a row
// already matches. conflictColumns should name the table's business unique
// key, never an auto-increment primary key.
func Upsert[T any](ctx context.Context, db *gorm.DB, obj *T, conflictColumns []string, updateColumns []string) error {
	cols := make([]clause.Column, len(conflictColumns))
	for i, c := range conflictColumns {
		cols[i] = clause.Column{Name: c}
	}

	result := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   cols,
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}).Create(obj)
	if result.Error != nil {
		return types.NewInternalError("upsert failed").WithCause(result.Error)
	}
	return nil
}

// UpsertMany batches objs into chunks of batchSize and upserts each chunk,
// matching the reference implementation's batched bulk_upsert.
func UpsertMany[T any](ctx context.Context, db *gorm.DB, objs []T, conflictColumns []string, updateColumns []string, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	cols := make([]clause.Column, len(conflictColumns))
	for i, c := range conflictColumns {
		cols[i] = clause.Column{Name: c}
	}

	for start := 0; start < len(objs); start += batchSize {
		end := start + batchSize
		if end > len(objs) {
			end = len(objs)
		}
		chunk := objs[start:end]
		result := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   cols,
			DoUpdates: clause.AssignmentColumns(updateColumns),
		}).Create(&chunk)
		if result.Error != nil {
			return types.NewInternalError("bulk upsert failed").WithCause(result.Error)
		}
	}
	return nil
}

// Page is a paginated result set with its total row count.
type Page[T any] struct {
	Items []T
	Total int64
}

// ListPaged runs the rows query and a COUNT(*) query concurrently, matching
// the reference implementation's parallel-count pagination.
func ListPaged[T any](ctx context.Context, db *gorm.DB, scope func(*gorm.DB) *gorm.DB, offset, limit int) (Page[T], error) {
	var items []T
	var total int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q := scope(db.WithContext(gctx))
		return q.Offset(offset).Limit(limit).Find(&items).Error
	})
	g.Go(func() error {
		var model T
		q := scope(db.WithContext(gctx).Model(&model))
		return q.Count(&total).Error
	})

	if err := g.Wait(); err != nil {
		return Page[T]{}, types.NewInternalError("paginated list failed").WithCause(err)
	}
	return Page[T]{Items: items, Total: total}, nil
}
