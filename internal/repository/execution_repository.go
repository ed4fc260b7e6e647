package repository

import (
	"context"

	"vcautotrade/internal/models"
)

// ExecutionRepository - короткие (10 секунд) и длинные (1 час) агрегаты сделок
type ExecutionRepository struct {
	store RecordStore
}

// NewExecutionRepository создает новый экземпляр репозитория
func NewExecutionRepository(store RecordStore) *ExecutionRepository {
	return &ExecutionRepository{store: store}
}

// ShortBuckets возвращает короткие агрегаты из записей с ключом в [fromMs, toMs]
// в порядке возрастания времени
func (r *ExecutionRepository) ShortBuckets(ctx context.Context, productID string, fromMs, toMs int64) ([]models.ExecutionAggregated, error) {
	recs, err := r.store.QueryRange(ctx, productID, KindShortExecution, millisKey(fromMs), millisKey(toMs), QueryOptions{})
	if err != nil {
		return nil, err
	}

	batches, err := ShortExecutionCodec.DecodeAll(recs)
	if err != nil {
		return nil, err
	}

	var out []models.ExecutionAggregated
	for _, batch := range batches {
		out = append(out, batch...)
	}
	return out, nil
}

// SaveShortBuckets сохраняет минутную пачку коротких агрегатов
func (r *ExecutionRepository) SaveShortBuckets(ctx context.Context, productID string, buckets []models.ExecutionAggregated) error {
	return putOne(ctx, r.store, ShortExecutionCodec, productID, buckets)
}

// LongBuckets возвращает часовые агрегаты с ключом в [fromMs, toMs] по возрастанию
func (r *ExecutionRepository) LongBuckets(ctx context.Context, productID string, fromMs, toMs int64) ([]models.ExecutionAggregated, error) {
	recs, err := r.store.QueryRange(ctx, productID, KindLongExecution, millisKey(fromMs), millisKey(toMs), QueryOptions{})
	if err != nil {
		return nil, err
	}
	return LongExecutionCodec.DecodeAll(recs)
}

// SaveLongBucket сохраняет часовой агрегат
func (r *ExecutionRepository) SaveLongBucket(ctx context.Context, productID string, bucket models.ExecutionAggregated) error {
	return putOne(ctx, r.store, LongExecutionCodec, productID, bucket)
}
