package repository

import (
	"context"

	"vcautotrade/internal/models"
)

// LivenessRepository - отметки о запусках
type LivenessRepository struct {
	store RecordStore
}

// NewLivenessRepository создает новый экземпляр репозитория
func NewLivenessRepository(store RecordStore) *LivenessRepository {
	return &LivenessRepository{store: store}
}

// Save записывает отметку
func (r *LivenessRepository) Save(ctx context.Context, productID string, rec models.LivenessRecord) error {
	return putOne(ctx, r.store, LivenessCodec, productID, rec)
}

// Latest возвращает последнюю отметку или ErrRecordNotFound
func (r *LivenessRepository) Latest(ctx context.Context, productID string) (*models.LivenessRecord, error) {
	recs, err := r.store.QueryPrefix(ctx, productID, KindLiveness, "", QueryOptions{Limit: 1, Descending: true})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrRecordNotFound
	}
	rec, err := LivenessCodec.Decode(recs[0])
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PruneBefore удаляет не более limit отметок старше beforeMs
func (r *LivenessRepository) PruneBefore(ctx context.Context, productID string, beforeMs int64, limit int) (int, error) {
	recs, err := r.store.QueryRange(ctx, productID, KindLiveness, "0", millisKey(beforeMs-1), QueryOptions{Limit: limit})
	if err != nil {
		return 0, err
	}
	for i, rec := range recs {
		if err := r.store.Delete(ctx, productID, KindLiveness, rec.SortKey); err != nil {
			return i, err
		}
	}
	return len(recs), nil
}
