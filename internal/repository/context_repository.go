package repository

import (
	"context"
	"errors"

	"vcautotrade/internal/models"
)

// ContextRepository - контексты продуктов
type ContextRepository struct {
	store RecordStore
}

// NewContextRepository создает новый экземпляр репозитория
func NewContextRepository(store RecordStore) *ContextRepository {
	return &ContextRepository{store: store}
}

// Get возвращает сохраненный контекст или ErrRecordNotFound
func (r *ContextRepository) Get(ctx context.Context, productID string) (*models.ProductContext, error) {
	pc, err := getOne(ctx, r.store, ContextCodec, productID, contextSortKey)
	if err != nil {
		return nil, err
	}
	pc.ProductID = productID
	return &pc, nil
}

// Load возвращает контекст; для нового продукта - контекст по умолчанию
func (r *ContextRepository) Load(ctx context.Context, productID string) (*models.ProductContext, error) {
	pc, err := r.Get(ctx, productID)
	if errors.Is(err, ErrRecordNotFound) {
		return models.NewProductContext(productID), nil
	}
	return pc, err
}

// Save записывает один контекст
func (r *ContextRepository) Save(ctx context.Context, pc *models.ProductContext) error {
	return putOne(ctx, r.store, ContextCodec, pc.ProductID, *pc)
}

// SaveAll записывает контексты всех продуктов одной пачкой
func (r *ContextRepository) SaveAll(ctx context.Context, contexts []*models.ProductContext) error {
	recs := make([]Record, 0, len(contexts))
	for _, pc := range contexts {
		rec, err := ContextCodec.Encode(pc.ProductID, *pc)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	return r.store.PutBatch(ctx, recs)
}
