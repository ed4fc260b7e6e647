package repository

import (
	"context"
	"fmt"

	"vcautotrade/internal/models"
)

// OrderRepository - ордера бота.
//
// Ключ ордера начинается с кода состояния, поэтому отслеживаемые ордера
// выбираются по префиксам UNK и ACT, а смена состояния требует удалить
// запись со старым ключом.
type OrderRepository struct {
	store RecordStore
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(store RecordStore) *OrderRepository {
	return &OrderRepository{store: store}
}

var trackedStates = []models.OrderState{models.OrderStateUnknown, models.OrderStateActive}

// Tracked возвращает ордера в состояниях UNKNOWN и ACTIVE
func (r *OrderRepository) Tracked(ctx context.Context, productID string) ([]models.SimpleOrder, error) {
	var orders []models.SimpleOrder
	for _, state := range trackedStates {
		recs, err := r.store.QueryPrefix(ctx, productID, KindOrder, state.Code(), QueryOptions{})
		if err != nil {
			return nil, fmt.Errorf("query %s orders: %w", state, err)
		}
		decoded, err := OrderCodec.DecodeAll(recs)
		if err != nil {
			return nil, err
		}
		orders = append(orders, decoded...)
	}
	return orders, nil
}

// Save записывает ордер. Если состояние изменилось относительно beforeState,
// сначала удаляется запись со старым ключом. Пустой beforeState - новый ордер.
func (r *OrderRepository) Save(ctx context.Context, order models.SimpleOrder, beforeState models.OrderState) error {
	if beforeState != "" && beforeState != order.State {
		oldKey := models.SortKeyForState(beforeState, order.OrderDate, order.ID)
		if err := r.store.Delete(ctx, order.ProductID, KindOrder, oldKey); err != nil {
			return fmt.Errorf("delete order %s under %s: %w", order.ID, oldKey, err)
		}
	}
	return putOne(ctx, r.store, OrderCodec, order.ProductID, order)
}

// DeleteTracked удаляет все записи UNKNOWN и ACTIVE ордеров продукта
func (r *OrderRepository) DeleteTracked(ctx context.Context, productID string) (int, error) {
	deleted := 0
	for _, state := range trackedStates {
		recs, err := r.store.QueryPrefix(ctx, productID, KindOrder, state.Code(), QueryOptions{})
		if err != nil {
			return deleted, err
		}
		for _, rec := range recs {
			if err := r.store.Delete(ctx, productID, KindOrder, rec.SortKey); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
	return deleted, nil
}
