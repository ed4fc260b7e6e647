package bot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vcautotrade/internal/exchange"
	"vcautotrade/internal/models"
	"vcautotrade/pkg/utils"
)

// TrackedOrder - ордер после сверки вместе с состоянием, под которым он был сохранен.
// Пустой BeforeState - ордер создан в этом цикле.
type TrackedOrder struct {
	Order       models.SimpleOrder
	BeforeState models.OrderState
}

// TrackedOrderStore - хранилище отслеживаемых ордеров
type TrackedOrderStore interface {
	Tracked(ctx context.Context, productID string) ([]models.SimpleOrder, error)
}

// OrderFetcher - запрос актуального состояния ордеров на бирже
type OrderFetcher interface {
	FetchOrders(ctx context.Context, productCode string, orderIDs []string) ([]exchange.OrderReport, error)
}

// Reconciler сводит ордера из хранилища с отчетом биржи
type Reconciler struct {
	store   TrackedOrderStore
	fetcher OrderFetcher
	logger  *utils.Logger
}

// NewReconciler создает новый экземпляр
func NewReconciler(store TrackedOrderStore, fetcher OrderFetcher, logger *utils.Logger) *Reconciler {
	return &Reconciler{store: store, fetcher: fetcher, logger: logger}
}

// Load читает отслеживаемые ордера и сверяет их с биржей.
//
// Ошибка хранилища возвращается: без списка ордеров решения принимать нельзя.
// Ошибка биржи только логируется, ордера остаются как были сохранены.
func (r *Reconciler) Load(ctx context.Context, product models.ProductSetting) ([]TrackedOrder, error) {
	tracked, err := r.store.Tracked(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("load tracked orders: %w", err)
	}
	if len(tracked) == 0 {
		return nil, nil
	}

	ids := make([]string, len(tracked))
	for i, o := range tracked {
		ids[i] = o.ID
	}

	reports, err := r.fetcher.FetchOrders(ctx, product.ProductCode, ids)
	if err != nil {
		r.logger.Warn("exchange order query failed, keeping stored state",
			zap.Int("orders", len(ids)),
			zap.Error(err),
		)
		reports = nil
	}

	return Reconcile(tracked, reports), nil
}

// Reconcile применяет отчет биржи к каждому ордеру поле за полем.
// Ордер без отчета остается без изменений.
func Reconcile(tracked []models.SimpleOrder, reports []exchange.OrderReport) []TrackedOrder {
	byID := make(map[string]exchange.OrderReport, len(reports))
	for _, r := range reports {
		byID[r.ID] = r
	}

	out := make([]TrackedOrder, 0, len(tracked))
	for _, o := range tracked {
		item := TrackedOrder{Order: o, BeforeState: o.State}
		if r, ok := byID[o.ID]; ok {
			applyReport(&item.Order, r)
		}
		out = append(out, item)
	}
	return out
}

// applyReport не переводит ордер в COMPLETED без средней цены:
// такой отчет пропускается, ордер остается прежним до следующей сверки.
func applyReport(o *models.SimpleOrder, r exchange.OrderReport) {
	if r.State == models.OrderStateCompleted && r.AveragePrice <= 0 && o.Main.AveragePrice <= 0 {
		return
	}
	o.State = r.State
	if r.AveragePrice > 0 {
		o.Main.AveragePrice = r.AveragePrice
	}
	o.ExecutedSize = r.ExecutedSize
	o.CancelledSize = r.CancelledSize
	o.OutstandingSize = r.OutstandingSize
}

// Violation - ордер, который бот не ожидает
type Violation struct {
	OrderID string
	State   models.OrderState
	Source  string // "store" или "exchange"
}

func (v Violation) Error() string {
	return fmt.Sprintf("%v: %s order %s reported by %s", ErrOutOfManagement, v.State, v.OrderID, v.Source)
}

func (v Violation) Unwrap() error { return ErrOutOfManagement }

// FindOutOfManagement ищет живые ордера, отличные от ожидаемого expectedID:
// среди сверенных ордеров хранилища и среди открытых ордеров биржи.
func FindOutOfManagement(orders []TrackedOrder, open []exchange.OrderReport, expectedID string) []Violation {
	var violations []Violation
	known := make(map[string]struct{}, len(orders))

	for _, t := range orders {
		known[t.Order.ID] = struct{}{}
		if t.Order.ID != expectedID && t.Order.State.IsLive() {
			violations = append(violations, Violation{OrderID: t.Order.ID, State: t.Order.State, Source: "store"})
		}
	}

	for _, r := range open {
		if r.ID == expectedID {
			continue
		}
		// Уже учтен как нарушение хранилища или завершен по данным сверки
		if _, ok := known[r.ID]; ok {
			continue
		}
		violations = append(violations, Violation{OrderID: r.ID, State: r.State, Source: "exchange"})
	}

	return violations
}
