package repository

import (
	"context"

	"vcautotrade/internal/models"
)

// TradeReportRepository - отчеты о закрытых сделках
type TradeReportRepository struct {
	store RecordStore
}

// NewTradeReportRepository создает новый экземпляр репозитория
func NewTradeReportRepository(store RecordStore) *TradeReportRepository {
	return &TradeReportRepository{store: store}
}

// Save записывает отчет
func (r *TradeReportRepository) Save(ctx context.Context, report models.TradeReport) error {
	return putOne(ctx, r.store, TradeReportCodec, report.ProductID, report)
}

// Recent возвращает последние отчеты, новые первыми
func (r *TradeReportRepository) Recent(ctx context.Context, productID string, limit int) ([]models.TradeReport, error) {
	recs, err := r.store.QueryPrefix(ctx, productID, KindTradeReport, "", QueryOptions{Limit: limit, Descending: true})
	if err != nil {
		return nil, err
	}
	return TradeReportCodec.DecodeAll(recs)
}
