package service

import (
	"context"

	"vcautotrade/internal/models"
)

// ContextRepositoryInterface определяет интерфейс репозитория контекстов
type ContextRepositoryInterface interface {
	Get(ctx context.Context, productID string) (*models.ProductContext, error)
	Load(ctx context.Context, productID string) (*models.ProductContext, error)
	Save(ctx context.Context, pc *models.ProductContext) error
}

// LivenessRepositoryInterface определяет интерфейс репозитория отметок о запусках
type LivenessRepositoryInterface interface {
	Latest(ctx context.Context, productID string) (*models.LivenessRecord, error)
}

// TradeReportRepositoryInterface определяет интерфейс репозитория отчетов о сделках
type TradeReportRepositoryInterface interface {
	Recent(ctx context.Context, productID string, limit int) ([]models.TradeReport, error)
}

// OrderRepositoryInterface определяет интерфейс репозитория ордеров
type OrderRepositoryInterface interface {
	DeleteTracked(ctx context.Context, productID string) (int, error)
}

// ContextServiceInterface - операции оператора над продуктами
type ContextServiceInterface interface {
	GetContext(ctx context.Context, productID string) (*models.ProductContext, error)
	PatchContext(ctx context.Context, productID string, patch ContextPatch) (*models.ProductContext, error)
	GetLiveness(ctx context.Context, productID string) (*models.LivenessRecord, error)
	GetTradeReports(ctx context.Context, productID string, limit int) ([]models.TradeReport, error)
}
