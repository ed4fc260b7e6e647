package exchange

import (
	"context"
	"errors"

	"vcautotrade/internal/models"
)

// Exchange - операции биржи, нужные торговому циклу.
//
// Все методы принимают код продукта биржи ("BTC"), а идентификаторы
// ордеров - в формате бота с префиксом биржи ("GMO-123").
type Exchange interface {
	// GetName возвращает код биржи ("GMO")
	GetName() string

	// GetStatus возвращает статус биржи (StatusOpen, если торговля доступна)
	GetStatus(ctx context.Context) (string, error)

	// FetchExecutionsSince загружает публичные сделки с момента sinceMs (unix ms).
	// Биржа отдает данные от новых к старым, поэтому загрузка идет страницами назад
	// до первой страницы, чья самая старая сделка раньше sinceMs (не более лимита страниц).
	FetchExecutionsSince(ctx context.Context, productCode string, sinceMs int64) ([]models.Execution, error)

	// FetchOrders запрашивает актуальное состояние ордеров по их id.
	// Ордера, о которых биржа не сообщила, в результат не попадают.
	FetchOrders(ctx context.Context, productCode string, orderIDs []string) ([]OrderReport, error)

	// FetchOpenOrders возвращает все открытые ордера продукта на бирже
	FetchOpenOrders(ctx context.Context, productCode string) ([]OrderReport, error)

	// PlaceOrder выставляет ордер. Никогда не повторяется автоматически.
	PlaceOrder(ctx context.Context, req OrderRequest) (*models.SimpleOrder, error)

	// CancelOrder отменяет ордер
	CancelOrder(ctx context.Context, orderID string) error

	// FetchBalances возвращает остатки по всем валютам
	FetchBalances(ctx context.Context) ([]models.Balance, error)
}

// OrderRequest - параметры нового ордера
type OrderRequest struct {
	ProductID   string
	ProductCode string
	OrderType   string // models.OrderTypeLimit / models.OrderTypeMarket
	Side        string // models.SideBuy / models.SideSell
	Size        float64
	Price       float64 // только для LIMIT
}

// OrderReport - состояние ордера по данным биржи
type OrderReport struct {
	ID              string
	State           models.OrderState
	AveragePrice    float64 // 0, если неизвестна
	ExecutedSize    float64
	CancelledSize   float64
	OutstandingSize float64
}

// StatusOpen - биржа принимает ордера
const StatusOpen = "OPEN"

// Ошибки клиента биржи
var (
	ErrInvalidOrderID = errors.New("order id does not belong to this exchange")
	ErrInvalidRequest = errors.New("invalid order request")
	ErrNoFills        = errors.New("executed order has no fills yet")
)

// ExchangeError представляет ошибку от биржи
type ExchangeError struct {
	Exchange string
	Code     string
	Message  string
	Original error
}

func (e *ExchangeError) Error() string {
	if e.Code != "" {
		return e.Exchange + ": " + e.Code + " " + e.Message
	}
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *ExchangeError) Unwrap() error {
	return e.Original
}
