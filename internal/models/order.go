package models

import "strconv"

// OrderState - состояние ордера, синхронизируемое с биржей
type OrderState string

// Состояния ордера. UNKNOWN и ACTIVE - отслеживаемые (живые),
// COMPLETED и INVALID - архивные.
const (
	OrderStateUnknown   OrderState = "UNKNOWN"
	OrderStateActive    OrderState = "ACTIVE"
	OrderStateCompleted OrderState = "COMPLETED"
	OrderStateInvalid   OrderState = "INVALID"
)

// Code возвращает трехбуквенный префикс ключа сортировки
func (s OrderState) Code() string {
	switch s {
	case OrderStateActive:
		return "ACT"
	case OrderStateCompleted:
		return "COM"
	case OrderStateInvalid:
		return "INV"
	default:
		return "UNK"
	}
}

// IsLive - ордер еще может исполниться на бирже
func (s OrderState) IsLive() bool {
	return s == OrderStateUnknown || s == OrderStateActive
}

// Типы ордеров
const (
	OrderTypeLimit  = "LIMIT"
	OrderTypeMarket = "MARKET"
)

// OrderMain - параметры заявки
type OrderMain struct {
	OrderType    string  `json:"order_type"`
	Side         string  `json:"side"`
	Size         float64 `json:"size"`
	Price        float64 `json:"price,omitempty"`         // 0 для рыночного ордера
	AveragePrice float64 `json:"average_price,omitempty"` // известна после исполнения
}

// SimpleOrder - ордер, который отслеживает бот.
//
// ID имеет префикс биржи ("GMO-123"), ExchangeOrderID - идентификатор на бирже.
// Ордер создается в состоянии UNKNOWN и меняет состояние только по результатам сверки.
type SimpleOrder struct {
	ID              string     `json:"id"`
	ExchangeOrderID string     `json:"exchange_order_id"`
	ProductID       string     `json:"product_id"`
	OrderDate       int64      `json:"order_date"` // unix ms
	State           OrderState `json:"state"`
	Main            OrderMain  `json:"main"`

	ExecutedSize    float64 `json:"executed_size"`
	CancelledSize   float64 `json:"cancelled_size"`
	OutstandingSize float64 `json:"outstanding_size"`
}

// SortKey - ключ хранения: код состояния + дата ордера + id.
// Смена состояния меняет ключ, поэтому старую запись нужно удалить.
func (o *SimpleOrder) SortKey() string {
	return SortKeyForState(o.State, o.OrderDate, o.ID)
}

// SortKeyForState строит ключ ордера для произвольного состояния
func SortKeyForState(state OrderState, orderDate int64, id string) string {
	return state.Code() + strconv.FormatInt(orderDate, 10) + id
}
