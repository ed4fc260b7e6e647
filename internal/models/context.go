package models

// OrderPhase - фаза торгового цикла продукта
type OrderPhase string

// Фазы цикла
const (
	PhaseBuy      OrderPhase = "Buy"
	PhaseSell     OrderPhase = "Sell"
	PhaseStopLoss OrderPhase = "StopLoss"
	PhaseWait     OrderPhase = "Wait"
)

// LastExecution - курсор последней обработанной сделки
type LastExecution struct {
	ID        int64 `json:"id"`
	Timestamp int64 `json:"timestamp"`
}

// BuyOrderInfo - данные исполненной покупки для отчета о сделке
type BuyOrderInfo struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
	Amount    float64 `json:"amount"`
}

// ExecutionSetting - переключатели оператора
type ExecutionSetting struct {
	ExecutePhase bool `json:"execute_phase"` // агрегация, сверка и принятие решений
	ExecuteMain  bool `json:"execute_main"`  // принятие решений
	MakeNewOrder bool `json:"make_new_order"`
}

// ProductContext - рабочее состояние продукта между запусками.
//
// Читается в начале запуска, изменяется на месте и записывается
// одной пачкой в конце.
type ProductContext struct {
	ProductID         string           `json:"product_id"`
	LastExecution     *LastExecution   `json:"last_execution,omitempty"`
	OrderPhase        OrderPhase       `json:"order_phase"`
	AfterSendOrder    bool             `json:"after_send_order"`
	OrderID           string           `json:"order_id,omitempty"`
	BuyOrderPrice     float64          `json:"buy_order_price,omitempty"`
	BuyOrderInfo      *BuyOrderInfo    `json:"buy_order_info,omitempty"`
	StartBuyTimestamp int64            `json:"start_buy_timestamp,omitempty"`
	ExecutionSetting  ExecutionSetting `json:"execution_setting"`
}

// NewProductContext - контекст для продукта без сохраненного состояния:
// фаза Buy, все переключатели выключены.
func NewProductContext(productID string) *ProductContext {
	return &ProductContext{
		ProductID:  productID,
		OrderPhase: PhaseBuy,
	}
}

// Clone возвращает глубокую копию
func (c *ProductContext) Clone() *ProductContext {
	cp := *c
	if c.LastExecution != nil {
		le := *c.LastExecution
		cp.LastExecution = &le
	}
	if c.BuyOrderInfo != nil {
		bi := *c.BuyOrderInfo
		cp.BuyOrderInfo = &bi
	}
	return &cp
}
