package models

// TradeFill - одна сторона закрытой сделки
type TradeFill struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
	Amount    float64 `json:"amount"`
}

// TradeReport - отчет о закрытом цикле покупка/продажа
type TradeReport struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	Buy        TradeFill `json:"buy"`
	Sell       TradeFill `json:"sell"`
	IsStopLoss bool      `json:"is_stop_loss"`
}

// Profit - результат сделки в валюте расчетов
func (r TradeReport) Profit() float64 {
	return r.Sell.Price*r.Sell.Amount - r.Buy.Price*r.Buy.Amount
}

// LivenessRecord - отметка о запуске для мониторинга
type LivenessRecord struct {
	IsExecuteMain bool  `json:"is_execute_main"`
	IsExecuteLast bool  `json:"is_execute_last"`
	Timestamp     int64 `json:"timestamp"`
}
