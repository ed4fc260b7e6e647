package models

// Execution представляет одну публичную сделку на бирже
type Execution struct {
	ID            int64   `json:"id"`
	Price         float64 `json:"price"`
	Side          string  `json:"side"` // BUY, SELL или пусто (аукцион)
	Size          float64 `json:"size"`
	ExecutionDate int64   `json:"execution_date"` // unix ms
}

// ExecutionAggregated - агрегат сделок за один слот (10 секунд или 1 час).
//
// Price - средневзвешенная по объему цена; при TotalSize == 0 цена равна 0.
// BuySize + SellSize может быть меньше TotalSize: сделки без стороны
// учитываются только в общем объеме.
type ExecutionAggregated struct {
	Timestamp int64   `json:"timestamp"` // начало слота, unix ms
	Price     float64 `json:"price"`
	BuySize   float64 `json:"buy_size"`
	SellSize  float64 `json:"sell_size"`
	TotalSize float64 `json:"total_size"`
}

// Стороны сделки и ордера
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)
