package utils

import (
	"github.com/shopspring/decimal"
)

// math.go - округление объемов и цен ордеров.
//
// Все вычисления идут через decimal: float64 дает 0.30000000000000004
// там, где биржа ждет ровно 0.3.

// sizePrecision - точность объема, которую принимает биржа
const sizePrecision = 9

// OrderSizeFromUnits возвращает объем ордера units * orderUnit,
// округленный до 9 знаков.
//
// Примеры:
//   - OrderSizeFromUnits(5, 0.0001) = 0.0005
//   - OrderSizeFromUnits(3, 0.1) = 0.3
func OrderSizeFromUnits(units int64, orderUnit float64) float64 {
	size := decimal.NewFromInt(units).Mul(decimal.NewFromFloat(orderUnit)).Round(sizePrecision)
	return size.InexactFloat64()
}

// FloorToUnits возвращает количество целых orderUnit в value (округление вниз).
// При orderUnit <= 0 возвращает 0.
func FloorToUnits(value, orderUnit float64) int64 {
	if orderUnit <= 0 {
		return 0
	}
	return decimal.NewFromFloat(value).Div(decimal.NewFromFloat(orderUnit)).Floor().IntPart()
}

// ApplyRate возвращает value * (1 + rate), округленное вниз до places знаков.
//
// Пример: ApplyRate(1000, 0.005, 0) = 1005
func ApplyRate(value, rate float64, places int32) float64 {
	v := decimal.NewFromFloat(value).Mul(decimal.NewFromFloat(1).Add(decimal.NewFromFloat(rate)))
	if v.IsNegative() {
		return v.Round(places).InexactFloat64()
	}
	return v.Truncate(places).InexactFloat64()
}

// WeightedAverage - средневзвешенная цена (VWAP).
// Возвращает 0 при пустом списке или нулевом суммарном объеме.
func WeightedAverage(prices, sizes []float64) float64 {
	if len(prices) != len(sizes) || len(prices) == 0 {
		return 0
	}
	var sum, total float64
	for i := range prices {
		sum += prices[i] * sizes[i]
		total += sizes[i]
	}
	if total == 0 {
		return 0
	}
	return sum / total
}
