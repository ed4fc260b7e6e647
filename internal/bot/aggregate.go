package bot

import (
	"fmt"

	"vcautotrade/internal/models"
)

// AggregateResult - новые агрегаты одного запуска
type AggregateResult struct {
	Short []models.ExecutionAggregated // ровно ShortSlotsPerMinute слотов предыдущей минуты
	Long  *models.ExecutionAggregated  // nil, если часовой агрегат не нужен или не набран
}

// AggregateShort сворачивает сделки одного слота в агрегат.
// Цена - средневзвешенная по объему, 0 при пустом слоте.
func AggregateShort(executions []models.Execution, start int64) models.ExecutionAggregated {
	agg := models.ExecutionAggregated{Timestamp: start}
	var notional float64
	for _, e := range executions {
		notional += e.Price * e.Size
		agg.TotalSize += e.Size
		switch e.Side {
		case models.SideBuy:
			agg.BuySize += e.Size
		case models.SideSell:
			agg.SellSize += e.Size
		}
	}
	if agg.TotalSize != 0 {
		agg.Price = notional / agg.TotalSize
	}
	return agg
}

// Aggregate строит короткие агрегаты предыдущей минуты и, если нужно, часовой агрегат
// предыдущего часа.
//
// Пропуски внутри окна не заполняются: пустой слот остается с нулевым объемом.
// ErrZeroLiquidity возвращается вместе с короткими агрегатами - они остаются валидными.
func Aggregate(executions []models.Execution, priorShort, priorLong []models.ExecutionAggregated, std StandardTime) (AggregateResult, error) {
	var res AggregateResult

	slot := ShortInterval.Milliseconds()
	from := std.MinuteBefore()
	res.Short = make([]models.ExecutionAggregated, 0, ShortSlotsPerMinute)
	for i := 0; i < ShortSlotsPerMinute; i++ {
		start := from + int64(i)*slot
		res.Short = append(res.Short, AggregateShort(executionsIn(executions, start, start+slot), start))
	}

	hourStart := std.HourBefore()
	if n := len(priorLong); n > 0 && priorLong[n-1].Timestamp == hourStart {
		return res, nil
	}

	long, covered := sumHour(priorShort, res.Short, hourStart, std.Hour())
	if covered < LongMinCoveredSlots {
		return res, nil
	}
	if long.TotalSize == 0 {
		return res, fmt.Errorf("%w: hour %d, %d slots", ErrZeroLiquidity, hourStart, covered)
	}
	long.Price /= long.TotalSize
	res.Long = &long
	return res, nil
}

// executionsIn возвращает сделки с временем в [start, end)
func executionsIn(executions []models.Execution, start, end int64) []models.Execution {
	var out []models.Execution
	for _, e := range executions {
		if e.ExecutionDate >= start && e.ExecutionDate < end {
			out = append(out, e)
		}
	}
	return out
}

// sumHour суммирует короткие агрегаты в [start, end). Price возвращается
// как сумма price*totalSize, деление делает вызывающий.
func sumHour(prior, fresh []models.ExecutionAggregated, start, end int64) (models.ExecutionAggregated, int) {
	long := models.ExecutionAggregated{Timestamp: start}
	covered := 0
	seen := make(map[int64]struct{}, ShortSlotsPerHour)
	for _, list := range [][]models.ExecutionAggregated{prior, fresh} {
		for _, b := range list {
			if b.Timestamp < start || b.Timestamp >= end {
				continue
			}
			if _, dup := seen[b.Timestamp]; dup {
				continue
			}
			seen[b.Timestamp] = struct{}{}
			covered++
			long.Price += b.Price * b.TotalSize
			long.BuySize += b.BuySize
			long.SellSize += b.SellSize
			long.TotalSize += b.TotalSize
		}
	}
	return long, covered
}
