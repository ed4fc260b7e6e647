package bot

import (
	"fmt"
	"strings"

	"vcautotrade/internal/models"
)

// MakePriceHistory восстанавливает ряд цен с шагом interval по агрегатам,
// упорядоченным по возрастанию времени.
//
// Результат - от новых к старым, покрывает [первый, последний] timestamp.
// Пропуск (нет агрегата или цена 0) заполняется предыдущей ценой, пропуск
// в самом начале - первой ненулевой ценой. Без ненулевых цен ряд пустой.
func MakePriceHistory(buckets []models.ExecutionAggregated, interval int64) []float64 {
	if len(buckets) == 0 || interval <= 0 {
		return nil
	}

	var first float64
	for _, b := range buckets {
		if b.Price != 0 {
			first = b.Price
			break
		}
	}
	if first == 0 {
		return nil
	}

	start := buckets[0].Timestamp
	end := buckets[len(buckets)-1].Timestamp
	history := make([]float64, 0, (end-start)/interval+1)

	prev := first
	idx := 0
	for ts := start; ts <= end; ts += interval {
		if idx < len(buckets) && buckets[idx].Timestamp == ts && buckets[idx].Price != 0 {
			prev = buckets[idx].Price
		}
		history = append(history, prev)
		for idx < len(buckets) && buckets[idx].Timestamp <= ts {
			idx++
		}
	}

	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history
}

// movingAverage - простое скользящее среднее по окну n.
// Элемент i - среднее list[i:i+n]; длина результата len(list)-n.
func movingAverage(list []float64, n int) []float64 {
	if n <= 0 || len(list) <= n {
		return nil
	}
	out := make([]float64, 0, len(list)-n)
	var sum float64
	for j := 0; j < n; j++ {
		sum += list[j]
	}
	for i := 0; i < len(list)-n; i++ {
		out = append(out, sum/float64(n))
		sum += list[i+n] - list[i]
	}
	return out
}

func average(list []float64) float64 {
	if len(list) == 0 {
		return 0
	}
	var sum float64
	for _, v := range list {
		sum += v
	}
	return sum / float64(len(list))
}

// LatestExecution возвращает последний агрегат с ненулевой ценой
func LatestExecution(buckets []models.ExecutionAggregated) (models.ExecutionAggregated, bool) {
	for i := len(buckets) - 1; i >= 0; i-- {
		if buckets[i].Price != 0 {
			return buckets[i], true
		}
	}
	return models.ExecutionAggregated{}, false
}

// Причины отказа в покупке
const (
	ReasonHistory      = "history"
	ReasonBand         = "band"
	ReasonShortAbove   = "short_above_long"
	ReasonCrossMissing = "cross_missing"
)

// BuyJudgment - результат сигнала на покупку
type BuyJudgment struct {
	Buy           bool
	Reason        string  // пусто при Buy
	RelativeIndex float64 // (цена - среднее) / цена
	Trend         string  // "+" где MA10 > MA40, "-" иначе, от новых к старым
}

// inBuyBand - открытый интервал (BuyBandLower, BuyBandUpper)
func inBuyBand(rel float64) bool {
	return rel > BuyBandLower && rel < BuyBandUpper
}

// JudgeBuyTiming решает, пора ли покупать, по коротким агрегатам за 2 часа.
//
// Покупка, если одновременно:
//  1. текущая цена ниже среднего за окно на величину внутри (-1.5%, -0.25%);
//  2. на последних 6 точках MA10 строго выше MA40;
//  3. на последних 40 точках MA10 была ниже MA40 не менее 10 раз.
func JudgeBuyTiming(buckets []models.ExecutionAggregated) BuyJudgment {
	if len(buckets) < BuyMinHistorySlots {
		return BuyJudgment{Reason: ReasonHistory}
	}

	history := MakePriceHistory(buckets, ShortInterval.Milliseconds())
	maShort := movingAverage(history, BuyShortMA)
	maLong := movingAverage(history, BuyLongMA)
	if len(maShort) < BuyCrossWindow || len(maLong) < BuyCrossWindow {
		return BuyJudgment{Reason: ReasonHistory}
	}

	j := BuyJudgment{
		RelativeIndex: (history[0] - average(history)) / history[0],
		Trend:         trend(maShort, maLong, BuyCrossWindow),
	}

	recentAbove := true
	for i := 0; i < BuyRecentAboveSlots; i++ {
		if maShort[i] <= maLong[i] {
			recentAbove = false
			break
		}
	}

	crossCount := 0
	for i := 0; i < BuyCrossWindow; i++ {
		if maShort[i] < maLong[i] {
			crossCount++
		}
	}

	switch {
	case !inBuyBand(j.RelativeIndex):
		j.Reason = ReasonBand
	case !recentAbove:
		j.Reason = ReasonShortAbove
	case crossCount < BuyMinCrossCount:
		j.Reason = ReasonCrossMissing
	default:
		j.Buy = true
	}
	return j
}

func trend(maShort, maLong []float64, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if maShort[i] <= maLong[i] {
			b.WriteByte('-')
		} else {
			b.WriteByte('+')
		}
	}
	return b.String()
}

// JudgeStopLoss - последняя ненулевая цена ниже buyPrice * (1 - StopLossRate).
// Возвращает также цену, по которой принято решение.
func JudgeStopLoss(buckets []models.ExecutionAggregated, buyPrice float64) (bool, float64, error) {
	latest, ok := LatestExecution(buckets)
	if !ok {
		return false, 0, ErrNoLatestPrice
	}
	if buyPrice <= 0 {
		return false, latest.Price, fmt.Errorf("%w: buy price %v", ErrMissingBuyPrice, buyPrice)
	}
	return latest.Price < buyPrice*(1-StopLossRate), latest.Price, nil
}
