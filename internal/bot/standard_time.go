package bot

import (
	"time"

	"vcautotrade/pkg/utils"
)

// StandardTime - опорные моменты одного запуска.
//
// Все границы слотов считаются от момента запуска, выровненного вниз
// до минуты и до часа, поэтому повторный запуск в ту же минуту
// агрегирует те же самые слоты.
type StandardTime struct {
	now    time.Time
	minute time.Time
	hour   time.Time
}

// NewStandardTime фиксирует опорное время запуска
func NewStandardTime(now time.Time) StandardTime {
	now = now.UTC()
	return StandardTime{
		now:    now,
		minute: utils.FloorTo(now, time.Minute),
		hour:   utils.FloorTo(now, time.Hour),
	}
}

// Now - момент запуска
func (s StandardTime) Now() time.Time { return s.now }

// NowMillis - момент запуска в unix ms
func (s StandardTime) NowMillis() int64 { return s.now.UnixMilli() }

// Minute - начало текущей минуты (unix ms)
func (s StandardTime) Minute() int64 { return s.minute.UnixMilli() }

// MinuteBefore - начало предыдущей минуты (unix ms)
func (s StandardTime) MinuteBefore() int64 { return s.minute.Add(-time.Minute).UnixMilli() }

// Hour - начало текущего часа (unix ms)
func (s StandardTime) Hour() int64 { return s.hour.UnixMilli() }

// HourBefore - начало предыдущего часа (unix ms)
func (s StandardTime) HourBefore() int64 { return s.hour.Add(-time.Hour).UnixMilli() }
