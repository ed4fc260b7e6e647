package utils

import (
	"time"
)

// time.go - утилиты для работы со временем.
//
// Во всех записях хранилища время - unix миллисекунды (UTC).

// UnixMillis переводит время в unix миллисекунды
func UnixMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromUnixMillis переводит unix миллисекунды в time.Time (UTC)
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// FloorTo округляет время вниз до кратного d (относительно unix epoch)
//
// Пример:
//
//	FloorTo(14:30:45.123, time.Minute) = 14:30:00
func FloorTo(t time.Time, d time.Duration) time.Time {
	return t.UTC().Truncate(d)
}

// GetWeekStartFrom возвращает начало недели (понедельник 00:00:00 UTC)
//
// Неделя начинается с понедельника (ISO 8601)
func GetWeekStartFrom(t time.Time) time.Time {
	t = t.UTC()

	// Преобразуем к ISO 8601 (1=Monday, ..., 7=Sunday)
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}

	monday := t.AddDate(0, 0, -(weekday - 1))
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}

// IsWeekStartMinute - t попадает в первую минуту недели
func IsWeekStartMinute(t time.Time) bool {
	start := GetWeekStartFrom(t)
	return !t.Before(start) && t.Before(start.Add(time.Minute))
}

// UTCHour возвращает час по UTC
func UTCHour(t time.Time) int {
	return t.UTC().Hour()
}
