package repository

import (
	"context"
	"errors"
)

// Kind - тип записи в хранилище
type Kind string

// Типы записей. Каждая запись адресуется тройкой (product_id, kind, sort_key).
const (
	KindContext        Kind = "context"
	KindShortExecution Kind = "execution"
	KindLongExecution  Kind = "long_execution"
	KindOrder          Kind = "order"
	KindLiveness       Kind = "liveness"
	KindTradeReport    Kind = "trade_report"
)

// Ошибки хранилища
var (
	ErrRecordNotFound = errors.New("record not found")
)

// Record - одна запись хранилища; Payload - JSON, закодированный кодеком своего типа
type Record struct {
	ProductID string
	Kind      Kind
	SortKey   string
	Payload   []byte
}

// QueryOptions - параметры выборки по диапазону ключей
type QueryOptions struct {
	Limit      int // 0 - без ограничения
	Descending bool
}

// RecordStore - хранилище записей с упорядоченным ключом сортировки.
//
// Ключи сравниваются как строки; временные метки записываются
// в миллисекундах (13 цифр), поэтому строковый порядок совпадает с числовым.
type RecordStore interface {
	Get(ctx context.Context, productID string, kind Kind, sortKey string) (*Record, error)
	Put(ctx context.Context, rec Record) error
	// PutBatch записывает все записи атомарно
	PutBatch(ctx context.Context, recs []Record) error
	Delete(ctx context.Context, productID string, kind Kind, sortKey string) error
	// QueryRange возвращает записи с from <= sort_key <= to
	QueryRange(ctx context.Context, productID string, kind Kind, from, to string, opts QueryOptions) ([]Record, error)
	QueryPrefix(ctx context.Context, productID string, kind Kind, prefix string, opts QueryOptions) ([]Record, error)
}
