package repository

import (
	"context"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"vcautotrade/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Codec - пара encode/decode и ключ сортировки для одного типа записи.
// Каждый тип объявляется один раз, ниже.
type Codec[T any] struct {
	Kind    Kind
	SortKey func(v T) string
}

// Encode кодирует значение в запись хранилища
func (c Codec[T]) Encode(productID string, v T) (Record, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s: %w", c.Kind, err)
	}
	return Record{ProductID: productID, Kind: c.Kind, SortKey: c.SortKey(v), Payload: payload}, nil
}

// Decode декодирует запись
func (c Codec[T]) Decode(rec Record) (T, error) {
	var v T
	if err := json.Unmarshal(rec.Payload, &v); err != nil {
		return v, fmt.Errorf("decode %s/%s: %w", c.Kind, rec.SortKey, err)
	}
	return v, nil
}

// DecodeAll декодирует список записей
func (c Codec[T]) DecodeAll(recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := c.Decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func millisKey(ms int64) string {
	return strconv.FormatInt(ms, 10)
}

// contextSortKey - у продукта один контекст
const contextSortKey = "context"

// emptyShortKey - ключ записи коротких агрегатов без элементов
const emptyShortKey = "no-item"

// Кодеки всех типов записей
var (
	ContextCodec = Codec[models.ProductContext]{
		Kind:    KindContext,
		SortKey: func(models.ProductContext) string { return contextSortKey },
	}

	// Короткие агрегаты хранятся пачкой за минуту, ключ - начало первого слота
	ShortExecutionCodec = Codec[[]models.ExecutionAggregated]{
		Kind: KindShortExecution,
		SortKey: func(v []models.ExecutionAggregated) string {
			if len(v) == 0 {
				return emptyShortKey
			}
			return millisKey(v[0].Timestamp)
		},
	}

	LongExecutionCodec = Codec[models.ExecutionAggregated]{
		Kind:    KindLongExecution,
		SortKey: func(v models.ExecutionAggregated) string { return millisKey(v.Timestamp) },
	}

	OrderCodec = Codec[models.SimpleOrder]{
		Kind:    KindOrder,
		SortKey: func(v models.SimpleOrder) string { return v.SortKey() },
	}

	LivenessCodec = Codec[models.LivenessRecord]{
		Kind:    KindLiveness,
		SortKey: func(v models.LivenessRecord) string { return millisKey(v.Timestamp) },
	}

	TradeReportCodec = Codec[models.TradeReport]{
		Kind: KindTradeReport,
		SortKey: func(v models.TradeReport) string {
			return millisKey(v.Sell.Timestamp) + "#" + v.ID
		},
	}
)

// getOne читает и декодирует одну запись
func getOne[T any](ctx context.Context, store RecordStore, codec Codec[T], productID, sortKey string) (T, error) {
	var zero T
	rec, err := store.Get(ctx, productID, codec.Kind, sortKey)
	if err != nil {
		return zero, err
	}
	return codec.Decode(*rec)
}

// putOne кодирует и записывает значение
func putOne[T any](ctx context.Context, store RecordStore, codec Codec[T], productID string, v T) error {
	rec, err := codec.Encode(productID, v)
	if err != nil {
		return err
	}
	return store.Put(ctx, rec)
}
