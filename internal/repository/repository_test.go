package repository

import (
	"context"
	"errors"
	"testing"

	"vcautotrade/internal/models"
)

func TestContextRepository_LoadDefaultAndSaveAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewContextRepository(store)

	// Новый продукт: фаза Buy, все переключатели выключены
	pc, err := repo.Load(ctx, "GMO-BTC")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if pc.OrderPhase != models.PhaseBuy || pc.AfterSendOrder || pc.ExecutionSetting.ExecutePhase {
		t.Errorf("default context = %+v", pc)
	}

	if _, err := repo.Get(ctx, "GMO-BTC"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Get() before save error = %v", err)
	}

	pc.OrderPhase = models.PhaseSell
	pc.BuyOrderPrice = 5000000
	other := models.NewProductContext("GMO-ETH")

	if err := repo.SaveAll(ctx, []*models.ProductContext{pc, other}); err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}

	got, err := repo.Get(ctx, "GMO-BTC")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.OrderPhase != models.PhaseSell || got.BuyOrderPrice != 5000000 {
		t.Errorf("saved context = %+v", got)
	}
	if store.Len("GMO-ETH", KindContext) != 1 {
		t.Error("second context not saved")
	}
}

func TestExecutionRepository_ShortBucketsFlatten(t *testing.T) {
	ctx := context.Background()
	repo := NewExecutionRepository(NewMemoryStore())

	minute := func(start int64) []models.ExecutionAggregated {
		out := make([]models.ExecutionAggregated, 6)
		for i := range out {
			out[i] = models.ExecutionAggregated{Timestamp: start + int64(i)*10000, Price: 100}
		}
		return out
	}

	const base = int64(1705329000000)
	for _, start := range []int64{base - 120000, base - 60000, base} {
		if err := repo.SaveShortBuckets(ctx, "GMO-BTC", minute(start)); err != nil {
			t.Fatalf("SaveShortBuckets() error = %v", err)
		}
	}

	buckets, err := repo.ShortBuckets(ctx, "GMO-BTC", base-60000, base)
	if err != nil {
		t.Fatalf("ShortBuckets() error = %v", err)
	}
	if len(buckets) != 12 {
		t.Fatalf("len(buckets) = %d, want 12", len(buckets))
	}
	for i := 1; i < len(buckets); i++ {
		if buckets[i].Timestamp <= buckets[i-1].Timestamp {
			t.Fatalf("buckets not ascending at %d", i)
		}
	}
}

func TestExecutionRepository_LongBuckets(t *testing.T) {
	ctx := context.Background()
	repo := NewExecutionRepository(NewMemoryStore())

	for _, ts := range []int64{1705320000000, 1705323600000} {
		if err := repo.SaveLongBucket(ctx, "GMO-BTC", models.ExecutionAggregated{Timestamp: ts, Price: 1, TotalSize: 1}); err != nil {
			t.Fatalf("SaveLongBucket() error = %v", err)
		}
	}

	buckets, err := repo.LongBuckets(ctx, "GMO-BTC", 1705320000000, 1705327200000)
	if err != nil {
		t.Fatalf("LongBuckets() error = %v", err)
	}
	if len(buckets) != 2 || buckets[1].Timestamp != 1705323600000 {
		t.Errorf("buckets = %+v", buckets)
	}
}

func TestOrderRepository_StateChangeMovesKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewOrderRepository(store)

	order := models.SimpleOrder{
		ID:        "GMO-1",
		ProductID: "GMO-BTC",
		OrderDate: 1705329000000,
		State:     models.OrderStateUnknown,
		Main:      models.OrderMain{OrderType: models.OrderTypeMarket, Side: models.SideBuy, Size: 0.0005},
	}
	if err := repo.Save(ctx, order, ""); err != nil {
		t.Fatalf("Save(new) error = %v", err)
	}

	tracked, err := repo.Tracked(ctx, "GMO-BTC")
	if err != nil || len(tracked) != 1 {
		t.Fatalf("Tracked() = %v, %v", tracked, err)
	}

	// UNKNOWN -> COMPLETED: старый ключ удален, ордер больше не отслеживается
	order.State = models.OrderStateCompleted
	order.Main.AveragePrice = 5000000
	if err := repo.Save(ctx, order, models.OrderStateUnknown); err != nil {
		t.Fatalf("Save(completed) error = %v", err)
	}

	tracked, err = repo.Tracked(ctx, "GMO-BTC")
	if err != nil {
		t.Fatalf("Tracked() error = %v", err)
	}
	if len(tracked) != 0 {
		t.Errorf("tracked = %+v, want none", tracked)
	}
	if store.Len("GMO-BTC", KindOrder) != 1 {
		t.Errorf("order records = %d, want 1 archived", store.Len("GMO-BTC", KindOrder))
	}
	if _, err := store.Get(ctx, "GMO-BTC", KindOrder, "COM1705329000000GMO-1"); err != nil {
		t.Errorf("archived record missing: %v", err)
	}
}

func TestOrderRepository_SameStateOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewOrderRepository(store)

	order := models.SimpleOrder{ID: "GMO-2", ProductID: "GMO-BTC", OrderDate: 1, State: models.OrderStateActive}
	_ = repo.Save(ctx, order, "")
	order.ExecutedSize = 0.0001
	if err := repo.Save(ctx, order, models.OrderStateActive); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	tracked, _ := repo.Tracked(ctx, "GMO-BTC")
	if len(tracked) != 1 || tracked[0].ExecutedSize != 0.0001 {
		t.Errorf("tracked = %+v", tracked)
	}
}

func TestOrderRepository_DeleteTracked(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewOrderRepository(store)

	for i, state := range []models.OrderState{models.OrderStateUnknown, models.OrderStateActive, models.OrderStateCompleted} {
		o := models.SimpleOrder{ID: "GMO-" + string(rune('a'+i)), ProductID: "GMO-BTC", OrderDate: int64(i), State: state}
		_ = repo.Save(ctx, o, "")
	}

	deleted, err := repo.DeleteTracked(ctx, "GMO-BTC")
	if err != nil {
		t.Fatalf("DeleteTracked() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	if store.Len("GMO-BTC", KindOrder) != 1 {
		t.Error("completed order must survive")
	}
}

func TestLivenessRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewLivenessRepository(NewMemoryStore())

	if _, err := repo.Latest(ctx, "GMO-BTC"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Latest() on empty error = %v", err)
	}

	const base = int64(1705329000000)
	for i := int64(0); i < 5; i++ {
		_ = repo.Save(ctx, "GMO-BTC", models.LivenessRecord{Timestamp: base + i*60000, IsExecuteMain: i%2 == 0})
	}

	latest, err := repo.Latest(ctx, "GMO-BTC")
	if err != nil || latest.Timestamp != base+4*60000 {
		t.Fatalf("Latest() = %+v, %v", latest, err)
	}

	// Удаляются только отметки строго раньше границы, не больше лимита
	pruned, err := repo.PruneBefore(ctx, "GMO-BTC", base+2*60000, 20)
	if err != nil || pruned != 2 {
		t.Fatalf("PruneBefore() = %d, %v, want 2", pruned, err)
	}
	pruned, _ = repo.PruneBefore(ctx, "GMO-BTC", base+10*60000, 1)
	if pruned != 1 {
		t.Errorf("PruneBefore(limit 1) = %d", pruned)
	}
}

func TestTradeReportRepository_Recent(t *testing.T) {
	ctx := context.Background()
	repo := NewTradeReportRepository(NewMemoryStore())

	for i, ts := range []int64{1705329000000, 1705332600000} {
		report := models.TradeReport{
			ID:        string(rune('a' + i)),
			ProductID: "GMO-BTC",
			Buy:       models.TradeFill{Timestamp: ts - 60000, Price: 100, Amount: 1},
			Sell:      models.TradeFill{Timestamp: ts, Price: 101, Amount: 1},
		}
		if err := repo.Save(ctx, report); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	reports, err := repo.Recent(ctx, "GMO-BTC", 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(reports) != 1 || reports[0].Sell.Timestamp != 1705332600000 {
		t.Errorf("reports = %+v", reports)
	}
}

func TestShortExecutionCodec_EmptyKey(t *testing.T) {
	rec, err := ShortExecutionCodec.Encode("GMO-BTC", nil)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if rec.SortKey != emptyShortKey {
		t.Errorf("SortKey = %q, want %q", rec.SortKey, emptyShortKey)
	}
}
