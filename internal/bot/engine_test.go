package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vcautotrade/internal/exchange"
	"vcautotrade/internal/models"
	"vcautotrade/internal/repository"
	"vcautotrade/pkg/utils"
)

// fakeExchange - биржа в памяти для тестов движка
type fakeExchange struct {
	mu sync.Mutex
	fakePlacer

	status      string
	statusErr   error
	executions  []models.Execution
	reports     map[string]exchange.OrderReport
	open        []exchange.OrderReport
	balances    []models.Balance
	balancesErr error
	fetchCalls  int
}

func newFakeExchange(now time.Time) *fakeExchange {
	return &fakeExchange{
		fakePlacer: fakePlacer{now: now},
		status:     exchange.StatusOpen,
		reports:    make(map[string]exchange.OrderReport),
		balances: []models.Balance{
			{CurrencyCode: "JPY", Amount: 100000, Available: 100000},
			{CurrencyCode: "BTC", Amount: 0.0005, Available: 0.0005},
		},
	}
}

func (f *fakeExchange) GetName() string { return "GMO" }

func (f *fakeExchange) GetStatus(context.Context) (string, error) {
	return f.status, f.statusErr
}

func (f *fakeExchange) FetchExecutionsSince(context.Context, string, int64) ([]models.Execution, error) {
	return f.executions, nil
}

func (f *fakeExchange) FetchOrders(_ context.Context, _ string, ids []string) ([]exchange.OrderReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	var out []exchange.OrderReport
	for _, id := range ids {
		if r, ok := f.reports[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeExchange) FetchOpenOrders(context.Context, string) ([]exchange.OrderReport, error) {
	return f.open, nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*models.SimpleOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fakePlacer.PlaceOrder(ctx, req)
}

func (f *fakeExchange) CancelOrder(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fakePlacer.CancelOrder(ctx, id)
}

func (f *fakeExchange) FetchBalances(context.Context) ([]models.Balance, error) {
	return f.balances, f.balancesErr
}

// fakeNotifier собирает сообщения
type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *fakeNotifier) Notify(_ context.Context, msg models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *fakeNotifier) urgent() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.sent {
		if m.Urgent {
			c++
		}
	}
	return c
}

type engineFixture struct {
	engine   *Engine
	exchange *fakeExchange
	notifier *fakeNotifier
	store    *repository.MemoryStore
}

func newEngineFixture(t *testing.T, now time.Time, pc *models.ProductContext) *engineFixture {
	t.Helper()
	var contexts []*models.ProductContext
	if pc != nil {
		contexts = append(contexts, pc)
	}
	return newMultiProductFixture(t, now, []models.ProductSetting{btcSetting}, contexts...)
}

func newMultiProductFixture(t *testing.T, now time.Time, products []models.ProductSetting, contexts ...*models.ProductContext) *engineFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	for _, pc := range contexts {
		if err := repository.NewContextRepository(store).Save(context.Background(), pc); err != nil {
			t.Fatal(err)
		}
	}
	ex := newFakeExchange(now)
	notifier := &fakeNotifier{}
	engine := NewEngine(EngineDeps{
		Exchange: ex,
		Products: products,
		Store:    store,
		Notifier: notifier,
		Logger:   utils.NewNopLogger(),
		Now:      func() time.Time { return now },
	})
	return &engineFixture{engine: engine, exchange: ex, notifier: notifier, store: store}
}

func (f *engineFixture) context(t *testing.T) *models.ProductContext {
	t.Helper()
	return f.contextOf(t, "GMO-BTC")
}

func (f *engineFixture) contextOf(t *testing.T, productID string) *models.ProductContext {
	t.Helper()
	pc, err := repository.NewContextRepository(f.store).Get(context.Background(), productID)
	if err != nil {
		t.Fatalf("context of %s not saved: %v", productID, err)
	}
	return pc
}

// shortBuckets - сохраненные короткие агрегаты предыдущей минуты
func (f *engineFixture) shortBuckets(t *testing.T, std StandardTime) int {
	t.Helper()
	buckets, err := repository.NewExecutionRepository(f.store).ShortBuckets(context.Background(), "GMO-BTC", std.MinuteBefore(), std.Minute())
	if err != nil {
		t.Fatal(err)
	}
	return len(buckets)
}

// сделки предыдущей минуты
func lastMinuteExecutions(std StandardTime) []models.Execution {
	base := std.MinuteBefore()
	return []models.Execution{
		{Price: 5000000, Side: models.SideBuy, Size: 0.01, ExecutionDate: base + 1000},
		{Price: 5001000, Side: models.SideSell, Size: 0.02, ExecutionDate: base + 25000},
		{Price: 5002000, Side: models.SideBuy, Size: 0.01, ExecutionDate: base + 55000},
	}
}

var engineNow = time.Date(2024, 1, 15, 5, 30, 25, 0, time.UTC)

func enabledContext() *models.ProductContext {
	return enabledContextOf("GMO-BTC")
}

func enabledContextOf(productID string) *models.ProductContext {
	pc := models.NewProductContext(productID)
	pc.ExecutionSetting = models.ExecutionSetting{ExecutePhase: true, ExecuteMain: true}
	return pc
}

func TestEngine_SellFillIsProcessedOnce(t *testing.T) {
	ctx := context.Background()
	pc := enabledContext()
	pc.OrderPhase = models.PhaseSell
	pc.AfterSendOrder = true
	pc.OrderID = "GMO-1"
	pc.BuyOrderPrice = 5000000
	pc.BuyOrderInfo = &models.BuyOrderInfo{Timestamp: engineNow.UnixMilli() - 3600000, Price: 5000000, Amount: 0.0005}

	f := newEngineFixture(t, engineNow, pc)
	sell := liveOrder("GMO-1", engineNow.UnixMilli()-60000)
	if err := repository.NewOrderRepository(f.store).Save(ctx, sell, ""); err != nil {
		t.Fatal(err)
	}
	f.exchange.executions = lastMinuteExecutions(NewStandardTime(engineNow))
	f.exchange.reports["GMO-1"] = exchange.OrderReport{ID: "GMO-1", State: models.OrderStateCompleted, AveragePrice: 5025000, ExecutedSize: 0.0005}

	for run := 0; run < 2; run++ {
		res, err := f.engine.Run(ctx)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if res.Outcomes["GMO-BTC"] != OutcomeOK {
			t.Fatalf("run %d: outcome = %s", run, res.Outcomes["GMO-BTC"])
		}
	}

	got := f.context(t)
	if got.OrderPhase != models.PhaseBuy || got.AfterSendOrder {
		t.Errorf("context = %+v, want Buy without pending order", got)
	}
	reports, err := repository.NewTradeReportRepository(f.store).Recent(ctx, "GMO-BTC", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 {
		t.Fatalf("trade reports = %d, want 1", len(reports))
	}
	if reports[0].Sell.Price != 5025000 || reports[0].IsStopLoss {
		t.Errorf("report = %+v", reports[0])
	}
	tracked, _ := repository.NewOrderRepository(f.store).Tracked(ctx, "GMO-BTC")
	if len(tracked) != 0 {
		t.Errorf("sell order still tracked: %+v", tracked)
	}
	if len(f.exchange.placed) != 0 {
		t.Errorf("orders placed with MakeNewOrder off: %+v", f.exchange.placed)
	}
	if n := f.shortBuckets(t, NewStandardTime(engineNow)); n != ShortSlotsPerMinute {
		t.Errorf("short buckets = %d, want %d", n, ShortSlotsPerMinute)
	}
}

func TestEngine_CompletedWithoutPriceWaitsForFills(t *testing.T) {
	ctx := context.Background()
	pc := enabledContext()
	pc.AfterSendOrder = true
	pc.OrderID = "GMO-1"

	f := newEngineFixture(t, engineNow, pc)
	buy := liveOrder("GMO-1", engineNow.UnixMilli()-60000)
	buy.Main = models.OrderMain{OrderType: models.OrderTypeMarket, Side: models.SideBuy, Size: 0.0005}
	orders := repository.NewOrderRepository(f.store)
	if err := orders.Save(ctx, buy, ""); err != nil {
		t.Fatal(err)
	}
	f.exchange.executions = lastMinuteExecutions(NewStandardTime(engineNow))
	f.exchange.reports["GMO-1"] = exchange.OrderReport{ID: "GMO-1", State: models.OrderStateCompleted, ExecutedSize: 0.0005}

	if _, err := f.engine.Run(ctx); err != nil {
		t.Fatal(err)
	}

	got := f.context(t)
	if got.OrderPhase != models.PhaseBuy || !got.AfterSendOrder || got.OrderID != "GMO-1" {
		t.Fatalf("context = %+v, want pending buy kept", got)
	}
	tracked, err := orders.Tracked(ctx, "GMO-BTC")
	if err != nil {
		t.Fatal(err)
	}
	if len(tracked) != 1 || tracked[0].ID != "GMO-1" {
		t.Fatalf("tracked = %+v, want GMO-1 still tracked", tracked)
	}

	// сделки ордера появились к следующему запуску
	f.exchange.reports["GMO-1"] = exchange.OrderReport{ID: "GMO-1", State: models.OrderStateCompleted, AveragePrice: 5000000, ExecutedSize: 0.0005}
	if _, err := f.engine.Run(ctx); err != nil {
		t.Fatal(err)
	}

	got = f.context(t)
	if got.OrderPhase != models.PhaseSell || got.BuyOrderPrice != 5000000 {
		t.Errorf("context = %+v, want Sell at 5000000", got)
	}
	if f.notifier.urgent() != 0 {
		t.Errorf("urgent notifications = %d, want 0", f.notifier.urgent())
	}
}

func TestEngine_ProductFailureIsIsolated(t *testing.T) {
	ethSetting := models.ProductSetting{
		ID:           "GMO-ETH",
		ExchangeCode: "GMO",
		ProductCode:  "ETH",
		Currency:     models.Currency{Real: "JPY", Virtual: "ETH"},
		OrderUnit:    0.01,
		MaxOrderSize: 1000,
	}
	contexts := make([]*models.ProductContext, 0, 2)
	for _, id := range []string{"GMO-BTC", "GMO-ETH"} {
		pc := enabledContextOf(id)
		pc.OrderPhase = models.PhaseWait
		pc.StartBuyTimestamp = engineNow.UnixMilli() - 1000
		contexts = append(contexts, pc)
	}

	// баланс ETH биржа не сообщает
	f := newMultiProductFixture(t, engineNow, []models.ProductSetting{btcSetting, ethSetting}, contexts...)
	f.exchange.executions = lastMinuteExecutions(NewStandardTime(engineNow))

	res, err := f.engine.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if res.Outcomes["GMO-BTC"] != OutcomeOK || res.Outcomes["GMO-ETH"] != OutcomeAborted {
		t.Fatalf("outcomes = %v", res.Outcomes)
	}
	if got := f.contextOf(t, "GMO-BTC"); got.OrderPhase != models.PhaseBuy {
		t.Errorf("GMO-BTC phase = %s, want Buy", got.OrderPhase)
	}
	if got := f.contextOf(t, "GMO-ETH"); got.OrderPhase != models.PhaseWait {
		t.Errorf("GMO-ETH phase = %s, want Wait", got.OrderPhase)
	}
	if n := f.store.Len("GMO-ETH", repository.KindLiveness); n != 0 {
		t.Errorf("GMO-ETH liveness records = %d, want 0", n)
	}
	if n := f.store.Len("GMO-BTC", repository.KindLiveness); n != 1 {
		t.Errorf("GMO-BTC liveness records = %d, want 1", n)
	}
}

func TestEngine_WaitToBuy(t *testing.T) {
	pc := enabledContext()
	pc.OrderPhase = models.PhaseWait
	pc.StartBuyTimestamp = engineNow.UnixMilli() - 1000

	f := newEngineFixture(t, engineNow, pc)
	f.exchange.executions = lastMinuteExecutions(NewStandardTime(engineNow))

	if _, err := f.engine.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := f.context(t)
	if got.OrderPhase != models.PhaseBuy || got.StartBuyTimestamp != 0 {
		t.Errorf("context = %+v, want Buy with timer cleared", got)
	}
	live, err := repository.NewLivenessRepository(f.store).Latest(context.Background(), "GMO-BTC")
	if err != nil {
		t.Fatal(err)
	}
	if !live.IsExecuteMain || live.Timestamp != engineNow.UnixMilli() {
		t.Errorf("liveness = %+v", live)
	}
}

func TestEngine_MissingBalancesAborts(t *testing.T) {
	tests := []struct {
		name     string
		balances []models.Balance
		err      error
	}{
		{name: "request failed", err: errors.New("maintenance")},
		{name: "currency not reported", balances: []models.Balance{{CurrencyCode: "JPY", Available: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := enabledContext()
			pc.OrderPhase = models.PhaseWait
			pc.StartBuyTimestamp = engineNow.UnixMilli() - 1000

			f := newEngineFixture(t, engineNow, pc)
			f.exchange.executions = lastMinuteExecutions(NewStandardTime(engineNow))
			f.exchange.balances = tt.balances
			f.exchange.balancesErr = tt.err

			res, err := f.engine.Run(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if res.Outcomes["GMO-BTC"] != OutcomeAborted {
				t.Errorf("outcome = %s, want aborted", res.Outcomes["GMO-BTC"])
			}
			if got := f.context(t); got.OrderPhase != models.PhaseWait || got.LastExecution != nil {
				t.Errorf("context changed: %+v", got)
			}
			for _, kind := range []repository.Kind{repository.KindShortExecution, repository.KindLiveness, repository.KindOrder} {
				if n := f.store.Len("GMO-BTC", kind); n != 0 {
					t.Errorf("%s records = %d, want 0", kind, n)
				}
			}
			if f.notifier.urgent() != 1 {
				t.Errorf("urgent notifications = %d, want 1", f.notifier.urgent())
			}
		})
	}
}

func TestEngine_OutOfManagementSkipsDecision(t *testing.T) {
	pc := enabledContext()
	pc.OrderPhase = models.PhaseWait
	pc.StartBuyTimestamp = engineNow.UnixMilli() - 1000

	f := newEngineFixture(t, engineNow, pc)
	f.exchange.executions = lastMinuteExecutions(NewStandardTime(engineNow))
	f.exchange.open = []exchange.OrderReport{{ID: "GMO-77", State: models.OrderStateActive}}

	res, err := f.engine.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcomes["GMO-BTC"] != OutcomeViolation {
		t.Errorf("outcome = %s, want violation", res.Outcomes["GMO-BTC"])
	}
	got := f.context(t)
	if got.OrderPhase != models.PhaseWait {
		t.Errorf("phase = %s, decision must be skipped", got.OrderPhase)
	}
	if got.LastExecution == nil || got.LastExecution.Timestamp != NewStandardTime(engineNow).MinuteBefore()+55000 {
		t.Errorf("cursor = %+v", got.LastExecution)
	}
	if n := f.shortBuckets(t, NewStandardTime(engineNow)); n != ShortSlotsPerMinute {
		t.Errorf("short buckets = %d, want %d", n, ShortSlotsPerMinute)
	}
	if f.notifier.urgent() != 1 {
		t.Errorf("urgent notifications = %d, want 1", f.notifier.urgent())
	}
}

func TestEngine_ExchangeClosed(t *testing.T) {
	pc := enabledContext()
	f := newEngineFixture(t, engineNow, pc)
	f.exchange.status = "MAINTENANCE"

	res, err := f.engine.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcomes["GMO-BTC"] != OutcomeSkipped {
		t.Errorf("outcome = %s, want skipped", res.Outcomes["GMO-BTC"])
	}
	if f.exchange.fetchCalls != 0 {
		t.Errorf("exchange queried while closed")
	}
	if n := f.store.Len("GMO-BTC", repository.KindLiveness); n != 0 {
		t.Errorf("liveness records = %d, want 0", n)
	}
}

func TestEngine_PhaseDisabled(t *testing.T) {
	f := newEngineFixture(t, engineNow, nil)
	f.exchange.executions = lastMinuteExecutions(NewStandardTime(engineNow))

	res, err := f.engine.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcomes["GMO-BTC"] != OutcomeIdle {
		t.Errorf("outcome = %s, want idle", res.Outcomes["GMO-BTC"])
	}
	// контекст по умолчанию сохраняется
	if got := f.context(t); got.OrderPhase != models.PhaseBuy {
		t.Errorf("phase = %s, want Buy", got.OrderPhase)
	}
	if n := f.store.Len("GMO-BTC", repository.KindShortExecution); n != 0 {
		t.Errorf("short buckets = %d, want 0", n)
	}
	live, err := repository.NewLivenessRepository(f.store).Latest(context.Background(), "GMO-BTC")
	if err != nil || live.IsExecuteMain {
		t.Errorf("liveness = %+v, err = %v", live, err)
	}
}

func TestEngine_WeeklyNotificationTest(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{name: "monday first minute", now: time.Date(2024, 1, 15, 0, 0, 30, 0, time.UTC), want: 2},
		{name: "monday second minute", now: time.Date(2024, 1, 15, 0, 1, 0, 0, time.UTC), want: 0},
		{name: "sunday", now: time.Date(2024, 1, 14, 0, 0, 30, 0, time.UTC), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t, tt.now, nil)
			if _, err := f.engine.Run(context.Background()); err != nil {
				t.Fatal(err)
			}
			if len(f.notifier.sent) != tt.want {
				t.Errorf("notifications = %d, want %d", len(f.notifier.sent), tt.want)
			}
		})
	}
}

func TestMergeShort(t *testing.T) {
	stored := []models.ExecutionAggregated{{Timestamp: 10, Price: 1}, {Timestamp: 20, Price: 2}}
	fresh := []models.ExecutionAggregated{{Timestamp: 20, Price: 3}, {Timestamp: 30, Price: 4}}

	got := mergeShort(stored, fresh)

	want := []float64{1, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, b := range got {
		if b.Price != want[i] {
			t.Errorf("got[%d].Price = %v, want %v", i, b.Price, want[i])
		}
	}
}
