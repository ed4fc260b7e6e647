package bot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vcautotrade/internal/exchange"
	"vcautotrade/internal/models"
	"vcautotrade/internal/repository"
	"vcautotrade/pkg/utils"
)

// Результаты цикла продукта
const (
	OutcomeOK        = "ok"
	OutcomeSkipped   = "skipped"   // биржа недоступна
	OutcomeIdle      = "idle"      // executePhase выключен
	OutcomeAborted   = "aborted"   // нет обязательных данных
	OutcomeViolation = "violation" // решение пропущено из-за чужих ордеров
)

// Engine - точка входа одного запуска.
//
// Запуск не хранит состояние между вызовами: контексты продуктов читаются
// в начале, продукты обрабатываются параллельно и независимо, контексты
// записываются одной пачкой в конце.
type Engine struct {
	exchange   exchange.Exchange
	products   []models.ProductSetting
	contexts   *repository.ContextRepository
	executions *repository.ExecutionRepository
	orders     *repository.OrderRepository
	liveness   *repository.LivenessRepository
	reports    *repository.TradeReportRepository
	notifier   Notifier
	logger     *utils.Logger
	now        func() time.Time

	reconciler *Reconciler
	decider    *Decider
}

// EngineDeps - зависимости движка
type EngineDeps struct {
	Exchange exchange.Exchange
	Products []models.ProductSetting
	Store    repository.RecordStore
	Notifier Notifier
	Logger   *utils.Logger
	Now      func() time.Time // по умолчанию time.Now
}

// NewEngine создает движок
func NewEngine(d EngineDeps) *Engine {
	logger := d.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}

	orders := repository.NewOrderRepository(d.Store)
	return &Engine{
		exchange:   d.Exchange,
		products:   d.Products,
		contexts:   repository.NewContextRepository(d.Store),
		executions: repository.NewExecutionRepository(d.Store),
		orders:     orders,
		liveness:   repository.NewLivenessRepository(d.Store),
		reports:    repository.NewTradeReportRepository(d.Store),
		notifier:   d.Notifier,
		logger:     logger.WithComponent("engine"),
		now:        now,
		reconciler: NewReconciler(orders, d.Exchange, logger.WithComponent("reconciler")),
		decider:    NewDecider(d.Exchange, logger.WithComponent("decider")),
	}
}

// RunResult - итог запуска
type RunResult struct {
	RunID    string
	Outcomes map[string]string // productID -> Outcome*
}

// productRun - все, что относится к одному продукту в одном запуске
type productRun struct {
	setting models.ProductSetting
	pc      *models.ProductContext
	outcome string
}

// Run выполняет один цикл для всех продуктов.
// Ошибка возвращается только если не удалось записать контексты.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	runID := uuid.NewString()
	std := NewStandardTime(e.now())
	logger := e.logger.WithRunID(runID)

	logger.Info("run started", zap.Time("std", time.UnixMilli(std.Minute()).UTC()), zap.Int("products", len(e.products)))

	runs := make([]*productRun, 0, len(e.products))
	for _, p := range e.products {
		pc, err := e.contexts.Load(ctx, p.ID)
		if err != nil {
			logger.Error("failed to load context", utils.Product(p.ID), zap.Error(err))
			e.notify(ctx, models.Notification{ProductID: p.ID, Message: fmt.Sprintf("[%s] load context: %v", p.ID, err), Urgent: true})
			continue
		}
		runs = append(runs, &productRun{setting: p, pc: pc})
	}

	// Ошибка одного продукта не отменяет остальные: горутины всегда возвращают nil
	var g errgroup.Group
	for _, r := range runs {
		g.Go(func() error {
			r.outcome = e.runProduct(ctx, std, runID, r.setting, r.pc)
			return nil
		})
	}
	_ = g.Wait()

	result := &RunResult{RunID: runID, Outcomes: make(map[string]string, len(runs))}
	contexts := make([]*models.ProductContext, 0, len(runs))
	for _, r := range runs {
		result.Outcomes[r.setting.ID] = r.outcome
		contexts = append(contexts, r.pc)
	}

	// Контексты пишутся с context.WithoutCancel: истекший бюджет запуска
	// не должен терять уже выполненные переходы
	saveCtx := context.WithoutCancel(ctx)
	if err := e.contexts.SaveAll(saveCtx, contexts); err != nil {
		logger.Error("failed to save contexts", zap.Error(err))
		return result, fmt.Errorf("save contexts: %w", err)
	}

	if utils.IsWeekStartMinute(std.Now()) {
		e.weeklyTest(saveCtx)
	}

	logger.Info("run finished", zap.Any("outcomes", result.Outcomes))
	return result, nil
}

// runProduct - цикл одного продукта: статус, ввод, обработка, вывод
func (e *Engine) runProduct(ctx context.Context, std StandardTime, runID string, p models.ProductSetting, pc *models.ProductContext) (outcome string) {
	logger := e.logger.WithRunID(runID).WithProduct(p.ID)
	effects := NewEffects(p.ID, logger)
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			effects.ReportError(fmt.Errorf("panic: %v", rec), pc.OrderPhase)
			outcome = OutcomeAborted
		}
		effects.Flush(context.WithoutCancel(ctx), e.notifier, e.reports)
		CycleDuration.WithLabelValues(p.ID).Observe(time.Since(start).Seconds())
		CyclesTotal.WithLabelValues(p.ID, outcome).Inc()
		UpdatePhase(p.ID, string(pc.OrderPhase))
		logger.Info("cycle finished", zap.String("outcome", outcome), utils.Phase(string(pc.OrderPhase)))
	}()

	logger.Info("cycle started",
		utils.Phase(string(pc.OrderPhase)),
		zap.Bool("after_send_order", pc.AfterSendOrder),
		utils.OrderID(pc.OrderID),
	)

	status, err := e.exchange.GetStatus(ctx)
	if err != nil || status != exchange.StatusOpen {
		logger.Info("exchange unavailable, skipping cycle", zap.String("status", status), zap.Error(err))
		return OutcomeSkipped
	}

	executeMain := false
	if !pc.ExecutionSetting.ExecutePhase {
		e.saveLiveness(ctx, p.ID, std, executeMain, logger)
		return OutcomeIdle
	}

	in, err := e.fetchInputs(ctx, std, p, logger)
	if err != nil {
		effects.ReportError(err, pc.OrderPhase)
		return OutcomeAborted
	}

	updateCursor(pc, in.executions, std)

	agg, err := Aggregate(in.executions, in.short, in.long, std)
	if err != nil {
		effects.ReportError(err, pc.OrderPhase, zap.Int("short_buckets", len(in.short)))
	}

	outcome = OutcomeOK
	violations := FindOutOfManagement(in.orders, in.open, pc.OrderID)
	for _, v := range violations {
		ReconcileViolations.WithLabelValues(p.ID, v.Source).Inc()
		effects.ReportError(v, pc.OrderPhase, utils.OrderID(v.OrderID), utils.State(string(v.State)))
	}
	if in.ordersErr != nil {
		effects.ReportError(in.ordersErr, pc.OrderPhase)
	}
	if len(violations) > 0 || in.ordersErr != nil {
		outcome = OutcomeViolation
	}

	orders := in.orders
	if pc.ExecutionSetting.ExecuteMain && outcome == OutcomeOK {
		placed := e.decider.Decide(ctx, pc, effects, DecisionInput{
			Product:        p,
			Short:          mergeShort(in.short, agg.Short),
			Orders:         orders,
			BalanceVirtual: in.balanceVirtual,
			Std:            std,
		})
		for _, o := range placed {
			orders = append(orders, TrackedOrder{Order: o})
		}
		executeMain = true
	}

	e.saveOutputs(context.WithoutCancel(ctx), p.ID, agg, orders, effects, pc.OrderPhase)
	e.saveLiveness(ctx, p.ID, std, executeMain, logger)
	return outcome
}

// cycleInputs - результаты параллельной загрузки
type cycleInputs struct {
	executions     []models.Execution
	short          []models.ExecutionAggregated
	long           []models.ExecutionAggregated
	orders         []TrackedOrder
	ordersErr      error
	open           []exchange.OrderReport
	balanceReal    models.Balance
	balanceVirtual models.Balance
}

// fetchInputs загружает входные данные параллельно.
//
// Сбой загрузки сделок, агрегатов и открытых ордеров дает пустой результат,
// сбой хранилища ордеров запрещает решение, без остатков цикл прерывается.
func (e *Engine) fetchInputs(ctx context.Context, std StandardTime, p models.ProductSetting, logger *utils.Logger) (*cycleInputs, error) {
	in := &cycleInputs{}
	var balances []models.Balance
	var balancesErr error

	historyFrom := std.Minute() - ShortHistoryWindow.Milliseconds()
	longFrom := std.Minute() - LongHistoryWindow.Milliseconds()

	var g errgroup.Group
	g.Go(func() error {
		execs, err := e.exchange.FetchExecutionsSince(ctx, p.ProductCode, std.MinuteBefore())
		if err != nil {
			logger.Warn("failed to fetch executions", zap.Error(err))
		}
		in.executions = execs
		return nil
	})
	g.Go(func() error {
		short, err := e.executions.ShortBuckets(ctx, p.ID, historyFrom, std.Minute())
		if err != nil {
			logger.Warn("failed to load short buckets", zap.Error(err))
		}
		in.short = short
		return nil
	})
	g.Go(func() error {
		long, err := e.executions.LongBuckets(ctx, p.ID, longFrom, std.Minute())
		if err != nil {
			logger.Warn("failed to load long buckets", zap.Error(err))
		}
		in.long = long
		return nil
	})
	g.Go(func() error {
		in.orders, in.ordersErr = e.reconciler.Load(ctx, p)
		return nil
	})
	g.Go(func() error {
		open, err := e.exchange.FetchOpenOrders(ctx, p.ProductCode)
		if err != nil {
			logger.Warn("failed to fetch open orders", zap.Error(err))
		}
		in.open = open
		return nil
	})
	g.Go(func() error {
		balances, balancesErr = e.exchange.FetchBalances(ctx)
		return nil
	})
	_ = g.Wait()

	if balancesErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrBalanceUnavailable, balancesErr)
	}
	var okReal, okVirtual bool
	in.balanceReal, okReal = models.FindBalance(balances, p.Currency.Real)
	in.balanceVirtual, okVirtual = models.FindBalance(balances, p.Currency.Virtual)
	if !okReal || !okVirtual {
		return nil, fmt.Errorf("%w: %s/%s not reported", ErrBalanceUnavailable, p.Currency.Real, p.Currency.Virtual)
	}

	logger.Debug("inputs loaded",
		zap.Int("executions", len(in.executions)),
		zap.Int("short_buckets", len(in.short)),
		zap.Int("long_buckets", len(in.long)),
		zap.Int("orders", len(in.orders)),
		zap.Int("open_orders", len(in.open)),
		zap.Float64("balance_real", in.balanceReal.Available),
		zap.Float64("balance_virtual", in.balanceVirtual.Available),
	)
	return in, nil
}

// updateCursor запоминает самую новую сделку до начала текущей минуты
func updateCursor(pc *models.ProductContext, executions []models.Execution, std StandardTime) {
	var latest *models.Execution
	for i := range executions {
		ex := &executions[i]
		if ex.ExecutionDate >= std.Minute() {
			continue
		}
		if latest == nil || ex.ExecutionDate > latest.ExecutionDate {
			latest = ex
		}
	}
	if latest != nil {
		pc.LastExecution = &models.LastExecution{ID: latest.ID, Timestamp: latest.ExecutionDate}
	}
}

// saveOutputs записывает агрегаты и ордера параллельно
func (e *Engine) saveOutputs(ctx context.Context, productID string, agg AggregateResult, orders []TrackedOrder, effects *Effects, phase models.OrderPhase) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := e.executions.SaveShortBuckets(gctx, productID, agg.Short); err != nil {
			return fmt.Errorf("save short buckets: %w", err)
		}
		return nil
	})
	if agg.Long != nil {
		long := *agg.Long
		g.Go(func() error {
			if err := e.executions.SaveLongBucket(gctx, productID, long); err != nil {
				return fmt.Errorf("save long bucket: %w", err)
			}
			return nil
		})
	}
	for _, t := range orders {
		g.Go(func() error {
			if err := e.orders.Save(gctx, t.Order, t.BeforeState); err != nil {
				return fmt.Errorf("save order %s: %w", t.Order.ID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		effects.ReportError(err, phase)
	}
}

// saveLiveness пишет отметку запуска и удаляет старые
func (e *Engine) saveLiveness(ctx context.Context, productID string, std StandardTime, executeMain bool, logger *utils.Logger) {
	ctx = context.WithoutCancel(ctx)
	rec := models.LivenessRecord{IsExecuteMain: executeMain, IsExecuteLast: true, Timestamp: std.NowMillis()}
	if err := e.liveness.Save(ctx, productID, rec); err != nil {
		logger.Warn("failed to save liveness", zap.Error(err))
		return
	}
	before := std.NowMillis() - LivenessRetention.Milliseconds()
	if n, err := e.liveness.PruneBefore(ctx, productID, before, LivenessPruneLimit); err != nil {
		logger.Warn("failed to prune liveness", zap.Error(err))
	} else if n > 0 {
		logger.Debug("liveness pruned", zap.Int("deleted", n))
	}
}

// weeklyTest - еженедельная проверка доставки в оба канала
func (e *Engine) weeklyTest(ctx context.Context) {
	e.notify(ctx, models.Notification{Message: "Weekly notification test (info channel)."})
	e.notify(ctx, models.Notification{Message: "Weekly notification test (error channel).", Urgent: true})
}

func (e *Engine) notify(ctx context.Context, n models.Notification) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.logger.Warn("failed to send notification", zap.Error(err))
	}
}

// mergeShort объединяет сохраненные и новые слоты по времени начала.
// При повторном запуске в ту же минуту новый слот заменяет сохраненный.
func mergeShort(stored, fresh []models.ExecutionAggregated) []models.ExecutionAggregated {
	byTs := make(map[int64]models.ExecutionAggregated, len(stored)+len(fresh))
	for _, b := range stored {
		byTs[b.Timestamp] = b
	}
	for _, b := range fresh {
		byTs[b.Timestamp] = b
	}
	out := make([]models.ExecutionAggregated, 0, len(byTs))
	for _, b := range byTs {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}
