package bot

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vcautotrade/internal/exchange"
	"vcautotrade/internal/models"
	"vcautotrade/pkg/utils"
)

// OrderPlacer - торговые операции, доступные решению
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*models.SimpleOrder, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// DecisionInput - данные одного решения по продукту
type DecisionInput struct {
	Product        models.ProductSetting
	Short          []models.ExecutionAggregated // сохраненные и новые, по возрастанию
	Orders         []TrackedOrder               // после сверки; решение может пометить ордер INVALID
	BalanceVirtual models.Balance
	Std            StandardTime
}

// Decider - торговое решение одного цикла
type Decider struct {
	placer OrderPlacer
	logger *utils.Logger
}

// NewDecider создает новый экземпляр
func NewDecider(placer OrderPlacer, logger *utils.Logger) *Decider {
	return &Decider{placer: placer, logger: logger}
}

// Decide сначала обрабатывает результат ожидаемого ордера, затем выполняет
// действие текущей фазы. Возвращает новые ордера.
//
// Фазы взаимоисключающие: за цикл выполняется не больше одного действия.
func (d *Decider) Decide(ctx context.Context, pc *models.ProductContext, effects *Effects, in DecisionInput) []models.SimpleOrder {
	ctrl := NewOrderStateController(pc, effects, d.logger, in.Std.Now())

	target := findOrder(in.Orders, pc.OrderID)
	if pc.AfterSendOrder && target == nil {
		effects.ReportError(ErrTargetOrderMissing, pc.OrderPhase,
			utils.OrderID(pc.OrderID),
			zap.Int("tracked", len(in.Orders)),
		)
		return nil
	}

	if pc.AfterSendOrder {
		switch target.State {
		case models.OrderStateCompleted:
			if !d.onFilled(ctrl, pc, effects, target, in.Std) {
				return nil
			}
		case models.OrderStateInvalid:
			ctrl.OnOrderFailed()
		}
	}

	var placed []models.SimpleOrder
	place := func(req exchange.OrderRequest) *models.SimpleOrder {
		req.ProductID = in.Product.ID
		req.ProductCode = in.Product.ProductCode
		if in.Product.MaxOrderSize > 0 && req.Size > in.Product.MaxOrderSize {
			effects.ReportError(ErrOrderSizeLimit, pc.OrderPhase,
				utils.Side(req.Side),
				utils.Size(req.Size),
				zap.Float64("max_order_size", in.Product.MaxOrderSize),
			)
			return nil
		}
		order, err := d.placer.PlaceOrder(ctx, req)
		RecordOrder(in.Product.ID, req.Side, req.OrderType, err == nil)
		if err != nil {
			effects.ReportError(fmt.Errorf("%w: %v", ErrOrderPlacement, err), pc.OrderPhase,
				utils.Side(req.Side),
				zap.String("type", req.OrderType),
				utils.Size(req.Size),
				utils.Price(req.Price),
			)
			return nil
		}
		placed = append(placed, *order)
		return order
	}

	switch {
	case pc.OrderPhase == models.PhaseBuy && !pc.AfterSendOrder:
		if !CanMakeNewOrder(pc, in.Std) {
			break
		}
		j := JudgeBuyTiming(in.Short)
		RecordJudgment(in.Product.ID, "buy", j.Buy)
		d.logger.Info("buy judgment",
			zap.Bool("result", j.Buy),
			zap.String("reason", j.Reason),
			zap.Float64("relative_index", j.RelativeIndex),
			zap.String("trend", j.Trend),
		)
		if !j.Buy {
			break
		}
		size := utils.OrderSizeFromUnits(BuyOrderUnits, in.Product.OrderUnit)
		if order := place(exchange.OrderRequest{OrderType: models.OrderTypeMarket, Side: models.SideBuy, Size: size}); order != nil {
			ctrl.OnSendOrder(order)
		}

	case pc.OrderPhase == models.PhaseSell && !pc.AfterSendOrder:
		if pc.BuyOrderPrice <= 0 {
			effects.ReportError(ErrMissingBuyPrice, pc.OrderPhase)
			break
		}
		units := utils.FloorToUnits(in.BalanceVirtual.Available, in.Product.OrderUnit)
		if units <= 0 {
			effects.ReportError(ErrZeroOrderSize, pc.OrderPhase,
				zap.Float64("available", in.BalanceVirtual.Available),
				zap.Float64("order_unit", in.Product.OrderUnit),
			)
			break
		}
		price := utils.ApplyRate(pc.BuyOrderPrice, SellMarginRate, SellPriceDecimals)
		size := utils.OrderSizeFromUnits(units, in.Product.OrderUnit)
		if order := place(exchange.OrderRequest{OrderType: models.OrderTypeLimit, Side: models.SideSell, Size: size, Price: price}); order != nil {
			ctrl.OnSendOrder(order)
		}

	case pc.OrderPhase == models.PhaseSell && pc.AfterSendOrder:
		stop, latest, err := JudgeStopLoss(in.Short, pc.BuyOrderPrice)
		if err != nil {
			effects.ReportError(err, pc.OrderPhase, zap.Float64("buy_price", pc.BuyOrderPrice))
			break
		}
		RecordJudgment(in.Product.ID, "stop_loss", stop)
		d.logger.Info("stop loss judgment",
			zap.Bool("result", stop),
			zap.Float64("latest_price", latest),
			zap.Float64("buy_price", pc.BuyOrderPrice),
		)
		if stop {
			d.stopLoss(ctx, ctrl, pc, effects, target, in, place)
		}

	case pc.OrderPhase == models.PhaseStopLoss && !pc.AfterSendOrder:
		// Рыночная продажа не исполнилась: продаем остаток заново
		units := utils.FloorToUnits(in.BalanceVirtual.Available, in.Product.OrderUnit)
		if units <= 0 {
			effects.ReportError(ErrZeroOrderSize, pc.OrderPhase,
				zap.Float64("available", in.BalanceVirtual.Available))
			break
		}
		size := utils.OrderSizeFromUnits(units, in.Product.OrderUnit)
		if order := place(exchange.OrderRequest{OrderType: models.OrderTypeMarket, Side: models.SideSell, Size: size}); order != nil {
			ctrl.OnSendOrder(order)
		}

	case pc.OrderPhase == models.PhaseWait:
		if pc.StartBuyTimestamp != 0 && in.Std.NowMillis() > pc.StartBuyTimestamp {
			if err := ctrl.OnStartBuy(); err != nil {
				effects.ReportError(err, pc.OrderPhase)
			}
		}
	}

	return placed
}

// onFilled обрабатывает исполнение ожидаемого ордера. false - решение прервано.
func (d *Decider) onFilled(ctrl *OrderStateController, pc *models.ProductContext, effects *Effects, target *models.SimpleOrder, std StandardTime) bool {
	fill := models.BuyOrderInfo{
		Timestamp: std.NowMillis(),
		Price:     target.Main.AveragePrice,
		Amount:    target.ExecutedSize,
	}
	if fill.Amount <= 0 {
		fill.Amount = target.Main.Size
	}
	if fill.Price <= 0 {
		effects.ReportError(ErrMissingFillPrice, pc.OrderPhase, utils.OrderID(target.ID))
		return false
	}

	if HoldsPosition(pc.OrderPhase) {
		buy := pc.BuyOrderInfo
		if buy == nil || buy.Timestamp == 0 || buy.Price <= 0 || buy.Amount <= 0 {
			effects.ReportError(ErrMissingBuyInfo, pc.OrderPhase, utils.OrderID(target.ID))
		} else {
			effects.AddTradeReport(models.TradeReport{
				ID:         uuid.NewString(),
				ProductID:  pc.ProductID,
				Buy:        models.TradeFill{Timestamp: buy.Timestamp, Price: buy.Price, Amount: buy.Amount},
				Sell:       models.TradeFill{Timestamp: fill.Timestamp, Price: fill.Price, Amount: fill.Amount},
				IsStopLoss: pc.OrderPhase == models.PhaseStopLoss,
			})
		}
	}

	if err := ctrl.OnOrderSuccess(fill); err != nil {
		effects.ReportError(err, pc.OrderPhase)
		return false
	}
	return true
}

// stopLoss отменяет продажу и выставляет рыночную продажу остатка
func (d *Decider) stopLoss(ctx context.Context, ctrl *OrderStateController, pc *models.ProductContext, effects *Effects,
	target *models.SimpleOrder, in DecisionInput, place func(exchange.OrderRequest) *models.SimpleOrder) {

	if err := d.placer.CancelOrder(ctx, target.ID); err != nil {
		effects.ReportError(fmt.Errorf("cancel for stop loss: %w", err), pc.OrderPhase, utils.OrderID(target.ID))
		return
	}
	target.State = models.OrderStateInvalid

	remaining := target.Main.Size - target.ExecutedSize
	units := utils.FloorToUnits(remaining, in.Product.OrderUnit)
	if units <= 0 {
		ctrl.OnStopLossOrderFailed()
		effects.ReportError(ErrZeroOrderSize, pc.OrderPhase,
			utils.OrderID(target.ID),
			zap.Float64("remaining", remaining),
		)
		return
	}

	size := utils.OrderSizeFromUnits(units, in.Product.OrderUnit)
	order := place(exchange.OrderRequest{OrderType: models.OrderTypeMarket, Side: models.SideSell, Size: size})
	if order == nil {
		ctrl.OnStopLossOrderFailed()
		return
	}
	if err := ctrl.OnStopLoss(order, StopLossCooldown); err != nil {
		// Продажа уже выставлена: ордер остается ожидаемым в текущей фазе
		effects.ReportError(err, pc.OrderPhase, utils.OrderID(order.ID))
		ctrl.OnSendOrder(order)
	}
}

// CanMakeNewOrder - оператор разрешил новые покупки и текущий час вне запретного окна
func CanMakeNewOrder(pc *models.ProductContext, std StandardTime) bool {
	if !pc.ExecutionSetting.MakeNewOrder {
		return false
	}
	hour := utils.UTCHour(std.Now())
	return hour < BlackoutStartHourUTC || hour >= BlackoutEndHourUTC
}

func findOrder(orders []TrackedOrder, id string) *models.SimpleOrder {
	if id == "" {
		return nil
	}
	for i := range orders {
		if orders[i].Order.ID == id {
			return &orders[i].Order
		}
	}
	return nil
}
