package bot

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"vcautotrade/internal/models"
	"vcautotrade/pkg/utils"
)

// OrderStateController - единственное место, где меняется фаза продукта
// и данные об ожидаемом ордере.
type OrderStateController struct {
	pc      *models.ProductContext
	effects *Effects
	logger  *utils.Logger
	now     time.Time
}

// NewOrderStateController создает контроллер над контекстом продукта
func NewOrderStateController(pc *models.ProductContext, effects *Effects, logger *utils.Logger, now time.Time) *OrderStateController {
	return &OrderStateController{pc: pc, effects: effects, logger: logger, now: now}
}

// changePhase меняет фазу только по таблице ValidTransitions
func (c *OrderStateController) changePhase(to models.OrderPhase) error {
	from := c.pc.OrderPhase
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s => %s", ErrIllegalTransition, from, to)
	}
	c.pc.OrderPhase = to
	PhaseTransitions.WithLabelValues(c.pc.ProductID, string(from), string(to)).Inc()
	c.logger.Info("phase changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return nil
}

// OnOrderSuccess - ожидаемый ордер исполнен.
// После покупки запоминается вход, в остальных фазах он сбрасывается.
func (c *OrderStateController) OnOrderSuccess(fill models.BuyOrderInfo) error {
	before := c.pc.OrderPhase
	next, ok := NextPhase(before)
	if !ok {
		return fmt.Errorf("no fill transition from phase %q", before)
	}

	if err := c.changePhase(next); err != nil {
		return err
	}
	c.pc.AfterSendOrder = false
	c.pc.OrderID = ""
	if before == models.PhaseBuy {
		c.pc.BuyOrderPrice = fill.Price
		c.pc.BuyOrderInfo = &fill
	} else {
		c.pc.BuyOrderPrice = 0
		c.pc.BuyOrderInfo = nil
	}

	c.effects.Notify(fmt.Sprintf("Order success. Phase: %s => %s", before, next), false)
	return nil
}

// OnOrderFailed - ожидаемый ордер отменен или истек, фаза не меняется
func (c *OrderStateController) OnOrderFailed() {
	c.pc.AfterSendOrder = false
	c.pc.OrderID = ""
	c.logger.Info("order failed", utils.Phase(string(c.pc.OrderPhase)))
	c.effects.Notify(fmt.Sprintf("Order fail. Order phase is %s", c.pc.OrderPhase), false)
}

// OnSendOrder - ордер отправлен и ждет результата
func (c *OrderStateController) OnSendOrder(order *models.SimpleOrder) {
	c.pc.AfterSendOrder = true
	c.pc.OrderID = order.ID
	c.logger.Info("order sent",
		utils.OrderID(order.ID),
		utils.Side(order.Main.Side),
		utils.Size(order.Main.Size),
		utils.Price(order.Main.Price),
	)

	price := "MARKET"
	if order.Main.Price > 0 {
		price = formatNumber(order.Main.Price)
	}
	msg := fmt.Sprintf("Send order. Side: %s, Size: %s, Price: %s", order.Main.Side, formatNumber(order.Main.Size), price)
	if c.pc.BuyOrderPrice > 0 && order.Main.Side == models.SideSell {
		msg += ", BuyPrice: " + formatNumber(c.pc.BuyOrderPrice)
	}
	c.effects.Notify(msg, false)
}

// OnStopLoss - продажа отменена, выставлен рыночный ордер на продажу.
// Взводится таймер возобновления покупок.
func (c *OrderStateController) OnStopLoss(order *models.SimpleOrder, cooldown time.Duration) error {
	if err := c.changePhase(models.PhaseStopLoss); err != nil {
		return err
	}
	c.pc.AfterSendOrder = true
	c.pc.OrderID = order.ID
	c.pc.StartBuyTimestamp = c.now.Add(cooldown).UnixMilli()
	c.effects.Notify("Stop loss.", false)
	return nil
}

// OnStopLossOrderFailed - отмена прошла, но рыночная продажа не выставлена.
// Остаемся в Sell без ожидаемого ордера: следующий цикл выставит продажу заново.
func (c *OrderStateController) OnStopLossOrderFailed() {
	c.pc.AfterSendOrder = false
	c.pc.OrderID = ""
}

// OnStartBuy - таймер истек, покупки возобновляются
func (c *OrderStateController) OnStartBuy() error {
	if err := c.changePhase(models.PhaseBuy); err != nil {
		return err
	}
	c.pc.StartBuyTimestamp = 0
	c.effects.Notify("Start buy.", false)
	return nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
