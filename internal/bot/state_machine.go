package bot

import "vcautotrade/internal/models"

var allPhases = []models.OrderPhase{models.PhaseBuy, models.PhaseSell, models.PhaseStopLoss, models.PhaseWait}

// fillTransitions - следующая фаза после исполнения ожидаемого ордера
var fillTransitions = map[models.OrderPhase]models.OrderPhase{
	models.PhaseBuy:      models.PhaseSell,
	models.PhaseSell:     models.PhaseBuy,
	models.PhaseStopLoss: models.PhaseWait,
	models.PhaseWait:     models.PhaseBuy,
}

// ValidTransitions определяет допустимые переходы между фазами
var ValidTransitions = map[models.OrderPhase][]models.OrderPhase{
	models.PhaseBuy:      {models.PhaseSell},
	models.PhaseSell:     {models.PhaseBuy, models.PhaseStopLoss}, // StopLoss после отмены продажи
	models.PhaseStopLoss: {models.PhaseWait},
	models.PhaseWait:     {models.PhaseBuy}, // только по таймеру
}

// NextPhase возвращает фазу после исполнения ордера.
// ok == false для неизвестной фазы.
func NextPhase(phase models.OrderPhase) (models.OrderPhase, bool) {
	next, ok := fillTransitions[phase]
	return next, ok
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to models.OrderPhase) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// HoldsPosition - в фазе есть купленный актив
func HoldsPosition(p models.OrderPhase) bool {
	return p == models.PhaseSell || p == models.PhaseStopLoss
}
