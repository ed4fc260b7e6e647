package bot

import "time"

// Параметры стратегии. Единственный набор значений для всех продуктов.
const (
	ShortInterval       = 10 * time.Second
	ShortSlotsPerMinute = int(time.Minute / ShortInterval)
	ShortHistoryWindow  = 2 * time.Hour

	// Часовой агрегат фиксируется при покрытии не менее 80% коротких слотов
	LongInterval        = time.Hour
	ShortSlotsPerHour   = int(LongInterval / ShortInterval)
	LongMinCoveredSlots = ShortSlotsPerHour * 8 / 10
	LongHistoryWindow   = 2 * time.Hour

	// Покупка: 2 часа истории, из них не менее 90%
	BuyHistorySlots     = int(ShortHistoryWindow / ShortInterval)
	BuyMinHistorySlots  = BuyHistorySlots * 9 / 10
	BuyShortMA          = 10
	BuyLongMA           = 40
	BuyRecentAboveSlots = 6
	BuyCrossWindow      = 40
	BuyMinCrossCount    = 10
	BuyBandLower        = -0.015
	BuyBandUpper        = -0.0025
	BuyOrderUnits       = 5

	SellMarginRate    = 0.005
	SellPriceDecimals = 0

	StopLossRate     = 0.005
	StopLossCooldown = time.Hour

	// Новые покупки запрещены в [13:00, 22:00) UTC
	BlackoutStartHourUTC = 13
	BlackoutEndHourUTC   = 22

	LivenessRetention  = 24 * time.Hour
	LivenessPruneLimit = 20
)
