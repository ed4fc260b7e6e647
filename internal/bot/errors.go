package bot

import "errors"

// Ошибки торгового цикла
var (
	ErrBalanceUnavailable = errors.New("balances unavailable")
	ErrZeroLiquidity      = errors.New("summed hourly total size is zero")
	ErrOutOfManagement    = errors.New("order outside bot management")
	ErrTargetOrderMissing = errors.New("outstanding order not found among tracked orders")
	ErrMissingFillPrice   = errors.New("filled order has no average price")
	ErrMissingBuyInfo     = errors.New("buy fill info lost")
	ErrMissingBuyPrice    = errors.New("buy price lost")
	ErrNoLatestPrice      = errors.New("no recent non-zero short bucket")
	ErrZeroOrderSize      = errors.New("computed order size is zero")
	ErrOrderPlacement     = errors.New("order placement failed")
	ErrIllegalTransition  = errors.New("illegal phase transition")
	ErrOrderSizeLimit     = errors.New("order size exceeds product limit")
)
