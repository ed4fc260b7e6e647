package exchange

import (
	"fmt"
	"strings"

	"vcautotrade/pkg/utils"
)

// NewExchange создает клиента биржи по коду
func NewExchange(name string, cfg GMOConfig, logger *utils.Logger) (Exchange, error) {
	switch strings.ToUpper(name) {
	case ExchangeGMO:
		return NewGMO(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", name)
	}
}
