package config

import (
	"fmt"

	"vcautotrade/internal/models"
)

// productCatalog - продукты, которыми умеет торговать бот
var productCatalog = map[string]models.ProductSetting{
	"GMO-BTC": {
		ID:           "GMO-BTC",
		ExchangeCode: "GMO",
		ProductCode:  "BTC",
		Currency:     models.Currency{Real: "JPY", Virtual: "BTC"},
		OrderUnit:    0.0001,
		MaxOrderSize: 100,
	},
	"GMO-ETH": {
		ID:           "GMO-ETH",
		ExchangeCode: "GMO",
		ProductCode:  "ETH",
		Currency:     models.Currency{Real: "JPY", Virtual: "ETH"},
		OrderUnit:    0.01,
		MaxOrderSize: 1000,
	},
}

// LookupProduct возвращает описание продукта по идентификатору
func LookupProduct(id string) (models.ProductSetting, bool) {
	p, ok := productCatalog[id]
	return p, ok
}

// Products возвращает настройки продуктов из PRODUCT_IDS в порядке перечисления
func (c *Config) Products() ([]models.ProductSetting, error) {
	seen := make(map[string]struct{}, len(c.Bot.ProductIDs))
	products := make([]models.ProductSetting, 0, len(c.Bot.ProductIDs))

	for _, id := range c.Bot.ProductIDs {
		p, ok := LookupProduct(id)
		if !ok {
			return nil, fmt.Errorf("unknown product %q in PRODUCT_IDS", id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		products = append(products, p)
	}

	return products, nil
}

// SelectProducts разбирает аргумент -product утилит: "All" - все продукты конфигурации
func (c *Config) SelectProducts(arg string) ([]models.ProductSetting, error) {
	all, err := c.Products()
	if err != nil {
		return nil, err
	}
	if arg == "" || arg == "All" {
		return all, nil
	}
	for _, p := range all {
		if p.ID == arg {
			return []models.ProductSetting{p}, nil
		}
	}
	return nil, fmt.Errorf("product %q is not configured", arg)
}
