package models

// Currency - пара валют продукта
type Currency struct {
	Real    string `json:"real"`    // валюта расчетов (JPY)
	Virtual string `json:"virtual"` // торгуемый актив (BTC)
}

// ProductSetting - статическое описание торгуемого продукта
type ProductSetting struct {
	ID           string   `json:"id"`
	ExchangeCode string   `json:"exchange_code"`
	ProductCode  string   `json:"product_code"`
	Currency     Currency `json:"currency"`
	OrderUnit    float64  `json:"order_unit"`
	MaxOrderSize float64  `json:"max_order_size"`
}

// Balance - остаток по одной валюте
type Balance struct {
	CurrencyCode string  `json:"currency_code"`
	Amount       float64 `json:"amount"`
	Available    float64 `json:"available"`
}

// FindBalance ищет остаток по коду валюты
func FindBalance(balances []Balance, code string) (Balance, bool) {
	for _, b := range balances {
		if b.CurrencyCode == code {
			return b, true
		}
	}
	return Balance{}, false
}
