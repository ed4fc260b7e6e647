package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"vcautotrade/internal/models"
	"vcautotrade/pkg/ratelimit"
	"vcautotrade/pkg/retry"
	"vcautotrade/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// ExchangeGMO - код биржи GMO Coin
	ExchangeGMO = "GMO"

	gmoOrderPrefix = "GMO-"

	// GMO принимает не более 10 id в одном запросе /v1/orders
	gmoOrderQueryChunk = 10

	gmoActiveOrdersCount = 100
)

// GMOConfig - параметры клиента GMO Coin
type GMOConfig struct {
	PublicURL  string
	PrivateURL string
	APIKey     string
	APISecret  string // расшифрованный

	RateLimit      float64
	MaxRetries     int
	RetryBackoff   time.Duration
	RequestTimeout time.Duration

	TradesPageSize int
	TradesMaxPages int

	// HTTPClient и Now подменяются в тестах
	HTTPClient *http.Client
	Now        func() time.Time
}

// GMO реализует Exchange для спотового рынка GMO Coin
type GMO struct {
	cfg        GMOConfig
	httpClient *http.Client
	limiter    *ratelimit.MultiLimiter
	logger     *utils.Logger
	now        func() time.Time
}

// NewGMO создает клиента GMO Coin.
// По умолчанию использует глобальный HTTP клиент с пулом соединений.
func NewGMO(cfg GMOConfig, logger *utils.Logger) *GMO {
	if cfg.TradesPageSize <= 0 {
		cfg.TradesPageSize = 30
	}
	if cfg.TradesMaxPages <= 0 {
		cfg.TradesMaxPages = 10
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = SharedHTTPClient()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	limiter := ratelimit.NewMultiLimiter()
	limiter.Add(ratelimit.CategoryPublic, cfg.RateLimit, cfg.RateLimit)
	limiter.Add(ratelimit.CategoryPrivateGet, cfg.RateLimit, cfg.RateLimit)
	limiter.Add(ratelimit.CategoryPrivatePost, cfg.RateLimit, cfg.RateLimit)

	return &GMO{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger.WithComponent("gmo"),
		now:        now,
	}
}

// GetName возвращает код биржи
func (g *GMO) GetName() string {
	return ExchangeGMO
}

// ============================================================
// Транспорт
// ============================================================

// gmoEnvelope - общий формат ответа GMO Coin
type gmoEnvelope struct {
	Status   int                 `json:"status"`
	Data     jsoniter.RawMessage `json:"data"`
	Messages []struct {
		Code    string `json:"message_code"`
		Message string `json:"message_string"`
	} `json:"messages"`
}

// sign - HMAC-SHA256(secret, timestamp + method + path + body) в hex
func (g *GMO) sign(timestamp, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(g.cfg.APISecret))
	mac.Write([]byte(timestamp + method + path + body))
	return hex.EncodeToString(mac.Sum(nil))
}

// doRequest выполняет один запрос и возвращает поле data.
// Ответы 4xx и бизнес-ошибки биржи помечаются как retry.Permanent.
func (g *GMO) doRequest(ctx context.Context, method string, private bool, path string, query url.Values, payload interface{}) (jsoniter.RawMessage, error) {
	category := ratelimit.CategoryPublic
	base := g.cfg.PublicURL
	if private {
		base = g.cfg.PrivateURL
		category = ratelimit.CategoryPrivateGet
		if method == http.MethodPost {
			category = ratelimit.CategoryPrivatePost
		}
	}
	if err := g.limiter.Wait(ctx, category); err != nil {
		return nil, err
	}

	if g.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.RequestTimeout)
		defer cancel()
	}

	reqURL := base + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, retry.Permanent(err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	if private {
		timestamp := strconv.FormatInt(g.now().UnixMilli(), 10)
		req.Header.Set("API-KEY", g.cfg.APIKey)
		req.Header.Set("API-TIMESTAMP", timestamp)
		req.Header.Set("API-SIGN", g.sign(timestamp, method, path, string(body)))
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &ExchangeError{Exchange: ExchangeGMO, Message: method + " " + path + " failed", Original: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExchangeError{Exchange: ExchangeGMO, Message: "read body", Original: err}
	}

	g.logger.Debug("gmo request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("http_status", resp.StatusCode),
		utils.Latency(float64(time.Since(start).Microseconds())/1000),
	)

	if resp.StatusCode >= 500 {
		return nil, &ExchangeError{Exchange: ExchangeGMO, Code: strconv.Itoa(resp.StatusCode), Message: "server error"}
	}
	if resp.StatusCode >= 400 {
		return nil, retry.Permanent(&ExchangeError{Exchange: ExchangeGMO, Code: strconv.Itoa(resp.StatusCode), Message: string(raw)})
	}

	var env gmoEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, retry.Permanent(&ExchangeError{Exchange: ExchangeGMO, Message: "decode response", Original: err})
	}
	if env.Status != 0 {
		exErr := &ExchangeError{Exchange: ExchangeGMO, Code: strconv.Itoa(env.Status)}
		if len(env.Messages) > 0 {
			exErr.Code = env.Messages[0].Code
			exErr.Message = env.Messages[0].Message
		}
		return nil, retry.Permanent(exErr)
	}

	return env.Data, nil
}

// get - идемпотентный запрос с повторами
func (g *GMO) get(ctx context.Context, private bool, path string, query url.Values, out interface{}) error {
	cfg := retry.ReadConfig(g.cfg.MaxRetries, g.cfg.RetryBackoff)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		g.logger.Warn("retrying gmo request",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	data, err := retry.DoWithResult(ctx, func() (jsoniter.RawMessage, error) {
		return g.doRequest(ctx, http.MethodGet, private, path, query, nil)
	}, cfg)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ExchangeError{Exchange: ExchangeGMO, Message: "decode " + path, Original: err}
	}
	return nil
}

// post - запрос, изменяющий состояние; выполняется ровно один раз
func (g *GMO) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	data, err := g.doRequest(ctx, http.MethodPost, true, path, nil, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ExchangeError{Exchange: ExchangeGMO, Message: "decode " + path, Original: err}
	}
	return nil
}

// ============================================================
// Публичные данные
// ============================================================

// GetStatus возвращает статус биржи: OPEN, PREOPEN или MAINTENANCE
func (g *GMO) GetStatus(ctx context.Context) (string, error) {
	var data struct {
		Status string `json:"status"`
	}
	if err := g.get(ctx, false, "/v1/status", nil, &data); err != nil {
		return "", err
	}
	return data.Status, nil
}

type gmoTrade struct {
	Price     float64   `json:"price,string"`
	Side      string    `json:"side"`
	Size      float64   `json:"size,string"`
	Timestamp time.Time `json:"timestamp"`
}

func (g *GMO) fetchTradesPage(ctx context.Context, symbol string, page int) ([]gmoTrade, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("page", strconv.Itoa(page))
	query.Set("count", strconv.Itoa(g.cfg.TradesPageSize))

	var data struct {
		List []gmoTrade `json:"list"`
	}
	if err := g.get(ctx, false, "/v1/trades", query, &data); err != nil {
		return nil, err
	}
	return data.List, nil
}

// FetchExecutionsSince загружает сделки не раньше sinceMs, от новых к старым.
//
// Страницы перебираются назад, пока самая старая сделка страницы не окажется
// раньше sinceMs. Не более TradesMaxPages страниц: при очень активном рынке
// начало окна может быть потеряно, это допустимо.
func (g *GMO) FetchExecutionsSince(ctx context.Context, productCode string, sinceMs int64) ([]models.Execution, error) {
	var out []models.Execution

	for page := 1; page <= g.cfg.TradesMaxPages; page++ {
		trades, err := g.fetchTradesPage(ctx, productCode, page)
		if err != nil {
			return nil, fmt.Errorf("fetch trades page %d: %w", page, err)
		}
		if len(trades) == 0 {
			break
		}

		for _, t := range trades {
			ts := t.Timestamp.UnixMilli()
			if ts < sinceMs {
				continue
			}
			out = append(out, models.Execution{
				Price:         t.Price,
				Side:          t.Side,
				Size:          t.Size,
				ExecutionDate: ts,
			})
		}

		if trades[len(trades)-1].Timestamp.UnixMilli() < sinceMs {
			break
		}
	}

	return out, nil
}

// ============================================================
// Ордера
// ============================================================

type gmoOrder struct {
	OrderID       int64   `json:"orderId"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	ExecutionType string  `json:"executionType"`
	Size          float64 `json:"size,string"`
	ExecutedSize  float64 `json:"executedSize,string"`
	Price         string  `json:"price"`
	Status        string  `json:"status"`
}

type gmoExecution struct {
	OrderID int64   `json:"orderId"`
	Size    float64 `json:"size,string"`
	Price   float64 `json:"price,string"`
}

// mapGMOStatus переводит статус GMO в состояние ордера бота
func mapGMOStatus(status string) models.OrderState {
	switch status {
	case "WAITING", "ORDERED", "MODIFYING":
		return models.OrderStateActive
	case "CANCELLING", "CANCELED", "EXPIRED":
		return models.OrderStateInvalid
	case "EXECUTED":
		return models.OrderStateCompleted
	default:
		return models.OrderStateUnknown
	}
}

// ToGMOOrderID отрезает префикс биржи
func ToGMOOrderID(orderID string) (string, error) {
	if !strings.HasPrefix(orderID, gmoOrderPrefix) || len(orderID) == len(gmoOrderPrefix) {
		return "", fmt.Errorf("%w: %s", ErrInvalidOrderID, orderID)
	}
	return strings.TrimPrefix(orderID, gmoOrderPrefix), nil
}

// FromGMOOrderID добавляет префикс биржи
func FromGMOOrderID(id string) string {
	return gmoOrderPrefix + id
}

func (g *GMO) toReport(o gmoOrder) OrderReport {
	report := OrderReport{
		ID:           FromGMOOrderID(strconv.FormatInt(o.OrderID, 10)),
		State:        mapGMOStatus(o.Status),
		ExecutedSize: o.ExecutedSize,
	}
	remaining := o.Size - o.ExecutedSize
	if remaining < 0 {
		remaining = 0
	}
	switch report.State {
	case models.OrderStateActive:
		report.OutstandingSize = remaining
	case models.OrderStateInvalid:
		report.CancelledSize = remaining
	}
	return report
}

// FetchOrders запрашивает ордера пачками по 10 id.
// Для исполненных ордеров средняя цена считается по сделкам ордера.
func (g *GMO) FetchOrders(ctx context.Context, productCode string, orderIDs []string) ([]OrderReport, error) {
	ids := make([]string, 0, len(orderIDs))
	for _, id := range orderIDs {
		raw, err := ToGMOOrderID(id)
		if err != nil {
			g.logger.Warn("skip foreign order id", utils.OrderID(id))
			continue
		}
		ids = append(ids, raw)
	}

	var reports []OrderReport
	for start := 0; start < len(ids); start += gmoOrderQueryChunk {
		end := start + gmoOrderQueryChunk
		if end > len(ids) {
			end = len(ids)
		}

		query := url.Values{}
		query.Set("orderId", strings.Join(ids[start:end], ","))

		var data struct {
			List []gmoOrder `json:"list"`
		}
		if err := g.get(ctx, true, "/v1/orders", query, &data); err != nil {
			return nil, fmt.Errorf("fetch orders: %w", err)
		}

		for _, o := range data.List {
			if o.Symbol != "" && o.Symbol != productCode {
				continue
			}
			report := g.toReport(o)
			if report.State == models.OrderStateCompleted {
				avg, err := g.averageFillPrice(ctx, o.OrderID)
				if err != nil {
					return nil, err
				}
				report.AveragePrice = avg
			}
			reports = append(reports, report)
		}
	}

	return reports, nil
}

// averageFillPrice - средневзвешенная по объему цена сделок ордера.
// Без сделок возвращает ErrNoFills.
func (g *GMO) averageFillPrice(ctx context.Context, orderID int64) (float64, error) {
	query := url.Values{}
	query.Set("orderId", strconv.FormatInt(orderID, 10))

	var data struct {
		List []gmoExecution `json:"list"`
	}
	if err := g.get(ctx, true, "/v1/executions", query, &data); err != nil {
		return 0, fmt.Errorf("fetch executions of order %d: %w", orderID, err)
	}

	prices := make([]float64, len(data.List))
	sizes := make([]float64, len(data.List))
	for i, e := range data.List {
		prices[i] = e.Price
		sizes[i] = e.Size
	}
	// Биржа может отдать EXECUTED раньше, чем сделки ордера
	avg := utils.WeightedAverage(prices, sizes)
	if avg <= 0 {
		return 0, fmt.Errorf("%w: order %d", ErrNoFills, orderID)
	}
	return avg, nil
}

// FetchOpenOrders возвращает открытые ордера продукта
func (g *GMO) FetchOpenOrders(ctx context.Context, productCode string) ([]OrderReport, error) {
	query := url.Values{}
	query.Set("symbol", productCode)
	query.Set("page", "1")
	query.Set("count", strconv.Itoa(gmoActiveOrdersCount))

	var data struct {
		List []gmoOrder `json:"list"`
	}
	if err := g.get(ctx, true, "/v1/activeOrders", query, &data); err != nil {
		return nil, fmt.Errorf("fetch active orders: %w", err)
	}

	reports := make([]OrderReport, 0, len(data.List))
	for _, o := range data.List {
		reports = append(reports, g.toReport(o))
	}
	return reports, nil
}

// PlaceOrder выставляет ордер. Ошибка возвращается как есть, без повторов:
// повтор после таймаута может создать второй ордер.
func (g *GMO) PlaceOrder(ctx context.Context, req OrderRequest) (*models.SimpleOrder, error) {
	if req.Size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %v", ErrInvalidRequest, req.Size)
	}
	if req.Side != models.SideBuy && req.Side != models.SideSell {
		return nil, fmt.Errorf("%w: unknown side %q", ErrInvalidRequest, req.Side)
	}

	payload := map[string]string{
		"symbol":        req.ProductCode,
		"side":          req.Side,
		"executionType": req.OrderType,
		"size":          strconv.FormatFloat(req.Size, 'f', -1, 64),
	}
	switch req.OrderType {
	case models.OrderTypeLimit:
		if req.Price <= 0 {
			return nil, fmt.Errorf("%w: limit order requires price", ErrInvalidRequest)
		}
		payload["price"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
	case models.OrderTypeMarket:
	default:
		return nil, fmt.Errorf("%w: unknown order type %q", ErrInvalidRequest, req.OrderType)
	}

	var orderID string
	if err := g.post(ctx, "/v1/order", payload, &orderID); err != nil {
		return nil, fmt.Errorf("place %s %s order: %w", req.OrderType, req.Side, err)
	}

	g.logger.Info("order placed",
		utils.OrderID(orderID),
		utils.Side(req.Side),
		utils.Size(req.Size),
		utils.Price(req.Price),
	)

	order := &models.SimpleOrder{
		ID:              FromGMOOrderID(orderID),
		ExchangeOrderID: orderID,
		ProductID:       req.ProductID,
		OrderDate:       g.now().UnixMilli(),
		State:           models.OrderStateUnknown,
		Main: models.OrderMain{
			OrderType: req.OrderType,
			Side:      req.Side,
			Size:      req.Size,
			Price:     req.Price,
		},
		OutstandingSize: req.Size,
	}
	return order, nil
}

// CancelOrder отменяет ордер; выполняется один раз
func (g *GMO) CancelOrder(ctx context.Context, orderID string) error {
	raw, err := ToGMOOrderID(orderID)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidOrderID, orderID)
	}

	if err := g.post(ctx, "/v1/cancelOrder", map[string]int64{"orderId": id}, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

// ============================================================
// Баланс
// ============================================================

type gmoAsset struct {
	Symbol    string  `json:"symbol"`
	Amount    float64 `json:"amount,string"`
	Available float64 `json:"available,string"`
}

// FetchBalances возвращает остатки по всем активам
func (g *GMO) FetchBalances(ctx context.Context) ([]models.Balance, error) {
	var assets []gmoAsset
	if err := g.get(ctx, true, "/v1/account/assets", nil, &assets); err != nil {
		return nil, fmt.Errorf("fetch assets: %w", err)
	}

	balances := make([]models.Balance, 0, len(assets))
	for _, a := range assets {
		balances = append(balances, models.Balance{
			CurrencyCode: a.Symbol,
			Amount:       a.Amount,
			Available:    a.Available,
		})
	}
	return balances, nil
}
