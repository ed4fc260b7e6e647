package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"vcautotrade/internal/config"
	"vcautotrade/internal/models"
	"vcautotrade/internal/repository"
	"vcautotrade/pkg/utils"
)

// Ошибки операторских операций
var (
	ErrUnknownProduct  = errors.New("unknown product")
	ErrContextNotFound = errors.New("product context not found")
	ErrLivenessMissing = errors.New("no liveness record")
	ErrInvalidPatch    = errors.New("invalid context patch")
)

// ClearValue - значение поля PATCH, которое сбрасывает поле
const ClearValue = "undefined"

// ContextPatch - частичное обновление контекста: имя поля -> значение
type ContextPatch map[string]interface{}

// ContextService - операции оператора над контекстами, ордерами и отметками
type ContextService struct {
	contexts ContextRepositoryInterface
	liveness LivenessRepositoryInterface
	reports  TradeReportRepositoryInterface
	orders   OrderRepositoryInterface
	logger   *utils.Logger
}

// NewContextService создает новый экземпляр ContextService
func NewContextService(
	contexts ContextRepositoryInterface,
	liveness LivenessRepositoryInterface,
	reports TradeReportRepositoryInterface,
	orders OrderRepositoryInterface,
	logger *utils.Logger,
) *ContextService {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &ContextService{
		contexts: contexts,
		liveness: liveness,
		reports:  reports,
		orders:   orders,
		logger:   logger.WithComponent("context_service"),
	}
}

func checkProduct(productID string) error {
	if _, ok := config.LookupProduct(productID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	return nil
}

// GetContext возвращает сохраненный контекст продукта
func (s *ContextService) GetContext(ctx context.Context, productID string) (*models.ProductContext, error) {
	if err := checkProduct(productID); err != nil {
		return nil, err
	}
	pc, err := s.contexts.Get(ctx, productID)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return nil, ErrContextNotFound
	}
	return pc, err
}

// PatchContext применяет частичное обновление. Отсутствующий контекст
// создается со значениями по умолчанию.
func (s *ContextService) PatchContext(ctx context.Context, productID string, patch ContextPatch) (*models.ProductContext, error) {
	if err := checkProduct(productID); err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidPatch)
	}

	pc, err := s.contexts.Load(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := applyPatch(pc, patch); err != nil {
		return nil, err
	}
	if err := s.contexts.Save(ctx, pc); err != nil {
		return nil, err
	}

	s.logger.Info("context patched", utils.Product(productID), zap.Strings("fields", patchKeys(patch)))
	return pc, nil
}

// GetLiveness возвращает последнюю отметку о запуске
func (s *ContextService) GetLiveness(ctx context.Context, productID string) (*models.LivenessRecord, error) {
	if err := checkProduct(productID); err != nil {
		return nil, err
	}
	rec, err := s.liveness.Latest(ctx, productID)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return nil, ErrLivenessMissing
	}
	return rec, err
}

// GetTradeReports возвращает последние отчеты о сделках, новые первыми
func (s *ContextService) GetTradeReports(ctx context.Context, productID string, limit int) ([]models.TradeReport, error) {
	if err := checkProduct(productID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.reports.Recent(ctx, productID, limit)
}

// InitializeContexts выставляет значения по умолчанию: фаза Buy, без ожидаемого
// ордера, все переключатели включены. Курсор сделок сохраняется.
func (s *ContextService) InitializeContexts(ctx context.Context, products []models.ProductSetting) error {
	for _, p := range products {
		pc, err := s.contexts.Load(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("load context %s: %w", p.ID, err)
		}
		pc.OrderPhase = models.PhaseBuy
		pc.AfterSendOrder = false
		pc.OrderID = ""
		pc.ExecutionSetting = models.ExecutionSetting{ExecutePhase: true, ExecuteMain: true, MakeNewOrder: true}
		if err := s.contexts.Save(ctx, pc); err != nil {
			return fmt.Errorf("save context %s: %w", p.ID, err)
		}
		s.logger.Info("context initialized", utils.Product(p.ID))
	}
	return nil
}

// PurgeOpenOrders удаляет все записи UNKNOWN и ACTIVE ордеров
func (s *ContextService) PurgeOpenOrders(ctx context.Context, products []models.ProductSetting) (int, error) {
	total := 0
	for _, p := range products {
		n, err := s.orders.DeleteTracked(ctx, p.ID)
		total += n
		if err != nil {
			return total, fmt.Errorf("purge orders %s: %w", p.ID, err)
		}
		s.logger.Info("open orders purged", utils.Product(p.ID), zap.Int("deleted", n))
	}
	return total, nil
}

// applyPatch проверяет все поля до изменения контекста
func applyPatch(pc *models.ProductContext, patch ContextPatch) error {
	next := pc.Clone()
	for _, key := range patchKeys(patch) {
		if err := applyField(next, key, patch[key]); err != nil {
			return err
		}
	}
	*pc = *next
	return nil
}

func applyField(pc *models.ProductContext, key string, value interface{}) error {
	reset := value == ClearValue

	switch key {
	case "orderPhase":
		if reset {
			pc.OrderPhase = models.PhaseBuy
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return typeError(key, "string")
		}
		phase := models.OrderPhase(s)
		switch phase {
		case models.PhaseBuy, models.PhaseSell, models.PhaseStopLoss, models.PhaseWait:
			pc.OrderPhase = phase
		default:
			return fmt.Errorf("%w: unknown order phase %q", ErrInvalidPatch, s)
		}
	case "afterSendOrder":
		return setBool(&pc.AfterSendOrder, key, value, reset)
	case "orderId":
		if reset {
			pc.OrderID = ""
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return typeError(key, "string")
		}
		pc.OrderID = s
	case "buyOrderPrice":
		if reset {
			pc.BuyOrderPrice = 0
			return nil
		}
		f, ok := value.(float64)
		if !ok || f < 0 {
			return typeError(key, "non-negative number")
		}
		pc.BuyOrderPrice = f
	case "startBuyTimestamp":
		if reset {
			pc.StartBuyTimestamp = 0
			return nil
		}
		f, ok := value.(float64)
		if !ok || f < 0 {
			return typeError(key, "non-negative number")
		}
		pc.StartBuyTimestamp = int64(f)
	case "executePhase":
		return setBool(&pc.ExecutionSetting.ExecutePhase, key, value, reset)
	case "executeMain":
		return setBool(&pc.ExecutionSetting.ExecuteMain, key, value, reset)
	case "makeNewOrder":
		return setBool(&pc.ExecutionSetting.MakeNewOrder, key, value, reset)
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidPatch, key)
	}
	return nil
}

func setBool(dst *bool, key string, value interface{}, reset bool) error {
	if reset {
		*dst = false
		return nil
	}
	b, ok := value.(bool)
	if !ok {
		return typeError(key, "boolean")
	}
	*dst = b
	return nil
}

func typeError(key, want string) error {
	return fmt.Errorf("%w: %s must be a %s or %q", ErrInvalidPatch, key, want, ClearValue)
}

func patchKeys(patch ContextPatch) []string {
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
