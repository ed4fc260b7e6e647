package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"vcautotrade/internal/models"
	"vcautotrade/internal/service"
)

// maxPatchBody - ограничение тела PATCH
const maxPatchBody = 1 << 14

// ContextHandler - операторские запросы по продукту
//
// Маршруты:
// - GET   /api/v1/products/{productId}/context
// - PATCH /api/v1/products/{productId}/context
// - GET   /api/v1/products/{productId}/live
// - GET   /api/v1/products/{productId}/trades?limit=N
type ContextHandler struct {
	service service.ContextServiceInterface
}

// NewContextHandler создает новый ContextHandler
func NewContextHandler(svc service.ContextServiceInterface) *ContextHandler {
	return &ContextHandler{service: svc}
}

// ContextResponse - контекст продукта в формате API
type ContextResponse struct {
	ProductID         string                `json:"productId"`
	OrderPhase        string                `json:"orderPhase"`
	AfterSendOrder    bool                  `json:"afterSendOrder"`
	OrderID           string                `json:"orderId,omitempty"`
	BuyOrderPrice     float64               `json:"buyOrderPrice,omitempty"`
	BuyOrderInfo      *models.BuyOrderInfo  `json:"buyOrderInfo,omitempty"`
	StartBuyTimestamp int64                 `json:"startBuyTimestamp,omitempty"`
	LastExecution     *models.LastExecution `json:"lastExecution,omitempty"`
	ExecutePhase      bool                  `json:"executePhase"`
	ExecuteMain       bool                  `json:"executeMain"`
	MakeNewOrder      bool                  `json:"makeNewOrder"`
}

func toContextResponse(pc *models.ProductContext) ContextResponse {
	return ContextResponse{
		ProductID:         pc.ProductID,
		OrderPhase:        string(pc.OrderPhase),
		AfterSendOrder:    pc.AfterSendOrder,
		OrderID:           pc.OrderID,
		BuyOrderPrice:     pc.BuyOrderPrice,
		BuyOrderInfo:      pc.BuyOrderInfo,
		StartBuyTimestamp: pc.StartBuyTimestamp,
		LastExecution:     pc.LastExecution,
		ExecutePhase:      pc.ExecutionSetting.ExecutePhase,
		ExecuteMain:       pc.ExecutionSetting.ExecuteMain,
		MakeNewOrder:      pc.ExecutionSetting.MakeNewOrder,
	}
}

// GetContext возвращает контекст продукта
func (h *ContextHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	pc, err := h.service.GetContext(r.Context(), mux.Vars(r)["productId"])
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toContextResponse(pc))
}

// PatchContext частично обновляет контекст; "undefined" сбрасывает поле
func (h *ContextHandler) PatchContext(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxPatchBody))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_body", "Failed to read request body", err.Error())
		return
	}

	var patch service.ContextPatch
	if err := json.Unmarshal(raw, &patch); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_json", "Request body must be a JSON object", err.Error())
		return
	}

	pc, err := h.service.PatchContext(r.Context(), mux.Vars(r)["productId"], patch)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toContextResponse(pc))
}

// GetLiveness возвращает последнюю отметку о запуске
func (h *ContextHandler) GetLiveness(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.GetLiveness(r.Context(), mux.Vars(r)["productId"])
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rec)
}

// GetTradeReports возвращает последние отчеты о сделках
func (h *ContextHandler) GetTradeReports(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondWithError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", "")
			return
		}
		limit = n
	}

	reports, err := h.service.GetTradeReports(r.Context(), mux.Vars(r)["productId"], limit)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	if reports == nil {
		reports = []models.TradeReport{}
	}
	respondWithJSON(w, http.StatusOK, reports)
}

// handleServiceError обрабатывает ошибки от сервиса и возвращает соответствующий HTTP статус
func (h *ContextHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownProduct):
		respondWithError(w, http.StatusNotFound, "unknown_product", "Unknown product", err.Error())
	case errors.Is(err, service.ErrContextNotFound):
		respondWithError(w, http.StatusNotFound, "context_not_found", "Product context not found", "")
	case errors.Is(err, service.ErrLivenessMissing):
		respondWithError(w, http.StatusNotFound, "liveness_not_found", "No liveness record yet", "")
	case errors.Is(err, service.ErrInvalidPatch):
		respondWithError(w, http.StatusBadRequest, "invalid_patch", "Invalid context patch", err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error", err.Error())
	}
}
