package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vcautotrade/internal/api/handlers"
	"vcautotrade/internal/api/middleware"
	"vcautotrade/internal/service"
	"vcautotrade/pkg/utils"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	ContextService    service.ContextServiceInterface
	OperatorTokenHash string
	Logger            *utils.Logger
}

// SetupRoutes настраивает маршруты операторского API
//
// /api/v1/products/{productId}/
//
//	├── GET   /context - контекст продукта
//	├── PATCH /context - частичное обновление ("undefined" сбрасывает поле)
//	├── GET   /live    - последняя отметка о запуске
//	└── GET   /trades  - последние отчеты о сделках
//
// /metrics и /health доступны без токена.
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. BearerAuth (только /api/v1)
func SetupRoutes(deps *Dependencies) *mux.Router {
	logger := deps.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	logger = logger.WithComponent("api")

	router := mux.NewRouter()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logging(logger))

	api := router.PathPrefix("/api/v1").Subrouter()
	api.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowed)
	api.Use(middleware.BearerAuth(deps.OperatorTokenHash, logger))

	if deps.ContextService != nil {
		h := handlers.NewContextHandler(deps.ContextService)
		api.HandleFunc("/products/{productId}/context", h.GetContext).Methods(http.MethodGet)
		api.HandleFunc("/products/{productId}/context", h.PatchContext).Methods(http.MethodPatch)
		api.HandleFunc("/products/{productId}/live", h.GetLiveness).Methods(http.MethodGet)
		api.HandleFunc("/products/{productId}/trades", h.GetTradeReports).Methods(http.MethodGet)
	}

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	return router
}
