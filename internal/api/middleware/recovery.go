package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"vcautotrade/pkg/utils"
)

// Recovery - middleware для восстановления после паники в handlers.
// Клиент получает 500 без деталей, стек уходит в лог.
func Recovery(logger *utils.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic in handler",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
						zap.ByteString("stack", debug.Stack()),
					)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
