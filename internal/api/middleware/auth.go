package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"vcautotrade/pkg/crypto"
	"vcautotrade/pkg/utils"
)

// BearerAuth проверяет заголовок Authorization: Bearer <token> по bcrypt хешу
// OPERATOR_TOKEN_HASH. Без хеша все запросы отклоняются.
func BearerAuth(tokenHash string, logger *utils.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="operator"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if err := crypto.VerifyToken(token, tokenHash); err != nil {
				logger.Warn("operator auth failed",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="operator"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
