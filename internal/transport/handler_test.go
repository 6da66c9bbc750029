package transport

import (
	"context"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// identity injects a fixed user id in place of token validation
func identity(userID int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID > 0 {
				r = r.WithContext(context.WithValue(r.Context(), middleware.UserIDKey, userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func passthrough(next http.Handler) http.Handler { return next }

func testGuards(userID int64, roles map[int64]domain.Role) Guards {
	return Guards{
		Auth:      identity(userID),
		RateLimit: passthrough,
		RequireRole: func(role domain.Role) func(http.Handler) http.Handler {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if roles[userID] != role {
						middleware.RespondWithError(w, http.StatusForbidden, "insufficient permissions")
						return
					}
					next.ServeHTTP(w, r)
				})
			}
		},
	}
}

type routable interface {
	RegisterRoutes(r chi.Router, guards Guards)
}

func newRouter(h routable, guards Guards) http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r, guards)
	return r
}
