package middleware

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/service"

	"go.uber.org/zap"
)

// RequireRole middleware ensures the authenticated user currently holds role.
// The role is read through the authorizer, not from the token claim.
func RequireRole(authorizer service.Authorizer, role domain.Role, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r.Context())
			if !ok {
				logger.Warn("User not found in context")
				RespondWithError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			allowed, err := authorizer.HasRole(r.Context(), userID, role)
			if err != nil {
				logger.Error("Role check failed",
					zap.Int64("user_id", userID),
					zap.Error(err),
				)
				RespondWithError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			if !allowed {
				logger.Warn("User role not authorized",
					zap.Int64("user_id", userID),
					zap.String("required_role", string(role)),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
