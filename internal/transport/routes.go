package transport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"storefront/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// Guards bundles the middleware handlers attach to their routes
type Guards struct {
	Auth        func(http.Handler) http.Handler
	RateLimit   func(http.Handler) http.Handler
	RequireRole func(role domain.Role) func(http.Handler) http.Handler
}

// money renders an amount as a JSON number with two decimals
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// pathID parses a positive integer URL parameter, returning 0 when absent or malformed
func pathID(r *http.Request, name string) int64 {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}
