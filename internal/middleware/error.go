package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"storefront/internal/domain"

	"go.uber.org/zap"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        map[string]interface{} `json:"details,omitempty"`
	AvailableStock *int                   `json:"available_stock,omitempty"`
	Timestamp      string                 `json:"timestamp"`
}

var kindStatus = map[domain.ErrorKind]int{
	domain.KindBadRequest:   http.StatusBadRequest,
	domain.KindUnauthorized: http.StatusUnauthorized,
	domain.KindForbidden:    http.StatusForbidden,
	domain.KindNotFound:     http.StatusNotFound,
	domain.KindConflict:     http.StatusConflict,
	domain.KindInternal:     http.StatusInternalServerError,
}

// StatusFor maps an error to the HTTP status it is reported with
func StatusFor(err error) int {
	if status, ok := kindStatus[domain.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	writeError(w, statusCode, ErrorResponse{Message: message})
}

// RespondWithDomainError reports err with the status of its kind. Internal
// failures are logged and replaced by a generic message.
func RespondWithDomainError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	status := StatusFor(err)

	var de *domain.Error
	if status == http.StatusInternalServerError || !errors.As(err, &de) {
		logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
		return
	}

	resp := ErrorResponse{Message: de.Message}
	for key, value := range de.Details {
		if key == "available_stock" {
			if stock, ok := value.(int); ok {
				resp.AvailableStock = &stock
				continue
			}
		}
		if resp.Details == nil {
			resp.Details = make(map[string]interface{})
		}
		resp.Details[key] = value
	}

	writeError(w, status, resp)
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, errs []ValidationError) {
	writeError(w, http.StatusBadRequest, ErrorResponse{
		Message: "validation failed",
		Details: map[string]interface{}{"validation_errors": errs},
	})
}

func writeError(w http.ResponseWriter, statusCode int, resp ErrorResponse) {
	resp.Code = http.StatusText(statusCode)
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)
	RespondWithJSON(w, statusCode, resp)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
