package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"cafeplease/internal/lifecycle"
	"cafeplease/internal/model"
	"cafeplease/internal/schema"
	"cafeplease/internal/service"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// WriteError writes a standardized error response
func WriteError(w http.ResponseWriter, code int, errCode, message string, log *zap.Logger) {
	if code >= http.StatusInternalServerError {
		log.Error("API error", zap.String("code", errCode), zap.String("message", message))
	} else {
		log.Debug("API error", zap.String("code", errCode), zap.String("message", message))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	resp := ErrorResponse{
		Error:   errCode,
		Message: message,
	}
	if errCode != "" {
		resp.Code = errCode
	}

	json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps desk and lifecycle errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error, log *zap.Logger) {
	var ve *schema.ValidationError
	switch {
	case errors.As(err, &ve):
		WriteError(w, http.StatusBadRequest, "validation_failed", ve.Error(), log)
	case errors.Is(err, service.ErrRequestNotFound), errors.Is(err, service.ErrUserNotFound):
		WriteError(w, http.StatusNotFound, "not_found", err.Error(), log)
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		WriteError(w, http.StatusConflict, "invalid_transition", err.Error(), log)
	case errors.Is(err, lifecycle.ErrDuplicateLiveRequest):
		WriteError(w, http.StatusConflict, "duplicate_live_request", err.Error(), log)
	case errors.Is(err, lifecycle.ErrCapacityExceeded):
		WriteError(w, http.StatusConflict, "capacity_exceeded", err.Error(), log)
	case errors.Is(err, service.ErrSelfDelete):
		WriteError(w, http.StatusForbidden, "self_delete", err.Error(), log)
	case errors.Is(err, lifecycle.ErrInvalidCodeType),
		errors.Is(err, lifecycle.ErrInvalidDuration),
		errors.Is(err, model.ErrInvalidSettings),
		errors.Is(err, service.ErrInvalidUser),
		errors.Is(err, service.ErrInvalidSale):
		WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), log)
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", log)
		log.Error("Unhandled service error", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeValidated checks the body against the named schema, then decodes it into dst.
func (d Dependencies) decodeValidated(r *http.Request, name string, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return &schema.ValidationError{Schema: name, Detail: "unreadable body"}
	}
	if err := d.Schema.Validate(r.Context(), name, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &schema.ValidationError{Schema: name, Detail: err.Error()}
	}
	return nil
}

// RequestLogger logs HTTP requests and responses
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip wrapping for WebSocket upgrades - they need direct access to ResponseWriter
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			log.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
