package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensupplyhub/contribute/internal/logger"
)

// EnvelopeVersion is the version of the response envelope. Clients reject other versions.
const EnvelopeVersion = 1

// APIEnvelope wraps every JSON response.
type APIEnvelope struct { //nolint:revive // API prefix is intentional for clarity
	Version int            `json:"v" doc:"Envelope version"`
	Success bool           `json:"success" doc:"Whether the request succeeded"`
	Data    any            `json:"data,omitempty" doc:"Response payload"`
	Error   *EnvelopeError `json:"error,omitempty" doc:"Error, on failure"`
}

// EnvelopeError is the error member of a failed response.
type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// EnvelopeTransformer wraps operation outputs in APIEnvelope.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	if _, ok := v.(APIEnvelope); ok {
		return v, nil
	}

	if err, ok := v.(error); ok {
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			if apiErr = fromError(err); apiErr == nil {
				apiErr = &APIError{Code: statusToCode(statusCode(status)), Message: err.Error()}
			}
		}
		return newErrorEnvelope(apiErr), nil
	}

	return APIEnvelope{
		Version: EnvelopeVersion,
		Success: !strings.HasPrefix(status, "4") && !strings.HasPrefix(status, "5"),
		Data:    v,
	}, nil
}

func newErrorEnvelope(apiErr *APIError) APIEnvelope {
	return APIEnvelope{
		Version: EnvelopeVersion,
		Success: false,
		Error: &EnvelopeError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
	}
}

// statusCode parses a status string, defaulting to 500.
func statusCode(status string) int {
	code, err := strconv.Atoi(status)
	if err != nil {
		return http.StatusInternalServerError
	}
	return code
}

// requestLogger logs one line per request with the chi request id, and stores a
// logger tagged with that id on the request context.
func requestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			reqLog := base.With("request_id", middleware.GetReqID(r.Context()))
			defer func() {
				level := slog.LevelDebug
				if ww.Status() >= http.StatusInternalServerError {
					level = slog.LevelWarn
				}
				reqLog.Log(r.Context(), level, "request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
				)
			}()
			next.ServeHTTP(ww, r.WithContext(logger.IntoContext(r.Context(), reqLog)))
		})
	}
}
