package oshub

import (
	"encoding/json"
	"net/http"
	"strings"

	domainerrors "github.com/opensupplyhub/contribute/internal/errors"
)

// errorPayload is the backend error body:
//
//	{"detail": "The request body is invalid.", "errors": [{"field": "name", "detail": "This field is required."}]}
type errorPayload struct {
	Detail string       `json:"detail"`
	Errors []fieldError `json:"errors"`
}

type fieldError struct {
	Field  string `json:"field"`
	Detail string `json:"detail"`
}

// nonFieldKey is how the backend labels errors that belong to no single field.
const nonFieldKey = "non_field_errors"

// decodeError maps a non-2xx response onto the error taxonomy of the contribution flow:
// 4xx with field errors -> UPSTREAM_FIELD, other 4xx -> UPSTREAM, 5xx -> UNAVAILABLE.
func decodeError(status int, raw []byte) error {
	if status >= http.StatusInternalServerError {
		return domainerrors.Unavailable("Open Supply Hub is having trouble right now. Please try again later.").
			WithDetails([]string{strings.TrimSpace(string(raw))})
	}

	var payload errorPayload
	_ = json.Unmarshal(raw, &payload)

	detail := strings.TrimSpace(payload.Detail)
	if detail == "" {
		detail = strings.TrimSpace(string(raw))
	}

	switch status {
	case http.StatusNotFound:
		return domainerrors.NotFound(orDefault(payload.Detail, "not found"))
	case http.StatusUnauthorized:
		return domainerrors.Unauthorized(orDefault(payload.Detail, "upstream rejected the credentials"))
	case http.StatusForbidden:
		return domainerrors.Forbidden(orDefault(payload.Detail, "not allowed"))
	case http.StatusTooManyRequests:
		return &domainerrors.Error{Code: domainerrors.CodeRateLimited, Message: orDefault(payload.Detail, "too many requests")}
	}

	fields := make(map[string]string)
	var general []string
	for _, fe := range payload.Errors {
		if fe.Field == "" || fe.Field == nonFieldKey {
			general = append(general, fe.Detail)
			continue
		}
		if prev, ok := fields[fe.Field]; ok {
			fields[fe.Field] = prev + " " + fe.Detail
		} else {
			fields[fe.Field] = fe.Detail
		}
	}

	if len(fields) > 0 {
		r := domainerrors.Rejection{Fields: fields}
		if len(general) > 0 {
			r.NonField = general
			r.Raw = []string{strings.TrimSpace(string(raw))}
		}
		return domainerrors.UpstreamRejected(orDefault(payload.Detail, "The submission was rejected."), r)
	}

	if detail != "" {
		general = append([]string{detail}, general...)
	}
	return domainerrors.Upstream("Open Supply Hub could not process the request.", general)
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}
