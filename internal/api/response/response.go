package response

import (
	"encoding/json"
	"net/http"
)

// Code is the machine-readable error code carried in the error envelope.
type Code string

const (
	CodeInvalidRequest    Code = "INVALID_REQUEST"
	CodeInvalidAssignment Code = "INVALID_ASSIGNMENT"
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeInvalidState      Code = "INVALID_STATE"
	CodeConflict          Code = "CONFLICT"
	CodeRateLimited       Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeNotImplemented    Code = "NOT_IMPLEMENTED"
	CodeUnavailable       Code = "SERVICE_UNAVAILABLE"
	CodeDegraded          Code = "DEGRADED"
)

var codeStatus = map[Code]int{
	CodeInvalidRequest:    http.StatusBadRequest,
	CodeInvalidAssignment: http.StatusBadRequest,
	CodeUnauthenticated:   http.StatusUnauthorized,
	CodeForbidden:         http.StatusForbidden,
	CodeNotFound:          http.StatusNotFound,
	CodeInvalidState:      http.StatusConflict,
	CodeConflict:          http.StatusConflict,
	CodeRateLimited:       http.StatusTooManyRequests,
	CodeInternal:          http.StatusInternalServerError,
	CodeNotImplemented:    http.StatusNotImplemented,
	CodeUnavailable:       http.StatusServiceUnavailable,
	CodeDegraded:          http.StatusServiceUnavailable,
}

// Status is the HTTP status sent with c. Unknown codes are 500.
func (c Code) Status() int {
	if s, ok := codeStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

type envelope struct {
	Data any `json:"data"`
}

type collectionEnvelope struct {
	Data any            `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type PaginationMeta struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
}

// Page builds the meta for a window ending at offset end of total items.
func Page(page, limit, total, end int) PaginationMeta {
	return PaginationMeta{Page: page, Limit: limit, Total: total, HasNext: end < total}
}

func JSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Data: data})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Collection(w http.ResponseWriter, data any, meta PaginationMeta) {
	writeJSON(w, http.StatusOK, collectionEnvelope{Data: data, Meta: meta})
}

// Fail writes the error envelope with the status that belongs to code.
func Fail(w http.ResponseWriter, code Code, message string, details any) {
	writeJSON(w, code.Status(), errorEnvelope{Error: errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
