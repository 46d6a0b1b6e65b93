package httpx

import (
	"encoding/json"
	"io"
	"net/http"
)

// Error codes shared by every service. Clients branch on code, not message.
const (
	CodeValidation       = "validation_failed"
	CodeInvalidJSON      = "invalid_json"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeCapacityExceeded = "capacity_exceeded"
	CodeProjectClosed    = "project_closed"
	CodeInactive         = "inactive"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeRateLimited      = "rate_limited"
	CodeUpstream         = "upstream_failed"
	CodeUnavailable      = "unavailable"
	CodeInternal         = "internal"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ErrorBody struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	RequestID string       `json:"request_id,omitempty"`
	Fields    []FieldError `json:"fields,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// WriteError writes the JSON error envelope. The request id is always included
// when the request passed through WithRequestID.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, fields ...FieldError) {
	body := ErrorBody{
		Code:    code,
		Message: message,
		Fields:  fields,
	}
	if r != nil {
		body.RequestID = RequestIDFromContext(r.Context())
	}
	WriteJSON(w, status, errorEnvelope{Error: body})
}

func WriteValidationError(w http.ResponseWriter, r *http.Request, fields []FieldError) {
	WriteError(w, r, http.StatusBadRequest, CodeValidation, "request validation failed", fields...)
}

// ReadError decodes an error envelope from a peer response. Bodies that are not
// envelopes yield a body whose message is the status text.
func ReadError(resp *http.Response) ErrorBody {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Error.Code == "" {
		return ErrorBody{Code: CodeUpstream, Message: http.StatusText(resp.StatusCode)}
	}
	return env.Error
}
