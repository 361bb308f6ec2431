package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

var (
	errMethodNotAllowed = errors.New("method not allowed")
	errNoFile           = errors.New("no file provided")
	errQueryFields      = errors.New("question and session_id are required")
)

// detailError carries a response detail and code chosen by the handler.
type detailError struct {
	detail string
	code   string
	err    error
}

func (e *detailError) Error() string { return e.detail }
func (e *detailError) Unwrap() error { return e.err }

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"detail": apiErr.Detail,
		"code":   apiErr.Code,
	})
}

type apiError struct {
	Code   string
	Detail string
}

func toAPIError(status int, err error) apiError {
	var de *detailError
	if errors.As(err, &de) {
		return apiError{Code: de.code, Detail: de.detail}
	}

	detail := "Request failed."
	code := "PA-API-4000"
	switch {
	case status >= 500:
		code = "PA-API-5000"
		detail = "Internal server error. Please retry or check service logs."
	case status == http.StatusBadRequest:
		code = "PA-API-4001"
		detail = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "PA-API-4004"
		detail = "Requested resource was not found."
	case status == http.StatusMethodNotAllowed:
		code = "PA-API-4005"
		detail = "This endpoint does not support the requested method."
	case status == http.StatusRequestEntityTooLarge:
		code = "PA-API-4013"
		detail = "Uploaded file is too large."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		low := strings.ToLower(err.Error())
		switch {
		case strings.Contains(low, "question and session_id are required"):
			detail = "Both 'question' and 'session_id' are required."
		case strings.Contains(low, "no file provided"):
			detail = "A PDF file is required in the 'pdf_file' field."
		case strings.Contains(low, "mode must be"):
			detail = "Field 'mode' must be 'replace' or 'add'."
		case strings.Contains(low, "invalid json"):
			detail = "Malformed JSON request body."
		case strings.Contains(low, "parse multipart"):
			detail = "Malformed multipart form."
		}
	}
	return apiError{Code: code, Detail: detail}
}
