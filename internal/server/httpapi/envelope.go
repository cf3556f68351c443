package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/vidkeeper/internal/common"
)

// apiResponse wraps every successful payload.
type apiResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// apiError is the body of every failed call.
type apiError struct {
	StatusCode int      `json:"statusCode"`
	Data       any      `json:"data"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, apiResponse{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{
		StatusCode: status,
		Message:    message,
		Errors:     []string{},
	})
}

// statusFor maps a service error to an HTTP status and a client-safe
// message. Only *common.Error messages are shown; anything else is opaque.
func statusFor(err error) (int, string) {
	message := "internal server error"
	var e *common.Error
	if errors.As(err, &e) {
		message = e.Message
	}

	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, message
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict, message
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, message
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, message
	default:
		return http.StatusInternalServerError, message
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}
